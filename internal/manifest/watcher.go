package manifest

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aprendeyjuega/asset-relay/config"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/fsnotify/fsnotify"
)

const maxRetriesIfFileNotChanged = 2

// UpdateHandler receives manifests that were reloaded from a watched file.
type UpdateHandler interface {
	ManifestUpdated(m Manifest)
}

// UpdateHandlerFunc adapts a function to the UpdateHandler interface.
type UpdateHandlerFunc func(m Manifest)

// ManifestUpdated calls f(m).
func (f UpdateHandlerFunc) ManifestUpdated(m Manifest) { f(m) }

// Watcher watches a manifest file and calls its UpdateHandler whenever the file's content changes.
//
// The containing directory is watched rather than the file itself, so that a file replaced by a rename
// is still noticed. A file that fails to parse may be in the middle of being copied, so the Watcher
// retries a limited number of times before giving up until the next change.
type Watcher struct {
	filePath       string
	defaultVersion string
	handler        UpdateHandler
	retryInterval  time.Duration
	current        Manifest
	watcher        *fsnotify.Watcher
	loggers        ldlog.Loggers
	closeCh        chan struct{}
	doneCh         chan struct{}
	closeOnce      sync.Once
	lock           sync.RWMutex
}

// NewWatcher reads the manifest file and starts watching it. If the file does not name a version,
// defaultVersion is used. A zero retryInterval means config.DefaultManifestReloadRetryInterval.
func NewWatcher(
	filePath string,
	defaultVersion string,
	handler UpdateHandler,
	retryInterval time.Duration,
	loggers ldlog.Loggers,
) (*Watcher, error) {
	filePath = filepath.Clean(filePath)
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, errCannotReadManifest(filePath, err)
	}

	w := &Watcher{
		filePath:       filePath,
		defaultVersion: defaultVersion,
		handler:        handler,
		retryInterval:  retryInterval,
		loggers:        loggers,
		closeCh:        make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
	if w.retryInterval == 0 {
		w.retryInterval = config.DefaultManifestReloadRetryInterval
	}
	w.loggers.SetPrefix("[manifest]")

	m, err := w.load()
	if err != nil {
		return nil, err
	}
	w.current = m

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errCreateWatcherFailed(filePath, err) // COVERAGE: can't cause this condition in unit tests
	}
	if err := watcher.Add(filepath.Dir(filePath)); err != nil {
		_ = watcher.Close()
		return nil, errCreateWatcherFailed(filePath, err) // COVERAGE: can't cause this condition in unit tests
	}
	w.watcher = watcher

	go w.run(fileInfo)

	return w, nil
}

// Current returns the most recently loaded manifest.
func (w *Watcher) Current() Manifest {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.current
}

// Close stops watching the file. It is safe to call Close more than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.closeCh)
		<-w.doneCh
	})
	return nil
}

func (w *Watcher) load() (Manifest, error) {
	m, err := Load(w.filePath)
	if err != nil {
		return Manifest{}, err
	}
	if m.Version == "" {
		m.Version = w.defaultVersion
	}
	if m.Version == "" {
		return Manifest{}, errCannotReadManifest(w.filePath, errManifestNoVersion)
	}
	if m.Assets == nil {
		m.Assets = append([]string(nil), DefaultAssets...)
	}
	if len(m.Assets) == 0 {
		w.loggers.Warnf(logMsgNoAssets, m.Version)
	}
	return m, nil
}

func (w *Watcher) run(originalFileInfo os.FileInfo) {
	defer close(w.doneCh)

	lastFileInfo := originalFileInfo
	retryCh := make(chan struct{})
	needRetry := false
	retriedCountSinceLastChange := 0
	var lastError error

	scheduleRetry := func() {
		w.loggers.Debug("Will schedule retry")
		needRetry = true
		time.AfterFunc(w.retryInterval, func() {
			// Non-blocking; we never need to queue more than one retry signal
			select {
			case retryCh <- struct{}{}:
			default:
			}
		})
	}

	maybeReload := func() {
		curFileInfo, err := os.Stat(w.filePath)
		if err == nil {
			if fileMayHaveChanged(curFileInfo, lastFileInfo) {
				retriedCountSinceLastChange = 0
				lastError = nil
				lastFileInfo = curFileInfo
				needRetry = false
				m, err := w.load()
				if err != nil {
					// Could be a real failure, or a copy that's still in progress, so always retry at least once
					w.loggers.Warnf(logMsgReloadError, err.Error())
					lastError = err
					scheduleRetry()
					return
				}
				w.updated(m)
				return
			}
			w.loggers.Debug("File has not changed")
			if lastError == nil {
				return
			}
		} else if lastError == nil {
			w.loggers.Warn(logMsgReloadFileNotFound)
			lastError = err
		}
		// The file is missing, or it is unchanged since a failed attempt. A slow copy may still be in
		// progress, so retry on a timer up to a limit rather than relying on the watcher's granularity.
		if retriedCountSinceLastChange < maxRetriesIfFileNotChanged {
			retriedCountSinceLastChange++
			w.loggers.Warn(logMsgReloadUnchangedRetry)
			scheduleRetry()
		} else {
			w.loggers.Errorf(logMsgReloadUnchangedNoMoreRetries, lastError)
		}
	}

	for {
		select {
		case <-w.closeCh:
			_ = w.watcher.Close()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.filePath {
				continue
			}
			w.loggers.Debugf("Got file watcher event: %+v", event)
			w.consumeExtraEvents()
			maybeReload()

		case err, ok := <-w.watcher.Errors:
			if ok {
				w.loggers.Debugf("File watcher error: %s", err)
			}

		case <-retryCh:
			if needRetry {
				w.loggers.Debug("Got retry signal")
				maybeReload()
			} else {
				w.loggers.Debug("Ignoring obsolete retry signal") // COVERAGE: can't cause this condition in unit tests
			}
		}
	}
}

func (w *Watcher) consumeExtraEvents() {
	for {
		select {
		case <-w.watcher.Events: // COVERAGE: can't simulate this condition in unit tests
		default:
			return
		}
	}
}

func (w *Watcher) updated(m Manifest) {
	w.lock.Lock()
	unchanged := m.Equal(w.current)
	w.current = m
	w.lock.Unlock()
	if unchanged {
		w.loggers.Info(logMsgManifestUnchanged)
		return
	}
	w.loggers.Infof(logMsgReloadedManifest, w.filePath, m.Version, len(m.Assets))
	w.handler.ManifestUpdated(m)
}

func fileMayHaveChanged(oldInfo, newInfo os.FileInfo) bool {
	return oldInfo.ModTime() != newInfo.ModTime() || oldInfo.Size() != newInfo.Size()
}
