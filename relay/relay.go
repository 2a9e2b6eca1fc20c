package relay

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/aprendeyjuega/asset-relay/config"
	"github.com/aprendeyjuega/asset-relay/internal/logging"
	"github.com/aprendeyjuega/asset-relay/internal/manifest"
	"github.com/aprendeyjuega/asset-relay/internal/metrics"
	"github.com/aprendeyjuega/asset-relay/internal/offline"
	"github.com/aprendeyjuega/asset-relay/internal/store"
	"github.com/aprendeyjuega/asset-relay/internal/streams"
	"github.com/aprendeyjuega/asset-relay/internal/transport"
	"github.com/aprendeyjuega/asset-relay/internal/util"
	"github.com/aprendeyjuega/asset-relay/internal/version"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// Relay represents the overall asset-relay application.
//
// This type deliberately exports no methods other than ServeHTTP and Close. Everything else is an
// implementation detail which is subject to change.
type Relay struct {
	http.Handler
	registration   *offline.Registration
	storage        store.Storage
	metricsManager *metrics.Manager
	watcher        *manifest.Watcher
	stream         *streams.LifecycleStream
	unsubscribe    func()
	initCh         chan error
	version        string
	ctx            context.Context
	cancel         context.CancelFunc
	background     sync.WaitGroup
	closed         bool
	lock           sync.RWMutex
	config         config.Config
	loggers        ldlog.Loggers
}

// Using a struct type for this instead of adding parameters to newRelayInternal helps to minimize
// changes to test code whenever we make more things configurable.
type relayInternalOptions struct {
	loggers           ldlog.Loggers
	storageFactory    store.StorageFactory
	client            offline.Fetcher
	heartbeatInterval time.Duration
	exitOnError       func()
}

// NewRelay creates a new Relay given a configuration.
//
// It opens the configured storage, starts installing the current cache version in the background, and
// starts watching the manifest file if there is one. Requests that arrive before the first version has
// installed get a 503 response. It also registers any enabled metrics exporters (Datadog, Stackdriver,
// Prometheus) in OpenCensus.
func NewRelay(c config.Config, loggers ldlog.Loggers) (*Relay, error) {
	return newRelayInternal(c, relayInternalOptions{loggers: loggers})
}

func newRelayInternal(c config.Config, options relayInternalOptions) (*Relay, error) {
	var thingsToCleanUp util.CleanupTasks // keeps track of partially constructed things in case we exit early
	defer thingsToCleanUp.Run()

	loggers := options.loggers

	if err := config.ValidateConfig(&c, loggers); err != nil { // in case a not-yet-validated Config was passed to NewRelay
		return nil, err
	}

	if c.Main.LogLevel.IsDefined() {
		loggers.SetMinLevel(c.Main.LogLevel.GetOrElse(ldlog.Info))
	}

	metricsManager, err := metrics.NewManager(c.MetricsConfig, loggers)
	if err != nil {
		return nil, errNewMetricsManagerFailed(err)
	}
	thingsToCleanUp.AddFunc(metricsManager.Close)

	storageFactory := options.storageFactory
	if storageFactory == nil {
		storageFactory = store.ConfigureStorage
	}
	storage, err := storageFactory(c, loggers)
	if err != nil {
		return nil, errStorageFailed(err)
	}
	thingsToCleanUp.AddCloser(storage)

	origin, err := transport.NewOrigin(c, loggers)
	if err != nil {
		return nil, errOriginFailed(err)
	}
	client := options.client
	if client == nil {
		client = origin.Client()
	}

	registration := offline.NewRegistration(offline.RegistrationConfig{
		Storage:             storage,
		BaseURL:             origin.BaseURL,
		Client:              client,
		SafeMethods:         c.Cache.SafeMethods(),
		PrecacheConcurrency: c.Cache.PrecacheConcurrency.GetOrElse(config.DefaultPrecacheConcurrency),
		SkipWaiting:         c.Cache.SkipWaiting.GetOrElse(true),
		Loggers:             loggers,
	})
	thingsToCleanUp.AddCloser(registration)

	ctx, cancel := context.WithCancel(context.Background())
	r := &Relay{
		registration:   registration,
		storage:        storage,
		metricsManager: metricsManager,
		initCh:         make(chan error, 1),
		version:        version.Version,
		ctx:            ctx,
		cancel:         cancel,
		config:         c,
		loggers:        loggers,
	}
	thingsToCleanUp.AddFunc(cancel)

	heartbeatInterval := options.heartbeatInterval
	if heartbeatInterval == 0 {
		heartbeatInterval = streams.DefaultHeartbeatInterval
	}
	r.stream = streams.NewLifecycleStream(r.statusJSON, 0, heartbeatInterval, logging.WithPrefix(loggers, "[streams]"))
	thingsToCleanUp.AddFunc(r.stream.Close)
	r.unsubscribe = registration.Subscribe(r.stream.Publish)

	var initial manifest.Manifest
	if c.Cache.ManifestFile != "" {
		watcher, err := manifest.NewWatcher(
			c.Cache.ManifestFile,
			c.Cache.Version,
			manifest.UpdateHandlerFunc(r.manifestUpdated),
			0,
			loggers,
		)
		if err != nil {
			return nil, errManifestFailed(err)
		}
		r.watcher = watcher
		thingsToCleanUp.AddCloser(watcher)
		initial = watcher.Current()
	} else {
		initial, err = manifest.FromConfig(c.Cache)
		if err != nil {
			return nil, errManifestFailed(err)
		}
	}

	exitOnError := options.exitOnError
	if exitOnError == nil {
		exitOnError = func() { os.Exit(1) }
	}

	r.background.Add(1)
	go func() {
		defer r.background.Done()
		err := r.register(initial)
		if err != nil && c.Main.ExitOnError && ctx.Err() == nil {
			loggers.Error(logMsgExitOnRegisterFail)
			exitOnError()
		}
		r.initCh <- err
	}()

	r.Handler = r.makeRouter()
	thingsToCleanUp.Clear() // we succeeded, don't close anything
	return r, nil
}

// Close shuts down components created by the Relay.
//
// This includes cancelling any installation in progress, disconnecting lifecycle stream clients,
// waiting for background cache writes, closing the storage, and closing the metrics exporters.
func (r *Relay) Close() error {
	r.lock.Lock()
	if r.closed {
		r.lock.Unlock()
		return nil
	}
	r.closed = true
	r.lock.Unlock()

	r.cancel()
	if r.watcher != nil {
		_ = r.watcher.Close()
	}
	r.background.Wait()

	r.unsubscribe()
	r.stream.Close()
	_ = r.registration.Close()
	if err := r.storage.Close(); err != nil {
		r.loggers.Warnf("Unexpected error when closing cache storage: %s", err)
	}
	r.metricsManager.Close()
	return nil
}

// register installs the given manifest's version. It is a no-op if that version is already active.
func (r *Relay) register(m manifest.Manifest) error {
	r.loggers.Infof(logMsgRegistering, m.Version)
	if _, err := r.registration.Register(r.ctx, m); err != nil {
		if r.ctx.Err() == nil {
			r.loggers.Errorf(logMsgRegisterFailed, m.Version, err)
		}
		return err
	}
	return nil
}

// manifestUpdated is called by the manifest watcher when the file has changed.
func (r *Relay) manifestUpdated(m manifest.Manifest) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.closed {
		return
	}
	r.loggers.Infof(logMsgManifestChanged, m.Version)
	r.background.Add(1)
	go func() {
		defer r.background.Done()
		_ = r.register(m)
	}()
}

// currentManifest re-reads the manifest source: the manifest file if there is one, or else the
// [Cache] configuration.
func (r *Relay) currentManifest() (manifest.Manifest, error) {
	return manifest.FromConfig(r.config.Cache)
}

// waitForInitialization blocks until the first cache version has either installed or failed, or until
// the specified timeout (if the timeout is non-zero). It can only be called once.
func (r *Relay) waitForInitialization(timeout time.Duration) error {
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}
	select {
	case err := <-r.initCh:
		return err
	case <-timeoutCh:
		return errInitializationTimeout
	}
}
