package offline

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aprendeyjuega/asset-relay/internal/logging"
	"github.com/aprendeyjuega/asset-relay/internal/metrics"
	"github.com/aprendeyjuega/asset-relay/internal/store"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/pborman/uuid"
	"golang.org/x/sync/errgroup"
)

// Where a response handed out by a Worker came from.
const (
	SourceCache        = metrics.OutcomeCache
	SourceNetwork      = metrics.OutcomeNetwork
	SourceFallback     = metrics.OutcomeFallback
	SourcePassthrough  = metrics.OutcomePassthrough
	sourceNetworkError = metrics.OutcomeNetworkError
)

// DefaultPrecacheConcurrency is used if WorkerConfig.PrecacheConcurrency is not positive.
const DefaultPrecacheConcurrency = 4

// State is a stage in the lifecycle of a Worker.
type State int

const (
	// StateInstalling means the worker is opening its store and pre-caching its manifest.
	StateInstalling State = iota
	// StateInstalled means pre-caching has finished and the worker is waiting to take over.
	StateInstalled
	// StateActive means the worker has purged older stores and serves requests.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Fetcher performs network requests. *http.Client satisfies it.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// WorkerConfig contains the parameters for NewWorker.
type WorkerConfig struct {
	// Version is the tag of the cache generation this worker owns.
	Version string
	// Assets are the absolute URLs fetched and stored during Install.
	Assets []string
	// Storage holds every cache generation.
	Storage store.Storage
	// Client fetches from the network.
	Client Fetcher
	// SafeMethods are the request methods served through the cache; others are passed through. If empty,
	// only GET is cached.
	SafeMethods []string
	// PrecacheConcurrency limits how many assets are fetched at once during Install.
	PrecacheConcurrency int
	Loggers             ldlog.Loggers
	// OnStateChange, if set, is called after every lifecycle transition.
	OnStateChange func(w *Worker, state State)
}

// Worker is the cache manager for one version tag.
//
// Install and Activate move the worker through its lifecycle; HandleRequest may be called concurrently
// from any number of goroutines at any stage.
type Worker struct {
	id            string
	version       string
	assets        []string
	storage       store.Storage
	client        Fetcher
	safeMethods   map[string]struct{}
	concurrency   int
	onStateChange func(*Worker, State)
	loggers       ldlog.Loggers

	state    State
	store    store.Store
	closed   bool
	inFlight int64
	pending  sync.WaitGroup
	lock     sync.RWMutex
}

// NewWorker creates a Worker in StateInstalling. Nothing is fetched until Install is called.
func NewWorker(c WorkerConfig) *Worker {
	safeMethods := make(map[string]struct{})
	for _, m := range c.SafeMethods {
		safeMethods[strings.ToUpper(m)] = struct{}{}
	}
	if len(safeMethods) == 0 {
		safeMethods[http.MethodGet] = struct{}{}
	}
	concurrency := c.PrecacheConcurrency
	if concurrency <= 0 {
		concurrency = DefaultPrecacheConcurrency
	}
	return &Worker{
		id:            uuid.New(),
		version:       c.Version,
		assets:        dedupe(c.Assets),
		storage:       c.Storage,
		client:        c.Client,
		safeMethods:   safeMethods,
		concurrency:   concurrency,
		onStateChange: c.OnStateChange,
		loggers:       logging.WithPrefix(c.Loggers, fmt.Sprintf("[offline:%s]", c.Version)),
		state:         StateInstalling,
	}
}

// ID returns a unique identifier for this worker instance.
func (w *Worker) ID() string { return w.id }

// Version returns the version tag of the worker's cache generation.
func (w *Worker) Version() string { return w.version }

// State returns the current lifecycle stage.
func (w *Worker) State() State {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.state
}

// InFlight returns the number of requests currently being handled through a Registration.
func (w *Worker) InFlight() int {
	return int(atomic.LoadInt64(&w.inFlight))
}

// Install opens the store for the worker's version tag and pre-caches every asset in the manifest.
//
// Failures are logged and do not stop the installation: an asset that cannot be fetched is skipped, and
// if the store cannot be opened the worker installs without one and sends every request to the network.
// Install returns an error only if ctx is cancelled. Calling it again re-fetches the manifest, and never
// moves an active worker back to an earlier stage.
func (w *Worker) Install(ctx context.Context) error {
	w.transition(StateInstalling)
	w.loggers.Infof(logMsgInstalling, w.version, len(w.assets))

	stored := 0
	s, err := w.storage.Open(ctx, w.version)
	if err != nil {
		w.loggers.Errorf(logMsgStoreOpenFailed, w.version, err)
	} else {
		w.setStore(s)
		stored = w.precache(ctx, s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	w.loggers.Infof(logMsgInstalled, w.version, stored, len(w.assets))
	w.transition(StateInstalled)
	return nil
}

// Activate deletes every store whose tag differs from the worker's own and then makes the worker
// active. Failures to list or delete stores are logged and do not prevent activation. It returns an
// error only if ctx is already cancelled when it is called, in which case nothing is changed. Once
// started, activation runs to completion even if ctx is cancelled.
func (w *Worker) Activate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)

	if w.currentStore() == nil {
		// the storage may have been unavailable during Install
		if s, err := w.storage.Open(ctx, w.version); err == nil {
			w.setStore(s)
		} else {
			w.loggers.Errorf(logMsgStoreOpenFailed, w.version, err)
		}
	}

	tags, err := w.storage.Tags(ctx)
	if err != nil {
		w.loggers.Errorf(logMsgListStoresFailed, err)
	}
	purged := 0
	for _, tag := range tags {
		if tag == w.version {
			continue
		}
		deleted, err := w.storage.Delete(ctx, tag)
		switch {
		case err != nil:
			w.loggers.Warnf(logMsgDeleteStoreFailed, tag, err)
		case deleted:
			w.loggers.Infof(logMsgDeletedStaleStore, tag)
			purged++
		}
	}
	metrics.RecordPurge(ctx, w.version, purged)

	w.loggers.Infof(logMsgActivated, w.version)
	w.transition(StateActive)
	return nil
}

// HandleRequest answers req from the cache if possible and from the network otherwise.
//
// Requests with a method outside the safe set go straight to the network. Otherwise a stored response
// is returned without contacting the network. On a miss the request is fetched; a successful
// same-origin response is returned and a copy is stored in the background. If the fetch fails, the
// store is consulted once more, and the error is returned only if there is still nothing stored.
//
// req must be a client request (absolute URL, no RequestURI).
func (w *Worker) HandleRequest(req *http.Request) (*http.Response, error) {
	resp, _, err := w.handle(req)
	return resp, err
}

// Close stops the worker from starting new background writes and waits for those already started.
func (w *Worker) Close() error {
	w.lock.Lock()
	w.closed = true
	w.lock.Unlock()
	w.pending.Wait()
	return nil
}

func (w *Worker) handle(req *http.Request) (*http.Response, string, error) {
	resp, source, err := w.serve(req)
	metrics.RecordRequest(req.Context(), w.version, source)
	return resp, source, err
}

func (w *Worker) serve(req *http.Request) (*http.Response, string, error) {
	if _, ok := w.safeMethods[req.Method]; !ok {
		resp, err := w.client.Do(req)
		if err != nil {
			return nil, sourceNetworkError, errNetworkFailure(req.URL.String(), err)
		}
		return resp, SourcePassthrough, nil
	}

	ctx := req.Context()
	key := store.Key(req)
	s := w.currentStore()

	if snapshot, ok := w.lookup(ctx, s, key); ok {
		return snapshot.Response(req), SourceCache, nil
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return w.fallback(req, s, key, err)
	}
	if s == nil || !isCacheable(req, resp) {
		return resp, SourceNetwork, nil
	}

	snapshot, err := store.SnapshotFromResponse(resp)
	if err != nil {
		// the connection broke while the body was being read
		return w.fallback(req, s, key, err)
	}
	w.storeDetached(s, key, snapshot)
	return resp, SourceNetwork, nil
}

func (w *Worker) fallback(req *http.Request, s store.Store, key string, fetchErr error) (*http.Response, string, error) {
	if snapshot, ok := w.lookup(req.Context(), s, key); ok {
		w.loggers.Debugf(logMsgServedFallback, req.URL, fetchErr)
		return snapshot.Response(req), SourceFallback, nil
	}
	w.loggers.Debugf(logMsgNetworkFailed, req.URL, fetchErr)
	return nil, sourceNetworkError, errNetworkFailure(req.URL.String(), fetchErr)
}

func (w *Worker) lookup(ctx context.Context, s store.Store, key string) (store.Snapshot, bool) {
	if s == nil {
		return store.Snapshot{}, false
	}
	snapshot, ok, err := s.Get(ctx, key)
	if err != nil {
		w.loggers.Warnf(logMsgStoreReadFailed, key, err)
		return store.Snapshot{}, false
	}
	return snapshot, ok
}

func (w *Worker) storeDetached(s store.Store, key string, snapshot store.Snapshot) {
	w.lock.Lock()
	if w.closed {
		w.lock.Unlock()
		return
	}
	w.pending.Add(1)
	w.lock.Unlock()

	go func() {
		defer w.pending.Done()
		ctx := context.Background()
		err := s.Put(ctx, key, snapshot)
		if err != nil {
			w.loggers.Warnf(logMsgStoreWriteFailed, key, err)
		}
		metrics.RecordStoreWrite(ctx, w.version, err == nil)
	}()
}

func (w *Worker) precache(ctx context.Context, s store.Store) int {
	var stored int64
	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for _, assetURL := range w.assets {
		assetURL := assetURL
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			ok := w.precacheOne(ctx, s, assetURL)
			metrics.RecordPrecache(ctx, w.version, ok)
			if ok {
				atomic.AddInt64(&stored, 1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(stored)
}

func (w *Worker) precacheOne(ctx context.Context, s store.Store, assetURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		w.loggers.Warnf(logMsgPrecacheFailed, assetURL, err)
		return false
	}
	resp, err := w.client.Do(req)
	if err != nil {
		w.loggers.Warnf(logMsgPrecacheFailed, assetURL, err)
		return false
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		w.loggers.Warnf(logMsgPrecacheNotStored, assetURL, resp.StatusCode)
		return false
	}
	if isOpaque(req, resp) {
		w.loggers.Warnf(logMsgPrecacheOpaque, assetURL)
		return false
	}
	snapshot, err := store.SnapshotFromResponse(resp)
	if err != nil {
		w.loggers.Warnf(logMsgPrecacheFailed, assetURL, err)
		return false
	}
	if err := s.Put(ctx, store.Key(req), snapshot); err != nil {
		w.loggers.Warnf(logMsgStoreWriteFailed, assetURL, err)
		return false
	}
	return true
}

func (w *Worker) transition(state State) {
	w.lock.Lock()
	if w.state == state || (w.state == StateActive && state != StateActive) {
		w.lock.Unlock()
		return
	}
	w.state = state
	w.lock.Unlock()
	if w.onStateChange != nil {
		w.onStateChange(w, state)
	}
}

func (w *Worker) currentStore() store.Store {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.store
}

func (w *Worker) setStore(s store.Store) {
	w.lock.Lock()
	w.store = s
	w.lock.Unlock()
}

func (w *Worker) acquire() {
	atomic.AddInt64(&w.inFlight, 1)
}

func (w *Worker) release() int {
	return int(atomic.AddInt64(&w.inFlight, -1))
}

// A response is stored only if it is a complete success from the same origin as the request.
func isCacheable(req *http.Request, resp *http.Response) bool {
	return resp.StatusCode == http.StatusOK && !isOpaque(req, resp)
}

// A response is opaque if redirects took it to a different origin than the one requested.
func isOpaque(req *http.Request, resp *http.Response) bool {
	if resp.Request == nil || resp.Request.URL == nil {
		return false
	}
	final := resp.Request.URL
	return !strings.EqualFold(final.Scheme, req.URL.Scheme) || !strings.EqualFold(final.Host, req.URL.Host)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	ret := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		ret = append(ret, v)
	}
	return ret
}
