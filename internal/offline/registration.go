package offline

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"

	"github.com/aprendeyjuega/asset-relay/internal/logging"
	"github.com/aprendeyjuega/asset-relay/internal/manifest"
	"github.com/aprendeyjuega/asset-relay/internal/store"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// VersionHeader is the response header that names the cache version which handled a request.
const VersionHeader = "X-Asset-Relay-Version"

// Headers that apply to one connection and are not forwarded in either direction.
var hopByHopHeaders = []string{ //nolint:gochecknoglobals
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// RegistrationConfig contains the parameters for NewRegistration.
type RegistrationConfig struct {
	Storage store.Storage
	// BaseURL is the origin root that incoming request paths are resolved against.
	BaseURL *url.URL
	Client  Fetcher
	// SafeMethods and PrecacheConcurrency are passed to every worker.
	SafeMethods         []string
	PrecacheConcurrency int
	// SkipWaiting makes each newly installed worker take over at once, even while requests are still
	// being handled by the previous one.
	SkipWaiting bool
	Loggers     ldlog.Loggers
}

// Registration owns the active worker and at most one waiting worker, and routes incoming requests to
// whichever worker is active at the moment each request arrives.
type Registration struct {
	config       RegistrationConfig
	active       *Worker
	waiting      *Worker
	activating   bool
	closed       bool
	subscribers  map[int]func(Event)
	nextSubID    int
	background   sync.WaitGroup
	lock         sync.RWMutex
	registerLock sync.Mutex
	subLock      sync.Mutex
	loggers      ldlog.Loggers
}

// NewRegistration creates a Registration with no workers. ServeHTTP responds with 503 until the first
// call to Register has completed.
func NewRegistration(c RegistrationConfig) *Registration {
	return &Registration{
		config:      c,
		subscribers: make(map[int]func(Event)),
		loggers:     logging.WithPrefix(c.Loggers, "[offline]"),
	}
}

// Register installs a worker for the manifest's version.
//
// If that version is already active or waiting, the existing worker is returned and nothing is fetched.
// Otherwise the new worker replaces any waiting worker. It is activated immediately if there is no
// active worker or SkipWaiting is set, and otherwise as soon as the active worker has no requests in
// flight.
func (r *Registration) Register(ctx context.Context, m manifest.Manifest) (*Worker, error) {
	r.registerLock.Lock()
	defer r.registerLock.Unlock()

	r.lock.RLock()
	closed, active, waiting := r.closed, r.active, r.waiting
	r.lock.RUnlock()
	if closed {
		return nil, errRegistrationClosed
	}
	if active != nil && active.Version() == m.Version {
		r.loggers.Infof(logMsgRegisterSameActive, m.Version)
		return active, nil
	}
	if waiting != nil && waiting.Version() == m.Version {
		return waiting, nil
	}

	assets, err := m.Resolve(r.config.BaseURL)
	if err != nil {
		return nil, err
	}
	w := NewWorker(WorkerConfig{
		Version:             m.Version,
		Assets:              assets,
		Storage:             r.config.Storage,
		Client:              r.config.Client,
		SafeMethods:         r.config.SafeMethods,
		PrecacheConcurrency: r.config.PrecacheConcurrency,
		Loggers:             r.config.Loggers,
		OnStateChange:       r.workerStateChanged,
	})
	r.publish(newEvent(EventInstalling, w))
	if err := w.Install(ctx); err != nil {
		_ = w.Close()
		return nil, err
	}

	r.lock.Lock()
	if r.closed {
		r.lock.Unlock()
		_ = w.Close()
		return nil, errRegistrationClosed
	}
	replaced := r.waiting
	r.waiting = w
	active = r.active
	r.lock.Unlock()
	if replaced != nil {
		r.retire(replaced)
	}

	if active == nil || r.config.SkipWaiting {
		if active != nil {
			r.loggers.Infof(logMsgSkipWaiting, w.Version())
		}
		if err := r.activate(ctx, w); err != nil {
			return nil, err
		}
		return w, nil
	}
	if err := r.activateIfIdle(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// SkipWaiting activates the waiting worker now, without waiting for the active worker's requests to
// finish.
func (r *Registration) SkipWaiting(ctx context.Context) error {
	r.registerLock.Lock()
	defer r.registerLock.Unlock()
	r.lock.RLock()
	w := r.waiting
	r.lock.RUnlock()
	if w == nil {
		return errNoWaitingWorker
	}
	r.loggers.Infof(logMsgSkipWaiting, w.Version())
	return r.activate(ctx, w)
}

// Active returns the active worker, or nil if there is none yet.
func (r *Registration) Active() *Worker {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.active
}

// Waiting returns the installed worker that is waiting to take over, or nil.
func (r *Registration) Waiting() *Worker {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.waiting
}

// Subscribe registers fn to be called with every lifecycle event. fn is called synchronously and must
// not block. The returned function cancels the subscription.
func (r *Registration) Subscribe(fn func(Event)) func() {
	r.subLock.Lock()
	id := r.nextSubID
	r.nextSubID++
	r.subscribers[id] = fn
	r.subLock.Unlock()
	return func() {
		r.subLock.Lock()
		delete(r.subscribers, id)
		r.subLock.Unlock()
	}
}

// Status returns a snapshot of the workers and stores.
func (r *Registration) Status(ctx context.Context) Status {
	r.lock.RLock()
	active, waiting := r.active, r.waiting
	r.lock.RUnlock()

	status := Status{
		Active:      workerStatus(active),
		Waiting:     workerStatus(waiting),
		StorageKind: r.config.Storage.Kind(),
	}
	tags, err := r.config.Storage.Tags(ctx)
	if err != nil {
		r.loggers.Errorf(logMsgListStoresFailed, err)
		return status
	}
	sort.Strings(tags)
	status.StoreTags = tags
	status.StorageAvailable = true
	return status
}

// ServeHTTP handles a request with the active worker and writes its response.
//
// The request path and query are resolved against the origin base URL. The response carries the
// SourceHeader and VersionHeader headers. If the network fails and nothing is cached the status is 502;
// if no worker is active yet it is 503.
func (r *Registration) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	worker := r.acquireActive()
	if worker == nil {
		http.Error(w, errNoActiveWorker.Error(), http.StatusServiceUnavailable)
		return
	}
	defer r.release(worker)

	outReq, err := r.outboundRequest(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, source, err := worker.handle(outReq)
	if err != nil {
		w.Header().Set(logging.SourceHeader, sourceNetworkError)
		w.Header().Set(VersionHeader, worker.Version())
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close() //nolint:errcheck

	h := w.Header()
	for name, values := range resp.Header {
		h[name] = append([]string(nil), values...)
	}
	for _, name := range hopByHopHeaders {
		h.Del(name)
	}
	if h.Get("Content-Length") == "" && resp.ContentLength >= 0 {
		h.Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	h.Set(logging.SourceHeader, source)
	h.Set(VersionHeader, worker.Version())
	w.WriteHeader(resp.StatusCode)
	if req.Method != http.MethodHead {
		_, _ = io.Copy(w, resp.Body)
	}
}

// Close shuts down all workers, waiting for their background writes. The storage is not closed.
func (r *Registration) Close() error {
	r.lock.Lock()
	if r.closed {
		r.lock.Unlock()
		return nil
	}
	r.closed = true
	r.lock.Unlock()

	r.background.Wait()

	r.registerLock.Lock()
	defer r.registerLock.Unlock()
	r.lock.RLock()
	active, waiting := r.active, r.waiting
	r.lock.RUnlock()
	for _, w := range []*Worker{active, waiting} {
		if w != nil {
			_ = w.Close()
		}
	}
	return nil
}

func (r *Registration) outboundRequest(req *http.Request) (*http.Request, error) {
	target, err := manifest.ResolveURL(r.config.BaseURL, req.URL.RequestURI())
	if err != nil {
		return nil, errCannotResolveRequest(req.URL.RequestURI(), err)
	}
	out := req.Clone(req.Context())
	out.URL = target
	out.Host = ""
	out.RequestURI = ""
	for _, name := range hopByHopHeaders {
		out.Header.Del(name)
	}
	// let the transport negotiate compression, so that stored bodies are always decoded
	out.Header.Del("Accept-Encoding")
	if req.ContentLength == 0 {
		out.Body = nil
	}
	return out, nil
}

func (r *Registration) acquireActive() *Worker {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.active == nil || r.closed {
		return nil
	}
	r.active.acquire()
	return r.active
}

func (r *Registration) release(w *Worker) {
	if w.release() > 0 {
		return
	}
	r.lock.Lock()
	if r.closed || r.waiting == nil || r.activating || r.active != w {
		r.lock.Unlock()
		return
	}
	r.background.Add(1)
	r.lock.Unlock()
	go func() {
		defer r.background.Done()
		r.registerLock.Lock()
		defer r.registerLock.Unlock()
		_ = r.activateIfIdle(context.Background())
	}()
}

// activateIfIdle activates the waiting worker if the active worker has no requests in flight.
func (r *Registration) activateIfIdle(ctx context.Context) error {
	r.lock.RLock()
	active, waiting := r.active, r.waiting
	r.lock.RUnlock()
	if waiting == nil {
		return nil
	}
	if active != nil {
		if n := active.InFlight(); n > 0 {
			r.loggers.Infof(logMsgWaitingForHandoff, waiting.Version(), active.Version(), n)
			return nil
		}
	}
	return r.activate(ctx, waiting)
}

// activate makes w the active worker, provided it is still the waiting worker. The caller holds
// registerLock, so no other worker can be installing while w purges the other stores.
func (r *Registration) activate(ctx context.Context, w *Worker) error {
	r.lock.Lock()
	if r.closed || r.waiting != w || r.activating {
		r.lock.Unlock()
		return nil
	}
	r.activating = true
	r.lock.Unlock()

	err := w.Activate(ctx)

	r.lock.Lock()
	r.activating = false
	if err != nil || r.closed || r.waiting != w {
		r.lock.Unlock()
		return err
	}
	previous := r.active
	r.active = w
	r.waiting = nil
	r.lock.Unlock()

	r.publish(newEvent(EventControllerChange, w))
	if previous != nil {
		r.retire(previous)
	}
	return nil
}

func (r *Registration) retire(w *Worker) {
	r.loggers.Infof(logMsgRedundant, w.Version())
	r.publish(newEvent(EventRedundant, w))
	_ = w.Close()
}

func (r *Registration) workerStateChanged(w *Worker, state State) {
	if state == StateInstalling {
		return // Register publishes this before the first transition can be observed
	}
	r.publish(newEvent(eventKindForState(state), w))
}

func (r *Registration) publish(e Event) {
	r.subLock.Lock()
	subs := make([]func(Event), 0, len(r.subscribers))
	for _, fn := range r.subscribers {
		subs = append(subs, fn)
	}
	r.subLock.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}
