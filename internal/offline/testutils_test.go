package offline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aprendeyjuega/asset-relay/internal/store"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"

	"github.com/stretchr/testify/require"
)

const testOrigin = "https://origin.test"

var errFakeNetwork = errors.New("sorry, no network")

// originContent is what the fake origin serves: 200 for these paths, 404 for anything else.
var originContent = map[string]string{ //nolint:gochecknoglobals
	"/":                "<html>menu</html>",
	"/index.html":      "<html>menu</html>",
	"/assets/index.js": "console.log('hi')",
	"/audio/car.mp3":   "vroom",
	"/audio/boat.mp3":  "splash",
}

func originHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := originContent[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(body))
	})
}

func assetURL(path string) string {
	return testOrigin + path
}

func mustParseURL(s string) *url.URL {
	u, err := url.Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

type fetcherFunc func(*http.Request) (*http.Response, error)

func (f fetcherFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

// countingStorage wraps a Storage and counts reads and writes on every Store it opens.
type countingStorage struct {
	store.Storage
	gets int64
	puts int64
}

type countingStore struct {
	store.Store
	owner *countingStorage
}

func newCountingStorage() *countingStorage {
	return &countingStorage{Storage: store.NewMemoryStorage()}
}

func (c *countingStorage) Open(ctx context.Context, tag string) (store.Store, error) {
	s, err := c.Storage.Open(ctx, tag)
	if err != nil {
		return nil, err
	}
	return &countingStore{Store: s, owner: c}, nil
}

func (c *countingStorage) getCount() int64 { return atomic.LoadInt64(&c.gets) }
func (c *countingStorage) putCount() int64 { return atomic.LoadInt64(&c.puts) }

func (s *countingStore) Get(ctx context.Context, key string) (store.Snapshot, bool, error) {
	atomic.AddInt64(&s.owner.gets, 1)
	return s.Store.Get(ctx, key)
}

func (s *countingStore) Put(ctx context.Context, key string, snapshot store.Snapshot) error {
	atomic.AddInt64(&s.owner.puts, 1)
	return s.Store.Put(ctx, key, snapshot)
}

// brokenStorage fails every operation.
type brokenStorage struct{}

var errBrokenStorage = errors.New("storage is down")

func (brokenStorage) Kind() string { return "broken" }
func (brokenStorage) Open(context.Context, string) (store.Store, error) {
	return nil, errBrokenStorage
}
func (brokenStorage) Tags(context.Context) ([]string, error)       { return nil, errBrokenStorage }
func (brokenStorage) Delete(context.Context, string) (bool, error) { return false, errBrokenStorage }
func (brokenStorage) Close() error                                 { return nil }

// undeletableStorage refuses to delete stores.
type undeletableStorage struct {
	store.Storage
}

func (undeletableStorage) Delete(context.Context, string) (bool, error) {
	return false, errBrokenStorage
}

// cancellingStorage cancels a context, once armed, as soon as the stores are listed.
type cancellingStorage struct {
	store.Storage
	cancel context.CancelFunc
	lock   sync.Mutex
}

func (c *cancellingStorage) arm(cancel context.CancelFunc) {
	c.lock.Lock()
	c.cancel = cancel
	c.lock.Unlock()
}

func (c *cancellingStorage) Tags(ctx context.Context) ([]string, error) {
	c.lock.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.lock.Unlock()
	if cancel != nil {
		cancel()
	}
	return c.Storage.Tags(ctx)
}

// switchableOrigin serves originHandler until it is taken offline, after which every connection fails.
type switchableOrigin struct {
	offline atomic.Bool
}

func (o *switchableOrigin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if o.offline.Load() {
		httphelpers.BrokenConnectionHandler().ServeHTTP(w, r)
		return
	}
	originHandler().ServeHTTP(w, r)
}

type workerTestParams struct {
	t        *testing.T
	storage  store.Storage
	worker   *Worker
	requests <-chan httphelpers.HTTPRequestInfo
	mockLog  *ldlogtest.MockLog
}

type workerTestOptions struct {
	assets  []string
	storage store.Storage
	handler http.Handler
	client  Fetcher
	methods []string
}

func workerTest(t *testing.T, opts workerTestOptions, action func(p workerTestParams)) {
	mockLog := ldlogtest.NewMockLog()
	mockLog.Loggers.SetMinLevel(ldlog.Debug)
	defer mockLog.DumpIfTestFailed(t)

	storage := opts.storage
	if storage == nil {
		storage = store.NewMemoryStorage()
	}
	handler := opts.handler
	if handler == nil {
		handler = originHandler()
	}
	recorder, requests := httphelpers.RecordingHandler(handler)
	client := opts.client
	if client == nil {
		client = httphelpers.ClientFromHandler(recorder)
	}

	w := NewWorker(WorkerConfig{
		Version:     "game-app-v1",
		Assets:      opts.assets,
		Storage:     storage,
		Client:      client,
		SafeMethods: opts.methods,
		Loggers:     mockLog.Loggers,
	})
	defer w.Close()

	action(workerTestParams{t: t, storage: storage, worker: w, requests: requests, mockLog: mockLog})
}

func (p workerTestParams) get(path string) *http.Request {
	req, err := http.NewRequest(http.MethodGet, assetURL(path), nil)
	require.NoError(p.t, err)
	return req
}

func (p workerTestParams) stored(tag, path string) (store.Snapshot, bool) {
	s, err := p.storage.Open(context.Background(), tag)
	require.NoError(p.t, err)
	snapshot, found, err := s.Get(context.Background(), "GET "+assetURL(path))
	require.NoError(p.t, err)
	return snapshot, found
}

func (p workerTestParams) drainRequests() int {
	n := 0
	for {
		select {
		case <-p.requests:
			n++
		default:
			return n
		}
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	defer resp.Body.Close() //nolint:errcheck
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}
