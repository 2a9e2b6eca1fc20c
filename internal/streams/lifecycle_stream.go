package streams

import (
	"net/http"
	"sync"
	"time"

	"github.com/aprendeyjuega/asset-relay/internal/offline"

	"github.com/launchdarkly/eventsource"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// LifecycleChannel is the eventsource channel that all lifecycle stream connections subscribe to.
const LifecycleChannel = "lifecycle"

// DefaultHeartbeatInterval is how often a comment is sent to keep idle connections open.
const DefaultHeartbeatInterval = 3 * time.Minute

// LifecycleStream is an SSE endpoint that tells connected clients about cache lifecycle events.
//
// Every new connection first receives a "status" event with the current status, and then one event per
// lifecycle transition.
type LifecycleStream struct {
	server    *eventsource.Server
	closeCh   chan struct{}
	closeOnce sync.Once
	loggers   ldlog.Loggers
}

// statusRepository is the eventsource Repository that provides the initial event for each connection.
type statusRepository struct {
	currentStatus func() []byte
}

func (r *statusRepository) Replay(channel, id string) (out chan eventsource.Event) {
	out = make(chan eventsource.Event)
	go func() {
		defer close(out)
		out <- MakeStatusEvent(r.currentStatus)
	}()
	return
}

// NewLifecycleStream creates a LifecycleStream. currentStatus is called for each new connection. A zero
// heartbeatInterval disables heartbeats, and a zero maxConnTime means connections are never closed by
// the server.
func NewLifecycleStream(
	currentStatus func() []byte,
	maxConnTime time.Duration,
	heartbeatInterval time.Duration,
	loggers ldlog.Loggers,
) *LifecycleStream {
	s := &LifecycleStream{
		server:  newSSEServer(maxConnTime),
		closeCh: make(chan struct{}),
		loggers: loggers,
	}
	s.server.Register(LifecycleChannel, &statusRepository{currentStatus: currentStatus})
	if heartbeatInterval > 0 {
		go s.runHeartbeats(heartbeatInterval)
	}
	return s
}

func newSSEServer(maxConnTime time.Duration) *eventsource.Server {
	s := eventsource.NewServer()
	s.Gzip = false
	s.AllowCORS = true
	s.ReplayAll = true
	s.MaxConnTime = maxConnTime
	return s
}

// Handler returns the HTTP handler for stream connections.
func (s *LifecycleStream) Handler() http.HandlerFunc {
	return s.server.Handler(LifecycleChannel)
}

// Publish sends a lifecycle event to all connected clients. It can be passed directly to
// offline.Registration.Subscribe.
func (s *LifecycleStream) Publish(e offline.Event) {
	s.loggers.Debugf("Publishing %q event for cache version %q", e.Kind, e.Version)
	s.server.Publish([]string{LifecycleChannel}, MakeLifecycleEvent(e))
}

// SendHeartbeat sends keep-alive data on the stream.
func (s *LifecycleStream) SendHeartbeat() {
	s.server.PublishComment([]string{LifecycleChannel}, "")
}

// Close disconnects all clients and stops the heartbeats.
func (s *LifecycleStream) Close() {
	s.closeOnce.Do(func() {
		close(s.closeCh)
		s.server.Close()
	})
}

func (s *LifecycleStream) runHeartbeats(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.closeCh:
			return
		case <-ticker.C:
			s.SendHeartbeat()
		}
	}
}
