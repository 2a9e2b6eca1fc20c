package offline

import (
	"time"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// EventKind names a lifecycle event published by a Registration.
type EventKind string

const (
	// EventInstalling is published when a worker starts pre-caching.
	EventInstalling EventKind = "installing"
	// EventInstalled is published when a worker has finished pre-caching.
	EventInstalled EventKind = "installed"
	// EventActivated is published when a worker has purged old stores and become active.
	EventActivated EventKind = "activated"
	// EventControllerChange is published when requests start going to a different worker.
	EventControllerChange EventKind = "controllerchange"
	// EventRedundant is published when a worker is replaced and will handle no new requests.
	EventRedundant EventKind = "redundant"
)

// Event describes one lifecycle transition.
type Event struct {
	Kind     EventKind
	WorkerID string
	Version  string
	Time     time.Time
}

// WriteJSON writes the event as a JSON object.
func (e Event) WriteJSON(w *jwriter.Writer) {
	obj := w.Object()
	obj.Name("kind").String(string(e.Kind))
	obj.Name("workerId").String(e.WorkerID)
	obj.Name("version").String(e.Version)
	obj.Name("time").Int(int(e.Time.UnixMilli()))
	obj.End()
}

// JSON returns the event as a JSON object.
func (e Event) JSON() []byte {
	w := jwriter.NewWriter()
	e.WriteJSON(&w)
	return w.Bytes()
}

func newEvent(kind EventKind, w *Worker) Event {
	return Event{Kind: kind, WorkerID: w.ID(), Version: w.Version(), Time: time.Now()}
}

func eventKindForState(state State) EventKind {
	switch state {
	case StateInstalled:
		return EventInstalled
	case StateActive:
		return EventActivated
	default:
		return EventInstalling
	}
}
