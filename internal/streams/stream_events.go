package streams

import (
	"github.com/aprendeyjuega/asset-relay/internal/offline"
	"github.com/aprendeyjuega/asset-relay/internal/util"

	"github.com/launchdarkly/eventsource"
)

// StatusEventName is the name of the event sent to each new stream connection with the current status.
const StatusEventName = "status"

// We use StringMemoizer for these events because the SSE server calls Data() once per connected client,
// and when nobody is connected we never need to compute it at all.

type deferredEvent struct {
	name   string
	result *util.StringMemoizer
}

func (e deferredEvent) Event() string { return e.name }
func (e deferredEvent) Id() string    { return "" } //nolint:golint,stylecheck
func (e deferredEvent) Data() string  { return e.result.Get() }

// MakeLifecycleEvent creates an event named after the lifecycle transition, such as "installed" or
// "controllerchange".
func MakeLifecycleEvent(e offline.Event) eventsource.Event {
	return deferredEvent{
		name:   string(e.Kind),
		result: util.NewStringMemoizer(func() string { return string(e.JSON()) }),
	}
}

// MakeStatusEvent creates a "status" event whose data is computed when first needed.
func MakeStatusEvent(currentStatus func() []byte) eventsource.Event {
	return deferredEvent{
		name:   StatusEventName,
		result: util.NewStringMemoizer(func() string { return string(currentStatus()) }),
	}
}
