package metrics

import (
	"sync"

	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	registerViewsOnce sync.Once //nolint:gochecknoglobals
	registerViewsErr  error     //nolint:gochecknoglobals

	requestView = &view.View{ //nolint:gochecknoglobals
		Measure:     requestMeasure,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{versionTagKey, outcomeTagKey},
	}
	precacheView = &view.View{ //nolint:gochecknoglobals
		Measure:     precacheMeasure,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{versionTagKey, resultTagKey},
	}
	storeWriteView = &view.View{ //nolint:gochecknoglobals
		Measure:     storeWriteMeasure,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{versionTagKey, resultTagKey},
	}
	purgeView = &view.View{ //nolint:gochecknoglobals
		Measure:     purgeMeasure,
		Aggregation: view.Sum(),
		TagKeys:     []tag.Key{versionTagKey},
	}
	streamConnsView = &view.View{ //nolint:gochecknoglobals
		Measure:     streamConnsMeasure,
		Aggregation: view.Sum(),
		TagKeys:     []tag.Key{routeTagKey},
	}
	newStreamConnsView = &view.View{ //nolint:gochecknoglobals
		Measure:     newStreamConnsMeasure,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{routeTagKey},
	}
)

func getViews() []*view.View {
	return []*view.View{requestView, precacheView, storeWriteView, purgeView, streamConnsView, newStreamConnsView}
}

// RegisterViews makes the cache views available to all OpenCensus exporters. Only the first call has
// any effect.
func RegisterViews() error {
	registerViewsOnce.Do(func() {
		if err := view.Register(getViews()...); err != nil {
			registerViewsErr = errRegisteringViews(err)
		}
	})
	return registerViewsErr
}
