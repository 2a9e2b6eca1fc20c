package metrics

import (
	"context"
	"strings"

	"github.com/aprendeyjuega/asset-relay/internal/logging"

	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
)

var (
	requestMeasure    = stats.Int64("requests", "Requests handled by the cache manager", stats.UnitDimensionless)         //nolint:gochecknoglobals
	precacheMeasure   = stats.Int64("precache", "Assets fetched while installing a version", stats.UnitDimensionless)     //nolint:gochecknoglobals
	storeWriteMeasure = stats.Int64("store_writes", "Responses written to a cache store", stats.UnitDimensionless)        //nolint:gochecknoglobals
	purgeMeasure      = stats.Int64("purged_stores", "Stale cache stores deleted on activation", stats.UnitDimensionless) //nolint:gochecknoglobals

	streamConnsMeasure    = stats.Int64("stream_connections", "Open lifecycle stream connections", stats.UnitDimensionless)       //nolint:gochecknoglobals
	newStreamConnsMeasure = stats.Int64("new_stream_connections", "Lifecycle stream connections opened", stats.UnitDimensionless) //nolint:gochecknoglobals
)

// RecordRequest counts one request for the given cache version, with an outcome such as OutcomeCache.
func RecordRequest(ctx context.Context, version, outcome string) {
	record(ctx, requestMeasure, tag.Insert(versionTagKey, sanitizeTagValue(version)),
		tag.Insert(outcomeTagKey, sanitizeTagValue(outcome)))
}

// RecordPrecache counts one attempt to pre-cache an asset while installing a version.
func RecordPrecache(ctx context.Context, version string, succeeded bool) {
	record(ctx, precacheMeasure, tag.Insert(versionTagKey, sanitizeTagValue(version)),
		tag.Insert(resultTagKey, result(succeeded)))
}

// RecordStoreWrite counts one detached write of a network response into a cache store.
func RecordStoreWrite(ctx context.Context, version string, succeeded bool) {
	record(ctx, storeWriteMeasure, tag.Insert(versionTagKey, sanitizeTagValue(version)),
		tag.Insert(resultTagKey, result(succeeded)))
}

// RecordPurge counts stale stores deleted when the given version activated.
func RecordPurge(ctx context.Context, version string, count int) {
	if count <= 0 {
		return
	}
	tagCtx, err := tag.New(ctx, tag.Insert(versionTagKey, sanitizeTagValue(version)))
	if err != nil {
		logging.GetGlobalContextLoggers(ctx).Errorf("Failed to create tags: %s", err)
		return
	}
	stats.Record(tagCtx, purgeMeasure.M(int64(count)))
}

// WithStreamConnection counts a new connection to the given route and adds it to the open connections
// until fn returns.
func WithStreamConnection(ctx context.Context, route string, fn func()) {
	tagCtx, err := tag.New(ctx, tag.Insert(routeTagKey, sanitizeTagValue(route)))
	if err != nil {
		logging.GetGlobalContextLoggers(ctx).Errorf("Failed to create tags: %s", err)
		fn()
		return
	}
	stats.Record(tagCtx, newStreamConnsMeasure.M(1), streamConnsMeasure.M(1))
	defer stats.Record(tagCtx, streamConnsMeasure.M(-1))
	fn()
}

func record(ctx context.Context, m *stats.Int64Measure, mutators ...tag.Mutator) {
	tagCtx, err := tag.New(ctx, mutators...)
	if err != nil {
		logging.GetGlobalContextLoggers(ctx).Errorf("Failed to create tags: %s", err)
		return
	}
	stats.Record(tagCtx, m.M(1))
}

func result(succeeded bool) string {
	if succeeded {
		return resultSuccess
	}
	return resultFailure
}

// Pad empty values to match tag keyset cardinality since empty strings are dropped
func sanitizeTagValue(v string) string {
	if strings.TrimSpace(v) == "" {
		return "_"
	}
	return strings.ReplaceAll(v, "/", "_")
}
