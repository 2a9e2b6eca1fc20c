package metrics

import (
	"go.opencensus.io/tag"
)

const (
	defaultMetricsPrefix = "asset_relay"

	// Outcomes of a request handled by the cache manager
	OutcomeCache        = "cache"
	OutcomeNetwork      = "network"
	OutcomeFallback     = "fallback"
	OutcomePassthrough  = "passthrough"
	OutcomeNetworkError = "network_error"

	resultSuccess = "success"
	resultFailure = "failure"
)

var (
	versionTagKey, _ = tag.NewKey("version") //nolint:gochecknoglobals
	outcomeTagKey, _ = tag.NewKey("outcome") //nolint:gochecknoglobals
	resultTagKey, _  = tag.NewKey("result")  //nolint:gochecknoglobals
	routeTagKey, _   = tag.NewKey("route")   //nolint:gochecknoglobals
)
