package relay

import (
	"github.com/aprendeyjuega/asset-relay/internal/logging"
	"github.com/aprendeyjuega/asset-relay/internal/middleware"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/gorilla/mux"
)

// makeRouter creates and configures a Router containing all of the standard routes for the relay.
//
// The /status routes are handled by the relay itself; every other request goes to the cache manager,
// which serves it from the active cache version or from the origin.
func (r *Relay) makeRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(logging.GlobalContextLoggersMiddleware(r.loggers))
	if r.loggers.GetMinLevel() == ldlog.Debug {
		router.Use(logging.RequestLoggerMiddleware(r.loggers))
	}
	router.Handle("/status", statusHandler(r)).Methods("GET")
	router.Handle("/status/events", middleware.CountStreamConns(r.stream.Handler())).Methods("GET")
	router.Handle("/status/update", updateHandler(r)).Methods("POST")
	router.Handle("/status/skip-waiting", skipWaitingHandler(r)).Methods("POST")

	router.PathPrefix("/").Handler(r.registration)

	return router
}
