package middleware

import (
	"net/http"

	"github.com/aprendeyjuega/asset-relay/internal/metrics"

	"github.com/gorilla/mux"
)

// CountStreamConns is a middleware function that increments the total number of stream connections,
// and also increments the number of open stream connections until the handler ends. Connections are
// tagged with the route template, or the request path if there is no route.
func CountStreamConns(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		metrics.WithStreamConnection(req.Context(), routeName(req), func() {
			handler.ServeHTTP(w, req)
		})
	})
}

func routeName(req *http.Request) string {
	if route := mux.CurrentRoute(req); route != nil {
		// Ignoring internal routing error that would have been ignored anyway
		if template, err := route.GetPathTemplate(); err == nil {
			return template
		}
	}
	return req.URL.Path
}
