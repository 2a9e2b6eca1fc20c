package application

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aprendeyjuega/asset-relay/config"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// DefaultShutdownTimeout is how long ShutdownHTTPServer waits for open requests to finish.
const DefaultShutdownTimeout = 10 * time.Second

// StartHTTPServer starts the server, with or without TLS. It returns immediately, starting the server
// on a separate goroutine; if the server fails to start up, it sends an error to the error channel.
// The channel is closed when the server stops after a call to Shutdown.
func StartHTTPServer(
	mainConfig config.MainConfig,
	port int,
	handler http.Handler,
	loggers ldlog.Loggers,
) (*http.Server, <-chan error) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if mainConfig.TLSEnabled && mainConfig.TLSMinVersion.IsDefined() {
		srv.TLSConfig = &tls.Config{ //nolint:gosec // linter doesn't want to see MinVersion being set to a variable
			MinVersion: mainConfig.TLSMinVersion.Get(),
		}
	}

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		var err error
		loggers.Infof("Starting server listening on port %d", port)
		if mainConfig.TLSEnabled {
			message := "TLS enabled for server"
			if mainConfig.TLSMinVersion.IsDefined() {
				message += fmt.Sprintf(" (minimum TLS version: %s)", mainConfig.TLSMinVersion)
			}
			loggers.Info(message)
			err = srv.ListenAndServeTLS(mainConfig.TLSCert, mainConfig.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return srv, errCh
}

// ShutdownHTTPServer stops accepting connections and waits up to timeout for open requests to finish.
// Connections still open after that, such as lifecycle streams, are cut off by the caller's Close.
func ShutdownHTTPServer(srv *http.Server, timeout time.Duration, loggers ldlog.Loggers) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		loggers.Warnf("Server did not shut down cleanly: %s", err)
	}
}
