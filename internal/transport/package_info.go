// Package transport provides the HTTP transports that asset-relay uses to reach the origin: an
// ordinary HTTP(S) transport with optional proxy settings, or a transport that serves files from a
// local directory.
package transport
