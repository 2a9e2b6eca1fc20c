// Package streams publishes cache lifecycle events to server-sent event streams.
package streams
