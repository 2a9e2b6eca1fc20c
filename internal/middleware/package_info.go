// Package middleware contains helpers for adding standard behavior like metrics to HTTP endpoints.
package middleware
