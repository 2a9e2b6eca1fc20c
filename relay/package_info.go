// Package relay contains the asset-relay application component that combines all of the internal
// components and implements the HTTP endpoints.
//
// This package is not in internal/ so that the exported Relay type can be used by external code to
// embed the cache in a customized application.
package relay
