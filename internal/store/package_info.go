// Package store contains the storage backends that hold cached asset responses.
//
// Storage is organized in generations: each version tag of the asset manifest gets its own Store, and
// whole generations are deleted when a newer version activates. Within a Store, entries are keyed by
// request method and URL (see Key) and hold a Snapshot of the response.
package store
