// Package version contains the current version of asset-relay.
package version

// Version is the package version. It is updated by the release process.
const Version = "1.0.0"
