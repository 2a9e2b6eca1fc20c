// Package manifest describes the set of assets that are pre-cached when a version of the app is
// installed, and watches a manifest file for new versions.
package manifest
