// Package offline implements the offline cache manager: versioned workers that pre-cache an asset
// manifest, serve requests cache-first with network fallback, and purge old cache generations when
// they activate, plus the Registration that hands traffic from one worker to the next.
package offline
