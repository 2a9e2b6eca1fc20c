package manifest

import (
	"errors"
	"fmt"
)

// All log messages, error singletons, and error constructors for this package should be collected here,
// except for debug logging.

const (
	logMsgReloadedManifest             = "Reloaded manifest from %s (version %q, %d assets)"
	logMsgManifestUnchanged            = "Manifest file was rewritten but its content did not change"
	logMsgReloadFileNotFound           = "Manifest reload failed; file not found, will retry"
	logMsgReloadError                  = "Manifest reload failed; file is invalid or possibly incomplete, will retry (error: %s)"
	logMsgReloadUnchangedRetry         = "Manifest file has not changed since last failure, will wait and retry in case it is still being copied"
	logMsgReloadUnchangedNoMoreRetries = "Manifest reload failed, and no further changes were detected; giving up until next change (error: %s)"
	logMsgNoAssets                     = "Manifest version %q does not list any assets; nothing will be pre-cached"
)

var (
	errManifestNotObjectOrArray = errors.New("manifest must be a JSON object or array")
	errManifestNoVersion        = errors.New("manifest does not specify a version")
)

func errCannotReadManifest(filePath string, err error) error {
	return fmt.Errorf("unable to read manifest file %s: %w", filePath, err)
}

func errInvalidManifest(err error) error {
	return fmt.Errorf("invalid manifest: %w", err)
}

func errInvalidAssetURL(asset string, err error) error {
	return fmt.Errorf("invalid asset URL %q in manifest: %w", asset, err)
}

func errCreateWatcherFailed(filePath string, err error) error { // COVERAGE: can't cause this condition in unit tests
	return fmt.Errorf("unable to watch manifest file %q: %w", filePath, err)
}
