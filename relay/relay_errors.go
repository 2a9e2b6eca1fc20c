package relay

import (
	"errors"
	"fmt"
)

var (
	errAlreadyClosed         = errors.New("this Relay was already shut down")
	errInitializationTimeout = errors.New("timed out waiting for the first cache version to install")
)

func errNewMetricsManagerFailed(err error) error {
	return fmt.Errorf("unable to create metrics manager: %w", err)
}

func errStorageFailed(err error) error {
	return fmt.Errorf("unable to configure cache storage: %w", err)
}

func errOriginFailed(err error) error {
	return fmt.Errorf("unable to configure origin: %w", err)
}

func errManifestFailed(err error) error {
	return fmt.Errorf("unable to determine the cache manifest: %w", err)
}

const (
	logMsgRegistering        = "Registering cache version %q"
	logMsgRegisterFailed     = "Unable to register cache version %q: %s"
	logMsgManifestChanged    = "Manifest changed; registering cache version %q"
	logMsgExitOnRegisterFail = "Exiting because ExitOnError is set and the cache could not be installed"
)
