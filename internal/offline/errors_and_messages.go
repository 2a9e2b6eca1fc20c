package offline

import (
	"errors"
	"fmt"
)

const (
	logMsgInstalling         = "Installing cache version %q (%d assets)"
	logMsgInstalled          = "Cache version %q installed; pre-cached %d of %d assets"
	logMsgStoreOpenFailed    = "Unable to open cache store %q; requests will go to the network: %s"
	logMsgPrecacheFailed     = "Failed to pre-cache %s: %s"
	logMsgPrecacheNotStored  = "Did not pre-cache %s: origin returned status %d"
	logMsgPrecacheOpaque     = "Did not pre-cache %s: redirected to another origin"
	logMsgActivated          = "Cache version %q is now active"
	logMsgDeletedStaleStore  = "Deleted stale cache store %q"
	logMsgDeleteStoreFailed  = "Unable to delete stale cache store %q: %s"
	logMsgListStoresFailed   = "Unable to list cache stores: %s"
	logMsgStoreReadFailed    = "Cache read failed for %s: %s"
	logMsgStoreWriteFailed   = "Failed to cache response for %s: %s"
	logMsgServedFallback     = "Network request for %s failed (%s); serving cached copy"
	logMsgNetworkFailed      = "Network request for %s failed and no cached copy exists: %s"
	logMsgWaitingForHandoff  = "Cache version %q is waiting; version %q still has %d requests in flight"
	logMsgSkipWaiting        = "Activating cache version %q without waiting"
	logMsgRedundant          = "Cache version %q was replaced"
	logMsgRegisterSameActive = "Cache version %q is already active"
)

var (
	errRegistrationClosed = errors.New("registration was already closed")
	errNoWaitingWorker    = errors.New("no cache version is waiting to activate")
	errNoActiveWorker     = errors.New("no cache version is active yet")
)

func errNetworkFailure(url string, err error) error {
	return fmt.Errorf("unable to fetch %s: %w", url, err)
}

func errCannotResolveRequest(path string, err error) error {
	return fmt.Errorf("cannot map request path %q to the origin: %w", path, err)
}

// IsNoWaitingWorker returns true if the error came from SkipWaiting when there was nothing to activate.
func IsNoWaitingWorker(err error) bool {
	return errors.Is(err, errNoWaitingWorker)
}

// IsRegistrationClosed returns true if the error came from using a Registration after Close.
func IsRegistrationClosed(err error) bool {
	return errors.Is(err, errRegistrationClosed)
}
