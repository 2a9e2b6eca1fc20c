package relay

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aprendeyjuega/asset-relay/config"
	"github.com/aprendeyjuega/asset-relay/internal/sharedtest"
	"github.com/aprendeyjuega/asset-relay/internal/store"

	ct "github.com/launchdarkly/go-configtypes"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"

	"github.com/stretchr/testify/require"
)

const testOrigin = "https://origin.test"

var testOriginFiles = sharedtest.OriginFiles{ //nolint:gochecknoglobals
	"/":                "<html>menu</html>",
	"/index.html":      "<html>menu</html>",
	"/assets/index.js": "console.log('hi')",
	"/audio/car.mp3":   "vroom",
}

var testAssets = []string{"/", "/index.html", "/assets/index.js", "/audio/car.mp3"} //nolint:gochecknoglobals

// Options for withStartedRelayCustom.
type relayTestBehavior struct {
	// All of the following are opt-in so the zero value is the one we're most likely to use in tests.
	skipWaitForInitialization bool         // true = don't wait for the first cache version to install
	doNotEnableDebugLogging   bool         // true = leave the default log level in place
	origin                    http.Handler // nil = serve testOriginFiles
	storage                   store.Storage
	exitOnError               func()
}

// Components that are passed from withStartedRelay/withStartedRelayCustom to the test logic.
type relayTestParams struct {
	t        *testing.T
	relay    *Relay
	storage  store.Storage
	requests <-chan httphelpers.HTTPRequestInfo
	mockLog  *ldlogtest.MockLog
}

func makeTestConfig(t *testing.T) config.Config {
	c := config.DefaultConfig
	origin, err := ct.NewOptURLAbsoluteFromString(testOrigin)
	require.NoError(t, err)
	c.Main.OriginURI = origin
	c.Cache.Asset = testAssets
	return c
}

// writeManifestFile creates a manifest file in a temporary directory that is removed after the test.
func writeManifestFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// withStartedRelay initializes a Relay instance, runs a block of test code against it, and then
// ensures that everything is cleaned up.
//
// Log output is redirected to a MockLog which can be read by tests. Requests to the origin go to an
// in-process handler and are recorded.
func withStartedRelay(t *testing.T, c config.Config, action func(relayTestParams)) {
	withStartedRelayCustom(t, c, relayTestBehavior{}, action)
}

// withStartedRelayCustom is the same as withStartedRelay but allows more customization of the
// test setup.
func withStartedRelayCustom(t *testing.T, c config.Config, behavior relayTestBehavior, action func(relayTestParams)) {
	mockLog := ldlogtest.NewMockLog()
	defer mockLog.DumpIfTestFailed(t)

	if !c.Main.LogLevel.IsDefined() && !behavior.doNotEnableDebugLogging {
		c.Main.LogLevel = config.NewOptLogLevel(ldlog.Debug)
		mockLog.Loggers.SetMinLevel(ldlog.Debug)
	}

	origin := behavior.origin
	if origin == nil {
		origin = sharedtest.OriginHandler(testOriginFiles)
	}
	recorder, requests := httphelpers.RecordingHandler(origin)

	storage := behavior.storage
	if storage == nil {
		storage = store.NewMemoryStorage()
	}

	relay, err := newRelayInternal(c, relayInternalOptions{
		loggers: mockLog.Loggers,
		storageFactory: func(config.Config, ldlog.Loggers) (store.Storage, error) {
			return storage, nil
		},
		client:      httphelpers.ClientFromHandler(recorder),
		exitOnError: behavior.exitOnError,
	})
	require.NoError(t, err)
	defer relay.Close()
	if !behavior.skipWaitForInitialization {
		require.NoError(t, relay.waitForInitialization(time.Second))
	}

	action(relayTestParams{
		t:        t,
		relay:    relay,
		storage:  storage,
		requests: requests,
		mockLog:  mockLog,
	})
}

func (p relayTestParams) drainRequests() int {
	n := 0
	for {
		select {
		case <-p.requests:
			n++
		default:
			return n
		}
	}
}
