package relay

import (
	"net/http"
	"testing"

	st "github.com/aprendeyjuega/asset-relay/internal/sharedtest"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

func TestRequestLogging(t *testing.T) {
	url := "http://localhost/index.html"

	t.Run("requests are not logged by default", func(t *testing.T) {
		withStartedRelayCustom(t, makeTestConfig(t), relayTestBehavior{doNotEnableDebugLogging: true}, func(p relayTestParams) {
			req, _ := http.NewRequest("GET", url, nil)
			_, _ = st.DoRequest(req, p.relay)

			p.mockLog.AssertMessageMatch(t, false, ldlog.Debug, "method=GET url="+url)
		})
	})

	t.Run("requests are logged with their source when debug logging is enabled", func(t *testing.T) {
		withStartedRelay(t, makeTestConfig(t), func(p relayTestParams) {
			req, _ := http.NewRequest("GET", url, nil)
			_, _ = st.DoRequest(req, p.relay)

			p.mockLog.AssertMessageMatch(t, true, ldlog.Debug, "method=GET url="+url+" source=cache status=200")
		})
	})
}
