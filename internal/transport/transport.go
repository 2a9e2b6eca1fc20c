package transport

import (
	"net/http"
	"net/url"

	"github.com/aprendeyjuega/asset-relay/config"
	"github.com/aprendeyjuega/asset-relay/internal/util"
	"github.com/aprendeyjuega/asset-relay/internal/version"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-server-sdk/v7/ldcomponents"
	"github.com/launchdarkly/go-server-sdk/v7/ldhttp"
	"github.com/launchdarkly/go-server-sdk/v7/ldntlm"
)

// DirOriginURL is the origin base URL used when content is served from a local directory. Cache keys
// for such content are file URLs, so they can never collide with content from a network origin.
const DirOriginURL = "file:///"

// UserAgent is sent on every request to a network origin that does not already have a User-Agent.
const UserAgent = "AssetRelay/" + version.Version

// Origin describes where uncached content comes from.
type Origin struct {
	// BaseURL is the absolute URL that request paths are resolved against.
	BaseURL *url.URL
	// Transport performs requests to the origin.
	Transport http.RoundTripper
}

// Client returns an HTTP client that uses the origin transport and follows redirects.
func (o Origin) Client() *http.Client {
	return &http.Client{Transport: o.Transport}
}

// NewOrigin creates the Origin described by the [Main] and [Proxy] configuration.
func NewOrigin(allConfig config.Config, loggers ldlog.Loggers) (Origin, error) {
	if allConfig.Main.OriginDir != "" {
		t, err := NewDirTransport(allConfig.Main.OriginDir)
		if err != nil {
			return Origin{}, err
		}
		loggers.Infof(logMsgUsingOriginDir, allConfig.Main.OriginDir)
		base, _ := url.Parse(DirOriginURL)
		return Origin{BaseURL: base, Transport: t}, nil
	}
	if !allConfig.Main.OriginURI.IsDefined() {
		return Origin{}, errNoOrigin
	}
	t, err := NewHTTPTransport(allConfig.Proxy, loggers)
	if err != nil {
		return Origin{}, err
	}
	base := *allConfig.Main.OriginURI.Get()
	loggers.Infof(logMsgUsingOriginURI, util.RedactURL(base.String()))
	return Origin{BaseURL: &base, Transport: t}, nil
}

// NewHTTPTransport creates a transport for a network origin, using the proxy, NTLM proxy authentication,
// and CA certificates from the [Proxy] configuration if any.
func NewHTTPTransport(proxyConfig config.ProxyConfig, loggers ldlog.Loggers) (http.RoundTripper, error) {
	if !proxyConfig.URL.IsDefined() && proxyConfig.NTLMAuth {
		return nil, errNTLMWithoutProxyURL
	}
	if proxyConfig.URL.IsDefined() {
		loggers.Infof(logMsgUsingProxy, util.RedactURL(proxyConfig.URL.String()))
	}

	transportOpts := []ldhttp.TransportOption{
		ldhttp.ConnectTimeoutOption(ldcomponents.DefaultConnectTimeout),
	}
	for _, filePath := range proxyConfig.CACertFiles.Values() {
		if filePath != "" {
			transportOpts = append(transportOpts, ldhttp.CACertFileOption(filePath))
		}
	}

	if proxyConfig.NTLMAuth {
		if proxyConfig.User == "" || proxyConfig.Password == "" {
			return nil, errNTLMWithoutCredentials
		}
		factory, err := ldntlm.NewNTLMProxyHTTPClientFactory(proxyConfig.URL.String(),
			proxyConfig.User, proxyConfig.Password, proxyConfig.Domain, transportOpts...)
		if err != nil {
			return nil, errCannotConfigureTransport(err)
		}
		loggers.Info(logMsgNTLMEnabled)
		return userAgentTransport{base: factory().Transport}, nil
	}

	if proxyConfig.URL.IsDefined() {
		transportOpts = append(transportOpts, ldhttp.ProxyOption(*proxyConfig.URL.Get()))
	}
	t, _, err := ldhttp.NewHTTPTransport(transportOpts...)
	if err != nil {
		return nil, errCannotConfigureTransport(err)
	}
	return userAgentTransport{base: t}, nil
}

type userAgentTransport struct {
	base http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", UserAgent)
	return t.base.RoundTrip(r)
}
