package manifest

import (
	"net/url"
	"os"
	"strings"

	"github.com/aprendeyjuega/asset-relay/config"

	"github.com/launchdarkly/go-jsonstream/v3/jreader"
)

// DefaultAssets is the asset list of the app build that asset-relay was written for: its pages, script
// and style bundles, audio cues, vehicle backdrops, and install icons.
var DefaultAssets = []string{ //nolint:gochecknoglobals
	"/",
	"/index.html",
	"/assets/index.js",
	"/assets/index.css",
	"/audio/car.mp3",
	"/audio/plane.mp3",
	"/audio/boat.mp3",
	"/audio/grab.mp3",
	"/audio/paste.mp3",
	"/audio/brush.mp3",
	"/audio/water.mp3",
	"/audio/soap.mp3",
	"/audio/rub.mp3",
	"/audio/dry.mp3",
	"/audio/success.mp3",
	"/images/vehicles/road.svg",
	"/images/vehicles/sky.svg",
	"/images/vehicles/sea.svg",
	"/icon-192.png",
	"/icon-512.png",
}

// Manifest is a version tag together with the assets to pre-cache for that version. Assets are URLs,
// usually root-relative paths; order does not matter and duplicates are harmless.
type Manifest struct {
	Version string
	Assets  []string
}

// Parse reads a manifest in JSON format. The usual form is an object:
//
//	{"version": "game-app-v2", "assets": ["/", "/index.html"]}
//
// A bare array of assets is also accepted; in that case Version is empty and the caller supplies it.
func Parse(data []byte) (Manifest, error) {
	var m Manifest
	r := jreader.NewReader(data)
	v := r.Any()
	switch v.Kind {
	case jreader.ArrayValue:
		m.Assets = readAssets(&r, v.Array)
	case jreader.ObjectValue:
		for obj := v.Object; obj.Next(); {
			switch string(obj.Name()) {
			case "version":
				m.Version, _ = r.StringOrNull()
			case "assets":
				m.Assets = readAssets(&r, r.Array())
			default:
				r.SkipValue()
			}
		}
	default:
		if r.Error() == nil {
			return Manifest{}, errInvalidManifest(errManifestNotObjectOrArray)
		}
	}
	if err := r.Error(); err != nil {
		return Manifest{}, errInvalidManifest(err)
	}
	if err := r.RequireEOF(); err != nil {
		return Manifest{}, errInvalidManifest(err)
	}
	m.Version = strings.TrimSpace(m.Version)
	return m, nil
}

func readAssets(r *jreader.Reader, arr jreader.ArrayState) []string {
	assets := []string{}
	for arr.Next() {
		assets = append(assets, r.String())
	}
	return assets
}

// Load reads and parses a manifest file.
func Load(filePath string) (Manifest, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec
	if err != nil {
		return Manifest{}, errCannotReadManifest(filePath, err)
	}
	m, err := Parse(data)
	if err != nil {
		return Manifest{}, errCannotReadManifest(filePath, err)
	}
	return m, nil
}

// FromConfig determines the current manifest from the [Cache] configuration. A manifest file takes
// precedence over the Version and Asset settings, except that Version is used if the file does not
// name a version. If no assets are configured at all, DefaultAssets is used.
func FromConfig(c config.CacheConfig) (Manifest, error) {
	var m Manifest
	if c.ManifestFile != "" {
		loaded, err := Load(c.ManifestFile)
		if err != nil {
			return Manifest{}, err
		}
		m = loaded
	} else {
		m.Assets = append([]string(nil), c.Asset...)
	}
	if m.Version == "" {
		m.Version = strings.TrimSpace(c.Version)
	}
	if m.Version == "" {
		return Manifest{}, errManifestNoVersion
	}
	if m.Assets == nil {
		m.Assets = append([]string(nil), DefaultAssets...)
	}
	return m, nil
}

// Resolve returns the manifest's assets as absolute URLs, using ResolveURL. Blank entries are dropped.
func (m Manifest) Resolve(base *url.URL) ([]string, error) {
	ret := make([]string, 0, len(m.Assets))
	for _, a := range m.Assets {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		u, err := ResolveURL(base, a)
		if err != nil {
			return nil, errInvalidAssetURL(a, err)
		}
		ret = append(ret, u.String())
	}
	return ret, nil
}

// ResolveURL resolves ref against the origin base URL. The base URL is the root of the mirrored site,
// so a root-relative ref such as "/audio/car.mp3" is placed under the base path rather than replacing
// it. Other relative refs follow the usual rules, and absolute URLs are returned unchanged.
func ResolveURL(base *url.URL, ref string) (*url.URL, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	if r.Scheme != "" || r.Host != "" || !strings.HasPrefix(r.Path, "/") {
		return base.ResolveReference(r), nil
	}
	u := *base
	u.Path = strings.TrimSuffix(base.Path, "/") + r.Path
	u.RawPath = ""
	u.RawQuery = r.RawQuery
	u.Fragment = ""
	return &u, nil
}

// Equal returns true if both manifests have the same version and the same assets in the same order.
func (m Manifest) Equal(other Manifest) bool {
	if m.Version != other.Version || len(m.Assets) != len(other.Assets) {
		return false
	}
	for i, a := range m.Assets {
		if other.Assets[i] != a {
			return false
		}
	}
	return true
}
