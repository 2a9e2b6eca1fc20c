package config

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/assert"

	ct "github.com/launchdarkly/go-configtypes"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

type testDataValidConfig struct {
	name        string
	makeConfig  func(c *Config)
	envVars     map[string]string
	fileContent string
}

type testDataInvalidConfig struct {
	name         string
	envVarsError string
	fileError    string
	envVars      map[string]string
	fileContent  string
}

const testOriginURI = "http://origin.example"

func (tdc testDataValidConfig) assertResult(t *testing.T, actualConfig Config) {
	var expectedConfig Config
	tdc.makeConfig(&expectedConfig)
	assert.Equal(t, expectedConfig, actualConfig)
}

func newOptURLAbsoluteMustBeValid(urlString string) ct.OptURLAbsolute {
	o, err := ct.NewOptURLAbsoluteFromString(urlString)
	if err != nil {
		panic(err)
	}
	return o
}

func withOrigin(vars map[string]string) map[string]string {
	ret := map[string]string{"ORIGIN_URI": testOriginURI}
	for k, v := range vars {
		ret[k] = v
	}
	return ret
}

func makeValidConfigs() []testDataValidConfig {
	return []testDataValidConfig{
		makeValidConfigMinimal(),
		makeValidConfigOriginDir(),
		makeValidConfigAllMainProps(),
		makeValidConfigCache(),
		makeValidConfigSQLite(),
		makeValidConfigRedisURL(),
		makeValidConfigRedisHostAndPort(),
		makeValidConfigRedisHostOnly(),
		makeValidConfigConsul(),
		makeValidConfigDynamoDB(),
		makeValidConfigProxy(),
		makeValidConfigProxyNTLM(),
		makeValidConfigDatadog(),
		makeValidConfigStackdriver(),
		makeValidConfigPrometheus(),
	}
}

func makeValidConfigMinimal() testDataValidConfig {
	return testDataValidConfig{
		name: "minimal",
		makeConfig: func(c *Config) {
			c.Main.OriginURI = newOptURLAbsoluteMustBeValid(testOriginURI)
			c.Cache.Version = "v1"
		},
		envVars: map[string]string{
			"ORIGIN_URI":    testOriginURI,
			"CACHE_VERSION": "v1",
		},
		fileContent: `
[Main]
OriginURI = "http://origin.example"

[Cache]
Version = v1
`,
	}
}

func makeValidConfigOriginDir() testDataValidConfig {
	return testDataValidConfig{
		name: "origin dir",
		makeConfig: func(c *Config) {
			c.Main.OriginDir = "/srv/app/build"
			c.Cache.Version = "v1"
		},
		envVars: map[string]string{
			"ORIGIN_DIR":    "/srv/app/build",
			"CACHE_VERSION": "v1",
		},
		fileContent: `
[Main]
OriginDir = /srv/app/build

[Cache]
Version = v1
`,
	}
}

func makeValidConfigAllMainProps() testDataValidConfig {
	return testDataValidConfig{
		name: "all main properties",
		makeConfig: func(c *Config) {
			c.Main = MainConfig{
				Port:          mustOptIntGreaterThanZero(8333),
				OriginURI:     newOptURLAbsoluteMustBeValid(testOriginURI),
				ExitOnError:   true,
				TLSEnabled:    true,
				TLSCert:       "cert",
				TLSKey:        "key",
				TLSMinVersion: NewOptTLSVersion(tls.VersionTLS12),
				LogLevel:      NewOptLogLevel(ldlog.Warn),
			}
			c.Cache.Version = "v1"
		},
		envVars: map[string]string{
			"PORT":            "8333",
			"ORIGIN_URI":      testOriginURI,
			"EXIT_ON_ERROR":   "1",
			"TLS_ENABLED":     "1",
			"TLS_CERT":        "cert",
			"TLS_KEY":         "key",
			"TLS_MIN_VERSION": "1.2",
			"LOG_LEVEL":       "warn",
			"CACHE_VERSION":   "v1",
		},
		fileContent: `
[Main]
Port = 8333
OriginURI = "http://origin.example"
ExitOnError = 1
TLSEnabled = 1
TLSCert = "cert"
TLSKey = "key"
TLSMinVersion = "1.2"
LogLevel = "warn"

[Cache]
Version = v1
`,
	}
}

func makeValidConfigCache() testDataValidConfig {
	return testDataValidConfig{
		name: "cache properties",
		makeConfig: func(c *Config) {
			c.Main.OriginURI = newOptURLAbsoluteMustBeValid(testOriginURI)
			c.Cache = CacheConfig{
				Version:             "game-app-v2",
				Asset:               []string{"/", "/audio/car.mp3"},
				SkipWaiting:         ct.NewOptBool(false),
				PrecacheConcurrency: mustOptIntGreaterThanZero(2),
				SafeMethod:          []string{"GET", "HEAD"},
			}
		},
		envVars: withOrigin(map[string]string{
			"CACHE_VERSION":              "game-app-v2",
			"CACHE_ASSETS":               "/,/audio/car.mp3",
			"CACHE_SKIP_WAITING":         "false",
			"CACHE_PRECACHE_CONCURRENCY": "2",
			"CACHE_SAFE_METHODS":         "get,HEAD",
		}),
		fileContent: `
[Main]
OriginURI = "http://origin.example"

[Cache]
Version = game-app-v2
Asset = /
Asset = /audio/car.mp3
SkipWaiting = false
PrecacheConcurrency = 2
SafeMethod = get
SafeMethod = HEAD
`,
	}
}

func makeValidConfigSQLite() testDataValidConfig {
	return testDataValidConfig{
		name: "SQLite",
		makeConfig: func(c *Config) {
			c.Main.OriginURI = newOptURLAbsoluteMustBeValid(testOriginURI)
			c.Cache.Version = "v1"
			c.SQLite.Path = "/var/lib/asset-relay/cache.db"
		},
		envVars: withOrigin(map[string]string{
			"CACHE_VERSION": "v1",
			"SQLITE_PATH":   "/var/lib/asset-relay/cache.db",
		}),
		fileContent: `
[Main]
OriginURI = "http://origin.example"

[Cache]
Version = v1

[SQLite]
Path = /var/lib/asset-relay/cache.db
`,
	}
}

func makeValidConfigRedisURL() testDataValidConfig {
	return testDataValidConfig{
		name: "Redis URL",
		makeConfig: func(c *Config) {
			c.Main.OriginURI = newOptURLAbsoluteMustBeValid(testOriginURI)
			c.Cache.Version = "v1"
			c.Redis = RedisConfig{
				URL:      newOptURLAbsoluteMustBeValid("redis://redishost:3000"),
				TLS:      true,
				Password: "pass",
				Prefix:   "kiosk",
			}
		},
		envVars: withOrigin(map[string]string{
			"CACHE_VERSION":  "v1",
			"USE_REDIS":      "1",
			"REDIS_URL":      "redis://redishost:3000",
			"REDIS_TLS":      "1",
			"REDIS_PASSWORD": "pass",
			"REDIS_PREFIX":   "kiosk",
		}),
		fileContent: `
[Main]
OriginURI = "http://origin.example"

[Cache]
Version = v1

[Redis]
URL = "redis://redishost:3000"
TLS = 1
Password = "pass"
Prefix = "kiosk"
`,
	}
}

func makeValidConfigRedisHostAndPort() testDataValidConfig {
	return testDataValidConfig{
		name: "Redis host and port",
		makeConfig: func(c *Config) {
			c.Main.OriginURI = newOptURLAbsoluteMustBeValid(testOriginURI)
			c.Cache.Version = "v1"
			c.Redis.URL = newOptURLAbsoluteMustBeValid("redis://redishost:3000")
		},
		envVars: withOrigin(map[string]string{
			"CACHE_VERSION": "v1",
			"USE_REDIS":     "1",
			"REDIS_HOST":    "redishost",
			"REDIS_PORT":    "3000",
		}),
		fileContent: `
[Main]
OriginURI = "http://origin.example"

[Cache]
Version = v1

[Redis]
Host = "redishost"
Port = 3000
`,
	}
}

func makeValidConfigRedisHostOnly() testDataValidConfig {
	return testDataValidConfig{
		name: "Redis host only",
		makeConfig: func(c *Config) {
			c.Main.OriginURI = newOptURLAbsoluteMustBeValid(testOriginURI)
			c.Cache.Version = "v1"
			c.Redis.URL = newOptURLAbsoluteMustBeValid("redis://redishost:6379")
		},
		envVars: withOrigin(map[string]string{
			"CACHE_VERSION": "v1",
			"USE_REDIS":     "1",
			"REDIS_HOST":    "redishost",
		}),
		fileContent: `
[Main]
OriginURI = "http://origin.example"

[Cache]
Version = v1

[Redis]
Host = "redishost"
`,
	}
}

func makeValidConfigConsul() testDataValidConfig {
	return testDataValidConfig{
		name: "Consul",
		makeConfig: func(c *Config) {
			c.Main.OriginURI = newOptURLAbsoluteMustBeValid(testOriginURI)
			c.Cache.Version = "v1"
			c.Consul = ConsulConfig{Host: "consulhost", Token: "abc", Prefix: "kiosk"}
		},
		envVars: withOrigin(map[string]string{
			"CACHE_VERSION": "v1",
			"USE_CONSUL":    "1",
			"CONSUL_HOST":   "consulhost",
			"CONSUL_TOKEN":  "abc",
			"CONSUL_PREFIX": "kiosk",
		}),
		fileContent: `
[Main]
OriginURI = "http://origin.example"

[Cache]
Version = v1

[Consul]
Host = "consulhost"
Token = "abc"
Prefix = "kiosk"
`,
	}
}

func makeValidConfigDynamoDB() testDataValidConfig {
	return testDataValidConfig{
		name: "DynamoDB",
		makeConfig: func(c *Config) {
			c.Main.OriginURI = newOptURLAbsoluteMustBeValid(testOriginURI)
			c.Cache.Version = "v1"
			c.DynamoDB = DynamoDBConfig{
				Enabled:   true,
				TableName: "assets",
				URL:       newOptURLAbsoluteMustBeValid("http://localhost:8000"),
				Prefix:    "kiosk",
			}
		},
		envVars: withOrigin(map[string]string{
			"CACHE_VERSION":   "v1",
			"USE_DYNAMODB":    "1",
			"DYNAMODB_TABLE":  "assets",
			"DYNAMODB_URL":    "http://localhost:8000",
			"DYNAMODB_PREFIX": "kiosk",
		}),
		fileContent: `
[Main]
OriginURI = "http://origin.example"

[Cache]
Version = v1

[DynamoDB]
Enabled = true
TableName = "assets"
URL = "http://localhost:8000"
Prefix = "kiosk"
`,
	}
}

func makeValidConfigProxy() testDataValidConfig {
	return testDataValidConfig{
		name: "proxy",
		makeConfig: func(c *Config) {
			c.Main.OriginURI = newOptURLAbsoluteMustBeValid(testOriginURI)
			c.Cache.Version = "v1"
			c.Proxy = ProxyConfig{
				URL:         newOptURLAbsoluteMustBeValid("http://proxy:8080"),
				CACertFiles: ct.NewOptStringList([]string{"a.pem", "b.pem"}),
			}
		},
		envVars: withOrigin(map[string]string{
			"CACHE_VERSION":  "v1",
			"PROXY_URL":      "http://proxy:8080",
			"PROXY_CA_CERTS": "a.pem,b.pem",
		}),
		fileContent: `
[Main]
OriginURI = "http://origin.example"

[Cache]
Version = v1

[Proxy]
URL = "http://proxy:8080"
CACertFiles = "a.pem,b.pem"
`,
	}
}

func makeValidConfigProxyNTLM() testDataValidConfig {
	return testDataValidConfig{
		name: "proxy with NTLM",
		makeConfig: func(c *Config) {
			c.Main.OriginURI = newOptURLAbsoluteMustBeValid(testOriginURI)
			c.Cache.Version = "v1"
			c.Proxy = ProxyConfig{
				URL:      newOptURLAbsoluteMustBeValid("http://proxy"),
				NTLMAuth: true,
				User:     "user",
				Password: "pass",
				Domain:   "domain",
			}
		},
		envVars: withOrigin(map[string]string{
			"CACHE_VERSION":       "v1",
			"PROXY_URL":           "http://proxy",
			"PROXY_AUTH_NTLM":     "1",
			"PROXY_AUTH_USER":     "user",
			"PROXY_AUTH_PASSWORD": "pass",
			"PROXY_AUTH_DOMAIN":   "domain",
		}),
		fileContent: `
[Main]
OriginURI = "http://origin.example"

[Cache]
Version = v1

[Proxy]
URL = "http://proxy"
NTLMAuth = true
User = "user"
Password = "pass"
Domain = "domain"
`,
	}
}

func makeValidConfigDatadog() testDataValidConfig {
	return testDataValidConfig{
		name: "Datadog",
		makeConfig: func(c *Config) {
			c.Main.OriginURI = newOptURLAbsoluteMustBeValid(testOriginURI)
			c.Cache.Version = "v1"
			c.Datadog = DatadogConfig{
				Enabled:   true,
				Prefix:    "kiosk",
				TraceAddr: "trace",
				StatsAddr: "stats",
				Tag:       []string{"arcade:north", "cabinet:3"},
			}
		},
		envVars: withOrigin(map[string]string{
			"CACHE_VERSION":       "v1",
			"USE_DATADOG":         "1",
			"DATADOG_PREFIX":      "kiosk",
			"DATADOG_TRACE_ADDR":  "trace",
			"DATADOG_STATS_ADDR":  "stats",
			"DATADOG_TAG_cabinet": "3",
			"DATADOG_TAG_arcade":  "north",
		}),
		fileContent: `
[Main]
OriginURI = "http://origin.example"

[Cache]
Version = v1

[Datadog]
Enabled = true
Prefix = "kiosk"
TraceAddr = "trace"
StatsAddr = "stats"
Tag = "arcade:north"
Tag = "cabinet:3"
`,
	}
}

func makeValidConfigStackdriver() testDataValidConfig {
	return testDataValidConfig{
		name: "Stackdriver",
		makeConfig: func(c *Config) {
			c.Main.OriginURI = newOptURLAbsoluteMustBeValid(testOriginURI)
			c.Cache.Version = "v1"
			c.Stackdriver = StackdriverConfig{
				Enabled:   true,
				Prefix:    "kiosk",
				ProjectID: "arcade-project",
			}
		},
		envVars: withOrigin(map[string]string{
			"CACHE_VERSION":          "v1",
			"USE_STACKDRIVER":        "1",
			"STACKDRIVER_PREFIX":     "kiosk",
			"STACKDRIVER_PROJECT_ID": "arcade-project",
		}),
		fileContent: `
[Main]
OriginURI = "http://origin.example"

[Cache]
Version = v1

[Stackdriver]
Enabled = true
Prefix = "kiosk"
ProjectID = "arcade-project"
`,
	}
}

func makeValidConfigPrometheus() testDataValidConfig {
	return testDataValidConfig{
		name: "Prometheus",
		makeConfig: func(c *Config) {
			c.Main.OriginURI = newOptURLAbsoluteMustBeValid(testOriginURI)
			c.Cache.Version = "v1"
			c.Prometheus = PrometheusConfig{
				Enabled: true,
				Port:    mustOptIntGreaterThanZero(9090),
				Prefix:  "kiosk",
			}
		},
		envVars: withOrigin(map[string]string{
			"CACHE_VERSION":     "v1",
			"USE_PROMETHEUS":    "1",
			"PROMETHEUS_PORT":   "9090",
			"PROMETHEUS_PREFIX": "kiosk",
		}),
		fileContent: `
[Main]
OriginURI = "http://origin.example"

[Cache]
Version = v1

[Prometheus]
Enabled = true
Port = 9090
Prefix = "kiosk"
`,
	}
}

func makeInvalidConfigs() []testDataInvalidConfig {
	return []testDataInvalidConfig{
		{
			name:         "no origin",
			envVars:      map[string]string{"CACHE_VERSION": "v1"},
			envVarsError: errNoOrigin.Error(),
			fileContent: `
[Cache]
Version = v1
`,
		},
		{
			name: "origin URI and dir",
			envVars: map[string]string{
				"ORIGIN_URI": testOriginURI, "ORIGIN_DIR": "/srv", "CACHE_VERSION": "v1",
			},
			envVarsError: errOriginURIAndDir.Error(),
			fileContent: `
[Main]
OriginURI = "http://origin.example"
OriginDir = /srv

[Cache]
Version = v1
`,
		},
		{
			name:         "relative origin URI",
			envVars:      map[string]string{"ORIGIN_URI": "/not/absolute", "CACHE_VERSION": "v1"},
			envVarsError: "must be an absolute URL/URI",
			fileContent: `
[Main]
OriginURI = "/not/absolute"

[Cache]
Version = v1
`,
			fileError: "must be an absolute URL/URI",
		},
		{
			name:         "TLS without cert",
			envVars:      withOrigin(map[string]string{"TLS_ENABLED": "1", "TLS_KEY": "key", "CACHE_VERSION": "v1"}),
			envVarsError: errTLSEnabledWithoutCertOrKey.Error(),
			fileContent: `
[Main]
OriginURI = "http://origin.example"
TLSEnabled = true
TLSKey = key

[Cache]
Version = v1
`,
		},
		{
			name:         "bad log level",
			envVars:      withOrigin(map[string]string{"LOG_LEVEL": "loud", "CACHE_VERSION": "v1"}),
			envVarsError: `LOG_LEVEL: "loud" is not a valid log level`,
			fileContent: `
[Main]
OriginURI = "http://origin.example"
LogLevel = loud

[Cache]
Version = v1
`,
			fileError: `"loud" is not a valid log level`,
		},
		{
			name:         "bad TLS version",
			envVars:      withOrigin(map[string]string{"TLS_MIN_VERSION": "2.0", "CACHE_VERSION": "v1"}),
			envVarsError: `TLS_MIN_VERSION: "2.0" is not a valid TLS version`,
			fileContent: `
[Main]
OriginURI = "http://origin.example"
TLSMinVersion = "2.0"

[Cache]
Version = v1
`,
			fileError: `"2.0" is not a valid TLS version`,
		},
		{
			name:         "unsafe cached method",
			envVars:      withOrigin(map[string]string{"CACHE_SAFE_METHODS": "GET,POST", "CACHE_VERSION": "v1"}),
			envVarsError: errUnsafeCacheMethod("POST").Error(),
			fileContent: `
[Main]
OriginURI = "http://origin.example"

[Cache]
Version = v1
SafeMethod = POST
`,
		},
		{
			name: "multiple databases",
			envVars: withOrigin(map[string]string{
				"CACHE_VERSION": "v1", "SQLITE_PATH": "cache.db", "USE_REDIS": "1",
			}),
			envVarsError: errMultipleDatabases([]string{"SQLite", "Redis"}).Error(),
			fileContent: `
[Main]
OriginURI = "http://origin.example"

[Cache]
Version = v1

[SQLite]
Path = cache.db

[Redis]
Host = localhost
`,
		},
		{
			name:         "DynamoDB without table",
			envVars:      withOrigin(map[string]string{"CACHE_VERSION": "v1", "USE_DYNAMODB": "1"}),
			envVarsError: errDynamoDBWithNoTableName.Error(),
			fileContent: `
[Main]
OriginURI = "http://origin.example"

[Cache]
Version = v1

[DynamoDB]
Enabled = true
`,
		},
		{
			name:         "Redis URL with host",
			envVars:      withOrigin(map[string]string{"CACHE_VERSION": "v1", "REDIS_URL": "redis://a:1", "REDIS_HOST": "b"}),
			envVarsError: errRedisURLWithHostAndPort.Error(),
			fileContent: `
[Main]
OriginURI = "http://origin.example"

[Cache]
Version = v1

[Redis]
URL = "redis://a:1"
Host = b
`,
		},
		{
			name:         "missing manifest file",
			envVars:      withOrigin(map[string]string{"CACHE_MANIFEST_FILE": "/no/such/manifest.json"}),
			envVarsError: errManifestFileNotFound.Error(),
			fileContent: `
[Main]
OriginURI = "http://origin.example"

[Cache]
ManifestFile = /no/such/manifest.json
`,
		},
	}
}
