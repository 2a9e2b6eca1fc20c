package config

import (
	"time"

	ct "github.com/launchdarkly/go-configtypes"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

const (
	// DefaultVersion is the cache version tag used when neither the configuration nor a manifest file
	// provides one.
	DefaultVersion = "game-app-v1"

	// DefaultPrecacheConcurrency is the default value for CacheConfig.PrecacheConcurrency.
	DefaultPrecacheConcurrency = 4

	// DefaultRedisPrefix is the key prefix used for Redis if not specified.
	DefaultRedisPrefix = "asset-relay"

	// DefaultConsulPrefix is the KV path prefix used for Consul if not specified.
	DefaultConsulPrefix = "asset-relay"

	// DefaultDynamoDBPrefix is the partition key prefix used for DynamoDB if not specified.
	DefaultDynamoDBPrefix = "asset-relay"

	// DefaultManifestReloadRetryInterval is the delay before retrying a manifest file that failed to parse.
	DefaultManifestReloadRetryInterval = time.Second
)

const (
	defaultPort           = 8040
	defaultRedisHost      = "localhost"
	defaultRedisPort      = 6379
	defaultConsulHost     = "localhost"
	defaultPrometheusPort = 8041
	defaultSafeMethod     = "GET"
)

// Config describes the configuration for an asset-relay instance.
//
// If you are building a Config programmatically, start by copying DefaultConfig and then change only
// the fields you need.
type Config struct {
	Main     MainConfig
	Cache    CacheConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	Consul   ConsulConfig
	DynamoDB DynamoDBConfig
	Proxy    ProxyConfig
	MetricsConfig
}

// MainConfig contains global configuration options.
//
// This corresponds to the [Main] section in the configuration file.
type MainConfig struct {
	Port          ct.OptIntGreaterThanZero `conf:"PORT"`
	OriginURI     ct.OptURLAbsolute        `conf:"ORIGIN_URI"`
	OriginDir     string                   `conf:"ORIGIN_DIR"`
	ExitOnError   bool                     `conf:"EXIT_ON_ERROR"`
	TLSEnabled    bool                     `conf:"TLS_ENABLED"`
	TLSCert       string                   `conf:"TLS_CERT"`
	TLSKey        string                   `conf:"TLS_KEY"`
	TLSMinVersion OptTLSVersion            `conf:"TLS_MIN_VERSION"`
	LogLevel      OptLogLevel              `conf:"LOG_LEVEL"`
}

// CacheConfig describes the offline cache: which version tag is current, which assets are pre-cached
// when that version installs, and how a new version takes over from an old one.
//
// This corresponds to the [Cache] section in the configuration file. Asset and SafeMethod may be
// repeated in the file; in environment variables they are comma-delimited.
type CacheConfig struct {
	Version             string `conf:"CACHE_VERSION"`
	Asset               []string
	ManifestFile        string                   `conf:"CACHE_MANIFEST_FILE"`
	SkipWaiting         ct.OptBool               `conf:"CACHE_SKIP_WAITING"`
	PrecacheConcurrency ct.OptIntGreaterThanZero `conf:"CACHE_PRECACHE_CONCURRENCY"`
	SafeMethod          []string
}

// SQLiteConfig configures the optional SQLite storage, which persists cached assets on local disk.
//
// SQLite is enabled if Path is non-empty.
type SQLiteConfig struct {
	Path string `conf:"SQLITE_PATH"`
}

// RedisConfig configures the optional Redis storage.
//
// Redis is enabled if URL or Host is non-empty or if Port is defined. If only Host or Port is set,
// the other value is set to defaultRedisPort or defaultRedisHost. It is an error to set Host or
// Port if URL is also set.
//
// This corresponds to the [Redis] section in the configuration file.
type RedisConfig struct {
	Host     string `conf:"REDIS_HOST"`
	Port     ct.OptIntGreaterThanZero
	URL      ct.OptURLAbsolute `conf:"REDIS_URL"`
	TLS      bool              `conf:"REDIS_TLS"`
	Password string            `conf:"REDIS_PASSWORD"`
	Prefix   string            `conf:"REDIS_PREFIX"`
}

// ConsulConfig configures the optional Consul storage.
//
// Consul is enabled if Host is non-empty.
//
// This corresponds to the [Consul] section in the configuration file.
type ConsulConfig struct {
	Host   string `conf:"CONSUL_HOST"`
	Token  string `conf:"CONSUL_TOKEN"`
	Prefix string `conf:"CONSUL_PREFIX"`
}

// DynamoDBConfig configures the optional DynamoDB storage, which is used only if Enabled is true.
//
// This corresponds to the [DynamoDB] section in the configuration file.
type DynamoDBConfig struct {
	Enabled   bool              `conf:"USE_DYNAMODB"`
	TableName string            `conf:"DYNAMODB_TABLE"`
	URL       ct.OptURLAbsolute `conf:"DYNAMODB_URL"`
	Prefix    string            `conf:"DYNAMODB_PREFIX"`
}

// ProxyConfig configures an outbound HTTP proxy for requests to the origin.
//
// This corresponds to the [Proxy] section in the configuration file.
type ProxyConfig struct {
	URL         ct.OptURLAbsolute `conf:"PROXY_URL"`
	NTLMAuth    bool              `conf:"PROXY_AUTH_NTLM"`
	User        string            `conf:"PROXY_AUTH_USER"`
	Password    string            `conf:"PROXY_AUTH_PASSWORD"`
	Domain      string            `conf:"PROXY_AUTH_DOMAIN"`
	CACertFiles ct.OptStringList  `conf:"PROXY_CA_CERTS"`
}

// MetricsConfig contains the configuration for the optional metrics exporters.
//
// This corresponds to the [Datadog], [Stackdriver], and [Prometheus] sections in the configuration file.
type MetricsConfig struct {
	Datadog     DatadogConfig
	Stackdriver StackdriverConfig
	Prometheus  PrometheusConfig
}

// DatadogConfig configures the optional Datadog exporter, which is used only if Enabled is true. It
// sends to a local Datadog agent.
//
// This corresponds to the [Datadog] section in the configuration file. In environment variables, each
// tag is a variable named DATADOG_TAG_<name>.
type DatadogConfig struct {
	Enabled   bool   `conf:"USE_DATADOG"`
	Prefix    string `conf:"DATADOG_PREFIX"`
	TraceAddr string `conf:"DATADOG_TRACE_ADDR"`
	StatsAddr string `conf:"DATADOG_STATS_ADDR"`
	Tag       []string
}

// StackdriverConfig configures the optional Stackdriver exporter, which is used only if Enabled is true.
//
// This corresponds to the [Stackdriver] section in the configuration file.
type StackdriverConfig struct {
	Enabled   bool   `conf:"USE_STACKDRIVER"`
	Prefix    string `conf:"STACKDRIVER_PREFIX"`
	ProjectID string `conf:"STACKDRIVER_PROJECT_ID"`
}

// PrometheusConfig configures the optional Prometheus metrics exporter, which is used only if Enabled
// is true.
//
// This corresponds to the [Prometheus] section in the configuration file.
type PrometheusConfig struct {
	Enabled bool                     `conf:"USE_PROMETHEUS"`
	Port    ct.OptIntGreaterThanZero `conf:"PROMETHEUS_PORT"`
	Prefix  string                   `conf:"PROMETHEUS_PREFIX"`
}

// DefaultConfig contains defaults for all configuration sections.
var DefaultConfig = Config{
	Main: MainConfig{
		Port: mustOptIntGreaterThanZero(defaultPort),
	},
	Cache: CacheConfig{
		Version:             DefaultVersion,
		SkipWaiting:         ct.NewOptBool(true),
		PrecacheConcurrency: mustOptIntGreaterThanZero(DefaultPrecacheConcurrency),
	},
	MetricsConfig: MetricsConfig{
		Prometheus: PrometheusConfig{
			Port: mustOptIntGreaterThanZero(defaultPrometheusPort),
		},
	},
}

// SafeMethods returns the request methods that the cache may intercept. Any other method is passed
// through to the origin without touching the cache.
func (c CacheConfig) SafeMethods() []string {
	if len(c.SafeMethod) == 0 {
		return []string{defaultSafeMethod}
	}
	return c.SafeMethod
}

// GetLogLevel returns the configured minimum log level, or ldlog.Info if none was set.
func (c MainConfig) GetLogLevel() ldlog.LogLevel {
	return c.LogLevel.GetOrElse(ldlog.Info)
}
