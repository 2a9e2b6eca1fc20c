package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	ct "github.com/launchdarkly/go-configtypes"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

var (
	errTLSEnabledWithoutCertOrKey = errors.New("TLS cert and key are required if TLS is enabled")
	errNoOrigin                   = errors.New("either an origin URI or an origin directory must be specified")
	errOriginURIAndDir            = errors.New("please specify origin URI or origin directory, but not both")
	errRedisURLWithHostAndPort    = errors.New("please specify Redis URL or host/port, but not both")
	errRedisBadHostname           = errors.New("invalid Redis hostname")
	errDynamoDBWithNoTableName    = errors.New("a DynamoDB table name is required if DynamoDB is enabled")
	errEmptyVersion               = errors.New("cache version must not be empty")
	errManifestFileNotFound       = errors.New("manifest file not found")
)

func errMultipleDatabases(databases []string) error {
	return fmt.Errorf("multiple databases are enabled (%s); only one is allowed", strings.Join(databases, ", "))
}

func errUnsafeCacheMethod(method string) error {
	return fmt.Errorf("%q cannot be used as a cached method because it is not a safe method", method)
}

// ValidateConfig ensures that the configuration does not contain contradictory properties.
//
// This method covers validation rules that can't be enforced on a per-field basis (for instance, if
// either field A or field B can be specified but it's invalid to specify both). It is allowed to modify
// the Config struct in order to canonicalize settings (for instance, converting Redis host/port settings
// into a Redis URL, or upper-casing method names).
//
// LoadConfigFromEnvironment and LoadConfigFile both call this method as a last step, but it is also
// called again by the Relay constructor because a Config can be built programmatically.
func ValidateConfig(c *Config, loggers ldlog.Loggers) error {
	var result ct.ValidationResult

	validateConfigTLS(&result, c)
	validateConfigOrigin(&result, c)
	validateConfigCache(&result, c, loggers)
	validateConfigDatabases(&result, c)

	return result.GetError()
}

func validateConfigTLS(result *ct.ValidationResult, c *Config) {
	if c.Main.TLSEnabled && (c.Main.TLSCert == "" || c.Main.TLSKey == "") {
		result.AddError(nil, errTLSEnabledWithoutCertOrKey)
	}
}

func validateConfigOrigin(result *ct.ValidationResult, c *Config) {
	switch {
	case c.Main.OriginURI.IsDefined() && c.Main.OriginDir != "":
		result.AddError(nil, errOriginURIAndDir)
	case !c.Main.OriginURI.IsDefined() && c.Main.OriginDir == "":
		result.AddError(nil, errNoOrigin)
	}
}

func validateConfigCache(result *ct.ValidationResult, c *Config, loggers ldlog.Loggers) {
	if c.Cache.ManifestFile != "" {
		if _, err := os.Stat(c.Cache.ManifestFile); os.IsNotExist(err) {
			result.AddError(nil, errManifestFileNotFound)
		}
		if len(c.Cache.Asset) != 0 {
			loggers.Warn("Both a manifest file and individual assets were configured; the manifest file takes precedence")
		}
	} else if strings.TrimSpace(c.Cache.Version) == "" {
		result.AddError(nil, errEmptyVersion)
	}

	for i, m := range c.Cache.SafeMethod {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m != http.MethodGet && m != http.MethodHead {
			result.AddError(nil, errUnsafeCacheMethod(m))
		}
		c.Cache.SafeMethod[i] = m
	}
}

func validateConfigDatabases(result *ct.ValidationResult, c *Config) {
	normalizeRedisConfig(result, c)

	databases := []string{}
	if c.SQLite.Path != "" {
		databases = append(databases, "SQLite")
	}
	if c.Redis.URL.IsDefined() {
		databases = append(databases, "Redis")
	}
	if c.Consul.Host != "" {
		databases = append(databases, "Consul")
	}
	if c.DynamoDB.Enabled {
		databases = append(databases, "DynamoDB")
	}

	if len(databases) > 1 {
		result.AddError(nil, errMultipleDatabases(databases))
		return // no point doing further database config validation if it's in this state
	}

	if c.DynamoDB.Enabled && c.DynamoDB.TableName == "" {
		result.AddError(nil, errDynamoDBWithNoTableName)
	}
}

func normalizeRedisConfig(result *ct.ValidationResult, c *Config) {
	if c.Redis.URL.IsDefined() {
		if c.Redis.Host != "" || c.Redis.Port.IsDefined() {
			result.AddError(nil, errRedisURLWithHostAndPort)
		}
	} else if c.Redis.Host != "" || c.Redis.Port.IsDefined() {
		host := c.Redis.Host
		if host == "" {
			host = defaultRedisHost
		}
		port := c.Redis.Port.GetOrElse(defaultRedisPort)
		url, err := ct.NewOptURLAbsoluteFromString(fmt.Sprintf("redis://%s:%d", host, port))
		if err != nil {
			result.AddError(nil, errRedisBadHostname)
		}
		c.Redis.URL = url
		c.Redis.Host = ""
		c.Redis.Port = ct.OptIntGreaterThanZero{}
	}
}
