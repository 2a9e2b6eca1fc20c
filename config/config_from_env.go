package config

import (
	"sort"
	"strings"

	ct "github.com/launchdarkly/go-configtypes"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// LoadConfigFromEnvironment sets parameters in a Config struct from environment variables.
//
// The Config parameter should be initialized with default values first.
func LoadConfigFromEnvironment(c *Config, loggers ldlog.Loggers) error {
	reader := ct.NewVarReaderFromEnvironment()

	reader.ReadStruct(&c.Main, false)

	reader.ReadStruct(&c.Cache, false)
	var assets, methods ct.OptStringList
	if reader.Read("CACHE_ASSETS", &assets) {
		c.Cache.Asset = append(c.Cache.Asset, assets.Values()...)
	}
	if reader.Read("CACHE_SAFE_METHODS", &methods) {
		c.Cache.SafeMethod = methods.Values()
	}

	reader.ReadStruct(&c.SQLite, false)

	useRedis := false
	reader.Read("USE_REDIS", &useRedis)
	reader.ReadStruct(&c.Redis, false)
	portStr := ""
	reader.Read("REDIS_PORT", &portStr) // handled separately because it could be a string or a number
	if portStr != "" {
		if strings.HasPrefix(portStr, "tcp://") {
			// REDIS_PORT gets set to tcp://$docker_ip:6379 when linking to a Redis container
			hostAndPort := strings.TrimPrefix(portStr, "tcp://")
			fields := strings.Split(hostAndPort, ":")
			c.Redis.Host = fields[0]
			if len(fields) > 1 {
				if err := c.Redis.Port.UnmarshalText([]byte(fields[1])); err != nil {
					reader.AddError(ct.ValidationPath{"REDIS_PORT"}, err)
				}
			}
		} else {
			if c.Redis.Host == "" && !c.Redis.URL.IsDefined() {
				c.Redis.Host = defaultRedisHost
			}
			reader.Read("REDIS_PORT", &c.Redis.Port)
		}
	}
	if useRedis && !c.Redis.URL.IsDefined() && c.Redis.Host == "" && !c.Redis.Port.IsDefined() {
		// all they specified was USE_REDIS
		c.Redis.Host = defaultRedisHost
	}

	useConsul := false
	reader.Read("USE_CONSUL", &useConsul)
	if useConsul {
		c.Consul.Host = defaultConsulHost
	}
	reader.ReadStruct(&c.Consul, false)

	reader.ReadStruct(&c.DynamoDB, false)

	reader.ReadStruct(&c.Proxy, false)

	reader.ReadStruct(&c.Datadog, false)
	if c.Datadog.Enabled {
		for tagName, tagVal := range reader.FindPrefixedValues("DATADOG_TAG_") {
			c.Datadog.Tag = append(c.Datadog.Tag, tagName+":"+tagVal)
		}
		sort.Strings(c.Datadog.Tag)
	}

	reader.ReadStruct(&c.Stackdriver, false)

	reader.ReadStruct(&c.Prometheus, false)

	if !reader.Result().OK() {
		return reader.Result().GetError()
	}

	return ValidateConfig(c, loggers)
}
