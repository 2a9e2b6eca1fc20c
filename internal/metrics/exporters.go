package metrics

import (
	"github.com/aprendeyjuega/asset-relay/config"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// exporterType is one of the kinds of OpenCensus exporters that can be enabled in the configuration.
type exporterType interface {
	// Returns the human-readable name, like "Datadog".
	getName() string

	// If this kind of exporter is enabled in the MetricsConfig, constructs it without registering it.
	// Otherwise returns (nil, nil).
	createExporterIfEnabled(config.MetricsConfig, ldlog.Loggers) (exporter, error)
}

type exporter interface {
	register() error
	close() error
}

type exportersSet map[exporterType]exporter

func allExporterTypes() []exporterType {
	return []exporterType{datadogExporterType, prometheusExporterType, stackdriverExporterType}
}

// registerExporters creates and registers every enabled exporter. If any of them fails, the ones
// already registered are closed again.
func registerExporters(
	exporterTypes []exporterType,
	mc config.MetricsConfig,
	loggers ldlog.Loggers,
) (exportersSet, error) {
	registered := make(exportersSet)
	for _, t := range exporterTypes {
		e, err := t.createExporterIfEnabled(mc, loggers)
		if err != nil {
			loggers.Errorf(logMsgExporterCreateFailed, t.getName(), err)
			closeExporters(registered, loggers)
			return nil, err
		}
		if e == nil {
			continue
		}
		if err := e.register(); err != nil {
			loggers.Errorf(logMsgExporterRegisterFailed, t.getName(), err)
			closeExporters(registered, loggers)
			return nil, err
		}
		loggers.Infof(logMsgExporterRegistered, t.getName())
		registered[t] = e
	}
	return registered, nil
}

// closeExporters logs close errors and carries on with the rest.
func closeExporters(exporters exportersSet, loggers ldlog.Loggers) {
	for t, e := range exporters {
		if err := e.close(); err != nil {
			loggers.Errorf(logMsgExporterCloseFailed, t.getName(), err)
		}
	}
}

func getPrefix(configuredPrefix string) string {
	if configuredPrefix != "" {
		return configuredPrefix
	}
	return defaultMetricsPrefix
}
