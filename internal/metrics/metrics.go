package metrics

import (
	"github.com/aprendeyjuega/asset-relay/config"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// Manager owns the metrics exporters for one asset-relay instance.
type Manager struct {
	exporters exportersSet
	loggers   ldlog.Loggers
}

// NewManager registers the cache views and every exporter enabled in the configuration: Datadog,
// Stackdriver, and a Prometheus endpoint at /metrics on its own port.
func NewManager(mc config.MetricsConfig, loggers ldlog.Loggers) (*Manager, error) {
	return newManagerInternal(mc, allExporterTypes(), loggers)
}

func newManagerInternal(mc config.MetricsConfig, exporterTypes []exporterType, loggers ldlog.Loggers) (*Manager, error) {
	if err := RegisterViews(); err != nil {
		return nil, err
	}
	exporters, err := registerExporters(exporterTypes, mc, loggers)
	if err != nil {
		return nil, err
	}
	return &Manager{exporters: exporters, loggers: loggers}, nil
}

// Close unregisters and stops all exporters.
func (m *Manager) Close() {
	closeExporters(m.exporters, m.loggers)
}
