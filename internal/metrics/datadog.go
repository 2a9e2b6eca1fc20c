package metrics

import (
	"github.com/aprendeyjuega/asset-relay/config"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	datadog "github.com/DataDog/opencensus-go-exporter-datadog"
	"go.opencensus.io/stats/view"
)

var datadogExporterType exporterType = datadogExporterTypeImpl{} //nolint:gochecknoglobals

type datadogExporterTypeImpl struct{}

type datadogExporterImpl struct {
	exporter *datadog.Exporter
}

func (d datadogExporterTypeImpl) getName() string {
	return "Datadog"
}

func (d datadogExporterTypeImpl) createExporterIfEnabled(
	mc config.MetricsConfig,
	_ ldlog.Loggers,
) (exporter, error) {
	if !mc.Datadog.Enabled {
		return nil, nil
	}

	exporter, err := datadog.NewExporter(datadog.Options{
		Namespace: getPrefix(mc.Datadog.Prefix),
		Service:   getPrefix(mc.Datadog.Prefix),
		TraceAddr: mc.Datadog.TraceAddr,
		StatsAddr: mc.Datadog.StatsAddr,
		Tags:      mc.Datadog.Tag,
	})
	if err != nil {
		return nil, err
	}
	return &datadogExporterImpl{exporter: exporter}, nil
}

func (d *datadogExporterImpl) register() error {
	view.RegisterExporter(d.exporter)
	return nil
}

func (d *datadogExporterImpl) close() error {
	view.UnregisterExporter(d.exporter)
	d.exporter.Stop()
	return nil
}
