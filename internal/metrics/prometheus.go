package metrics

import (
	"fmt"
	"net"
	"net/http"

	"github.com/aprendeyjuega/asset-relay/config"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"contrib.go.opencensus.io/exporter/prometheus"
	"go.opencensus.io/stats/view"
)

const defaultPrometheusPort = 8041

var prometheusExporterType exporterType = prometheusExporterTypeImpl{} //nolint:gochecknoglobals

type prometheusExporterTypeImpl struct{}

type prometheusExporterImpl struct {
	exporter *prometheus.Exporter
	server   *http.Server
	port     int
	loggers  ldlog.Loggers
}

func (p prometheusExporterTypeImpl) getName() string {
	return "Prometheus"
}

func (p prometheusExporterTypeImpl) createExporterIfEnabled(
	mc config.MetricsConfig,
	loggers ldlog.Loggers,
) (exporter, error) {
	if !mc.Prometheus.Enabled {
		return nil, nil
	}

	exporter, err := prometheus.NewExporter(prometheus.Options{
		Namespace: getPrefix(mc.Prometheus.Prefix),
		OnError: func(e error) {
			loggers.Errorf(logMsgExporterError, "Prometheus", e)
		},
	})
	if err != nil {
		return nil, err
	}

	exporterMux := http.NewServeMux()
	exporterMux.Handle("/metrics", exporter)
	return &prometheusExporterImpl{
		exporter: exporter,
		server:   &http.Server{Handler: exporterMux}, //nolint:gosec
		port:     mc.Prometheus.Port.GetOrElse(defaultPrometheusPort),
		loggers:  loggers,
	}, nil
}

// register starts the /metrics listener on the exporter's own port.
func (p *prometheusExporterImpl) register() error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", p.port))
	if err != nil {
		return errPrometheusListener(err)
	}
	go func() {
		if err := p.server.Serve(listener); err != http.ErrServerClosed {
			p.loggers.Errorf(logMsgPrometheusFailed, err)
		}
	}()
	view.RegisterExporter(p.exporter)
	p.loggers.Infof(logMsgPrometheusListener, p.port)
	return nil
}

func (p *prometheusExporterImpl) close() error {
	view.UnregisterExporter(p.exporter)
	return p.server.Close()
}
