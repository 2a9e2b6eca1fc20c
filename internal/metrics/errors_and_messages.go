package metrics

import "fmt"

const (
	logMsgExporterError          = "%s exporter error: %s"
	logMsgExporterCreateFailed   = "Error creating %s metrics exporter: %s"
	logMsgExporterRegisterFailed = "Error registering %s metrics exporter: %s"
	logMsgExporterCloseFailed    = "Error closing %s metrics exporter: %s"
	logMsgExporterRegistered     = "Successfully registered %s metrics exporter"
	logMsgPrometheusListener     = "Prometheus metrics listening on port %d"
	logMsgPrometheusFailed       = "Failed to start Prometheus listener: %s"
)

func errRegisteringViews(err error) error {
	return fmt.Errorf("error registering metrics views: %w", err)
}

func errPrometheusListener(err error) error {
	return fmt.Errorf("unable to listen for Prometheus scrapes: %w", err)
}
