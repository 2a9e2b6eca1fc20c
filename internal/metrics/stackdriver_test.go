package metrics

import (
	"os"
	"testing"

	"github.com/aprendeyjuega/asset-relay/config"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	helpers "github.com/launchdarkly/go-test-helpers/v3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	fakeGoogleCredentials = `{
  "type": "authorized_user",
  "projectId": "arcade-project"
}`

	fakeInvalidGoogleCredentials = `{
  "type": "unsupported"
}`
)

func TestStackdriverExporterType(t *testing.T) {
	exporterType := stackdriverExporterType

	t.Run("name", func(t *testing.T) {
		assert.Equal(t, "Stackdriver", exporterType.getName())
	})

	t.Run("included in allExporterTypes", func(t *testing.T) {
		assert.Contains(t, allExporterTypes(), exporterType)
	})

	t.Run("does not create exporter if Stackdriver is disabled", func(t *testing.T) {
		var mc config.MetricsConfig
		e, err := exporterType.createExporterIfEnabled(mc, ldlog.NewDisabledLoggers())
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("returns error for invalid credentials", func(t *testing.T) {
		var mc config.MetricsConfig
		mc.Stackdriver.Enabled = true
		mc.Stackdriver.ProjectID = "arcade-project"
		withGoogleApplicationCredentials(t, []byte(fakeInvalidGoogleCredentials), func() {
			e, err := exporterType.createExporterIfEnabled(mc, ldlog.NewDisabledLoggers())
			require.Error(t, err)
			assert.Nil(t, e)
		})
	})

	t.Run("creates and registers exporter if Stackdriver is enabled", func(t *testing.T) {
		var mc config.MetricsConfig
		mc.Stackdriver.Enabled = true
		mc.Stackdriver.ProjectID = "arcade-project"
		withGoogleApplicationCredentials(t, []byte(fakeGoogleCredentials), func() {
			e, err := exporterType.createExporterIfEnabled(mc, ldlog.NewDisabledLoggers())
			require.NoError(t, err)
			require.NotNil(t, e)
			defer e.close()
			assert.NoError(t, e.register())
		})
	})
}

func withGoogleApplicationCredentials(t *testing.T, data []byte, action func()) {
	helpers.WithTempFile(func(filename string) {
		require.NoError(t, os.WriteFile(filename, data, 0600))
		t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", filename)
		action()
	})
}
