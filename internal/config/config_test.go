package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults_Validate_fillsZeroValues(t *testing.T) {
	t.Parallel()

	d := Defaults{}
	require.NoError(t, d.Validate())
	require.Equal(t, defaultMaxConcurrency, d.MaxConcurrency)
	require.Equal(t, defaultHostScanTimeout, d.HostScanTimeout)
	require.Equal(t, defaultMetricsAddr, d.MetricsAddr)
}

func TestDefaults_Validate_keepsExplicitValues(t *testing.T) {
	t.Parallel()

	d := Defaults{MaxConcurrency: 8, HostScanTimeout: 5 * time.Second, MetricsAddr: ":1234"}
	require.NoError(t, d.Validate())
	require.Equal(t, 8, d.MaxConcurrency)
	require.Equal(t, 5*time.Second, d.HostScanTimeout)
	require.Equal(t, ":1234", d.MetricsAddr)
}

func TestFromEnv_unsetVars_fallsBackToDefaults(t *testing.T) {
	d := FromEnv()
	require.Equal(t, defaultMetricsAddr, d.MetricsAddr)
	require.Equal(t, defaultMaxConcurrency, d.MaxConcurrency)
	require.Equal(t, defaultHostScanTimeout, d.HostScanTimeout)
}

func TestFromEnv_respectsOverrides(t *testing.T) {
	t.Setenv(envMetricsAddr, ":7777")
	t.Setenv(envMaxConcurrency, "12")
	t.Setenv(envHostScanTimeout, "3s")
	t.Setenv(envVerbose, "true")

	d := FromEnv()
	require.Equal(t, ":7777", d.MetricsAddr)
	require.Equal(t, 12, d.MaxConcurrency)
	require.Equal(t, 3*time.Second, d.HostScanTimeout)
	require.True(t, d.Verbose)
}

func TestDefaults_HostScanSetting_seedsFromDefaults(t *testing.T) {
	t.Parallel()

	d := Defaults{HostScanTimeout: time.Second, MaxConcurrency: 16}
	s := d.HostScanSetting(nil, 1)
	require.Equal(t, time.Second, s.Timeout)
	require.Equal(t, 16, s.Concurrency)
}
