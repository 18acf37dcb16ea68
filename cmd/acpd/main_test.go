package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs_Defaults(t *testing.T) {
	opts, err := parseArgs(nil)
	require.NoError(t, err)
	assert.False(t, opts.diagnostic)
	assert.Equal(t, 0, opts.verbosity)
	assert.False(t, opts.quiet)
}

func TestParseArgs_SpaceAndEqualsForms(t *testing.T) {
	opts, err := parseArgs([]string{
		"--log-dir", "/var/log/acpd",
		"--log-file=acpd.log",
		"--otel-endpoint", "localhost:4317",
		"--otel-service-name=acpd-dev",
		"--diagnostic",
		"-vv",
	})
	require.NoError(t, err)
	assert.Equal(t, "/var/log/acpd", opts.logDir)
	assert.Equal(t, "acpd.log", opts.logFile)
	assert.Equal(t, "localhost:4317", opts.otelEndpoint)
	assert.Equal(t, "acpd-dev", opts.otelServiceName)
	assert.True(t, opts.diagnostic)
	assert.Equal(t, 2, opts.verbosity)
}

func TestParseArgs_UnknownFlagErrors(t *testing.T) {
	_, err := parseArgs([]string{"--nope"})
	assert.Error(t, err)
}

func TestParseArgs_MissingValueErrors(t *testing.T) {
	_, err := parseArgs([]string{"--log-dir"})
	assert.Error(t, err)
}

func TestParseArgs_QuietAndVerbosityLevels(t *testing.T) {
	for _, tc := range []struct {
		arg  string
		want int
	}{
		{"-v", 1},
		{"-vv", 2},
		{"-vvv", 3},
	} {
		opts, err := parseArgs([]string{tc.arg})
		require.NoError(t, err)
		assert.Equal(t, tc.want, opts.verbosity, "arg=%s", tc.arg)
	}

	opts, err := parseArgs([]string{"--quiet"})
	require.NoError(t, err)
	assert.True(t, opts.quiet)
}
