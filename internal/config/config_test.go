package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/harvest/internal/retry"
)

// newCmd returns a command with all flags registered and args parsed
func newCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "harvest"}
	RegisterFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

// isolate keeps a developer's own config files out of the test
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, DefaultMaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, DefaultFetchTimeout, cfg.FetchTimeout)
	assert.Equal(t, DefaultMaxIdleRounds, cfg.MaxIdleRounds)
	assert.Equal(t, 0, cfg.QueueCapacity)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.True(t, cfg.Headless)
	assert.Empty(t, cfg.ConfigFile)

	rc := cfg.Retry()
	assert.Equal(t, retry.PolicyFixed, rc.Policy)
	assert.Equal(t, 5, rc.MaxAttempts)
	assert.Equal(t, DefaultBackoffBase, rc.BaseDelay)
}

func TestLoad_ConfigFileEnvAndFlagsLayer(t *testing.T) {
	isolate(t)

	file := filepath.Join(t.TempDir(), "harvest.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
concurrency: 8
max-attempts: 7
backoff: exponential
timeout: 20s
queue-capacity: 100
`), 0o600))

	t.Setenv("HARVEST_MAX_ATTEMPTS", "3")
	t.Setenv("HARVEST_PROXY", "http://proxy.local:3128")

	cmd := newCmd(t, "--config", file, "--concurrency", "12", "--verbose")
	cfg, err := Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, file, cfg.ConfigFile)
	assert.Equal(t, 12, cfg.Concurrency, "flag beats file")
	assert.Equal(t, 3, cfg.MaxAttempts, "env beats file")
	assert.Equal(t, 20*time.Second, cfg.FetchTimeout, "file beats default")
	assert.Equal(t, 100, cfg.QueueCapacity)
	assert.Equal(t, "http://proxy.local:3128", cfg.Proxy)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, retry.PolicyExponential, cfg.Retry().Policy)
}

func TestLoad_ConfigFileDiscoveredInWorkingDir(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile("harvest.yaml", []byte("idle-rounds: 6\n"), 0o600))

	cfg, err := Load(newCmd(t))
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.MaxIdleRounds)
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	isolate(t)
	_, err := Load(newCmd(t, "--config", filepath.Join(t.TempDir(), "nope.yaml")))
	assert.Error(t, err)
}

func TestLoad_QuietLowersLogLevel(t *testing.T) {
	isolate(t)
	cfg, err := Load(newCmd(t, "--quiet"))
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		args []string
	}{
		{"zero concurrency", []string{"--concurrency", "0"}},
		{"too many workers", []string{"--concurrency", "51"}},
		{"zero attempts", []string{"--max-attempts", "0"}},
		{"unknown policy", []string{"--backoff", "linear"}},
		{"base above max", []string{"--backoff-base", "1m", "--backoff-max", "1s"}},
		{"uncapped exponential", []string{"--backoff", "exponential", "--backoff-max", "0s"}},
		{"zero timeout", []string{"--timeout", "0s"}},
		{"negative queue", []string{"--queue-capacity", "-1"}},
		{"zero idle rounds", []string{"--idle-rounds", "0"}},
		{"negative rate", []string{"--rate-limit", "-2"}},
		{"bad search url", []string{"--search-url", "ftp://maps"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newCmd(t, tt.args...))
			assert.Error(t, err)
		})
	}
}
