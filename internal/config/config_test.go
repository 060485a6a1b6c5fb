package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.RPC.URL)
	assert.Equal(t, 5, cfg.RPC.RequestsPerSecond)
	assert.Equal(t, []string{"sfdp", "marinade", "jpool", "blazestake", "jito", "sanctum"}, cfg.Programs.Enabled)
	assert.Equal(t, 5.0, cfg.Analysis.VulnerabilityMarginPct)
	assert.Equal(t, 20, cfg.Analysis.LookbackEpochs)
	assert.Equal(t, 6*time.Hour, cfg.Analysis.DriftCheckInterval)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.Alerts.EnableStdout)
	assert.True(t, cfg.Alerts.Rules.CriteriaDrift)
	assert.False(t, cfg.Server.SignReports)
	assert.Equal(t, 24*time.Hour, cfg.Server.SignatureValidity)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestLoadMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a mapping"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed parsing config")
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `validator:
  vote_pubkey: "FileVote1111"
analysis:
  vulnerability_margin_pct: 7.5
server:
  port: "9090"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "FileVote1111", cfg.Validator.VotePubkey)
	assert.Equal(t, 7.5, cfg.Analysis.VulnerabilityMarginPct)
	assert.Equal(t, "9090", cfg.Server.Port)

	// Untouched sections keep their defaults.
	assert.Equal(t, Default().RPC.URL, cfg.RPC.URL)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0o644))

	t.Setenv("PORT", "7070")
	t.Setenv("VOTE_PUBKEY", "EnvVote1111")
	t.Setenv("VULNERABILITY_MARGIN_PCT", "3.5")
	t.Setenv("ENABLED_PROGRAMS", "marinade, jito")
	t.Setenv("DRIFT_CHECK_INTERVAL", "90m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "EnvVote1111", cfg.Validator.VotePubkey)
	assert.Equal(t, 3.5, cfg.Analysis.VulnerabilityMarginPct)
	assert.Equal(t, []string{"marinade", "jito"}, cfg.Programs.Enabled)
	assert.Equal(t, 90*time.Minute, cfg.Analysis.DriftCheckInterval)
}

func TestWriteTemplateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteTemplate(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "YourVoteAccountPubkeyHere", cfg.Validator.VotePubkey)
	assert.Equal(t, 5.0, cfg.Analysis.VulnerabilityMarginPct)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Len(t, cfg.Programs.Enabled, 6)
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "data"), ExpandTilde("~/data"))
	assert.Equal(t, "/absolute/path", ExpandTilde("/absolute/path"))
	assert.Equal(t, "relative/path", ExpandTilde("relative/path"))
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STRING", "value")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_FLOAT", "2.5")
	t.Setenv("TEST_DURATION", "45s")
	t.Setenv("TEST_BAD_INT", "not-a-number")

	assert.Equal(t, "value", GetEnvOrDefault("TEST_STRING", "fallback"))
	assert.Equal(t, "fallback", GetEnvOrDefault("TEST_UNSET", "fallback"))
	assert.Equal(t, 42, GetEnvAsInt("TEST_INT", 7))
	assert.Equal(t, 7, GetEnvAsInt("TEST_BAD_INT", 7))
	assert.Equal(t, 2.5, GetEnvAsFloat("TEST_FLOAT", 1.0))
	assert.Equal(t, 45*time.Second, GetEnvAsDuration("TEST_DURATION", time.Minute))
	assert.Equal(t, time.Minute, GetEnvAsDuration("TEST_UNSET", time.Minute))
}

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a , b "))
	assert.Equal(t, []string{"a"}, splitAndTrim("a,,  ,"))
}
