// Package config provides configuration loading and management for the application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Validator ValidatorConfig `yaml:"validator"`
	RPC       RPCConfig       `yaml:"rpc"`
	Storage   StorageConfig   `yaml:"storage"`
	Programs  ProgramsConfig  `yaml:"programs"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Server    ServerConfig    `yaml:"server"`
}

// ValidatorConfig identifies the validator being tracked
type ValidatorConfig struct {
	VotePubkey string `yaml:"vote_pubkey"`
}

// RPCConfig points at the Solana RPC endpoint used for metric collection
type RPCConfig struct {
	URL               string `yaml:"url"`
	RequestsPerSecond int    `yaml:"requests_per_second"`
}

// StorageConfig locates the embedded history database
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// ProgramsConfig selects which delegation programs scans cover
type ProgramsConfig struct {
	Enabled []string `yaml:"enabled"`
}

// AnalysisConfig tunes the vulnerability and drift analyzers
type AnalysisConfig struct {
	// VulnerabilityMarginPct is the passing-margin percentage below
	// which a peer metric counts as at risk
	VulnerabilityMarginPct float64 `yaml:"vulnerability_margin_pct"`
	LookbackEpochs         int     `yaml:"lookback_epochs"`
	DriftCheckInterval     time.Duration `yaml:"drift_check_interval"`
}

// OptimizerConfig feeds the recommendation engine's revenue model
type OptimizerConfig struct {
	RevenuePerSOLPerEpoch float64 `yaml:"revenue_per_sol_per_epoch"`
	MonthlyInfraCostUSD   float64 `yaml:"monthly_infra_cost_usd"`
}

// AlertsConfig selects delivery channels and which rules fire
type AlertsConfig struct {
	WebhookURL   string           `yaml:"webhook_url"`
	EnableStdout bool             `yaml:"enable_stdout"`
	Rules        AlertRulesConfig `yaml:"rules"`
}

// AlertRulesConfig enables or suppresses individual alert kinds
type AlertRulesConfig struct {
	CriteriaDrift         bool `yaml:"criteria_drift"`
	VulnerabilityDetected bool `yaml:"vulnerability_detected"`
	EligibilityLost       bool `yaml:"eligibility_lost"`
	EligibilityGained     bool `yaml:"eligibility_gained"`
}

// ServerConfig holds the HTTP API settings
type ServerConfig struct {
	Port              string  `yaml:"port"`
	RateLimitPerSec   float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst    int     `yaml:"rate_limit_burst"`
	OtelEndpoint      string  `yaml:"otel_endpoint"`
	SignReports       bool    `yaml:"sign_reports"`
	SignatureValidity time.Duration `yaml:"signature_validity"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		RPC: RPCConfig{
			URL:               "https://api.mainnet-beta.solana.com",
			RequestsPerSecond: 5,
		},
		Storage: StorageConfig{
			DBPath: "~/.local/share/delegation-oracle/history",
		},
		Programs: ProgramsConfig{
			Enabled: []string{"sfdp", "marinade", "jpool", "blazestake", "jito", "sanctum"},
		},
		Analysis: AnalysisConfig{
			VulnerabilityMarginPct: 5.0,
			LookbackEpochs:         20,
			DriftCheckInterval:     6 * time.Hour,
		},
		Optimizer: OptimizerConfig{
			RevenuePerSOLPerEpoch: 0.0001,
			MonthlyInfraCostUSD:   800.0,
		},
		Alerts: AlertsConfig{
			EnableStdout: true,
			Rules: AlertRulesConfig{
				CriteriaDrift:         true,
				VulnerabilityDetected: true,
				EligibilityLost:       true,
				EligibilityGained:     true,
			},
		},
		Server: ServerConfig{
			Port:              "8080",
			RateLimitPerSec:   10,
			RateLimitBurst:    20,
			SignReports:       false,
			SignatureValidity: 24 * time.Hour,
		},
	}
}

// DefaultPath returns the conventional config file location
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "delegation-oracle", "config.yaml")
}

// Load builds the effective configuration: defaults, then the YAML file
// when present, then environment overrides. A missing file is not an
// error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed parsing config %s: %w", path, err)
		}
		logrus.WithField("path", path).Debug("Loaded configuration file")
	case os.IsNotExist(err):
		logrus.WithField("path", path).Debug("No configuration file, using defaults")
	default:
		return cfg, fmt.Errorf("failed reading config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// WriteTemplate writes a commented starter config to path
func WriteTemplate(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed creating config directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(defaultTemplate), 0o644); err != nil {
		return fmt.Errorf("failed writing config template %s: %w", path, err)
	}
	return nil
}

// ResolvedDBPath expands a leading ~/ in the storage path
func (c *Config) ResolvedDBPath() string {
	return ExpandTilde(c.Storage.DBPath)
}

// ExpandTilde resolves a leading ~/ against the user's home directory
func ExpandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func applyEnvOverrides(cfg *Config) {
	cfg.Validator.VotePubkey = GetEnvOrDefault("VOTE_PUBKEY", cfg.Validator.VotePubkey)
	cfg.RPC.URL = GetEnvOrDefault("RPC_URL", cfg.RPC.URL)
	cfg.RPC.RequestsPerSecond = GetEnvAsInt("RPC_REQUESTS_PER_SECOND", cfg.RPC.RequestsPerSecond)
	cfg.Storage.DBPath = GetEnvOrDefault("DB_PATH", cfg.Storage.DBPath)
	if programs := GetEnvOrDefault("ENABLED_PROGRAMS", ""); programs != "" {
		cfg.Programs.Enabled = splitAndTrim(programs)
	}
	cfg.Analysis.VulnerabilityMarginPct = GetEnvAsFloat("VULNERABILITY_MARGIN_PCT", cfg.Analysis.VulnerabilityMarginPct)
	cfg.Analysis.LookbackEpochs = GetEnvAsInt("LOOKBACK_EPOCHS", cfg.Analysis.LookbackEpochs)
	cfg.Analysis.DriftCheckInterval = GetEnvAsDuration("DRIFT_CHECK_INTERVAL", cfg.Analysis.DriftCheckInterval)
	cfg.Alerts.WebhookURL = GetEnvOrDefault("ALERT_WEBHOOK_URL", cfg.Alerts.WebhookURL)
	cfg.Server.Port = GetEnvOrDefault("PORT", cfg.Server.Port)
	cfg.Server.RateLimitPerSec = GetEnvAsFloat("RATE_LIMIT_PER_SEC", cfg.Server.RateLimitPerSec)
	cfg.Server.RateLimitBurst = GetEnvAsInt("RATE_LIMIT_BURST", cfg.Server.RateLimitBurst)
	cfg.Server.OtelEndpoint = GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Server.OtelEndpoint)
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

const defaultTemplate = `validator:
  vote_pubkey: "YourVoteAccountPubkeyHere"

rpc:
  url: "https://api.mainnet-beta.solana.com"
  requests_per_second: 5

storage:
  db_path: "~/.local/share/delegation-oracle/history"

programs:
  enabled: [sfdp, marinade, jpool, blazestake, jito, sanctum]

analysis:
  vulnerability_margin_pct: 5.0
  lookback_epochs: 20
  drift_check_interval: 6h

optimizer:
  revenue_per_sol_per_epoch: 0.0001
  monthly_infra_cost_usd: 800.0

alerts:
  webhook_url: ""
  enable_stdout: true
  rules:
    criteria_drift: true
    vulnerability_detected: true
    eligibility_lost: true
    eligibility_gained: true

server:
  port: "8080"
  rate_limit_per_sec: 10
  rate_limit_burst: 20
  sign_reports: false
  signature_validity: 24h
`
