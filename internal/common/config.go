// Package common provides shared configuration, logging and progress
// statistics for the GOES XRS tools.
package common

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds common configuration for all applications.
type Config struct {
	ClickHouseHost     string `yaml:"clickhouse_host"`
	ClickHousePort     int    `yaml:"clickhouse_port"`
	ClickHouseDatabase string `yaml:"clickhouse_database"`
	ClickHouseUser     string `yaml:"clickhouse_user"`
	ClickHousePassword string `yaml:"clickhouse_password"`
	FluxTable          string `yaml:"flux_table"`
	DiagnosticsTable   string `yaml:"diagnostics_table"`

	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	// Response table artifact: http(s) URL or local path.
	ResponseURL    string        `yaml:"response_url"`
	ResponseSHA256 string        `yaml:"response_sha256"`
	HTTPTimeout    time.Duration `yaml:"http_timeout"`

	Abundance     string `yaml:"abundance"`     // coronal | photospheric
	Extrapolation string `yaml:"extrapolation"` // extrapolate | clamp | reject

	MetricsAddr string `yaml:"metrics_addr"`
}

// DefaultConfig returns configuration with sensible defaults, overridden
// by the environment.
func DefaultConfig() *Config {
	cfg := baseConfig()
	cfg.applyEnv()
	return cfg
}

// LoadConfig layers defaults, the optional YAML file at path and then the
// environment. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := baseConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func baseConfig() *Config {
	dataDir := "/var/lib/ki7mt-ai-lab"
	return &Config{
		ClickHouseHost:     "localhost",
		ClickHousePort:     9000,
		ClickHouseDatabase: "solar",
		ClickHouseUser:     "default",
		FluxTable:          "xrs_flux",
		DiagnosticsTable:   "xrs_tem",
		DataDir:            dataDir,
		LogLevel:           "info",
		HTTPTimeout:        60 * time.Second,
		Abundance:          "coronal",
		Extrapolation:      "extrapolate",
	}
}

func (c *Config) applyEnv() {
	c.ClickHouseHost = getEnv("CLICKHOUSE_HOST", c.ClickHouseHost)
	c.ClickHousePort = getEnvInt("CLICKHOUSE_PORT", c.ClickHousePort)
	c.ClickHouseDatabase = getEnv("CLICKHOUSE_DATABASE", c.ClickHouseDatabase)
	c.ClickHouseUser = getEnv("CLICKHOUSE_USER", c.ClickHouseUser)
	c.ClickHousePassword = getEnv("CLICKHOUSE_PASSWORD", c.ClickHousePassword)
	c.DataDir = getEnv("KI7MT_DATA_DIR", c.DataDir)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.ResponseURL = getEnv("XRS_RESPONSE_URL", c.ResponseURL)
	c.ResponseSHA256 = getEnv("XRS_RESPONSE_SHA256", c.ResponseSHA256)
	c.Abundance = getEnv("XRS_ABUNDANCE", c.Abundance)
	c.Extrapolation = getEnv("XRS_EXTRAPOLATION", c.Extrapolation)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)
}

// ClickHouseAddr returns host:port for the native protocol.
func (c *Config) ClickHouseAddr() string {
	return net.JoinHostPort(c.ClickHouseHost, strconv.Itoa(c.ClickHousePort))
}

// SolarDataDir returns the solar data directory path.
func (c *Config) SolarDataDir() string {
	return filepath.Join(c.DataDir, "solar")
}

// XRSDataDir returns the directory for downloaded XRS feeds.
func (c *Config) XRSDataDir() string {
	return filepath.Join(c.SolarDataDir(), "xrs")
}

// Published CHIANTI GOES/XRS response table and its pinned digest.
const (
	DefaultResponseURL    = "https://sohoftp.nascom.nasa.gov/solarsoft/gen/idl/synoptic/goes/goes_chianti_response_latest.fits"
	DefaultResponseSHA256 = "4ca9730fb039e8a04407ae0aa4d5e3e2566b93dfe549157aa7c8fc3aa1e3e04d"
)

// ResponseLocation returns the configured response table location,
// defaulting to the published FITS table.
func (c *Config) ResponseLocation() string {
	if c.ResponseURL != "" {
		return c.ResponseURL
	}
	return DefaultResponseURL
}

// ResponseChecksum returns the SHA-256 to verify the artifact at location
// against. An explicit ResponseSHA256 wins; the published table is pinned
// to DefaultResponseSHA256; anything else is not verified.
func (c *Config) ResponseChecksum(location string) string {
	if c.ResponseSHA256 != "" {
		return c.ResponseSHA256
	}
	if location == DefaultResponseURL {
		return DefaultResponseSHA256
	}
	return ""
}

// ResponseCacheDir is where downloaded response tables are kept.
func (c *Config) ResponseCacheDir() string {
	return filepath.Join(c.SolarDataDir(), "cache")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
