package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers accepted by PROOFSHIP_STORAGE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config captures the settings of the proof-of-ship service.
type Config struct {
	HTTPPort           int
	StorageDriver      string
	SQLiteDSN          string
	PostgresURL        string
	GitHubAPIURL       string
	GitHubToken        string
	FetchTimeout       time.Duration
	CacheTTL           time.Duration
	RedisAddr          string
	HistoryWeeks       int
	EvaluationInterval time.Duration
	APITokenHash       string
	LogLevel           string
	Tracing            bool
}

// fileSettings mirrors the optional YAML file. Scalars are decoded as text and
// parsed exactly like their environment counterparts.
type fileSettings struct {
	HTTPPort           string `yaml:"http_port"`
	StorageDriver      string `yaml:"storage_driver"`
	SQLiteDSN          string `yaml:"sqlite_dsn"`
	PostgresURL        string `yaml:"postgres_url"`
	GitHubAPIURL       string `yaml:"github_api_url"`
	GitHubToken        string `yaml:"github_token"`
	FetchTimeout       string `yaml:"fetch_timeout"`
	CacheTTL           string `yaml:"cache_ttl"`
	RedisAddr          string `yaml:"redis_addr"`
	HistoryWeeks       string `yaml:"history_weeks"`
	EvaluationInterval string `yaml:"evaluation_interval"`
	APITokenHash       string `yaml:"api_token_hash"`
	LogLevel           string `yaml:"log_level"`
	Tracing            string `yaml:"tracing"`
}

func (f fileSettings) byKey() map[string]string {
	return map[string]string{
		"PROOFSHIP_HTTP_PORT":           f.HTTPPort,
		"PROOFSHIP_STORAGE_DRIVER":      f.StorageDriver,
		"PROOFSHIP_SQLITE_DSN":          f.SQLiteDSN,
		"PROOFSHIP_POSTGRES_URL":        f.PostgresURL,
		"PROOFSHIP_GITHUB_API_URL":      f.GitHubAPIURL,
		"PROOFSHIP_GITHUB_TOKEN":        f.GitHubToken,
		"PROOFSHIP_FETCH_TIMEOUT":       f.FetchTimeout,
		"PROOFSHIP_CACHE_TTL":           f.CacheTTL,
		"PROOFSHIP_REDIS_ADDR":          f.RedisAddr,
		"PROOFSHIP_HISTORY_WEEKS":       f.HistoryWeeks,
		"PROOFSHIP_EVALUATION_INTERVAL": f.EvaluationInterval,
		"PROOFSHIP_API_TOKEN_HASH":      f.APITokenHash,
		"PROOFSHIP_LOG_LEVEL":           f.LogLevel,
		"PROOFSHIP_TRACING":             f.Tracing,
	}
}

// Load builds the configuration from defaults, the YAML file named by
// PROOFSHIP_CONFIG_FILE and the process environment, in increasing priority.
//
// Every missing or malformed key is reported in a single error.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:      8080,
		StorageDriver: DriverSQLite,
		SQLiteDSN:     "proofship.db",
		GitHubAPIURL:  "https://api.github.com",
		FetchTimeout:  10 * time.Second,
		CacheTTL:      60 * time.Second,
		HistoryWeeks:  4,
		LogLevel:      "info",
	}

	file, err := readFile(strings.TrimSpace(os.Getenv("PROOFSHIP_CONFIG_FILE")))
	if err != nil {
		return Config{}, err
	}
	value := func(key string) string {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
		return strings.TrimSpace(file[key])
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if v := value("PROOFSHIP_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "PROOFSHIP_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if v := value("PROOFSHIP_STORAGE_DRIVER"); v != "" {
		switch driver := strings.ToLower(v); driver {
		case DriverMemory, DriverSQLite, DriverPostgres:
			cfg.StorageDriver = driver
		default:
			invalid = append(invalid, "PROOFSHIP_STORAGE_DRIVER")
		}
	}

	if v := value("PROOFSHIP_SQLITE_DSN"); v != "" {
		cfg.SQLiteDSN = v
	}

	cfg.PostgresURL = value("PROOFSHIP_POSTGRES_URL")
	if cfg.StorageDriver == DriverPostgres && cfg.PostgresURL == "" {
		missing = append(missing, "PROOFSHIP_POSTGRES_URL")
	}

	if v := value("PROOFSHIP_GITHUB_API_URL"); v != "" {
		if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
			invalid = append(invalid, "PROOFSHIP_GITHUB_API_URL")
		} else {
			cfg.GitHubAPIURL = strings.TrimRight(v, "/")
		}
	}

	cfg.GitHubToken = value("PROOFSHIP_GITHUB_TOKEN")

	if v := value("PROOFSHIP_FETCH_TIMEOUT"); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil || timeout <= 0 {
			invalid = append(invalid, "PROOFSHIP_FETCH_TIMEOUT")
		} else {
			cfg.FetchTimeout = timeout
		}
	}

	if v := value("PROOFSHIP_CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil || ttl < 0 {
			invalid = append(invalid, "PROOFSHIP_CACHE_TTL")
		} else {
			cfg.CacheTTL = ttl
		}
	}

	cfg.RedisAddr = value("PROOFSHIP_REDIS_ADDR")

	if v := value("PROOFSHIP_HISTORY_WEEKS"); v != "" {
		weeks, err := strconv.Atoi(v)
		if err != nil || weeks < 0 || weeks > 7 {
			invalid = append(invalid, "PROOFSHIP_HISTORY_WEEKS")
		} else {
			cfg.HistoryWeeks = weeks
		}
	}

	if v := value("PROOFSHIP_EVALUATION_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil || interval < 0 || (interval > 0 && interval < time.Minute) {
			invalid = append(invalid, "PROOFSHIP_EVALUATION_INTERVAL")
		} else {
			cfg.EvaluationInterval = interval
		}
	}

	if v := value("PROOFSHIP_API_TOKEN_HASH"); v != "" {
		if !strings.HasPrefix(v, "$argon2id$") {
			invalid = append(invalid, "PROOFSHIP_API_TOKEN_HASH")
		} else {
			cfg.APITokenHash = v
		}
	}

	if v := value("PROOFSHIP_LOG_LEVEL"); v != "" {
		switch level := strings.ToLower(v); level {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = level
		default:
			invalid = append(invalid, "PROOFSHIP_LOG_LEVEL")
		}
	}

	if v := value("PROOFSHIP_TRACING"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			invalid = append(invalid, "PROOFSHIP_TRACING")
		} else {
			cfg.Tracing = enabled
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func readFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file %s does not exist", path)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var settings fileSettings
	if err := yaml.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return settings.byKey(), nil
}
