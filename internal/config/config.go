package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIURL         string   `json:"api_url"`
	RequestTimeout Duration `json:"request_timeout"`
	FlashWindow    Duration `json:"flash_window"`
	DBPath         string   `json:"db_path"`
	ListenAddr     string   `json:"listen_addr"`
	MetricsAddr    string   `json:"metrics_addr"`
	LogLevel       string   `json:"log_level"`
}

func Default() Config {
	return Config{
		APIURL:      "http://localhost:3000",
		FlashWindow: Duration(time.Second),
		ListenAddr:  ":3000",
		LogLevel:    "info",
	}
}

func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "taskform", "config.json"), nil
}

func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

func Load(path string) (Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return Config{}, err
	}

	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return config, nil
}

func Save(path string, cfg Config) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// Prepare loads the config at path, applies the command-line overrides and
// saves the result. The returned config also carries the environment, which
// is never written back. Overrides win over the environment.
func Prepare(path string, override func(*Config), envFiles ...string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return Config{}, err
	}
	if override == nil {
		override = func(*Config) {}
	}
	override(&cfg)

	if err := Save(path, cfg); err != nil {
		return Config{}, err
	}

	cfg, err = ApplyEnv(cfg, envFiles...)
	if err != nil {
		return Config{}, err
	}
	override(&cfg)
	return cfg, nil
}

// ApplyEnv loads the given .env files, when present, and overrides cfg with
// TASKFORM_* variables.
func ApplyEnv(cfg Config, envFiles ...string) (Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	if value := os.Getenv("TASKFORM_API_URL"); value != "" {
		cfg.APIURL = value
	}
	if value := os.Getenv("TASKFORM_DB"); value != "" {
		cfg.DBPath = value
	}
	if value := os.Getenv("TASKFORM_LISTEN"); value != "" {
		cfg.ListenAddr = value
	}
	if value := os.Getenv("TASKFORM_METRICS"); value != "" {
		cfg.MetricsAddr = value
	}
	if value := os.Getenv("TASKFORM_LOG_LEVEL"); value != "" {
		cfg.LogLevel = value
	}
	if value := os.Getenv("TASKFORM_TIMEOUT"); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse TASKFORM_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = Duration(parsed)
	}
	if value := os.Getenv("TASKFORM_FLASH"); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse TASKFORM_FLASH: %w", err)
		}
		cfg.FlashWindow = Duration(parsed)
	}
	return cfg, nil
}

// Level returns the configured slog level, defaulting to info.
func (c Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Duration is a time.Duration written as "1s" or "250ms" in the config file.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("duration must be a string like \"1s\": %w", err)
	}
	if value == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}
