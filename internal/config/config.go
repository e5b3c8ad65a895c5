// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Config holds the process-wide settings threaded into the batch
// orchestrator and the CLI. It is an explicit struct rather than
// ambient globals so tests can inject deterministic values.
type Config struct {
	Parallelism int    // worker pool size for batch runs (default: NumCPU)
	OutDir      string // output directory for rendered charts
	LogLevel    string // log level: debug, info, warn, error (default "info")
	Env         string // environment: "development" (default) or "production"

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables. Every
// field has a working default; nothing is required.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		OutDir:   os.Getenv("CHARTFORGE_OUT_DIR"),
		LogLevel: os.Getenv("LOG_LEVEL"),
		Env:      os.Getenv("ENV"),
	}

	if v := os.Getenv("CHARTFORGE_PARALLELISM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("CHARTFORGE_PARALLELISM must be a positive integer, got %q", v)
		}
		cfg.Parallelism = n
	}

	// Defaults
	if cfg.Parallelism == 0 {
		cfg.Parallelism = runtime.NumCPU()
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.OutDir == "" {
		dir, warn := defaultOutDir()
		cfg.OutDir = dir
		if warn != "" {
			cfg.Warnings = append(cfg.Warnings, warn)
		}
	}

	return cfg, nil
}

// defaultOutDir resolves the output directory. Inside a project tree
// (a chartforge.yaml marker or .git directory in the working directory
// or a parent) charts go to <tree root>/out; otherwise to
// ~/charts/chartforge.
func defaultOutDir() (string, string) {
	if root, ok := devTreeRoot(); ok {
		return filepath.Join(root, "out"), ""
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "out", "cannot resolve home directory, writing charts to ./out"
	}
	return filepath.Join(home, "charts", "chartforge"), ""
}

func devTreeRoot() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "chartforge.yaml")); err == nil {
			return dir, true
		}
		if fi, err := os.Stat(filepath.Join(dir, ".git")); err == nil && fi.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = stripQuotes(value)
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
