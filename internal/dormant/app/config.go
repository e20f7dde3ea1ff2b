package app

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	SecretFile    string // Required: KEY=VALUE file carrying TOKEN_SECRET
	TokenStrategy string // Optional: token strategy (hmac, opaque, jwt) (default: hmac)

	TokenWindow      time.Duration // Optional: action-link validity window (default: 24h)
	TokenFutureDrift time.Duration // Optional: tolerated future clock skew (default: equal to window; negative: none)

	StoreDriver  string // Optional: storage driver (flatfile, sqlite) (default: flatfile)
	StateDir     string // Optional: flatfile state directory (default: ./state)
	DatabaseFile string // Optional: path to SQLite database file (default: ./dormant.db)

	TrackOptOut    bool // Optional: record "no" answers on the opt-out list (default: true)
	OpenDeactivate bool // Optional: allow tokenless direct deactivation (default: false)

	DirectoryTimeout time.Duration // Optional: per directory call timeout (default: 30s)
	NologinShell     string        // Optional: shell assigned on deactivation (default: /usr/sbin/nologin)
	LoginShell       string        // Optional: shell restored on reset (default: /bin/bash)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		SecretFile:    getEnvOrDefault("DORMANT_SECRET_FILE", "dormant.conf"),
		TokenStrategy: getEnvOrDefault("DORMANT_TOKEN_STRATEGY", "hmac"),

		TokenWindow:      getEnvDurationOrDefault("DORMANT_TOKEN_WINDOW", 24*time.Hour),
		TokenFutureDrift: loadFutureDrift(),

		StoreDriver:  getEnvOrDefault("DORMANT_STORE_DRIVER", "flatfile"),
		StateDir:     getEnvOrDefault("DORMANT_STATE_DIR", "state"),
		DatabaseFile: getEnvOrDefault("DORMANT_DATABASE_FILE", "dormant.db"),

		TrackOptOut:    getEnvBoolOrDefault("DORMANT_TRACK_OPT_OUT", true),
		OpenDeactivate: getEnvBoolOrDefault("DORMANT_OPEN_DEACTIVATE", false),

		DirectoryTimeout: getEnvDurationOrDefault("DORMANT_DIRECTORY_TIMEOUT", 30*time.Second),
		NologinShell:     getEnvOrDefault("DORMANT_NOLOGIN_SHELL", "/usr/sbin/nologin"),
		LoginShell:       getEnvOrDefault("DORMANT_LOGIN_SHELL", "/bin/bash"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

// LoadSecret reads the token secret from the KEY=VALUE config file named by
// cfg.SecretFile. A missing file or missing TOKEN_SECRET entry is fatal at
// startup: issuing unsigned action links is never acceptable.
func LoadSecret(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open secret file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		if strings.TrimSpace(key) == "TOKEN_SECRET" {
			secret := strings.TrimSpace(value)
			if secret == "" {
				return nil, fmt.Errorf("secret file %s: TOKEN_SECRET is empty", path)
			}
			return []byte(secret), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read secret file: %w", err)
	}
	return nil, fmt.Errorf("secret file %s: TOKEN_SECRET not set", path)
}

// loadFutureDrift distinguishes "unset" (follow the window) from an
// explicit "0" (no future tolerance), which the strategies encode as a
// negative drift.
func loadFutureDrift() time.Duration {
	value := os.Getenv("DORMANT_TOKEN_FUTURE_DRIFT")
	if value == "" {
		return 0
	}
	drift := getEnvDurationOrDefault("DORMANT_TOKEN_FUTURE_DRIFT", 0)
	if drift <= 0 {
		return -1
	}
	return drift
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are taken as hours (legacy config style)
	if hours, err := strconv.Atoi(value); err == nil {
		return time.Duration(hours) * time.Hour
	}

	return defaultValue
}
