// Package config loads process-wide server configuration.
//
// Values come from the environment, with a .env file optionally loaded
// first for local development. This mirrors original_source/server/config.py
// but reads from the environment instead of hardcoding values, the way the
// teacher repo layers godotenv.autoload in front of os.Getenv.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds everything the server needs to start listening and to run
// the session framework.
type Config struct {
	IP   string
	Port int

	// GameTimeout bounds both the admission wait in join and idle-session
	// expiry, measured in seconds from a session's last access.
	GameTimeout int

	// RequestSizeMax is the per-request body cap in bytes, reported back to
	// clients in the join response.
	RequestSizeMax int

	// BufferSize is the socket read chunk size in bytes.
	BufferSize int

	// ConnectionTimeout bounds a single connection's read/write deadline, in
	// seconds.
	ConnectionTimeout int

	LogServerInfo         bool
	LogServerErrors       bool
	LogFrameworkInfo      bool
	LogFrameworkRequest   bool
	LogFrameworkResponse  bool

	// LogFile, if non-empty, routes logs through a rotating file sink in
	// addition to stderr.
	LogFile string
}

// Default returns the configuration used when no environment variable
// overrides a field, matching original_source/server/config.py.
func Default() Config {
	return Config{
		IP:                  "127.0.0.1",
		Port:                4711,
		GameTimeout:         30,
		RequestSizeMax:      1_000_000,
		BufferSize:          4096,
		ConnectionTimeout:   60,
		LogServerInfo:       false,
		LogServerErrors:     true,
		LogFrameworkInfo:    false,
		LogFrameworkRequest: false,
		LogFrameworkResponse: false,
	}
}

// Load builds a Config starting from Default(), loading a .env file from
// envPath if it exists, then applying any TURNSERVER_* environment
// variables on top. An empty envPath skips the .env load entirely.
func Load(envPath string) (Config, error) {
	cfg := Default()

	if envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return Config{}, fmt.Errorf("config: failed to load %s: %w", envPath, err)
			}
		}
	}

	if v, ok := os.LookupEnv("TURNSERVER_IP"); ok {
		cfg.IP = v
	}
	if err := overrideInt("TURNSERVER_PORT", &cfg.Port); err != nil {
		return Config{}, err
	}
	if err := overrideInt("TURNSERVER_GAME_TIMEOUT", &cfg.GameTimeout); err != nil {
		return Config{}, err
	}
	if err := overrideInt("TURNSERVER_REQUEST_SIZE_MAX", &cfg.RequestSizeMax); err != nil {
		return Config{}, err
	}
	if err := overrideInt("TURNSERVER_BUFFER_SIZE", &cfg.BufferSize); err != nil {
		return Config{}, err
	}
	if err := overrideInt("TURNSERVER_CONNECTION_TIMEOUT", &cfg.ConnectionTimeout); err != nil {
		return Config{}, err
	}
	overrideBool("TURNSERVER_LOG_SERVER_INFO", &cfg.LogServerInfo)
	overrideBool("TURNSERVER_LOG_SERVER_ERRORS", &cfg.LogServerErrors)
	overrideBool("TURNSERVER_LOG_FRAMEWORK_INFO", &cfg.LogFrameworkInfo)
	overrideBool("TURNSERVER_LOG_FRAMEWORK_REQUEST", &cfg.LogFrameworkRequest)
	overrideBool("TURNSERVER_LOG_FRAMEWORK_RESPONSE", &cfg.LogFrameworkResponse)

	if v, ok := os.LookupEnv("TURNSERVER_LOG_FILE"); ok {
		cfg.LogFile = v
	}

	return cfg, nil
}

func overrideInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}

func overrideBool(key string, dst *bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return
	}
	*dst = b
}
