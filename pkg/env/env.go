// Package env provides typed helpers for reading environment variables,
// with Docker secrets support via the _FILE suffix convention.
package env

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// GetStringFromFile reads the environment variable value, or from a file if
// the <KEY>_FILE variant is set (Docker secrets support).
func GetStringFromFile(key, defaultValue string) string {
	if filePath := os.Getenv(key + "_FILE"); filePath != "" {
		if content, err := os.ReadFile(filepath.Clean(filePath)); err == nil {
			return string(bytes.TrimSpace(content))
		}
		// If file read fails, fall back to env var
	}
	return GetString(key, defaultValue)
}

// GetString returns the environment variable value or the default value if not set
func GetString(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetInt returns the environment variable value as an integer or the default value if not set
func GetInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// GetBool returns the environment variable value as a boolean or the default value if not set
func GetBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// GetDuration returns the environment variable value as a duration or the default value if not set
func GetDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
