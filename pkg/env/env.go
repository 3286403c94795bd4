package env

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Get returns the value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func Bool(key string, fallback bool) bool {
	raw := Get(key, "")
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

// Duration parses values like "30s" and falls back on anything unparsable.
func Duration(key string, fallback time.Duration) time.Duration {
	raw := Get(key, "")
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
