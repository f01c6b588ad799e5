package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/opterm/opterm/internal/log"
)

// parseString reads a string from an environment variable or returns the
// fallback. The source is logged at debug level for observability; values
// of keys that look sensitive are never logged.
func parseString(key, fallback string) string {
	logger := log.WithComponent("config")
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	lowerKey := strings.ToLower(key)
	if strings.Contains(lowerKey, "key") || strings.Contains(lowerKey, "token") {
		logger.Debug().
			Str("key", key).
			Str("source", "environment").
			Bool("sensitive", true).
			Msg("using environment variable")
	} else {
		logger.Debug().
			Str("key", key).
			Str("value", value).
			Str("source", "environment").
			Msg("using environment variable")
	}
	return value
}

// parseInt reads an integer from an environment variable, falling back on
// absent, empty, or malformed values.
func parseInt(key string, fallback int) int {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Int("default", fallback).
			Msg("invalid integer in environment variable, using default")
		return fallback
	}
	return i
}

// parseTimeout reads a timeout that may be a Go duration ("30s") or, for
// compatibility with older setups, a bare number of seconds ("30").
func parseTimeout(key string, fallback time.Duration) time.Duration {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	if d, ok := parseTimeoutValue(v); ok {
		return d
	}
	logger.Warn().
		Str("key", key).
		Str("value", v).
		Dur("default", fallback).
		Msg("invalid timeout in environment variable, using default")
	return fallback
}

func parseTimeoutValue(v string) (time.Duration, bool) {
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d, true
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}
