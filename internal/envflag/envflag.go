// Package envflag supplies flag defaults from environment variables, so every
// binary can be configured either way.
package envflag

import (
	"os"
	"strconv"
	"strings"
)

// String returns $key, or def when it is unset or empty.
func String(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// Int returns $key parsed as an int. Unparseable values fall back to def.
func Int(key string, def int) int {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func Int64(key string, def int64) int64 {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return def
}

// Bool accepts anything strconv.ParseBool does plus yes/no.
func Bool(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "":
		return def
	case "yes", "y", "on":
		return true
	case "no", "n", "off":
		return false
	}
	if b, err := strconv.ParseBool(val); err == nil {
		return b
	}
	return def
}
