package env

import (
	"os"
	"strings"
)

// Get returns the trimmed value of the environment variable, or the fallback
// when it is unset or blank.
func Get(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	val = strings.TrimSpace(val)
	if val == "" {
		return fallback
	}
	return val
}

// IsSet reports whether the variable is present with a non-blank value.
func IsSet(key string) bool {
	val, ok := os.LookupEnv(key)
	return ok && strings.TrimSpace(val) != ""
}
