// Package env holds the one environment lookup that happens before config
// parsing, during logger bootstrap.
package env

import "os"

// Get reads an environment variable, falling back when it is unset or empty.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
