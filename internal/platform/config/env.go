// Package config holds the environment parsing helpers shared by livegate
// binaries.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseEnvWith loads configuration using lookup instead of the process
// environment. A nil lookup falls back to ParseEnv.
func ParseEnvWith(target any, lookup func(string) (string, bool)) error {
	if lookup == nil {
		return ParseEnv(target)
	}
	if err := env.ParseWithOptions(target, env.Options{Environment: snapshot(lookup, target)}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// snapshot materialises the variables referenced by target's env tags so the
// env library can read them from a map.
func snapshot(lookup func(string) (string, bool), target any) map[string]string {
	values := make(map[string]string)
	keys, err := env.GetFieldParams(target)
	if err != nil {
		return values
	}
	for _, key := range keys {
		if value, ok := lookup(key.Key); ok {
			values[key.Key] = value
		}
	}
	return values
}

// IsTrue reports whether an env-style flag value means enabled.
func IsTrue(value string) bool {
	value = strings.TrimSpace(value)
	return strings.EqualFold(value, "true") || value == "1"
}
