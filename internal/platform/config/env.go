package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from process environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseEnvironment loads configuration from the supplied environment map
// instead of the process environment. Fields whose variables are absent
// from the map are left untouched, which is what gives environment values
// precedence when layered over flag-parsed defaults.
func ParseEnvironment(target any, environ map[string]string) error {
	if err := env.ParseWithOptions(target, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Environ returns the process environment as a map for ParseEnvironment.
func Environ() map[string]string {
	return env.ToMap(os.Environ())
}
