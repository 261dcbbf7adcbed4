// Package config provides configuration management for the Cube agent.
package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the application configuration. It is built once at startup
// and read-only afterwards.
type Config struct {
	// Endpoint is the Cube API base URL.
	Endpoint string
	// APISecret signs the authentication tokens.
	APISecret string
	// TokenPayload holds extra claims merged into every token.
	TokenPayload map[string]any
	// ResultTTL bounds the result cache; zero keeps entries for the
	// lifetime of the process.
	ResultTTL time.Duration
	// LogLevel is a logrus level name.
	LogLevel string
	// LogDir, when set, adds a server.log file handler there.
	LogDir string
}

// Load merges environment variables with command-line flags, flags taking
// precedence. Any leftover --key value arguments that do not match a known
// flag are folded into the token payload as extra claims.
func Load(flags *pflag.FlagSet, rawArgs []string) (*Config, error) {
	v := viper.New()
	v.SetDefault("token_payload", "{}")
	v.SetDefault("log_level", "info")

	bindings := map[string]string{
		"endpoint":      "CUBE_ENDPOINT",
		"api_secret":    "CUBE_API_SECRET",
		"token_payload": "CUBE_TOKEN_PAYLOAD",
		"result_ttl":    "CUBE_RESULT_TTL",
		"log_level":     "CUBE_LOG_LEVEL",
		"log_dir":       "CUBE_LOG_DIR",
	}
	for key, envVar := range bindings {
		if err := v.BindEnv(key, envVar); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", envVar, err)
		}
	}

	// Flags win over env vars: only bind flags the caller actually set.
	flags.Visit(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if _, known := bindings[key]; known {
			v.Set(key, f.Value.String())
		}
	})

	cfg := &Config{
		Endpoint:  v.GetString("endpoint"),
		APISecret: v.GetString("api_secret"),
		ResultTTL: v.GetDuration("result_ttl"),
		LogLevel:  v.GetString("log_level"),
		LogDir:    v.GetString("log_dir"),
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("Cube endpoint is required (set CUBE_ENDPOINT or --endpoint)")
	}
	if cfg.APISecret == "" {
		return nil, fmt.Errorf("Cube API secret is required (set CUBE_API_SECRET or --api-secret)")
	}

	payload := map[string]any{}
	if raw := v.GetString("token_payload"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, fmt.Errorf("invalid JSON in token payload: %w", err)
		}
	}
	for key, value := range extraClaims(flags, rawArgs) {
		payload[key] = value
	}
	cfg.TokenPayload = payload

	return cfg, nil
}

// extraClaims scans the raw argument list for --key value pairs that do not
// correspond to a declared flag. A bare --key with no value becomes a true
// claim. Declared flags and their values are skipped.
func extraClaims(flags *pflag.FlagSet, rawArgs []string) map[string]any {
	claims := map[string]any{}
	for i := 0; i < len(rawArgs); i++ {
		arg := rawArgs[i]
		if !strings.HasPrefix(arg, "--") || arg == "--" {
			continue
		}

		key := strings.TrimPrefix(arg, "--")
		var value any
		hasInline := false
		if eq := strings.Index(key, "="); eq >= 0 {
			value = key[eq+1:]
			key = key[:eq]
			hasInline = true
		}

		if flags.Lookup(key) != nil {
			// Known flag; skip its separate value if it takes one.
			if !hasInline && flagTakesValue(flags, key) && i+1 < len(rawArgs) && !strings.HasPrefix(rawArgs[i+1], "--") {
				i++
			}
			continue
		}

		if hasInline {
			claims[key] = value
		} else if i+1 < len(rawArgs) && !strings.HasPrefix(rawArgs[i+1], "--") {
			claims[key] = rawArgs[i+1]
			i++
		} else {
			claims[key] = true
		}
	}
	return claims
}

func flagTakesValue(flags *pflag.FlagSet, name string) bool {
	f := flags.Lookup(name)
	return f != nil && f.Value.Type() != "bool"
}
