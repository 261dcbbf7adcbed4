package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func newFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("endpoint", "", "")
	flags.String("api-secret", "", "")
	flags.String("token-payload", "", "")
	flags.Duration("result-ttl", 0, "")
	flags.String("log-level", "", "")
	flags.String("log-dir", "", "")
	return flags
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("CUBE_ENDPOINT", "https://cube.example.com/cubejs-api/v1")
	t.Setenv("CUBE_API_SECRET", "env-secret")
	t.Setenv("CUBE_TOKEN_PAYLOAD", `{"tenant": "acme"}`)

	cfg, err := Load(newFlags(), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Endpoint != "https://cube.example.com/cubejs-api/v1" {
		t.Errorf("Endpoint = %s", cfg.Endpoint)
	}
	if cfg.APISecret != "env-secret" {
		t.Errorf("APISecret = %s", cfg.APISecret)
	}
	if cfg.TokenPayload["tenant"] != "acme" {
		t.Errorf("TokenPayload = %v", cfg.TokenPayload)
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("CUBE_ENDPOINT", "https://env.example.com")
	t.Setenv("CUBE_API_SECRET", "env-secret")

	flags := newFlags()
	args := []string{"--endpoint", "https://flag.example.com"}
	if err := flags.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg, err := Load(flags, args)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Endpoint != "https://flag.example.com" {
		t.Errorf("Endpoint = %s, want flag value", cfg.Endpoint)
	}
	if cfg.APISecret != "env-secret" {
		t.Errorf("APISecret = %s, want env value", cfg.APISecret)
	}
}

func TestLoad_MissingEndpoint(t *testing.T) {
	t.Setenv("CUBE_ENDPOINT", "")
	t.Setenv("CUBE_API_SECRET", "secret")

	if _, err := Load(newFlags(), nil); err == nil {
		t.Error("Load() expected error for missing endpoint")
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("CUBE_ENDPOINT", "https://cube.example.com")
	t.Setenv("CUBE_API_SECRET", "")

	if _, err := Load(newFlags(), nil); err == nil {
		t.Error("Load() expected error for missing secret")
	}
}

func TestLoad_InvalidTokenPayload(t *testing.T) {
	t.Setenv("CUBE_ENDPOINT", "https://cube.example.com")
	t.Setenv("CUBE_API_SECRET", "secret")
	t.Setenv("CUBE_TOKEN_PAYLOAD", "{not json")

	if _, err := Load(newFlags(), nil); err == nil {
		t.Error("Load() expected error for invalid token payload JSON")
	}
}

func TestLoad_ResultTTL(t *testing.T) {
	t.Setenv("CUBE_ENDPOINT", "https://cube.example.com")
	t.Setenv("CUBE_API_SECRET", "secret")
	t.Setenv("CUBE_RESULT_TTL", "30m")

	cfg, err := Load(newFlags(), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ResultTTL != 30*time.Minute {
		t.Errorf("ResultTTL = %v, want 30m", cfg.ResultTTL)
	}
}

func TestLoad_UnknownFlagsBecomeClaims(t *testing.T) {
	t.Setenv("CUBE_ENDPOINT", "https://cube.example.com")
	t.Setenv("CUBE_API_SECRET", "secret")
	t.Setenv("CUBE_TOKEN_PAYLOAD", `{"tenant": "acme"}`)

	rawArgs := []string{
		"--endpoint", "https://cube.example.com",
		"--user-id", "42",
		"--region=eu",
		"--sandbox",
	}

	cfg, err := Load(newFlags(), rawArgs)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TokenPayload["tenant"] != "acme" {
		t.Errorf("tenant = %v, want acme", cfg.TokenPayload["tenant"])
	}
	if cfg.TokenPayload["user-id"] != "42" {
		t.Errorf("user-id = %v, want 42", cfg.TokenPayload["user-id"])
	}
	if cfg.TokenPayload["region"] != "eu" {
		t.Errorf("region = %v, want eu", cfg.TokenPayload["region"])
	}
	if cfg.TokenPayload["sandbox"] != true {
		t.Errorf("sandbox = %v, want true", cfg.TokenPayload["sandbox"])
	}
	if _, ok := cfg.TokenPayload["endpoint"]; ok {
		t.Error("declared flag leaked into token payload")
	}
}

func TestExtraClaims_SkipsKnownFlagValues(t *testing.T) {
	flags := newFlags()
	claims := extraClaims(flags, []string{"--api-secret", "s3cret", "--role", "analyst"})

	if len(claims) != 1 {
		t.Fatalf("claims = %v, want only role", claims)
	}
	if claims["role"] != "analyst" {
		t.Errorf("role = %v, want analyst", claims["role"])
	}
}
