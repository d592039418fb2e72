package goPasskey

import (
	"strings"
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.RelyingParty.ID = "localhost"
	cfg.RelyingParty.DisplayName = "test"
	cfg.RelyingParty.Origins = []string{"http://localhost:8080"}
	cfg.Token.SigningMethod = "hs256"
	cfg.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func TestConfigValidateAcceptsDefaults(t *testing.T) {
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{
			name:    "missing RP ID",
			mutate:  func(c *Config) { c.RelyingParty.ID = " " },
			message: "RelyingParty ID",
		},
		{
			name:    "no origins",
			mutate:  func(c *Config) { c.RelyingParty.Origins = nil },
			message: "Origins",
		},
		{
			name:    "empty origin entry",
			mutate:  func(c *Config) { c.RelyingParty.Origins = []string{"http://a", " "} },
			message: "Origins",
		},
		{
			name:    "zero token TTL",
			mutate:  func(c *Config) { c.Token.TTL = 0 },
			message: "Token TTL",
		},
		{
			name:    "unknown signing method",
			mutate:  func(c *Config) { c.Token.SigningMethod = "rs512" },
			message: "signing method",
		},
		{
			name: "ed25519 without keys",
			mutate: func(c *Config) {
				c.Token.SigningMethod = "ed25519"
				c.Token.PrivateKey = nil
			},
			message: "ed25519",
		},
		{
			name:    "hs256 without key",
			mutate:  func(c *Config) { c.Token.PrivateKey = nil },
			message: "hs256",
		},
		{
			name:    "zero challenge TTL",
			mutate:  func(c *Config) { c.Challenge.TTL = 0 },
			message: "Challenge TTL",
		},
		{
			name:    "excessive challenge TTL",
			mutate:  func(c *Config) { c.Challenge.TTL = time.Hour },
			message: "Challenge TTL",
		},
		{
			name:    "zero ceremony attempts",
			mutate:  func(c *Config) { c.Security.MaxCeremonyAttempts = 0 },
			message: "MaxCeremonyAttempts",
		},
		{
			name: "refresh throttle without budget",
			mutate: func(c *Config) {
				c.Security.EnableRefreshThrottle = true
				c.Security.MaxRefreshAttempts = 0
			},
			message: "MaxRefreshAttempts",
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			message: "BufferSize",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.message) {
				t.Fatalf("expected error mentioning %q, got %v", tc.message, err)
			}
		})
	}
}

func TestCloneConfigIsolatesMutableFields(t *testing.T) {
	cfg := validTestConfig()
	cfg.Token.SigningMethod = "ed25519"
	cfg.Token.PrivateKey = []byte("private-key-material")
	cfg.Token.PublicKey = []byte("public-key-material")

	clone := cloneConfig(cfg)
	clone.Token.PrivateKey[0] = 'X'
	clone.Token.PublicKey[0] = 'X'
	clone.RelyingParty.Origins[0] = "http://tampered"

	if cfg.Token.PrivateKey[0] == 'X' {
		t.Fatal("clone shares private key backing array")
	}
	if cfg.Token.PublicKey[0] == 'X' {
		t.Fatal("clone shares public key backing array")
	}
	if cfg.RelyingParty.Origins[0] == "http://tampered" {
		t.Fatal("clone shares origins backing array")
	}
}

func TestBuilderRequiresDependencies(t *testing.T) {
	if _, err := New().WithConfig(validTestConfig()).Build(); err == nil {
		t.Fatal("expected error without redis client")
	}

	mr, rdb := newTestRedis(t)
	defer mr.Close()

	if _, err := New().WithConfig(validTestConfig()).WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected error without credential provider")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	builder := New().
		WithConfig(validTestConfig()).
		WithRedis(rdb).
		WithCredentialProvider(newMemoryProvider())

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := builder.Build(); err == nil {
		t.Fatal("expected error on second Build")
	}
}
