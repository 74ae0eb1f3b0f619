package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Env:          "production",
			Port:         "8080",
			JWTSecret:    "secure-secret-at-least-32-chars-long",
			DBPassword:   "secure-password",
			DBSSLMode:    "require",
			MediaBaseURL: "https://media.example.com",
		}
	}

	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"Valid Production", func(c *Config) {}, false},
		{"Missing Port", func(c *Config) { c.Port = "" }, true},
		{"Missing JWT Secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"Default JWT Secret In Production", func(c *Config) { c.JWTSecret = "your-secret-key-change-in-production" }, true},
		{"Short JWT Secret In Production", func(c *Config) { c.JWTSecret = "short" }, true},
		{"Default DB Password In Production", func(c *Config) { c.DBPassword = "password" }, true},
		{"Missing Media Base URL In Production", func(c *Config) { c.MediaBaseURL = "" }, true},
		{"Development Relaxed", func(c *Config) {
			c.Env = "development"
			c.JWTSecret = "dev"
			c.DBPassword = "password"
			c.MediaBaseURL = ""
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ActivationKey(t *testing.T) {
	t.Parallel()

	c := &Config{JWTSecret: "session-secret"}
	assert.Equal(t, "session-secret", c.ActivationKey())

	c.ActivationSecret = "activation-secret"
	assert.Equal(t, "activation-secret", c.ActivationKey())
}
