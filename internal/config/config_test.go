package config

import (
	"os"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Env:                "production",
		DBSSLMode:          "require",
		JWTSecret:          "secure-secret-at-least-32-chars-long",
		DBPassword:         "secure-password",
		Port:               "8080",
		MessageKey:         strings.Repeat("ab", 32),
		AvatarSize:         600,
		AvatarQuality:      85,
		TracingSampleRatio: 1,
	}
}

func TestConfig_ValidateProduction(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"valid production", func(*Config) {}, false},
		{"default jwt secret", func(c *Config) { c.JWTSecret = defaultJWTSecret }, true},
		{"short jwt secret", func(c *Config) { c.JWTSecret = "short" }, true},
		{"default db password", func(c *Config) { c.DBPassword = "password" }, true},
		{"missing message key", func(c *Config) { c.MessageKey = "" }, true},
		{"development without message key", func(c *Config) { c.Env = "development"; c.MessageKey = "" }, false},
		{"message key not hex", func(c *Config) { c.MessageKey = "zz" }, true},
		{"message key wrong length", func(c *Config) { c.MessageKey = "abcd" }, true},
		{"avatar quality out of range", func(c *Config) { c.AvatarQuality = 101 }, true},
		{"sample ratio out of range", func(c *Config) { c.TracingSampleRatio = 2 }, true},
		{"missing port", func(c *Config) { c.Port = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
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

func TestLoadConfig_DefaultsAndSSLModeNormalization(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("DB_SSLMODE")
	defer viper.Reset()

	os.Setenv("APP_ENV", "development")
	os.Setenv("DB_SSLMODE", "  DISABLE  ")

	c, err := LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, 600, c.AvatarSize)
	assert.Equal(t, 85, c.AvatarQuality)
	assert.Equal(t, "media", c.MediaDir)
	assert.False(t, c.IsProduction())
}
