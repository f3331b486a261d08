package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		apiKey:         "k",
		port:           3000,
		imageCount:     2,
		sessionTimeout: time.Hour,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing key", mutate: func(c *Config) { c.apiKey = "" }, wantErr: "API key"},
		{name: "port too low", mutate: func(c *Config) { c.port = 0 }, wantErr: "invalid port"},
		{name: "port too high", mutate: func(c *Config) { c.port = 70000 }, wantErr: "invalid port"},
		{name: "no images", mutate: func(c *Config) { c.imageCount = 0 }, wantErr: "image count"},
		{name: "negative limit", mutate: func(c *Config) { c.maxConcurrent = -1 }, wantErr: "generation limit"},
		{name: "negative timeout", mutate: func(c *Config) { c.sessionTimeout = -time.Second }, wantErr: "session timeout"},
		{name: "sub-second timeout", mutate: func(c *Config) { c.sessionTimeout = time.Nanosecond }, wantErr: "session timeout"},
		{name: "timeout disabled", mutate: func(c *Config) { c.sessionTimeout = 0 }},
		{name: "lone cert", mutate: func(c *Config) { c.tlsCert = "cert.pem" }, wantErr: "--tls-key"},
		{name: "cert and key", mutate: func(c *Config) { c.tlsCert, c.tlsKey = "cert.pem", "key.pem" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFlagDefaults(t *testing.T) {
	cfg := &Config{}
	newCmd(cfg)

	assert.Equal(t, "0.0.0.0", cfg.bind)
	assert.Equal(t, 3000, cfg.port)
	assert.Equal(t, 2, cfg.imageCount)
	assert.Equal(t, "images", cfg.archiveDir)
	assert.Equal(t, "dist", cfg.staticDir)
	assert.Equal(t, "http://localhost:5173", cfg.corsOrigin)
	assert.Equal(t, time.Hour, cfg.sessionTimeout)
	assert.False(t, cfg.allowOverride)
}

func TestEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "from-openai-var")
	t.Setenv("IMAGE_COUNT", "3")
	t.Setenv("PROMPTBOX_PORT", "4000")
	t.Setenv("PROMPTBOX_ALLOW_STAGE_OVERRIDE", "true")

	cfg := &Config{}
	newCmd(cfg)

	assert.Equal(t, "from-openai-var", cfg.apiKey)
	assert.Equal(t, 3, cfg.imageCount)
	assert.Equal(t, 4000, cfg.port)
	assert.True(t, cfg.allowOverride)
}

func TestPrefixedEnvironmentWins(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "plain")
	t.Setenv("PROMPTBOX_OPENAI_API_KEY", "prefixed")

	cfg := &Config{}
	newCmd(cfg)

	assert.Equal(t, "prefixed", cfg.apiKey)
}
