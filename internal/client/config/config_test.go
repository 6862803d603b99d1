package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/campusgive/internal/client/popup/browser"
)

func defaults() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, "http://localhost:8080", c.BackendURL)
	assert.Equal(t, 15*time.Second, c.RequestTimeout)
	assert.Equal(t, 500*time.Millisecond, c.PopupPollInterval)
	assert.Equal(t, 5*time.Minute, c.HandshakeTimeout)
	assert.Equal(t, browser.DefaultCommand, c.PopupCommand)
	assert.Equal(t, "127.0.0.1:0", c.RelayAddr)
	require.NoError(t, c.Validate())
}

func TestLoad_NoSourcesGivesDefaults(t *testing.T) {
	cfg, err := Load(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(defaults(), cfg))
}

func TestLoad_Precedence(t *testing.T) {
	path := writeTempJSON(t, "", "", map[string]any{
		"backend_url":       "https://json.example.edu",
		"database_path":     "/tmp/json.sqlite",
		"handshake_timeout": "2m",
		"log_level":         "debug",
	})
	environ := []string{
		"CAMPUSGIVE_BACKEND_URL=https://env.example.edu",
		"CAMPUSGIVE_HANDSHAKE_TIMEOUT=90s",
		"UNRELATED=1",
	}
	args := []string{"-c", path, "-b", "https://flag.example.edu", "-verbose"}

	cfg, err := Load(args, environ)
	require.NoError(t, err)

	want := defaults()
	want.BackendURL = "https://flag.example.edu"
	want.DatabasePath = "/tmp/json.sqlite"
	want.HandshakeTimeout = 90 * time.Second
	want.LogLevel = "debug"
	assert.Empty(t, cmp.Diff(want, cfg))
}

func TestLoad_ZeroHandshakeTimeoutMeansForever(t *testing.T) {
	cfg, err := Load([]string{"-w", "0s"}, nil)
	require.NoError(t, err)
	assert.Zero(t, cfg.HandshakeTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative backend", func(c *Config) { c.BackendURL = "localhost:8080" }},
		{"zero request timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"zero poll interval", func(c *Config) { c.PopupPollInterval = 0 }},
		{"negative handshake timeout", func(c *Config) { c.HandshakeTimeout = -time.Second }},
		{"blank popup command", func(c *Config) { c.PopupCommand = "  " }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			tt.mutate(c)
			require.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}
}
