package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/campusgive/internal/flagx"
	"github.com/dmitrijs2005/campusgive/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Intervals are
// timex.Duration so they may be strings like "500ms" or integer nanoseconds.
// Absent keys leave the current value alone.
type JsonConfig struct {
	BackendURL        *string         `json:"backend_url"`
	DatabasePath      *string         `json:"database_path"`
	RequestTimeout    *timex.Duration `json:"request_timeout"`
	PopupPollInterval *timex.Duration `json:"popup_poll_interval"`
	HandshakeTimeout  *timex.Duration `json:"handshake_timeout"`
	PopupCommand      *string         `json:"popup_command"`
	RelayAddr         *string         `json:"relay_addr"`
	LogLevel          *string         `json:"log_level"`
	OTelEndpoint      *string         `json:"otel_endpoint"`
}

// parseJSON overlays cfg with the file named by -c/-config, if any.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}

	setString(&cfg.BackendURL, jc.BackendURL)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.PopupCommand, jc.PopupCommand)
	setString(&cfg.RelayAddr, jc.RelayAddr)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.OTelEndpoint, jc.OTelEndpoint)
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.PopupPollInterval != nil {
		cfg.PopupPollInterval = jc.PopupPollInterval.Duration
	}
	if jc.HandshakeTimeout != nil {
		cfg.HandshakeTimeout = jc.HandshakeTimeout.Duration
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
