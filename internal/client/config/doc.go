// Package config loads runtime configuration for the campusgive client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Environment variables prefixed with CAMPUSGIVE_ (e.g. CAMPUSGIVE_BACKEND_URL).
//  4. Command-line flags, which override earlier values.
//
// # JSON schema
//
// Durations use timex.Duration, so values can be strings like "500ms" or
// integer nanoseconds:
//
//	{
//	  "backend_url": "https://market.example.edu",
//	  "database_path": "campusgive.sqlite",
//	  "request_timeout": "15s",
//	  "popup_poll_interval": "500ms",
//	  "handshake_timeout": "5m",
//	  "popup_command": "chromium --user-data-dir={profile} --app={url} --window-size={width},{height}",
//	  "relay_addr": "127.0.0.1:0",
//	  "log_level": "info",
//	  "otel_endpoint": ""
//	}
//
// A handshake_timeout of 0 lets a popup stay open until the user closes it.
package config
