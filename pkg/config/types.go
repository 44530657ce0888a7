package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent devlens configuration stored as
// config.toml in the .devlens/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version int           `toml:"version"`
	Gateway GatewayConfig `toml:"gateway"`
	Stream  StreamConfig  `toml:"stream"`
	Client  ClientConfig  `toml:"client"`
	Log     LogConfig     `toml:"log"`
	Events  EventsConfig  `toml:"events"`
}

// GatewayConfig holds the browser-facing gateway settings.
type GatewayConfig struct {
	Listen          string        `toml:"listen,omitempty"`
	Port            string        `toml:"port,omitempty"`
	Upstream        string        `toml:"upstream,omitempty"`
	APIPrefix       string        `toml:"api_prefix,omitempty"`
	UpstreamTimeout time.Duration `toml:"upstream_timeout,omitempty"`
	Environment     string        `toml:"environment,omitempty"`
}

// StreamConfig holds the event stream client reconnect policy.
type StreamConfig struct {
	MaxRetries int           `toml:"max_retries"`
	BaseDelay  time.Duration `toml:"base_delay,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// gateway (e.g. devlens watch, devlens ask). GatewayTarget is a full URL
// (scheme + host + port).
type ClientConfig struct {
	GatewayTarget string `toml:"gateway_target,omitempty"`
	Token         string `toml:"token,omitempty"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Debug  bool   `toml:"debug,omitempty"`
	JSON   bool   `toml:"json,omitempty"`
	Pretty bool   `toml:"pretty,omitempty"`
	File   string `toml:"file,omitempty"`
}

// EventsConfig enables relay event publishing. Publishing is off unless at
// least one broker is configured.
type EventsConfig struct {
	KafkaBrokers []string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string   `toml:"kafka_topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"gateway.listen": {
		get: func(c *Config) string { return c.Gateway.Listen },
		set: func(c *Config, v string) error { c.Gateway.Listen = v; return nil },
	},
	"gateway.port": {
		get: func(c *Config) string { return c.Gateway.Port },
		set: func(c *Config, v string) error { c.Gateway.Port = v; return nil },
	},
	"gateway.upstream": {
		get: func(c *Config) string { return c.Gateway.Upstream },
		set: func(c *Config, v string) error { c.Gateway.Upstream = v; return nil },
	},
	"gateway.api_prefix": {
		get: func(c *Config) string { return c.Gateway.APIPrefix },
		set: func(c *Config, v string) error { c.Gateway.APIPrefix = v; return nil },
	},
	"gateway.upstream_timeout": {
		get: func(c *Config) string { return formatDuration(c.Gateway.UpstreamTimeout) },
		set: durationSetter("gateway.upstream_timeout", func(c *Config) *time.Duration { return &c.Gateway.UpstreamTimeout }),
	},
	"gateway.environment": {
		get: func(c *Config) string { return c.Gateway.Environment },
		set: func(c *Config, v string) error { c.Gateway.Environment = v; return nil },
	},
	"stream.max_retries": {
		get: func(c *Config) string { return strconv.Itoa(c.Stream.MaxRetries) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for stream.max_retries: %w", err)
			}
			c.Stream.MaxRetries = n
			return nil
		},
	},
	"stream.base_delay": {
		get: func(c *Config) string { return formatDuration(c.Stream.BaseDelay) },
		set: durationSetter("stream.base_delay", func(c *Config) *time.Duration { return &c.Stream.BaseDelay }),
	},
	"client.gateway_target": {
		get: func(c *Config) string { return c.Client.GatewayTarget },
		set: func(c *Config, v string) error { c.Client.GatewayTarget = v; return nil },
	},
	"client.token": {
		get: func(c *Config) string { return c.Client.Token },
		set: func(c *Config, v string) error { c.Client.Token = v; return nil },
	},
	"log.debug": {
		get: func(c *Config) string { return strconv.FormatBool(c.Log.Debug) },
		set: boolSetter("log.debug", func(c *Config) *bool { return &c.Log.Debug }),
	},
	"log.json": {
		get: func(c *Config) string { return strconv.FormatBool(c.Log.JSON) },
		set: boolSetter("log.json", func(c *Config) *bool { return &c.Log.JSON }),
	},
	"log.pretty": {
		get: func(c *Config) string { return strconv.FormatBool(c.Log.Pretty) },
		set: boolSetter("log.pretty", func(c *Config) *bool { return &c.Log.Pretty }),
	},
	"log.file": {
		get: func(c *Config) string { return c.Log.File },
		set: func(c *Config, v string) error { c.Log.File = v; return nil },
	},
	"events.kafka_brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.KafkaBrokers, ",") },
		set: func(c *Config, v string) error { c.Events.KafkaBrokers = splitList(v); return nil },
	},
	"events.kafka_topic": {
		get: func(c *Config) string { return c.Events.KafkaTopic },
		set: func(c *Config, v string) error { c.Events.KafkaTopic = v; return nil },
	},
}

func boolSetter(key string, field func(c *Config) *bool) func(c *Config, v string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		*field(c) = b
		return nil
	}
}

func durationSetter(key string, field func(c *Config) *time.Duration) func(c *Config, v string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		*field(c) = d
		return nil
	}
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

// splitList splits a comma separated list, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
