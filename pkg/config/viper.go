package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/devlens/gateway/pkg/dotdir"
)

// legacyEnv maps viper keys to the environment variables the frontend
// deployment has always used. They are consulted after the DEVLENS_ form.
var legacyEnv = map[string]string{
	"gateway.upstream":    "NEXT_PUBLIC_API_URL",
	"gateway.port":        "PORT",
	"gateway.environment": "NODE_ENV",
}

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the DEVLENS_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (DEVLENS_GATEWAY_LISTEN, NEXT_PUBLIC_API_URL, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	target, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: DEVLENS_GATEWAY_LISTEN, DEVLENS_STREAM_MAX_RETRIES, etc.
	v.SetEnvPrefix("DEVLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		envKey := "DEVLENS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("binding %s: %w", legacy, err)
		}
	}

	return v, nil
}

// Load builds a Config from the resolved viper values.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Version: v.GetInt("version"),
		Gateway: GatewayConfig{
			Listen:          v.GetString("gateway.listen"),
			Port:            v.GetString("gateway.port"),
			Upstream:        v.GetString("gateway.upstream"),
			APIPrefix:       v.GetString("gateway.api_prefix"),
			UpstreamTimeout: v.GetDuration("gateway.upstream_timeout"),
			Environment:     v.GetString("gateway.environment"),
		},
		Stream: StreamConfig{
			MaxRetries: v.GetInt("stream.max_retries"),
			BaseDelay:  v.GetDuration("stream.base_delay"),
		},
		Client: ClientConfig{
			GatewayTarget: v.GetString("client.gateway_target"),
			Token:         v.GetString("client.token"),
		},
		Log: LogConfig{
			Debug:  v.GetBool("log.debug"),
			JSON:   v.GetBool("log.json"),
			Pretty: v.GetBool("log.pretty"),
			File:   v.GetString("log.file"),
		},
		Events: EventsConfig{
			KafkaBrokers: stringList(v, "events.kafka_brokers"),
			KafkaTopic:   v.GetString("events.kafka_topic"),
		},
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}

// stringList reads key as a list. TOML arrays and comma separated
// environment values are both accepted.
func stringList(v *viper.Viper, key string) []string {
	var out []string
	for _, s := range v.GetStringSlice(key) {
		out = append(out, splitList(s)...)
	}
	return out
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Gateway
	v.SetDefault("gateway.listen", d.Gateway.Listen)
	v.SetDefault("gateway.port", d.Gateway.Port)
	v.SetDefault("gateway.upstream", d.Gateway.Upstream)
	v.SetDefault("gateway.api_prefix", d.Gateway.APIPrefix)
	v.SetDefault("gateway.upstream_timeout", d.Gateway.UpstreamTimeout)
	v.SetDefault("gateway.environment", d.Gateway.Environment)

	// Stream
	v.SetDefault("stream.max_retries", d.Stream.MaxRetries)
	v.SetDefault("stream.base_delay", d.Stream.BaseDelay)

	// Client
	v.SetDefault("client.gateway_target", d.Client.GatewayTarget)
	v.SetDefault("client.token", d.Client.Token)

	// Log
	v.SetDefault("log.debug", d.Log.Debug)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("log.pretty", d.Log.Pretty)
	v.SetDefault("log.file", d.Log.File)

	// Events
	v.SetDefault("events.kafka_brokers", d.Events.KafkaBrokers)
	v.SetDefault("events.kafka_topic", d.Events.KafkaTopic)
}
