package config

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --gateway
// on both "devlens watch" and "devlens ask").
type Flag struct {
	// Name is the long flag name (e.g. "upstream").
	Name string

	// Shorthand is the one-letter short flag (e.g. "u"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "gateway.upstream").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling the Add*Flag helpers and
// BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagListen          = "listen"
	FlagUpstream        = "upstream"
	FlagAPIPrefix       = "api-prefix"
	FlagUpstreamTimeout = "upstream-timeout"
	FlagEnvironment     = "environment"
	FlagMaxRetries      = "max-retries"
	FlagBaseDelay       = "base-delay"
	FlagGatewayTarget   = "gateway"
	FlagToken           = "token"
	FlagLogJSON         = "log-json"
	FlagLogPretty       = "log-pretty"
	FlagLogFile         = "log-file"
	FlagKafkaBrokers    = "kafka-brokers"
	FlagKafkaTopic      = "kafka-topic"
	FlagDebug           = "debug"
)

// ConfigDirFlag is the persistent root flag overriding .devlens/ discovery.
const ConfigDirFlag = "config-dir"

// Flags is the registry shared by all devlens commands.
var Flags = FlagSet{
	FlagListen:          {Name: "listen", Shorthand: "l", ViperKey: "gateway.listen", Description: "Address for the gateway to listen on"},
	FlagUpstream:        {Name: "upstream", Shorthand: "u", ViperKey: "gateway.upstream", Description: "Upstream API base URL"},
	FlagAPIPrefix:       {Name: "api-prefix", ViperKey: "gateway.api_prefix", Description: "Path prefix relayed to the upstream API"},
	FlagUpstreamTimeout: {Name: "upstream-timeout", ViperKey: "gateway.upstream_timeout", Description: "Time to wait for upstream response headers"},
	FlagEnvironment:     {Name: "environment", ViperKey: "gateway.environment", Description: "Deployment environment name handed to the page shells"},
	FlagMaxRetries:      {Name: "max-retries", ViperKey: "stream.max_retries", Description: "Consecutive stream failures before giving up"},
	FlagBaseDelay:       {Name: "base-delay", ViperKey: "stream.base_delay", Description: "Unit of the linear reconnect backoff"},
	FlagGatewayTarget:   {Name: "gateway", Shorthand: "g", ViperKey: "client.gateway_target", Description: "DevLens gateway URL"},
	FlagToken:           {Name: "token", Shorthand: "t", ViperKey: "client.token", Description: "Bearer token sent to the API"},
	FlagLogJSON:         {Name: "log-json", ViperKey: "log.json", Description: "Emit JSON logs"},
	FlagLogPretty:       {Name: "log-pretty", ViperKey: "log.pretty", Description: "Emit colorized logs"},
	FlagLogFile:         {Name: "log-file", ViperKey: "log.file", Description: "Also write JSON logs to this file"},
	FlagKafkaBrokers:    {Name: "kafka-brokers", ViperKey: "events.kafka_brokers", Description: "Comma separated Kafka brokers for relay events"},
	FlagKafkaTopic:      {Name: "kafka-topic", ViperKey: "events.kafka_topic", Description: "Kafka topic for relay events"},
	FlagDebug:           {Name: "debug", Shorthand: "d", ViperKey: "log.debug", Description: "Enable debug logging"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, key string, target *int) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddDurationFlag registers a duration flag on cmd from the given FlagSet.
func AddDurationFlag(cmd *cobra.Command, fs FlagSet, key string, target *time.Duration) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetDuration(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().DurationVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().DurationVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, key string, target *bool) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// Resolve loads the configuration for cmd: defaults, the config file found
// from the --config-dir flag, the environment, and then the given registered
// flags.
func Resolve(cmd *cobra.Command, registryKeys []string) (*Config, error) {
	configDir, _ := cmd.Flags().GetString(ConfigDirFlag)

	v, err := InitViper(configDir)
	if err != nil {
		return nil, err
	}
	keys := append([]string{FlagDebug}, registryKeys...)
	BindRegisteredFlags(v, cmd, Flags, keys)

	return Load(v)
}

// defaults returns a viper holding only the values from NewDefaultConfig.
func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
