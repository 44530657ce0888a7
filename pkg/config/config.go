package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/devlens/gateway/pkg/dotdir"
)

const (
	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	dir        dotdir.Dir
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	dir, err := dotdir.NewManager().Resolve(override)
	if err != nil {
		return nil, err
	}

	cfger := &Configer{dir: dir}
	path := dir.ConfigFile()
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Always set targetPath when the directory exists so SaveConfig
	// can create or overwrite the file.
	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns all supported configuration key names in TOML
// section order.
func ValidConfigKeys() []string {
	ordered := []string{
		"gateway.listen",
		"gateway.port",
		"gateway.upstream",
		"gateway.api_prefix",
		"gateway.upstream_timeout",
		"gateway.environment",
		"stream.max_retries",
		"stream.base_delay",
		"client.gateway_target",
		"client.token",
		"log.debug",
		"log.json",
		"log.pretty",
		"log.file",
		"events.kafka_brokers",
		"events.kafka_topic",
	}

	result := make([]string, 0, len(ordered))
	for _, k := range ordered {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
		}
	}
	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// Source reports how the config directory was selected.
func (c *Configer) Source() dotdir.Source {
	return c.dir.Source
}

// LoadConfig loads the configuration from config.toml in the target .devlens/
// directory. If the file does not exist, returns NewDefaultConfig() so callers
// always receive a fully-populated Config. Fields explicitly set in the file
// override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	if cfg.Gateway.Listen == "" {
		cfg.Gateway.Listen = defaults.Gateway.Listen
	}
	if cfg.Gateway.Upstream == "" {
		cfg.Gateway.Upstream = defaults.Gateway.Upstream
	}
	if cfg.Gateway.APIPrefix == "" {
		cfg.Gateway.APIPrefix = defaults.Gateway.APIPrefix
	}
	if cfg.Gateway.UpstreamTimeout == 0 {
		cfg.Gateway.UpstreamTimeout = defaults.Gateway.UpstreamTimeout
	}
	if cfg.Gateway.Environment == "" {
		cfg.Gateway.Environment = defaults.Gateway.Environment
	}

	if cfg.Stream.MaxRetries == 0 {
		cfg.Stream.MaxRetries = defaults.Stream.MaxRetries
	}
	if cfg.Stream.BaseDelay == 0 {
		cfg.Stream.BaseDelay = defaults.Stream.BaseDelay
	}

	if cfg.Client.GatewayTarget == "" {
		cfg.Client.GatewayTarget = defaults.Client.GatewayTarget
	}

	if cfg.Events.KafkaTopic == "" {
		cfg.Events.KafkaTopic = defaults.Events.KafkaTopic
	}
}

// SaveConfig persists the configuration to config.toml in the target .devlens/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}

// ListenAddr returns the gateway listen address with Port, when set,
// replacing the port of Listen.
func (c *Config) ListenAddr() string {
	if c.Gateway.Port == "" {
		return c.Gateway.Listen
	}
	host, _, err := net.SplitHostPort(c.Gateway.Listen)
	if err != nil {
		host = ""
	}
	return net.JoinHostPort(host, c.Gateway.Port)
}

// Validate checks the values a gateway cannot start without.
func (c *Config) Validate() error {
	var errs []error

	if err := validateHTTPURL(c.Gateway.Upstream); err != nil {
		errs = append(errs, fmt.Errorf("gateway.upstream: %w", err))
	}

	if _, port, err := net.SplitHostPort(c.ListenAddr()); err != nil {
		errs = append(errs, fmt.Errorf("gateway.listen: %w", err))
	} else if err := validatePort(port); err != nil {
		errs = append(errs, fmt.Errorf("gateway.listen: %w", err))
	}

	if !strings.HasPrefix(c.Gateway.APIPrefix, "/") || !strings.HasSuffix(c.Gateway.APIPrefix, "/") {
		errs = append(errs, fmt.Errorf("gateway.api_prefix: %q must start and end with /", c.Gateway.APIPrefix))
	}
	if c.Gateway.UpstreamTimeout < 0 {
		errs = append(errs, errors.New("gateway.upstream_timeout: must not be negative"))
	}

	if c.Stream.MaxRetries < 0 {
		errs = append(errs, errors.New("stream.max_retries: must not be negative"))
	}
	if c.Stream.BaseDelay <= 0 {
		errs = append(errs, errors.New("stream.base_delay: must be positive"))
	}

	if c.Log.JSON && c.Log.Pretty {
		errs = append(errs, errors.New("log.json and log.pretty are mutually exclusive"))
	}

	return errors.Join(errs...)
}

// ValidateClient checks the values CLI stream commands need.
func (c *Config) ValidateClient() error {
	if err := validateHTTPURL(c.Client.GatewayTarget); err != nil {
		return fmt.Errorf("client.gateway_target: %w", err)
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q must be an absolute http(s) url", raw)
	}
	return nil
}

func validatePort(raw string) error {
	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("port %q must be a number between 1 and 65535", raw)
	}
	return nil
}
