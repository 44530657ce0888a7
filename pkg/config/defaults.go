package config

import "time"

const (
	defaultListen          = ":3000"
	defaultUpstream        = "http://localhost:8000"
	defaultAPIPrefix       = "/api/"
	defaultUpstreamTimeout = 30 * time.Second
	defaultEnvironment     = "development"

	defaultMaxRetries = 5
	defaultBaseDelay  = time.Second

	defaultClientGatewayTarget = "http://localhost:3000"

	defaultKafkaTopic = "devlens.gateway.relays"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Gateway: GatewayConfig{
			Listen:          defaultListen,
			Upstream:        defaultUpstream,
			APIPrefix:       defaultAPIPrefix,
			UpstreamTimeout: defaultUpstreamTimeout,
			Environment:     defaultEnvironment,
		},
		Stream: StreamConfig{
			MaxRetries: defaultMaxRetries,
			BaseDelay:  defaultBaseDelay,
		},
		Client: ClientConfig{
			GatewayTarget: defaultClientGatewayTarget,
		},
		Events: EventsConfig{
			KafkaTopic: defaultKafkaTopic,
		},
	}
}
