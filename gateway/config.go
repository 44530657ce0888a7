package gateway

import (
	"time"

	"github.com/devlens/gateway/pkg/eventstream"
)

// Config is the gateway server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":3000")
	ListenAddr string

	// UpstreamURL is the backend API origin (e.g., "http://localhost:8000")
	UpstreamURL string

	// APIPrefix selects the paths relayed to the upstream. It must start and
	// end with "/". Defaults to "/api/".
	APIPrefix string

	// UpstreamTimeout bounds connecting to the upstream and waiting for its
	// response headers. Streamed bodies are never cut by it. Zero disables it.
	UpstreamTimeout time.Duration

	// Environment is reported by the page shells (e.g., "development").
	Environment string

	// Publisher is an optional event stream publisher for relay events.
	// If nil, relay events are disabled.
	Publisher eventstream.Publisher
}
