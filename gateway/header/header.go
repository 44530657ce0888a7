// Package header provides header filtering for the devlens gateway.
//
// The gateway sits between the browser and the backend API like so:
//
//	Browser <--> Gateway <--> Upstream API
//
// and each leg is its own HTTP connection. Hop-by-hop headers stay on the leg
// they arrived on; everything else, including Accept-Encoding and
// Content-Encoding, passes through untouched so bodies are relayed
// byte-for-byte.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	ForwardedFor   = "X-Forwarded-For"
	ForwardedHost  = "X-Forwarded-Host"
	ForwardedProto = "X-Forwarded-Proto"
)

// hopByHop headers are only meaningful for a single transport-level
// connection (RFC 9110 section 7.6.1).
var hopByHop = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Proxy-Connection":    {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// skipRequest is the set of request headers (browser --> gateway --> upstream)
// that are never forwarded in addition to the hop-by-hop set.
var skipRequest = map[string]struct{}{
	// Rewritten by http.Transport from the upstream URL.
	"Host": {},

	// Derived from the outgoing request body by http.Transport.
	"Content-Length": {},
}

// skipResponse is the set of upstream response headers (browser <-- gateway <--
// upstream) that are not copied back in addition to the hop-by-hop set.
var skipResponse = map[string]struct{}{
	// fasthttp writes Content-Length itself from the body stream size.
	"Content-Length": {},
}

// Handler manages headers between gateway connections.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// SetUpstreamRequestHeaders copies request headers from the Fiber context to
// the outgoing http.Request, dropping hop-by-hop headers and any header named
// by the inbound Connection header. Repeated headers keep every value.
func (h *Handler) SetUpstreamRequestHeaders(c *fiber.Ctx, req *http.Request) {
	connection := connectionTokens(string(c.Request().Header.Peek(fiber.HeaderConnection)))

	c.Request().Header.VisitAll(func(key, value []byte) {
		k := http.CanonicalHeaderKey(string(key))
		if skip(k, skipRequest, connection) {
			return
		}
		req.Header.Add(k, string(value))
	})
}

// SetForwardedHeaders records the inbound client, host and scheme on the
// outgoing request. An incoming X-Forwarded-For chain is extended.
func (h *Handler) SetForwardedHeaders(c *fiber.Ctx, req *http.Request) {
	forwardedFor := c.IP()
	if prior := strings.TrimSpace(c.Get(ForwardedFor)); prior != "" {
		forwardedFor = prior + ", " + forwardedFor
	}
	req.Header.Set(ForwardedFor, forwardedFor)
	req.Header.Set(ForwardedHost, string(c.Request().Host()))
	req.Header.Set(ForwardedProto, c.Protocol())
}

// SetClientResponseHeaders copies response headers from the upstream
// http.Response to the Fiber context, dropping hop-by-hop headers and any
// header named by the upstream Connection header. Repeated headers such as
// Set-Cookie keep every value.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	connection := connectionTokens(resp.Header.Get(fiber.HeaderConnection))

	for k, values := range resp.Header {
		k = http.CanonicalHeaderKey(k)
		if skip(k, skipResponse, connection) {
			continue
		}
		for _, v := range values {
			c.Response().Header.Add(k, v)
		}
	}
}

func skip(key string, extra map[string]struct{}, connection map[string]struct{}) bool {
	if _, ok := hopByHop[key]; ok {
		return true
	}
	if _, ok := extra[key]; ok {
		return true
	}
	_, ok := connection[key]
	return ok
}

// connectionTokens returns the canonical header names listed in a Connection
// header value.
func connectionTokens(value string) map[string]struct{} {
	if value == "" {
		return nil
	}
	tokens := make(map[string]struct{})
	for _, t := range strings.Split(value, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tokens[http.CanonicalHeaderKey(t)] = struct{}{}
		}
	}
	return tokens
}
