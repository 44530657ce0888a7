// Package session carries per-caller request context (bearer token and trace
// id) explicitly through the stream client and the gateway forwarder.
package session

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	// TraceHeader propagates a trace id from the browser through the gateway
	// to the backend API.
	TraceHeader = "X-Trace-Id"

	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
)

// Context is the session state of one caller. The zero value is an anonymous
// session without a trace id.
type Context struct {
	// Token is the bearer access token, if any.
	Token string

	// TraceID correlates every request made on behalf of this session.
	TraceID string
}

// New returns a session for token with a fresh trace id.
func New(token string) *Context {
	return &Context{Token: token, TraceID: NewTraceID()}
}

// NewTraceID returns a random 32 character hex trace id.
func NewTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// TraceIDFrom returns the trimmed incoming trace id, or a new one when empty.
func TraceIDFrom(incoming string) string {
	if id := strings.TrimSpace(incoming); id != "" {
		return id
	}
	return NewTraceID()
}

// Apply sets the session headers on req. A nil Context is a no-op.
func (c *Context) Apply(req *http.Request) {
	if c == nil {
		return
	}
	if c.Token != "" {
		req.Header.Set(authorizationHeader, bearerPrefix+c.Token)
	}
	if c.TraceID != "" {
		req.Header.Set(TraceHeader, c.TraceID)
	}
}
