// Package stream implements a reconnecting Server-Sent Events subscriber.
//
// A Client owns at most one subscription and at most one live connection at a
// time. Frames are classified per Endpoint: progress frames reset the
// attempt counter, a terminal frame ends the subscription for good, and error
// frames or transport faults trigger a reconnect after attempt x BaseDelay
// until MaxRetries consecutive failures have been seen.
//
//	Idle ──▶ Connecting ──▶ Streaming ──▶ Terminal
//	              ▲             │
//	              │             ▼
//	              └──── Reconnecting ──▶ Exhausted
package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/devlens/gateway/pkg/apierror"
	"github.com/devlens/gateway/pkg/logger"
	"github.com/devlens/gateway/pkg/session"
	"github.com/devlens/gateway/pkg/sse"
)

const (
	// DefaultMaxRetries is the number of consecutive failures after which a
	// subscription gives up.
	DefaultMaxRetries = 5

	// DefaultBaseDelay is the unit of the linear reconnect backoff.
	DefaultBaseDelay = time.Second
)

// Config configures a Client.
type Config struct {
	// BaseURL is the origin the endpoints are resolved against, usually the
	// gateway.
	BaseURL string

	// MaxRetries defaults to DefaultMaxRetries when zero or negative.
	MaxRetries int

	// BaseDelay defaults to DefaultBaseDelay when zero or negative.
	BaseDelay time.Duration

	// Session is applied to every request. It may be nil.
	Session *session.Context

	// UserAgent is sent with every request when set.
	UserAgent string
}

// Handler receives everything a subscription observes. Calls for one client
// are never concurrent and are made without internal locks held, so a handler
// may call back into the client.
type Handler interface {
	HandleFrame(resourceID string, f sse.Frame)
	HandleError(resourceID string, err *Error)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	OnFrame func(resourceID string, f sse.Frame)
	OnError func(resourceID string, err *Error)
}

func (h HandlerFuncs) HandleFrame(resourceID string, f sse.Frame) {
	if h.OnFrame != nil {
		h.OnFrame(resourceID, f)
	}
}

func (h HandlerFuncs) HandleError(resourceID string, err *Error) {
	if h.OnError != nil {
		h.OnError(resourceID, err)
	}
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for connections. It must not carry a
// global Timeout, which would cut long-lived streams.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithScheduler replaces the wall clock used for reconnect delays.
func WithScheduler(s Scheduler) Option {
	return func(c *Client) {
		if s != nil {
			c.sched = s
		}
	}
}

// WithLogger sets the logger for connection lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithParserOptions configures the frame parser of every connection.
func WithParserOptions(opts ...sse.ParserOption) Option {
	return func(c *Client) {
		c.parserOpts = append(c.parserOpts, opts...)
	}
}

// Snapshot is a point-in-time view of the current subscription.
type Snapshot struct {
	ResourceID string
	Endpoint   string
	State      State
	Attempt    int
	Terminal   bool
}

// Client subscribes to streamed endpoints.
type Client struct {
	base       *url.URL
	cfg        Config
	handler    Handler
	http       *http.Client
	sched      Scheduler
	logger     *slog.Logger
	parserOpts []sse.ParserOption

	// deliver serializes handler calls.
	deliver sync.Mutex

	mu     sync.Mutex
	gen    uint64
	sub    *subscription
	closed bool
}

// subscription is guarded by Client.mu.
type subscription struct {
	gen        uint64
	ctx        context.Context
	endpoint   Endpoint
	resourceID string

	state    State
	attempt  int
	terminal bool

	// cancel aborts the live connection, if any.
	cancel context.CancelFunc
	timer  Timer
	// unwatch stops the owner context watcher.
	unwatch func() bool
}

// New returns a Client that reports to handler.
func New(cfg Config, handler Handler, opts ...Option) (*Client, error) {
	if handler == nil {
		return nil, errors.New("stream handler is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be an absolute http(s) url", cfg.BaseURL)
	}

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}

	c := &Client{
		base:    base,
		cfg:     cfg,
		handler: handler,
		http:    &http.Client{},
		sched:   SystemScheduler{},
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Subscribe closes the current subscription, if any, and opens a new one for
// resourceID on endpoint. The connection is established in the background.
// Cancelling ctx has the same effect as Close on this subscription only.
func (c *Client) Subscribe(ctx context.Context, endpoint Endpoint, resourceID string) error {
	if resourceID == "" {
		return errors.New("resource id is required")
	}
	if endpoint.Path == "" {
		return errors.New("endpoint path is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closeLocked()

	c.gen++
	gen := c.gen
	sub := &subscription{
		gen:        gen,
		ctx:        ctx,
		endpoint:   endpoint,
		resourceID: resourceID,
		state:      StateConnecting,
	}
	sub.unwatch = context.AfterFunc(ctx, func() { c.cancelGen(gen) })
	c.sub = sub
	c.mu.Unlock()

	c.logger.Debug("subscribing", "endpoint", endpoint.Name, "resource_id", resourceID)

	go c.connect(gen)
	return nil
}

// Close ends the current subscription: the live connection is closed at once
// and a scheduled reconnect never runs. The client cannot be reused.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.closeLocked()
}

// Snapshot returns the state of the current or last subscription.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub == nil {
		return Snapshot{State: StateIdle}
	}
	return Snapshot{
		ResourceID: c.sub.resourceID,
		Endpoint:   c.sub.endpoint.Name,
		State:      c.sub.state,
		Attempt:    c.sub.attempt,
		Terminal:   c.sub.terminal,
	}
}

// closeLocked tears down the current subscription and invalidates every
// callback that still refers to it.
func (c *Client) closeLocked() {
	sub := c.sub
	if sub == nil {
		return
	}

	c.gen++
	sub.release()
	if sub.unwatch != nil {
		sub.unwatch()
		sub.unwatch = nil
	}
	if !sub.state.Done() {
		sub.state = StateClosed
	}
}

func (c *Client) cancelGen(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub != nil && c.sub.gen == gen && c.gen == gen {
		c.closeLocked()
	}
}

// current returns the subscription for gen if it is still live.
func (c *Client) current(gen uint64) *subscription {
	if c.gen != gen || c.sub == nil || c.sub.gen != gen || c.sub.state.Done() {
		return nil
	}
	return c.sub
}

// owns reports whether gen has not been closed or replaced since it was
// opened. Unlike current it holds for finished subscriptions, whose last
// frame or error is still delivered. Callers hold deliver, so a Close that
// wins the race is never followed by a handler call.
func (c *Client) owns(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

// release closes the connection and stops the reconnect timer.
func (s *subscription) release() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// errTerminal stops the read loop after a terminal frame.
var errTerminal = errors.New("terminal frame received")

func (c *Client) connect(gen uint64) {
	c.mu.Lock()
	sub := c.current(gen)
	if sub == nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(sub.ctx)
	sub.cancel = cancel
	sub.timer = nil
	sub.state = StateConnecting
	endpoint, resourceID := sub.endpoint, sub.resourceID
	c.mu.Unlock()

	err := c.stream(ctx, gen, endpoint, resourceID)
	cancel()
	c.fail(gen, err)
}

// stream runs one connection until it ends. It always returns a non-nil
// error describing why.
func (c *Client) stream(ctx context.Context, gen uint64, endpoint Endpoint, resourceID string) error {
	var body io.Reader
	if endpoint.Body != nil {
		body = bytes.NewReader(endpoint.Body)
	}

	req, err := http.NewRequestWithContext(ctx, endpoint.method(), endpoint.resolve(c.base, resourceID), body)
	if err != nil {
		return &Error{Code: CodeTransport, Message: "Could not build the stream request.", Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	c.cfg.Session.Apply(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Code: CodeTransport, Message: "The service is unreachable.", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	c.mu.Lock()
	if sub := c.current(gen); sub != nil {
		sub.state = StateStreaming
	}
	c.mu.Unlock()

	reader := sse.NewReader(resp.Body, c.parserOpts...)
	for {
		f, err := reader.Next()
		if err != nil {
			return &Error{Code: CodeTransport, Message: "The connection was interrupted.", Err: err}
		}
		if f == nil {
			return &Error{Code: CodeStreamEnded, Message: "The stream ended unexpectedly."}
		}
		if err := c.dispatch(gen, endpoint, resourceID, *f); err != nil {
			return err
		}
	}
}

// dispatch applies the effect of one frame and forwards it. A non-nil return
// ends the connection.
func (c *Client) dispatch(gen uint64, endpoint Endpoint, resourceID string, f sse.Frame) error {
	class := endpoint.Classifier.Classify(f.Event)

	c.mu.Lock()
	sub := c.current(gen)
	if sub == nil {
		c.mu.Unlock()
		return context.Canceled
	}
	switch class {
	case ClassProgress:
		sub.attempt = 0
	case ClassTerminal:
		sub.terminal = true
		sub.state = StateTerminal
	}
	c.mu.Unlock()

	if class == ClassError {
		return frameError(f)
	}

	c.deliver.Lock()
	if !c.owns(gen) {
		c.deliver.Unlock()
		return context.Canceled
	}
	c.handler.HandleFrame(resourceID, f)
	c.deliver.Unlock()

	if class == ClassTerminal {
		c.logger.Debug("stream finished", "endpoint", endpoint.Name, "resource_id", resourceID)
		return errTerminal
	}
	return nil
}

// fail handles the end of a connection: it is either the expected end of a
// finished subscription or a fault that may be retried.
func (c *Client) fail(gen uint64, cause error) {
	c.mu.Lock()
	sub := c.current(gen)
	if sub == nil {
		// Closed, replaced or finished.
		if c.sub != nil && c.sub.gen == gen {
			c.sub.release()
		}
		c.mu.Unlock()
		return
	}
	sub.release()

	sub.attempt++
	surfaced := asError(cause)
	surfaced.Attempt = sub.attempt

	var final *Error
	if sub.attempt < c.cfg.MaxRetries {
		delay := time.Duration(sub.attempt) * c.cfg.BaseDelay
		sub.state = StateReconnecting
		sub.timer = c.sched.AfterFunc(delay, func() { c.connect(gen) })
		c.logger.Debug("reconnect scheduled",
			"endpoint", sub.endpoint.Name,
			"resource_id", sub.resourceID,
			"attempt", sub.attempt,
			"delay", delay,
			"error", cause,
		)
	} else {
		sub.state = StateExhausted
		final = &Error{
			Code:    CodeDisconnected,
			Message: fmt.Sprintf("disconnected after %d retries", sub.attempt),
			Attempt: sub.attempt,
			Err:     ErrDisconnected,
		}
		c.logger.Warn("stream disconnected",
			"endpoint", sub.endpoint.Name,
			"resource_id", sub.resourceID,
			"attempts", sub.attempt,
			"error", cause,
		)
	}
	resourceID := sub.resourceID
	c.mu.Unlock()

	c.deliver.Lock()
	defer c.deliver.Unlock()
	if !c.owns(gen) {
		return
	}
	c.handler.HandleError(resourceID, surfaced)
	if final != nil && c.owns(gen) {
		c.handler.HandleError(resourceID, final)
	}
}

func asError(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		cp := *se
		return &cp
	}
	return &Error{Code: CodeTransport, Message: "The connection failed.", Err: err}
}

func frameError(f sse.Frame) *Error {
	payload := DecodeStreamError(f)
	e := &Error{Code: payload.Code, Message: payload.Message}
	if e.Code == "" {
		e.Code = CodeStreamError
	}
	if e.Message == "" {
		e.Message = "The stream reported an error."
	}
	return e
}

// statusError converts a non-2xx response, preferring its error envelope.
func statusError(resp *http.Response) *Error {
	cause := fmt.Errorf("unexpected status %d", resp.StatusCode)

	env, err := apierror.Decode(io.LimitReader(resp.Body, 64<<10))
	if err == nil {
		code := env.Error.Code
		if code == "" {
			code = apierror.CodeForStatus(resp.StatusCode)
		}
		return &Error{Code: code, Message: env.Error.Message, Err: cause}
	}

	return &Error{
		Code:    apierror.CodeForStatus(resp.StatusCode),
		Message: http.StatusText(resp.StatusCode),
		Err:     cause,
	}
}
