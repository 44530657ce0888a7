package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"

	"github.com/devlens/gateway/gateway/header"
	"github.com/devlens/gateway/gateway/worker"
	"github.com/devlens/gateway/pkg/apierror"
	"github.com/devlens/gateway/pkg/eventstream"
	"github.com/devlens/gateway/pkg/session"
	"github.com/devlens/gateway/pkg/sse"
)

const (
	copyBufferSize = 32 * 1024

	upstreamUnavailableMessage = "The upstream API is unavailable."
)

// Forwarder relays requests to the upstream API. Request and response bodies
// are streamed in both directions; nothing is buffered beyond one copy buffer.
// Each request is attempted exactly once.
type Forwarder struct {
	upstream      *url.URL
	httpClient    *http.Client
	headerHandler *header.Handler
	logger        *slog.Logger
	metrics       *metrics
	events        *worker.Pool

	// ctx parents every upstream request; shutdown cancels it.
	ctx      context.Context
	shutdown context.CancelFunc
}

func newForwarder(upstream *url.URL, timeout time.Duration, logger *slog.Logger, m *metrics, events *worker.Pool) *Forwarder {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// Bodies are relayed with their original Content-Encoding.
	transport.DisableCompression = true
	transport.ResponseHeaderTimeout = timeout
	transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext

	ctx, shutdown := context.WithCancel(context.Background())
	return &Forwarder{
		ctx:           ctx,
		shutdown:      shutdown,
		upstream:      upstream,
		headerHandler: header.NewHandler(),
		logger:        logger,
		metrics:       m,
		events:        events,
		httpClient: &http.Client{
			Transport: transport,
			// Redirects are the browser's business.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// relay tracks one forwarded exchange for logging, metrics and events.
type relay struct {
	traceID  string
	method   string
	path     string
	endpoint string
	started  time.Time
	status   int
}

// Handle forwards the request in c to the upstream API.
func (f *Forwarder) Handle(c *fiber.Ctx) error {
	// Values from c are only valid until Handle returns; streamed bodies
	// outlive it.
	rl := &relay{
		traceID: session.TraceIDFrom(utils.CopyString(c.Get(session.TraceHeader))),
		method:  utils.CopyString(c.Method()),
		path:    utils.CopyString(c.Path()),
		started: time.Now(),
	}
	rl.endpoint = templatePath(rl.path)
	target := strings.TrimSuffix(f.upstream.String(), "/") + c.OriginalURL()

	// fasthttp recycles its RequestCtx after the handler returns, but the
	// response body is copied asynchronously and needs the upstream
	// connection to remain open, so the upstream request gets its own context.
	ctx, cancel := context.WithCancel(f.ctx)

	req, err := http.NewRequestWithContext(ctx, rl.method, target, requestBody(c))
	if err != nil {
		cancel()
		f.logger.Error("failed to create upstream request", "error", err, "trace_id", rl.traceID)
		return f.unavailable(c, rl, "request")
	}
	req.ContentLength = requestContentLength(c)

	f.headerHandler.SetUpstreamRequestHeaders(c, req)
	f.headerHandler.SetForwardedHeaders(c, req)
	req.Header.Set(session.TraceHeader, rl.traceID)

	f.logger.Debug("forwarding request to upstream",
		"method", rl.method,
		"url", target,
		"trace_id", rl.traceID,
	)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		cancel()
		f.logger.Error("upstream request failed", "error", err, "url", target, "trace_id", rl.traceID)
		return f.unavailable(c, rl, "connect")
	}

	rl.status = resp.StatusCode
	c.Status(resp.StatusCode)
	f.headerHandler.SetClientResponseHeaders(c, resp)
	c.Set(session.TraceHeader, rl.traceID)

	if !bodyAllowed(rl.method, resp.StatusCode) || resp.ContentLength == 0 {
		resp.Body.Close()
		cancel()
		if resp.ContentLength > 0 {
			c.Response().Header.SetContentLength(int(resp.ContentLength))
		}
		f.finish(rl, 0, nil, eventstream.OutcomeCompleted)
		return nil
	}

	// Use io.Pipe + SetBodyStream instead of SetBodyStreamWriter.
	// SetBodyStreamWriter flushes into an internal buffered pipe rather than
	// the socket, which batches chunks in memory. With io.Pipe, pw.Write
	// blocks until fasthttp has consumed the chunk, so the upstream is read
	// only as fast as the browser drains the response.
	pr, pw := io.Pipe()
	go f.copyResponse(cancel, resp, pw, rl)

	size := -1
	if resp.ContentLength > 0 {
		size = int(resp.ContentLength)
	}
	c.Context().Response.SetBodyStream(pr, size)
	return nil
}

// copyResponse streams the upstream body into pw. A failure closes the pipe
// with the error, which makes fasthttp abort the downstream connection.
func (f *Forwarder) copyResponse(cancel context.CancelFunc, resp *http.Response, pw *io.PipeWriter, rl *relay) {
	defer cancel()
	defer resp.Body.Close()

	var (
		n      int64
		stream *eventstream.StreamMeta
		err    error
	)
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), "text/event-stream") {
		n, stream, err = f.copyEventStream(resp.Body, pw, rl)
	} else {
		n, err = io.CopyBuffer(pw, resp.Body, make([]byte, copyBufferSize))
	}

	outcome := eventstream.OutcomeCompleted
	switch {
	case err == nil:
	case errors.Is(err, io.ErrClosedPipe):
		outcome = eventstream.OutcomeClientGone
		f.logger.Debug("client went away during relay", "path", rl.path, "trace_id", rl.traceID)
	case f.ctx.Err() != nil:
		outcome = eventstream.OutcomeShutdown
		f.logger.Info("relay cut by shutdown", "path", rl.path, "trace_id", rl.traceID)
	default:
		outcome = eventstream.OutcomeInterrupted
		f.metrics.upstreamFailed("stream")
		f.logger.Error("upstream stream interrupted", "error", err, "path", rl.path, "trace_id", rl.traceID)
	}

	// Recorded before the pipe is closed so the relay is accounted for by
	// the time the browser sees the end of the body.
	f.finish(rl, n, stream, outcome)

	if err != nil {
		pw.CloseWithError(err)
		return
	}
	pw.Close()
}

// copyEventStream relays an event stream verbatim while counting frames and
// timing the first one.
func (f *Forwarder) copyEventStream(body io.Reader, pw io.Writer, rl *relay) (int64, *eventstream.StreamMeta, error) {
	meta := &eventstream.StreamMeta{}
	tr := sse.NewTeeReader(body, pw)

	for {
		frame, err := tr.Next()
		if err != nil {
			return tr.BytesRead(), meta, err
		}
		if frame == nil {
			return tr.BytesRead(), meta, nil
		}

		if meta.Frames == 0 {
			latency := time.Since(rl.started)
			meta.FirstFrameMs = latency.Milliseconds()
			f.metrics.observeSSEStartup(rl.endpoint, latency)
		}
		meta.Frames++
		meta.LastEventIsEnd = frame.Event == "done"
	}
}

// Close aborts every in-flight upstream request. Requests handled afterwards
// fail with 502.
func (f *Forwarder) Close() {
	f.shutdown()
}

func (f *Forwarder) unavailable(c *fiber.Ctx, rl *relay, phase string) error {
	f.metrics.upstreamFailed(phase)
	rl.status = fiber.StatusBadGateway
	f.finish(rl, 0, nil, eventstream.OutcomeUpstreamUnavailable)

	c.Set(session.TraceHeader, rl.traceID)
	return c.Status(fiber.StatusBadGateway).JSON(apierror.New(apierror.CodeUpstreamUnavailable, upstreamUnavailableMessage))
}

func (f *Forwarder) finish(rl *relay, n int64, stream *eventstream.StreamMeta, outcome string) {
	completed := time.Now()
	duration := completed.Sub(rl.started)
	f.metrics.observeRequest(rl.method, rl.endpoint, rl.status, duration)

	f.logger.Info("relayed",
		"method", rl.method,
		"path", rl.path,
		"status", rl.status,
		"bytes", n,
		"duration", duration,
		"outcome", outcome,
		"trace_id", rl.traceID,
	)

	if f.events == nil {
		return
	}
	event := eventstream.NewRelayCompletedEvent(rl.traceID, eventstream.RequestMeta{
		Method:      rl.method,
		Path:        rl.path,
		StartedAt:   rl.started,
		CompletedAt: completed,
		DurationMs:  duration.Milliseconds(),
		HTTPStatus:  rl.status,
		BytesOut:    n,
	}, outcome)
	event.Stream = stream
	f.events.Enqueue(event)
}

// requestBody returns the inbound body as a stream when fiber exposes one.
func requestBody(c *fiber.Ctx) io.Reader {
	if requestContentLength(c) == 0 {
		return nil
	}
	if stream := c.Context().RequestBodyStream(); stream != nil {
		return stream
	}
	return bytes.NewReader(c.Body())
}

// requestContentLength is the declared inbound body length, or -1 if unknown.
func requestContentLength(c *fiber.Ctx) int64 {
	switch n := c.Request().Header.ContentLength(); {
	case n >= 0:
		return int64(n)
	case n == -1:
		// chunked
		return -1
	default:
		return 0
	}
}

func bodyAllowed(method string, status int) bool {
	switch {
	case method == http.MethodHead:
		return false
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

// templatePath replaces id-like path segments with "{id}" to keep metric
// label cardinality bounded.
func templatePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if s == "" {
			continue
		}
		if uuid.Validate(s) == nil || isDigits(s) || (len(s) >= 16 && isHex(s)) {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isHex(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}
