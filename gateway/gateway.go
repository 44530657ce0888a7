// Package gateway provides the browser-facing DevLens gateway: it serves the
// page shells and health probes locally and relays every path under the API
// prefix to the backend API, streaming bodies in both directions.
package gateway

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devlens/gateway/gateway/worker"
	"github.com/devlens/gateway/pkg/apierror"
	"github.com/devlens/gateway/pkg/router"
)

// DefaultAPIPrefix is the path prefix relayed to the upstream API.
const DefaultAPIPrefix = "/api/"

const (
	routeHealth   = "health"
	routeMetrics  = "metrics"
	routeHome     = "home"
	routeRepo     = "repo"
	routeRepoChat = "repo_chat"
	routeShare    = "share"
	routeAPI      = "api"
)

// Server is the gateway HTTP server.
type Server struct {
	config    Config
	logger    *slog.Logger
	server    *fiber.App
	router    *router.Router
	forwarder *Forwarder
	metrics   *metrics
	registry  *prometheus.Registry
	events    *worker.Pool
	exporter  fiber.Handler
}

// New creates a new Server. The returned server owns the configured
// Publisher and closes it on Close.
func New(config Config, logger *slog.Logger) (*Server, error) {
	if config.APIPrefix == "" {
		config.APIPrefix = DefaultAPIPrefix
	}
	if !strings.HasPrefix(config.APIPrefix, "/") || !strings.HasSuffix(config.APIPrefix, "/") {
		return nil, fmt.Errorf("api prefix %q must start and end with /", config.APIPrefix)
	}

	upstream, err := url.Parse(config.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("parsing upstream url: %w", err)
	}
	if (upstream.Scheme != "http" && upstream.Scheme != "https") || upstream.Host == "" {
		return nil, fmt.Errorf("upstream url %q must be an absolute http(s) url", config.UpstreamURL)
	}

	rt, err := router.New(
		router.Exact(routeHealth, "/health"),
		router.Exact(routeMetrics, "/metrics"),
		router.Exact(routeHome, "/"),
		router.Param(routeRepo, "/repos/:id"),
		router.Param(routeRepoChat, "/repos/:id/chat"),
		router.Param(routeShare, "/share/:token"),
		router.Prefix(routeAPI, config.APIPrefix),
	)
	if err != nil {
		return nil, fmt.Errorf("building routes: %w", err)
	}

	var events *worker.Pool
	if config.Publisher != nil {
		events, err = worker.NewPool(&worker.Config{
			Publisher: config.Publisher,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create event worker pool: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := newMetrics(registry)

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Stream request bodies to the upstream instead of buffering them
		StreamRequestBody: true,
		ErrorHandler:      errorHandler,
	})

	s := &Server{
		config:    config,
		logger:    logger,
		server:    app,
		router:    rt,
		forwarder: newForwarder(upstream, config.UpstreamTimeout, logger, m, events),
		metrics:   m,
		registry:  registry,
		events:    events,
		exporter:  adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
	}

	// Every path goes through the router; fiber only provides the transport.
	app.All("/*", s.dispatch)

	return s, nil
}

// Run starts the gateway server on the configured listening address
func (s *Server) Run() error {
	s.logger.Info("starting gateway server",
		"listen", s.config.ListenAddr,
		"upstream", s.config.UpstreamURL,
		"api_prefix", s.config.APIPrefix,
	)

	return s.server.Listen(s.config.ListenAddr)
}

// RunWithListener starts the gateway server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting gateway server",
		"listen", listener.Addr().String(),
		"upstream", s.config.UpstreamURL,
		"api_prefix", s.config.APIPrefix,
	)

	return s.server.Listener(listener)
}

// Close shuts down the server and waits for queued relay events to be
// published. Open relays, including long-lived event streams, are cut rather
// than waited for.
func (s *Server) Close() error {
	s.forwarder.Close()
	err := s.server.Shutdown()
	if s.events != nil {
		err = errors.Join(err, s.events.Close())
	}
	return err
}

func (s *Server) dispatch(c *fiber.Ctx) error {
	match, ok := s.router.Match(c.Path())
	if !ok {
		s.metrics.observeRequest(c.Method(), "unmatched", fiber.StatusNotFound, 0)
		return c.Status(fiber.StatusNotFound).JSON(apierror.New(apierror.CodeNotFound, "Not found"))
	}

	switch match.Route.Name {
	case routeAPI:
		return s.forwarder.Handle(c)
	case routeHealth:
		return s.local(c, match.Route.Pattern, func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"status": "ok", "service": "frontend"})
		})
	case routeMetrics:
		return s.local(c, match.Route.Pattern, s.exporter)
	case routeHome:
		return s.local(c, match.Route.Pattern, s.renderHome)
	default:
		return s.local(c, match.Route.Pattern, func(c *fiber.Ctx) error {
			return s.renderShell(c, match.Route.Name, match.Params)
		})
	}
}

// local serves a gateway-owned route. Only GET and HEAD are allowed.
func (s *Server) local(c *fiber.Ctx, pattern string, h fiber.Handler) error {
	start := time.Now()

	var err error
	if c.Method() != fiber.MethodGet && c.Method() != fiber.MethodHead {
		c.Set(fiber.HeaderAllow, "GET, HEAD")
		err = c.Status(fiber.StatusMethodNotAllowed).JSON(apierror.New(
			apierror.CodeForStatus(fiber.StatusMethodNotAllowed),
			"Method not allowed",
		))
	} else {
		err = h(c)
	}

	status := c.Response().StatusCode()
	if err != nil {
		status = errorStatus(err)
	}
	s.metrics.observeRequest(c.Method(), pattern, status, time.Since(start))
	return err
}

// errorHandler renders handler errors as error envelopes.
func errorHandler(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	message := http.StatusText(status)
	var fe *fiber.Error
	if errors.As(err, &fe) {
		message = fe.Message
	}
	return c.Status(status).JSON(apierror.New(apierror.CodeForStatus(status), message))
}

func errorStatus(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}
