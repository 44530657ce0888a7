// Package servecmder provides the serve command that runs the gateway.
package servecmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/devlens/gateway/gateway"
	"github.com/devlens/gateway/pkg/config"
	"github.com/devlens/gateway/pkg/eventstream"
	"github.com/devlens/gateway/pkg/eventstream/kafka"
	"github.com/devlens/gateway/pkg/eventstream/nop"
	"github.com/devlens/gateway/pkg/logger"
)

type serveCommander struct {
	flags struct {
		listen          string
		upstream        string
		apiPrefix       string
		environment     string
		upstreamTimeout time.Duration
		logJSON         bool
		logPretty       bool
		logFile         string
		kafkaBrokers    string
		kafkaTopic      string
	}

	cfg    *config.Config
	logger *slog.Logger
}

const serveLongDesc string = `Run the DevLens gateway.

The gateway serves the page shells and health probe locally and relays every
request under the API prefix (default /api/) to the upstream API, streaming
request and response bodies in both directions. Server-sent event streams
are delivered to the browser frame by frame.

When Kafka brokers are configured, one relay event per forwarded request is
published to the configured topic.`

const serveShortDesc string = "Run the DevLens gateway"

var serveFlags = []string{
	config.FlagListen,
	config.FlagUpstream,
	config.FlagAPIPrefix,
	config.FlagUpstreamTimeout,
	config.FlagEnvironment,
	config.FlagLogJSON,
	config.FlagLogPretty,
	config.FlagLogFile,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Resolve(cmd, serveFlags)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			cmder.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &f.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &f.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIPrefix, &f.apiPrefix)
	config.AddStringFlag(cmd, config.Flags, config.FlagEnvironment, &f.environment)
	config.AddDurationFlag(cmd, config.Flags, config.FlagUpstreamTimeout, &f.upstreamTimeout)
	config.AddBoolFlag(cmd, config.Flags, config.FlagLogJSON, &f.logJSON)
	config.AddBoolFlag(cmd, config.Flags, config.FlagLogPretty, &f.logPretty)
	config.AddStringFlag(cmd, config.Flags, config.FlagLogFile, &f.logFile)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &f.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &f.kafkaTopic)

	return cmd
}

func (c *serveCommander) run(ctx context.Context, stdout io.Writer) error {
	log, closeLog, err := newLogger(c.cfg.Log, stdout)
	if err != nil {
		return err
	}
	defer closeLog()
	c.logger = log

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}

	srv, err := gateway.New(gateway.Config{
		ListenAddr:      c.cfg.ListenAddr(),
		UpstreamURL:     c.cfg.Gateway.Upstream,
		APIPrefix:       c.cfg.Gateway.APIPrefix,
		UpstreamTimeout: c.cfg.Gateway.UpstreamTimeout,
		Environment:     c.cfg.Gateway.Environment,
		Publisher:       publisher,
	}, c.logger)
	if err != nil {
		if publisher != nil {
			_ = publisher.Close()
		}
		return fmt.Errorf("creating gateway: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case err := <-errChan:
		_ = srv.Close()
		return fmt.Errorf("gateway error: %w", err)
	case <-ctx.Done():
		c.logger.Info("shutting down gateway", "reason", context.Cause(ctx))
	}

	if err := srv.Close(); err != nil {
		return fmt.Errorf("shutting down gateway: %w", err)
	}
	return nil
}

// newPublisher returns the relay event publisher, or nil when event
// publishing is not configured. In debug mode without brokers, events are
// still built and queued but discarded, so their lifecycle shows in the logs.
func (c *serveCommander) newPublisher() (eventstream.Publisher, error) {
	if len(c.cfg.Events.KafkaBrokers) == 0 {
		if c.cfg.Log.Debug {
			c.logger.Debug("relay events discarded, no kafka brokers configured")
			return nop.NewPublisher(), nil
		}
		return nil, nil
	}

	publisher, err := kafka.NewPublisher(kafka.Config{
		Brokers: c.cfg.Events.KafkaBrokers,
		Topic:   c.cfg.Events.KafkaTopic,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}

	c.logger.Info("publishing relay events",
		"brokers", c.cfg.Events.KafkaBrokers,
		"topic", c.cfg.Events.KafkaTopic,
	)
	return publisher, nil
}

// newLogger builds the gateway logger. With a log file every record is also
// appended to that file as JSON.
func newLogger(cfg config.LogConfig, stdout io.Writer) (*slog.Logger, func(), error) {
	opts := []logger.Option{
		logger.WithDebug(cfg.Debug),
		logger.WithJSON(cfg.JSON),
		logger.WithPretty(cfg.Pretty),
		logger.WithWriter(stdout),
		logger.WithComponent("gateway"),
	}
	if cfg.File == "" {
		return logger.New(opts...), func() {}, nil
	}

	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return logger.New(append(opts, logger.WithFile(f))...), func() { _ = f.Close() }, nil
}
