// Package watchcmder provides the watch command that follows repository
// indexing progress through the gateway.
package watchcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/devlens/gateway/pkg/cliui"
	"github.com/devlens/gateway/pkg/config"
	"github.com/devlens/gateway/pkg/logger"
	"github.com/devlens/gateway/pkg/session"
	"github.com/devlens/gateway/pkg/sse"
	"github.com/devlens/gateway/pkg/stream"
	"github.com/devlens/gateway/pkg/utils"
)

type watchCommander struct {
	flags struct {
		gatewayTarget string
		token         string
		maxRetries    int
		baseDelay     time.Duration
	}
	once bool

	cfg    *config.Config
	out    io.Writer
	logger *slog.Logger
}

const watchLongDesc string = `Follow the indexing progress of a repository.

Subscribes to the repository status stream through a running gateway and
prints each progress update. Dropped connections are retried with a linear
backoff (attempt x base delay) until max retries consecutive failures.

Exits 0 once indexing is done and non-zero when the job fails or the stream
cannot be re-established.

Examples:
  devlens watch 3f2a9c
  devlens watch 3f2a9c --once
  devlens watch 3f2a9c --gateway http://localhost:3000 --max-retries 10`

const watchShortDesc string = "Follow repository indexing progress"

var watchFlags = []string{
	config.FlagGatewayTarget,
	config.FlagToken,
	config.FlagMaxRetries,
	config.FlagBaseDelay,
}

func NewWatchCmd() *cobra.Command {
	cmder := &watchCommander{}

	cmd := &cobra.Command{
		Use:   "watch <repo-id>",
		Short: watchShortDesc,
		Long:  watchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Resolve(cmd, watchFlags)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := cfg.ValidateClient(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			cmder.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.out = cmd.OutOrStdout()
			cmder.logger = logger.New(
				logger.WithDebug(cmder.cfg.Log.Debug),
				logger.WithPretty(true),
				logger.WithWriter(cmd.ErrOrStderr()),
				logger.WithComponent("watch"),
			)
			return cmder.run(cmd.Context(), args[0])
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.Flags, config.FlagGatewayTarget, &f.gatewayTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagToken, &f.token)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxRetries, &f.maxRetries)
	config.AddDurationFlag(cmd, config.Flags, config.FlagBaseDelay, &f.baseDelay)
	cmd.Flags().BoolVar(&cmder.once, "once", false, "Print the current status and exit")

	return cmd
}

func (c *watchCommander) run(ctx context.Context, repoID string) error {
	// Receives nil once indexing is done.
	results := make(chan error, 1)
	finish := func(err error) {
		select {
		case results <- err:
		default:
		}
	}

	handler := stream.HandlerFuncs{
		OnFrame: func(_ string, f sse.Frame) {
			c.handleFrame(f, finish)
		},
		OnError: func(_ string, err *stream.Error) {
			c.handleError(err, finish)
		},
	}

	client, err := stream.New(stream.Config{
		BaseURL:    c.cfg.Client.GatewayTarget,
		MaxRetries: c.cfg.Stream.MaxRetries,
		BaseDelay:  c.cfg.Stream.BaseDelay,
		Session:    session.New(c.cfg.Client.Token),
		UserAgent:  utils.UserAgent(),
	}, handler, stream.WithLogger(c.logger))
	if err != nil {
		return fmt.Errorf("creating stream client: %w", err)
	}
	defer client.Close()

	endpoint := stream.RepoStatusEndpoint
	if c.once {
		endpoint = endpoint.WithQuery("once", "true")
	}

	started := time.Now()
	if err := client.Subscribe(ctx, endpoint, repoID); err != nil {
		return fmt.Errorf("subscribing to %s: %w", repoID, err)
	}

	select {
	case err := <-results:
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s Repository %s indexed %s\n",
			cliui.SuccessMark,
			cliui.KeyStyle.Render(repoID),
			cliui.StepStyle.Render(fmt.Sprintf("(%s)", cliui.FormatDuration(time.Since(started)))),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *watchCommander) handleFrame(f sse.Frame, finish func(error)) {
	switch f.Event {
	case "progress", "done":
		p, err := stream.DecodeProgress(f)
		if err != nil {
			c.logger.Warn("skipping malformed frame", "event", f.Event, "error", err)
			// The subscription is terminal after "done" whatever its payload.
			if f.Event == "done" {
				finish(nil)
			}
			return
		}
		fmt.Fprintln(c.out, cliui.ProgressLine(p.Stage, p.Progress, p.Message, p.ETASeconds))
		if f.Event == "done" {
			finish(nil)
		}
	default:
		c.logger.Debug("ignoring frame", "event", f.Event)
	}
}

func (c *watchCommander) handleError(err *stream.Error, finish func(error)) {
	if errors.Is(err, stream.ErrDisconnected) {
		fmt.Fprintf(c.out, "%s %s\n", cliui.FailMark, err.Message)
		finish(err)
		return
	}
	fmt.Fprintf(c.out, "%s %s: %s %s\n",
		cliui.RetryMark,
		err.Code,
		err.Message,
		cliui.StepStyle.Render(fmt.Sprintf("(attempt %d)", err.Attempt)),
	)
}
