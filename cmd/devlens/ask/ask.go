// Package askcmder provides the ask command that streams a chat answer
// through the gateway.
package askcmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devlens/gateway/pkg/cliui"
	"github.com/devlens/gateway/pkg/config"
	"github.com/devlens/gateway/pkg/logger"
	"github.com/devlens/gateway/pkg/session"
	"github.com/devlens/gateway/pkg/sse"
	"github.com/devlens/gateway/pkg/stream"
	"github.com/devlens/gateway/pkg/utils"
)

type askCommander struct {
	flags struct {
		gatewayTarget string
		token         string
	}
	topK     int
	markdown bool

	cfg    *config.Config
	out    io.Writer
	logger *slog.Logger
}

const askLongDesc string = `Ask a question in a chat session.

Sends the question to the session through a running gateway and prints the
answer as it streams in, followed by the source citations it is grounded on.
With --markdown the complete answer is rendered once it has finished.

A chat message is never re-sent, so a dropped stream fails the command.

Examples:
  devlens ask 7d1e "Where is the retry policy configured?"
  devlens ask 7d1e "How are tokens validated?" --top-k 8 --markdown`

const askShortDesc string = "Stream an answer from a chat session"

var askFlags = []string{
	config.FlagGatewayTarget,
	config.FlagToken,
}

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <session-id> <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(2),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Resolve(cmd, askFlags)
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
				logger.WithComponent("ask"),
			)
			return cmder.run(cmd.Context(), args[0], strings.Join(args[1:], " "))
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.Flags, config.FlagGatewayTarget, &f.gatewayTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagToken, &f.token)
	cmd.Flags().IntVarP(&cmder.topK, "top-k", "k", 0, "Number of code chunks to retrieve (default: server side)")
	cmd.Flags().BoolVarP(&cmder.markdown, "markdown", "m", false, "Render the finished answer as markdown instead of streaming it")

	return cmd
}

// answer accumulates one streamed reply.
type answer struct {
	text strings.Builder
	done stream.ChatDone
}

func (c *askCommander) run(ctx context.Context, sessionID, question string) error {
	endpoint, err := stream.ChatMessageEndpoint(question, c.topK)
	if err != nil {
		return err
	}

	var ans answer
	results := make(chan error, 1)
	finish := func(err error) {
		select {
		case results <- err:
		default:
		}
	}

	handler := stream.HandlerFuncs{
		OnFrame: func(_ string, f sse.Frame) {
			switch f.Event {
			case "delta":
				d, err := stream.DecodeDelta(f)
				if err != nil {
					c.logger.Warn("skipping malformed frame", "error", err)
					return
				}
				ans.text.WriteString(d.Token)
				if !c.markdown {
					fmt.Fprint(c.out, d.Token)
				}
			case "done":
				done, err := stream.DecodeChatDone(f)
				if err != nil {
					finish(err)
					return
				}
				ans.done = done
				finish(nil)
			}
		},
		OnError: func(_ string, err *stream.Error) {
			finish(err)
		},
	}

	client, err := stream.New(stream.Config{
		BaseURL: c.cfg.Client.GatewayTarget,
		// One attempt: reconnecting would post the question again.
		MaxRetries: 1,
		Session:    session.New(c.cfg.Client.Token),
		UserAgent:  utils.UserAgent(),
	}, handler, stream.WithLogger(c.logger))
	if err != nil {
		return fmt.Errorf("creating stream client: %w", err)
	}
	defer client.Close()

	if err := client.Subscribe(ctx, endpoint, sessionID); err != nil {
		return fmt.Errorf("sending question: %w", err)
	}

	select {
	case err := <-results:
		// The first error is the cause; the disconnect that follows it is not
		// interesting here.
		if err != nil {
			if !c.markdown && ans.text.Len() > 0 {
				fmt.Fprintln(c.out)
			}
			return err
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	return c.print(&ans)
}

func (c *askCommander) print(ans *answer) error {
	if c.markdown {
		rendered, err := cliui.RenderMarkdown(ans.text.String())
		if err != nil {
			c.logger.Debug("markdown rendering failed", "error", err)
		}
		fmt.Fprint(c.out, rendered)
	} else {
		fmt.Fprintln(c.out)
	}

	if ans.done.NoCitation || len(ans.done.Citations) == 0 {
		fmt.Fprintf(c.out, "\n%s\n", cliui.DimStyle.Render("No sources cited."))
		return nil
	}

	fmt.Fprintf(c.out, "\n%s\n", cliui.KeyStyle.Render("Sources"))
	for i, cite := range ans.done.Citations {
		fmt.Fprintf(c.out, "  [%d] %s %s\n",
			i+1,
			cliui.ValueStyle.Render(fmt.Sprintf("%s:%d-%d", cite.FilePath, cite.LineStart, cite.LineEnd)),
			cliui.StepStyle.Render(fmt.Sprintf("(score %.2f)", cite.Score)),
		)
	}
	return nil
}
