// Package devlenscmder
package devlenscmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/devlens/gateway/cmd/devlens/ask"
	configcmder "github.com/devlens/gateway/cmd/devlens/config"
	servecmder "github.com/devlens/gateway/cmd/devlens/serve"
	watchcmder "github.com/devlens/gateway/cmd/devlens/watch"
	versioncmder "github.com/devlens/gateway/cmd/version"
	"github.com/devlens/gateway/pkg/config"
)

const devlensLongDesc string = `DevLens is a code intelligence workspace for your repositories.

Run the browser-facing gateway:
  devlens serve                       Serve pages and relay /api/ to the backend

Follow streams through a running gateway:
  devlens watch <repo-id>             Follow repository indexing progress
  devlens ask <session-id> <question> Stream a grounded answer

Configuration:
  devlens config list                 Show the effective configuration`

const devlensShortDesc string = "DevLens - code intelligence gateway"

func NewDevlensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "devlens",
		Short:         devlensShortDesc,
		Long:          devlensLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	def := config.Flags[config.FlagDebug]
	cmd.PersistentFlags().BoolP(def.Name, def.Shorthand, false, def.Description)
	cmd.PersistentFlags().String(config.ConfigDirFlag, "", "Directory holding config.toml (default: ./.devlens or ~/.devlens)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(watchcmder.NewWatchCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
