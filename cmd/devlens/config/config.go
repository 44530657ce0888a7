// Package configcmder provides the config command for managing persistent
// devlens configuration stored in the .devlens/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devlens/gateway/pkg/cliui"
	"github.com/devlens/gateway/pkg/config"
)

const configLongDesc string = `Manage persistent devlens configuration.

Configuration is stored as config.toml in the .devlens/ directory and provides
default values for command flags. Environment variables (DEVLENS_GATEWAY_LISTEN,
NEXT_PUBLIC_API_URL, PORT, NODE_ENV) and CLI flags take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  gateway.listen, gateway.port, gateway.upstream, gateway.api_prefix,
  gateway.upstream_timeout, gateway.environment,
  stream.max_retries, stream.base_delay,
  client.gateway_target, client.token,
  log.debug, log.json, log.pretty, log.file,
  events.kafka_brokers, events.kafka_topic

Use subcommands to get, set, or list configuration values:
  devlens config set <key> <value>    Set a configuration value
  devlens config get <key>            Get a configuration value
  devlens config list                 List all configuration values

Examples:
  devlens config set gateway.upstream https://api.devlens.dev
  devlens config set stream.base_delay 500ms
  devlens config get gateway.listen
  devlens config list`

const configShortDesc string = "Manage persistent devlens configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func validArgs(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func newConfiger(cmd *cobra.Command) (*config.Configer, error) {
	configDir, _ := cmd.Flags().GetString(config.ConfigDirFlag)
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfger, nil
}

func printTarget(w io.Writer, cfger *config.Configer) {
	fmt.Fprintf(w, "\n  %s %s %s\n\n",
		cliui.KeyStyle.Render("Config file:"),
		cliui.DimStyle.Render(cfger.GetTarget()),
		cliui.StepStyle.Render(fmt.Sprintf("(from %s)", cfger.Source())),
	)
}
