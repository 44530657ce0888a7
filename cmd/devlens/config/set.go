package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devlens/gateway/pkg/cliui"
)

const setLongDesc string = `Set a configuration value.

Sets the given key to the provided value in the config.toml file
stored in the .devlens/ directory. Keys use dotted notation matching
the TOML section structure. Lists are comma separated and durations
use Go syntax (500ms, 2s, 1m).

Examples:
  devlens config set gateway.upstream https://api.devlens.dev
  devlens config set events.kafka_brokers kafka-1:9092,kafka-2:9092
  devlens config set stream.base_delay 2s`

const setShortDesc string = "Set a configuration value"

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "set <key> <value>",
		Short:             setShortDesc,
		Long:              setLongDesc,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: validArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(cmd, args[0], args[1])
		},
	}

	return cmd
}

func runSet(cmd *cobra.Command, key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	cfger, err := newConfiger(cmd)
	if err != nil {
		return err
	}

	if err := cfger.SetConfigValue(key, value); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	printTarget(w, cfger)
	fmt.Fprintf(w, "  %s Set %s = %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(key),
		cliui.ValueStyle.Render(value),
	)
	return nil
}
