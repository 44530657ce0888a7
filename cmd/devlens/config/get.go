package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devlens/gateway/pkg/cliui"
)

const getLongDesc string = `Get a configuration value.

Reads the value for the given key from the config.toml file
stored in the .devlens/ directory. Keys use dotted notation matching
the TOML section structure.

Examples:
  devlens config get gateway.upstream
  devlens config get stream.max_retries`

const getShortDesc string = "Get a configuration value"

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "get <key>",
		Short:             getShortDesc,
		Long:              getLongDesc,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: validArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, args[0])
		},
	}

	return cmd
}

func runGet(cmd *cobra.Command, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	cfger, err := newConfiger(cmd)
	if err != nil {
		return err
	}

	value, err := cfger.GetConfigValue(key)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	printTarget(w, cfger)
	if value == "" {
		fmt.Fprintf(w, "  %s  %s\n\n", cliui.KeyStyle.Render(key), cliui.DimStyle.Render("<not set>"))
	} else {
		fmt.Fprintf(w, "  %s  %s\n\n", cliui.KeyStyle.Render(key), cliui.ValueStyle.Render(value))
	}

	return nil
}
