// Package versioncmder provides the version command shared by the devlens
// binary.
package versioncmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/devlens/gateway/pkg/utils"
)

type versionCommander struct {
	short bool
}

func NewVersionCmd() *cobra.Command {
	cmder := &versionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the devlens version",
		Long:  "Print the version, commit and build time of this devlens binary.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&cmder.short, "short", false, "Print only the version")

	return cmd
}

func (c *versionCommander) run(w io.Writer) error {
	if c.short {
		fmt.Fprintln(w, utils.Version)
		return nil
	}
	fmt.Fprintf(w, "Version: %s\nSha: %s\nBuilt at: %s\nUser agent: %s\n",
		utils.Version, utils.Sha, utils.Buildtime, utils.UserAgent())
	return nil
}
