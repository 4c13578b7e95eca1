package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/grovetools/mirror/cli"
	"github.com/grovetools/mirror/pkg/profiling"
	"github.com/grovetools/mirror/pkg/workspace"
	"github.com/spf13/cobra"
)

// NewTreeCmd creates the `tree` command.
func NewTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Fetch and print the workspace tree once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			span := profiling.Start("load-config")
			cfg, err := cli.LoadConfig(cmd)
			span.Stop()
			if err != nil {
				return err
			}
			svc := newService(cfg)
			defer svc.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Server.TimeoutDuration())
			defer cancel()

			span = profiling.Start("fetch-files")
			root, err := svc.FetchFiles(ctx)
			span.Stop()
			if err != nil {
				return err
			}
			span = profiling.Start("build-tree")
			tree := workspace.NewTree(root, workspace.WithIgnore(cfg.Workspace.Ignore))
			span.Stop()

			if cli.GetOptions(cmd).JSONOutput {
				data, err := json.MarshalIndent(tree.Snapshot(), "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			defer profiling.Start("render").Stop()
			renderTree(cmd.OutOrStdout(), tree.Root(), outputWidth())
			return nil
		},
	}
}
