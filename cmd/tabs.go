package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/mirror/cli"
	"github.com/grovetools/mirror/pkg/models"
	"github.com/grovetools/mirror/state"
	"github.com/spf13/cobra"
)

// NewTabsCmd creates the `tabs` command.
func NewTabsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tabs",
		Short: "List the editor tabs saved for each mirrored server",
		Long: `Shows the tab state saved when a watch session closed. By default only
the configured server is listed.

Examples:
  mirror tabs
  mirror tabs --all --json
`,
		Args: cobra.NoArgs,
		RunE: runTabsE,
	}
	cmd.Flags().BoolP("all", "a", false, "List every saved workspace")
	return cmd
}

type savedTabs struct {
	Workspace string          `json:"workspace"`
	State     models.TabState `json:"state"`
}

func runTabsE(cmd *cobra.Command, args []string) error {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := state.Open(cfg.State.Backend, cfg.State.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	keys := []string{workspaceKey(cfg)}
	if all, _ := cmd.Flags().GetBool("all"); all {
		if keys, err = store.Workspaces(); err != nil {
			return err
		}
	}

	var out []savedTabs
	for _, k := range keys {
		st, err := store.Load(k)
		if err != nil {
			return err
		}
		out = append(out, savedTabs{Workspace: k, State: st})
	}

	if cli.GetOptions(cmd).JSONOutput {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	printTabs(cmd, out)
	return nil
}

func printTabs(cmd *cobra.Command, saved []savedTabs) {
	p := cli.DefaultPalette
	w := cmd.OutOrStdout()
	for _, s := range saved {
		fmt.Fprintln(w, p.Title.Render(s.Workspace))
		if s.State.Empty() {
			fmt.Fprintln(w, "  "+p.Muted.Render("no saved tabs"))
			continue
		}
		for _, t := range s.State.Tabs {
			marker := "  "
			if t.ID == s.State.ActiveID {
				marker = p.Success.Render("* ")
			}
			line := marker + t.ID
			if t.Content != "" {
				line += p.Muted.Render(fmt.Sprintf(" (%d bytes buffered)", len(t.Content)))
			}
			fmt.Fprintln(w, line)
		}
	}
}
