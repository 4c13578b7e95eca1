package main

import (
	"os"

	"github.com/grovetools/mirror/cli"
	"github.com/grovetools/mirror/cmd"
	"github.com/grovetools/mirror/internal/telemetry"
	"github.com/grovetools/mirror/logging"
	"github.com/grovetools/mirror/pkg/profiling"
)

func main() {
	defer telemetry.RecoverPanic()
	cli.InitColor()

	rootCmd := cli.NewStandardCommand(
		"mirror",
		"Mirror a remote project workspace and follow its plan runs",
	)

	profiling.NewCobraProfiler().Attach(rootCmd)

	rootCmd.AddCommand(cli.NewVersionCommand("mirror"))
	rootCmd.AddCommand(cmd.NewWatchCmd())
	rootCmd.AddCommand(cmd.NewTreeCmd())
	rootCmd.AddCommand(cmd.NewTabsCmd())
	rootCmd.AddCommand(cmd.NewLogsCmd())
	rootCmd.AddCommand(cmd.NewConfigCmd())
	cli.ApplyStyledHelpRecursive(rootCmd)

	err := rootCmd.Execute()
	_ = logging.Close()
	if err != nil {
		verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
		cli.NewErrorHandler(verbose).Handle(err)
		os.Exit(1)
	}
}
