package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"os"

	"github.com/grovetools/mirror/cli"
	"github.com/grovetools/mirror/logging"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the mirror log file",
		Long: `Prints the log file written when logging.file.enabled is set.

Examples:
  # Follow the log
  mirror logs -f

  # Last 100 lines as JSON Lines
  mirror logs --tail 100 --json
`,
		Args: cobra.NoArgs,
		RunE: runLogsE,
	}

	cmd.Flags().BoolP("follow", "f", false, "Follow log output")
	cmd.Flags().Int("tail", -1, "Number of lines to show from the end of the log (default: all)")
	cmd.Flags().String("component", "mirror-cli", "Component whose log file to read")
	return cmd
}

func runLogsE(cmd *cobra.Command, args []string) error {
	if _, err := cli.LoadConfig(cmd); err != nil {
		cli.GetLogger(cmd).WithError(err).Debug("Using default log location")
	}
	component, _ := cmd.Flags().GetString("component")
	follow, _ := cmd.Flags().GetBool("follow")
	n, _ := cmd.Flags().GetInt("tail")
	jsonOutput := cli.GetOptions(cmd).JSONOutput

	path := logging.LogFilePath(component)
	if _, err := os.Stat(path); err != nil && !follow {
		return fmt.Errorf("no log file at %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	if _, err := os.Stat(path); err == nil {
		lines, err := readLines(path, n)
		if err != nil {
			return err
		}
		for _, l := range lines {
			printLogLine(out, l, jsonOutput)
		}
	}
	if !follow {
		return nil
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:    stdlog.New(io.Discard, "", 0),
	})
	if err != nil {
		return fmt.Errorf("failed to follow %s: %w", path, err)
	}
	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			return t.Stop()
		case line, ok := <-t.Lines:
			if !ok {
				return nil
			}
			if line.Err != nil {
				return line.Err
			}
			printLogLine(out, line.Text, jsonOutput)
		}
	}
}

// readLines reads path to EOF and returns its last n lines, or every line
// when n is negative.
func readLines(path string, n int) ([]string, error) {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    false,
		MustExist: true,
		Logger:    stdlog.New(io.Discard, "", 0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var lines []string
	for line := range t.Lines {
		if line.Err != nil {
			return nil, line.Err
		}
		lines = append(lines, line.Text)
		if n >= 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	return lines, nil
}

// printLogLine writes one log line. In JSON mode, text lines are wrapped so
// every output line is a JSON object.
func printLogLine(w io.Writer, line string, jsonOutput bool) {
	if !jsonOutput {
		fmt.Fprintln(w, line)
		return
	}
	if json.Valid([]byte(line)) {
		fmt.Fprintln(w, line)
		return
	}
	data, _ := json.Marshal(map[string]string{"msg": line})
	fmt.Fprintln(w, string(data))
}
