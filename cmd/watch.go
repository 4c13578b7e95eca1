package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grovetools/mirror/cli"
	"github.com/grovetools/mirror/config"
	"github.com/grovetools/mirror/internal/telemetry"
	"github.com/grovetools/mirror/pkg/channel"
	"github.com/grovetools/mirror/pkg/plan"
	"github.com/grovetools/mirror/pkg/profiling"
	"github.com/grovetools/mirror/pkg/reconcile"
	"github.com/grovetools/mirror/pkg/session"
	"github.com/grovetools/mirror/state"
	"github.com/grovetools/mirror/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const configReloadDebounce = 500 * time.Millisecond

// NewWatchCmd creates the `watch` command.
func NewWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Mirror the workspace and follow plan runs until interrupted",
		Long: `Connects to the server's push channel, mirrors the workspace tree and
follows the overview, apply and cancel trackers. A plan run is requested
whenever the models or the target environment change. Open tabs are
restored on start and saved on exit.

Examples:
  # Follow the server configured in mirror.yml
  mirror watch

  # Emit one JSON object per event
  mirror watch --json
`,
		Args: cobra.NoArgs,
		RunE: runWatchE,
	}
}

func runWatchE(cmd *cobra.Command, args []string) error {
	logger := cli.GetLogger(cmd)
	opts := cli.GetOptions(cmd)

	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := telemetry.Init(telemetry.Options{
		DSN:         cfg.Telemetry.DSN,
		Version:     version.Version,
		Environment: cfg.Telemetry.Environment,
	}); err != nil {
		logger.WithError(err).Warn("Telemetry disabled")
	}
	defer telemetry.Flush()

	store, err := state.Open(cfg.State.Backend, cfg.State.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := newService(cfg)
	defer svc.Close()

	bus := channel.NewMemoryBus(logger.WithField("part", "bus"))
	printer := &eventPrinter{out: cmd.OutOrStdout(), json: opts.JSONOutput}

	var sess *session.Session
	sess = session.New(svc, bus, session.Options{
		Workspace: workspaceKey(cfg),
		Plan: plan.Options{
			TargetEnvironment: cfg.Plan.TargetEnvironment,
			PlanOptions:       cfg.Plan.Options(),
		},
		Ignore: cfg.Workspace.Ignore,
		Store:  store,
		Logger: logger,
		OnTreeChange: func(res reconcile.Result) {
			nodes := 0
			if tree := sess.Tree(); tree != nil {
				nodes = tree.Len()
			}
			printer.Tree(res, nodes)
		},
		OnTracker: printer.Tracker,
		OnError:   printer.Error,
	})

	span := profiling.Start("start-session")
	err = sess.Start(ctx)
	span.Stop()
	if err != nil {
		_ = sess.Close()
		return err
	}

	cwd, _ := os.Getwd()
	watcher, err := config.NewWatcher(cwd, cfg, configReloadDebounce, func(next *config.Config) {
		if next.Server != cfg.Server || next.Channel != cfg.Channel || next.Plan != cfg.Plan {
			logger.Warn("Server, channel or plan settings changed; restart watch to apply them")
		}
	})
	if err != nil {
		logger.WithError(err).Warn("Configuration changes will not be picked up")
	} else {
		watcher.Start(ctx)
		defer watcher.Close()
	}

	src := newSource(cfg, logger.WithField("part", "channel"))
	srcDone := make(chan error, 1)
	go func() { srcDone <- src.Run(ctx, bus) }()

	logger.WithFields(logrus.Fields{
		"server":    workspaceKey(cfg),
		"transport": cfg.Channel.Transport,
	}).Info("Watching workspace")

	select {
	case <-ctx.Done():
	case err = <-srcDone:
		if err != nil {
			logger.WithError(err).Error("Channel source stopped")
		}
	}
	stop()

	if closeErr := sess.Close(); closeErr != nil {
		return closeErr
	}
	if err != nil && err != context.Canceled {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), cli.DefaultPalette.Muted.Render("Session closed"))
	return nil
}
