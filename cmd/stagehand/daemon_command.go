package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"stagehand/internal/daemonctl"
	"stagehand/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var dev bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the stagehand daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: dev,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development logging")
	return cmd
}

func newDaemonControlCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the stagehand daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := startDaemon(ctx, startLogLevel)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.Launched {
				fmt.Fprintf(out, "Daemon started (pid %d)\n", result.PID)
			} else {
				fmt.Fprintf(out, "Daemon already running (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Log level override for the launched daemon")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the background stagehand daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return stopDaemon(ctx, cmd.OutOrStdout())
		},
	}

	var restartLogLevel string
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the background stagehand daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if err := stopDaemon(ctx, out); err != nil {
				return err
			}
			result, err := startDaemon(ctx, restartLogLevel)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Daemon restarted (pid %d)\n", result.PID)
			return nil
		},
	}
	restartCmd.Flags().StringVar(&restartLogLevel, "log-level", "", "Log level override for the launched daemon")

	return []*cobra.Command{startCmd, stopCmd, restartCmd}
}

func startDaemon(ctx *commandContext, logLevel string) (daemonctl.StartResult, error) {
	exe, err := os.Executable()
	if err != nil {
		return daemonctl.StartResult{}, fmt.Errorf("resolve executable: %w", err)
	}
	return daemonctl.EnsureStarted(ctx.socketPath(), exe, daemonctl.LaunchOptions{
		ConfigPath: ctx.configPath(),
		LogLevel:   logLevel,
	}, 10*time.Second)
}

func stopDaemon(ctx *commandContext, out io.Writer) error {
	result, err := daemonctl.Stop(ctx.socketPath(), 5*time.Second)
	if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}
	if err != nil {
		return err
	}
	if result.ForcedKill {
		fmt.Fprintf(out, "Daemon did not exit in time; killed pid %d\n", result.PID)
		return nil
	}
	fmt.Fprintln(out, "Daemon stopped")
	return nil
}
