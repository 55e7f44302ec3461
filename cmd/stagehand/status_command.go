package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"stagehand/internal/ipc"
	"stagehand/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, bundle, asset and graphic status",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			client, dialErr := ctx.dialClient()
			if dialErr != nil {
				if asJSON {
					return dialErr
				}
				printSection(out, "Daemon", colorize, []string{
					renderStatusLine("Daemon", statusError, "Not running", colorize),
					renderStatusLine("Socket", statusInfo, ctx.socketPath(), colorize),
				})
				fmt.Fprintln(out)
				cfg, _ := ctx.ensureConfig()
				printSection(out, "Preflight", colorize, preflightLines(preflight.RunAll(cmd.Context(), cfg), colorize))
				return nil
			}
			defer client.Close()

			status, err := client.Status()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, status)
			}

			printSection(out, "Daemon", colorize, daemonLines(status, colorize))
			fmt.Fprintln(out)

			if len(status.Replicants) == 0 {
				printSection(out, "Replicants", colorize, []string{statusIndent + "No replicants declared"})
				return nil
			}
			printSection(out, "Replicants", colorize, nil)
			rows := make([][]string, 0, len(status.Replicants))
			for _, d := range status.Replicants {
				rows = append(rows, []string{d.Namespace, d.Name, strconv.FormatInt(d.Revision, 10), yesNo(d.Persistent)})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Namespace", "Name", "Revision", "Persistent"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status as JSON")
	return cmd
}

func daemonLines(status *ipc.StatusResponse, colorize bool) []string {
	running := statusOK
	runningText := fmt.Sprintf("Running (pid %d)", status.PID)
	if !status.Running {
		running = statusWarn
		runningText = "Stopped"
	}
	assets := statusWarn
	assetsText := fmt.Sprintf("%d files, initial scan pending", status.Assets)
	if status.AssetsReady {
		assets = statusOK
		assetsText = fmt.Sprintf("%d files in %d categories", status.Assets, status.AssetCategories)
	}
	api := status.APIBind
	if api == "" {
		api = "disabled"
	}
	lines := []string{
		renderStatusLine("Daemon", running, runningText, colorize),
		renderStatusLine("API", statusInfo, api, colorize),
		renderStatusLine("Bundles", statusInfo, strconv.Itoa(status.Bundles), colorize),
		renderStatusLine("Assets", assets, assetsText, colorize),
		renderStatusLine("Graphics", statusInfo, fmt.Sprintf("%d registered, %d open", status.Graphics.Registered, status.Graphics.Open), colorize),
		renderStatusLine("Clients", statusInfo, strconv.Itoa(status.Clients), colorize),
	}
	if status.Graphics.Outdated > 0 {
		lines = append(lines, renderStatusLine("Outdated graphics", statusWarn, strconv.Itoa(status.Graphics.Outdated), colorize))
	}
	if status.ReplicantDBPath != "" {
		lines = append(lines, renderStatusLine("Replicant store", statusInfo, status.ReplicantDBPath, colorize))
	}
	return lines
}

func preflightLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		kind := statusOK
		if !r.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	return lines
}
