package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stagehand/internal/api"
	"stagehand/internal/ipc"
)

func newGraphicsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "graphics",
		Aliases: []string{"graphic"},
		Short:   "Inspect and control graphic instances",
	}

	var asJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered graphic instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.GraphicInstances()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Instances) == 0 {
					fmt.Fprintln(out, "No graphic instances registered")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Bundle", "Path", "Socket", "Address", "Open", "Single", "Outdated"},
					graphicRows(resp.Instances),
					nil,
				))
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Print instances as JSON")

	var all bool
	refreshCmd := &cobra.Command{
		Use:   "refresh [path-or-socket-id]",
		Short: "Ask graphics to reload",
		Long: "Ask graphics to reload. A target starting with / reloads every instance of that graphic path;\n" +
			"any other target is a socket id. --all reloads every graphic of every bundle.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var target string
			if len(args) == 1 {
				target = strings.TrimSpace(args[0])
			}
			if target == "" && !all {
				return errors.New("a target or --all is required")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.GraphicRefresh(target, all); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Refresh sent")
				return nil
			})
		},
	}
	refreshCmd.Flags().BoolVar(&all, "all", false, "Reload every graphic of every bundle")

	killCmd := &cobra.Command{
		Use:   "kill <socket-id>",
		Short: "Ask one graphic instance to close",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.GraphicKill(args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Kill sent")
				return nil
			})
		},
	}

	cmd.AddCommand(listCmd, refreshCmd, killCmd)
	return cmd
}

func graphicRows(list []api.GraphicInstance) [][]string {
	rows := make([][]string, 0, len(list))
	for _, g := range list {
		rows = append(rows, []string{
			g.BundleName,
			g.PathName,
			g.SocketID,
			g.IPv4,
			yesNo(g.Open),
			yesNo(g.SingleInstance),
			yesNo(g.PotentiallyOutOfDate),
		})
	}
	return rows
}
