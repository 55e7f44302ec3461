package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"stagehand/internal/api"
	"stagehand/internal/ipc"
)

func newBundlesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bundles",
		Aliases: []string{"bundle"},
		Short:   "Inspect and reload bundles",
	}

	var asJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List loaded bundles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.BundleList()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Bundles) == 0 {
					fmt.Fprintln(out, "No bundles loaded")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Name", "Version", "Git", "Graphics", "Asset categories"},
					bundleRows(resp.Bundles),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Print bundles as JSON")

	refreshCmd := &cobra.Command{
		Use:   "refresh <name>",
		Short: "Reload a bundle from disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.BundleRefresh(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Bundle %s %s\n", resp.Name, resp.Change)
				return nil
			})
		},
	}

	cmd.AddCommand(listCmd, refreshCmd)
	return cmd
}

func bundleRows(list []api.BundleSummary) [][]string {
	rows := make([][]string, 0, len(list))
	for _, b := range list {
		git := "-"
		if b.Git != nil {
			git = b.Git.ShortHash
			if b.Git.Branch != "" {
				git = b.Git.Branch + "@" + git
			}
		}
		categories := "-"
		if len(b.Categories) > 0 {
			categories = strings.Join(b.Categories, ", ")
		}
		rows = append(rows, []string{b.Name, b.Version, git, strconv.Itoa(len(b.Graphics)), categories})
	}
	return rows
}
