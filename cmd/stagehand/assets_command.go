package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"stagehand/internal/ipc"
)

func newAssetsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "assets",
		Aliases: []string{"asset"},
		Short:   "Inspect asset categories",
	}

	var asJSON bool
	listCmd := &cobra.Command{
		Use:   "list [namespace] [category]",
		Short: "List asset categories, or the files of one category",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var namespace, category string
			if len(args) > 0 {
				namespace = args[0]
			}
			if len(args) > 1 {
				category = args[1]
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.AssetList(namespace, category)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				return printAssets(cmd, resp, category != "")
			})
		},
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Print the listing as JSON")

	cmd.AddCommand(listCmd)
	return cmd
}

func printAssets(cmd *cobra.Command, resp *ipc.AssetListResponse, single bool) error {
	out := cmd.OutOrStdout()
	if !single {
		if len(resp.Categories) == 0 {
			fmt.Fprintln(out, "No asset categories declared")
			return nil
		}
		rows := make([][]string, 0, len(resp.Categories))
		for _, c := range resp.Categories {
			types := "any"
			if len(c.AllowedTypes) > 0 {
				types = strings.Join(c.AllowedTypes, ", ")
			}
			rows = append(rows, []string{c.Namespace, c.Category, c.Title, types, strconv.Itoa(c.Count)})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Namespace", "Category", "Title", "Types", "Files"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
		))
		return nil
	}

	if len(resp.Assets) == 0 {
		fmt.Fprintln(out, "No assets in category")
		return nil
	}
	rows := make([][]string, 0, len(resp.Assets))
	for _, a := range resp.Assets {
		digest := a.Digest
		if len(digest) > 12 {
			digest = digest[:12]
		}
		rows = append(rows, []string{a.Name, a.URL, digest})
	}
	fmt.Fprintln(out, renderTable([]string{"Name", "URL", "Digest"}, rows, nil))
	return nil
}
