package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"stagehand/internal/ipc"
)

func newSoundsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sounds",
		Aliases: []string{"sound"},
		Short:   "Inspect and assign bundle sound cues",
	}

	var asJSON bool
	listCmd := &cobra.Command{
		Use:   "list [namespace]",
		Short: "List sound cues",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var namespace string
			if len(args) == 1 {
				namespace = args[0]
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SoundCueList(namespace)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Cues) == 0 {
					fmt.Fprintln(out, "No sound cues declared")
					return nil
				}
				rows := make([][]string, 0, len(resp.Cues))
				for _, c := range resp.Cues {
					file := c.File
					if file == "" {
						file = "-"
					}
					rows = append(rows, []string{c.Namespace, c.Name, yesNo(c.Assignable), file, strconv.Itoa(c.Volume)})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Bundle", "Cue", "Assignable", "File", "Volume"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Print cues as JSON")

	var (
		volume    int
		clearFile bool
	)
	assignCmd := &cobra.Command{
		Use:   "assign <namespace> <cue> [file]",
		Short: "Assign a sounds asset to a cue or change its volume",
		Long: "Assign a file from the bundle's sounds category to a cue. The file is a base name\n" +
			"or an asset URL. --clear removes the assignment; --volume sets the cue volume (0-100).",
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ipc.SoundCueUpdateRequest{Namespace: args[0], Name: args[1]}
			switch {
			case len(args) == 3 && clearFile:
				return errors.New("pass a file or --clear, not both")
			case len(args) == 3:
				req.File = &args[2]
			case clearFile:
				empty := ""
				req.File = &empty
			}
			if cmd.Flags().Changed("volume") {
				req.Volume = &volume
			}
			if req.File == nil && req.Volume == nil {
				return errors.New("a file, --clear or --volume is required")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				cue, err := client.SoundCueUpdate(req)
				if err != nil {
					return err
				}
				file := cue.File
				if file == "" {
					file = "nothing"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cue %s/%s plays %s at volume %d\n", cue.Namespace, cue.Name, file, cue.Volume)
				return nil
			})
		},
	}
	assignCmd.Flags().IntVar(&volume, "volume", 0, "Cue volume between 0 and 100")
	assignCmd.Flags().BoolVar(&clearFile, "clear", false, "Remove the assigned file")

	cmd.AddCommand(listCmd, assignCmd)
	return cmd
}
