package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"medannotate/internal/assignment"
	"medannotate/internal/directory"
)

func newProgressCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show completion counters per track",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(store *directory.Store, mgr *assignment.Manager) error {
				summary, err := mgr.Summary(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, summary)
				}
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				locked := make(map[string]directory.TrackStats, len(stats))
				for _, s := range stats {
					locked[string(s.Track)] = s
				}

				rows := make([][]string, 0, len(summary))
				for _, p := range summary {
					s := locked[string(p.Track)]
					rows = append(rows, []string{
						string(p.Track),
						p.Counter,
						strconv.Itoa(s.Locked),
						strconv.Itoa(s.InProgress),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Track", "Completed", "Locked", "Resumable"},
					rows,
					1, 2, 3,
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON instead of a table")
	return cmd
}
