package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"medannotate/internal/config"
	"medannotate/internal/directory"
	"medannotate/internal/lease"
)

func newReclaimCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "reclaim",
		Short: "Release claims whose heartbeat has gone stale",
		Long: "Reclaim releases every claim idle for longer than the configured lease " +
			"timeout, or --older-than when given. Released expert items restart " +
			"from the first keyword for the next annotator.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *directory.Store) error {
				timeout := cfg.LeaseTimeout()
				if olderThan > 0 {
					timeout = olderThan
				}
				if timeout <= 0 {
					return fmt.Errorf("lease expiry is disabled; pass --older-than to reclaim manually")
				}
				logger, err := cliLogger(cfg)
				if err != nil {
					return err
				}
				reclaimer := lease.New(store, logger, nil, timeout, 0, cfg.ReclaimLockPath())
				reclaimed, err := reclaimer.RunOnce(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(reclaimed) == 0 {
					fmt.Fprintln(out, "No stale claims")
					return nil
				}
				rows := make([][]string, 0, len(reclaimed))
				for _, claim := range reclaimed {
					rows = append(rows, []string{
						strconv.FormatInt(claim.ItemID, 10),
						string(claim.Track),
						claim.LockedBy,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Item", "Track", "Released from"},
					rows,
					0,
				))
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Override the lease timeout (e.g. 30m)")
	return cmd
}
