package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"medannotate/internal/config"
	"medannotate/internal/directory"
	"medannotate/internal/preflight"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Run preflight checks and inspect the directory database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *directory.Store) error {
				results := preflight.RunAll(cmd.Context(), cfg)
				results = append(results, preflight.CheckDatabase(cmd.Context(), store))
				health, err := store.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}

				if jsonOut {
					if err := writeJSON(cmd, map[string]any{"checks": results, "database": health}); err != nil {
						return err
					}
				} else {
					renderHealth(cmd, results, health)
				}
				if len(preflight.Failed(results)) > 0 || !health.Healthy() {
					return errors.New("health checks failed")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON instead of text")
	return cmd
}

func renderHealth(cmd *cobra.Command, results []preflight.Result, health directory.DatabaseHealth) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	fmt.Fprintln(out, renderHeading("Preflight", colorize))
	for _, r := range results {
		fmt.Fprintln(out, renderCheckLine(r.Name, passFail(r.Passed), r.Detail, colorize))
	}

	fmt.Fprintln(out, renderHeading("Database", colorize))
	fmt.Fprintln(out, renderCheckLine("Path", outcomeInfo, health.DBPath, colorize))
	fmt.Fprintln(out, renderCheckLine("Exists", passFail(health.DatabaseExists), yesNo(health.DatabaseExists), colorize))
	fmt.Fprintln(out, renderCheckLine("Readable", passFail(health.DatabaseReadable), yesNo(health.DatabaseReadable), colorize))
	fmt.Fprintln(out, renderCheckLine("Schema version",
		passFail(health.SchemaVersion == health.ExpectedVersion),
		fmt.Sprintf("%d (expected %d)", health.SchemaVersion, health.ExpectedVersion), colorize))
	missing := "none"
	if len(health.MissingTables) > 0 {
		missing = strings.Join(health.MissingTables, ", ")
	}
	fmt.Fprintln(out, renderCheckLine("Missing tables", passFail(len(health.MissingTables) == 0), missing, colorize))
	fmt.Fprintln(out, renderCheckLine("Integrity", passFail(health.IntegrityCheck), yesNo(health.IntegrityCheck), colorize))
	fmt.Fprintln(out, renderCheckLine("Total items", outcomeInfo, fmt.Sprint(health.TotalItems), colorize))
	if health.Error != "" {
		fmt.Fprintln(out, renderCheckLine("Error", outcomeFail, health.Error, colorize))
	}
}
