package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"medannotate/internal/config"
	"medannotate/internal/directory"
	"medannotate/internal/workitem"
)

func newItemsCommand(ctx *commandContext) *cobra.Command {
	itemsCmd := &cobra.Command{
		Use:   "items",
		Short: "Inspect and manage work items",
	}
	itemsCmd.AddCommand(newItemsListCommand(ctx))
	itemsCmd.AddCommand(newItemsAddCommand(ctx))
	itemsCmd.AddCommand(newItemsShowCommand(ctx))
	itemsCmd.AddCommand(newItemsReleaseCommand(ctx))
	return itemsCmd
}

func newItemsListCommand(ctx *commandContext) *cobra.Command {
	var (
		trackFlag string
		locked    bool
		completed bool
		limit     int
		jsonOut   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work items with their per-track state",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := directory.ListFilter{Locked: locked, Completed: completed, Limit: limit}
			if strings.TrimSpace(trackFlag) != "" {
				track, err := workitem.ParseTrack(trackFlag)
				if err != nil {
					return err
				}
				filter.Track = track
			} else if locked || completed {
				return fmt.Errorf("--locked and --completed require --track")
			}

			return ctx.withStore(func(_ *config.Config, store *directory.Store) error {
				items, err := store.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, items)
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No work items")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						item.Specialty,
						item.BodyRegion,
						item.Modality,
						strconv.Itoa(len(item.Keywords)),
						describeTrack(item.Track(workitem.TrackExpert)),
						describeTrack(item.Track(workitem.TrackTrainee)),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Specialty", "Region", "Modality", "Keywords", "Expert", "Trainee"},
					rows,
					0, 4,
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&trackFlag, "track", "", "Filter by track state (expert or trainee)")
	cmd.Flags().BoolVar(&locked, "locked", false, "Only items currently claimed on --track")
	cmd.Flags().BoolVar(&completed, "completed", false, "Only items completed on --track")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of items to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON instead of a table")
	return cmd
}

func describeTrack(state *workitem.TrackState) string {
	switch {
	case state.Completed:
		return "completed"
	case state.Locked():
		if state.Progress.Started() {
			return fmt.Sprintf("locked by %s (%d/%d)", state.LockedBy, resolvedCount(state), len(state.Progress))
		}
		return "locked by " + state.LockedBy
	case state.Progress.Started():
		return fmt.Sprintf("resumable (%d/%d)", resolvedCount(state), len(state.Progress))
	default:
		return "open"
	}
}

func resolvedCount(state *workitem.TrackState) int {
	n := 0
	for _, s := range state.Progress {
		if s.Resolved() {
			n++
		}
	}
	return n
}

func newItemsAddCommand(ctx *commandContext) *cobra.Command {
	var (
		item     workitem.WorkItem
		keywords []string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a work item to the directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			item.Keywords = cleanKeywords(keywords)
			return ctx.withStore(func(_ *config.Config, store *directory.Store) error {
				added, err := store.AddItem(cmd.Context(), &item)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added item %d (%s, %d keywords)\n", added.ID, added.Specialty, len(added.Keywords))
				return nil
			})
		},
	}
	flags := cmd.Flags()
	flags.Int64Var(&item.ID, "id", 0, "External item identifier (assigned automatically when omitted)")
	flags.StringVar(&item.Specialty, "specialty", "", "Medical specialty the item belongs to")
	flags.StringVar(&item.BodyRegion, "region", "", "Body region shown in the image")
	flags.StringVar(&item.Modality, "modality", "", "Imaging modality")
	flags.StringVar(&item.ImageURL, "image-url", "", "Location of the image to annotate")
	flags.StringVar(&item.ImageDescription, "description", "", "Free-text image description")
	flags.StringVar(&item.Sex, "sex", "", "Patient sex")
	flags.StringVar(&item.Age, "age", "", "Patient age")
	flags.StringVar(&item.SkinTone, "skin-tone", "", "Patient skin tone")
	flags.StringVar(&item.Diagnosis, "diagnosis", "", "Diagnosis label")
	flags.StringVar(&item.TreatmentName, "treatment", "", "Treatment name")
	flags.StringSliceVar(&keywords, "keyword", nil, "Keyword to annotate (repeatable, order preserved)")
	_ = cmd.MarkFlagRequired("specialty")
	return cmd
}

func cleanKeywords(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func newItemsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one work item and its annotation records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *directory.Store) error {
				item, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("item %d: %w", id, workitem.ErrNotFound)
				}
				records, err := store.ListRecords(cmd.Context(), id, "")
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, map[string]any{"item": item, "records": records})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Item %d\n", item.ID)
				fmt.Fprintf(out, "  Specialty: %s\n", item.Specialty)
				fmt.Fprintf(out, "  Region:    %s\n", item.BodyRegion)
				fmt.Fprintf(out, "  Modality:  %s\n", item.Modality)
				if item.ImageURL != "" {
					fmt.Fprintf(out, "  Image:     %s\n", item.ImageURL)
				}
				fmt.Fprintf(out, "  Keywords:  %s\n", strings.Join(item.Keywords, ", "))
				for _, track := range workitem.Tracks {
					state := item.Track(track)
					fmt.Fprintf(out, "  %-8s   %s\n", string(track)+":", describeTrack(state))
					if state.Progress.Started() {
						fmt.Fprintf(out, "             progress %s\n", formatStates(state))
					}
				}
				if len(records) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					index := ""
					if rec.KeywordIndex != nil {
						index = strconv.Itoa(*rec.KeywordIndex)
					}
					rows = append(rows, []string{
						rec.CreatedAt.Local().Format(time.DateTime),
						string(rec.Track),
						rec.AnnotatorID,
						index,
						rec.Keyword,
						rec.Action,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Recorded", "Track", "Annotator", "#", "Keyword", "Action"},
					rows,
					3,
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON instead of text")
	return cmd
}

func formatStates(state *workitem.TrackState) string {
	parts := make([]string, len(state.Progress))
	for i, s := range state.Progress {
		parts[i] = s.String()
	}
	return strings.Join(parts, " ")
}

func newItemsReleaseCommand(ctx *commandContext) *cobra.Command {
	var trackFlag string

	cmd := &cobra.Command{
		Use:   "release <id>",
		Short: "Release a claim without completing the item",
		Long: "Release clears the lock on the given track. Saved expert progress is " +
			"kept so the next annotator resumes where the last one stopped.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			track, err := workitem.ParseTrack(trackFlag)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *directory.Store) error {
				if err := store.ReleaseLock(cmd.Context(), id, track); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Released item %d on %s track\n", id, track)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&trackFlag, "track", "expert", "Track to release (expert or trainee)")
	return cmd
}

func parseItemID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", value)
	}
	return id, nil
}
