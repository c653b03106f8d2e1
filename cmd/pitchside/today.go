package main

import (
	"context"
	"fmt"

	"github.com/hyperengineering/pitchside/internal/session"
	"github.com/hyperengineering/pitchside/internal/types"
	"github.com/spf13/cobra"
)

var todayCmd = &cobra.Command{
	Use:   "today <athlete-id>",
	Short: "Show an athlete's exercises scheduled for today",
	Long:  "List today's scheduled exercises for an athlete with the status of each session.",
	Args:  cobra.ExactArgs(1),
	RunE:  runToday,
}

func init() {
	todayCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

func runToday(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	athleteID, err := parseID(args[0], "athlete id")
	if err != nil {
		return err
	}

	cfg, db, err := loadStore()
	if err != nil {
		return err
	}
	defer db.Close()

	tracker := session.NewTracker(db, session.WithLocation(cfg.Schedule.Location()))
	items, err := tracker.Today(ctx, athleteID)
	if err != nil {
		return fmt.Errorf("list today's exercises: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"athlete_id": athleteID,
			"exercises":  items,
			"total":      len(items),
		})
	}

	if len(items) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Nothing scheduled today for athlete %d.\n", athleteID)
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "SLOT\tEXERCISE\tSTART\tEND\tSTATUS\tPROGRESS")
	for _, item := range items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			item.RoutineHasExerciseID,
			item.Exercise.Name,
			item.StartHour,
			orDash(item.EndHour),
			item.Status,
			formatProgress(item),
		)
	}
	w.Flush()

	return nil
}

// formatProgress renders concluded against target for the exercise's type.
// Before a session starts the target comes from the exercise definition.
func formatProgress(item types.TodayExercise) string {
	if item.Exercise.IDType == types.ExerciseTypeGoal {
		return fmt.Sprintf("goal %s/%s",
			formatInt(item.ConcludedGoal), formatInt(firstSet(item.Goal, item.Exercise.Goal)))
	}
	return fmt.Sprintf("sets %s/%s reps %s/%s",
		formatInt(item.ConcludedSets), formatInt(firstSet(item.Sets, item.Exercise.Sets)),
		formatInt(item.ConcludedReps), formatInt(firstSet(item.Reps, item.Exercise.Reps)))
}

func firstSet(values ...*int64) *int64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
