package main

import (
	"context"
	"fmt"

	"github.com/hyperengineering/pitchside/internal/session"
	"github.com/spf13/cobra"
)

var closeStaleActor string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage exercise sessions",
}

var sessionsCloseStaleCmd = &cobra.Command{
	Use:   "close-stale",
	Short: "End sessions left in progress on previous days",
	Long: "Complete every IN PROGRESS session started before today so its slot can be\n" +
		"started again. This is the same cycle the stale session worker runs.",
	Args: cobra.NoArgs,
	RunE: runSessionsCloseStale,
}

func init() {
	sessionsCloseStaleCmd.Flags().StringVar(&closeStaleActor, "actor", "",
		"Actor recorded on closed sessions (defaults to the configured worker actor)")
	sessionsCloseStaleCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	sessionsCmd.AddCommand(sessionsCloseStaleCmd)
}

func runSessionsCloseStale(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, db, err := loadStore()
	if err != nil {
		return err
	}
	defer db.Close()

	actor := closeStaleActor
	if actor == "" {
		actor = cfg.Worker.StaleSessionActor
	}

	tracker := session.NewTracker(db, session.WithLocation(cfg.Schedule.Location()))
	closed, err := tracker.CloseStale(ctx, actor)
	if err != nil {
		return fmt.Errorf("close stale sessions: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"closed": closed,
			"actor":  actor,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Closed %d stale session(s) as %q.\n", closed, actor)
	return nil
}
