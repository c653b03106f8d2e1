package main

import (
	"context"
	"fmt"

	"github.com/hyperengineering/pitchside/internal/metrics"
	"github.com/spf13/cobra"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics <athlete-id>",
	Short: "Show an athlete's metric values",
	Long:  "Compute every metric recorded for an athlete, resolving aggregated metrics through their formulas.",
	Args:  cobra.ExactArgs(1),
	RunE:  runMetrics,
}

func init() {
	metricsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

func runMetrics(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	athleteID, err := parseID(args[0], "athlete id")
	if err != nil {
		return err
	}

	_, db, err := loadStore()
	if err != nil {
		return err
	}
	defer db.Close()

	values, err := metrics.NewEngine(db).Compute(ctx, athleteID)
	if err != nil {
		return fmt.Errorf("compute metrics: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"athlete_id": athleteID,
			"metrics":    values,
			"total":      len(values),
		})
	}

	if len(values) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No metrics recorded for athlete %d.\n", athleteID)
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "ID\tNAME\tAGGREGATED\tFORMULA\tVALUE")
	for _, m := range values {
		fmt.Fprintf(w, "%d\t%s\t%t\t%s\t%s\n",
			m.ID,
			m.Name,
			m.Aggregated,
			formatInt(m.IDFormula),
			formatFloat(m.Value),
		)
	}
	w.Flush()

	return nil
}
