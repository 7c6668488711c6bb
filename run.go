package main

import (
	"encoding/json"
	"errors"
	"log"
	"os"

	"github.com/spf13/cobra"

	"billing-relay/internal/billing/application"
	"billing-relay/internal/billing/metrics"
	"billing-relay/internal/config"
)

var (
	runYear      int
	runMonth     int
	runScheduled bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once and print the result as JSON",
	Long: "Run the pipeline once, either for an explicit month (--year and --month) " +
		"or for the configured scheduled window (--scheduled).",
	RunE: runOnce,
}

func init() {
	runCmd.Flags().IntVar(&runYear, "year", 0, "Calendar year of the month to process")
	runCmd.Flags().IntVar(&runMonth, "month", 0, "Month to process (1-12)")
	runCmd.Flags().BoolVar(&runScheduled, "scheduled", false, "Use the scheduled window policy")
	runCmd.MarkFlagsMutuallyExclusive("scheduled", "year")
	runCmd.MarkFlagsMutuallyExclusive("scheduled", "month")
	runCmd.MarkFlagsRequiredTogether("year", "month")
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, _ []string) error {
	if !runScheduled && runYear == 0 {
		return errors.New("either --scheduled or --year and --month is required")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := log.New(os.Stderr, "", log.LstdFlags)

	rt, err := buildRuntime(cmd.Context(), cfg, logger, metrics.New(nil))
	if err != nil {
		return err
	}
	defer rt.Close()

	var result *application.RunResult
	if runScheduled {
		result, err = rt.service.RunScheduled(cmd.Context())
	} else {
		result, err = rt.service.RunMonth(cmd.Context(), runYear, runMonth)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if !result.Success {
		return errors.New(result.Message)
	}
	return nil
}
