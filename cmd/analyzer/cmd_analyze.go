package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/batch"
)

var (
	analyzeAll             bool
	analyzeMode            string
	analyzeMaxConcurrent   int
	analyzeContinueOnError bool
	analyzeTriggeredBy     string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [product-id...]",
	Short: "Analyze products once and print the run report",
	Long: `Runs one batch over the given products, or every active product with
--all, and prints the run report as JSON. Flags left unset fall back to the
batch section of the config file.`,
	RunE: runAnalyze,
}

var retryCmd = &cobra.Command{
	Use:   "retry <run-id>",
	Short: "Re-run the failed products of a finished run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRetry,
}

func init() {
	rootCmd.AddCommand(analyzeCmd, retryCmd)

	for _, c := range []*cobra.Command{analyzeCmd, retryCmd} {
		c.Flags().StringVar(&analyzeMode, "mode", "", "Batch mode (sequential|parallel)")
		c.Flags().IntVar(&analyzeMaxConcurrent, "max-concurrent", 0, "Products analyzed per parallel chunk")
		c.Flags().BoolVar(&analyzeContinueOnError, "continue-on-error", true, "Keep going after a failed product in sequential mode")
		c.Flags().StringVar(&analyzeTriggeredBy, "triggered-by", "cli", "Recorded as the run trigger")
	}
	analyzeCmd.Flags().BoolVar(&analyzeAll, "all", false, "Analyze every active product")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if !analyzeAll && len(args) == 0 {
		return errors.New("pass product ids or --all")
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	opts, err := cliOptions(cmd, a.batchDefaults)
	if err != nil {
		return err
	}
	var report *batch.Report
	if analyzeAll {
		report, err = a.batch.RunAll(ctx, opts)
	} else {
		report, err = a.batch.Run(ctx, args, opts)
	}
	return printReport(report, err)
}

func runRetry(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ro := batch.RetryOptions{TriggeredBy: analyzeTriggeredBy}
	if cmd.Flags().Changed("mode") {
		m, err := batch.ParseMode(analyzeMode)
		if err != nil {
			return err
		}
		ro.Mode = m
	}
	if cmd.Flags().Changed("max-concurrent") {
		ro.MaxConcurrent = &analyzeMaxConcurrent
	}
	if cmd.Flags().Changed("continue-on-error") {
		ro.ContinueOnError = &analyzeContinueOnError
	}
	report, err := a.batch.Retry(ctx, args[0], ro)
	return printReport(report, err)
}

// cliOptions applies only the flags the user set on top of defaults.
func cliOptions(cmd *cobra.Command, defaults batch.Options) (batch.Options, error) {
	opts := defaults
	if cmd.Flags().Changed("mode") {
		m, err := batch.ParseMode(analyzeMode)
		if err != nil {
			return batch.Options{}, err
		}
		opts.Mode = m
	}
	if cmd.Flags().Changed("max-concurrent") {
		opts.MaxConcurrent = analyzeMaxConcurrent
	}
	if cmd.Flags().Changed("continue-on-error") {
		opts.ContinueOnError = analyzeContinueOnError
	}
	opts.TriggeredBy = analyzeTriggeredBy
	return opts, nil
}

func printReport(report *batch.Report, err error) error {
	if err != nil {
		var abort *batch.RunAbortError
		if errors.As(err, &abort) {
			return fmt.Errorf("run %s aborted at %s (%s): %w", abort.RunID, abort.ProductID, abort.Kind, abort.Err)
		}
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

