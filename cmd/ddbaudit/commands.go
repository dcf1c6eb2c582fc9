package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/pankaj-dahiya-devops/ddb-audit/internal/config"
	"github.com/pankaj-dahiya-devops/ddb-audit/internal/engine"
	"github.com/pankaj-dahiya-devops/ddb-audit/internal/log"
	"github.com/pankaj-dahiya-devops/ddb-audit/internal/models"
	"github.com/pankaj-dahiya-devops/ddb-audit/internal/output"
	"github.com/pankaj-dahiya-devops/ddb-audit/internal/progress"
	"github.com/pankaj-dahiya-devops/ddb-audit/internal/providers/aws/common"
	"github.com/pankaj-dahiya-devops/ddb-audit/internal/providers/aws/dynamo"
	"github.com/pankaj-dahiya-devops/ddb-audit/internal/throttle"
	"github.com/pankaj-dahiya-devops/ddb-audit/internal/version"
)

// defaultConfigPath is where the optional scan configuration is looked up.
const defaultConfigPath = "./ddbaudit.yaml"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ddbaudit",
		Short: "DynamoDB provisioned-capacity utilization scanner",
	}
	root.AddCommand(newScanCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.Info())
		},
	}
}

func newScanCmd() *cobra.Command {
	var (
		profile    string
		regions    []string
		days       int
		threshold  float64
		period     int
		reportFmt  string
		summary    bool
		outputPath string
		noProgress bool
		colored    bool
		verbose    bool
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan provisioned DynamoDB tables for low utilization",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			// Flags beat the file; only explicitly set flags override.
			if cmd.Flags().Changed("days") {
				cfg.DaysBack = days
			}
			if cmd.Flags().Changed("threshold") {
				cfg.Threshold = threshold
			}
			if cmd.Flags().Changed("period") {
				cfg.PeriodSeconds = period
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			level := zapcore.WarnLevel
			if verbose {
				level = zapcore.DebugLevel
			}
			logger := log.New(level)
			defer func() { _ = logger.Sync() }()

			// Progress bars share the terminal with the report, so they
			// stay off when stdout carries machine-readable JSON.
			reporter := progress.Reporter(progress.Nop)
			if !noProgress && reportFmt != "json" {
				reporter = progress.NewTerminal()
			}

			provider := common.NewDefaultAWSClientProvider()
			collector := dynamo.NewDefaultCollector(
				throttle.New(cfg.MaxConcurrentRegions),
				throttle.New(cfg.MaxConcurrentTableChecks),
				logger,
				reporter,
			)
			eng := engine.NewDefaultEngine(provider, collector)

			report, err := eng.RunScan(cmd.Context(), engine.ScanOptions{
				Profile:       profile,
				Regions:       regions,
				ReportFormat:  engine.ReportFormat(reportFmt),
				DaysBack:      cfg.DaysBack,
				Threshold:     cfg.Threshold,
				PeriodSeconds: cfg.PeriodSeconds,
			})
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}

			if outputPath != "" {
				if err := writeReportToFile(outputPath, report); err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			if summary {
				output.RenderSummary(w, report)
				return nil
			}
			if reportFmt == "json" {
				return printJSON(w, report)
			}
			printTable(w, report, colored)
			return nil
		},
	}

	cmd.Flags().StringVar(&profile, "profile", "", "AWS profile name (default: uses environment / default profile)")
	cmd.Flags().StringSliceVar(&regions, "region", nil, "AWS region(s) to scan (default: all active regions)")
	cmd.Flags().IntVar(&days, "days", config.DefaultDaysBack, "Lookback window in days for metric queries")
	cmd.Flags().Float64Var(&threshold, "threshold", config.DefaultThreshold, "Low-utilization cutoff ratio in [0, 1]")
	cmd.Flags().IntVar(&period, "period", config.DefaultPeriodSeconds, "CloudWatch sample period in seconds")
	cmd.Flags().StringVar(&reportFmt, "report", "table", "Output format: json or table")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print compact summary: scan window, totals, flagged-table count")
	cmd.Flags().StringVar(&outputPath, "output", "", "Write full JSON report to this file path (in addition to stdout output)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	cmd.Flags().BoolVar(&colored, "color", false, "Colour utilization cells in table output")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Enable debug logging on stderr")
	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "Path to the scan configuration file")

	return cmd
}

// printJSON writes the report as indented JSON to w.
func printJSON(w io.Writer, report *models.ScanReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// writeReportToFile serialises report as indented JSON and writes it to path,
// creating or overwriting the file. It does not affect stdout output.
func writeReportToFile(path string, report *models.ScanReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report file %q: %w", path, err)
	}
	return nil
}

// printTable renders a one-line scan header followed by the flagged-table
// listing.
func printTable(w io.Writer, report *models.ScanReport, colored bool) {
	s := report.Summary
	fmt.Fprintf(
		w,
		"Profile: %-20s  Account: %-14s  Regions: %d  Tables: %d  Flagged: %d\n",
		report.Profile,
		report.AccountID,
		s.TotalRegions,
		s.TablesWithMetrics,
		s.LowUtilizationTables,
	)
	fmt.Fprintln(w)
	output.RenderTable(w, report, output.TableOptions{Colored: colored})
}
