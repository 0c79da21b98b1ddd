package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/networkteam/sessionkit/bulk"
	"github.com/networkteam/sessionkit/config"
	"github.com/networkteam/sessionkit/report"
)

var (
	bulkCSV     string
	bulkThreads int
	bulkRelogin bool
	bulkRate    float64
	bulkReport  string
)

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Log in many accounts concurrently and cache their session cookies",
	Long: `Log in every account of a CSV file (header username,password[,role]) or, without
a CSV file, every user of the auth config. Cookies are cached per username in COOKIE_DIR.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		jobs := kit.BulkJobs()
		if bulkCSV != "" {
			creds, err := config.LoadCSVCredentials(bulkCSV)
			if err != nil {
				return err
			}
			jobs = bulk.Jobs(creds, kit.LoginURL())
		}
		if len(jobs) == 0 {
			return fmt.Errorf("no accounts configured, set CREDENTIALS_CSV or --csv")
		}

		runner := kit.BulkRunner(bulk.Options{
			Threads: bulkThreads,
			Rate:    bulkRate,
			Relogin: bulkRelogin,
		})
		defer runner.Close()

		progressCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		progress := runner.Subscribe(progressCtx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for p := range progress {
				fmt.Fprintf(out, "[%d/%d] %-30s %-10s %s\n", p.Done, p.Total, p.Outcome.Username, p.Outcome.Status, p.Outcome.Message)
			}
		}()

		summary, runErr := runner.Run(ctx, jobs)
		cancel()
		<-done

		fmt.Fprintf(out, "\n%d succeeded, %d skipped, %d failed, %d not started in %s\n",
			summary.Count(bulk.StatusSucceeded),
			summary.Count(bulk.StatusSkipped),
			summary.Count(bulk.StatusFailed),
			summary.Count(bulk.StatusNotStarted),
			summary.Duration().Round(time.Millisecond),
		)
		for _, o := range summary.Failed() {
			fmt.Fprintf(out, "  %s: %s\n", o.Username, o.Message)
		}

		if bulkReport != "" {
			err := report.WriteFile(context.WithoutCancel(ctx), bulkReport, report.Report{
				Summary:   summary,
				Exchanges: kit.Exchanges(50),
				Logs:      kit.Logs(100),
			})
			if err != nil {
				logger.Warn("Could not write report", slog.String("path", bulkReport), slog.String("error", err.Error()))
			} else {
				fmt.Fprintf(out, "Report written to %s\n", bulkReport)
			}
		}

		if runErr != nil {
			return runErr
		}
		if !summary.OK() {
			return fmt.Errorf("%d of %d logins failed", len(summary.Failed()), len(summary.Outcomes))
		}
		return nil
	},
}

func init() {
	bulkCmd.Flags().StringVar(&bulkCSV, "csv", "", "CSV file with accounts (overrides CREDENTIALS_CSV)")
	bulkCmd.Flags().IntVarP(&bulkThreads, "threads", "t", 4, "Concurrent logins")
	bulkCmd.Flags().BoolVar(&bulkRelogin, "relogin", false, "Log in even if a cached session cookie exists")
	bulkCmd.Flags().Float64Var(&bulkRate, "rate", 0, "Maximum login starts per second (0 for no limit)")
	bulkCmd.Flags().StringVar(&bulkReport, "report", "", "Write an HTML report to this file")
}
