package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/cobra"

	"github.com/networkteam/sessionkit"
	"github.com/networkteam/sessionkit/config"
	"github.com/networkteam/sessionkit/recorder"
)

// Exit codes
const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

var (
	envFile  string
	mode     string
	headless bool
	verbose  bool
	trace    bool

	settings *config.Settings
	kit      *sessionkit.Kit
	logs     *recorder.LogHandler
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "sessionkit",
	Short:         "Acquire and check session cookies for the bll.by end-to-end tests",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logs = recorder.NewLogHandler(200, slog.LevelWarn)
		logger = slog.New(
			slogmulti.Fanout(
				slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}),
				logs,
			),
		)
		slog.SetDefault(logger)

		var err error
		settings, err = config.LoadSettings(envFile)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		if cmd.Flags().Changed("mode") {
			settings.AuthMode = mode
		}
		if cmd.Flags().Changed("headless") {
			settings.Headless = headless
		}
		if settings.AuthMode != config.AuthModeAPI && settings.AuthMode != config.AuthModeBrowser {
			return fmt.Errorf("--mode must be %q or %q", config.AuthModeAPI, config.AuthModeBrowser)
		}

		kit, err = sessionkit.NewWithOptions(sessionkit.Options{
			Settings: settings,
			Logs:     logs,
			Logger:   logger,
		})
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		dumpTrace(cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Load environment variables from this file if it exists")
	rootCmd.PersistentFlags().StringVar(&mode, "mode", config.AuthModeAPI, "Login mode: api or browser (overrides AUTH_MODE)")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", true, "Run the browser headless (overrides TEST_HEADLESS)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output")
	rootCmd.PersistentFlags().BoolVar(&trace, "trace", false, "Print recorded HTTP exchanges after the command")

	rootCmd.AddCommand(resolveCmd, checkCmd, loginCmd, bulkCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line args and maps the outcome to an exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	kit = nil
	traced = false

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	err := rootCmd.ExecuteContext(ctx)
	if kit != nil {
		if closeErr := kit.Close(); closeErr != nil {
			slog.Warn("Closing browser failed", slog.String("error", closeErr.Error()))
		}
	}

	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		fmt.Fprintln(stderr, "Interrupted")
		return exitInterrupted
	case err != nil:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		printRecentWarnings(stderr)
		dumpTrace(stderr)
		return exitFailure
	default:
		return exitOK
	}
}

func printRecentWarnings(w io.Writer) {
	if logs == nil {
		return
	}
	records := logs.Records(10)
	if len(records) == 0 {
		return
	}
	fmt.Fprintln(w, "\nRecent warnings:")
	for _, r := range records {
		fmt.Fprintf(w, "  %s %s %s\n", r.Time.Format("15:04:05"), r.Level, r.Message)
	}
}

var traced bool

func dumpTrace(w io.Writer) {
	if !trace || traced || kit == nil {
		return
	}
	traced = true
	exchanges := kit.Exchanges(50)
	if len(exchanges) == 0 {
		return
	}
	fmt.Fprintln(w, "\nHTTP exchanges:")
	_ = recorder.Dump(w, exchanges, recorder.DumpOptions{Highlight: true, MaxBodyLines: 20})
}
