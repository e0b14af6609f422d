// Command spfaudit validates and analyzes SPF records, either for a
// list of domains on the command line or as an HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/synqronlabs/spfaudit/dns"
	"github.com/synqronlabs/spfaudit/server"
	"github.com/synqronlabs/spfaudit/spf"
)

var (
	logLevel    string
	nameservers []string
	dnssec      bool
	deadline    time.Duration
	concurrency int
	asMsgpack   bool
	pretty      bool
)

var rootCmd = &cobra.Command{
	Use:   "spfaudit",
	Short: "SPF record validation and analysis",
	Long: `spfaudit expands a domain's SPF record through its include and
redirect chain, checks it against the 10 DNS lookup limit, and reports
syntax and policy issues.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: parseLogLevel(logLevel),
		})))
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <domain> [domain...]",
	Short: "Analyze the SPF record of one or more domains",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAnalyze,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve SPF analysis over HTTP",
	RunE:  runServe,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	resolver := dns.NewResolver(dns.ResolverConfig{
		Nameservers: nameservers,
		DNSSEC:      dnssec,
	})

	analyzer := spf.New(spf.Config{
		Resolver: resolver,
		Deadline: deadline,
	})

	ctx := cmd.Context()
	reports, err := analyzer.AnalyzeAll(ctx, args, int64(concurrency))
	if err != nil && !errors.Is(err, spf.ErrInvalidDomain) {
		return err
	}

	var failed bool
	for i, report := range reports {
		if report == nil {
			fmt.Fprintf(os.Stderr, "spfaudit: %s: invalid domain\n", args[i])
			failed = true
			continue
		}
		if err := writeReport(os.Stdout, report); err != nil {
			return err
		}
		if !report.IsValid {
			failed = true
		}
	}
	if failed {
		// Nonzero exit for scripting without hiding the reports.
		return errors.New("one or more domains failed validation")
	}
	return nil
}

func writeReport(w *os.File, report *spf.ValidationReport) error {
	if asMsgpack {
		body, err := report.ToMessagePack()
		if err != nil {
			return err
		}
		_, err = w.Write(body)
		return err
	}

	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(report)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := server.LoadConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))

	srv, err := server.New(cfg, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	analyzeCmd.Flags().StringSliceVar(&nameservers, "nameserver", nil, "nameserver address (host:port), repeatable")
	analyzeCmd.Flags().BoolVar(&dnssec, "dnssec", false, "request DNSSEC validation")
	analyzeCmd.Flags().DurationVar(&deadline, "deadline", 5*time.Second, "per-domain analysis deadline")
	analyzeCmd.Flags().IntVar(&concurrency, "concurrency", 4, "domains analyzed in parallel")
	analyzeCmd.Flags().BoolVar(&asMsgpack, "msgpack", false, "emit MessagePack instead of JSON")
	analyzeCmd.Flags().BoolVar(&pretty, "pretty", false, "indent JSON output")

	rootCmd.AddCommand(analyzeCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
