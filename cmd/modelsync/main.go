package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/everstacklabs/modelsync/internal/config"
	"github.com/everstacklabs/modelsync/internal/metrics"
	"github.com/everstacklabs/modelsync/internal/pipeline"
	"github.com/everstacklabs/modelsync/internal/prompt"
	"github.com/everstacklabs/modelsync/internal/validate"
)

var cfgFile string

// exitError carries a non-zero exit code out of a command.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	rootCmd := &cobra.Command{
		Use:           "modelsync",
		Short:         "Keeps gateway model lists in sync with provider catalogs",
		Long:          "Fetches model lists from provider APIs and merges them into LibreChat-style configuration files.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./modelsync.yaml)")

	rootCmd.AddCommand(
		updateCmd(),
		fetchCmd(),
		diffCmd(),
		validateCmd(),
		convertCmd(),
		providersCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	var ee *exitError
	switch {
	case errors.As(err, &ee):
		os.Exit(ee.code)
	case err != nil:
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(pipeline.ExitUpdateFailed)
	}
}

func updateCmd() *cobra.Command {
	var (
		automated     bool
		dryRun        bool
		fromArtifacts bool
		providers     []string
	)
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Full pipeline: fetch → merge → validate → PR",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := setup()
			if err != nil {
				return err
			}
			defer closeLog()

			opts := []pipeline.Option{pipeline.WithMetrics(metrics.New())}
			if !automated {
				term, err := prompt.NewTerminal(nil, nil)
				if err != nil {
					return err
				}
				defer term.Close()
				opts = append(opts, pipeline.WithPrompter(term))
			}

			res, err := pipeline.New(cfg, opts...).Update(cmd.Context(), pipeline.UpdateOptions{
				FetchOptions: pipeline.FetchOptions{
					Providers:     providers,
					FromArtifacts: fromArtifacts,
				},
				DryRun: dryRun,
			})
			if err != nil {
				return err
			}

			switch res.ExitCode {
			case pipeline.ExitUpdateFailed:
				slog.Error("model update failed")
			case pipeline.ExitValidationFailed:
				slog.Error("validation failed")
				fmt.Fprintln(os.Stderr, validate.FormatResult(res.Validation))
			default:
				slog.Info("update complete", "pr", res.PRNumber)
			}
			if res.ExitCode != pipeline.ExitSuccess {
				return &exitError{code: res.ExitCode}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&automated, "automated", false, "Run without prompts, taking answers from config")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would change without writing")
	cmd.Flags().BoolVar(&fromArtifacts, "from-artifacts", false, "Use lists saved by fetch instead of the network")
	cmd.Flags().StringSliceVar(&providers, "providers", nil, "Providers to fetch (default: all configured)")

	return cmd
}

func fetchCmd() *cobra.Command {
	var (
		providers  []string
		printLists bool
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch provider lists and save them as artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := setup()
			if err != nil {
				return err
			}
			defer closeLog()

			p := pipeline.New(cfg, pipeline.WithMetrics(metrics.New()))
			cat, stats, specs, err := p.Fetch(cmd.Context(), pipeline.FetchOptions{Providers: providers})
			if err != nil {
				return err
			}
			if err := p.SaveArtifacts(cat, specs); err != nil {
				return err
			}

			if printLists {
				for _, name := range cat.Names() {
					fmt.Printf("%s:\n", name)
					for _, id := range cat[name] {
						fmt.Printf("  %s\n", id)
					}
				}
			}
			stats.Finish()
			fmt.Println(stats.Render())

			if len(cat) == 0 {
				return &exitError{code: pipeline.ExitUpdateFailed}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&providers, "providers", nil, "Providers to fetch (default: all configured)")
	cmd.Flags().BoolVar(&printLists, "print", false, "Print every fetched list")

	return cmd
}

func diffCmd() *cobra.Command {
	var (
		providers     []string
		fromArtifacts bool
		text          bool
	)
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show what would change (no writes)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := setup()
			if err != nil {
				return err
			}
			defer closeLog()

			_, err = pipeline.New(cfg).Diff(cmd.Context(), pipeline.FetchOptions{
				Providers:     providers,
				FromArtifacts: fromArtifacts,
			}, text)
			return err
		},
	}

	cmd.Flags().StringSliceVar(&providers, "providers", nil, "Providers to compare (default: all configured)")
	cmd.Flags().BoolVar(&fromArtifacts, "from-artifacts", false, "Use lists saved by fetch instead of the network")
	cmd.Flags().BoolVar(&text, "text", false, "Also print the line diff of each document")

	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [files...]",
		Short: "Validate configuration documents (CI check)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := setup()
			if err != nil {
				return err
			}
			defer closeLog()

			if len(args) > 0 {
				cfg.Documents = args
			}

			result := pipeline.New(cfg).Validate()
			fmt.Println(validate.FormatResult(result))

			if result.HasErrors() {
				return &exitError{code: pipeline.ExitValidationFailed}
			}
			return nil
		},
	}
}

func convertCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Rewrite flow-style lists in block style",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := setup()
			if err != nil {
				return err
			}
			defer closeLog()

			changed, err := pipeline.New(cfg).Convert(dryRun)
			for _, f := range changed {
				fmt.Println(f)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List documents that would change without writing")

	return cmd
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured providers and credential status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := setup()
			if err != nil {
				return err
			}
			defer closeLog()

			specs, err := cfg.ProviderSpecs(nil)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tENDPOINT\tFORMAT\tCREDENTIAL")
			for _, s := range specs {
				cred := "public"
				if s.CredentialEnv != "" {
					cred = s.CredentialEnv + " (missing)"
					if cfg.Credentials[s.ID] != "" {
						cred = s.CredentialEnv + " (set)"
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Format, cred)
			}
			return w.Flush()
		},
	}
}

// setup loads configuration and installs the default logger. The returned
// func closes the log file, if any.
func setup() (*config.Config, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	var out io.Writer = os.Stderr
	closeLog := func() {}
	if cfg.LogFile != "" {
		path := strings.ReplaceAll(cfg.LogFile, "{date}", time.Now().Format("20060102"))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		out = io.MultiWriter(os.Stderr, f)
		closeLog = func() { f.Close() }
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})))
	return cfg, closeLog, nil
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
