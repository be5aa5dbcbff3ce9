package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iho/memledger/internal/adapter/repository/memory"
	"github.com/iho/memledger/internal/adapter/shell"
	"github.com/iho/memledger/internal/domain"
	"github.com/iho/memledger/internal/infrastructure/config"
	"github.com/iho/memledger/internal/infrastructure/logger"
	"github.com/iho/memledger/internal/infrastructure/metrics"
	"github.com/iho/memledger/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// app is the wired ledger shared by every command.
type app struct {
	cfg         *config.Config
	logger      zerolog.Logger
	registry    *prometheus.Registry
	bank        *usecase.BankUseCase
	entries     *usecase.EntryUseCase
	consistency *usecase.LedgerUseCase
	reconciler  *usecase.ReconciliationUseCase
}

func newApp(cfg *config.Config, logs io.Writer) *app {
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: logs,
	})

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	ledger := memory.NewLedger(memory.NewULIDGenerator())
	journal := memory.NewJournal()

	return &app{
		cfg:      cfg,
		logger:   log,
		registry: registry,
		bank: usecase.NewBankUseCase(ledger, journal,
			usecase.WithObserver(m),
			usecase.WithLogger(log.With().Str("component", "engine").Logger()),
		),
		entries:     usecase.NewEntryUseCase(ledger, journal),
		consistency: usecase.NewLedgerUseCase(ledger, journal),
		reconciler:  usecase.NewReconciliationUseCase(ledger, journal),
	}
}

// flushMetrics writes the registry to the configured textfile, if any.
func (a *app) flushMetrics() error {
	if a.cfg.MetricsFile == "" {
		return nil
	}
	return metrics.WriteTextfile(a.cfg.MetricsFile, a.registry)
}

type globalFlags struct {
	logLevel    string
	logFormat   string
	scale       int32
	metricsFile string
}

// loadConfig reads the environment and applies explicitly set flags on top.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	pf := cmd.Flags()
	if pf.Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if pf.Changed("log-format") {
		cfg.LogFormat = flags.logFormat
	}
	if pf.Changed("scale") {
		cfg.AmountScale = flags.scale
	}
	if pf.Changed("metrics-file") {
		cfg.MetricsFile = flags.metricsFile
	}

	if err := domain.ValidateScale(cfg.AmountScale); err != nil {
		return nil, err
	}

	return cfg, nil
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	flags := &globalFlags{}

	shellCmd := newShellCmd(flags, in, out, errOut)

	rootCmd := &cobra.Command{
		Use:           "memledger",
		Short:         "In-memory bank ledger",
		Long:          `An in-memory bank ledger with an interactive shell and a concurrent workload simulator.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          shellCmd.RunE,
	}
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "console", "Log format (json, console)")
	rootCmd.PersistentFlags().Int32Var(&flags.scale, "scale", 2, "Decimal places of amounts")
	rootCmd.PersistentFlags().StringVar(&flags.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")

	rootCmd.AddCommand(shellCmd, newSimulateCmd(flags, out, errOut))

	return rootCmd
}

func newShellCmd(flags *globalFlags, in io.Reader, out, errOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			a := newApp(cfg, errOut)

			bank := shell.NewBankApplication(
				shell.UseCases{
					Bank:           a.bank,
					Entries:        a.entries,
					Consistency:    a.consistency,
					Reconciliation: a.reconciler,
				},
				out,
				a.logger.With().Str("component", "shell").Logger(),
				shell.Config{
					Scale:        cfg.AmountScale,
					HistoryLimit: cfg.HistoryLimit,
					MetricsFile:  cfg.MetricsFile,
					Gatherer:     a.registry,
				},
			)

			runner := shell.NewRunner(out,
				shell.WithPrompt(cfg.Prompt),
				shell.WithRunnerLogger(a.logger),
			)

			if err := runner.Run(cmd.Context(), bank, in); err != nil {
				return err
			}

			a.logger.Info().Msg("shell stopped")

			return a.flushMetrics()
		},
	}
}

type simulateOptions struct {
	accounts int
	workers  int
	ops      int
	seed     int64
	initial  string
}

func newSimulateCmd(flags *globalFlags, out, errOut io.Writer) *cobra.Command {
	opts := simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a random concurrent workload and verify the ledger afterwards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			a := newApp(cfg, errOut)

			summary, err := simulate(cmd.Context(), a, opts)
			if summary != nil {
				summary.print(out, cfg.AmountScale)
			}
			if err != nil {
				return err
			}

			return a.flushMetrics()
		},
	}

	cmd.Flags().IntVar(&opts.accounts, "accounts", 10, "Number of accounts")
	cmd.Flags().IntVar(&opts.workers, "workers", 8, "Number of concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 1000, "Operations per worker")
	cmd.Flags().Int64Var(&opts.seed, "seed", 1, "Random seed")
	cmd.Flags().StringVar(&opts.initial, "initial", "1000", "Initial balance of every account")

	return cmd
}

type simulationSummary struct {
	elapsed    time.Duration
	applied    int
	rejected   map[domain.ErrorKind]int
	report     *usecase.ConsistencyReport
	reconciled int
}

func (s *simulationSummary) print(w io.Writer, scale int32) {
	fmt.Fprintf(w, "applied=%d elapsed=%s\n", s.applied, s.elapsed.Round(time.Millisecond))

	kinds := make([]string, 0, len(s.rejected))
	for kind := range s.rejected {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	for _, kind := range kinds {
		fmt.Fprintf(w, "rejected %s=%d\n", kind, s.rejected[domain.ErrorKind(kind)])
	}

	if s.report == nil {
		return
	}

	fmt.Fprintf(w, "accounts=%d reconciled=%d total=%s credits=%s debits=%s consistent=%t\n",
		s.report.Accounts,
		s.reconciled,
		domain.FormatAmount(s.report.TotalBalance, scale),
		domain.FormatAmount(s.report.TotalCredits, scale),
		domain.FormatAmount(s.report.TotalDebits, scale),
		s.report.Consistent,
	)
}

// simulate opens funded accounts, runs random operations from opts.workers goroutines
// and checks consistency once they finish.
func simulate(ctx context.Context, a *app, opts simulateOptions) (*simulationSummary, error) {
	if opts.accounts < 2 || opts.workers < 1 || opts.ops < 0 {
		return nil, fmt.Errorf("invalid simulation size: accounts=%d workers=%d ops=%d", opts.accounts, opts.workers, opts.ops)
	}

	initial, err := domain.ParseAmount(opts.initial, a.cfg.AmountScale)
	if err != nil {
		return nil, fmt.Errorf("initial balance: %w", err)
	}
	if initial < 0 {
		return nil, fmt.Errorf("initial balance: %w", domain.ErrInvalidAmount)
	}

	ids := make([]string, opts.accounts)
	for i := range ids {
		acc, err := a.bank.CreateAccount(ctx, fmt.Sprintf("sim-%d", i))
		if err != nil {
			return nil, err
		}
		if initial > 0 {
			if _, err := a.bank.Deposit(ctx, acc.ID, initial); err != nil {
				return nil, err
			}
		}
		ids[i] = acc.ID
	}

	maxAmount := initial / 4
	if maxAmount < 1 {
		maxAmount = 1
	}

	summary := &simulationSummary{rejected: make(map[domain.ErrorKind]int)}

	var mu sync.Mutex
	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()

		if err == nil {
			summary.applied++
			return
		}
		summary.rejected[domain.KindOf(err)]++
	}

	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for w := range opts.workers {
		rng := rand.New(rand.NewSource(opts.seed + int64(w)))

		g.Go(func() error {
			for range opts.ops {
				if err := gctx.Err(); err != nil {
					return err
				}

				from := ids[rng.Intn(len(ids))]
				to := ids[rng.Intn(len(ids))]
				amount := rng.Int63n(maxAmount) + 1

				var err error
				switch rng.Intn(10) {
				case 0, 1:
					_, err = a.bank.Deposit(gctx, from, amount)
				case 2, 3:
					_, err = a.bank.Withdraw(gctx, from, amount)
				default:
					_, err = a.bank.Transfer(gctx, from, to, amount)
				}

				if errors.Is(err, context.Canceled) {
					return err
				}
				record(err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}

	summary.elapsed = time.Since(start)

	report, err := a.consistency.CheckConsistency(ctx)
	summary.report = report
	if err != nil {
		return summary, err
	}

	reconciliation, err := a.reconciler.GenerateReconciliationReport(ctx)
	if err != nil {
		return summary, err
	}
	summary.reconciled = reconciliation.ReconciledAccounts
	if n := len(reconciliation.Discrepancies); n > 0 {
		err = fmt.Errorf("%w: %d accounts do not match their journal", usecase.ErrInconsistentLedger, n)
	}

	a.logger.Info().
		Int("accounts", opts.accounts).
		Int("workers", opts.workers).
		Int("applied", summary.applied).
		Int("reconciled", summary.reconciled).
		Dur("elapsed", summary.elapsed).
		Bool("consistent", report != nil && report.Consistent).
		Msg("simulation finished")

	return summary, err
}
