package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/memledger/internal/domain"
	"github.com/iho/memledger/internal/infrastructure/metrics"
	"github.com/iho/memledger/internal/usecase"
)

var _ Interactive = (*BankApplication)(nil)

// Config holds BankApplication settings.
type Config struct {
	// Scale is the number of decimal places amounts are typed and printed with.
	Scale int32
	// HistoryLimit is the default page size of the history and accounts commands.
	HistoryLimit int
	// MetricsFile, when set together with Gatherer, is rewritten on every Idle call.
	MetricsFile string
	Gatherer    prometheus.Gatherer
}

// UseCases holds the use cases the shell dispatches to.
type UseCases struct {
	Bank           *usecase.BankUseCase
	Entries        *usecase.EntryUseCase
	Consistency    *usecase.LedgerUseCase
	Reconciliation *usecase.ReconciliationUseCase
}

// BankApplication is the interactive front end of the ledger.
type BankApplication struct {
	bank        *usecase.BankUseCase
	entries     *usecase.EntryUseCase
	consistency *usecase.LedgerUseCase
	reconciler  *usecase.ReconciliationUseCase
	out         io.Writer
	logger      zerolog.Logger
	cfg         Config
}

// NewBankApplication creates a new BankApplication writing command output to out.
func NewBankApplication(uc UseCases, out io.Writer, logger zerolog.Logger, cfg Config) *BankApplication {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = usecase.DefaultHistoryLimit
	}

	return &BankApplication{
		bank:        uc.Bank,
		entries:     uc.Entries,
		consistency: uc.Consistency,
		reconciler:  uc.Reconciliation,
		out:         out,
		logger:      logger,
		cfg:         cfg,
	}
}

// Init validates the configuration and logs startup.
func (a *BankApplication) Init(ctx context.Context) error {
	if err := domain.ValidateScale(a.cfg.Scale); err != nil {
		return err
	}

	a.logger.Info().
		Int32("scale", a.cfg.Scale).
		Str("metrics_file", a.cfg.MetricsFile).
		Msg("shell started")

	return nil
}

// Idle exports metrics to the textfile when one is configured.
func (a *BankApplication) Idle(ctx context.Context) error {
	if a.cfg.MetricsFile == "" || a.cfg.Gatherer == nil {
		return nil
	}

	if err := metrics.WriteTextfile(a.cfg.MetricsFile, a.cfg.Gatherer); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}

	return nil
}

// Execute runs one command line. Argument and flag problems are returned as
// *UsageError; ledger failures are returned as the engine reported them.
func (a *BankApplication) Execute(ctx context.Context, args []string) error {
	var runErr error

	root := a.commands(&runErr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if runErr != nil {
		return runErr
	}
	if err != nil {
		return &UsageError{Err: err}
	}

	return nil
}

// commands builds a fresh command tree so flag values never leak between lines.
// Errors returned by command bodies are stored in runErr to tell them apart from
// cobra's own argument errors.
func (a *BankApplication) commands(runErr *error) *cobra.Command {
	var run runWrapper = func(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			*runErr = fn(cmd, args)
			return *runErr
		}
	}

	root := &cobra.Command{
		Use:           "bank",
		Short:         "In-memory bank ledger",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(a.out)
	root.SetErr(a.out)

	root.AddCommand(
		&cobra.Command{
			Use:   "create <owner...>",
			Short: "Open a new account",
			Args:  cobra.MinimumNArgs(1),
			RunE:  run(a.create),
		},
		&cobra.Command{
			Use:                "deposit <id> <amount>",
			Short:              "Credit an account",
			Args:               cobra.ExactArgs(2),
			DisableFlagParsing: true,
			RunE:               run(a.deposit),
		},
		&cobra.Command{
			Use:                "withdraw <id> <amount>",
			Short:              "Debit an account",
			Args:               cobra.ExactArgs(2),
			DisableFlagParsing: true,
			RunE:               run(a.withdraw),
		},
		&cobra.Command{
			Use:                "transfer <from> <to> <amount>",
			Short:              "Move funds between two accounts",
			Args:               cobra.ExactArgs(3),
			DisableFlagParsing: true,
			RunE:               run(a.transfer),
		},
		&cobra.Command{
			Use:   "balance <id>",
			Short: "Print an account balance",
			Args:  cobra.ExactArgs(1),
			RunE:  run(a.balance),
		},
		&cobra.Command{
			Use:   "close <id>",
			Short: "Close an empty account",
			Args:  cobra.ExactArgs(1),
			RunE:  run(a.close),
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Print account details",
			Args:  cobra.ExactArgs(1),
			RunE:  run(a.show),
		},
		a.accountsCmd(run),
		a.historyCmd(run),
		&cobra.Command{
			Use:   "check",
			Short: "Verify that balances reconcile with the journal",
			Args:  cobra.NoArgs,
			RunE:  run(a.check),
		},
		&cobra.Command{
			Use:   "reconcile [id]",
			Short: "Replay the journal and compare it with recorded balances",
			Args:  cobra.MaximumNArgs(1),
			RunE:  run(a.reconcile),
		},
	)

	return root
}

type runWrapper func(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error

func (a *BankApplication) accountsCmd(run runWrapper) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List accounts ordered by id",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, _ []string) error {
			accounts, err := a.bank.ListAccounts(cmd.Context(), usecase.ListAccountsInput{
				Limit:  limit,
				Offset: offset,
			})
			if err != nil {
				return err
			}

			for _, acc := range accounts {
				fmt.Fprintf(a.out, "%s %s %s %s\n",
					acc.ID, acc.Status, a.amount(acc.Balance), acc.Owner)
			}
			fmt.Fprintf(a.out, "ok count=%d\n", len(accounts))

			return nil
		}),
	}

	cmd.Flags().IntVar(&limit, "limit", a.cfg.HistoryLimit, "Maximum number of accounts")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of accounts to skip")

	return cmd
}

func (a *BankApplication) historyCmd(run runWrapper) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "List journal entries of an account",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(cmd *cobra.Command, args []string) error {
			entries, err := a.entries.History(cmd.Context(), usecase.HistoryInput{
				AccountID: args[0],
				Limit:     limit,
				Offset:    offset,
			})
			if err != nil {
				return err
			}

			for _, e := range entries {
				line := fmt.Sprintf("seq=%d op=%s amount=%s balance=%s",
					e.Sequence, e.Operation, a.signedAmount(e.Amount), a.amount(e.CurrentBalance))
				if e.CounterpartyID != "" {
					line += " counterparty=" + e.CounterpartyID
				}
				fmt.Fprintln(a.out, line)
			}
			fmt.Fprintf(a.out, "ok count=%d\n", len(entries))

			return nil
		}),
	}

	cmd.Flags().IntVar(&limit, "limit", a.cfg.HistoryLimit, "Maximum number of entries")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of entries to skip")

	return cmd
}

func (a *BankApplication) create(cmd *cobra.Command, args []string) error {
	owner := strings.Join(args, " ")
	if err := domain.ValidateOwner(owner); err != nil {
		return &UsageError{Err: err}
	}

	acc, err := a.bank.CreateAccount(cmd.Context(), owner)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "ok id=%s owner=%q\n", acc.ID, acc.Owner)

	return nil
}

func (a *BankApplication) deposit(cmd *cobra.Command, args []string) error {
	amount, err := a.parseAmount(args[1])
	if err != nil {
		return err
	}

	res, err := a.bank.Deposit(cmd.Context(), args[0], amount)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, a.formatResult(res))

	return nil
}

func (a *BankApplication) withdraw(cmd *cobra.Command, args []string) error {
	amount, err := a.parseAmount(args[1])
	if err != nil {
		return err
	}

	res, err := a.bank.Withdraw(cmd.Context(), args[0], amount)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, a.formatResult(res))

	return nil
}

func (a *BankApplication) transfer(cmd *cobra.Command, args []string) error {
	amount, err := a.parseAmount(args[2])
	if err != nil {
		return err
	}

	res, err := a.bank.Transfer(cmd.Context(), args[0], args[1], amount)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, a.formatResult(res))

	return nil
}

func (a *BankApplication) balance(cmd *cobra.Command, args []string) error {
	balance, err := a.bank.CheckBalance(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "ok account=%s balance=%s\n", args[0], a.amount(balance))

	return nil
}

func (a *BankApplication) close(cmd *cobra.Command, args []string) error {
	res, err := a.bank.CloseAccount(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, a.formatResult(res))

	return nil
}

func (a *BankApplication) show(cmd *cobra.Command, args []string) error {
	acc, err := a.bank.GetAccount(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	line := fmt.Sprintf("ok id=%s owner=%q status=%s balance=%s version=%d created=%s",
		acc.ID, acc.Owner, acc.Status, a.amount(acc.Balance), acc.Version,
		acc.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
	if acc.ClosedAt != nil {
		line += " closed=" + acc.ClosedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	fmt.Fprintln(a.out, line)

	return nil
}

func (a *BankApplication) check(cmd *cobra.Command, _ []string) error {
	report, err := a.consistency.CheckConsistency(cmd.Context())
	if report != nil {
		fmt.Fprintf(a.out, "accounts=%d open=%d total=%s credits=%s debits=%s difference=%s\n",
			report.Accounts, report.OpenAccounts,
			a.amount(report.TotalBalance), a.amount(report.TotalCredits),
			a.signedAmount(report.TotalDebits), a.signedAmount(report.Difference()))
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, "ok consistent")

	return nil
}

func (a *BankApplication) reconcile(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		result, err := a.reconciler.ReconcileAccount(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		status := "ok"
		if !result.IsReconciled {
			status = "mismatch"
		}
		fmt.Fprintf(a.out, "%s account=%s recorded=%s calculated=%s entries=%d\n",
			status, result.AccountID, a.amount(result.RecordedBalance),
			a.amount(result.CalculatedBalance), result.Entries)

		return nil
	}

	report, err := a.reconciler.GenerateReconciliationReport(cmd.Context())
	if err != nil {
		return err
	}

	for _, d := range report.Discrepancies {
		fmt.Fprintf(a.out, "mismatch account=%s recorded=%s calculated=%s difference=%s\n",
			d.AccountID, a.amount(d.RecordedBalance), a.amount(d.CalculatedBalance), a.signedAmount(d.Difference))
	}
	fmt.Fprintf(a.out, "ok reconciled=%d/%d\n", report.ReconciledAccounts, report.TotalAccounts)

	return nil
}

func (a *BankApplication) parseAmount(s string) (int64, error) {
	amount, err := domain.ParseAmount(s, a.cfg.Scale)
	if err != nil && !errors.Is(err, domain.ErrInvalidAmount) {
		return 0, &UsageError{Err: err}
	}

	return amount, err
}

func (a *BankApplication) formatResult(res *domain.TransactionResult) string {
	switch res.Operation {
	case domain.OperationTransfer:
		return fmt.Sprintf("ok seq=%d from=%s to=%s amount=%s from_balance=%s to_balance=%s",
			res.Sequence, res.AccountID, res.CounterpartyID,
			a.amount(res.Amount), a.amount(res.Balance), a.amount(res.CounterpartyBalance))
	case domain.OperationClose:
		return fmt.Sprintf("ok seq=%d account=%s closed", res.Sequence, res.AccountID)
	default:
		return fmt.Sprintf("ok seq=%d account=%s amount=%s balance=%s",
			res.Sequence, res.AccountID, a.amount(res.Amount), a.amount(res.Balance))
	}
}

func (a *BankApplication) amount(minor int64) string {
	return domain.FormatAmount(minor, a.cfg.Scale)
}

func (a *BankApplication) signedAmount(minor int64) string {
	if minor > 0 {
		return "+" + a.amount(minor)
	}
	return a.amount(minor)
}

// FormatError renders a failed command as "error <Kind>: <message>".
func FormatError(err error) string {
	return fmt.Sprintf("error %s: %s", domain.KindOf(err), err)
}
