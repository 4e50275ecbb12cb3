// Package cli implements ledgerctl, the operator command line for the ledger.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Env is what a command runs against.
type Env struct {
	Core  *ledger.Core
	Jobs  JobsQueue
	Now   func() time.Time
	close []func() error
}

// Close releases every resource opened for the env.
func (e *Env) Close() error {
	var errs []error
	for i := len(e.close) - 1; i >= 0; i-- {
		errs = append(errs, e.close[i]())
	}
	return errors.Join(errs...)
}

// OnClose registers fn to run when the env is closed.
func (e *Env) OnClose(fn func() error) {
	e.close = append(e.close, fn)
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

// EnvFactory opens an Env for one invocation.
type EnvFactory func(ctx context.Context) (*Env, error)

// PostgresEnv builds the env from the process configuration.
func PostgresEnv(ctx context.Context) (*Env, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := app.NewLoggerTo(os.Stderr, cfg)
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, err
	}
	env := &Env{}
	env.OnClose(func() error { pool.Close(); return nil })

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, account cache and jobs disabled", slog.Any("error", err))
		redisClient = nil
	} else {
		env.OnClose(redisClient.Close)
		jobsCLI := NewJobsCLI(cfg.RedisAddr)
		env.Jobs = jobsCLI
		env.OnClose(jobsCLI.Close)
	}
	env.Core = ledger.NewPostgres(pool, redisClient, ledger.Options{
		CashPrefixes: cfg.CashAccountPrefixes,
		CacheTTL:     cfg.AccountCacheTTL,
		Logger:       logger,
	})
	return env, nil
}

type envKey struct{}

func envFrom(cmd *cobra.Command) *Env {
	env, _ := cmd.Context().Value(envKey{}).(*Env)
	return env
}

// NewRootCommand creates the root command with all subcommands registered.
func NewRootCommand(factory EnvFactory) *cobra.Command {
	var actor int64
	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the Odyssey financial ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			env, err := factory(cmd.Context())
			if err != nil {
				return fmt.Errorf("ledgerctl: open ledger: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), envKey{}, env))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if env := envFrom(cmd); env != nil {
				return env.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().Int64Var(&actor, "actor", 0, "acting user id recorded on postings and reports")

	root.AddCommand(
		newPostCommand(&actor),
		newBalanceCommand(),
		newReportCommand(&actor),
		newReconcileCommand(&actor),
		newVerifyBalancesCommand(),
		newJobsCommand(),
	)
	return root
}

func parseDateFlag(name, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", name, raw)
	}
	return t, nil
}
