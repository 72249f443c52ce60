// Package cli implements the enrollctl command tree.
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-ledger/internal/app"
	"github.com/noah-isme/enrollment-ledger/pkg/actor"
	"github.com/noah-isme/enrollment-ledger/pkg/config"
	"github.com/noah-isme/enrollment-ledger/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format  string // "json" | "text"
	Actor   string
	Driver  string
	DBPath  string
	Verbose bool

	loadConfig func() (*config.Config, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command reading configuration from the
// environment and .env.
func NewRootCommand() *cobra.Command {
	return newRootCommand(config.Load)
}

func newRootCommand(load func() (*config.Config, error)) *cobra.Command {
	opts := &RootOptions{loadConfig: load}

	cmd := &cobra.Command{
		Use:   "enrollctl",
		Short: "Manage enrollments, grades and the grade audit trail",
		Long: `enrollctl operates the enrollment ledger directly against its database.

Every grade change made here is audited exactly like changes made over HTTP.
Use --actor to record who made the change.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitUsage, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Actor, "actor", "", "actor recorded on audit entries (defaults to DEFAULT_ACTOR)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "database driver override (postgres|sqlite)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "SQLite database path override")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log to stderr")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewStudentCommand(opts))
	cmd.AddCommand(NewCourseCommand(opts))
	cmd.AddCommand(NewEnrollCommand(opts))
	cmd.AddCommand(NewWithdrawCommand(opts))
	cmd.AddCommand(NewGradeCommand(opts))
	cmd.AddCommand(NewCoursesCommand(opts))
	cmd.AddCommand(NewRosterCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// config resolves configuration and applies the global overrides.
func (o *RootOptions) config() (*config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, WrapExitError(ExitUsage, "failed to load config", err)
	}
	if o.Driver != "" {
		cfg.Database.Driver = strings.ToLower(o.Driver)
	}
	if o.DBPath != "" {
		cfg.Database.Path = o.DBPath
		if o.Driver == "" {
			cfg.Database.Driver = config.DriverSQLite
		}
	}
	return cfg, nil
}

// open builds the service container and a context carrying the actor.
func (o *RootOptions) open(cmd *cobra.Command) (context.Context, *app.Container, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, nil, err
	}

	log := zap.NewNop()
	if o.Verbose {
		if log, err = logger.New(cfg); err != nil {
			return nil, nil, WrapExitError(ExitUsage, "failed to init logger", err)
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	container, err := app.Build(ctx, cfg, log, app.Options{DefaultActor: o.Actor})
	if err != nil {
		return nil, nil, WrapExitError(ExitUnavailable, "failed to open ledger", err)
	}
	return actor.With(ctx, o.Actor), container, nil
}

func (o *RootOptions) output(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// withLedger runs fn against an open container and closes it afterwards.
func withLedger(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, c *app.Container, out *OutputFormatter) error) error {
	ctx, container, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer container.Close(context.Background()) //nolint:errcheck
	return fn(ctx, container, opts.output(cmd))
}
