package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/enrollment-ledger/internal/app"
)

// NewAuditCommand creates the audit command group.
func NewAuditCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the grade audit trail",
	}

	var limit int
	recent := &cobra.Command{
		Use:   "recent",
		Short: "Show the most recent grade changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(opts, cmd, func(ctx context.Context, c *app.Container, out *OutputFormatter) error {
				views, err := c.Audit.Recent(ctx, limit)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{
						strconv.FormatInt(v.ID, 10),
						v.ChangedAt.UTC().Format(time.RFC3339),
						v.Student,
						v.Course,
						gradeText(v.OldGrade),
						gradeText(v.NewGrade),
						v.Actor,
					})
				}
				return out.Table(views, []string{"ID", "CHANGED AT", "STUDENT", "COURSE", "OLD", "NEW", "ACTOR"}, rows)
			})
		},
	}
	recent.Flags().IntVar(&limit, "limit", 0, "maximum entries (0 uses AUDIT_DEFAULT_LIMIT)")

	var exportLimit int
	var output string
	export := &cobra.Command{
		Use:   "export [csv|pdf]",
		Short: "Render the most recent grade changes as CSV or PDF",
		Example: `  enrollctl audit export csv --limit 500 -o audit.csv
  enrollctl audit export pdf -o audit.pdf`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"csv", "pdf"},
		RunE: func(cmd *cobra.Command, args []string) error {
			format := ""
			if len(args) == 1 {
				format = args[0]
			}
			return withLedger(opts, cmd, func(ctx context.Context, c *app.Container, out *OutputFormatter) error {
				result, err := c.Audit.Export(ctx, format, exportLimit)
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err := cmd.OutOrStdout().Write(result.Body)
					return err
				}
				if err := os.WriteFile(output, result.Body, 0o644); err != nil {
					return WrapExitError(ExitFailure, "failed to write export", err)
				}
				summary := map[string]interface{}{"path": output, "entries": result.Entries, "content_type": result.ContentType}
				return out.Success(summary, func(w io.Writer) {
					fmt.Fprintf(w, "Wrote %d entries to %s\n", result.Entries, output)
				})
			})
		},
	}
	export.Flags().IntVar(&exportLimit, "limit", 0, "maximum entries (0 uses AUDIT_DEFAULT_LIMIT)")
	export.Flags().StringVarP(&output, "output", "o", "", "destination file (stdout when empty)")

	history := &cobra.Command{
		Use:   "history STUDENT_ID COURSE_ID",
		Short: "Show every grade change of one enrollment pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(opts, cmd, func(ctx context.Context, c *app.Container, out *OutputFormatter) error {
				entries, err := c.Audit.History(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						strconv.FormatInt(e.ID, 10),
						e.ChangedAt.UTC().Format(time.RFC3339),
						gradeText(e.OldGrade),
						gradeText(e.NewGrade),
						e.Actor,
					})
				}
				return out.Table(entries, []string{"ID", "CHANGED AT", "OLD", "NEW", "ACTOR"}, rows)
			})
		},
	}

	cmd.AddCommand(recent, export, history)
	return cmd
}
