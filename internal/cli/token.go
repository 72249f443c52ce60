package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/enrollment-ledger/internal/models"
	"github.com/noah-isme/enrollment-ledger/internal/service"
)

// NewTokenCommand creates the token command. It signs with JWT_SECRET and
// never touches the database.
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	var req service.IssueTokenRequest
	var role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP API",
		Example: `  enrollctl token --role REGISTRAR --email registrar@campus.test
  curl -H "Authorization: Bearer $(enrollctl token --role ADMIN)" ...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			auth := service.NewAuthService(service.AuthConfig{Secret: cfg.JWT.Secret, Expiry: cfg.JWT.Expiration})
			req.Role = models.UserRole(role)
			token, expiresAt, err := auth.IssueToken(req)
			if err != nil {
				return err
			}
			payload := map[string]interface{}{"token": token, "expires_at": expiresAt.Format(time.RFC3339)}
			return opts.output(cmd).Success(payload, func(w io.Writer) {
				fmt.Fprintln(w, token)
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", string(models.RoleRegistrar), "ADMIN, REGISTRAR or VIEWER")
	cmd.Flags().StringVar(&req.UserID, "user", "", "subject user ID (generated when empty)")
	cmd.Flags().StringVar(&req.Email, "email", "", "email recorded as the audit actor")
	cmd.Flags().StringVar(&req.FullName, "name", "", "display name")
	return cmd
}
