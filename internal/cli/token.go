package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"classroom-session-service/internal/auth"
	"classroom-session-service/internal/config"
	"classroom-session-service/internal/domain"
)

// NewTokenCmd mints a JWT for local testing. User accounts live in the
// identity provider, not here; this exists so operators can exercise the
// API without one.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		userID string
		name   string
		role   string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development JWT",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			secret := cfg.JWT.Secret
			if secret == "" {
				secret = "change-me-in-production"
			}
			r := domain.Role(role)
			if !r.Valid() {
				return fmt.Errorf("role must be %q or %q", domain.RoleStudent, domain.RoleTeacher)
			}
			if userID == "" {
				userID = uuid.NewString()
			}
			svc := auth.NewJWTService(secret, config.TTLDuration(cfg.JWT.TTL, 24*time.Hour))
			token, err := svc.Generate(userID, name, r)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "principal id (random uuid when empty)")
	cmd.Flags().StringVar(&name, "name", "Dev User", "display name")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleStudent), "role: student or teacher")
	return cmd
}
