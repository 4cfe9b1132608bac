package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muvico/platform/internal/domain/users"
	pgstorage "github.com/muvico/platform/internal/storage/postgres"
)

func newPromoteCmd() *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "promote <username>",
		Short: "Grant or revoke admin rights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, logr, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := requirePostgres(a); err != nil {
				return err
			}

			repo := pgstorage.NewUserRepository(a.DB.DB)
			u, err := repo.FindByUsername(cmd.Context(), users.NormalizeUsername(args[0]))
			if err != nil {
				return fmt.Errorf("find user %q: %w", args[0], err)
			}
			u, err = a.Domain.Users.SetAdmin(cmd.Context(), u.ID, !revoke)
			if err != nil {
				return err
			}
			logr.Info("admin flag updated", zap.String("username", u.Username), zap.Bool("admin", u.Admin))
			fmt.Fprintf(cmd.OutOrStdout(), "%s admin=%t\n", u.Username, u.Admin)
			return nil
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "remove admin rights instead")
	return cmd
}
