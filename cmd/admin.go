package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/motorlot/apiserver/config"
	"github.com/motorlot/apiserver/internal/db"
	"github.com/motorlot/apiserver/internal/store"
	"github.com/motorlot/apiserver/types"
	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Account administration",
}

var adminPromoteCmd = &cobra.Command{
	Use:   "promote <email>",
	Short: "Grant the admin role to an existing account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRole(cmd.Context(), args[0], types.RoleAdmin)
	},
}

var adminDemoteCmd = &cobra.Command{
	Use:   "demote <email>",
	Short: "Revoke the admin role from an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRole(cmd.Context(), args[0], types.RoleUser)
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminPromoteCmd)
	adminCmd.AddCommand(adminDemoteCmd)
}

func setRole(ctx context.Context, email, role string) error {
	cfg := config.LoadConfig()

	conn, err := db.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	users := store.NewUserRepository(conn)
	user, err := users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no account with email %s", email)
		}
		return err
	}
	if user.Role == role {
		fmt.Printf("%s already has role %s\n", user.Email, role)
		return nil
	}

	user.Role = role
	if _, err := users.Update(ctx, user); err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	fmt.Printf("%s is now %s\n", user.Email, role)
	return nil
}
