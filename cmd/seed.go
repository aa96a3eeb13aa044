/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/icard-hq/apiserver/config"
	"github.com/icard-hq/apiserver/internal/auth"
	"github.com/icard-hq/apiserver/internal/db"
	"github.com/icard-hq/apiserver/internal/store"
	"github.com/icard-hq/apiserver/types"
	"github.com/spf13/cobra"
)

// seedCmd creates the initial admin account. Registration is admin-only, so
// a fresh deployment needs one account bootstrapped outside the API.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the initial admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		name, _ := cmd.Flags().GetString("name")
		if email == "" || password == "" {
			return errors.New("--email and --password are required")
		}

		cfg := config.LoadConfig()
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		users := store.NewUserRepository(dbConn)
		if exists, err := users.ExistsByEmail(ctx, email); err != nil {
			return err
		} else if exists {
			fmt.Printf("account %s already exists, nothing to do\n", email)
			return nil
		}

		hash, err := auth.NewBcryptHasher().Hash(password)
		if err != nil {
			return fmt.Errorf("hash seed password: %w", err)
		}

		user, err := users.Create(ctx, types.User{
			FullName:     name,
			Email:        email,
			Role:         types.RoleAdmin,
			PasswordHash: hash,
			Active:       true,
		})
		if err != nil {
			return fmt.Errorf("insert admin account: %w", err)
		}

		fmt.Printf("created admin account %s (id %d)\n", user.Email, user.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().String("email", "", "admin email address")
	seedCmd.Flags().String("password", "", "admin password")
	seedCmd.Flags().String("name", "Administrator", "admin display name")
}
