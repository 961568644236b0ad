// homerly-jobs runs maintenance tasks against the configured database.
//
// Usage:
//
//	DB_DRIVER=mysql DB_USER=... go run ./cmd/homerly-jobs migrate
//	go run ./cmd/homerly-jobs sweep
//	go run ./cmd/homerly-jobs seed-admin --email admin@homerly.vn --password ... --name "HomerLy Admin"
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/homerly/rental_backend/config"
	"github.com/homerly/rental_backend/models"
	"github.com/homerly/rental_backend/utils"
	"github.com/homerly/rental_backend/workflow"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "homerly-jobs",
		Short:        "HomerLy maintenance jobs",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.ConnectDatabaseWithRetry()
		},
	}
	rootCmd.AddCommand(migrateCmd(), sweepCmd(), seedAdminCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := models.Migrate(config.GetDB()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire ended tenancies and flag overdue invoices once",
		RunE: func(cmd *cobra.Command, args []string) error {
			config.ConnectRedisWithRetry()
			sweeper := workflow.NewSweeper(config.GetLogger(), config.GetRedisLock())
			var failed error
			for _, result := range sweeper.RunOnce(cmd.Context()) {
				switch {
				case result.Err != nil:
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", result.Name, result.Err)
					failed = errors.Join(failed, result.Err)
				case result.Skipped:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: skipped (locked)\n", result.Name)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d updated\n", result.Name, result.Affected)
				}
			}
			return failed
		},
	}
}

func seedAdminCmd() *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("ADMIN_PASSWORD")
			}
			if password == "" {
				return errors.New("--password or ADMIN_PASSWORD is required")
			}
			account, err := models.CreateAdminAccount(cmd.Context(), email, password, name)
			if utils.IsKind(err, utils.KindConflict) {
				fmt.Fprintf(cmd.OutOrStdout(), "admin %s already exists\n", email)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s created (id=%s)\n", account.Email, account.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "admin@homerly.vn", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password (or ADMIN_PASSWORD)")
	cmd.Flags().StringVar(&name, "name", "HomerLy Admin", "admin full name")
	return cmd
}
