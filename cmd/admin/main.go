package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"taskmanager/configs"
	"taskmanager/internal/models"
	"taskmanager/internal/repository"
	"taskmanager/pkg/database"
	"taskmanager/pkg/logger"
)

// opener connects to the configured database; tests replace it.
type opener func(ctx context.Context) (*sql.DB, error)

func main() {
	cfg := configs.LoadConfig()
	if err := logger.InitLoggers(cfg.LogDir); err != nil {
		fmt.Fprintln(os.Stderr, "init loggers:", err)
		os.Exit(1)
	}
	defer logger.SyncLoggers()

	open := func(ctx context.Context) (*sql.DB, error) { return database.ConnectDB(ctx, cfg) }
	if err := newRootCmd(open).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		logger.SyncLoggers()
		os.Exit(1)
	}
}

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "taskmanager-admin",
		Short:         "Administrative tasks for the task manager database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(migrateCmd(open))
	root.AddCommand(createAdminCmd(open))
	root.AddCommand(usersCmd(open))
	root.AddCommand(resetCmd(open))
	return root
}

func withDB(ctx context.Context, open opener, fn func(context.Context, *sql.DB) error) error {
	db, err := open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, db)
}

func migrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and indexes if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), open, func(ctx context.Context, db *sql.DB) error {
				if err := repository.CreateTableIfNotExists(ctx, db); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			})
		},
	}
}

func createAdminCmd(open opener) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || len(password) < 6 {
				return errors.New("--email and a --password of at least 6 characters are required")
			}
			return withDB(cmd.Context(), open, func(ctx context.Context, db *sql.DB) error {
				created, err := repository.CreateAdminUser(ctx, repository.NewUserRepository(db), email, password)
				if err != nil {
					return err
				}
				if !created {
					fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, left unchanged\n", email)
					return nil
				}
				logger.AuditLogger.Info("Admin user created from CLI")
				fmt.Fprintf(cmd.OutOrStdout(), "admin %s created\n", email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	return cmd
}

func usersCmd(open opener) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List user accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), open, func(ctx context.Context, db *sql.DB) error {
				users, err := repository.NewUserRepository(db).List(ctx)
				if err != nil {
					return err
				}
				return renderUsers(cmd.OutOrStdout(), users, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func renderUsers(w io.Writer, users []models.User, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(users)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Email", "Role", "Created"})
	for _, u := range users {
		tw.AppendRow(table.Row{u.ID, u.Email, u.Role, u.CreatedAt.Format("2006-01-02")})
	}
	tw.Render()
	return nil
}

func resetCmd(open opener) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop all tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to drop tables without --yes")
			}
			return withDB(cmd.Context(), open, func(ctx context.Context, db *sql.DB) error {
				if err := repository.DeleteAllTable(ctx, db); err != nil {
					return err
				}
				logger.AuditLogger.Warn("All tables dropped from CLI")
				fmt.Fprintln(cmd.OutOrStdout(), "tables dropped")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm dropping every table")
	return cmd
}
