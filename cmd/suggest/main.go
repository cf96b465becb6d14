package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"reup-suggest-backend/internal/analytics"
	"reup-suggest-backend/internal/auth"
	"reup-suggest-backend/internal/db"
	"reup-suggest-backend/internal/logging"
	"reup-suggest-backend/internal/suggest"
	"reup-suggest-backend/internal/tasks"
	"reup-suggest-backend/internal/usage"
)

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:           "suggest",
		Short:         "Smart task suggestions from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log engine events to stderr")

	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		errColor.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func generateCmd() *cobra.Command {
	var (
		file      string
		limit     int
		location  string
		templates string
		asJSON    bool
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Rank suggestions for a snapshot file",
		Long: `Reads a JSON snapshot {"tasks": [...], "categories": [...], "usage": {...}}
and prints the ranked suggestions. Use --file - to read stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			req, err := readSnapshot(in)
			if err != nil {
				return err
			}
			if location != "" {
				req.Location = location
			}

			catalog, err := suggest.LoadCatalog(templates)
			if err != nil {
				return err
			}

			log := logging.Nop()
			if verbose {
				log = logging.New(cmd.ErrOrStderr(), "debug")
			}

			engine := suggest.NewEngine(suggest.EngineConfig{
				Limit:   limit,
				Timeout: timeout,
				Catalog: catalog,
				Logger:  log,
			})
			defer engine.Close()

			st, err := engine.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}
			if st.Status == suggest.StatusFailed {
				return fmt.Errorf("suggestions unavailable: %w", st.Err)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), st.Suggestions)
			}
			printSuggestions(cmd.OutOrStdout(), st.Suggestions)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "snapshot file")
	cmd.Flags().IntVarP(&limit, "limit", "n", suggest.DefaultLimit, "maximum number of suggestions")
	cmd.Flags().StringVar(&location, "location", "", "current location, overrides the snapshot")
	cmd.Flags().StringVar(&templates, "templates", "", "template catalog yaml (default: built-in)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "generation timeout")
	return cmd
}

func migrateCmd() *cobra.Command {
	var driver, dsn string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the tasks, analytics and usage tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Connect(driver, dsn)
			if err != nil {
				return err
			}
			defer conn.Close()

			store, err := usage.NewSQLStore(conn, driver)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if err := tasks.Migrate(ctx, conn, driver); err != nil {
				return err
			}
			okColor.Fprintln(cmd.OutOrStdout(), "tasks, task_categories ready")

			if err := analytics.NewRecorder(conn, driver, nil).Migrate(ctx); err != nil {
				return err
			}
			okColor.Fprintln(cmd.OutOrStdout(), "analytics_events ready")

			if err := store.Migrate(ctx); err != nil {
				return err
			}
			okColor.Fprintf(cmd.OutOrStdout(), "task_usage ready (%s)\n", driver)
			return nil
		},
	}

	cmd.Flags().StringVar(&driver, "driver", db.DriverSQLite, "database driver (postgres or sqlite3)")
	cmd.Flags().StringVar(&dsn, "dsn", "suggest.db", "connection string or sqlite path")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		userID int
		secret string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET is required")
			}
			if userID <= 0 {
				return fmt.Errorf("--user must be positive, got %d", userID)
			}

			tok, err := auth.GenerateToken([]byte(secret), userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().IntVar(&userID, "user", 0, "user id to put in the token")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default: $JWT_SECRET)")
	return cmd
}
