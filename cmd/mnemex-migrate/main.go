// Command mnemex-migrate applies and inspects the schema_migrations
// tracked by internal/migrate.Runner (§4.18). Subcommand structure is
// grounded on the cobra usage in the pack's lerian-mcp-memory-cli
// tooling rather than the teacher's own plain-flag binaries, since the
// teacher has nothing resembling a migration CLI to imitate directly.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/scrypster/mnemex/internal/config"
	"github.com/scrypster/mnemex/internal/migrate"
	"github.com/scrypster/mnemex/internal/storage/postgres"
	"github.com/scrypster/mnemex/internal/storage/sqlite"
)

var (
	dsnFlag    string
	engineFlag string
	dirFlag    string
)

func main() {
	root := &cobra.Command{
		Use:   "mnemex-migrate",
		Short: "Apply and inspect mnemex's relational schema migrations",
	}
	root.PersistentFlags().StringVar(&dsnFlag, "dsn", "", "Database DSN (overrides config)")
	root.PersistentFlags().StringVar(&engineFlag, "db-engine", "", "sqlite or postgres (overrides config)")
	root.PersistentFlags().StringVar(&dirFlag, "dir", "", "Migrations directory (overrides the engine's default migrations/<engine> path)")

	root.AddCommand(upCmd(), downCmd(), statusCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, closeFn, err := buildRunner()
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := runner.Up(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("applied %d migration(s)\n", n)
			return nil
		},
	}
}

func downCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down [count]",
		Short: "Roll back the most recently applied migrations (all, if count is omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count := 0
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("count must be an integer: %w", err)
				}
				count = n
			}

			runner, closeFn, err := buildRunner()
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := runner.Down(cmd.Context(), count)
			if err != nil {
				return err
			}
			fmt.Printf("rolled back %d migration(s)\n", n)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List every known migration and whether it is applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, closeFn, err := buildRunner()
			if err != nil {
				return err
			}
			defer closeFn()

			entries, err := runner.Status(cmd.Context())
			if err != nil {
				return err
			}
			for _, e := range entries {
				state := "pending"
				if e.Applied {
					state = "applied " + e.AppliedAt.Format("2006-01-02T15:04:05Z07:00")
				}
				fmt.Printf("%03d_%s\t%s\n", e.ID, e.Name, state)
			}
			return nil
		},
	}
}

// buildRunner loads config, opens the selected backend's *sql.DB, and
// constructs a Runner over its migrations directory.
func buildRunner() (*migrate.Runner, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if dsnFlag != "" {
		cfg.Database.DSN = dsnFlag
	}
	if engineFlag != "" {
		cfg.Database.Engine = engineFlag
	}

	dir := dirFlag
	if dir == "" {
		dir = "migrations/" + cfg.Database.Engine
	}

	ctx := context.Background()
	if cfg.Database.Engine == "postgres" {
		adapter, err := postgres.Open(ctx, cfg.Database.DSN, cfg.Database.Dimension)
		if err != nil {
			return nil, nil, err
		}
		runner, err := migrate.NewRunner(adapter.DB(), dir)
		if err != nil {
			adapter.Close()
			return nil, nil, err
		}
		return runner, func() { adapter.Close() }, nil
	}

	adapter, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	runner, err := migrate.NewRunner(adapter.DB(), dir)
	if err != nil {
		adapter.Close()
		return nil, nil, err
	}
	return runner, func() { adapter.Close() }, nil
}
