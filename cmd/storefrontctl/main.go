// Command storefrontctl runs operator tasks against the storefront database:
// migrations, seeding and account creation. It reads the same environment
// as the server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pillarworks/storefront/config"
	"github.com/pillarworks/storefront/database"
	"github.com/pillarworks/storefront/pkg/logger"
)

var (
	verbose bool

	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "storefrontctl",
	Short:         "Operator tasks for the storefront API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		log, err = logger.New(cfg.Env, level)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(migrateCmd, seedCmd, userCmd)
}

// openDB opens the configured database; migrations run as part of opening.
func openDB() (*database.DB, error) {
	db, err := database.New(cfg.Database.URL, database.Migrations())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "storefrontctl: %v\n", err)
		os.Exit(1)
	}
}
