// Command restdb serves the tables of a SQL database as a REST API.
//
//	restdb serve --config restdb.yaml
//	restdb tables
//	restdb table posts
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koustreak/restdb/internal/config"
	"github.com/koustreak/restdb/internal/logger"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "restdb",
		Short:         "REST API over the tables of a SQL database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "restdb.yaml", "configuration file")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the REST API",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "tables",
			Short: "List the reflected tables and views",
			Args:  cobra.NoArgs,
			RunE:  runTables,
		},
		&cobra.Command{
			Use:   "table <name>",
			Short: "Print the reflected definition of a table",
			Args:  cobra.ExactArgs(1),
			RunE:  runTable,
		},
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "restdb:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.SetGlobal(logger.New(cfg.Logging.LoggerConfig()))
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.server().Run(ctx)
}

func runTables(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		db, err := a.schema.Database(ctx)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, name := range db.TableNames() {
			fmt.Fprintf(w, "%s\t%s\n", name, db.Kind(name))
		}
		return nil
	})
}

func runTable(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		t, err := a.schema.Table(ctx, args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	})
}

func withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
