package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"parajoin/pkg/database"
	"parajoin/pkg/logging"
	"parajoin/pkg/metrics"
	"parajoin/pkg/ui"
)

// Configuration is everything the command line controls.
type Configuration struct {
	Database database.Config
	DumpPerf bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	config := Configuration{Database: database.DefaultConfig()}

	root := &cobra.Command{
		Use:           "parajoin",
		Short:         "Parallel equality-join engine over in-memory column relations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	registerFlags(root.PersistentFlags(), &config)

	root.AddCommand(
		newRunCommand(&config),
		newQueryCommand(&config),
		newInspectCommand(&config),
	)
	return root
}

func registerFlags(fs *pflag.FlagSet, config *Configuration) {
	fs.IntVar(&config.Database.Workers, "workers", config.Database.Workers, "worker pool size")
	fs.IntVar(&config.Database.BatchConcurrency, "batch-concurrency", config.Database.BatchConcurrency, "queries of one batch running at once")
	fs.IntVar(&config.Database.MinBlockSize, "min-block-size", 0, "override the minimum rows per parallel block (0 keeps per-operator defaults)")
	fs.StringVar(&config.Database.LogLevel, "log-level", config.Database.LogLevel, "debug, info, warn or error")
	fs.StringVar(&config.Database.LogFormat, "log-format", config.Database.LogFormat, "text or json")
	fs.StringVar(&config.Database.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	fs.BoolVar(&config.DumpPerf, "dump-perf", false, "print per-phase timings to stderr on exit")
}

func newRunCommand(config *Configuration) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Read relations and query batches from stdin, write checksums to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), config, func(ctx context.Context, db *database.Database) error {
				return db.RunWorkload(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
}

func newQueryCommand(config *Configuration) *cobra.Command {
	var relations []string
	cmd := &cobra.Command{
		Use:     "query QUERY",
		Short:   "Run a single query against the given relation files",
		Example: `  parajoin query --relation r0 --relation r1 "0 1|0.0=1.1&0.1>3000|0.0 1.1"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), config, func(ctx context.Context, db *database.Database) error {
				for _, path := range relations {
					if _, err := db.AddRelation(path); err != nil {
						return err
					}
				}
				line, err := db.Execute(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVarP(&relations, "relation", "r", nil, "relation file; binding ids follow flag order")
	return cmd
}

func newInspectCommand(config *Configuration) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Print row counts and column statistics of relation files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), config, func(_ context.Context, db *database.Database) error {
				out := cmd.OutOrStdout()
				var failed error
				for _, path := range args {
					summary, err := inspect(db, path)
					if err != nil {
						fmt.Fprintln(out, ui.RenderError(path, err))
						failed = errors.Join(failed, err)
						continue
					}
					fmt.Fprintln(out, ui.RenderRelation(summary))
				}
				return failed
			})
		},
	}
}

func inspect(db *database.Database, path string) (ui.RelationSummary, error) {
	id, err := db.AddRelation(path)
	if err != nil {
		return ui.RelationSummary{}, err
	}
	rel, _, err := db.Relation(id)
	if err != nil {
		return ui.RelationSummary{}, err
	}
	stats, err := db.RelationStatistics(id)
	if err != nil {
		return ui.RelationSummary{}, err
	}
	return ui.RelationSummary{Path: path, Rows: rel.Size(), Columns: stats}, nil
}

// withDatabase sets up logging, metrics and the database around fn and
// tears them down afterwards.
func withDatabase(ctx context.Context, config *Configuration, fn func(context.Context, *database.Database) error) error {
	if err := logging.Init(logging.Config{
		Level:  logging.ParseLevel(config.Database.LogLevel),
		Format: config.Database.LogFormat,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %v", err)
	}
	defer logging.Close()
	log := logging.WithComponent("main")

	if addr := config.Database.MetricsAddr; addr != "" {
		srv := metrics.NewServer(addr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server stopped", "addr", addr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		log.Info("serving metrics", "addr", addr)
	}

	db, err := database.Open(config.Database)
	if err != nil {
		log.Error("failed to open database", "error", err)
		return err
	}

	runErr := fn(ctx, db)
	if runErr != nil {
		log.Error("command failed", "error", runErr)
	}
	if err := db.Close(); err != nil {
		log.Error("failed to close database", "error", err)
		runErr = errors.Join(runErr, err)
	}

	if config.DumpPerf {
		if err := metrics.Dump(os.Stderr); err != nil {
			log.Warn("failed to dump timings", "error", err)
		}
	}
	return runErr
}
