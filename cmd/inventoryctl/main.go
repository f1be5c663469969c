package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline/ledger"
	"github.com/pharmacheck/inventory/backend-go/internal/repository/postgres"
	"github.com/pharmacheck/inventory/backend-go/pkg/logger"
	"github.com/urfave/cli/v2"
)

type ctxKey string

const dbKey ctxKey = "db"

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db-url",
		Usage:   "Database connection string; without it nothing is committed",
		EnvVars: []string{"DATABASE_URL"},
	}
}

func newTypeFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "type",
		Aliases: []string{"t"},
		Usage:   "Product category: professional or general",
		Value:   string(domain.CategoryProfessional),
	}
}

func initDB(c *cli.Context) error {
	logger.SetLevel(c.String("log-level"))

	url := c.String("db-url")
	if url == "" {
		return nil
	}
	db, err := sqlx.Open("pgx", url)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(c.Context); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	wrapped := postgres.Wrap(db)
	if err := wrapped.Migrate(c.Context); err != nil {
		db.Close()
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	c.Context = context.WithValue(c.Context, dbKey, wrapped)
	return nil
}

func closeDB(c *cli.Context) error {
	if db := dbFrom(c); db != nil {
		return db.Close()
	}
	return nil
}

func dbFrom(c *cli.Context) *postgres.DB {
	db, _ := c.Context.Value(dbKey).(*postgres.DB)
	return db
}

func main() {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		logger.Log.Warn().Err(err).Msg("could not load .env file")
	}

	app := &cli.App{
		Name:  "inventoryctl",
		Usage: "Reconcile pharmacy exports and manage replenishment settings",
		Flags: []cli.Flag{
			newDBURLFlag(),
			newRedisURLFlag(),
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: initDB,
		After:  closeDB,
		Commands: []*cli.Command{
			reconcileCommand(),
			needsCommand(),
			pullCommand(),
			lowStockCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		stop()
		logger.Log.Fatal().Err(err).Msg("inventoryctl failed")
	}
}

// buildOrchestrator creates one worker per category. Ledgers are committed
// and runs recorded only when a database is configured.
func buildOrchestrator(db *postgres.DB, cfg pipeline.Config) (*pipeline.Orchestrator, error) {
	var opts []pipeline.WorkerOption
	if db != nil {
		opts = append(opts,
			pipeline.WithCommitter(postgres.NewInventoryRepository(db, domain.DefaultNeeds())),
			pipeline.WithRecorder(pipeline.NewRepository(db.DB)),
		)
	}

	workers := make([]*pipeline.Worker, 0, len(domain.Categories))
	for _, category := range domain.Categories {
		reconciler, err := ledger.NewReconciler(category)
		if err != nil {
			return nil, err
		}
		workers = append(workers, pipeline.NewWorker(reconciler, cfg, opts...))
	}
	return pipeline.NewOrchestrator(workers...), nil
}

func printResult(res *pipeline.Result) {
	summary := res.Summary()
	fmt.Printf("%s: %d entries, %d new, %d warnings", summary.Category, summary.Entries, summary.NewItems, summary.Warnings)
	if res.ExportPath != "" {
		fmt.Printf(" -> %s", res.ExportPath)
	}
	fmt.Println()
	for _, d := range summary.Diagnostics {
		fmt.Printf("  %s\n", d)
	}
}
