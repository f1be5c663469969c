package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline/ledger"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline/replenishment"
	"github.com/pharmacheck/inventory/backend-go/internal/repository/postgres"
	"github.com/urfave/cli/v2"
)

var errNoDatabase = errors.New("this command requires --db-url")

func needsCommand() *cli.Command {
	return &cli.Command{
		Name:  "needs",
		Usage: "Manage per-product replenishment settings",
		Subcommands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Import required quantity, location and units per package from a CSV or XLSX sheet",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					newTypeFlag(),
					&cli.BoolFlag{Name: "dry-run", Usage: "Parse and report without writing"},
				},
				Action: runNeedsImport,
			},
		},
	}
}

func runNeedsImport(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file, got %d", c.NArg())
	}
	category, err := domain.ParseCategory(c.String("type"))
	if err != nil {
		return err
	}

	table, err := ledger.ReadFile(c.Args().First())
	if err != nil {
		return err
	}
	records, diags, err := ledger.ParseNeeds(table)
	if err != nil {
		return err
	}
	for _, d := range diags {
		fmt.Printf("  %s\n", d)
	}

	if c.Bool("dry-run") {
		fmt.Printf("%d needs profiles parsed (dry run)\n", len(records))
		return nil
	}
	db := dbFrom(c)
	if db == nil {
		return errNoDatabase
	}
	if err := postgres.NewNeedsRepository(db, domain.DefaultNeeds()).PutMany(c.Context, category, records); err != nil {
		return err
	}
	fmt.Printf("%d needs profiles imported into %s\n", len(records), category)
	return nil
}

func lowStockCommand() *cli.Command {
	return &cli.Command{
		Name:  "low-stock",
		Usage: "Print products below their required quantity plus buffer as CSV",
		Flags: []cli.Flag{
			newTypeFlag(),
			&cli.Float64Flag{
				Name:    "buffer",
				Usage:   "Warning margin above the required quantity",
				Value:   replenishment.DefaultBuffer,
				EnvVars: []string{"SHORTAGE_BUFFER"},
			},
		},
		Action: runLowStock,
	}
}

func runLowStock(c *cli.Context) error {
	category, err := domain.ParseCategory(c.String("type"))
	if err != nil {
		return err
	}
	db := dbFrom(c)
	if db == nil {
		return errNoDatabase
	}

	defaults := domain.DefaultNeeds()
	items, err := postgres.NewInventoryRepository(db, defaults).List(c.Context, category)
	if err != nil {
		return err
	}
	classifier := replenishment.NewClassifier(
		replenishment.WithBuffer(c.Float64("buffer")),
		replenishment.WithDefaults(defaults),
	)

	w := csv.NewWriter(os.Stdout)
	if err := w.Write([]string{"name", "code", "on_hand", "required", "location", "order_packages", "tier"}); err != nil {
		return err
	}
	for _, v := range replenishment.LowStock(classifier.ClassifyAll(items)) {
		record := []string{
			v.Name,
			v.Code,
			fmt.Sprint(v.OnHand),
			fmt.Sprint(v.RequiredQuantity),
			v.Location,
			fmt.Sprintf("%.2f", v.OrderPackages),
			v.TierLabel,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
