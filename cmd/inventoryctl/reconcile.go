package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline"
	"github.com/urfave/cli/v2"
)

func pipelineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "out",
			Usage:   "Directory for ledger CSV exports; empty disables export",
			Value:   "./data/output",
			EnvVars: []string{"APP_DATA_DIR"},
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Number of source files read concurrently",
			Value: pipeline.DefaultConfig().WorkerCount,
		},
	}
}

func pipelineConfig(c *cli.Context) pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.OutputDir = c.String("out")
	cfg.WorkerCount = c.Int("workers")
	return cfg
}

func reconcileCommand() *cli.Command {
	return &cli.Command{
		Name:      "reconcile",
		Usage:     "Reconcile local exports into a stock ledger",
		ArgsUsage: "[export files...]",
		Description: "Files given as arguments are assigned to a category and source kind by name " +
			"(e.g. 일반약_재고.xlsx, professional_sales.csv). Alternatively pass --stock, " +
			"--incoming and --dispensed together with --type.",
		Flags: append(pipelineFlags(),
			newTypeFlag(),
			&cli.StringFlag{Name: "stock", Usage: "On-hand export"},
			&cli.StringFlag{Name: "incoming", Usage: "Incoming (purchase) export"},
			&cli.StringFlag{Name: "dispensed", Usage: "Dispensed (sales) export"},
			&cli.BoolFlag{Name: "print", Usage: "Write the ledger CSV to stdout"},
		),
		Action: runReconcile,
	}
}

func runReconcile(c *cli.Context) error {
	orchestrator, err := buildOrchestrator(dbFrom(c), pipelineConfig(c))
	if err != nil {
		return err
	}

	var results []*pipeline.Result
	if c.Args().Present() {
		byCategory, err := orchestrator.Run(c.Context, c.Args().Slice(), pipeline.TriggerCLI)
		if err != nil {
			return err
		}
		for _, res := range byCategory {
			results = append(results, res)
		}
		sort.Slice(results, func(i, j int) bool { return results[i].Ledger.Category < results[j].Ledger.Category })
	} else {
		res, err := reconcileFlags(c, orchestrator)
		if err != nil {
			return err
		}
		results = append(results, res)
	}

	for _, res := range results {
		printResult(res)
		if c.Bool("print") {
			if err := pipeline.WriteLedgerCSV(os.Stdout, res.Ledger); err != nil {
				return err
			}
		}
	}
	if dbFrom(c) == nil {
		fmt.Println("no database configured, ledger not committed")
	}
	invalidateViews(c, results)
	return nil
}

func reconcileFlags(c *cli.Context, orchestrator *pipeline.Orchestrator) (*pipeline.Result, error) {
	category, err := domain.ParseCategory(c.String("type"))
	if err != nil {
		return nil, err
	}
	files := make(map[domain.SourceKind]string)
	for flag, kind := range map[string]domain.SourceKind{
		"stock":     domain.SourceOnHand,
		"incoming":  domain.SourceIncoming,
		"dispensed": domain.SourceDispensed,
	} {
		if path := c.String(flag); path != "" {
			files[kind] = path
		}
	}
	if len(files) == 0 {
		return nil, domain.ErrNoSources
	}

	worker, ok := orchestrator.Worker(category)
	if !ok {
		return nil, fmt.Errorf("no worker configured for category %s", category)
	}
	return worker.Run(c.Context, files, pipeline.TriggerCLI)
}
