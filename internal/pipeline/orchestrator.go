package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"golang.org/x/sync/errgroup"
)

// ClassifyFilename infers category and source kind from an export file name,
// e.g. "일반약_판매_20250101.xlsx" or "professional_stock.csv".
func ClassifyFilename(name string) (domain.Category, domain.SourceKind, error) {
	base := strings.ToLower(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)))

	category := domain.CategoryProfessional
	if containsAny(base, "일반약", "general") {
		category = domain.CategoryGeneral
	}

	switch {
	case containsAny(base, "입고", "매입", "purchase", "incoming"):
		return category, domain.SourceIncoming, nil
	case containsAny(base, "판매", "조제", "sales", "dispens"):
		return category, domain.SourceDispensed, nil
	case containsAny(base, "재고", "stock", "on_hand"):
		return category, domain.SourceOnHand, nil
	}
	return "", "", fmt.Errorf("cannot infer source kind from file name %s", filepath.Base(name))
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Orchestrator coordinates running category workers over a set of local files.
type Orchestrator struct {
	workers map[domain.Category]*Worker
}

// NewOrchestrator creates a new Orchestrator over one worker per category.
func NewOrchestrator(workers ...*Worker) *Orchestrator {
	o := &Orchestrator{workers: make(map[domain.Category]*Worker, len(workers))}
	for _, w := range workers {
		o.workers[w.Category()] = w
	}
	return o
}

// Worker returns the worker of a category.
func (o *Orchestrator) Worker(category domain.Category) (*Worker, bool) {
	w, ok := o.workers[category]
	return w, ok
}

// Group assigns each file to its category and source kind.
func Group(files []string) (map[domain.Category]map[domain.SourceKind]string, error) {
	byCategory := make(map[domain.Category]map[domain.SourceKind]string)
	for _, f := range files {
		category, kind, err := ClassifyFilename(f)
		if err != nil {
			return nil, err
		}
		if byCategory[category] == nil {
			byCategory[category] = make(map[domain.SourceKind]string)
		}
		if prev, ok := byCategory[category][kind]; ok {
			return nil, fmt.Errorf("both %s and %s are %s %s exports", filepath.Base(prev), filepath.Base(f), category, kind)
		}
		byCategory[category][kind] = f
	}
	return byCategory, nil
}

// Run groups the provided files by category and reconciles the categories in parallel.
func (o *Orchestrator) Run(ctx context.Context, files []string, trigger Trigger) (map[domain.Category]*Result, error) {
	if len(files) == 0 {
		return map[domain.Category]*Result{}, nil
	}

	byCategory, err := Group(files)
	if err != nil {
		return nil, err
	}

	for category := range byCategory {
		if _, ok := o.workers[category]; !ok {
			return nil, fmt.Errorf("no worker configured for category %s", category)
		}
	}

	var (
		mu      sync.Mutex
		results = make(map[domain.Category]*Result, len(byCategory))
	)
	g, gctx := errgroup.WithContext(ctx)
	for category, batch := range byCategory {
		worker := o.workers[category]
		g.Go(func() error {
			res, err := worker.Run(gctx, batch, trigger)
			if err != nil {
				return fmt.Errorf("failed to reconcile %s: %w", category, err)
			}
			mu.Lock()
			results[category] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
