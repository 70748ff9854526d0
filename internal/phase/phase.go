// Package phase sequences extraction, reconciliation, and push as
// independently selectable phases in a fixed dependency order. Callers may
// include or exclude phases; they can never reorder them.
package phase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Phase is one independently selectable step of a migration unit.
type Phase struct {
	Name        string
	Description string
	Run         func(ctx context.Context) error
}

// Select computes the effective phase set: (all ∩ include) − exclude,
// preserving the declaration order of all. An empty include list selects
// every phase. Unknown names and an empty effective set are errors.
func Select(all []Phase, include, exclude []string) ([]Phase, error) {
	known := make(map[string]bool, len(all))
	for _, p := range all {
		known[p.Name] = true
	}
	for _, name := range append(append([]string{}, include...), exclude...) {
		if !known[name] {
			return nil, fmt.Errorf("unknown phase %q (available: %s)", name, names(all))
		}
	}

	included := func(name string) bool {
		if len(include) == 0 {
			return true
		}
		for _, n := range include {
			if n == name {
				return true
			}
		}
		return false
	}
	excluded := func(name string) bool {
		for _, n := range exclude {
			if n == name {
				return true
			}
		}
		return false
	}

	var effective []Phase
	for _, p := range all {
		if included(p.Name) && !excluded(p.Name) {
			effective = append(effective, p)
		}
	}
	if len(effective) == 0 {
		return nil, fmt.Errorf("no phases left to run after applying --phases/--skip")
	}
	return effective, nil
}

// Run executes the selected phases in fixed order. The first failing phase
// aborts the run; there is no mid-phase cancellation beyond ctx.
func Run(ctx context.Context, all []Phase, include, exclude []string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	selected, err := Select(all, include, exclude)
	if err != nil {
		return err
	}

	for _, p := range selected {
		logger.Info("phase starting", "phase", p.Name, "description", p.Description)
		start := time.Now()
		if err := p.Run(ctx); err != nil {
			return fmt.Errorf("phase %s: %w", p.Name, err)
		}
		logger.Info("phase finished", "phase", p.Name, "elapsed", time.Since(start).Round(time.Millisecond))
	}
	return nil
}

func names(all []Phase) string {
	ns := make([]string, len(all))
	for i, p := range all {
		ns[i] = p.Name
	}
	return strings.Join(ns, ", ")
}
