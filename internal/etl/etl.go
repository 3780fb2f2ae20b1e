// Package etl orchestrates the update and fetch runs over the registered
// data sources.
package etl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"geoatlas/internal/qualities"
	"geoatlas/internal/source"
)

// UpdateOptions narrows an update run.
type UpdateOptions struct {
	// Sources selects a subset of the registry by name; empty runs all.
	Sources []string
	// Restrictions skips combinations that do not match, such as a single
	// simplification level.
	Restrictions qualities.Restrictions
}

// FetchOptions narrows a fetch-only pre-warm of the local dataset cache.
type FetchOptions struct {
	Sources []string
}

// Orchestrator drives ETL runs and records them in the metadata store.
type Orchestrator struct {
	env *source.Env
	log *slog.Logger
}

func New(env *source.Env) *Orchestrator {
	return &Orchestrator{env: env, log: env.Log.With("component", "etl")}
}

// Update runs the selected sources in registry order. A failing source does
// not stop the run; the error lists every failed source at the end.
func (o *Orchestrator) Update(ctx context.Context, opts UpdateOptions) error {
	srcs, err := resolve(opts.Sources)
	if err != nil {
		return err
	}

	names := make([]string, len(srcs))
	for i, s := range srcs {
		names[i] = s.Name()
	}
	runID, err := o.env.Meta.StartRun(ctx, names)
	if err != nil {
		return err
	}
	o.log.Info("starting update run", "run_id", runID, "sources", names)

	var failed []string
	for _, src := range srcs {
		if err := o.updateSource(ctx, src, opts.Restrictions); err != nil {
			o.log.Error("source update failed", "source", src.Name(), "error", err)
			failed = append(failed, src.Name())
		}
	}

	if len(failed) > 0 {
		msg := "failed sources: " + strings.Join(failed, ", ")
		if err := o.env.Meta.FinishRun(ctx, runID, "failed", msg); err != nil {
			o.log.Error("recording run failure failed", "run_id", runID, "error", err)
		}
		return errors.New(msg)
	}
	o.log.Info("update run finished", "run_id", runID)
	return o.env.Meta.FinishRun(ctx, runID, "succeeded", "")
}

// updateSource runs one source to completion. A panic inside a source is
// contained here so the remaining sources still run.
func (o *Orchestrator) updateSource(ctx context.Context, src source.DataSource, restr qualities.Restrictions) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("source %s panicked: %v", src.Name(), r)
		}
	}()

	if cf, ok := src.(source.CustomFlow); ok {
		err := cf.RunCustom(ctx, o.env)
		if errors.Is(err, source.ErrDatasetUnavailable) {
			o.log.Warn("dataset unavailable, skipping source", "source", src.Name())
			return nil
		}
		return err
	}

	for _, combo := range src.Qualities().Combinations() {
		if !restr.Matches(combo) {
			continue
		}
		o.log.Debug("updating", "source", src.Name(), "qualities", combo.String())

		ds, err := src.Extract(ctx, o.env, combo, source.ModeLoad)
		if errors.Is(err, source.ErrDatasetUnavailable) {
			o.log.Warn("dataset unavailable, skipping combination",
				"source", src.Name(), "qualities", combo.String())
			continue
		}
		if err != nil {
			return fmt.Errorf("extract %s %s: %w", src.Name(), combo, err)
		}
		if err := src.Transform(ctx, o.env, combo, ds); err != nil {
			return fmt.Errorf("transform %s %s: %w", src.Name(), combo, err)
		}
		if err := src.Persist(ctx, o.env, combo, ds); err != nil {
			return fmt.Errorf("persist %s %s: %w", src.Name(), combo, err)
		}
	}
	return nil
}

// Fetch pre-warms the local cache by downloading every dataset of the
// selected sources, bounded by the configured concurrency. Nothing is
// loaded into the geodata store.
func (o *Orchestrator) Fetch(ctx context.Context, opts FetchOptions) error {
	srcs, err := resolve(opts.Sources)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.env.Cfg.FetchConcurrency)
	for _, src := range srcs {
		g.Go(func() error {
			if err := o.fetchSource(ctx, src); err != nil {
				return fmt.Errorf("fetch %s: %w", src.Name(), err)
			}
			o.log.Info("fetched source datasets", "source", src.Name())
			return nil
		})
	}
	return g.Wait()
}

func (o *Orchestrator) fetchSource(ctx context.Context, src source.DataSource) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("source %s panicked: %v", src.Name(), r)
		}
	}()

	if cf, ok := src.(source.CustomFlow); ok {
		return cf.FetchCustom(ctx, o.env)
	}
	// Every combination resolves the same files, so the first is enough.
	combos := src.Qualities().Combinations()
	_, err = src.Extract(ctx, o.env, combos[0], source.ModeFetch)
	return err
}

// resolve maps source names to registered sources, keeping registry order.
// Empty input selects the whole registry.
func resolve(names []string) ([]source.DataSource, error) {
	if len(names) == 0 {
		return source.All(), nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		if source.ByName(n) == nil {
			return nil, fmt.Errorf("unknown source %q", n)
		}
		wanted[n] = true
	}
	var out []source.DataSource
	for _, src := range source.All() {
		if wanted[src.Name()] {
			out = append(out, src)
		}
	}
	return out, nil
}
