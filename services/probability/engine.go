// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package probability

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/AleutianAI/synthgen/pkg/logging"
)

// =============================================================================
// Engine
// =============================================================================

// Engine orchestrates probability-driven value selection.
//
// # Description
//
// Engine owns five registries: named distributions, ordered correlations,
// ordered constraints, strategies keyed by distribution kind, and preventers
// keyed by rule identifier. Each selection folds matching correlations and
// then hard-constraint prevention into a fresh copy of the registered base
// configuration, resolves the strategy for the result's kind, and samples.
//
// # Thread Safety
//
// Registration calls are not synchronized and belong to setup time; guard
// them externally if registration must race with selection. Selection calls
// are safe to run concurrently with each other: every call deep-copies the
// base configuration before mutating it, and the default random source is
// the concurrency-safe process-wide one. An engine built with WithRand is
// single-goroutine only.
type Engine struct {
	distributions map[string]DistributionConfig
	correlations  []CorrelationConfig
	constraints   []ConstraintConfig
	strategies    map[DistributionKind]Strategy
	preventers    map[string]Preventer

	src     randSource
	log     *logging.Logger
	metrics bool
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithRand backs the engine's built-in strategies with a seeded source for
// deterministic runs. Engines built this way must not select concurrently.
func WithRand(src *rand.Rand) Option {
	return func(e *Engine) { e.src = src }
}

// WithLogger sets the structured logger. Defaults to a quiet logger.
func WithLogger(log *logging.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics toggles Prometheus counters. On by default; tests that assert
// exact counts typically turn it off.
func WithMetrics(enabled bool) Option {
	return func(e *Engine) { e.metrics = enabled }
}

// NewEngine creates an engine with the three built-in strategies and the two
// built-in preventers installed.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		distributions: make(map[string]DistributionConfig),
		strategies:    make(map[DistributionKind]Strategy),
		preventers:    make(map[string]Preventer),
		metrics:       true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logging.New(logging.Config{Quiet: true})
	}

	e.strategies[KindCategorical] = NewCategoricalStrategy(e.src)
	e.strategies[KindWeightedRanges] = NewWeightedRangesStrategy(e.src)
	e.strategies[KindUniform] = NewUniformStrategy(e.src)

	e.preventers[RuleProcedureGender] = NewGenderPreventer()
	e.preventers[RuleProcedureAgeRange] = NewAgeRangePreventer()
	return e
}

// =============================================================================
// Registration
// =============================================================================

// RegisterDistribution stores a distribution under a name, overwriting any
// previous registration for that name.
func (e *Engine) RegisterDistribution(name string, cfg DistributionConfig) {
	e.distributions[name] = cfg
	e.log.Debug("registered distribution", "name", name, "kind", string(cfg.Kind))
}

// RegisterCorrelation appends a correlation. Registration order is
// significant: later-registered matching correlations overwrite earlier
// overrides for the same category.
func (e *Engine) RegisterCorrelation(cfg CorrelationConfig) {
	e.correlations = append(e.correlations, cfg)
}

// RegisterConstraint appends a constraint. Hard constraints apply during
// selection in registration order; soft and exclusion kinds are held for
// future reporting and do not affect selection.
func (e *Engine) RegisterConstraint(cfg ConstraintConfig) {
	e.constraints = append(e.constraints, cfg)
}

// RegisterStrategy installs or replaces the strategy for a distribution
// kind. Last registration wins.
func (e *Engine) RegisterStrategy(kind DistributionKind, s Strategy) {
	e.strategies[kind] = s
}

// RegisterPreventer installs or replaces the preventer for a rule
// identifier. Last registration wins.
func (e *Engine) RegisterPreventer(rule string, p Preventer) {
	e.preventers[rule] = p
}

// =============================================================================
// Selection
// =============================================================================

// SelectFromDistribution draws one value from a named distribution,
// adjusting for correlations and hard constraints against the given context.
// A nil context is treated as empty.
func (e *Engine) SelectFromDistribution(name string, ctx Context) (Value, error) {
	cfg, err := e.adjustedConfig(name, ctx)
	if err != nil {
		e.countError(name, err)
		return nil, err
	}
	strategy, err := e.strategyFor(cfg)
	if err != nil {
		e.countError(name, err)
		return nil, err
	}
	value, err := strategy.Select(cfg)
	if err != nil {
		e.countError(name, err)
		return nil, err
	}
	if e.metrics {
		selectionsTotal.WithLabelValues(name, string(cfg.Kind)).Inc()
	}
	return value, nil
}

// SelectBulk draws count values from a named distribution.
//
// With contexts supplied, their length must equal count and each draw runs
// its own full adjustment pass against its own context, failing fast on the
// first bad item. Without contexts, one adjustment runs against the empty
// context and the strategy's batched entry point draws everything at once.
func (e *Engine) SelectBulk(name string, count int, contexts []Context) ([]Value, error) {
	if count < 0 {
		err := fmt.Errorf("%w: count must be non-negative, got %d", ErrInvalidArgument, count)
		e.countError(name, err)
		return nil, err
	}
	if contexts != nil && len(contexts) != count {
		err := fmt.Errorf("%w: contexts length (%d) must match count (%d)", ErrInvalidArgument, len(contexts), count)
		e.countError(name, err)
		return nil, err
	}

	if contexts == nil {
		cfg, err := e.adjustedConfig(name, nil)
		if err != nil {
			e.countError(name, err)
			return nil, err
		}
		strategy, err := e.strategyFor(cfg)
		if err != nil {
			e.countError(name, err)
			return nil, err
		}
		values, err := strategy.SelectBulk(cfg, count)
		if err != nil {
			e.countError(name, err)
			return nil, err
		}
		if e.metrics {
			selectionsTotal.WithLabelValues(name, string(cfg.Kind)).Add(float64(count))
		}
		return values, nil
	}

	values := make([]Value, 0, count)
	for i, ctx := range contexts {
		value, err := e.SelectFromDistribution(name, ctx)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		values = append(values, value)
	}
	return values, nil
}

// =============================================================================
// Adjustment Pipeline
// =============================================================================

// adjustedConfig computes the per-selection configuration: a deep copy of
// the registered base, with matching correlations folded in first and hard
// constraints applied second.
func (e *Engine) adjustedConfig(name string, ctx Context) (DistributionConfig, error) {
	base, ok := e.distributions[name]
	if !ok {
		return DistributionConfig{}, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	if ctx == nil {
		ctx = Context{}
	}

	cfg := base.Clone()

	for _, correlation := range e.correlations {
		if !correlation.Condition.Matches(ctx) {
			continue
		}
		overrides, ok := correlation.Adjustments[name]
		if !ok || len(overrides) == 0 {
			continue
		}
		if cfg.Weights == nil {
			return DistributionConfig{}, fmt.Errorf(
				"%w: correlation targets %q which has no weight mapping (kind %s)", ErrInvalidConfig, name, cfg.Kind)
		}
		for category, weight := range overrides {
			cfg.Weights[category] = weight
		}
		e.log.Debug("applied correlation", "distribution", name, "overrides", len(overrides))
	}

	for _, constraint := range e.constraints {
		if constraint.Kind != ConstraintHard {
			continue
		}
		preventer, ok := e.preventers[constraint.Rule]
		if !ok {
			continue
		}
		adjusted := preventer.Apply(constraint, name, cfg, ctx)
		if e.metrics && weightsChanged(cfg, adjusted) {
			preventedTotal.WithLabelValues(name, constraint.Rule).Inc()
		}
		cfg = adjusted
	}

	return cfg, nil
}

func (e *Engine) strategyFor(cfg DistributionConfig) (Strategy, error) {
	strategy, ok := e.strategies[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, cfg.Kind)
	}
	return strategy, nil
}

// weightsChanged reports whether a preventer actually narrowed the config.
func weightsChanged(before, after DistributionConfig) bool {
	if len(before.Weights) != len(after.Weights) {
		return true
	}
	for k, v := range before.Weights {
		if after.Weights[k] != v {
			return true
		}
	}
	return false
}

// countError records a failed call under its taxonomy reason.
func (e *Engine) countError(name string, err error) {
	if !e.metrics {
		return
	}
	reason := "invalid_config"
	switch {
	case errors.Is(err, ErrNotRegistered):
		reason = "not_registered"
	case errors.Is(err, ErrUnsupportedKind):
		reason = "unsupported_kind"
	case errors.Is(err, ErrInvalidArgument):
		reason = "invalid_argument"
	}
	selectionErrors.WithLabelValues(name, reason).Inc()
}
