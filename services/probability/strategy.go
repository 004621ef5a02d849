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
	"fmt"
	"math/rand/v2"
	"sort"
)

// =============================================================================
// Strategy Interface
// =============================================================================

// Strategy samples values from one kind of distribution.
//
// # Description
//
// One Strategy is registered per DistributionKind. Select draws a single
// value; SelectBulk draws count independent values with replacement and must
// amortize any per-config preparation (weight filtering, normalization)
// across the whole batch rather than looping over Select.
//
// # Thread Safety
//
// The built-in strategies are safe for concurrent use when backed by the
// default process-wide random source. A strategy constructed around a seeded
// *rand.Rand is not, and is intended for single-goroutine deterministic runs.
type Strategy interface {
	// Select draws one value from the distribution.
	Select(cfg DistributionConfig) (Value, error)

	// SelectBulk draws count independent values with replacement.
	SelectBulk(cfg DistributionConfig, count int) ([]Value, error)
}

// randSource is the randomness a strategy consumes. Both math/rand/v2's
// top-level functions (via globalRand) and a seeded *rand.Rand satisfy it.
type randSource interface {
	Float64() float64
	IntN(n int) int
}

// globalRand adapts the process-wide math/rand/v2 source, which is safe for
// concurrent use.
type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

func orGlobal(src randSource) randSource {
	if src == nil {
		return globalRand{}
	}
	return src
}

// =============================================================================
// Weighted Draw Helpers
// =============================================================================

// activeCategories returns the strictly-positive-weight categories in sorted
// order with their running cumulative weights. Sorted order keeps draws
// reproducible under a seeded source regardless of map iteration.
func activeCategories(weights map[string]float64) (keys []string, cumulative []float64, total float64) {
	keys = make([]string, 0, len(weights))
	for k, w := range weights {
		if w > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	cumulative = make([]float64, len(keys))
	for i, k := range keys {
		total += weights[k]
		cumulative[i] = total
	}
	return keys, cumulative, total
}

// drawIndex picks an index by cumulative weight. The final index wins on
// floating-point shortfall.
func drawIndex(src randSource, cumulative []float64, total float64) int {
	r := src.Float64() * total
	for i, c := range cumulative {
		if r < c {
			return i
		}
	}
	return len(cumulative) - 1
}

// =============================================================================
// Categorical Strategy
// =============================================================================

// CategoricalStrategy draws string categories by relative weight.
type CategoricalStrategy struct {
	src randSource
}

// NewCategoricalStrategy creates a categorical strategy. A nil source falls
// back to the process-wide random source.
func NewCategoricalStrategy(src randSource) *CategoricalStrategy {
	return &CategoricalStrategy{src: orGlobal(src)}
}

var _ Strategy = (*CategoricalStrategy)(nil)

// Select draws one category using weighted random choice over the
// strictly-positive weights.
func (s *CategoricalStrategy) Select(cfg DistributionConfig) (Value, error) {
	values, err := s.SelectBulk(cfg, 1)
	if err != nil {
		return nil, err
	}
	return values[0], nil
}

// SelectBulk filters and normalizes once, then draws count categories from
// the same distribution.
func (s *CategoricalStrategy) SelectBulk(cfg DistributionConfig, count int) ([]Value, error) {
	if len(cfg.Weights) == 0 {
		return nil, fmt.Errorf("%w: categorical distribution requires weights", ErrInvalidConfig)
	}
	keys, cumulative, total := activeCategories(cfg.Weights)
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no categories with positive weight", ErrInvalidConfig)
	}

	out := make([]Value, 0, max(count, 0))
	for i := 0; i < count; i++ {
		out = append(out, keys[drawIndex(s.src, cumulative, total)])
	}
	return out, nil
}

// =============================================================================
// Weighted Ranges Strategy
// =============================================================================

// WeightedRangesStrategy draws numeric values from weighted intervals.
type WeightedRangesStrategy struct {
	src randSource
}

// NewWeightedRangesStrategy creates a weighted-ranges strategy. A nil source
// falls back to the process-wide random source.
func NewWeightedRangesStrategy(src randSource) *WeightedRangesStrategy {
	return &WeightedRangesStrategy{src: orGlobal(src)}
}

var _ Strategy = (*WeightedRangesStrategy)(nil)

// Select draws a range by its weight, then a value within it: integral
// bounds yield an int64 inclusive of both ends, anything else a float64 in
// [min, max).
func (s *WeightedRangesStrategy) Select(cfg DistributionConfig) (Value, error) {
	values, err := s.SelectBulk(cfg, 1)
	if err != nil {
		return nil, err
	}
	return values[0], nil
}

// SelectBulk draws count independent range selections, each followed by its
// own within-range draw.
func (s *WeightedRangesStrategy) SelectBulk(cfg DistributionConfig, count int) ([]Value, error) {
	if len(cfg.Ranges) == 0 {
		return nil, fmt.Errorf("%w: weighted ranges distribution requires ranges", ErrInvalidConfig)
	}

	cumulative := make([]float64, len(cfg.Ranges))
	var total float64
	for i, r := range cfg.Ranges {
		total += r.Weight
		cumulative[i] = total
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: no ranges with positive weight", ErrInvalidConfig)
	}

	out := make([]Value, 0, max(count, 0))
	for i := 0; i < count; i++ {
		out = append(out, s.drawWithin(cfg.Ranges[drawIndex(s.src, cumulative, total)]))
	}
	return out, nil
}

func (s *WeightedRangesStrategy) drawWithin(r RangeConfig) Value {
	if r.Integral() {
		lo, hi := int64(r.Min()), int64(r.Max())
		return lo + int64(s.src.IntN(int(hi-lo)+1))
	}
	return r.Min() + s.src.Float64()*(r.Max()-r.Min())
}

// =============================================================================
// Uniform Strategy
// =============================================================================

// UniformStrategy draws categories with equal probability. The weight map is
// consulted only for membership: positive weight means eligible.
type UniformStrategy struct {
	src randSource
}

// NewUniformStrategy creates a uniform strategy. A nil source falls back to
// the process-wide random source.
func NewUniformStrategy(src randSource) *UniformStrategy {
	return &UniformStrategy{src: orGlobal(src)}
}

var _ Strategy = (*UniformStrategy)(nil)

// Select draws one category uniformly among positive-weight members.
func (s *UniformStrategy) Select(cfg DistributionConfig) (Value, error) {
	values, err := s.SelectBulk(cfg, 1)
	if err != nil {
		return nil, err
	}
	return values[0], nil
}

// SelectBulk draws count categories uniformly with replacement.
func (s *UniformStrategy) SelectBulk(cfg DistributionConfig, count int) ([]Value, error) {
	if len(cfg.Weights) == 0 {
		return nil, fmt.Errorf("%w: uniform distribution requires categories", ErrInvalidConfig)
	}
	keys, _, _ := activeCategories(cfg.Weights)
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no categories with positive weight", ErrInvalidConfig)
	}

	out := make([]Value, 0, max(count, 0))
	for i := 0; i < count; i++ {
		out = append(out, keys[s.src.IntN(len(keys))])
	}
	return out, nil
}
