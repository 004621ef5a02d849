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
	"encoding/json"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Distribution Kinds
// =============================================================================

// DistributionKind identifies the sampling algorithm for a distribution.
type DistributionKind string

const (
	// KindCategorical selects string categories by relative weight.
	KindCategorical DistributionKind = "categorical"

	// KindWeightedRanges selects numeric values from weighted intervals.
	KindWeightedRanges DistributionKind = "weighted_ranges"

	// KindUniform selects string categories with equal probability.
	KindUniform DistributionKind = "uniform"
)

// Value is a sampled outcome: a string category, an int64 from an integral
// range, or a float64 from a real range.
type Value = any

// Context is the read-only record of already-decided field values available
// to conditions and preventers at selection time. The engine never mutates it.
type Context map[string]any

// =============================================================================
// Range Configuration
// =============================================================================

// RangeConfig is one weighted interval of a weighted_ranges distribution.
//
// Range holds exactly two bounds, [min, max]. When both bounds are integral,
// draws from the interval are integers inclusive of both ends; otherwise
// draws are real numbers in [min, max).
type RangeConfig struct {
	Range  []float64 `json:"range" yaml:"range" validate:"len=2"`
	Weight float64   `json:"weight,omitempty" yaml:"weight,omitempty" validate:"gte=0"`
}

// Validate checks the range shape and applies the default weight.
//
// A zero weight is treated as unset and defaulted to 1.0: for values built
// in code, Go's zero value cannot be told apart from an omitted field. The
// wire decoders can tell, and reject an explicit non-positive weight there.
func (r *RangeConfig) Validate() error {
	if len(r.Range) != 2 {
		return fmt.Errorf("%w: range must have exactly two bounds, got %d", ErrValidation, len(r.Range))
	}
	if r.Range[0] > r.Range[1] {
		return fmt.Errorf("%w: range min (%v) must be <= max (%v)", ErrValidation, r.Range[0], r.Range[1])
	}
	if r.Weight == 0 {
		r.Weight = 1.0
	}
	if r.Weight < 0 {
		return fmt.Errorf("%w: range weight must be > 0, got %v", ErrValidation, r.Weight)
	}
	return nil
}

// rawRangeConfig is the wire shape; the pointer weight distinguishes an
// omitted weight (defaulted later) from an explicit zero (rejected).
type rawRangeConfig struct {
	Range  []float64 `json:"range" yaml:"range"`
	Weight *float64  `json:"weight" yaml:"weight"`
}

func (r *RangeConfig) fromWire(raw rawRangeConfig) error {
	if raw.Weight != nil && *raw.Weight <= 0 {
		return fmt.Errorf("%w: range weight must be > 0, got %v", ErrValidation, *raw.Weight)
	}
	r.Range = raw.Range
	r.Weight = 0
	if raw.Weight != nil {
		r.Weight = *raw.Weight
	}
	return nil
}

// UnmarshalYAML decodes a range, rejecting an explicit non-positive weight.
func (r *RangeConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw rawRangeConfig
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return r.fromWire(raw)
}

// UnmarshalJSON decodes a range, rejecting an explicit non-positive weight.
func (r *RangeConfig) UnmarshalJSON(data []byte) error {
	var raw rawRangeConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return r.fromWire(raw)
}

// Min returns the lower bound.
func (r RangeConfig) Min() float64 { return r.Range[0] }

// Max returns the upper bound.
func (r RangeConfig) Max() float64 { return r.Range[1] }

// Integral reports whether both bounds are whole numbers, which switches the
// within-range draw from real to integer semantics.
func (r RangeConfig) Integral() bool {
	return r.Range[0] == math.Trunc(r.Range[0]) && r.Range[1] == math.Trunc(r.Range[1])
}

// =============================================================================
// Distribution Configuration
// =============================================================================

// DistributionConfig describes one probability distribution.
//
// Exactly the fields relevant to Kind are populated: Weights for categorical
// and uniform kinds, Ranges for weighted_ranges. Registered configs are never
// mutated by the engine; every selection works on a Clone.
//
// Thread Safety: safe to read concurrently. Not safe to modify after
// registration.
type DistributionConfig struct {
	Kind    DistributionKind   `json:"type" yaml:"type" validate:"required,oneof=categorical weighted_ranges uniform"`
	Weights map[string]float64 `json:"weights,omitempty" yaml:"weights,omitempty"`
	Ranges  []RangeConfig      `json:"ranges,omitempty" yaml:"ranges,omitempty" validate:"omitempty,dive"`
}

// NewCategoricalConfig builds a validated categorical distribution.
func NewCategoricalConfig(weights map[string]float64) (DistributionConfig, error) {
	cfg := DistributionConfig{Kind: KindCategorical, Weights: weights}
	if err := cfg.Validate(); err != nil {
		return DistributionConfig{}, err
	}
	return cfg, nil
}

// NewUniformConfig builds a validated uniform distribution. Weight magnitudes
// are ignored at sampling time; positive weight marks membership.
func NewUniformConfig(weights map[string]float64) (DistributionConfig, error) {
	cfg := DistributionConfig{Kind: KindUniform, Weights: weights}
	if err := cfg.Validate(); err != nil {
		return DistributionConfig{}, err
	}
	return cfg, nil
}

// NewWeightedRangesConfig builds a validated weighted_ranges distribution.
func NewWeightedRangesConfig(ranges []RangeConfig) (DistributionConfig, error) {
	cfg := DistributionConfig{Kind: KindWeightedRanges, Ranges: ranges}
	if err := cfg.Validate(); err != nil {
		return DistributionConfig{}, err
	}
	return cfg, nil
}

// Validate checks kind membership, weight signs, and range shapes.
//
// Validation failures name the offending key or bound so config authors can
// find the bad entry without a debugger.
func (c *DistributionConfig) Validate() error {
	switch c.Kind {
	case KindCategorical, KindWeightedRanges, KindUniform:
	default:
		return fmt.Errorf("%w: unknown distribution kind %q", ErrValidation, c.Kind)
	}
	for key, weight := range c.Weights {
		if weight < 0 {
			return fmt.Errorf("%w: weight for %q must be non-negative, got %v", ErrValidation, key, weight)
		}
	}
	for i := range c.Ranges {
		if err := c.Ranges[i].Validate(); err != nil {
			return fmt.Errorf("range %d: %w", i, err)
		}
	}
	return nil
}

// Clone returns a deep copy. Adjustment stages operate on clones so the
// registered base config survives every selection unchanged.
func (c DistributionConfig) Clone() DistributionConfig {
	out := DistributionConfig{Kind: c.Kind}
	if c.Weights != nil {
		out.Weights = make(map[string]float64, len(c.Weights))
		for k, v := range c.Weights {
			out.Weights[k] = v
		}
	}
	if c.Ranges != nil {
		out.Ranges = make([]RangeConfig, len(c.Ranges))
		for i, r := range c.Ranges {
			out.Ranges[i] = RangeConfig{Weight: r.Weight, Range: append([]float64(nil), r.Range...)}
		}
	}
	return out
}

// =============================================================================
// Correlation Configuration
// =============================================================================

// CorrelationConfig reweights distributions when a condition over the current
// context holds.
//
// Adjustments maps distribution name to a partial category->weight override.
// Correlations apply in registration order with overwrite-wins semantics:
// the last matching correlation's value for a category is the one in effect.
type CorrelationConfig struct {
	Condition   Condition                     `json:"condition" yaml:"condition"`
	Adjustments map[string]map[string]float64 `json:"adjustments" yaml:"adjustments" validate:"required,min=1"`
}

// Validate rejects correlations with no adjustments or negative overrides.
func (c *CorrelationConfig) Validate() error {
	if len(c.Adjustments) == 0 {
		return fmt.Errorf("%w: correlation has no adjustments", ErrValidation)
	}
	for dist, overrides := range c.Adjustments {
		for key, weight := range overrides {
			if weight < 0 {
				return fmt.Errorf("%w: adjustment %s.%s must be non-negative, got %v", ErrValidation, dist, key, weight)
			}
		}
	}
	return nil
}

// =============================================================================
// Constraint Configuration
// =============================================================================

// ConstraintKind classifies a business-rule constraint.
type ConstraintKind string

const (
	// ConstraintHard constraints participate in preventive adjustment.
	ConstraintHard ConstraintKind = "hard"

	// ConstraintSoft constraints are registered but inert during selection,
	// reserved for post-hoc reporting.
	ConstraintSoft ConstraintKind = "soft"

	// ConstraintExclusion constraints are registered but inert during
	// selection, reserved for future use.
	ConstraintExclusion ConstraintKind = "exclusion"
)

// ConstraintConfig is a declarative business rule.
//
// Rule keys into the engine's preventer registry; Params carries the
// rule-specific parameters (procedure names, age bounds, required gender).
type ConstraintConfig struct {
	Kind    ConstraintKind `json:"type" yaml:"type" validate:"required,oneof=hard soft exclusion"`
	Rule    string         `json:"rule" yaml:"rule" validate:"required,min=1"`
	Params  map[string]any `json:"params" yaml:"params"`
	Message string         `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

// Validate checks the kind set and rule identifier.
func (c *ConstraintConfig) Validate() error {
	switch c.Kind {
	case ConstraintHard, ConstraintSoft, ConstraintExclusion:
	default:
		return fmt.Errorf("%w: constraint type must be hard, soft, or exclusion, got %q", ErrValidation, c.Kind)
	}
	if c.Rule == "" {
		return fmt.Errorf("%w: constraint rule must not be empty", ErrValidation)
	}
	return nil
}

// paramString reads a string parameter, empty if absent or mistyped.
func (c ConstraintConfig) paramString(key string) string {
	s, _ := c.Params[key].(string)
	return s
}

// paramNumber reads a numeric parameter, tolerating the int/float ambiguity
// of YAML and JSON decoding.
func (c ConstraintConfig) paramNumber(key string) (float64, bool) {
	return toFloat(c.Params[key])
}
