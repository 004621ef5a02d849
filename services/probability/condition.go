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

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Condition Tree
// =============================================================================

// conditionKind tags the variant a Condition node holds.
type conditionKind int

const (
	condLeaf conditionKind = iota
	condAll
	condAny
)

// Condition is a recursive predicate over a selection context.
//
// A node is exactly one of: a leaf (field with an exact value or an inclusive
// numeric range), a conjunction over children, or a disjunction over children.
// The fields are unexported so an ambiguous node (leaf and composite at once,
// or both all and any) cannot be constructed; the wire decoders reject such
// input with ErrValidation.
//
// Thread Safety: a Condition is immutable after construction and safe for
// concurrent use.
type Condition struct {
	kind     conditionKind
	field    string
	value    any
	hasValue bool
	span     []float64 // nil unless a range leaf
	children []Condition
}

// FieldEquals returns a leaf condition matching by exact value.
func FieldEquals(field string, value any) Condition {
	return Condition{kind: condLeaf, field: field, value: value, hasValue: true}
}

// FieldInRange returns a leaf condition matching by inclusive numeric
// containment in [min, max].
func FieldInRange(field string, min, max float64) Condition {
	return Condition{kind: condLeaf, field: field, span: []float64{min, max}}
}

// AllOf returns a conjunction over the given conditions.
func AllOf(conds ...Condition) Condition {
	return Condition{kind: condAll, children: conds}
}

// AnyOf returns a disjunction over the given conditions.
func AnyOf(conds ...Condition) Condition {
	return Condition{kind: condAny, children: conds}
}

// Matches evaluates the condition against a context.
//
// Evaluation is depth-first and short-circuiting. A leaf whose field is
// absent from the context fails closed: it does not match and never errors.
// Pure function of tree and context; no side effects.
func (c Condition) Matches(ctx Context) bool {
	switch c.kind {
	case condAll:
		for _, child := range c.children {
			if !child.Matches(ctx) {
				return false
			}
		}
		return true
	case condAny:
		for _, child := range c.children {
			if child.Matches(ctx) {
				return true
			}
		}
		return false
	}

	got, ok := ctx[c.field]
	if c.field == "" || !ok {
		return false
	}
	if c.hasValue {
		return equalValues(got, c.value)
	}
	if len(c.span) == 2 {
		v, numeric := toFloat(got)
		return numeric && c.span[0] <= v && v <= c.span[1]
	}
	return false
}

// =============================================================================
// Wire Decoding
// =============================================================================

// rawCondition is the permissive wire shape; buildCondition narrows it to a
// single variant or rejects it.
type rawCondition struct {
	Field string      `json:"field,omitempty" yaml:"field,omitempty"`
	Value any         `json:"value,omitempty" yaml:"value,omitempty"`
	Range []float64   `json:"range,omitempty" yaml:"range,omitempty"`
	All   []Condition `json:"all,omitempty" yaml:"all,omitempty"`
	Any   []Condition `json:"any,omitempty" yaml:"any,omitempty"`
}

func buildCondition(raw rawCondition) (Condition, error) {
	composite := len(raw.All) > 0 || len(raw.Any) > 0
	leaf := raw.Field != "" || raw.Value != nil || len(raw.Range) > 0

	switch {
	case len(raw.All) > 0 && len(raw.Any) > 0:
		return Condition{}, fmt.Errorf("%w: condition node carries both 'all' and 'any'", ErrValidation)
	case composite && leaf:
		return Condition{}, fmt.Errorf("%w: condition node mixes composite and leaf fields", ErrValidation)
	case len(raw.All) > 0:
		return Condition{kind: condAll, children: raw.All}, nil
	case len(raw.Any) > 0:
		return Condition{kind: condAny, children: raw.Any}, nil
	}

	if len(raw.Range) > 0 {
		if len(raw.Range) != 2 {
			return Condition{}, fmt.Errorf("%w: condition range must have exactly two bounds, got %d", ErrValidation, len(raw.Range))
		}
		if raw.Value != nil {
			return Condition{}, fmt.Errorf("%w: condition leaf carries both 'value' and 'range'", ErrValidation)
		}
		return Condition{kind: condLeaf, field: raw.Field, span: raw.Range}, nil
	}
	return Condition{kind: condLeaf, field: raw.Field, value: raw.Value, hasValue: raw.Value != nil}, nil
}

// UnmarshalYAML decodes a condition node, rejecting ambiguous shapes.
func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	var raw rawCondition
	if err := node.Decode(&raw); err != nil {
		return err
	}
	built, err := buildCondition(raw)
	if err != nil {
		return err
	}
	*c = built
	return nil
}

// UnmarshalJSON decodes a condition node, rejecting ambiguous shapes.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw rawCondition
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	built, err := buildCondition(raw)
	if err != nil {
		return err
	}
	*c = built
	return nil
}

// =============================================================================
// Scalar Comparison Helpers
// =============================================================================

// toFloat widens any numeric scalar to float64. YAML decodes whole numbers as
// int and JSON as float64; comparisons must not care which.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// equalValues compares scalars with numeric awareness, so an int64 context
// value equals a float right-hand side of the same magnitude.
func equalValues(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok2 := toFloat(b)
		return ok2 && af == bf
	}
	return a == b
}
