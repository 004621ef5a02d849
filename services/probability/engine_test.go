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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(seed uint64) *Engine {
	return NewEngine(WithRand(testRand(seed)), WithMetrics(false))
}

func TestEngineSelectUnregisteredDistribution(t *testing.T) {
	e := newTestEngine(1)

	_, err := e.SelectFromDistribution("nonexistent", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotRegistered)
	assert.Contains(t, err.Error(), "nonexistent", "error must name the missing distribution")
}

func TestEngineRegistrationOverwrites(t *testing.T) {
	e := newTestEngine(2)
	e.RegisterDistribution("status", DistributionConfig{
		Kind:    KindCategorical,
		Weights: map[string]float64{"old": 1},
	})
	e.RegisterDistribution("status", DistributionConfig{
		Kind:    KindCategorical,
		Weights: map[string]float64{"new": 1},
	})

	v, err := e.SelectFromDistribution("status", nil)
	require.NoError(t, err)
	assert.Equal(t, "new", v, "re-registration under the same name must replace the config")
}

func TestEngineUnsupportedKind(t *testing.T) {
	e := newTestEngine(3)
	e.RegisterDistribution("odd", DistributionConfig{Kind: "gaussian"})

	_, err := e.SelectFromDistribution("odd", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedKind)
	assert.Contains(t, err.Error(), "gaussian")
}

// constantStrategy always returns a fixed value; used to exercise the
// strategy registry.
type constantStrategy struct{ value Value }

func (s constantStrategy) Select(DistributionConfig) (Value, error) { return s.value, nil }
func (s constantStrategy) SelectBulk(_ DistributionConfig, count int) ([]Value, error) {
	out := make([]Value, count)
	for i := range out {
		out[i] = s.value
	}
	return out, nil
}

func TestEngineCustomStrategy(t *testing.T) {
	e := newTestEngine(4)
	e.RegisterStrategy("constant", constantStrategy{value: "fixed"})
	e.RegisterDistribution("pinned", DistributionConfig{Kind: "constant"})

	v, err := e.SelectFromDistribution("pinned", nil)
	require.NoError(t, err)
	assert.Equal(t, "fixed", v)

	values, err := e.SelectBulk("pinned", 3, nil)
	require.NoError(t, err)
	assert.Equal(t, []Value{"fixed", "fixed", "fixed"}, values)
}

func TestEngineCorrelationAdjusts(t *testing.T) {
	e := newTestEngine(5)
	e.RegisterDistribution("procedures", DistributionConfig{
		Kind:    KindCategorical,
		Weights: map[string]float64{"pelvic_ultrasound": 0.1, "chest_xray": 0.9},
	})
	e.RegisterCorrelation(CorrelationConfig{
		Condition: FieldEquals("gender", "female"),
		Adjustments: map[string]map[string]float64{
			"procedures": {"pelvic_ultrasound": 0.9, "chest_xray": 0.1},
		},
	})

	const draws = 2000
	var pelvic int
	for i := 0; i < draws; i++ {
		v, err := e.SelectFromDistribution("procedures", Context{"gender": "female"})
		require.NoError(t, err)
		if v == "pelvic_ultrasound" {
			pelvic++
		}
	}
	assert.InDelta(t, 0.9, float64(pelvic)/draws, 0.05, "matching correlation must reweight the draw")

	// A non-matching context leaves the base weights in force.
	pelvic = 0
	for i := 0; i < draws; i++ {
		v, err := e.SelectFromDistribution("procedures", Context{"gender": "male"})
		require.NoError(t, err)
		if v == "pelvic_ultrasound" {
			pelvic++
		}
	}
	assert.InDelta(t, 0.1, float64(pelvic)/draws, 0.05)
}

func TestEngineCorrelationStackingLastWins(t *testing.T) {
	e := newTestEngine(6)
	e.RegisterDistribution("procedures", DistributionConfig{
		Kind:    KindCategorical,
		Weights: map[string]float64{"pelvic_ultrasound": 0.2, "chest_xray": 0.3},
	})
	e.RegisterCorrelation(CorrelationConfig{
		Condition:   FieldEquals("gender", "female"),
		Adjustments: map[string]map[string]float64{"procedures": {"pelvic_ultrasound": 0.60}},
	})
	e.RegisterCorrelation(CorrelationConfig{
		Condition:   FieldEquals("gender", "female"),
		Adjustments: map[string]map[string]float64{"procedures": {"pelvic_ultrasound": 0.70}},
	})

	// Later registration overwrites: effective weights 0.70 and 0.30.
	const draws = 2000
	var pelvic int
	for i := 0; i < draws; i++ {
		v, err := e.SelectFromDistribution("procedures", Context{"gender": "female"})
		require.NoError(t, err)
		if v == "pelvic_ultrasound" {
			pelvic++
		}
	}
	assert.InDelta(t, 0.70, float64(pelvic)/draws, 0.05)
}

func TestEngineCorrelationOnRangesFailsLoudly(t *testing.T) {
	e := newTestEngine(7)
	e.RegisterDistribution("ages", DistributionConfig{
		Kind:   KindWeightedRanges,
		Ranges: []RangeConfig{{Range: []float64{18, 65}, Weight: 1}},
	})
	e.RegisterCorrelation(CorrelationConfig{
		Condition:   FieldEquals("dept", "pediatrics"),
		Adjustments: map[string]map[string]float64{"ages": {"young": 5}},
	})

	_, err := e.SelectFromDistribution("ages", Context{"dept": "pediatrics"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "ages")

	// The same distribution still works when the correlation does not match.
	_, err = e.SelectFromDistribution("ages", Context{"dept": "oncology"})
	assert.NoError(t, err)
}

func TestEngineHardConstraintGenderInvariant(t *testing.T) {
	e := newTestEngine(8)
	e.RegisterDistribution("procedures", proceduresConfig())
	e.RegisterConstraint(genderConstraint())

	for i := 0; i < 500; i++ {
		v, err := e.SelectFromDistribution("procedures", Context{"gender": "male"})
		require.NoError(t, err)
		assert.NotEqual(t, "obstetric_ultrasound", v, "constrained procedure must never be drawn")
	}

	// Female contexts keep the full distribution reachable.
	seen := map[Value]bool{}
	for i := 0; i < 500; i++ {
		v, err := e.SelectFromDistribution("procedures", Context{"gender": "female"})
		require.NoError(t, err)
		seen[v] = true
	}
	assert.True(t, seen["obstetric_ultrasound"])
}

func TestEngineHardConstraintAgeInvariant(t *testing.T) {
	e := newTestEngine(9)
	e.RegisterDistribution("procedures", proceduresConfig())
	e.RegisterConstraint(ageConstraint(15, 50))

	for _, age := range []int{5, 14, 51, 80} {
		for i := 0; i < 200; i++ {
			v, err := e.SelectFromDistribution("procedures", Context{"age": age})
			require.NoError(t, err)
			assert.NotEqual(t, "obstetric_ultrasound", v, "age %d is outside the allowed range", age)
		}
	}
}

func TestEngineSoftConstraintInert(t *testing.T) {
	e := newTestEngine(10)
	e.RegisterDistribution("procedures", DistributionConfig{
		Kind:    KindCategorical,
		Weights: map[string]float64{"obstetric_ultrasound": 1},
	})
	soft := genderConstraint()
	soft.Kind = ConstraintSoft
	e.RegisterConstraint(soft)

	v, err := e.SelectFromDistribution("procedures", Context{"gender": "male"})
	require.NoError(t, err)
	assert.Equal(t, "obstetric_ultrasound", v, "soft constraints must not affect selection")
}

func TestEngineUnknownConstraintRuleIgnored(t *testing.T) {
	e := newTestEngine(11)
	e.RegisterDistribution("procedures", DistributionConfig{
		Kind:    KindCategorical,
		Weights: map[string]float64{"only": 1},
	})
	e.RegisterConstraint(ConstraintConfig{Kind: ConstraintHard, Rule: "no_such_rule"})

	v, err := e.SelectFromDistribution("procedures", nil)
	require.NoError(t, err)
	assert.Equal(t, "only", v)
}

// zeroAllPreventer zeroes every category regardless of context.
type zeroAllPreventer struct{}

func (zeroAllPreventer) Apply(_ ConstraintConfig, _ string, cfg DistributionConfig, _ Context) DistributionConfig {
	out := cfg.Clone()
	for k := range out.Weights {
		out.Weights[k] = 0
	}
	return out
}

func TestEngineCustomPreventerOverride(t *testing.T) {
	e := newTestEngine(12)
	e.RegisterDistribution("procedures", proceduresConfig())
	e.RegisterConstraint(genderConstraint())
	e.RegisterPreventer(RuleProcedureGender, zeroAllPreventer{})

	_, err := e.SelectFromDistribution("procedures", Context{"gender": "female"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig, "all weights zeroed leaves nothing to draw")
}

func TestEngineRegisteredConfigSurvivesSelection(t *testing.T) {
	e := newTestEngine(13)
	base := proceduresConfig()
	e.RegisterDistribution("procedures", base)
	e.RegisterConstraint(genderConstraint())

	for i := 0; i < 50; i++ {
		_, err := e.SelectFromDistribution("procedures", Context{"gender": "male"})
		require.NoError(t, err)
	}

	// Prevention must have operated on clones only.
	v, err := e.SelectFromDistribution("procedures", Context{"gender": "female"})
	require.NoError(t, err)
	_ = v
	assert.Equal(t, 0.3, base.Weights["obstetric_ultrasound"])
}

func TestEngineSelectBulkValidation(t *testing.T) {
	e := newTestEngine(14)
	e.RegisterDistribution("procedures", proceduresConfig())

	_, err := e.SelectBulk("procedures", -1, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = e.SelectBulk("procedures", 10, make([]Context, 5))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "contexts length (5) must match count (10)")
}

func TestEngineSelectBulkWithoutContexts(t *testing.T) {
	e := newTestEngine(15)
	e.RegisterDistribution("procedures", proceduresConfig())

	values, err := e.SelectBulk("procedures", 100, nil)
	require.NoError(t, err)
	assert.Len(t, values, 100)

	values, err = e.SelectBulk("procedures", 0, nil)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestEngineSelectBulkPerContext(t *testing.T) {
	e := newTestEngine(16)
	e.RegisterDistribution("procedures", proceduresConfig())
	e.RegisterConstraint(genderConstraint())

	contexts := make([]Context, 60)
	for i := range contexts {
		if i%2 == 0 {
			contexts[i] = Context{"gender": "male"}
		} else {
			contexts[i] = Context{"gender": "female"}
		}
	}

	values, err := e.SelectBulk("procedures", 60, contexts)
	require.NoError(t, err)
	require.Len(t, values, 60)
	for i, v := range values {
		if i%2 == 0 {
			assert.NotEqual(t, "obstetric_ultrasound", v, "male context at index %d", i)
		}
	}
}

func TestEngineSelectBulkFailFastNamesItem(t *testing.T) {
	e := newTestEngine(17)
	e.RegisterDistribution("procedures", proceduresConfig())
	e.RegisterCorrelation(CorrelationConfig{
		Condition:   FieldEquals("poison", true),
		Adjustments: map[string]map[string]float64{"ages": {"x": 1}},
	})
	e.RegisterDistribution("ages", DistributionConfig{
		Kind:   KindWeightedRanges,
		Ranges: []RangeConfig{{Range: []float64{1, 2}, Weight: 1}},
	})

	contexts := []Context{{}, {}, {"poison": true}}
	_, err := e.SelectBulk("ages", 3, contexts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item 2", "error must identify the failing element")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// TestEngineEndToEndCohort drives the full pipeline: gender and age are drawn
// first, then 100 procedure selections run against those contexts with both
// hard constraints active.
func TestEngineEndToEndCohort(t *testing.T) {
	e := newTestEngine(18)
	e.RegisterDistribution("gender", DistributionConfig{
		Kind:    KindCategorical,
		Weights: map[string]float64{"female": 0.65, "male": 0.35},
	})
	e.RegisterDistribution("age", DistributionConfig{
		Kind: KindWeightedRanges,
		Ranges: []RangeConfig{
			{Range: []float64{15, 25}, Weight: 0.2},
			{Range: []float64{26, 35}, Weight: 0.3},
			{Range: []float64{36, 50}, Weight: 0.2},
			{Range: []float64{51, 70}, Weight: 0.2},
			{Range: []float64{71, 90}, Weight: 0.1},
		},
	})
	e.RegisterDistribution("procedures", DistributionConfig{
		Kind: KindCategorical,
		Weights: map[string]float64{
			"obstetric_ultrasound": 0.15,
			"pelvic_ultrasound":    0.15,
			"chest_xray":           0.30,
			"mri_brain":            0.20,
			"ct_abdomen":           0.20,
		},
	})
	e.RegisterConstraint(genderConstraint())
	e.RegisterConstraint(ageConstraint(15, 50))

	const n = 100
	contexts := make([]Context, n)
	for i := range contexts {
		gender, err := e.SelectFromDistribution("gender", nil)
		require.NoError(t, err)
		age, err := e.SelectFromDistribution("age", nil)
		require.NoError(t, err)
		contexts[i] = Context{"gender": gender, "age": age}
	}

	values, err := e.SelectBulk("procedures", n, contexts)
	require.NoError(t, err)
	require.Len(t, values, n)

	for i, v := range values {
		if v != "obstetric_ultrasound" {
			continue
		}
		ctx := contexts[i]
		assert.Equal(t, "female", ctx["gender"], "record %d violates the gender constraint", i)
		age, ok := toFloat(ctx["age"])
		require.True(t, ok)
		assert.GreaterOrEqual(t, age, 15.0, "record %d violates the age constraint", i)
		assert.LessOrEqual(t, age, 50.0, "record %d violates the age constraint", i)
	}
}
