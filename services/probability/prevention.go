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

// Built-in preventer rule identifiers, matching the rule keys used in
// constraint definition files.
const (
	// RuleProcedureGender keys the gender-requirement preventer.
	RuleProcedureGender = "if_procedure_then_gender"

	// RuleProcedureAgeRange keys the age-range preventer.
	RuleProcedureAgeRange = "if_procedure_then_age_range"
)

// defaultPreventionTarget is the distribution the built-in preventers guard
// unless constructed with an explicit target.
const defaultPreventionTarget = "procedures"

// =============================================================================
// Preventer Interface
// =============================================================================

// Preventer rewrites a distribution configuration so that a constraint
// violation becomes structurally impossible before sampling, instead of being
// rejected afterwards.
//
// # Description
//
// Apply receives the constraint, the name of the distribution being adjusted,
// the already correlation-adjusted configuration, and the selection context.
// It returns either the input configuration untouched (no violation possible)
// or a clone with the violating outcome's weight forced to zero. Preventers
// must never mutate the input configuration.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; the built-ins are
// stateless beyond their construction-time target.
type Preventer interface {
	Apply(constraint ConstraintConfig, distributionName string, cfg DistributionConfig, ctx Context) DistributionConfig
}

// zeroCategory clones cfg with the named category's weight forced to zero.
// Returns cfg unchanged when the category is absent.
func zeroCategory(cfg DistributionConfig, category string) DistributionConfig {
	if _, ok := cfg.Weights[category]; !ok {
		return cfg
	}
	adjusted := cfg.Clone()
	adjusted.Weights[category] = 0
	return adjusted
}

// =============================================================================
// Gender Requirement Preventer
// =============================================================================

// GenderPreventer zeroes a procedure's weight when the context's gender
// differs from the constraint's required gender.
//
// Constraint params: "procedure" (category to guard), "required_gender".
// Context field: "gender". Missing fields or params leave the configuration
// untouched.
type GenderPreventer struct {
	// Target is the distribution name this preventer guards.
	Target string
}

// NewGenderPreventer creates the preventer for the standard procedures
// distribution.
func NewGenderPreventer() *GenderPreventer {
	return &GenderPreventer{Target: defaultPreventionTarget}
}

var _ Preventer = (*GenderPreventer)(nil)

// Apply implements Preventer.
func (p *GenderPreventer) Apply(constraint ConstraintConfig, distributionName string, cfg DistributionConfig, ctx Context) DistributionConfig {
	if distributionName != p.Target || len(cfg.Weights) == 0 {
		return cfg
	}

	gender, _ := ctx["gender"].(string)
	procedure := constraint.paramString("procedure")
	required := constraint.paramString("required_gender")

	if gender == "" || procedure == "" || gender == required {
		return cfg
	}
	return zeroCategory(cfg, procedure)
}

// =============================================================================
// Age Range Preventer
// =============================================================================

// AgeRangePreventer zeroes a procedure's weight when the context's age falls
// outside the constraint's closed [min_age, max_age] interval.
//
// Constraint params: "procedure", "min_age", "max_age". Context field: "age".
type AgeRangePreventer struct {
	// Target is the distribution name this preventer guards.
	Target string
}

// NewAgeRangePreventer creates the preventer for the standard procedures
// distribution.
func NewAgeRangePreventer() *AgeRangePreventer {
	return &AgeRangePreventer{Target: defaultPreventionTarget}
}

var _ Preventer = (*AgeRangePreventer)(nil)

// Apply implements Preventer.
func (p *AgeRangePreventer) Apply(constraint ConstraintConfig, distributionName string, cfg DistributionConfig, ctx Context) DistributionConfig {
	if distributionName != p.Target || len(cfg.Weights) == 0 {
		return cfg
	}

	age, hasAge := toFloat(ctx["age"])
	procedure := constraint.paramString("procedure")
	minAge, hasMin := constraint.paramNumber("min_age")
	maxAge, hasMax := constraint.paramNumber("max_age")

	if !hasAge || procedure == "" || !hasMin || !hasMax {
		return cfg
	}
	if age < minAge || age > maxAge {
		return zeroCategory(cfg, procedure)
	}
	return cfg
}
