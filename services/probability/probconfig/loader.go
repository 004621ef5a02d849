// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package probconfig loads probability definitions (distributions,
// correlations, constraints) from YAML or JSON files and registers them on a
// probability engine.
package probconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/synthgen/services/probability"
)

// validate is the shared struct validator; validator instances cache struct
// metadata and are safe for concurrent use.
var validate = validator.New()

// File is the on-disk shape of a probability definition file.
//
// Example (YAML):
//
//	distributions:
//	  gender:
//	    type: categorical
//	    weights: {female: 0.65, male: 0.35}
//	  age:
//	    type: weighted_ranges
//	    ranges:
//	      - {range: [18, 30], weight: 0.4}
//	      - {range: [31, 50], weight: 0.6}
//	correlations:
//	  - condition: {field: gender, value: female}
//	    adjustments:
//	      procedures: {pelvic_ultrasound: 0.6}
//	constraints:
//	  - type: hard
//	    rule: if_procedure_then_gender
//	    params: {procedure: obstetric_ultrasound, required_gender: female}
type File struct {
	Distributions map[string]probability.DistributionConfig `json:"distributions" yaml:"distributions" validate:"required,min=1,dive"`
	Correlations  []probability.CorrelationConfig           `json:"correlations,omitempty" yaml:"correlations,omitempty" validate:"omitempty,dive"`
	Constraints   []probability.ConstraintConfig            `json:"constraints,omitempty" yaml:"constraints,omitempty" validate:"omitempty,dive"`
}

// Load reads, parses, and validates a definition file. The parser is chosen
// by extension: .yaml/.yml or .json.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition file: %w", err)
	}

	var file File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", probability.ErrValidation, filepath.Base(path), err)
		}
	case ".json":
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", probability.ErrValidation, filepath.Base(path), err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported definition file extension %q", probability.ErrValidation, filepath.Ext(path))
	}

	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &file, nil
}

// Validate runs struct-shape validation followed by the domain checks each
// definition carries.
func (f *File) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %v", probability.ErrValidation, err)
	}
	for name, cfg := range f.Distributions {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("distribution %q: %w", name, err)
		}
		f.Distributions[name] = cfg // Validate applies weight defaults
	}
	for i := range f.Correlations {
		if err := f.Correlations[i].Validate(); err != nil {
			return fmt.Errorf("correlation %d: %w", i, err)
		}
	}
	for i := range f.Constraints {
		if err := f.Constraints[i].Validate(); err != nil {
			return fmt.Errorf("constraint %d: %w", i, err)
		}
	}
	return nil
}

// Apply registers everything in the file on the engine: distributions in
// sorted name order (map order is not reproducible), then correlations and
// constraints in file order.
func (f *File) Apply(e *probability.Engine) {
	names := make([]string, 0, len(f.Distributions))
	for name := range f.Distributions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		e.RegisterDistribution(name, f.Distributions[name])
	}
	for _, correlation := range f.Correlations {
		e.RegisterCorrelation(correlation)
	}
	for _, constraint := range f.Constraints {
		e.RegisterConstraint(constraint)
	}
}
