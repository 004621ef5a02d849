// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datagen generates synthetic entity records by driving the
// probability engine field by field.
//
// Fields are drawn in plan order, and each draw sees the record's
// already-decided fields as its selection context. That ordering is what
// makes correlations and preventive constraints effective: a procedures
// distribution drawn after gender and age can never produce an outcome a
// hard constraint forbids for that record.
package datagen

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/synthgen/pkg/logging"
	"github.com/AleutianAI/synthgen/services/probability"
)

// FieldSpec names one record field and the distribution that supplies it.
type FieldSpec struct {
	Name         string `json:"name" yaml:"name"`
	Distribution string `json:"distribution" yaml:"distribution"`
}

// Config holds generation parameters.
type Config struct {
	// Count is the number of records to generate.
	Count int
}

// Record is one generated entity. Records live in memory only; persistence
// is the caller's concern, not this package's.
type Record struct {
	ID     string
	Fields map[string]any
}

// Generator orchestrates record generation against a probability engine.
type Generator struct {
	config Config
	engine *probability.Engine
	plan   []FieldSpec
	log    *logging.Logger
}

// New creates a Generator. The plan's order is the draw order; fields that
// constrain later ones must come first. A nil logger falls back to the
// default.
//
// For deterministic output, build the engine with probability.WithRand and
// a source from SeededRand.
func New(engine *probability.Engine, plan []FieldSpec, cfg Config, log *logging.Logger) (*Generator, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: engine must not be nil", probability.ErrInvalidArgument)
	}
	if len(plan) == 0 {
		return nil, fmt.Errorf("%w: field plan must not be empty", probability.ErrInvalidArgument)
	}
	if cfg.Count < 0 {
		return nil, fmt.Errorf("%w: count must be non-negative, got %d", probability.ErrInvalidArgument, cfg.Count)
	}
	if log == nil {
		log = logging.Default()
	}
	return &Generator{config: cfg, engine: engine, plan: plan, log: log}, nil
}

// SeededRand returns a deterministic random source for the given seed. A
// zero seed picks a time-based one; the effective seed is returned so the
// caller can log it and reproduce the run.
func SeededRand(seed int64) (*rand.Rand, int64) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1)), seed
}

// Generate draws Config.Count records.
//
// Each record starts empty and accumulates field values in plan order, with
// the partial record serving as the context for every subsequent draw. The
// context is checked between records so long runs can be cancelled. Fails
// fast on the first selection error.
func (g *Generator) Generate(ctx context.Context) ([]Record, error) {
	records := make([]Record, 0, g.config.Count)

	for i := 0; i < g.config.Count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record := Record{
			ID:     uuid.NewString(),
			Fields: make(map[string]any, len(g.plan)),
		}
		for _, field := range g.plan {
			value, err := g.engine.SelectFromDistribution(field.Distribution, record.Fields)
			if err != nil {
				return nil, fmt.Errorf("record %d field %q: %w", i, field.Name, err)
			}
			record.Fields[field.Name] = value
		}
		records = append(records, record)
	}

	g.log.Info("generated records", "count", len(records), "fields", len(g.plan))
	return records, nil
}
