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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Selection
// =============================================================================

var (
	// selectionsTotal counts successful draws.
	// Labels: distribution, kind
	selectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "synthgen",
		Subsystem: "probability",
		Name:      "selections_total",
		Help:      "Total values drawn from distributions",
	}, []string{"distribution", "kind"})

	// preventedTotal counts outcomes zeroed out by hard constraints.
	// Labels: distribution, rule
	preventedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "synthgen",
		Subsystem: "probability",
		Name:      "prevented_total",
		Help:      "Total outcomes structurally prevented by hard constraints",
	}, []string{"distribution", "rule"})

	// selectionErrors counts failed selection calls by reason.
	// Labels: distribution, reason (not_registered, invalid_config, unsupported_kind, invalid_argument)
	selectionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "synthgen",
		Subsystem: "probability",
		Name:      "selection_errors_total",
		Help:      "Total failed selection calls by reason",
	}, []string{"distribution", "reason"})
)
