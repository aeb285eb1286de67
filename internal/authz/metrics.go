// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package authz

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for batched authorization checks.
var (
	// checkDuration tracks the latency of CheckAccess calls.
	checkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "authz_check_duration_seconds",
		Help:    "Histogram of batched authorization check latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// checkRequirements tracks the batch size per CheckAccess call.
	checkRequirements = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "authz_check_requirements",
		Help:    "Histogram of requirements evaluated per authorization check",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})

	// deniedRequirements counts requirements denied across all checks.
	deniedRequirements = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authz_denied_requirements_total",
		Help: "Total number of denied authorization requirements",
	})
)

// observeCheck records metrics for one completed CheckAccess call.
func observeCheck(duration time.Duration, requirements, denied int) {
	checkDuration.Observe(duration.Seconds())
	checkRequirements.Observe(float64(requirements))
	deniedRequirements.Add(float64(denied))
}
