// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package index

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "graphvault",
	Subsystem: "index",
	Name:      "events_processed_total",
	Help:      "Number of invalidation events the index worker has processed.",
})

func observeEvent() {
	eventsProcessed.Inc()
}
