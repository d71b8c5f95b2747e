// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

// Package metrics provides Prometheus instrumentation for TripSync:
// database query performance, API latency and throughput, and the
// real-time hub (connections, broadcasts, liveness evictions).
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database metrics

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tripsync_db_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	// API metrics

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripsync_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tripsync_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Real-time hub metrics

	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tripsync_ws_connections_active",
			Help: "Current number of live WebSocket connections",
		},
	)

	WSEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripsync_ws_events_total",
			Help: "Total inbound WebSocket events by type and outcome",
		},
		[]string{"type", "outcome"}, // outcome: ok, error, rejected, dropped
	)

	WSBroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripsync_ws_broadcasts_total",
			Help: "Total broadcasts fanned out to trip channels",
		},
		[]string{"type"},
	)

	WSSendsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tripsync_ws_sends_dropped_total",
			Help: "Broadcast deliveries dropped because a client's send buffer was full",
		},
	)

	WSLivenessEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tripsync_ws_liveness_evictions_total",
			Help: "Connections terminated for missing a heartbeat sweep",
		},
	)
)

// ObserveQuery records a database query duration. Call with defer:
//
//	start := time.Now()
//	defer metrics.ObserveQuery("select", "chat_messages", start)
func ObserveQuery(operation, table string, start time.Time) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}

// ObserveAPIRequest records one HTTP request.
func ObserveAPIRequest(method, endpoint string, status int, start time.Time) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
}
