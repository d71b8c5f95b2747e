// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package realtime

import (
	"github.com/tomtom215/tripsync/internal/logging"
	"github.com/tomtom215/tripsync/internal/metrics"
)

// sweepLiveness runs the missed-heartbeat protocol on every registered
// connection. A connection marked not-alive by the previous sweep failed
// to answer its ping and is evicted; everyone else is marked not-alive
// and pinged again. Registration marks a connection alive, so a fresh
// connection always survives its first sweep.
func (h *Hub) sweepLiveness() {
	for c, meta := range h.registry.Snapshot() {
		if !meta.Alive {
			metrics.WSLivenessEvictions.Inc()
			logging.Info().Uint64("conn_id", c.id).Int64("user_id", meta.UserID).Int64("trip_id", meta.TripID).Msg("Evicting unresponsive connection")
			h.drop(c)
			c.closeTransport()
			continue
		}
		h.registry.SetAlive(c, false)
		if err := c.ping(); err != nil {
			// Ping write failed means the socket is already gone.
			// Evict now instead of waiting out another interval.
			metrics.WSLivenessEvictions.Inc()
			logging.Debug().Err(err).Uint64("conn_id", c.id).Msg("Ping failed, evicting connection")
			h.drop(c)
			c.closeTransport()
		}
	}
}
