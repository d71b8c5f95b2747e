// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

// Package client implements the reconnecting TripSync realtime client.
//
// One Client owns exactly one physical WebSocket shared by every component
// that registers interest. Reference counting keeps independent components
// from fighting over the socket: the first RegisterConnection opens it, the
// last DeregisterConnection closes it with a normal closure code so no
// reconnect fires.
//
// When the socket drops for any other reason the client reconnects with
// exponential backoff (1.5x growth, capped per-attempt delay, bounded
// attempt count, then one final try after a long cooldown). Inbound frames
// fan out to typed subscribers registered with On.
//
// Typical use:
//
//	c, err := client.New(client.Config{URL: "wss://host/api/v1/ws", Token: token})
//	if err != nil {
//		return err
//	}
//	id := c.On("chat_message", func(env client.Envelope) { ... })
//	defer c.Off("chat_message", id)
//	c.RegisterConnection()
//	defer c.DeregisterConnection()
package client
