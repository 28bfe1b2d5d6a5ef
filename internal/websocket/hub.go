// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

// Package websocket implements the broadcast fan-out to connected
// observers (live dashboards). Delivery is fire-and-forget: a failed or
// slow observer is dropped from the set, never surfaced to the caller.
package websocket

import (
	"context"
	"sort"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/sentinelhq/sentinel/internal/logging"
	"github.com/sentinelhq/sentinel/internal/metrics"
)

// Envelope types delivered to observers.
const (
	MessageTypeAttackDetected   = "attack_detected"
	MessageTypeAttackUpdated    = "attack_updated"
	MessageTypeMetricsUpdate    = "metrics_update"
	MessageTypeMonitorHealth    = "monitor_health"
	MessageTypeSimulationStatus = "simulation_status"
	MessageTypePing             = "ping"
	MessageTypePong             = "pong"
)

// Message is a typed envelope broadcast to every observer.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of connected observers and fans out messages.
// All membership changes go through the run loop; the client set is
// additionally mutex-guarded so that observer counting is safe from
// any goroutine.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub with a buffered broadcast queue.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext runs the hub until the context is canceled. Designed for
// suture supervision: on cancellation all clients are closed and
// ctx.Err() is returned.
//
// Lifecycle events are drained before broadcasts so the observer set is
// consistent when a message goes out.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			logging.Info().Str("component", "websocket-hub").Msg("hub stopped")
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.closeAllClients()
			logging.Info().Str("component", "websocket-hub").Msg("hub stopped")
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.ObserversConnected.Set(float64(total))
	logging.Info().Int("total_observers", total).Msg("observer connected")
}

// removeClient is idempotent: deregistering an unknown client is a no-op.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.ObserversConnected.Set(float64(total))
	logging.Info().Int("total_observers", total).Msg("observer disconnected")
}

// broadcastToClients delivers one message to every observer. The
// envelope is serialized exactly once, regardless of observer count.
// Clients are snapshotted and sorted by ID so iteration never observes
// a partially mutated set and delivery order is reproducible. A client
// whose send queue is full is dropped; the failure is isolated to that
// client.
func (h *Hub) broadcastToClients(message Message) {
	payload, err := json.Marshal(message)
	if err != nil {
		metrics.BroadcastsDropped.WithLabelValues(message.Type).Inc()
		logging.Error().Err(err).Str("message_type", message.Type).Msg("failed to serialize broadcast")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) == 0 {
		return
	}

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- payload:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		logging.Warn().Uint64("observer_id", client.id).Msg("observer dropped, send queue full")
	}
	if len(toRemove) > 0 {
		metrics.ObserversConnected.Set(float64(len(h.clients)))
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.ObserversConnected.Set(0)
}

// Broadcast queues a typed envelope for delivery to all observers. It
// never blocks and never returns an error; if the hub queue is full the
// message is dropped and counted.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	message := Message{Type: messageType, Data: data}
	select {
	case h.broadcast <- message:
	default:
		metrics.BroadcastsDropped.WithLabelValues(messageType).Inc()
		logging.Warn().Str("message_type", messageType).Msg("broadcast queue full, dropping message")
	}
}

// ObserverCount returns the number of connected observers.
func (h *Hub) ObserverCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
