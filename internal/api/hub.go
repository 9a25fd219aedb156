// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Thermoquad/frostlock/internal/controller"
)

const broadcastBufferSize = 64

// ErrBroadcastFull is returned by Notify when the hub is not keeping up
var ErrBroadcastFull = errors.New("websocket broadcast queue full")

// StatusFunc supplies the snapshot sent to newly connected clients and in
// answer to request_status
type StatusFunc func() controller.State

// Hub tracks WebSocket clients and fans status updates out to them. Every
// write to a client's send queue happens on the Run goroutine.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	requests   chan *Client
	broadcast  chan []byte
	count      chan chan int
	done       chan struct{}
	running    atomic.Bool

	status StatusFunc
	logger *zap.Logger
}

// NewHub creates a hub; call Run before serving clients
func NewHub(status StatusFunc, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		requests:   make(chan *Client),
		broadcast:  make(chan []byte, broadcastBufferSize),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		status:     status,
		logger:     logger,
	}
}

// Run services the hub until ctx is cancelled, then drops every client
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer close(h.done)
	h.logger.Info("WebSocket hub started")

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			h.logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.logger.Info("WebSocket client connected",
				zap.String("client_id", client.id),
				zap.Int("total_clients", len(h.clients)))
			h.sendStatus(client)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Info("WebSocket client disconnected",
					zap.String("client_id", client.id),
					zap.Int("total_clients", len(h.clients)))
			}

		case client := <-h.requests:
			if _, ok := h.clients[client]; ok {
				h.sendStatus(client)
			}

		case data := <-h.broadcast:
			for client := range h.clients {
				h.deliver(client, data)
			}

		case reply := <-h.count:
			reply <- len(h.clients)
		}
	}
}

// Notify implements controller.Notifier by queueing an update_status
// broadcast. It never blocks.
func (h *Hub) Notify(s controller.State) error {
	data, err := json.Marshal(NewMessage(MessageTypeUpdateStatus, s))
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- data:
		return nil
	default:
		return ErrBroadcastFull
	}
}

// ClientCount returns the number of registered clients. It is 0 before Run
// starts and after it returns.
func (h *Hub) ClientCount() int {
	if !h.running.Load() {
		return 0
	}
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

func (h *Hub) sendStatus(client *Client) {
	data, err := json.Marshal(NewMessage(MessageTypeUpdateStatus, h.status()))
	if err != nil {
		h.logger.Error("Failed to marshal status", zap.Error(err))
		return
	}
	h.deliver(client, data)
}

// deliver drops clients whose queue is full
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.logger.Warn("Client send buffer full, disconnecting", zap.String("client_id", client.id))
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
}

// enqueue hands a client event to the hub unless it has stopped
func (h *Hub) enqueue(ch chan<- *Client, client *Client) bool {
	select {
	case ch <- client:
		return true
	case <-h.done:
		return false
	}
}

var _ controller.Notifier = (*Hub)(nil)
