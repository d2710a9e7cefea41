package websocket

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/dom/lotus-draft/internal/service"
	"github.com/google/uuid"
)

// Hub owns one Room per browser session. Rooms are created on first use and
// swept once they have been idle with no clients for idleTimeout.
type Hub struct {
	rooms       map[uuid.UUID]*Room
	clients     map[*Client]bool
	stop        chan struct{}
	done        chan struct{} // closed when Run() exits
	stopped     bool
	drafts      *service.DraftService
	store       *service.DraftStore
	idleTimeout time.Duration
	mu          sync.RWMutex
}

func NewHub(drafts *service.DraftService, store *service.DraftStore, idleTimeout time.Duration) *Hub {
	return &Hub{
		rooms:       make(map[uuid.UUID]*Room),
		clients:     make(map[*Client]bool),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		drafts:      drafts,
		store:       store,
		idleTimeout: idleTimeout,
	}
}

func (h *Hub) Run() {
	defer close(h.done) // Signal that Run() has exited

	var sweep <-chan time.Time
	if h.idleTimeout > 0 {
		ticker := time.NewTicker(h.idleTimeout / 2)
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			h.stopped = true
			rooms := make([]*Room, 0, len(h.rooms))
			for _, room := range h.rooms {
				rooms = append(rooms, room)
				room.Stop()
			}
			h.mu.Unlock()

			// Wait for all rooms to actually exit (without holding the lock)
			for _, room := range rooms {
				room.Wait()
			}

			h.mu.Lock()
			for client := range h.clients {
				client.Close()
			}
			h.clients = make(map[*Client]bool)
			h.rooms = make(map[uuid.UUID]*Room)
			h.mu.Unlock()
			return

		case now := <-sweep:
			h.sweepIdle(now)
		}
	}
}

// Stop gracefully shuts down the hub and all its rooms.
// It blocks until all rooms have stopped and the hub has fully shut down.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	close(h.stop)
	<-h.done // Wait for Run() to finish
}

func (h *Hub) sweepIdle(now time.Time) {
	h.mu.Lock()
	var idle []*Room
	for id, room := range h.rooms {
		if room.Idle(now, h.idleTimeout) {
			delete(h.rooms, id)
			idle = append(idle, room)
		}
	}
	h.mu.Unlock()

	for _, room := range idle {
		room.Stop()
		room.Wait()
		log.Printf("Closed idle draft room for session %s", room.SessionID())
	}
}

// Room returns the session's room, starting it if needed. It returns nil once
// the hub has stopped.
func (h *Hub) Room(sessionID uuid.UUID) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil
	}
	if room, ok := h.rooms[sessionID]; ok {
		return room
	}

	room := NewRoom(sessionID, h.drafts, h.store)
	h.rooms[sessionID] = room
	go room.Run()
	return room
}

// Do runs a command in the session's room. A room swept between lookup and
// submit is replaced once.
func (h *Hub) Do(ctx context.Context, sessionID uuid.UUID, cmd Command) Result {
	for attempt := 0; attempt < 2; attempt++ {
		room := h.Room(sessionID)
		if room == nil {
			return Result{Err: ErrRoomClosed}
		}
		res := room.Do(ctx, cmd)
		if !errors.Is(res.Err, ErrRoomClosed) {
			return res
		}
	}
	return Result{Err: ErrRoomClosed}
}

func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Register attaches a client to its session's room.
func (h *Hub) Register(client *Client) {
	room := h.Room(client.sessionID)
	if room == nil {
		client.Close()
		return
	}

	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	client.room = room
	room.Join(client)
}

// Unregister safely unregisters a client, handling the case where the hub may be stopped.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if !ok {
		return
	}
	if client.room != nil {
		client.room.Leave(client)
		return
	}
	client.Close()
}
