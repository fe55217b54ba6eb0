package sse

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Event types pushed to dashboard clients
const (
	EventSyncStarted   = "sync.started"
	EventSyncProgress  = "sync.progress"
	EventSyncFinished  = "sync.finished"
	EventAccountHealth = "account.health"
)

// Event is one SSE message. UserID targets a single dashboard user; the
// sync events go to everyone via BroadcastToAll.
type Event struct {
	Type   string      `json:"type"`
	Data   interface{} `json:"data"`
	UserID uuid.UUID   `json:"user_id,omitempty"`
}

// SyncProgress is the payload for the sync.* events.
type SyncProgress struct {
	RunID      string `json:"run_id"`
	ObjectType string `json:"object_type"`
	Mode       string `json:"mode"`
	Status     string `json:"status"`
	Synced     int    `json:"synced"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
}

// AccountHealth is the payload for account.health events.
type AccountHealth struct {
	AccountID string `json:"account_id"`
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
}

// Broker fans events out to connected dashboard clients.
type Broker struct {
	clients map[uuid.UUID]map[chan Event]bool
	mu      sync.RWMutex
}

func NewBroker() *Broker {
	return &Broker{
		clients: make(map[uuid.UUID]map[chan Event]bool),
	}
}

// Register adds a client channel for a user.
func (b *Broker) Register(userID uuid.UUID, clientChan chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.clients[userID]; !ok {
		b.clients[userID] = make(map[chan Event]bool)
	}
	b.clients[userID][clientChan] = true

	log.Printf("📡 [SSE] Registered client for user %s (connections: %d)", userID, len(b.clients[userID]))
}

// Unregister removes a client channel and closes it.
func (b *Broker) Unregister(userID uuid.UUID, clientChan chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	userClients, ok := b.clients[userID]
	if !ok {
		return
	}

	delete(userClients, clientChan)
	close(clientChan)
	if len(userClients) == 0 {
		delete(b.clients, userID)
	}

	log.Printf("📡 [SSE] Unregistered client for user %s (remaining: %d)", userID, len(userClients))
}

// Broadcast sends an event to one user's clients. Blocked channels are
// skipped rather than stalling the sender.
func (b *Broker) Broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	userClients, ok := b.clients[event.UserID]
	if !ok {
		return
	}

	prepared, err := prepare(event)
	if err != nil {
		log.Printf("❌ [SSE] Failed to marshal %s event: %v", event.Type, err)
		return
	}

	for clientChan := range userClients {
		select {
		case clientChan <- prepared:
		default:
			log.Printf("⚠️ [SSE] Client channel blocked for user %s", event.UserID)
		}
	}
}

// BroadcastToAll sends an event to every connected client.
func (b *Broker) BroadcastToAll(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	prepared, err := prepare(event)
	if err != nil {
		log.Printf("❌ [SSE] Failed to marshal %s event: %v", event.Type, err)
		return
	}

	for userID, userClients := range b.clients {
		for clientChan := range userClients {
			select {
			case clientChan <- prepared:
			default:
				log.Printf("⚠️ [SSE] Client channel blocked for user %s", userID)
			}
		}
	}
}

// TotalClients reports connected client channels across all users.
func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, userClients := range b.clients {
		total += len(userClients)
	}
	return total
}

// prepare marshals the payload once so receivers share an immutable copy.
func prepare(event Event) (Event, error) {
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Type:   event.Type,
		Data:   json.RawMessage(raw),
		UserID: event.UserID,
	}, nil
}
