// Package live pushes chart change events to connected clients over
// WebSockets. Clients subscribe to topics: a unit board listens on
// "unit:UTI", an open chart on "patient:<id>", and TopicAll receives
// everything.
package live

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types.
const (
	PatientCreated = "patient.created"
	PatientUpdated = "patient.updated"
	PatientDeleted = "patient.deleted"
	LogSaved       = "log.saved"
	LogDeleted     = "log.deleted"
)

// TopicAll receives every event.
const TopicAll = "*"

// Event tells clients which chart changed so they can reload it.
type Event struct {
	Type      string     `json:"type"`
	PatientID uuid.UUID  `json:"patient_id"`
	Unit      string     `json:"unit,omitempty"`
	LogID     *uuid.UUID `json:"log_id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

func PatientTopic(id uuid.UUID) string { return "patient:" + id.String() }

func UnitTopic(unit string) string { return "unit:" + unit }

// Topics lists the topics e is delivered on.
func (e Event) Topics() []string {
	topics := []string{TopicAll, PatientTopic(e.PatientID)}
	if e.Unit != "" {
		topics = append(topics, UnitTopic(e.Unit))
	}
	return topics
}

// ValidTopic reports whether a client may subscribe to topic.
func ValidTopic(topic string) bool {
	switch {
	case topic == TopicAll:
		return true
	case strings.HasPrefix(topic, "unit:"):
		return len(topic) > len("unit:")
	case strings.HasPrefix(topic, "patient:"):
		_, err := uuid.Parse(strings.TrimPrefix(topic, "patient:"))
		return err == nil
	}
	return false
}

// Client is one connected subscriber. Send is closed when the client is
// unregistered.
type Client struct {
	ID     string
	Send   chan []byte
	topics map[string]struct{}
}

func NewClient(buffer int) *Client {
	return &Client{
		ID:     uuid.NewString(),
		Send:   make(chan []byte, buffer),
		topics: make(map[string]struct{}),
	}
}

// Hub tracks clients by topic. It is safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // topic -> subscribers
	all     map[*Client]struct{}
	logger  zerolog.Logger
	now     func() time.Time
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		logger:  logger,
		now:     time.Now,
	}
}

func (h *Hub) Register(c *Client, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.all[c] = struct{}{}
	h.subscribe(c, topics)
}

// Unregister drops c from every topic and closes c.Send. Calling it twice
// is a no-op.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.all[c]; !ok {
		return
	}
	h.unsubscribe(c, keys(c.topics))
	delete(h.all, c)
	close(c.Send)
}

func (h *Hub) Subscribe(c *Client, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.all[c]; ok {
		h.subscribe(c, topics)
	}
}

func (h *Hub) Unsubscribe(c *Client, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribe(c, topics)
}

// subscribe and unsubscribe expect h.mu held.
func (h *Hub) subscribe(c *Client, topics []string) {
	for _, t := range topics {
		if h.clients[t] == nil {
			h.clients[t] = make(map[*Client]struct{})
		}
		h.clients[t][c] = struct{}{}
		c.topics[t] = struct{}{}
	}
}

func (h *Hub) unsubscribe(c *Client, topics []string) {
	for _, t := range topics {
		if subs, ok := h.clients[t]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(h.clients, t)
			}
		}
		delete(c.topics, t)
	}
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// Publish delivers e once to every client subscribed to any of its topics.
// Slow clients whose buffer is full miss the event.
func (h *Hub) Publish(_ context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = h.now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := make(map[*Client]struct{})
	for _, t := range e.Topics() {
		for c := range h.clients[t] {
			if _, done := sent[c]; done {
				continue
			}
			sent[c] = struct{}{}
			select {
			case c.Send <- data:
			default:
				h.logger.Warn().Str("client_id", c.ID).Str("type", e.Type).Msg("live client buffer full, event dropped")
			}
		}
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}
