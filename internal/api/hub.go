package api

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-dbcore/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dbcore/internal/infrastructure/logging"
)

// Event channels a stream client can subscribe to.
const (
	ChannelPool      = "pool.event"
	ChannelStatement = "statement.executed"
)

// knownChannels is the set accepted by subscribe and unsubscribe.
var knownChannels = map[string]struct{}{
	ChannelPool:      {},
	ChannelStatement: {},
}

// outboxSize is the number of frames buffered per client before events
// to it are dropped.
const outboxSize = 256

// Hub fans pool and statement events out to WebSocket subscribers.
//
// Broadcast never blocks: a client whose outbox is full misses the event and
// the hub counts it in Dropped. A client's outbox is closed only by the hub,
// under its write lock, so deliveries made under the read lock never race
// with the close.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*streamClient]struct{}
	subs    map[string]map[*streamClient]struct{}

	dropped atomic.Uint64
}

// NewHub returns an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*streamClient]struct{}),
		subs:    make(map[string]map[*streamClient]struct{}),
	}
}

// Run blocks until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.disconnectAll()
}

// Broadcast sends payload to every subscriber of channel.
func (h *Hub) Broadcast(channel string, payload any) {
	h.mu.RLock()
	n := len(h.subs[channel])
	h.mu.RUnlock()
	if n == 0 {
		return
	}

	data, err := json.Marshal(Frame{
		Type:    FrameEvent,
		Channel: channel,
		Time:    time.Now().UTC().Format(time.RFC3339Nano),
		Data:    payload,
	})
	if err != nil {
		h.logger.Error("encoding stream event failed", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subs[channel] {
		if !offer(c, data) {
			h.dropped.Add(1)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns the number of events not delivered to slow clients.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) add(c *streamClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("stream client connected", "subject", c.subject, "clients", n)
}

// remove forgets c and closes its outbox. It is safe to call more than once.
func (h *Hub) remove(c *streamClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		for _, set := range h.subs {
			delete(set, c)
		}
		close(c.outbox)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.logger.Debug("stream client disconnected", "subject", c.subject, "clients", n)
	}
}

// subscribe adds or removes c from each channel.
func (h *Hub) subscribe(c *streamClient, channels []string, on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	for _, ch := range channels {
		set := h.subs[ch]
		if on {
			if set == nil {
				set = make(map[*streamClient]struct{})
				h.subs[ch] = set
			}
			set[c] = struct{}{}
		} else {
			delete(set, c)
		}
	}
}

// deliver queues a reply frame for c if it is still connected.
func (h *Hub) deliver(c *streamClient, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; ok {
		offer(c, data)
	}
}

func (h *Hub) disconnectAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.outbox)
		if c.conn != nil {
			c.conn.Close()
		}
	}
	clear(h.clients)
	clear(h.subs)
}

// offer is a non-blocking send. The caller holds the hub lock.
func offer(c *streamClient, data []byte) bool {
	select {
	case c.outbox <- data:
		return true
	default:
		return false
	}
}
