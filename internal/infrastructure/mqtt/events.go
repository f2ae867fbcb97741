package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-dbcore/internal/engine"
	"github.com/nerrad567/gray-logic-dbcore/internal/pool"
)

// defaultQueueSize is the number of events buffered for publishing.
const defaultQueueSize = 256

// Publisher is the part of Client the event publisher needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// message is one queued publication.
type message struct {
	topic   string
	payload []byte
}

// EventPublisher forwards pool events and slow or failed statements to MQTT.
// It implements pool.Observer and engine.Observer.
//
// Thread Safety:
//   - PoolEvent and Statement are safe for concurrent use and never block.
type EventPublisher struct {
	pub    Publisher
	topics Topics
	qos    byte
	logger Logger

	queue   chan message
	dropped atomic.Uint64

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewEventPublisher creates a publisher writing under baseTopic.
func NewEventPublisher(pub Publisher, baseTopic string, qos byte) *EventPublisher {
	return &EventPublisher{
		pub:    pub,
		topics: Topics{Base: baseTopic},
		qos:    qos,
		queue:  make(chan message, defaultQueueSize),
	}
}

// SetLogger sets a logger for publish failures.
func (p *EventPublisher) SetLogger(logger Logger) {
	p.mu.Lock()
	p.logger = logger
	p.mu.Unlock()
}

// Start launches the background publishing goroutine. It stops when ctx is
// cancelled or Stop is called. Calling Start twice has no effect.
func (p *EventPublisher) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(ctx, p.stop, p.done, p.logger)
}

// Stop publishes whatever is queued and stops the background goroutine.
func (p *EventPublisher) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stop)
	done := p.done
	p.mu.Unlock()

	<-done
}

// Dropped returns the number of events discarded because the queue was full.
func (p *EventPublisher) Dropped() uint64 {
	return p.dropped.Load()
}

// PoolEvent implements pool.Observer.
func (p *EventPublisher) PoolEvent(ev pool.Event) {
	payload := poolPayload{
		Pool:   ev.Pool,
		Kind:   string(ev.Kind),
		ConnID: ev.ConnID,
		Busy:   ev.Busy,
		Time:   ev.Time.UTC().Format(time.RFC3339Nano),
	}
	if ev.Err != nil {
		payload.Error = ev.Err.Error()
	}
	p.enqueue(p.topics.Pool(ev.Pool, string(ev.Kind)), payload)
}

// Statement implements engine.Observer. Only slow and failed statements
// are published.
func (p *EventPublisher) Statement(ev engine.StatementEvent) {
	if !ev.Slow && ev.Err == nil {
		return
	}

	payload := statementPayload{
		Pool:      ev.Pool,
		ConnID:    ev.ConnID,
		Dialect:   ev.Dialect,
		Kind:      ev.Kind,
		SQL:       ev.SQL,
		ElapsedMS: float64(ev.Elapsed) / float64(time.Millisecond),
		Rows:      ev.Rows,
		Slow:      ev.Slow,
		Time:      ev.Time.UTC().Format(time.RFC3339Nano),
	}
	topic := p.topics.StatementSlow(ev.Pool)
	if ev.Err != nil {
		payload.Error = ev.Err.Error()
		topic = p.topics.StatementError(ev.Pool)
	}
	p.enqueue(topic, payload)
}

func (p *EventPublisher) enqueue(topic string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		p.dropped.Add(1)
		return
	}
	select {
	case p.queue <- message{topic: topic, payload: data}:
	default:
		p.dropped.Add(1)
	}
}

func (p *EventPublisher) run(ctx context.Context, stop, done chan struct{}, logger Logger) {
	defer close(done)
	for {
		select {
		case m := <-p.queue:
			p.publish(m, logger)
		case <-stop:
			p.drain(logger)
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *EventPublisher) drain(logger Logger) {
	for {
		select {
		case m := <-p.queue:
			p.publish(m, logger)
		default:
			return
		}
	}
}

func (p *EventPublisher) publish(m message, logger Logger) {
	if err := p.pub.Publish(m.topic, m.payload, p.qos, false); err != nil && logger != nil {
		logger.Warn("publishing event failed",
			"topic", m.topic,
			"error", err,
		)
	}
}

type poolPayload struct {
	Pool   string `json:"pool"`
	Kind   string `json:"kind"`
	ConnID uint64 `json:"conn_id"`
	Busy   bool   `json:"busy"`
	Error  string `json:"error,omitempty"`
	Time   string `json:"time"`
}

type statementPayload struct {
	Pool      string  `json:"pool"`
	ConnID    uint64  `json:"conn_id"`
	Dialect   string  `json:"dialect"`
	Kind      string  `json:"kind"`
	SQL       string  `json:"sql"`
	ElapsedMS float64 `json:"elapsed_ms"`
	Rows      int64   `json:"rows"`
	Slow      bool    `json:"slow"`
	Error     string  `json:"error,omitempty"`
	Time      string  `json:"time"`
}
