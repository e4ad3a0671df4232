// Package notify pushes order lifecycle events to the owning user's live
// channel.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/safar/orderdesk/internal/models"
	"github.com/segmentio/kafka-go"
)

const (
	defaultBufferSize   = 256
	defaultWriteTimeout = 10 * time.Second
)

var ErrClosed = errors.New("notifier closed")

// MessageWriter is the subset of *kafka.Writer the notifier depends on.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter returns a writer that hashes on the message key, so every
// event for one user lands on the same partition in publish order.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// Message is the JSON document written for every event.
type Message struct {
	EventID   string        `json:"event_id"`
	Event     string        `json:"event"`
	UserID    int64         `json:"user_id"`
	Order     *models.Order `json:"order"`
	CreatedAt time.Time     `json:"created_at"`
}

type Options struct {
	BufferSize   int
	WriteTimeout time.Duration
	// OnDrop is called for every event discarded because the queue is full.
	OnDrop func()
	Now    func() time.Time
}

// KafkaNotifier queues events and writes them from a single goroutine.
// Publish never blocks; a full queue drops the event.
type KafkaNotifier struct {
	writer MessageWriter
	opts   Options

	mu     sync.RWMutex
	closed bool
	queue  chan models.OrderEvent
	done   chan struct{}
}

func NewKafkaNotifier(writer MessageWriter, opts Options) *KafkaNotifier {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	n := &KafkaNotifier{
		writer: writer,
		opts:   opts,
		queue:  make(chan models.OrderEvent, opts.BufferSize),
		done:   make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *KafkaNotifier) Publish(_ context.Context, event models.OrderEvent) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		log.Warn().Str("event", event.Type).Int64("user_id", event.UserID).Msg("notify: publish after close")
		return
	}

	select {
	case n.queue <- event:
	default:
		log.Warn().
			Str("event", event.Type).
			Int64("user_id", event.UserID).
			Str("order_id", orderID(event)).
			Msg("notify: queue full, dropping event")
		if n.opts.OnDrop != nil {
			n.opts.OnDrop()
		}
	}
}

func (n *KafkaNotifier) run() {
	defer close(n.done)
	for event := range n.queue {
		if err := n.write(event); err != nil {
			log.Error().
				Err(err).
				Str("event", event.Type).
				Int64("user_id", event.UserID).
				Str("order_id", orderID(event)).
				Msg("notify: failed to write event")
		}
	}
}

func (n *KafkaNotifier) write(event models.OrderEvent) error {
	now := n.opts.Now().UTC()
	msg := Message{
		EventID:   uuid.NewString(),
		Event:     event.Type,
		UserID:    event.UserID,
		Order:     event.Order,
		CreatedAt: now,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.opts.WriteTimeout)
	defer cancel()

	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(userKey(event.UserID)),
		Value: data,
		Time:  now,
	})
}

// Close stops accepting events, flushes the queue and closes the writer.
func (n *KafkaNotifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ErrClosed
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	<-n.done
	return n.writer.Close()
}

func orderID(event models.OrderEvent) string {
	if event.Order == nil {
		return ""
	}
	return event.Order.OrderID
}

func userKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
