package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"triggerd/internal/common/logging"
)

const defaultBufferSize = 256

// Option configures a LocalBus.
type Option func(*LocalBus)

// WithBufferSize sets the per-subscription queue length.
func WithBufferSize(n int) Option {
	return func(b *LocalBus) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(b *LocalBus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithDropHook registers a callback invoked when a message is dropped.
func WithDropHook(fn func(topic string)) Option {
	return func(b *LocalBus) {
		b.onDrop = fn
	}
}

// LocalBus delivers through one buffered queue and one goroutine per
// subscription. Publish never blocks: a full queue drops the message.
type LocalBus struct {
	mu         sync.RWMutex
	subs       map[string]map[*subscription]struct{}
	closed     bool
	bufferSize int
	logger     logging.Logger
	onDrop     func(topic string)
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

type subscription struct {
	bus     *LocalBus
	topic   string
	queue   chan Message
	handler Handler
	once    sync.Once
}

// NewLocalBus creates a running bus.
func NewLocalBus(opts ...Option) *LocalBus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &LocalBus{
		subs:       make(map[string]map[*subscription]struct{}),
		bufferSize: defaultBufferSize,
		logger:     logging.GetGlobalLogger(),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.WithFields(logging.String("component", "bus"))
	return b
}

// Publish enqueues payload for every subscriber of topic.
func (b *LocalBus) Publish(_ context.Context, topic string, payload interface{}) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	msg := Message{Topic: topic, Payload: payload, Timestamp: time.Now()}
	for sub := range b.subs[topic] {
		select {
		case sub.queue <- msg:
		default:
			b.logger.Warn("Subscriber queue full, dropping message", logging.String("topic", topic))
			if b.onDrop != nil {
				b.onDrop(topic)
			}
		}
	}
	return nil
}

// Subscribe starts a worker that feeds handler.
func (b *LocalBus) Subscribe(topic string, handler Handler) (Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	sub := &subscription{
		bus:     b,
		topic:   topic,
		queue:   make(chan Message, b.bufferSize),
		handler: handler,
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*subscription]struct{})
	}
	b.subs[topic][sub] = struct{}{}

	b.wg.Add(1)
	go sub.run(b.ctx)
	return sub, nil
}

// SubscriberCount returns the number of live subscriptions on topic.
func (b *LocalBus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Close stops accepting messages, drains queued ones and waits for workers.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, set := range b.subs {
		for sub := range set {
			sub.closeQueue()
		}
	}
	b.subs = make(map[string]map[*subscription]struct{})
	b.mu.Unlock()

	b.wg.Wait()
	b.cancel()
	return nil
}

func (s *subscription) run(ctx context.Context) {
	defer s.bus.wg.Done()
	for msg := range s.queue {
		s.deliver(ctx, msg)
	}
}

func (s *subscription) deliver(ctx context.Context, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			s.bus.logger.Error("Subscriber panicked", fmt.Errorf("%v", r), logging.String("topic", msg.Topic))
		}
	}()
	s.handler(ctx, msg)
}

func (s *subscription) closeQueue() {
	s.once.Do(func() { close(s.queue) })
}

// Unsubscribe removes the subscription; queued messages are still delivered.
func (s *subscription) Unsubscribe() {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[s.topic]; ok {
		if _, ok := set[s]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(b.subs, s.topic)
			}
		}
	}
	s.closeQueue()
}
