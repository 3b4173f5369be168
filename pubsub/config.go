package pubsub

import (
	"github.com/nordix/goredis/client"
	"github.com/nordix/goredis/metrics"
)

// OverflowPolicy decides what happens when a Subscriber's bounded delivery
// queue is full and another message arrives.
type OverflowPolicy int

const (
	// PolicyDrop discards the new message and counts it, emitting a single
	// {dropped, n} once the backlog next drains to empty.
	PolicyDrop OverflowPolicy = iota
	// PolicyExit tears the Subscriber down instead of dropping silently.
	PolicyExit
)

// Config holds the subscription client's options: the same connection
// bootstrap client.Config already describes, plus the bounded-queue
// policy specific to pubsub.
type Config struct {
	Conn client.Config

	// MaxQueueSize bounds the backlog of undelivered message/pmessage
	// events; 0 means unbounded.
	MaxQueueSize int
	Overflow     OverflowPolicy

	// InitialConsumer, if set, is registered before the driver's first
	// connect attempt, so the initial {connected} event is observable. A
	// consumer registered later via Subscriber.ControllingProcess instead
	// never sees any event that was delivered before it took over — there
	// is nothing buffering undeliverable events for a not-yet-registered
	// consumer, the same as a nil replyCh in the command client.
	InitialConsumer chan<- Message
}

// Option mutates a Config during construction.
type Option func(*Config)

// DefaultConfig mirrors client.DefaultConfig for the shared connection
// fields, with an unbounded queue and drop-on-overflow.
func DefaultConfig() Config {
	return Config{
		Conn:         client.DefaultConfig(),
		MaxQueueSize: 0,
		Overflow:     PolicyDrop,
	}
}

// NewConfig applies opts over DefaultConfig.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithConnOptions applies client.Options meant for client.Config to the
// Subscriber's embedded connection config, so callers reach for the same
// WithHostPort/WithTLS/WithSentinel/etc. helpers the command client uses
// rather than a duplicate set of pubsub-specific ones.
func WithConnOptions(opts ...client.Option) Option {
	return func(c *Config) {
		for _, o := range opts {
			o(&c.Conn)
		}
	}
}

func WithMaxQueueSize(n int) Option {
	return func(c *Config) { c.MaxQueueSize = n }
}

func WithOverflowPolicy(p OverflowPolicy) Option {
	return func(c *Config) { c.Overflow = p }
}

// WithConsumer pre-registers ch as the Subscriber's consumer before the
// first connect attempt starts, so the initial {connected} event isn't
// dropped for want of anywhere to deliver it.
func WithConsumer(ch chan<- Message) Option {
	return func(c *Config) { c.InitialConsumer = ch }
}

// WithMetrics registers this Subscriber's gauges/counters with a shared
// Collector; see the metrics package.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Config) { c.Conn.Metrics = m }
}
