// Package pubsub implements a subscription client: built on the same
// connection bootstrap and parser as the command client, but replacing its
// request-queue model with push delivery over a bounded, ack-gated queue.
package pubsub

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Subscriber receives pub/sub messages from a RESP server. It tracks its
// own subscribe/psubscribe sets and replays them on every reconnect before
// resuming delivery. Every Subscriber owns exactly one driver goroutine.
type Subscriber struct {
	cfg        Config
	instanceID string
	d          *driver
	closeOnce  sync.Once
}

// New starts a Subscriber's driver goroutine and returns immediately, same
// as client.New: the initial connection happens asynchronously.
func New(ctx context.Context, opts ...Option) *Subscriber {
	cfg := NewConfig(opts...)
	instanceID := uuid.New().String()
	d := newDriver(ctx, cfg, instanceID)
	go d.runWithRecover()
	return &Subscriber{cfg: cfg, instanceID: instanceID, d: d}
}

// InstanceID returns the uuid assigned to this Subscriber at construction.
func (s *Subscriber) InstanceID() string {
	return s.instanceID
}

func (s *Subscriber) submit(ctx context.Context, c cmd) error {
	resultCh := make(chan error, 1)
	c.result = resultCh
	select {
	case s.d.cmds <- c:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.d.done:
		return ErrClosed
	}
	select {
	case err := <-resultCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe adds channels to the tracked subscription set and sends
// SUBSCRIBE; it returns once the command is sent, not once the server
// acknowledges it — the acknowledgment arrives later as a {subscribed}
// Message on the registered consumer channel.
func (s *Subscriber) Subscribe(ctx context.Context, channels ...string) error {
	return s.submit(ctx, cmd{kind: cmdSubscribe, args: channels})
}

// Unsubscribe removes channels from the tracked set and sends
// UNSUBSCRIBE. With no channels given, it unsubscribes from all currently
// tracked channels.
func (s *Subscriber) Unsubscribe(ctx context.Context, channels ...string) error {
	return s.submit(ctx, cmd{kind: cmdUnsubscribe, args: channels})
}

// PSubscribe is Subscribe for glob patterns.
func (s *Subscriber) PSubscribe(ctx context.Context, patterns ...string) error {
	return s.submit(ctx, cmd{kind: cmdPSubscribe, args: patterns})
}

// PUnsubscribe is Unsubscribe for glob patterns.
func (s *Subscriber) PUnsubscribe(ctx context.Context, patterns ...string) error {
	return s.submit(ctx, cmd{kind: cmdPUnsubscribe, args: patterns})
}

// ControllingProcess registers ch as the consumer of future Messages,
// replacing whatever consumer was previously registered. If a consumer is
// already registered and timeout is positive, the outgoing consumer is
// first sent a {handoff, token} Message and given up to timeout to call
// AckHandoff before the switch takes effect, so no in-flight message is
// lost across the handoff. A zero timeout (or no prior consumer) switches
// immediately.
func (s *Subscriber) ControllingProcess(ctx context.Context, ch chan<- Message, timeout time.Duration) error {
	return s.submit(ctx, cmd{kind: cmdControllingProcess, consumer: ch, handoffTimeout: timeout})
}

// AckHandoff confirms receipt of a {handoff, token} Message, letting a
// pending ControllingProcess call complete before its timeout elapses. A
// call with no matching handoff in progress is buffered for the next one
// (capacity 1) or silently dropped if that buffer is already full.
func (s *Subscriber) AckHandoff(token string) {
	select {
	case s.d.handoffAcks <- token:
	default:
	}
}

// Ack signals that the consumer has finished processing the message most
// recently delivered, releasing the next queued message (if any) or, if
// the backlog has drained and messages were dropped since, a single
// {dropped, n} Message.
func (s *Subscriber) Ack() {
	select {
	case s.d.cmds <- cmd{kind: cmdAck}:
	case <-s.d.done:
	}
}

// Close terminates the Subscriber cleanly and blocks until its driver
// goroutine has exited. Safe to call more than once.
func (s *Subscriber) Close() error {
	s.closeOnce.Do(func() { close(s.d.stop) })
	<-s.d.done
	return nil
}

func uuidToken() string {
	return uuid.New().String()
}
