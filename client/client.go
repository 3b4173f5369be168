// Package client implements a non-blocking command client for a
// RESP-speaking server: connection bootstrap, a FIFO request/pipeline
// multiplexer, and a reconnect policy, all driven by a single goroutine
// per Client that communicates with callers over channels.
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nordix/goredis/resp"
)

// Client issues requests (single commands or pipelines) against a RESP
// server and returns typed replies. Every Client owns exactly one driver
// goroutine; a Client is safe for concurrent use by multiple callers, the
// driver goroutine being the single point of serialization.
type Client struct {
	cfg        Config
	instanceID string
	d          *driver
	closeOnce  sync.Once
}

// New starts a Client's driver goroutine and returns immediately; the
// initial connection attempt happens asynchronously, same as any
// subsequent reconnect. A request submitted while a connection attempt is
// in progress waits for that attempt to finish; a request submitted while
// no connection exists returns ErrNoConnection, exactly as it would after
// any other disconnect.
func New(ctx context.Context, opts ...Option) *Client {
	cfg := NewConfig(opts...)
	instanceID := uuid.New().String()
	d := newDriver(ctx, cfg, instanceID)
	go d.runWithRecover()
	return &Client{cfg: cfg, instanceID: instanceID, d: d}
}

// InstanceID returns the uuid assigned to this Client at construction,
// included in every log line its driver emits so concurrently running
// connections can be told apart.
func (c *Client) InstanceID() string {
	return c.instanceID
}

// Do submits one command's already-encoded bytes and waits for its reply.
// Canceling ctx abandons the wait from the caller's side only — the
// driver still owns the request, will still consume the eventual reply,
// and the reply is discarded once delivered.
func (c *Client) Do(ctx context.Context, b []byte) (resp.Value, error) {
	replyCh := make(chan Reply, 1)
	j := job{data: b, kind: kindSingle, count: 1, replyCh: replyCh}

	select {
	case c.d.submit <- j:
	case <-ctx.Done():
		return resp.Value{}, ctx.Err()
	case <-c.d.done:
		return resp.Value{}, ErrClosed
	}

	select {
	case r := <-replyCh:
		if r.Err != nil {
			return resp.Value{}, r.Err
		}
		return r.Value, nil
	case <-ctx.Done():
		return resp.Value{}, ctx.Err()
	}
}

// Pipeline submits count commands' concatenated, already-encoded bytes
// and waits for all count replies as a single ordered list. No individual
// reply is observable before the whole pipeline completes.
func (c *Client) Pipeline(ctx context.Context, b []byte, count int) ([]resp.Value, error) {
	if count < 1 {
		return nil, fmt.Errorf("client: pipeline: count must be >= 1")
	}
	replyCh := make(chan Reply, 1)
	j := job{data: b, kind: kindPipeline, count: count, replyCh: replyCh}

	select {
	case c.d.submit <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.d.done:
		return nil, ErrClosed
	}

	select {
	case r := <-replyCh:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Values, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DoAsync submits one command's encoded bytes without waiting; the reply
// is delivered to replyCh, or silently dropped if replyCh is nil.
func (c *Client) DoAsync(b []byte, replyCh chan<- Reply) {
	j := job{data: b, kind: kindSingle, count: 1, replyCh: replyCh}
	select {
	case c.d.submit <- j:
	case <-c.d.done:
		sendReply(replyCh, Reply{Err: ErrClosed})
	}
}

// Close terminates the Client cleanly: every pending caller receives
// ErrClosed and the socket is closed. Close blocks until the driver
// goroutine has fully exited and is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.d.stop) })
	<-c.d.done
	return nil
}
