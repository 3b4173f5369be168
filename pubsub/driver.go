package pubsub

import (
	"context"
	"log"
	"time"

	"github.com/nordix/goredis/client"
	"github.com/nordix/goredis/internal/wire"
	"github.com/nordix/goredis/resp"
	"github.com/nordix/goredis/transport"
)

type cmdKind int

const (
	cmdSubscribe cmdKind = iota
	cmdUnsubscribe
	cmdPSubscribe
	cmdPUnsubscribe
	cmdAck
	cmdControllingProcess
)

// cmd is what the public API hands to the driver over the cmds channel.
// result is nil for cmdAck, which has nothing to report.
type cmd struct {
	kind   cmdKind
	args   []string
	result chan<- error

	consumer       chan<- Message
	handoffTimeout time.Duration
}

// driver owns the socket, parser state, tracked subscription sets, and
// delivery queue for one Subscriber — the same single-goroutine-owns-
// everything model client.driver uses, generalized for push delivery
// instead of a request/reply queue.
type driver struct {
	ctx context.Context
	cfg Config

	instanceID string

	cmds chan cmd
	stop chan struct{}
	done chan struct{}

	tr     transport.Transport
	parser *resp.Parser

	channels map[string]bool
	patterns map[string]bool

	consumer    chan<- Message
	queue       []Message
	awaitingAck bool
	dropped     int

	// handoffAcks receives a token from Subscriber.AckHandoff. It is read
	// only inside handleControllingProcess's own wait, never from the main
	// select loop, so an AckHandoff call outside an active handoff stays
	// buffered and ends the next handoff's wait, whatever its token (or is
	// dropped if the buffer is already full).
	handoffAcks chan string

	connectedAt   time.Time
	cooldownArmed bool
	timer         *time.Timer

	stopped bool
}

func newDriver(ctx context.Context, cfg Config, instanceID string) *driver {
	return &driver{
		ctx:         ctx,
		cfg:         cfg,
		instanceID:  instanceID,
		cmds:        make(chan cmd),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		parser:      resp.NewParser(),
		channels:    make(map[string]bool),
		patterns:    make(map[string]bool),
		handoffAcks: make(chan string, 1),
		consumer:    cfg.InitialConsumer,
	}
}

// runWithRecover is the goroutine entry point. A panic carrying
// maxQueueSizeError is the exit-on-overflow policy's deliberate fatal exit,
// mirroring client.driver.runWithRecover's treatment of emptyQueueError.
func (d *driver) runWithRecover() {
	defer close(d.done)
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(maxQueueSizeError); ok {
				log.Printf("[%s] pubsub: fatal: max queue size exceeded, driver exiting", d.instanceID)
				d.deliver(Message{Kind: KindDisconnected, Err: ErrMaxQueueSize})
				if d.tr != nil {
					d.tr.Close()
				}
				if d.cfg.Conn.Metrics != nil {
					d.cfg.Conn.Metrics.UnregisterSubscriber(d.instanceID)
				}
				return
			}
			panic(r)
		}
	}()
	d.run()
}

func (d *driver) run() {
	if d.cfg.Conn.Metrics != nil {
		d.cfg.Conn.Metrics.RegisterSubscriber(d.instanceID)
	}
	d.initialConnect()

	for !d.stopped {
		var timerC <-chan time.Time
		if d.timer != nil {
			timerC = d.timer.C
		}
		var chunks <-chan transport.Chunk
		if d.tr != nil {
			chunks = d.tr.Chunks()
		}

		select {
		case c := <-d.cmds:
			d.handleCmd(c)
		case chunk := <-chunks:
			d.handleChunk(chunk)
		case <-timerC:
			d.timer = nil
			d.cooldownArmed = false
			d.attemptReconnect()
		case <-d.stop:
			d.shutdown()
			return
		}
	}
	d.shutdown()
}

func (d *driver) initialConnect() {
	tr, err := client.Connect(d.ctx, &d.cfg.Conn)
	if err != nil {
		log.Printf("[%s] pubsub: initial connect failed: %v", d.instanceID, err)
		if d.cfg.Conn.ReconnectSleep == client.NoReconnect {
			d.stopped = true
			return
		}
		d.armCooldown()
		return
	}
	d.onConnected(tr)
}

// onConnected replays the tracked subscribe/psubscribe sets before
// announcing {connected}: a consumer never sees {connected} before the
// server has been told again what it was subscribed to.
func (d *driver) onConnected(tr transport.Transport) {
	d.tr = tr
	d.connectedAt = time.Now()
	if d.cfg.Conn.Metrics != nil {
		d.cfg.Conn.Metrics.SetSubscriberConnected(d.instanceID, true)
	}

	if len(d.channels) > 0 {
		chans := make([]string, 0, len(d.channels))
		for ch := range d.channels {
			chans = append(chans, ch)
		}
		if err := d.tr.Send(wire.Subscribe("SUBSCRIBE", chans...)); err != nil {
			d.handleDisconnect(err)
			return
		}
	}
	if len(d.patterns) > 0 {
		pats := make([]string, 0, len(d.patterns))
		for p := range d.patterns {
			pats = append(pats, p)
		}
		if err := d.tr.Send(wire.Subscribe("PSUBSCRIBE", pats...)); err != nil {
			d.handleDisconnect(err)
			return
		}
	}

	d.deliver(Message{Kind: KindConnected})
}

func (d *driver) handleCmd(c cmd) {
	switch c.kind {
	case cmdSubscribe:
		d.sendTracking(c, "SUBSCRIBE", d.channels)
	case cmdUnsubscribe:
		d.sendUntracking(c, "UNSUBSCRIBE", d.channels)
	case cmdPSubscribe:
		d.sendTracking(c, "PSUBSCRIBE", d.patterns)
	case cmdPUnsubscribe:
		d.sendUntracking(c, "PUNSUBSCRIBE", d.patterns)
	case cmdAck:
		d.handleAck()
	case cmdControllingProcess:
		d.handleControllingProcess(c)
	}
}

func (d *driver) sendTracking(c cmd, verb string, set map[string]bool) {
	if d.tr == nil {
		c.result <- ErrNoConnection
		return
	}
	if err := d.tr.Send(wire.Subscribe(verb, c.args...)); err != nil {
		c.result <- err
		d.handleDisconnect(err)
		return
	}
	for _, a := range c.args {
		set[a] = true
	}
	c.result <- nil
}

func (d *driver) sendUntracking(c cmd, verb string, set map[string]bool) {
	if d.tr == nil {
		c.result <- ErrNoConnection
		return
	}
	if err := d.tr.Send(wire.Unsubscribe(verb, c.args...)); err != nil {
		c.result <- err
		d.handleDisconnect(err)
		return
	}
	if len(c.args) == 0 {
		for k := range set {
			delete(set, k)
		}
	} else {
		for _, a := range c.args {
			delete(set, a)
		}
	}
	c.result <- nil
}

// handleControllingProcess hands delivery off to a new consumer: if one is
// already registered and a positive timeout was given, the outgoing
// consumer is first sent a {handoff, token} and given up to timeout to call
// AckHandoff before the switch proceeds anyway. This briefly pauses the
// driver's main select loop for the duration of the wait — acceptable for
// what is meant to be a rare, short administrative operation, not a
// steady-state one.
func (d *driver) handleControllingProcess(c cmd) {
	if d.consumer != nil && c.handoffTimeout > 0 {
		token := uuidToken()
		d.deliver(Message{Kind: KindHandoff, Token: token})
		select {
		case <-d.handoffAcks:
		case <-time.After(c.handoffTimeout):
		}
	}
	d.consumer = c.consumer
	d.awaitingAck = false
	c.result <- nil
}

func (d *driver) handleChunk(chunk transport.Chunk) {
	if chunk.Err != nil {
		d.handleDisconnect(chunk.Err)
		return
	}
	data := chunk.Data
	for {
		outcome, err := d.parser.Parse(data)
		if err != nil {
			d.handleDisconnect(err)
			return
		}
		if !outcome.Done {
			break
		}
		d.handlePushValue(outcome.Value)
		if len(outcome.Leftover) == 0 {
			break
		}
		data = outcome.Leftover
	}
	if err := d.tr.SetMode(transport.ModeActive); err != nil {
		d.handleDisconnect(err)
	}
}

// handlePushValue dispatches one decoded push reply by its first array
// element: message, pmessage, subscribe, or unsubscribe framing.
// subscribe/unsubscribe acks bypass the bounded queue entirely — only
// message/pmessage deliveries are subject to backpressure.
func (d *driver) handlePushValue(v resp.Value) {
	if v.Kind != resp.KindArray || len(v.Array) < 2 {
		return
	}
	kind := string(v.Array[0].Str)
	switch kind {
	case "message":
		if len(v.Array) < 3 {
			return
		}
		d.enqueue(Message{Kind: KindMessage, Channel: string(v.Array[1].Str), Payload: v.Array[2].Str})
	case "pmessage":
		if len(v.Array) < 4 {
			return
		}
		d.enqueue(Message{Kind: KindPMessage, Pattern: string(v.Array[1].Str), Channel: string(v.Array[2].Str), Payload: v.Array[3].Str})
	case "subscribe":
		d.deliver(Message{Kind: KindSubscribed, Channel: string(v.Array[1].Str)})
	case "unsubscribe":
		d.deliver(Message{Kind: KindUnsubscribed, Channel: string(v.Array[1].Str)})
	case "psubscribe":
		d.deliver(Message{Kind: KindSubscribed, Pattern: string(v.Array[1].Str)})
	case "punsubscribe":
		d.deliver(Message{Kind: KindUnsubscribed, Pattern: string(v.Array[1].Str)})
	}
}

// enqueue implements the bounded-queue/ack-gating policy: if the consumer
// isn't waiting on an outstanding ack, the message is delivered immediately
// and becomes the one awaiting ack; otherwise it joins the backlog, subject
// to MaxQueueSize and Overflow.
func (d *driver) enqueue(msg Message) {
	if !d.awaitingAck {
		d.deliver(msg)
		d.awaitingAck = true
		return
	}
	if d.cfg.MaxQueueSize > 0 && len(d.queue) >= d.cfg.MaxQueueSize {
		switch d.cfg.Overflow {
		case PolicyExit:
			panic(maxQueueSizeError{})
		default:
			d.dropped++
			if d.cfg.Conn.Metrics != nil {
				d.cfg.Conn.Metrics.AddDropped(d.instanceID, 1)
			}
			return
		}
	}
	d.queue = append(d.queue, msg)
	d.reportQueueDepth()
}

// handleAck implements Ack(): deliver the next queued message if any
// remain, otherwise clear the awaiting-ack gate and, if the backlog had
// dropped anything since it last drained, emit a single {dropped, n}.
func (d *driver) handleAck() {
	if len(d.queue) > 0 {
		msg := d.queue[0]
		d.queue = d.queue[1:]
		d.reportQueueDepth()
		d.deliver(msg)
		d.awaitingAck = true
		return
	}
	d.awaitingAck = false
	if d.dropped > 0 {
		n := d.dropped
		d.dropped = 0
		d.deliver(Message{Kind: KindDropped, Dropped: n})
	}
}

func (d *driver) handleDisconnect(err error) {
	d.deliver(Message{Kind: KindDisconnected, Err: err})
	if d.tr != nil {
		d.tr.Close()
		d.tr = nil
	}
	if d.cfg.Conn.Metrics != nil {
		d.cfg.Conn.Metrics.SetSubscriberConnected(d.instanceID, false)
	}

	if d.cfg.Conn.ReconnectSleep == client.NoReconnect {
		d.stopped = true
		return
	}
	if d.cooldownArmed {
		return
	}
	if !d.connectedAt.IsZero() && time.Since(d.connectedAt) < time.Duration(d.cfg.Conn.ReconnectSleep) {
		d.armCooldown()
		return
	}
	log.Printf("[%s] pubsub: disconnected: %v", d.instanceID, err)
	d.attemptReconnect()
}

func (d *driver) attemptReconnect() {
	if d.cfg.Conn.Metrics != nil {
		d.cfg.Conn.Metrics.IncReconnects(d.instanceID)
	}
	tr, err := client.Connect(d.ctx, &d.cfg.Conn)
	if err != nil {
		log.Printf("[%s] pubsub: reconnect failed: %v", d.instanceID, err)
		d.armCooldown()
		return
	}
	d.onConnected(tr)
}

func (d *driver) armCooldown() {
	d.timer = time.NewTimer(time.Duration(d.cfg.Conn.ReconnectSleep))
	d.cooldownArmed = true
}

func (d *driver) shutdown() {
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	if d.tr != nil {
		d.tr.Close()
		d.tr = nil
	}
	if d.cfg.Conn.Metrics != nil {
		d.cfg.Conn.Metrics.UnregisterSubscriber(d.instanceID)
	}
}

func (d *driver) reportQueueDepth() {
	if d.cfg.Conn.Metrics != nil {
		d.cfg.Conn.Metrics.SetQueueDepth(d.instanceID, len(d.queue))
	}
}

// deliver sends msg to the current consumer without blocking the driver,
// the same non-blocking-then-goroutine-fallback pattern client.sendReply
// uses. A nil consumer (no ControllingProcess registered yet) is a no-op.
func (d *driver) deliver(msg Message) {
	if d.consumer == nil {
		return
	}
	select {
	case d.consumer <- msg:
	default:
		go func(ch chan<- Message) { ch <- msg }(d.consumer)
	}
}
