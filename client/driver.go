package client

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/nordix/goredis/resp"
	"github.com/nordix/goredis/transport"
)

type pendingKind int

const (
	kindSingle pendingKind = iota
	kindPipeline
)

// pendingRequest is one entry in the driver's pending queue: a request
// that has been written to the socket and is waiting for its reply. The
// pending queue ([]*pendingRequest) is owned exclusively by the driver
// goroutine, so no mutex is needed around it at all.
type pendingRequest struct {
	kind        pendingKind
	remaining   int
	accumulated []resp.Value
	replyCh     chan<- Reply
}

// Reply is what a driver delivers back to a caller: Value for a Single
// request, Values for a Pipeline, or Err on failure (transport error, or a
// server-sent Error reply to a Single request; a Pipeline's Error replies
// stay in Values).
type Reply struct {
	Value  resp.Value
	Values []resp.Value
	Err    error
}

// job is what Do/Pipeline/DoAsync hand to the driver over the submit
// channel.
type job struct {
	data    []byte
	kind    pendingKind
	count   int
	replyCh chan<- Reply
}

// driver owns the socket, parser state, and pending queue for one Client.
// Every field below is touched only from the goroutine running
// (*driver).run, so the driver itself needs no internal locking.
type driver struct {
	ctx context.Context
	cfg Config

	instanceID string

	submit chan job
	stop   chan struct{}
	done   chan struct{}

	tr      transport.Transport
	parser  *resp.Parser
	pending []*pendingRequest

	connectedAt   time.Time
	cooldownArmed bool
	timer         *time.Timer

	stopped bool
}

func newDriver(ctx context.Context, cfg Config, instanceID string) *driver {
	return &driver{
		ctx:        ctx,
		cfg:        cfg,
		instanceID: instanceID,
		submit:     make(chan job),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		parser:     resp.NewParser(),
	}
}

// runWithRecover is the goroutine entry point. A panic carrying
// emptyQueueError is a deliberate fatal exit: the driver logs and
// terminates without restarting itself, so a supervisor can replace it.
// Any other panic is not something this package anticipates and is
// re-raised.
func (d *driver) runWithRecover() {
	defer close(d.done)
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(emptyQueueError); ok {
				log.Printf("[%s] client: fatal: empty queue, driver exiting", d.instanceID)
				d.failPending(ErrEmptyQueue)
				if d.tr != nil {
					d.tr.Close()
				}
				if d.cfg.Metrics != nil {
					d.cfg.Metrics.UnregisterClient(d.instanceID)
				}
				return
			}
			panic(r)
		}
	}()
	d.run()
}

func (d *driver) run() {
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.RegisterClient(d.instanceID)
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
		case j := <-d.submit:
			d.handleSubmit(j)
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
	tr, err := connectOnce(d.ctx, &d.cfg)
	if err != nil {
		log.Printf("[%s] client: initial connect failed: %v", d.instanceID, err)
		if d.cfg.ReconnectSleep == NoReconnect {
			d.stopped = true
			return
		}
		d.armCooldown()
		return
	}
	d.tr = tr
	d.connectedAt = time.Now()
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.SetConnected(d.instanceID, true)
	}
}

func (d *driver) handleSubmit(j job) {
	if d.tr == nil {
		sendReply(j.replyCh, Reply{Err: ErrNoConnection})
		return
	}
	if err := d.tr.Send(j.data); err != nil {
		sendReply(j.replyCh, Reply{Err: err})
		d.handleDisconnect(err)
		return
	}
	count := j.count
	if j.kind == kindSingle {
		count = 1
	}
	d.pending = append(d.pending, &pendingRequest{
		kind:        j.kind,
		remaining:   count,
		accumulated: make([]resp.Value, 0, count),
		replyCh:     j.replyCh,
	})
	d.reportQueueDepth()
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
		d.replyValue(outcome.Value)
		if len(outcome.Leftover) == 0 {
			break
		}
		data = outcome.Leftover
	}
	if err := d.tr.SetMode(transport.ModeActive); err != nil {
		d.handleDisconnect(err)
	}
}

// replyValue dispatches one decoded reply to the head of the pending
// queue. An empty queue is a protocol-integrity violation: the server
// replied to nothing pending, so the driver panics rather than silently
// recovering — a framing bug here should be loud, not masked.
func (d *driver) replyValue(v resp.Value) {
	if len(d.pending) == 0 {
		panic(emptyQueueError{})
	}
	head := d.pending[0]
	switch head.kind {
	case kindSingle:
		if v.Kind == resp.KindError {
			sendReply(head.replyCh, Reply{Err: errors.New(v.String())})
		} else {
			sendReply(head.replyCh, Reply{Value: v})
		}
		d.pending = d.pending[1:]
	case kindPipeline:
		head.accumulated = append(head.accumulated, v)
		head.remaining--
		if head.remaining == 0 {
			sendReply(head.replyCh, Reply{Values: head.accumulated})
			d.pending = d.pending[1:]
		}
	}
	d.reportQueueDepth()
}

func (d *driver) failPending(err error) {
	for _, p := range d.pending {
		sendReply(p.replyCh, Reply{Err: err})
	}
	d.pending = nil
	d.reportQueueDepth()
}

// handleDisconnect implements the three-way disconnect policy: give up
// for good, wait out an already-armed cooldown, or reconnect immediately
// and arm the cooldown only on failure. The "cooldown already armed vs
// not yet armed" distinction is realized via d.cooldownArmed plus a
// d.connectedAt timestamp standing in for a reconnect timer that would
// otherwise have been started the moment the previous connect succeeded
// — this guards against a reconnect storm when a connection fails again
// almost immediately after a successful handshake (a late TLS failure,
// for instance).
func (d *driver) handleDisconnect(err error) {
	d.failPending(err)
	if d.tr != nil {
		d.tr.Close()
		d.tr = nil
	}
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.SetConnected(d.instanceID, false)
	}

	if d.cfg.ReconnectSleep == NoReconnect {
		d.stopped = true
		return
	}
	if d.cooldownArmed {
		return
	}
	if !d.connectedAt.IsZero() && time.Since(d.connectedAt) < time.Duration(d.cfg.ReconnectSleep) {
		d.armCooldown()
		return
	}
	log.Printf("[%s] client: disconnected: %v", d.instanceID, err)
	d.attemptReconnect()
}

func (d *driver) attemptReconnect() {
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.IncReconnects(d.instanceID)
	}
	tr, err := connectOnce(d.ctx, &d.cfg)
	if err != nil {
		log.Printf("[%s] client: reconnect failed: %v", d.instanceID, err)
		d.armCooldown()
		return
	}
	d.tr = tr
	d.connectedAt = time.Now()
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.SetConnected(d.instanceID, true)
	}
}

func (d *driver) armCooldown() {
	d.timer = time.NewTimer(time.Duration(d.cfg.ReconnectSleep))
	d.cooldownArmed = true
}

func (d *driver) shutdown() {
	d.stopped = true
	d.failPending(ErrClosed)
	if d.timer != nil {
		d.timer.Stop()
	}
	if d.tr != nil {
		d.tr.Close()
		d.tr = nil
	}
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.UnregisterClient(d.instanceID)
	}
}

func (d *driver) reportQueueDepth() {
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.SetPendingQueueDepth(d.instanceID, len(d.pending))
	}
}

// sendReply delivers r to replyCh without blocking the driver. A nil
// channel means the caller asked for no reply at all — it's simply
// dropped. A non-nil channel that isn't immediately ready to receive is
// serviced by a short-lived goroutine instead of blocking the driver
// loop.
func sendReply(replyCh chan<- Reply, r Reply) {
	if replyCh == nil {
		return
	}
	select {
	case replyCh <- r:
	default:
		go func() { replyCh <- r }()
	}
}
