package pubsub

import "errors"

// Sentinel errors for the subscription client.
var (
	ErrNoConnection = errors.New("pubsub: no connection")
	ErrClosed       = errors.New("pubsub: closed")
	ErrMaxQueueSize = errors.New("pubsub: max queue size exceeded")
)

// maxQueueSizeError is the panic value the driver raises when the
// exit-on-overflow policy is configured and the bounded queue fills up,
// mirroring the client package's emptyQueueError: a protocol-integrity/
// backpressure violation the caller opted to treat as fatal rather than
// silently dropping messages for.
type maxQueueSizeError struct{}

func (maxQueueSizeError) Error() string { return ErrMaxQueueSize.Error() }
