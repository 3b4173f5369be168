package client

import "errors"

// Sentinel errors for the command client. Wrapped with %w and a
// package-prefixed message at the call site so callers can use
// errors.Is/errors.As instead of string matching.
var (
	ErrNoConnection = errors.New("client: no connection")
	ErrConnection   = errors.New("client: connection error")
	ErrTLSUpgrade   = errors.New("client: failed to upgrade to tls")
	ErrAuth         = errors.New("client: authentication error")
	ErrSelect       = errors.New("client: select error")
	ErrEmptyQueue   = errors.New("client: empty queue")
	ErrClosed       = errors.New("client: closed")
)

// emptyQueueError is the panic value the driver raises when a reply
// arrives with nothing pending — a protocol-integrity violation treated
// as fatal rather than something to silently recover from.
type emptyQueueError struct{}

func (emptyQueueError) Error() string { return ErrEmptyQueue.Error() }
