package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"
)

// Upgrade takes an already-connected, passive-mode plain Transport and
// returns a TLS-wrapped Transport over the same underlying socket. The
// input transport must be in ModePassive — upgrading a socket mid-active-
// read would race the handshake bytes against an in-flight arm.
func Upgrade(ctx context.Context, t Transport, cfg *tls.Config, timeout time.Duration) (Transport, error) {
	ct, ok := t.(*connTransport)
	if !ok {
		return nil, fmt.Errorf("transport: upgrade: unsupported transport type %T", t)
	}

	ct.mu.Lock()
	if ct.mode != ModePassive {
		ct.mu.Unlock()
		return nil, fmt.Errorf("transport: upgrade: transport not in passive mode")
	}
	conn := ct.conn
	ct.mu.Unlock()

	tlsConn := tls.Client(conn, cfg)
	if timeout > 0 {
		if err := tlsConn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return nil, fmt.Errorf("transport: upgrade: set deadline: %w", err)
		}
		defer tlsConn.SetDeadline(time.Time{})
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("transport: upgrade: handshake: %w", err)
	}

	return newConnTransport(tlsConn), nil
}
