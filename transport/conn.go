package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// connTransport implements Transport over any net.Conn, so the plain-TCP
// and TLS variants share every bit of mode/read-arming logic; only how the
// net.Conn itself is obtained differs between them.
type connTransport struct {
	conn net.Conn

	mu     sync.Mutex
	mode   Mode
	armed  bool
	closed bool

	chunks chan Chunk
}

func newConnTransport(conn net.Conn) *connTransport {
	return &connTransport{
		conn:   conn,
		mode:   ModePassive,
		chunks: make(chan Chunk, 1),
	}
}

func (t *connTransport) Send(buf []byte) error {
	_, err := t.conn.Write(buf)
	if err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

func (t *connTransport) PassiveRecv(n int, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, fmt.Errorf("transport: set read deadline: %w", err)
		}
		defer t.conn.SetReadDeadline(time.Time{})
	}
	buf := make([]byte, n)
	nRead, err := t.conn.Read(buf)
	if err != nil && nRead == 0 {
		return nil, fmt.Errorf("transport: recv: %w", err)
	}
	return buf[:nRead], nil
}

func (t *connTransport) SetMode(mode Mode) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("transport: set mode: %w", errClosed)
	}
	t.mode = mode
	if mode == ModeActive && !t.armed {
		t.armed = true
		go t.armedRead()
	}
	return nil
}

// armedRead performs the single asynchronous read a ModeActive arming
// promises, then disarms. It never issues a second read on its own — the
// caller must observe the chunk and call SetMode(ModeActive) again. This
// gives the driver implicit backpressure against the kernel: reads never
// run ahead of how fast the chunk is actually processed.
func (t *connTransport) armedRead() {
	buf := make([]byte, 64*1024)
	n, err := t.conn.Read(buf)

	t.mu.Lock()
	t.armed = false
	t.mode = ModePassive
	closed := t.closed
	t.mu.Unlock()

	if closed {
		return
	}

	var chunk Chunk
	if err != nil {
		chunk = Chunk{Err: fmt.Errorf("transport: recv: %w", err)}
	} else {
		chunk = Chunk{Data: buf[:n]}
	}
	t.chunks <- chunk
}

func (t *connTransport) Chunks() <-chan Chunk {
	return t.chunks
}

func (t *connTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	return t.conn.Close()
}

func (t *connTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

// ApplyOptions applies the given socket options to t's underlying
// connection, if it exposes one suitable for tuning (a raw TCP socket; a
// unix-domain or TLS-wrapped connection is left untouched).
func ApplyOptions(t Transport, opts SocketOptions) error {
	ct, ok := t.(*connTransport)
	if !ok {
		return nil
	}
	return ApplySocketOptions(ct.conn, opts)
}

// DialTCP dials addr (host:port or a UDS path, per the network kind
// returned by Resolve) with a connect timeout, returning a passive-mode
// Transport ready for the handshake.
func DialTCP(ctx context.Context, network, addr string, timeout time.Duration) (Transport, error) {
	d := net.Dialer{Timeout: timeout}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial: %w", err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
	return newConnTransport(conn), nil
}
