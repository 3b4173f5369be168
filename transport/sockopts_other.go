//go:build !unix

package transport

import (
	"net"
	"time"
)

// SocketOptions mirrors the unix build's type so client.Config compiles
// the same way on every platform; on non-unix targets the fields are
// accepted but ApplySocketOptions is a no-op, since x/sys/unix has nothing
// to offer there.
type SocketOptions struct {
	NoDelay           bool
	KeepAlive         bool
	KeepAliveInterval time.Duration
	SendBufferBytes   int
	RecvBufferBytes   int
}

// ApplySocketOptions is a no-op outside unix-family platforms.
func ApplySocketOptions(conn net.Conn, opts SocketOptions) error {
	return nil
}
