//go:build unix

package transport

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// SocketOptions is passthrough TCP tuning applied to a dialed connection;
// zero-value fields are left at whatever the kernel default is.
type SocketOptions struct {
	NoDelay           bool
	KeepAlive         bool
	KeepAliveInterval time.Duration
	SendBufferBytes   int
	RecvBufferBytes   int
}

// ApplySocketOptions tunes the raw file descriptor backing conn. Only
// *net.TCPConn carries a usable fd for this; a unix-domain or already-TLS-
// wrapped connection is left untouched. The standard library's net
// package covers TCP_NODELAY and SO_KEEPALIVE (DialTCP already uses
// SetNoDelay), but it has no call that sets TCP_KEEPINTVL on its own, so
// every option here is applied through x/sys/unix on the raw fd.
func ApplySocketOptions(conn net.Conn, opts SocketOptions) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	raw, err := tcpConn.SyscallConn()
	if err != nil {
		return fmt.Errorf("transport: socket options: syscall conn: %w", err)
	}

	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		if opts.NoDelay {
			if sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); sockErr != nil {
				return
			}
		}
		if opts.KeepAlive {
			if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); sockErr != nil {
				return
			}
		}
		if opts.KeepAliveInterval > 0 {
			secs := int(opts.KeepAliveInterval.Seconds())
			if secs < 1 {
				secs = 1
			}
			if sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, secs); sockErr != nil {
				return
			}
		}
		if opts.SendBufferBytes > 0 {
			if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, opts.SendBufferBytes); sockErr != nil {
				return
			}
		}
		if opts.RecvBufferBytes > 0 {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, opts.RecvBufferBytes)
		}
	})
	if ctrlErr != nil {
		return fmt.Errorf("transport: socket options: control: %w", ctrlErr)
	}
	if sockErr != nil {
		return fmt.Errorf("transport: socket options: setsockopt: %w", sockErr)
	}
	return nil
}
