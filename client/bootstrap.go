package client

import (
	"context"
	"fmt"
	"time"

	"github.com/nordix/goredis/internal/wire"
	"github.com/nordix/goredis/resp"
	"github.com/nordix/goredis/sentinel"
	"github.com/nordix/goredis/transport"
)

// Connect runs the same bootstrap connectOnce uses internally, exported
// so other packages built on the same connection lifecycle — pubsub, in
// particular — can reuse the handshake instead of re-implementing it.
func Connect(ctx context.Context, cfg *Config) (transport.Transport, error) {
	return connectOnce(ctx, cfg)
}

// connectOnce runs the full connection bootstrap: sentinel resolution,
// address resolution, per-address dial with fallback, TLS upgrade, AUTH,
// SELECT, and re-arming active mode. It returns a transport ready for the
// driver loop, or a wrapped error identifying which step failed. cfg is a
// pointer so the credential bytes resolved during AUTH are memoized into
// the caller's long-lived config, not a per-attempt copy.
func connectOnce(ctx context.Context, cfg *Config) (transport.Transport, error) {
	host, port := cfg.Host, cfg.Port

	if cfg.Sentinel != nil {
		resolvedHost, resolvedPort, err := sentinel.GetMasterAddr(ctx, cfg.Sentinel.MasterGroup, cfg.Sentinel.Monitors, cfg.ConnectTimeout)
		if err != nil {
			return nil, fmt.Errorf("client: sentinel: %w", err)
		}
		host, port = resolvedHost, resolvedPort
	}

	var addrs []transport.Addr
	if cfg.UDSPath != "" {
		addrs = transport.ResolveUnix(cfg.UDSPath)
	} else {
		var err error
		addrs, err = transport.Resolve(ctx, host, port)
		if err != nil {
			return nil, fmt.Errorf("client: dial: %w: %w", ErrConnection, err)
		}
	}

	tr, err := dialFirst(ctx, addrs, cfg.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("client: dial: %w: %w", ErrConnection, err)
	}

	if err := transport.ApplyOptions(tr, cfg.SocketOptions); err != nil {
		tr.Close()
		return nil, fmt.Errorf("client: dial: %w: %w", ErrConnection, err)
	}

	if cfg.TLS != nil {
		upgraded, err := transport.Upgrade(ctx, tr, cfg.TLS, cfg.ConnectTimeout)
		if err != nil {
			tr.Close()
			return nil, fmt.Errorf("client: %w: %w", ErrTLSUpgrade, err)
		}
		tr = upgraded
	}

	if !cfg.Username.IsZero() || !cfg.Password.IsZero() {
		authBytes := wire.Auth(string(cfg.Username.Bytes()), string(cfg.Password.Bytes()))
		if err := handshakeExpectOK(tr, authBytes, cfg.RecvTimeout); err != nil {
			tr.Close()
			return nil, fmt.Errorf("client: %w: %w", ErrAuth, err)
		}
	}

	if cfg.Database != 0 {
		selectBytes := wire.Select(cfg.Database)
		if err := handshakeExpectOK(tr, selectBytes, cfg.RecvTimeout); err != nil {
			tr.Close()
			return nil, fmt.Errorf("client: %w: %w", ErrSelect, err)
		}
	}

	if err := tr.SetMode(transport.ModeActive); err != nil {
		tr.Close()
		return nil, fmt.Errorf("client: dial: %w: %w", ErrConnection, err)
	}

	return tr, nil
}

// dialFirst attempts addrs in order, returning the first successful dial
// and continuing to the next address on failure; it fails only once the
// whole list is exhausted.
func dialFirst(ctx context.Context, addrs []transport.Addr, timeout time.Duration) (transport.Transport, error) {
	var lastErr error
	for _, addr := range addrs {
		tr, err := transport.DialTCP(ctx, addr.Network, addr.Addr, timeout)
		if err == nil {
			return tr, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no addresses to dial")
	}
	return nil, lastErr
}

// handshakeExpectOK sends req over tr (which must be in passive mode) and
// expects a literal +OK\r\n reply. Anything else — an Error reply, a
// different SimpleString, or a non-scalar value — is treated as an
// unexpected-response failure.
func handshakeExpectOK(tr transport.Transport, req []byte, timeout time.Duration) error {
	if err := tr.Send(req); err != nil {
		return err
	}
	parser := resp.NewParser()
	for {
		chunk, err := tr.PassiveRecv(4096, timeout)
		if err != nil {
			return err
		}
		if len(chunk) == 0 {
			return fmt.Errorf("connection closed during handshake")
		}
		outcome, err := parser.Parse(chunk)
		if err != nil {
			return err
		}
		if !outcome.Done {
			continue
		}
		v := outcome.Value
		if v.Kind == resp.KindSimpleString && string(v.Str) == "OK" {
			return nil
		}
		if v.Kind == resp.KindError {
			return fmt.Errorf("unexpected response: %s", v.String())
		}
		return fmt.Errorf("unexpected response: %v", v)
	}
}
