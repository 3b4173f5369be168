package client

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"
)

// fakeServer is a minimal scripted RESP server: it reads one line at a
// time and replies according to handler, until the connection closes.
type fakeServer struct {
	ln net.Listener
}

func newFakeServer(t *testing.T, handle func(conn net.Conn)) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		handle(conn)
	}()
	return &fakeServer{ln: ln}
}

func (f *fakeServer) addr() string { return f.ln.Addr().String() }
func (f *fakeServer) close()       { f.ln.Close() }

// readMultiBulk reads one complete RESP multi-bulk command off r, ignoring
// its contents beyond counting lines, and returns it unparsed — good
// enough for a scripted test server that just needs to know "a command
// arrived" before replying.
func readMultiBulk(r *bufio.Reader) (string, error) {
	var b strings.Builder
	header, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	b.WriteString(header)
	if len(header) < 2 || header[0] != '*' {
		return b.String(), nil
	}
	n := 0
	for _, c := range header[1 : len(header)-2] {
		n = n*10 + int(c-'0')
	}
	for i := 0; i < n; i++ {
		lenLine, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}
		b.WriteString(lenLine)
		l := 0
		for _, c := range lenLine[1 : len(lenLine)-2] {
			l = l*10 + int(c-'0')
		}
		payload := make([]byte, l+2)
		if _, err := readFull(r, payload); err != nil {
			return "", err
		}
		b.Write(payload)
	}
	return b.String(), nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestConnectOnce_NoAuthNoSelect(t *testing.T) {
	srv := newFakeServer(t, func(conn net.Conn) {
		defer conn.Close()
		r := bufio.NewReader(conn)
		// nothing to read; bootstrap should complete without handshake.
		_ = r
		time.Sleep(200 * time.Millisecond)
	})
	defer srv.close()

	host, portStr, _ := net.SplitHostPort(srv.addr())
	port := 0
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}
	cfg := NewConfig(WithHostPort(host, port), WithConnectTimeout(time.Second))
	tr, err := connectOnce(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("connectOnce: %v", err)
	}
	defer tr.Close()
}

func TestConnectOnce_AuthSuccess(t *testing.T) {
	srv := newFakeServer(t, func(conn net.Conn) {
		defer conn.Close()
		r := bufio.NewReader(conn)
		if _, err := readMultiBulk(r); err != nil {
			return
		}
		conn.Write([]byte("+OK\r\n"))
		time.Sleep(200 * time.Millisecond)
	})
	defer srv.close()

	host, portStr, _ := net.SplitHostPort(srv.addr())
	port := 0
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}
	cfg := NewConfig(
		WithHostPort(host, port),
		WithPassword(StaticCredentialString("secret")),
		WithConnectTimeout(time.Second),
	)
	tr, err := connectOnce(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("connectOnce: %v", err)
	}
	defer tr.Close()
}

func TestConnectOnce_AuthFailure(t *testing.T) {
	srv := newFakeServer(t, func(conn net.Conn) {
		defer conn.Close()
		r := bufio.NewReader(conn)
		if _, err := readMultiBulk(r); err != nil {
			return
		}
		conn.Write([]byte("-ERR invalid password\r\n"))
	})
	defer srv.close()

	host, portStr, _ := net.SplitHostPort(srv.addr())
	port := 0
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}
	cfg := NewConfig(
		WithHostPort(host, port),
		WithPassword(StaticCredentialString("wrong")),
		WithConnectTimeout(time.Second),
	)
	_, err := connectOnce(context.Background(), &cfg)
	if err == nil {
		t.Fatal("expected auth error")
	}
}

// TestConnectOnce_SentinelFailover points the bootstrap at two monitor
// endpoints: the first refuses the connection, the second names a master
// that is actually this test's fake server. Bootstrap must fall through
// the dead monitor and connect to the endpoint the live one named.
func TestConnectOnce_SentinelFailover(t *testing.T) {
	srv := newFakeServer(t, func(conn net.Conn) {
		defer conn.Close()
		time.Sleep(200 * time.Millisecond)
	})
	defer srv.close()
	masterHost, masterPortStr, _ := net.SplitHostPort(srv.addr())

	monitor := newFakeServer(t, func(conn net.Conn) {
		defer conn.Close()
		r := bufio.NewReader(conn)
		if _, err := readMultiBulk(r); err != nil {
			return
		}
		reply := "*2\r\n$" + strconv.Itoa(len(masterHost)) + "\r\n" + masterHost +
			"\r\n$" + strconv.Itoa(len(masterPortStr)) + "\r\n" + masterPortStr + "\r\n"
		conn.Write([]byte(reply))
	})
	defer monitor.close()

	cfg := NewConfig(
		WithSentinel("mymaster", []string{"127.0.0.1:1", monitor.addr()}),
		WithConnectTimeout(time.Second),
	)
	tr, err := connectOnce(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("connectOnce: %v", err)
	}
	defer tr.Close()
}

func TestConnectOnce_DialFailure(t *testing.T) {
	cfg := NewConfig(WithHostPort("127.0.0.1", 1), WithConnectTimeout(200*time.Millisecond))
	_, err := connectOnce(context.Background(), &cfg)
	if err == nil {
		t.Fatal("expected dial error")
	}
}
