package pubsub

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/nordix/goredis/client"
)

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

func splitPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return host, port
}

// readMultiBulk reads one complete RESP multi-bulk command off r, ignoring
// its contents — enough for a scripted server that just needs to know a
// command arrived before replying.
func readMultiBulk(r *bufio.Reader) error {
	header, err := r.ReadString('\n')
	if err != nil {
		return err
	}
	if len(header) < 2 || header[0] != '*' {
		return nil
	}
	n := 0
	for _, c := range header[1 : len(header)-2] {
		n = n*10 + int(c-'0')
	}
	for i := 0; i < n; i++ {
		lenLine, err := r.ReadString('\n')
		if err != nil {
			return err
		}
		l := 0
		for _, c := range lenLine[1 : len(lenLine)-2] {
			l = l*10 + int(c-'0')
		}
		payload := make([]byte, l+2)
		total := 0
		for total < len(payload) {
			n, err := r.Read(payload[total:])
			total += n
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func TestSubscriber_SubscribeAndReceiveMessage(t *testing.T) {
	srv := newFakeServer(t, func(conn net.Conn) {
		defer conn.Close()
		r := bufio.NewReader(conn)
		if err := readMultiBulk(r); err != nil { // SUBSCRIBE ch
			return
		}
		conn.Write([]byte("*3\r\n$9\r\nsubscribe\r\n$2\r\nch\r\n:1\r\n"))
		conn.Write([]byte("*3\r\n$7\r\nmessage\r\n$2\r\nch\r\n$5\r\nhello\r\n"))
		time.Sleep(300 * time.Millisecond)
	})
	defer srv.close()
	host, port := splitPort(t, srv.addr())

	msgs := make(chan Message, 8)
	s := New(context.Background(),
		WithConnOptions(client.WithHostPort(host, port), client.WithConnectTimeout(time.Second)),
		WithConsumer(msgs),
	)
	defer s.Close()

	connected := <-msgs
	if connected.Kind != KindConnected {
		t.Fatalf("expected Connected, got %v", connected.Kind)
	}

	if err := s.Subscribe(context.Background(), "ch"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	sub := <-msgs
	if sub.Kind != KindSubscribed || sub.Channel != "ch" {
		t.Fatalf("expected Subscribed(ch), got %#v", sub)
	}

	msg := <-msgs
	if msg.Kind != KindMessage || msg.Channel != "ch" || string(msg.Payload) != "hello" {
		t.Fatalf("expected Message(ch, hello), got %#v", msg)
	}
}

func TestSubscriber_AckGatingAndDrop(t *testing.T) {
	srv := newFakeServer(t, func(conn net.Conn) {
		defer conn.Close()
		r := bufio.NewReader(conn)
		if err := readMultiBulk(r); err != nil {
			return
		}
		conn.Write([]byte("*3\r\n$9\r\nsubscribe\r\n$2\r\nch\r\n:1\r\n"))
		for i := 0; i < 4; i++ {
			conn.Write([]byte("*3\r\n$7\r\nmessage\r\n$2\r\nch\r\n$1\r\nx\r\n"))
		}
		time.Sleep(300 * time.Millisecond)
	})
	defer srv.close()
	host, port := splitPort(t, srv.addr())

	msgs := make(chan Message, 8)
	s := New(context.Background(),
		WithConnOptions(client.WithHostPort(host, port), client.WithConnectTimeout(time.Second)),
		WithMaxQueueSize(1),
		WithOverflowPolicy(PolicyDrop),
		WithConsumer(msgs),
	)
	defer s.Close()
	<-msgs // connected

	if err := s.Subscribe(context.Background(), "ch"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	<-msgs // subscribed

	// Four messages arrive; with MaxQueueSize 1 and no acks yet, the first
	// is delivered immediately (awaiting ack), one more fits in the
	// backlog, and the rest are dropped.
	time.Sleep(200 * time.Millisecond)

	first := <-msgs
	if first.Kind != KindMessage {
		t.Fatalf("expected first Message, got %#v", first)
	}

	s.Ack()
	second := <-msgs
	if second.Kind != KindMessage {
		t.Fatalf("expected second Message, got %#v", second)
	}

	s.Ack()
	dropped := <-msgs
	if dropped.Kind != KindDropped || dropped.Dropped < 1 {
		t.Fatalf("expected Dropped with count >= 1, got %#v", dropped)
	}
}

func TestSubscriber_ControllingProcessHandoff(t *testing.T) {
	srv := newFakeServer(t, func(conn net.Conn) {
		defer conn.Close()
		time.Sleep(300 * time.Millisecond)
	})
	defer srv.close()
	host, port := splitPort(t, srv.addr())

	oldConsumer := make(chan Message, 4)
	s := New(context.Background(),
		WithConnOptions(client.WithHostPort(host, port), client.WithConnectTimeout(time.Second)),
		WithConsumer(oldConsumer),
	)
	defer s.Close()
	<-oldConsumer // connected

	newConsumer := make(chan Message, 4)
	handoffDone := make(chan error, 1)
	go func() {
		handoffDone <- s.ControllingProcess(context.Background(), newConsumer, 2*time.Second)
	}()

	handoff := <-oldConsumer
	if handoff.Kind != KindHandoff || handoff.Token == "" {
		t.Fatalf("expected Handoff with a token, got %#v", handoff)
	}
	s.AckHandoff(handoff.Token)

	select {
	case err := <-handoffDone:
		if err != nil {
			t.Fatalf("ControllingProcess: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handoff to complete")
	}
}

func TestSubscriber_NoConnectionBeforeConnect(t *testing.T) {
	s := New(context.Background(), WithConnOptions(client.WithHostPort("127.0.0.1", 1), client.WithConnectTimeout(100*time.Millisecond)))
	defer s.Close()

	err := s.Subscribe(context.Background(), "ch")
	if err == nil {
		t.Fatal("expected error subscribing before any connection exists")
	}
}

func TestSubscriber_Unsubscribe(t *testing.T) {
	done := make(chan struct{})
	srv := newFakeServer(t, func(conn net.Conn) {
		defer conn.Close()
		defer close(done)
		r := bufio.NewReader(conn)
		if err := readMultiBulk(r); err != nil { // SUBSCRIBE ch
			return
		}
		conn.Write([]byte("*3\r\n$9\r\nsubscribe\r\n$2\r\nch\r\n:1\r\n"))
		if err := readMultiBulk(r); err != nil { // UNSUBSCRIBE ch
			return
		}
		conn.Write([]byte("*3\r\n$11\r\nunsubscribe\r\n$2\r\nch\r\n:0\r\n"))
	})
	defer srv.close()
	host, port := splitPort(t, srv.addr())

	msgs := make(chan Message, 8)
	s := New(context.Background(),
		WithConnOptions(client.WithHostPort(host, port), client.WithConnectTimeout(time.Second)),
		WithConsumer(msgs),
	)
	defer s.Close()
	<-msgs // connected

	s.Subscribe(context.Background(), "ch")
	sub := <-msgs
	if sub.Kind != KindSubscribed {
		t.Fatalf("expected Subscribed, got %#v", sub)
	}

	s.Unsubscribe(context.Background(), "ch")
	unsub := <-msgs
	if unsub.Kind != KindUnsubscribed || unsub.Channel != "ch" {
		t.Fatalf("expected Unsubscribed(ch), got %#v", unsub)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("server handler did not complete")
	}
}

func TestSubscriber_CloseIsIdempotent(t *testing.T) {
	s := New(context.Background(), WithConnOptions(client.WithHostPort("127.0.0.1", 1), client.WithConnectTimeout(50*time.Millisecond)))
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
