package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/nordix/goredis/client"
	"github.com/nordix/goredis/internal/wire"
	"github.com/nordix/goredis/pubsub"
)

const defaultAddr = "localhost:6379"
const channel = "example:events"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func getAddr() string {
	if v := os.Getenv("GOREDIS_ADDR"); v != "" {
		return v
	}
	return defaultAddr
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	host, port, err := splitAddr(getAddr())
	if err != nil {
		return err
	}

	msgs := make(chan pubsub.Message, 16)
	sub := pubsub.New(ctx,
		pubsub.WithConnOptions(client.WithHostPort(host, port), client.WithConnectTimeout(5*time.Second)),
		pubsub.WithMaxQueueSize(64),
		pubsub.WithConsumer(msgs),
	)
	defer sub.Close()

	pub := client.New(ctx, client.WithHostPort(host, port), client.WithConnectTimeout(5*time.Second))
	defer pub.Close()
	time.Sleep(100 * time.Millisecond)

	go publishLoop(ctx, pub)

	for {
		select {
		case <-ctx.Done():
			fmt.Println("shutting down")
			return nil
		case m := <-msgs:
			handleMessage(sub, m)
		}
	}
}

func handleMessage(sub *pubsub.Subscriber, m pubsub.Message) {
	switch m.Kind {
	case pubsub.KindConnected:
		fmt.Println("connected, subscribing to", channel)
		if err := sub.Subscribe(context.Background(), channel); err != nil {
			log.Printf("subscribe: %v", err)
		}
	case pubsub.KindDisconnected:
		fmt.Printf("disconnected: %v\n", m.Err)
	case pubsub.KindSubscribed:
		fmt.Printf("subscribed to %s\n", m.Channel)
	case pubsub.KindUnsubscribed:
		fmt.Printf("unsubscribed from %s\n", m.Channel)
	case pubsub.KindMessage:
		fmt.Printf("message on %s: %s\n", m.Channel, m.Payload)
		sub.Ack()
	case pubsub.KindDropped:
		fmt.Printf("dropped %d messages\n", m.Dropped)
	case pubsub.KindHandoff:
		sub.AckHandoff(m.Token)
	}
}

func publishLoop(ctx context.Context, pub *client.Client) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for i := 1; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload := fmt.Sprintf("tick-%d", i)
			if _, err := pub.Do(ctx, wire.MultiBulk("PUBLISH", channel, payload)); err != nil {
				log.Printf("publish: %v", err)
			}
		}
	}
}

func splitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("split addr %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("parse port %q: %w", portStr, err)
	}
	return host, port, nil
}
