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
)

const defaultAddr = "localhost:6379"

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

	c := client.New(ctx, client.WithHostPort(host, port), client.WithConnectTimeout(5*time.Second))
	defer c.Close()
	time.Sleep(100 * time.Millisecond)

	fmt.Printf("connected to %s\n", getAddr())

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for i := 1; ; i++ {
		doPing(ctx, c, i)
		doSetGet(ctx, c, i)
		doPipeline(ctx, c, i)

		select {
		case <-ctx.Done():
			fmt.Println("shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

func doPing(ctx context.Context, c *client.Client, i int) {
	v, err := c.Do(ctx, wire.MultiBulk("PING"))
	if err != nil {
		log.Printf("ping: %v", err)
		return
	}
	fmt.Printf("[%d] PING -> %s\n", i, v.String())
}

func doSetGet(ctx context.Context, c *client.Client, i int) {
	key := fmt.Sprintf("example:counter:%d", i)
	if _, err := c.Do(ctx, wire.MultiBulk("SET", key, fmt.Sprintf("%d", i))); err != nil {
		log.Printf("set: %v", err)
		return
	}
	v, err := c.Do(ctx, wire.MultiBulk("GET", key))
	if err != nil {
		log.Printf("get: %v", err)
		return
	}
	fmt.Printf("[%d] GET %s -> %s\n", i, key, v.String())
}

func doPipeline(ctx context.Context, c *client.Client, i int) {
	req := append(wire.MultiBulk("INCR", "example:total"), wire.MultiBulk("TTL", "example:total")...)
	vals, err := c.Pipeline(ctx, req, 2)
	if err != nil {
		log.Printf("pipeline: %v", err)
		return
	}
	fmt.Printf("[%d] INCR+TTL -> %s, %s\n", i, vals[0].String(), vals[1].String())
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
