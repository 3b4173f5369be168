package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/nordix/goredis/client"
	"github.com/nordix/goredis/internal/wire"
	"github.com/nordix/goredis/resp"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("goredis-cli", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "goredis-cli — send commands over the non-blocking RESP client\n\nUsage:\n  goredis-cli [flags] [command [arg ...]]\n\nWith no command, reads one command per line from stdin until EOF.\n\nFlags:\n")
		fs.PrintDefaults()
	}

	host := fs.String("host", "localhost", "server host")
	port := fs.Int("port", 6379, "server port")
	uds := fs.String("socket", "", "unix domain socket path, overrides -host/-port")
	db := fs.Int("db", 0, "database index")
	password := fs.String("password", "", "password, if required")
	connectTimeout := fs.Duration("connect-timeout", 5*time.Second, "connection timeout")
	showVersion := fs.Bool("version", false, "show version and exit")
	ping := fs.Bool("ping", false, "check connectivity with a PING and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("goredis-cli %s\n", version)
		return
	}

	opts := []client.Option{client.WithDatabase(*db), client.WithConnectTimeout(*connectTimeout)}
	if *uds != "" {
		opts = append(opts, client.WithUnixSocket(*uds))
	} else {
		opts = append(opts, client.WithHostPort(*host, *port))
	}
	if *password != "" {
		opts = append(opts, client.WithPassword(client.StaticCredentialString(*password)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(ctx, opts...)
	defer c.Close()
	// The driver's initial connect runs asynchronously; give it a moment
	// before the first command, same grace period the unit tests'
	// waitConnected uses against a loopback server.
	time.Sleep(100 * time.Millisecond)

	if *ping {
		runPing(ctx, c)
		return
	}

	if fs.NArg() > 0 {
		runOne(ctx, c, fs.Args())
		return
	}
	runREPL(ctx, c)
}

// runPing sends a bare PING and reports whether the server answered,
// exiting non-zero on failure so it can be used as a scripted health check.
func runPing(ctx context.Context, c *client.Client) {
	v, err := c.Do(ctx, wire.Ping())
	if err != nil {
		fmt.Fprintf(os.Stderr, "(error) %v\n", err)
		os.Exit(1)
	}
	fmt.Println(formatValue(v))
}

func runOne(ctx context.Context, c *client.Client, args []string) {
	v, err := c.Do(ctx, wire.MultiBulk(args...))
	if err != nil {
		fmt.Fprintf(os.Stderr, "(error) %v\n", err)
		os.Exit(1)
	}
	fmt.Println(formatValue(v))
}

func runREPL(ctx context.Context, c *client.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		args := strings.Fields(line)
		v, err := c.Do(ctx, wire.MultiBulk(args...))
		if err != nil {
			fmt.Fprintf(os.Stderr, "(error) %v\n", err)
			continue
		}
		fmt.Println(formatValue(v))
	}
}

// formatValue renders a decoded reply the way redis-cli does for the
// shapes this client supports: nested arrays indented one level.
func formatValue(v resp.Value) string {
	switch v.Kind {
	case resp.KindNil, resp.KindNilArray:
		return "(nil)"
	case resp.KindInteger:
		return "(integer) " + strconv.FormatInt(v.Int, 10)
	case resp.KindError:
		return "(error) " + string(v.Str)
	case resp.KindArray:
		if len(v.Array) == 0 {
			return "(empty array)"
		}
		var b strings.Builder
		for i, elem := range v.Array {
			if i > 0 {
				b.WriteByte('\n')
			}
			prefix := fmt.Sprintf("%d) ", i+1)
			indent := "\n" + strings.Repeat(" ", len(prefix))
			b.WriteString(prefix)
			b.WriteString(strings.ReplaceAll(formatValue(elem), "\n", indent))
		}
		return b.String()
	default:
		return fmt.Sprintf("%q", v.String())
	}
}
