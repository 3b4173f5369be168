// Package sentinel queries a pool of monitor nodes to discover the current
// master endpoint of a replicated deployment, the auxiliary protocol layer
// connection bootstrap runs before dialing the data store itself.
package sentinel

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nordix/goredis/internal/wire"
	"github.com/nordix/goredis/resp"
	"github.com/nordix/goredis/transport"
)

// ErrNoMaster is returned when every monitor endpoint in the list failed
// to name a master for the requested group.
var ErrNoMaster = errors.New("sentinel: no master found")

// GetMasterAddr queries each monitor endpoint in monitors, in order, with
// SENTINEL get-master-addr-by-name group. The first endpoint to return a
// two-element bulk-string array is the answer; connection refused,
// timeout, a NilArray reply (no such group) or an Error reply all fall
// through to the next endpoint. Exhausting the list returns ErrNoMaster.
// This is not cached across calls — every bootstrap attempt re-resolves,
// so failover is picked up on the next reconnect rather than requiring an
// explicit invalidation.
func GetMasterAddr(ctx context.Context, group string, monitors []string, dialTimeout time.Duration) (host string, port int, err error) {
	var lastErr error
	for _, monitor := range monitors {
		host, port, err = queryOne(ctx, monitor, group, dialTimeout)
		if err == nil {
			return host, port, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return "", 0, fmt.Errorf("sentinel: %w: %w", ErrNoMaster, lastErr)
	}
	return "", 0, ErrNoMaster
}

func queryOne(ctx context.Context, monitorAddr, group string, dialTimeout time.Duration) (string, int, error) {
	tr, err := transport.DialTCP(ctx, "tcp", monitorAddr, dialTimeout)
	if err != nil {
		return "", 0, err
	}
	defer tr.Close()

	if err := tr.Send(wire.SentinelGetMasterAddr(group)); err != nil {
		return "", 0, err
	}

	parser := resp.NewParser()
	var value resp.Value
	for {
		chunk, err := tr.PassiveRecv(4096, dialTimeout)
		if err != nil {
			return "", 0, err
		}
		if len(chunk) == 0 {
			return "", 0, fmt.Errorf("sentinel: connection closed before reply")
		}
		outcome, err := parser.Parse(chunk)
		if err != nil {
			return "", 0, fmt.Errorf("sentinel: %w", err)
		}
		if outcome.Done {
			value = outcome.Value
			break
		}
	}

	if value.Kind == resp.KindError {
		return "", 0, fmt.Errorf("sentinel: %s", value.String())
	}
	if value.Kind == resp.KindNilArray {
		return "", 0, fmt.Errorf("sentinel: no such master group %q", group)
	}
	if value.Kind != resp.KindArray || len(value.Array) != 2 {
		return "", 0, fmt.Errorf("sentinel: unexpected reply shape %v", value.Kind)
	}
	hostVal, portVal := value.Array[0], value.Array[1]
	if hostVal.Kind != resp.KindBulkString || portVal.Kind != resp.KindBulkString {
		return "", 0, fmt.Errorf("sentinel: unexpected reply element types")
	}
	portNum, err := strconv.Atoi(string(portVal.Str))
	if err != nil {
		return "", 0, fmt.Errorf("sentinel: invalid port %q: %w", portVal.Str, err)
	}
	return string(hostVal.Str), portNum, nil
}
