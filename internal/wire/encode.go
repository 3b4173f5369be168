// Package wire encodes the handful of commands the client issues itself
// during connection bootstrap and sentinel queries (AUTH/SELECT/PING,
// SUBSCRIBE/UNSUBSCRIBE, SENTINEL get-master-addr-by-name). It is
// deliberately not a general command-encoding API: callers of the client
// and pubsub packages hand over their own already-encoded request bytes.
package wire

import (
	"strconv"
	"strings"
)

// MultiBulk encodes args as a RESP array of bulk strings, the wire form
// every request — inline or otherwise — takes once a connection has
// completed its handshake.
func MultiBulk(args ...string) []byte {
	var b strings.Builder
	b.WriteByte('*')
	b.WriteString(strconv.Itoa(len(args)))
	b.WriteString("\r\n")
	for _, a := range args {
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(len(a)))
		b.WriteString("\r\n")
		b.WriteString(a)
		b.WriteString("\r\n")
	}
	return []byte(b.String())
}

// Auth encodes AUTH, with or without a username, depending on whether the
// server speaks ACL-style auth (Redis 6+) or the legacy single-password
// form.
func Auth(username, password string) []byte {
	if username == "" {
		return MultiBulk("AUTH", password)
	}
	return MultiBulk("AUTH", username, password)
}

// Select encodes SELECT for the given logical database index.
func Select(db int) []byte {
	return MultiBulk("SELECT", strconv.Itoa(db))
}

// Ping encodes a bare PING, used as a liveness check.
func Ping() []byte {
	return MultiBulk("PING")
}

// Subscribe encodes SUBSCRIBE/PSUBSCRIBE/SSUBSCRIBE depending on kind.
func Subscribe(kind string, channels ...string) []byte {
	return MultiBulk(append([]string{kind}, channels...)...)
}

// Unsubscribe encodes UNSUBSCRIBE/PUNSUBSCRIBE/SUNSUBSCRIBE. With no
// channels given, the server unsubscribes from all channels of that kind.
func Unsubscribe(kind string, channels ...string) []byte {
	return MultiBulk(append([]string{kind}, channels...)...)
}

// SentinelGetMasterAddr encodes the query a sentinel resolver sends to each
// monitor node.
func SentinelGetMasterAddr(group string) []byte {
	return MultiBulk("SENTINEL", "get-master-addr-by-name", group)
}
