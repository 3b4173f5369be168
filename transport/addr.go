package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
)

// Addr is one dialable endpoint: either a TCP host:port or a unix-domain
// socket path.
type Addr struct {
	Network string // "tcp" or "unix"
	Addr    string
}

// Resolve implements the address-resolution policy: a literal IP address
// is returned as-is; otherwise IPv6 is looked up first, falling back to
// IPv4 only if the IPv6 lookup fails outright. The result is
// order-preserving and de-duplicated in place — no sorting, so a caller
// falling back across addresses sees the same order the name service gave.
func Resolve(ctx context.Context, host string, port int) ([]Addr, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []Addr{{Network: "tcp", Addr: net.JoinHostPort(host, strconv.Itoa(port))}}, nil
	}

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip6", host)
	if err != nil || len(ips) == 0 {
		ips, err = net.DefaultResolver.LookupIP(ctx, "ip4", host)
	}
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %q: %w", host, err)
	}

	seen := make(map[string]bool, len(ips))
	out := make([]Addr, 0, len(ips))
	for _, ip := range ips {
		s := ip.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, Addr{Network: "tcp", Addr: net.JoinHostPort(s, strconv.Itoa(port))})
	}
	return out, nil
}

// ResolveUnix returns the single address for a unix-domain socket path;
// there is nothing to look up or de-dup, the path passes through
// unchanged with its port forced to 0 per the family's convention.
func ResolveUnix(path string) []Addr {
	return []Addr{{Network: "unix", Addr: path}}
}
