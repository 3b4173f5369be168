package client

import (
	"crypto/tls"
	"time"

	"github.com/nordix/goredis/metrics"
	"github.com/nordix/goredis/transport"
)

// ReconnectSleep is either a duration or NoReconnect.
type ReconnectSleep time.Duration

// NoReconnect disables reconnection entirely: on disconnect every pending
// caller gets an error and the client terminates instead of retrying.
const NoReconnect ReconnectSleep = -1

// SentinelConfig names the master group and monitor endpoints to query
// before dialing.
type SentinelConfig struct {
	MasterGroup string
	Monitors    []string
}

// Config holds the connection options, built via the With* functional
// options below over sane defaults.
type Config struct {
	Host     string
	Port     int
	UDSPath  string
	Database int

	Username Credential
	Password Credential

	ReconnectSleep ReconnectSleep
	ConnectTimeout time.Duration
	RecvTimeout    time.Duration

	SocketOptions transport.SocketOptions
	TLS           *tls.Config

	Sentinel *SentinelConfig

	Name string

	Metrics *metrics.Collector
}

// Option mutates a Config during construction.
type Option func(*Config)

// DefaultConfig returns the default options: localhost:6379, database 0,
// 100ms reconnect sleep, 5s connect timeout.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           6379,
		ReconnectSleep: ReconnectSleep(100 * time.Millisecond),
		ConnectTimeout: 5 * time.Second,
		RecvTimeout:    5 * time.Second,
	}
}

// NewConfig applies opts over DefaultConfig.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func WithHostPort(host string, port int) Option {
	return func(c *Config) { c.Host, c.Port = host, port }
}

// WithUnixSocket configures a unix-domain socket path in place of
// host/port.
func WithUnixSocket(path string) Option {
	return func(c *Config) { c.UDSPath = path }
}

func WithDatabase(db int) Option {
	return func(c *Config) { c.Database = db }
}

func WithUsername(cred Credential) Option {
	return func(c *Config) { c.Username = cred }
}

func WithPassword(cred Credential) Option {
	return func(c *Config) { c.Password = cred }
}

func WithReconnectSleep(d ReconnectSleep) Option {
	return func(c *Config) { c.ReconnectSleep = d }
}

func WithConnectTimeout(d time.Duration) Option {
	return func(c *Config) { c.ConnectTimeout = d }
}

// WithRecvTimeout bounds each synchronous handshake read (AUTH/SELECT
// replies). It does not apply to steady-state operation, where command
// timeouts are the caller's own responsibility.
func WithRecvTimeout(d time.Duration) Option {
	return func(c *Config) { c.RecvTimeout = d }
}

func WithSocketOptions(opts transport.SocketOptions) Option {
	return func(c *Config) { c.SocketOptions = opts }
}

func WithTLS(cfg *tls.Config) Option {
	return func(c *Config) { c.TLS = cfg }
}

func WithSentinel(group string, monitors []string) Option {
	return func(c *Config) { c.Sentinel = &SentinelConfig{MasterGroup: group, Monitors: monitors} }
}

func WithName(name string) Option {
	return func(c *Config) { c.Name = name }
}

// WithMetrics registers this client's gauges/counters with a shared
// Collector; see the metrics package.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Config) { c.Metrics = m }
}
