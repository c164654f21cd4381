package natsbridge

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	nferrors "github.com/randalmurphal/nodeflow/pkg/nodeflow/errors"
)

// Conn is the part of a NATS connection the bridge nodes use.
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (Subscription, error)
	QueueSubscribe(subject, queue string, cb nats.MsgHandler) (Subscription, error)
	Drain() error
	Close()
}

// Subscription is an active subject subscription.
type Subscription interface {
	Unsubscribe() error
}

// Dialer opens a connection when a bridge node connects.
type Dialer func(ctx context.Context) (Conn, error)

// Wrap adapts a *nats.Conn to Conn.
func Wrap(nc *nats.Conn) Conn {
	return natsConn{nc: nc}
}

type natsConn struct {
	nc *nats.Conn
}

func (c natsConn) Publish(subject string, data []byte) error {
	return c.nc.Publish(subject, data)
}

func (c natsConn) Subscribe(subject string, cb nats.MsgHandler) (Subscription, error) {
	return c.nc.Subscribe(subject, cb)
}

func (c natsConn) QueueSubscribe(subject, queue string, cb nats.MsgHandler) (Subscription, error) {
	return c.nc.QueueSubscribe(subject, queue, cb)
}

func (c natsConn) Drain() error {
	return c.nc.Drain()
}

func (c natsConn) Close() {
	c.nc.Close()
}

type dialConfig struct {
	name    string
	timeout time.Duration
	retry   nferrors.RetryConfig
	logger  *slog.Logger
	extra   []nats.Option
}

// DialOption configures Dial.
type DialOption func(*dialConfig)

// WithClientName sets the client name reported to the server.
func WithClientName(name string) DialOption {
	return func(c *dialConfig) {
		c.name = name
	}
}

// WithConnectTimeout bounds each connection attempt. Default: 2s.
func WithConnectTimeout(d time.Duration) DialOption {
	return func(c *dialConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetry sets the retry policy for the initial connection.
// Default: errors.ConnectRetry.
func WithRetry(cfg nferrors.RetryConfig) DialOption {
	return func(c *dialConfig) {
		c.retry = cfg
	}
}

// WithDialLogger sets the logger used for connection events.
func WithDialLogger(logger *slog.Logger) DialOption {
	return func(c *dialConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithNATSOptions appends raw nats.go options.
func WithNATSOptions(opts ...nats.Option) DialOption {
	return func(c *dialConfig) {
		c.extra = append(c.extra, opts...)
	}
}

// Dial connects to the server at url, retrying failed attempts with backoff.
//
// Once connected, the client reconnects on its own; Dial only covers the
// initial connection.
func Dial(ctx context.Context, url string, opts ...DialOption) (Conn, error) {
	if url == "" {
		return nil, &nferrors.ConfigError{Field: "url", Message: "NATS url is required"}
	}

	cfg := dialConfig{
		timeout: 2 * time.Second,
		retry:   nferrors.ConnectRetry,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.logger.With(slog.String("url", url))
	natsOpts := []nats.Option{
		nats.Timeout(cfg.timeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if cfg.name != "" {
		natsOpts = append(natsOpts, nats.Name(cfg.name))
	}
	natsOpts = append(natsOpts, cfg.extra...)

	retry := cfg.retry
	userOnRetry := retry.OnRetry
	retry.OnRetry = func(attempt int, backoff time.Duration, err error) {
		logger.Warn("nats connect failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)
		if userOnRetry != nil {
			userOnRetry(attempt, backoff, err)
		}
	}

	result := nferrors.WithRetryContext(ctx, retry, func(context.Context) (*nats.Conn, error) {
		nc, err := nats.Connect(url, natsOpts...)
		if err != nil {
			return nil, &nferrors.ConnectionError{URL: url, Op: "connect", Err: err}
		}
		return nc, nil
	})
	if result.Err != nil {
		return nil, result.Err
	}

	logger.Info("nats connected", slog.Int("attempts", result.Attempts))
	return Wrap(result.Value), nil
}

// NewDialer returns a Dialer that calls Dial with url and opts.
func NewDialer(url string, opts ...DialOption) Dialer {
	return func(ctx context.Context) (Conn, error) {
		return Dial(ctx, url, opts...)
	}
}
