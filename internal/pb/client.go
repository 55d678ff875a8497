package pb

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultProfile is the configuration profile the engine persists to.
const DefaultProfile = "jcli-prod"

// ClientOption configures a RouterClient or SMPPClient.
type ClientOption func(*controlClient)

// WithProfile sets the profile used when persisting.
func WithProfile(profile string) ClientOption {
	return func(c *controlClient) {
		if profile != "" {
			c.profile = profile
		}
	}
}

// WithClientLogger sets the logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *controlClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// controlClient opens one session per high-level operation.
type controlClient struct {
	dialer   Dialer
	endpoint Endpoint
	profile  string
	logger   *slog.Logger
}

func newControlClient(d Dialer, ep Endpoint, opts []ClientOption) controlClient {
	c := controlClient{
		dialer:   d,
		endpoint: ep,
		profile:  DefaultProfile,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// withSession connects, runs fn, persists when asked and disconnects.
// Disconnect runs exactly once after a successful connect, whether fn
// returns, fails or panics. A failed disconnect is logged; the outcome of
// fn wins.
func (c *controlClient) withSession(ctx context.Context, name string, persist bool, fn func(context.Context, Session) error) (err error) {
	s, err := c.dialer.Connect(ctx, c.endpoint)
	if err != nil {
		return err
	}
	defer func() {
		if derr := s.Disconnect(); derr != nil {
			c.logger.Warn("disconnect failed", "op", name, "endpoint", c.endpoint.String(), "error", derr)
		}
	}()

	if err := fn(ctx, s); err != nil {
		return err
	}
	if persist {
		if err := s.Persist(ctx, c.profile); err != nil {
			return fmt.Errorf("persisting after %s: %w", name, err)
		}
	}
	c.logger.Debug("remote op done", "op", name, "persist", persist)
	return nil
}

// invoke runs a single op in its own session.
func (c *controlClient) invoke(ctx context.Context, op string, persist bool, args ...any) error {
	return c.withSession(ctx, op, persist, func(ctx context.Context, s Session) error {
		_, err := s.Invoke(ctx, op, args...)
		return err
	})
}

// read runs a single op and decodes its reply into out.
func (c *controlClient) read(ctx context.Context, op string, out any, args ...any) error {
	return c.withSession(ctx, op, false, func(ctx context.Context, s Session) error {
		reply, err := s.Invoke(ctx, op, args...)
		if err != nil {
			return err
		}
		if err := reply.Decode(out); err != nil {
			return fmt.Errorf("decoding %s reply: %w", op, err)
		}
		return nil
	})
}
