package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/quark/internal/audit"
	"github.com/roach88/quark/internal/config"
	"github.com/roach88/quark/internal/coordinator"
	"github.com/roach88/quark/internal/engine"
	"github.com/roach88/quark/internal/pb"
	"github.com/roach88/quark/internal/sealed"
	"github.com/roach88/quark/internal/snapshot"
	"github.com/roach88/quark/internal/store"
)

// app is everything a command needs, built from the configuration.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	loop   *engine.Supervisor
	coord  *coordinator.Coordinator

	closers []func() error
}

// newLogger builds the process logger. Verbose forces debug level.
func newLogger(cfg config.LogConfig, verbose bool, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
}

func endpoint(e config.EndpointConfig) pb.Endpoint {
	return pb.Endpoint{Host: e.Host, Port: e.Port, Username: e.Username, Password: e.Password}
}

// openApp wires the store, engine clients, event loop, snapshot cache and
// audit sink. The loop runs until close or ctx is cancelled.
func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	var sealer store.Sealer
	if cfg.Sealing.IdentityFile != "" {
		s, err := sealed.Load(cfg.Sealing.IdentityFile)
		if err != nil {
			return nil, err
		}
		sealer = s
	}
	a.store, err = store.Open(store.Options{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN, Sealer: sealer})
	if err != nil {
		return nil, err
	}
	logger.Debug("store opened", "driver", a.store.Driver())

	routerTimeout, err := cfg.Router.TimeoutDuration()
	if err != nil {
		return nil, fmt.Errorf("router.timeout: %w", err)
	}
	smppTimeout, err := cfg.SMPP.TimeoutDuration()
	if err != nil {
		return nil, fmt.Errorf("smpp.timeout: %w", err)
	}
	clientOpts := []pb.ClientOption{pb.WithProfile(cfg.Persist.Profile), pb.WithClientLogger(logger)}
	router := pb.NewRouterClient(pb.NetDialer{Timeout: routerTimeout, MaxReply: cfg.Router.MaxReply}, endpoint(cfg.Router), clientOpts...)
	smpp := pb.NewSMPPClient(pb.NetDialer{Timeout: smppTimeout, MaxReply: cfg.SMPP.MaxReply}, endpoint(cfg.SMPP), clientOpts...)

	a.loop = engine.New(engine.WithLogger(logger))
	a.loop.Start(ctx)

	cache, err := a.openCache(ctx)
	if err != nil {
		return nil, err
	}

	var sink audit.Sink
	if len(cfg.Audit.KafkaBrokers) > 0 {
		k := audit.NewKafka(cfg.Audit.KafkaBrokers, cfg.Audit.Topic)
		a.closers = append(a.closers, k.Close)
		sink = k
	}

	a.coord, err = coordinator.New(coordinator.Options{
		Store:   a.store,
		Router:  router,
		SMPP:    smpp,
		Loop:    a.loop,
		Cache:   cache,
		Audit:   sink,
		Persist: cfg.Persist.Enabled,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// openCache returns the redis snapshot cache when configured. An
// unreachable redis falls back to memory.
func (a *app) openCache(ctx context.Context) (snapshot.Cache, error) {
	ttl, err := a.cfg.Snapshot.TTLDuration()
	if err != nil {
		return nil, fmt.Errorf("snapshot.ttl: %w", err)
	}
	if a.cfg.Snapshot.RedisURL == "" {
		return snapshot.NewMemory(ttl), nil
	}
	compression, err := snapshot.ParseCompression(a.cfg.Snapshot.Compression)
	if err != nil {
		return nil, err
	}
	r, err := snapshot.NewRedis(ctx, a.cfg.Snapshot.RedisURL, ttl, snapshot.WithCompression(compression))
	if err != nil {
		a.logger.Warn("snapshot cache unavailable, using memory", "error", err)
		return snapshot.NewMemory(ttl), nil
	}
	a.closers = append(a.closers, r.Close)
	return r, nil
}

// close stops the loop and releases everything openApp acquired.
func (a *app) close() {
	if a.loop != nil {
		a.loop.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	if a.store != nil {
		a.store.Close()
	}
}
