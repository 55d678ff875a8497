package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/quark/internal/audit"
	"github.com/roach88/quark/internal/compiler"
	"github.com/roach88/quark/internal/engine"
	"github.com/roach88/quark/internal/pb"
	"github.com/roach88/quark/internal/snapshot"
	"github.com/roach88/quark/internal/store"
)

// State is a step of a coordinated mutation.
type State string

const (
	StateLocalPending   State = "local_pending"
	StateRemoteInFlight State = "remote_in_flight"
	StateCommitted      State = "committed"
	StateCompensated    State = "compensated"
	StateDiverged       State = "diverged"
)

// Options configures a Coordinator. Store, Router, SMPP and Loop are
// required.
type Options struct {
	Store  *store.Store
	Router *pb.RouterClient
	SMPP   *pb.SMPPClient
	Loop   *engine.Supervisor

	// Cache holds the last successful bulk reads. Optional.
	Cache snapshot.Cache
	// Audit receives every state transition in addition to the store's
	// operations journal. Optional.
	Audit audit.Sink
	// IDs generates operation ids. Defaults to UUIDv7.
	IDs engine.IDGenerator
	// Persist makes every remote mutation durable on the engine side.
	Persist bool

	Logger *slog.Logger
	Now    func() time.Time
}

// Coordinator is the synchronous service API over the local store and the
// remote engine.
//
// Thread-safety: all methods are safe for concurrent use. Remote calls are
// serialized by the loop; local writes rely on the store's transactions.
type Coordinator struct {
	store   *store.Store
	router  *pb.RouterClient
	smpp    *pb.SMPPClient
	loop    *engine.Supervisor
	cache   snapshot.Cache
	sink    audit.Sink
	ids     engine.IDGenerator
	persist bool
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a coordinator.
func New(opts Options) (*Coordinator, error) {
	if opts.Store == nil || opts.Router == nil || opts.SMPP == nil || opts.Loop == nil {
		return nil, errors.New("coordinator: store, router, smpp and loop are required")
	}

	sinks := audit.Multi{audit.Journal{Store: opts.Store}}
	if opts.Audit != nil {
		sinks = append(sinks, opts.Audit)
	}
	c := &Coordinator{
		store:   opts.Store,
		router:  opts.Router,
		smpp:    opts.SMPP,
		loop:    opts.Loop,
		cache:   opts.Cache,
		sink:    sinks,
		ids:     opts.IDs,
		persist: opts.Persist,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if c.ids == nil {
		c.ids = engine.UUIDv7Generator{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// mutation tracks one coordinated change through its states.
type mutation struct {
	c      *Coordinator
	opID   string
	op     string
	entity string
	key    string
}

func (c *Coordinator) begin(op, entity, key string) *mutation {
	return &mutation{c: c, opID: c.ids.Generate(), op: op, entity: entity, key: key}
}

// transition logs the new state and emits it to the audit sinks. Sink
// failures are logged only.
func (m *mutation) transition(ctx context.Context, state State, detail string) {
	level := slog.LevelInfo
	switch state {
	case StateLocalPending, StateRemoteInFlight:
		level = slog.LevelDebug
	case StateCompensated:
		level = slog.LevelWarn
	case StateDiverged:
		level = slog.LevelError
	}
	m.c.logger.Log(ctx, level, "mutation "+string(state),
		"op", m.op,
		"entity", m.entity,
		"key", m.key,
		"op_id", m.opID,
		"detail", detail,
	)

	err := m.c.sink.Emit(context.WithoutCancel(ctx), audit.Event{
		OpID:   m.opID,
		Op:     m.op,
		Entity: m.entity,
		Key:    m.key,
		State:  string(state),
		Detail: detail,
		At:     m.c.now().UTC(),
	})
	if err != nil {
		m.c.logger.Warn("audit emit failed",
			"op", m.op,
			"op_id", m.opID,
			"state", string(state),
			"error", err,
		)
	}
}

// remote runs fn on the loop.
func (m *mutation) remote(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.c.loop.RunBlocking(ctx, m.op+" "+m.key, fn)
}

// localFirst applies local, then the remote call. A remote failure runs
// compensate and returns the remote error; a failed compensation returns a
// *ConsistencyError carrying both.
func (m *mutation) localFirst(ctx context.Context, local, remote, compensate func(ctx context.Context) error) error {
	if err := local(ctx); err != nil {
		m.c.logger.Warn("local write failed", "op", m.op, "key", m.key, "op_id", m.opID, "error", err)
		return err
	}
	m.transition(ctx, StateLocalPending, "")

	m.transition(ctx, StateRemoteInFlight, "")
	rerr := m.remote(ctx, remote)
	if rerr == nil {
		m.transition(ctx, StateCommitted, "")
		return nil
	}

	// The undo must run even when the caller's context is what failed the
	// remote call.
	if cerr := compensate(context.WithoutCancel(ctx)); cerr != nil {
		m.transition(ctx, StateDiverged, cerr.Error())
		ce := &ConsistencyError{Op: m.op, Key: m.key, Stage: StageCompensate, Cause: rerr, CompensationErr: cerr}
		m.c.logger.Error("compensation failed",
			"op", m.op,
			"key", m.key,
			"op_id", m.opID,
			"remote_error", rerr,
			"compensation_error", cerr,
		)
		return ce
	}
	m.transition(ctx, StateCompensated, rerr.Error())
	return rerr
}

// remoteFirst calls the remote engine, then applies local. A remote failure
// leaves the local store untouched.
func (m *mutation) remoteFirst(ctx context.Context, remote, local func(ctx context.Context) error) error {
	m.transition(ctx, StateRemoteInFlight, "")
	if err := m.remote(ctx, remote); err != nil {
		m.transition(ctx, StateCompensated, "local unchanged: "+err.Error())
		return err
	}

	m.transition(ctx, StateLocalPending, "")
	if err := local(context.WithoutCancel(ctx)); err != nil {
		m.transition(ctx, StateDiverged, err.Error())
		m.c.logger.Error("local write after remote success failed",
			"op", m.op,
			"key", m.key,
			"op_id", m.opID,
			"error", err,
		)
		return &ConsistencyError{Op: m.op, Key: m.key, Stage: StageLocalCommit, Cause: err}
	}
	m.transition(ctx, StateCommitted, "")
	return nil
}

// localOnly records a change that has no remote counterpart.
func (m *mutation) localOnly(ctx context.Context, local func(ctx context.Context) error) error {
	if err := local(ctx); err != nil {
		return err
	}
	m.transition(ctx, StateLocalPending, "")
	m.transition(ctx, StateCommitted, "local only")
	return nil
}

// createError maps a unique-key conflict, lost to a concurrent create of the
// same key, onto the duplicate error the existence check reports.
func createError(err error, field, format string, args ...any) error {
	if store.IsConflict(err) {
		return compiler.Duplicate(field, format, args...)
	}
	return err
}

// lookupError maps a store miss to a validation error and wraps the rest.
func lookupError(err error, field, what, key string) error {
	if store.IsNotFound(err) {
		return compiler.NotFound(field, "%s %q does not exist", what, key)
	}
	return fmt.Errorf("load %s %s: %w", what, key, err)
}
