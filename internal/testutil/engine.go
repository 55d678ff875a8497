package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/quark/internal/codec"
	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/pb"
)

type fakeConnector struct {
	config  map[string]any
	started bool
}

// FakeEngine is an in-memory remote engine. The zero value is not usable;
// call NewFakeEngine.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeEngine struct {
	// Username and Password, when set, are required at login.
	Username string
	Password string

	mu           sync.Mutex
	handlers     map[string]pb.HandlerFunc
	groups       map[string]jasmin.Group
	users        map[string]jasmin.User
	routes       map[jasmin.Nature]map[int]jasmin.RouteWire
	interceptors map[jasmin.Nature]map[int]jasmin.InterceptorWire
	connectors   map[string]*fakeConnector

	failures    map[string]error
	panics      map[string]bool
	failConnect error

	connects    int
	disconnects int
	persists    int
	calls       []string
}

// NewFakeEngine creates an empty engine that accepts any login.
func NewFakeEngine() *FakeEngine {
	e := &FakeEngine{
		groups: make(map[string]jasmin.Group),
		users:  make(map[string]jasmin.User),
		routes: map[jasmin.Nature]map[int]jasmin.RouteWire{
			jasmin.MT: {}, jasmin.MO: {},
		},
		interceptors: map[jasmin.Nature]map[int]jasmin.InterceptorWire{
			jasmin.MT: {}, jasmin.MO: {},
		},
		connectors: make(map[string]*fakeConnector),
		failures:   make(map[string]error),
		panics:     make(map[string]bool),
	}
	e.handlers = e.buildHandlers()
	return e
}

// FailOn makes every later call of op fail with err. Errors that are not
// already *pb.ConnectionError or *pb.RemoteOperationError are reported as
// a rejected command. A nil err clears the failure.
func (e *FakeEngine) FailOn(op string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err == nil {
		delete(e.failures, op)
		return
	}
	e.failures[op] = err
}

// PanicOn makes every later call of op panic.
func (e *FakeEngine) PanicOn(op string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.panics[op] = true
}

// FailConnect makes every later Connect fail with err. A nil err clears
// the failure.
func (e *FakeEngine) FailConnect(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failConnect = err
}

// Connects returns the number of successful connects.
func (e *FakeEngine) Connects() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connects
}

// Disconnects returns the number of disconnects.
func (e *FakeEngine) Disconnects() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disconnects
}

// Persists returns the number of successful persist calls.
func (e *FakeEngine) Persists() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.persists
}

// Calls returns every op invoked so far, in order, including failed ones.
func (e *FakeEngine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	copy(out, e.calls)
	return out
}

// Groups returns the stored groups sorted by gid.
func (e *FakeEngine) Groups() []jasmin.Group {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sortedGroups()
}

// Users returns the stored users sorted by uid.
func (e *FakeEngine) Users() []jasmin.User {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sortedUsers()
}

// Routes returns the route table of a nature sorted by descending order,
// the order the engine evaluates it in.
func (e *FakeEngine) Routes(n jasmin.Nature) []jasmin.OrderedRoute {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sortedRoutes(n)
}

// Interceptor returns the interceptor at order.
func (e *FakeEngine) Interceptor(n jasmin.Nature, order int) (jasmin.InterceptorWire, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i, ok := e.interceptors[n][order]
	return i, ok
}

// Connector returns the stored configuration of cid and whether it is
// started.
func (e *FakeEngine) Connector(cid string) (config map[string]any, started bool, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.connectors[cid]
	if !ok {
		return nil, false, false
	}
	return c.config, c.started, true
}

// Connect implements pb.Dialer.
func (e *FakeEngine) Connect(ctx context.Context, ep pb.Endpoint) (pb.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, &pb.ConnectionError{Endpoint: ep.String(), Stage: pb.StageDial, Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.failConnect != nil {
		return nil, &pb.ConnectionError{Endpoint: ep.String(), Stage: pb.StageDial, Err: e.failConnect}
	}
	if !e.authenticate(ep.Username, ep.Password) {
		return nil, &pb.ConnectionError{Endpoint: ep.String(), Stage: pb.StageAuth, Err: errors.New("authentication failed")}
	}
	e.connects++
	return &fakeSession{engine: e, endpoint: ep.String()}, nil
}

// Authenticate checks login credentials. It is the pb.Authenticator of a
// served engine.
func (e *FakeEngine) Authenticate(username, password string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.authenticate(username, password)
}

func (e *FakeEngine) authenticate(username, password string) bool {
	if e.Username == "" && e.Password == "" {
		return true
	}
	return username == e.Username && password == e.Password
}

// Register exposes every engine op on srv.
func (e *FakeEngine) Register(srv *pb.Server) {
	ops := make([]string, 0, len(e.handlers))
	for op := range e.handlers {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	for _, op := range ops {
		op := op
		srv.Handle(op, func(ctx context.Context, args []codec.RawMessage) (any, error) {
			return e.dispatch(ctx, op, args)
		})
	}
}

// dispatch records the call, applies injected failures and runs the
// handler under the engine lock.
func (e *FakeEngine) dispatch(ctx context.Context, op string, args []codec.RawMessage) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, op)
	if e.panics[op] {
		panic(fmt.Sprintf("fake engine: injected panic in %s", op))
	}
	if err := e.failures[op]; err != nil {
		return nil, err
	}
	h, ok := e.handlers[op]
	if !ok {
		return nil, fmt.Errorf("unknown op %q", op)
	}
	return h(ctx, args)
}

type fakeSession struct {
	engine   *FakeEngine
	endpoint string

	mu     sync.Mutex
	closed bool
}

// Invoke encodes args the way the wire does and dispatches them.
func (s *fakeSession) Invoke(ctx context.Context, op string, args ...any) (pb.RawReply, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, &pb.ConnectionError{Endpoint: s.endpoint, Stage: pb.StageInvoke, Err: pb.ErrSessionClosed}
	}
	if err := ctx.Err(); err != nil {
		return nil, &pb.ConnectionError{Endpoint: s.endpoint, Stage: pb.StageInvoke, Err: err}
	}

	raw := make([]codec.RawMessage, 0, len(args))
	for i, a := range args {
		b, err := codec.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("encoding %s argument %d: %w", op, i, err)
		}
		raw = append(raw, b)
	}

	result, err := s.engine.dispatch(ctx, op, raw)
	if err != nil {
		if pb.IsRemoteError(err) {
			return nil, err
		}
		return nil, &pb.RemoteOperationError{Op: op, Message: err.Error()}
	}
	if result == nil {
		return nil, nil
	}
	data, err := codec.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding %s reply: %w", op, err)
	}
	return pb.RawReply(data), nil
}

func (s *fakeSession) Persist(ctx context.Context, profile string) error {
	_, err := s.Invoke(ctx, pb.OpPersist, profile)
	return err
}

func (s *fakeSession) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &pb.ConnectionError{Endpoint: s.endpoint, Stage: pb.StageDisconnect, Err: pb.ErrSessionClosed}
	}
	s.closed = true

	s.engine.mu.Lock()
	s.engine.disconnects++
	s.engine.mu.Unlock()
	return nil
}
