package coordinator

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/quark/internal/audit"
	"github.com/roach88/quark/internal/engine"
	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/model"
	"github.com/roach88/quark/internal/pb"
	"github.com/roach88/quark/internal/snapshot"
	"github.com/roach88/quark/internal/store"
	"github.com/roach88/quark/internal/testutil"
)

var fixedNow = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	c      *Coordinator
	engine *testutil.FakeEngine
	store  *store.Store
	audit  *audit.Recorder
	cache  *snapshot.Memory
	// router talks to the fake engine behind the coordinator's back.
	router *pb.RouterClient
}

type fixtureOption func(*Options)

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	ctx := context.Background()

	fe := testutil.NewFakeEngine()
	fe.Username, fe.Password = "radmin", "rpwd"

	st, err := store.Open(store.Options{
		DSN: filepath.Join(t.TempDir(), "quark.db"),
		Now: func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	loop := engine.New(engine.WithLogger(discard))
	loop.Start(ctx)
	t.Cleanup(loop.Stop)

	ep := pb.Endpoint{Host: "engine.test", Port: 8988, Username: "radmin", Password: "rpwd"}
	router := pb.NewRouterClient(fe, ep, pb.WithClientLogger(discard))
	smpp := pb.NewSMPPClient(fe, ep, pb.WithClientLogger(discard))

	rec := audit.NewRecorder(4096)
	cache := snapshot.NewMemory(0)
	o := Options{
		Store:   st,
		Router:  router,
		SMPP:    smpp,
		Loop:    loop,
		Cache:   cache,
		Audit:   rec,
		Persist: true,
		Logger:  discard,
		Now:     func() time.Time { return fixedNow },
	}
	for _, opt := range opts {
		opt(&o)
	}
	c, err := New(o)
	require.NoError(t, err)

	return &fixture{c: c, engine: fe, store: st, audit: rec, cache: cache, router: router}
}

func withIDs(ids ...string) fixtureOption {
	return func(o *Options) { o.IDs = engine.NewFixedGenerator(ids...) }
}

func withoutCache() fixtureOption {
	return func(o *Options) { o.Cache = nil }
}

func smppConnector(cid string) model.Connector {
	s := model.DefaultSMPPSettings()
	return model.Connector{CID: cid, Type: model.ConnectorSMPP, SMPP: &s}
}

func httpConnector(cid string) model.Connector {
	return model.Connector{
		CID:  cid,
		Type: model.ConnectorHTTP,
		HTTP: &model.HTTPSettings{BaseURL: "http://crm.test/mo", Method: "POST"},
	}
}

func (f *fixture) mustGroup(t *testing.T, gid string) model.Group {
	t.Helper()
	g, err := f.c.AddGroup(context.Background(), model.Group{GID: gid, Enabled: true})
	require.NoError(t, err)
	return g
}

func (f *fixture) mustUser(t *testing.T, username, gid string) model.User {
	t.Helper()
	u, err := f.c.AddUser(context.Background(), model.User{Username: username, Password: "secret", GID: gid, Enabled: true})
	require.NoError(t, err)
	return u
}

func (f *fixture) mustConnector(t *testing.T, conn model.Connector) model.Connector {
	t.Helper()
	created, err := f.c.AddConnector(context.Background(), conn)
	require.NoError(t, err)
	return created
}

func (f *fixture) mustFilter(t *testing.T, fid string, typ jasmin.FilterType, value any) model.Filter {
	t.Helper()
	flt := model.Filter{FID: fid, Type: typ}
	if value != nil {
		flt.Param = &model.FilterParam{Value: value}
	}
	created, err := f.c.AddFilter(context.Background(), flt)
	require.NoError(t, err)
	return created
}

func (f *fixture) mustRoute(t *testing.T, req RouteRequest) model.Route {
	t.Helper()
	r, err := f.c.AddRoute(context.Background(), req)
	require.NoError(t, err)
	return r
}

// states returns the recorded transition states of opID.
func (f *fixture) states(opID string) []string {
	var out []string
	for _, e := range f.audit.Events() {
		if e.OpID == opID {
			out = append(out, e.State)
		}
	}
	return out
}

func writeScript(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tag.py")
	require.NoError(t, os.WriteFile(path, []byte("routable.addTag(1)\n"), 0o644))
	return path
}

func rate(v float64) *float64 { return &v }
