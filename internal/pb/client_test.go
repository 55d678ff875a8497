package pb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/pb"
	"github.com/roach88/quark/internal/testutil"
)

var testEndpoint = pb.Endpoint{Host: "127.0.0.1", Port: 8988, Username: "radmin", Password: "rpwd"}

func staticRoute() jasmin.Route {
	return jasmin.StaticRoute{
		Dir:       jasmin.MT,
		Filters:   []jasmin.Filter{{FID: "f1", Type: jasmin.DestinationAddrFilter, Key: "destination_addr", Value: "^33"}},
		Connector: jasmin.SMPPClientConnector{ID: "smppc_a"},
		Rate:      20,
	}
}

func TestRouterClient_GroupsAndUsers(t *testing.T) {
	fake := testutil.NewFakeEngine()
	c := pb.NewRouterClient(fake, testEndpoint)
	ctx := context.Background()

	require.NoError(t, c.AddGroup(ctx, jasmin.Group{GID: "g1", Enabled: true}, false))
	require.NoError(t, c.AddUser(ctx, jasmin.User{UID: "alice", Username: "alice", Password: "pw", GID: "g1", Enabled: true}, false))
	require.NoError(t, c.DisableUser(ctx, "alice", false))

	groups, err := c.GetAllGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []jasmin.Group{{GID: "g1", Enabled: true}}, groups)

	users, err := c.GetAllUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].UID)
	assert.False(t, users[0].Enabled)

	require.NoError(t, c.RemoveUser(ctx, "alice", false))
	users, err = c.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestRouterClient_Routes(t *testing.T) {
	fake := testutil.NewFakeEngine()
	c := pb.NewRouterClient(fake, testEndpoint)
	ctx := context.Background()

	require.NoError(t, c.AddRoute(ctx, 10, staticRoute(), false))

	routes, err := c.GetAllRoutes(ctx, jasmin.MT)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, 10, routes[0].Order)
	assert.Equal(t, "StaticMTRoute", routes[0].Route.Class)
	require.NotNil(t, routes[0].Route.Rate)
	assert.Equal(t, 20.0, *routes[0].Route.Rate)

	mo, err := c.GetAllRoutes(ctx, jasmin.MO)
	require.NoError(t, err)
	assert.Empty(t, mo)

	require.NoError(t, c.RemoveRoute(ctx, jasmin.MT, 10, false))
	err = c.RemoveRoute(ctx, jasmin.MT, 10, false)
	assert.True(t, pb.IsRemoteOperationError(err))
}

func TestRouterClient_Interceptors(t *testing.T) {
	fake := testutil.NewFakeEngine()
	c := pb.NewRouterClient(fake, testEndpoint)
	ctx := context.Background()

	ic := jasmin.DefaultInterceptor{Dir: jasmin.MO, Script: "/etc/quark/hook.py"}
	require.NoError(t, c.AddInterceptor(ctx, 0, ic, false))

	got, ok := fake.Interceptor(jasmin.MO, 0)
	require.True(t, ok)
	assert.Equal(t, "DefaultInterceptor", got.Class)

	require.NoError(t, c.RemoveInterceptor(ctx, jasmin.MO, 0, false))
	_, ok = fake.Interceptor(jasmin.MO, 0)
	assert.False(t, ok)
}

func TestRouterClient_Persist(t *testing.T) {
	fake := testutil.NewFakeEngine()
	c := pb.NewRouterClient(fake, testEndpoint, pb.WithProfile("staging"))
	ctx := context.Background()

	require.NoError(t, c.AddGroup(ctx, jasmin.Group{GID: "g1"}, true))
	require.NoError(t, c.AddGroup(ctx, jasmin.Group{GID: "g2"}, false))
	assert.Equal(t, 1, fake.Persists())

	fake.FailOn(pb.OpPersist, errors.New("disk full"))
	err := c.AddGroup(ctx, jasmin.Group{GID: "g3"}, true)
	require.Error(t, err)
	assert.True(t, pb.IsRemoteOperationError(err))
	assert.Contains(t, err.Error(), "disk full")
}

func TestSMPPClient_ConnectorLifecycle(t *testing.T) {
	fake := testutil.NewFakeEngine()
	c := pb.NewSMPPClient(fake, testEndpoint)
	ctx := context.Background()

	var cfg jasmin.SMPPClientConfig
	cfg.Set("id", "smppc_a")
	cfg.Set("host", "10.0.0.1")
	cfg.Set("port", 2775)

	require.NoError(t, c.AddConnector(ctx, cfg, false))

	status, err := c.ConnectorStatus(ctx, "smppc_a")
	require.NoError(t, err)
	assert.Equal(t, jasmin.ConnectorStatus{CID: "smppc_a", Started: false, SessionState: "NONE"}, status)

	require.NoError(t, c.StartConnector(ctx, "smppc_a", false))
	status, err = c.ConnectorStatus(ctx, "smppc_a")
	require.NoError(t, err)
	assert.True(t, status.Started)
	assert.Equal(t, "BOUND_TRX", status.SessionState)

	details, err := c.ConnectorDetails(ctx, "smppc_a")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", details["host"])

	err = c.RemoveConnector(ctx, "smppc_a", false)
	assert.True(t, pb.IsRemoteOperationError(err), "started connectors cannot be removed")

	require.NoError(t, c.StopConnector(ctx, "smppc_a", false))
	require.NoError(t, c.RemoveConnector(ctx, "smppc_a", false))

	_, err = c.ConnectorStatus(ctx, "smppc_a")
	assert.True(t, pb.IsRemoteOperationError(err))
}

// Every operation disconnects exactly once per connect, whatever happens
// in between.
func TestClients_DisconnectOncePerConnect(t *testing.T) {
	ctx := context.Background()
	var cfg jasmin.SMPPClientConfig
	cfg.Set("id", "smppc_a")

	ops := map[string]struct {
		op  string
		run func(r *pb.RouterClient, s *pb.SMPPClient) error
	}{
		"add group": {pb.OpGroupAdd, func(r *pb.RouterClient, _ *pb.SMPPClient) error {
			return r.AddGroup(ctx, jasmin.Group{GID: "g1"}, true)
		}},
		"remove group": {pb.OpGroupRemove, func(r *pb.RouterClient, _ *pb.SMPPClient) error {
			return r.RemoveGroup(ctx, "g1", false)
		}},
		"enable user": {pb.OpUserEnable, func(r *pb.RouterClient, _ *pb.SMPPClient) error {
			return r.EnableUser(ctx, "alice", false)
		}},
		"get all users": {pb.OpUserGetAll, func(r *pb.RouterClient, _ *pb.SMPPClient) error {
			_, err := r.GetAllUsers(ctx)
			return err
		}},
		"add route": {"mtroute_add", func(r *pb.RouterClient, _ *pb.SMPPClient) error {
			return r.AddRoute(ctx, 1, staticRoute(), false)
		}},
		"add connector": {pb.OpConnectorAdd, func(_ *pb.RouterClient, s *pb.SMPPClient) error {
			return s.AddConnector(ctx, cfg, true)
		}},
		"connector status": {pb.OpServiceStatus, func(_ *pb.RouterClient, s *pb.SMPPClient) error {
			_, err := s.ConnectorStatus(ctx, "smppc_a")
			return err
		}},
	}

	for name, tc := range ops {
		t.Run(name+"/remote failure", func(t *testing.T) {
			fake := testutil.NewFakeEngine()
			fake.FailOn(tc.op, errors.New("rejected"))

			err := tc.run(pb.NewRouterClient(fake, testEndpoint), pb.NewSMPPClient(fake, testEndpoint))
			require.Error(t, err)
			assert.Equal(t, 1, fake.Connects())
			assert.Equal(t, 1, fake.Disconnects())
		})

		t.Run(name+"/panic", func(t *testing.T) {
			fake := testutil.NewFakeEngine()
			fake.PanicOn(tc.op)

			assert.Panics(t, func() {
				_ = tc.run(pb.NewRouterClient(fake, testEndpoint), pb.NewSMPPClient(fake, testEndpoint))
			})
			assert.Equal(t, 1, fake.Connects())
			assert.Equal(t, 1, fake.Disconnects())
		})

		t.Run(name+"/connect failure", func(t *testing.T) {
			fake := testutil.NewFakeEngine()
			fake.FailConnect(errors.New("connection refused"))

			err := tc.run(pb.NewRouterClient(fake, testEndpoint), pb.NewSMPPClient(fake, testEndpoint))
			require.Error(t, err)
			assert.True(t, pb.IsConnectionError(err))
			assert.Equal(t, 0, fake.Connects())
			assert.Equal(t, 0, fake.Disconnects())
		})
	}
}
