package pb_test

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quark/internal/codec"
	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/pb"
	"github.com/roach88/quark/internal/testutil"
)

// serveFake serves a fake engine on a loopback port and returns its
// endpoint.
func serveFake(t *testing.T, fake *testutil.FakeEngine) pb.Endpoint {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := pb.NewServer(fake.Authenticate, nil)
	fake.Register(srv)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	addr := ln.Addr().(*net.TCPAddr)
	return pb.Endpoint{Host: "127.0.0.1", Port: addr.Port, Username: "radmin", Password: "rpwd"}
}

func TestNetDialer_RoundTrip(t *testing.T) {
	fake := testutil.NewFakeEngine()
	fake.Username, fake.Password = "radmin", "rpwd"
	ep := serveFake(t, fake)
	ctx := context.Background()

	c := pb.NewRouterClient(pb.NetDialer{Timeout: 2 * time.Second}, ep)

	require.NoError(t, c.AddGroup(ctx, jasmin.Group{GID: "g1", Enabled: true}, true))
	require.NoError(t, c.AddRoute(ctx, 5, staticRoute(), false))

	groups, err := c.GetAllGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []jasmin.Group{{GID: "g1", Enabled: true}}, groups)

	routes, err := c.GetAllRoutes(ctx, jasmin.MT)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, staticRoute().Wire(), routes[0].Route)

	assert.Equal(t, 1, fake.Persists())
}

func TestNetDialer_BadLogin(t *testing.T) {
	fake := testutil.NewFakeEngine()
	fake.Username, fake.Password = "radmin", "rpwd"
	ep := serveFake(t, fake)
	ep.Password = "wrong"

	_, err := pb.NetDialer{Timeout: time.Second}.Connect(context.Background(), ep)
	require.Error(t, err)

	var ce *pb.ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, pb.StageAuth, ce.Stage)
	assert.NotContains(t, err.Error(), "wrong", "passwords never appear in errors")
}

func TestNetDialer_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	_, err = pb.NetDialer{Timeout: time.Second}.Connect(context.Background(), pb.Endpoint{Host: "127.0.0.1", Port: port})

	var ce *pb.ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, pb.StageDial, ce.Stage)
}

func TestSession_UnknownOpAndDisconnect(t *testing.T) {
	ep := serveFake(t, testutil.NewFakeEngine())
	ctx := context.Background()

	s, err := pb.NetDialer{Timeout: time.Second}.Connect(ctx, ep)
	require.NoError(t, err)

	_, err = s.Invoke(ctx, "no_such_op")
	var re *pb.RemoteOperationError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "no_such_op", re.Op)

	// The session survives a rejected command.
	reply, err := s.Invoke(ctx, pb.OpGroupGetAll)
	require.NoError(t, err)
	var groups []jasmin.Group
	require.NoError(t, reply.Decode(&groups))
	assert.Empty(t, groups)

	require.NoError(t, s.Disconnect())
	err = s.Disconnect()
	assert.ErrorIs(t, err, pb.ErrSessionClosed)

	_, err = s.Invoke(ctx, pb.OpGroupGetAll)
	assert.ErrorIs(t, err, pb.ErrSessionClosed)
}

func TestNetDialer_MaxReplyAppliesPerReply(t *testing.T) {
	srv := pb.NewServer(nil, nil)
	srv.Handle("blob", func(_ context.Context, args []codec.RawMessage) (any, error) {
		var n int
		if err := pb.DecodeArgs(args, &n); err != nil {
			return nil, err
		}
		return strings.Repeat("x", n), nil
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	ep := pb.Endpoint{Host: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port}
	s, err := pb.NetDialer{Timeout: time.Second, MaxReply: 1024}.Connect(ctx, ep)
	require.NoError(t, err)
	defer s.Disconnect()

	// Many replies under the limit add up to far more than it.
	for range 5 {
		reply, err := s.Invoke(ctx, "blob", 800)
		require.NoError(t, err)
		var got string
		require.NoError(t, reply.Decode(&got))
		assert.Len(t, got, 800)
	}

	_, err = s.Invoke(ctx, "blob", 4096)
	require.Error(t, err)
	assert.True(t, pb.IsConnectionError(err))
	assert.ErrorContains(t, err, "reply exceeds size limit")

	// The stream is mid-reply, so the session refuses further use.
	_, err = s.Invoke(ctx, "blob", 10)
	assert.True(t, pb.IsConnectionError(err))
}

func TestServer_Handle(t *testing.T) {
	srv := pb.NewServer(nil, nil)
	echo := func(_ context.Context, args []codec.RawMessage) (any, error) {
		var s string
		if err := pb.DecodeArgs(args, &s); err != nil {
			return nil, err
		}
		return s, nil
	}
	srv.Handle("echo", echo)

	assert.Panics(t, func() { srv.Handle("echo", echo) })
	assert.Panics(t, func() { srv.Handle(pb.OpLogin, echo) })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	ep := pb.Endpoint{Host: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port}
	s, err := pb.NetDialer{Timeout: time.Second}.Connect(ctx, ep)
	require.NoError(t, err)

	reply, err := s.Invoke(ctx, "echo", "hello")
	require.NoError(t, err)
	var got string
	require.NoError(t, reply.Decode(&got))
	assert.Equal(t, "hello", got)

	_, err = s.Invoke(ctx, "echo", "a", "b")
	assert.True(t, pb.IsRemoteOperationError(err))

	require.NoError(t, s.Disconnect())
	cancel()
	assert.NoError(t, <-done)
}

func TestDecodeArgs(t *testing.T) {
	a, err := codec.Marshal(7)
	require.NoError(t, err)
	b, err := codec.Marshal("x")
	require.NoError(t, err)

	var n int
	var s string
	require.NoError(t, pb.DecodeArgs([]codec.RawMessage{a, b}, &n, &s))
	assert.Equal(t, 7, n)
	assert.Equal(t, "x", s)

	assert.Error(t, pb.DecodeArgs([]codec.RawMessage{a}, &n, &s))
	assert.Error(t, pb.DecodeArgs([]codec.RawMessage{b}, &n))
}
