package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/pb"
)

func connect(t *testing.T, e *FakeEngine) pb.Session {
	t.Helper()
	s, err := e.Connect(context.Background(), pb.Endpoint{Host: "fake", Port: 1})
	require.NoError(t, err)
	t.Cleanup(func() { s.Disconnect() })
	return s
}

func TestFakeEngine_UserNeedsGroup(t *testing.T) {
	e := NewFakeEngine()
	s := connect(t, e)
	ctx := context.Background()

	_, err := s.Invoke(ctx, pb.OpUserAdd, jasmin.User{UID: "u", GID: "missing"})
	assert.True(t, pb.IsRemoteOperationError(err))

	_, err = s.Invoke(ctx, pb.OpGroupAdd, jasmin.Group{GID: "g"})
	require.NoError(t, err)
	_, err = s.Invoke(ctx, pb.OpUserAdd, jasmin.User{UID: "u", GID: "g"})
	require.NoError(t, err)

	// Removing the group takes its users with it.
	_, err = s.Invoke(ctx, pb.OpGroupRemove, "g")
	require.NoError(t, err)
	assert.Empty(t, e.Users())
}

func TestFakeEngine_DuplicateGroup(t *testing.T) {
	e := NewFakeEngine()
	s := connect(t, e)
	ctx := context.Background()

	_, err := s.Invoke(ctx, pb.OpGroupAdd, jasmin.Group{GID: "g"})
	require.NoError(t, err)
	_, err = s.Invoke(ctx, pb.OpGroupAdd, jasmin.Group{GID: "g"})

	var re *pb.RemoteOperationError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, pb.OpGroupAdd, re.Op)
	assert.Contains(t, re.Message, "already exists")
}

func TestFakeEngine_RoutesSortedByDescendingOrder(t *testing.T) {
	e := NewFakeEngine()
	s := connect(t, e)
	ctx := context.Background()

	conn := []jasmin.ConnectorWire{{Class: "SmppClientConnector", CID: "c"}}
	for _, order := range []int{0, 20, 10} {
		_, err := s.Invoke(ctx, pb.RouteOp(jasmin.MT, "add"), order, jasmin.RouteWire{Class: "StaticMTRoute", Connectors: conn})
		require.NoError(t, err)
	}

	var orders []int
	for _, r := range e.Routes(jasmin.MT) {
		orders = append(orders, r.Order)
	}
	assert.Equal(t, []int{20, 10, 0}, orders)
	assert.Empty(t, e.Routes(jasmin.MO))
}

func TestFakeEngine_FailureInjection(t *testing.T) {
	e := NewFakeEngine()
	s := connect(t, e)
	ctx := context.Background()

	e.FailOn(pb.OpGroupAdd, errors.New("duplicate"))
	_, err := s.Invoke(ctx, pb.OpGroupAdd, jasmin.Group{GID: "g"})
	assert.True(t, pb.IsRemoteOperationError(err))
	assert.Empty(t, e.Groups())

	e.FailOn(pb.OpGroupAdd, nil)
	_, err = s.Invoke(ctx, pb.OpGroupAdd, jasmin.Group{GID: "g"})
	assert.NoError(t, err)

	e.FailOn(pb.OpGroupRemove, &pb.ConnectionError{Endpoint: "fake", Stage: pb.StageInvoke, Err: errors.New("reset")})
	_, err = s.Invoke(ctx, pb.OpGroupRemove, "g")
	assert.True(t, pb.IsConnectionError(err))

	assert.Equal(t, []string{pb.OpGroupAdd, pb.OpGroupAdd, pb.OpGroupRemove}, e.Calls())
}

func TestFakeEngine_Login(t *testing.T) {
	e := NewFakeEngine()
	e.Username, e.Password = "cmadmin", "cmpwd"

	_, err := e.Connect(context.Background(), pb.Endpoint{Username: "cmadmin", Password: "nope"})
	var ce *pb.ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, pb.StageAuth, ce.Stage)
	assert.Equal(t, 0, e.Connects())

	s, err := e.Connect(context.Background(), pb.Endpoint{Username: "cmadmin", Password: "cmpwd"})
	require.NoError(t, err)
	require.NoError(t, s.Disconnect())
	assert.Error(t, s.Disconnect())
	assert.Equal(t, 1, e.Connects())
	assert.Equal(t, 1, e.Disconnects())
}
