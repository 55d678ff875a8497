package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/model"
)

func TestGroups_CRUD(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	g, err := s.CreateGroup(ctx, model.Group{GID: "premium", Description: "paying", Enabled: true})
	require.NoError(t, err)
	assert.NotZero(t, g.ID)
	assert.Equal(t, fixedNow, g.CreatedAt)

	_, err = s.CreateGroup(ctx, model.Group{GID: "premium"})
	assert.True(t, IsConflict(err))

	got, err := s.GetGroupByGID(ctx, "premium")
	require.NoError(t, err)
	assert.Equal(t, g.ID, got.ID)
	assert.Equal(t, "paying", got.Description)
	assert.True(t, got.Enabled)

	got.Enabled = false
	_, err = s.UpdateGroup(ctx, got)
	require.NoError(t, err)
	got, err = s.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)

	require.NoError(t, s.DeleteGroup(ctx, g.ID))
	_, err = s.GetGroup(ctx, g.ID)
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(s.DeleteGroup(ctx, g.ID)))
}

func TestUsers_PasswordIsSealed(t *testing.T) {
	s := createTestStore(t)
	s.sealer = reverseSealer{}
	ctx := context.Background()
	g := mustGroup(t, s, "g1")

	u, err := s.CreateUser(ctx, model.User{
		Username:     "alice",
		Password:     "s3cret",
		GroupID:      g.ID,
		Enabled:      true,
		MTCredential: model.DefaultMTCredential(),
	})
	require.NoError(t, err)

	var raw string
	require.NoError(t, s.db.QueryRow(`SELECT password FROM users WHERE id = ?`, u.ID).Scan(&raw))
	assert.Equal(t, "sealed:terc3s", raw)

	got, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got.Password)
	assert.Equal(t, "g1", got.GID)
	assert.Equal(t, model.DefaultMTCredential().Authorizations, got.MTCredential.Authorizations)
}

func TestUsers_GroupReferences(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	g := mustGroup(t, s, "g1")

	_, err := s.CreateUser(ctx, model.User{Username: "bob", Password: "pw", GroupID: g.ID + 99})
	assert.ErrorIs(t, err, ErrReferenced, "unknown group")

	_, err = s.CreateUser(ctx, model.User{Username: "bob", Password: "pw", GroupID: g.ID})
	require.NoError(t, err)

	n, err := s.CountUsersInGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, s.DeleteGroup(ctx, g.ID), ErrReferenced)
}

func TestConnectors_SettingsRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	settings := model.DefaultSMPPSettings()
	settings.Host = "smsc.example.net"
	settings.Password = "bindpw"
	c, err := s.CreateConnector(ctx, model.Connector{CID: "smppc_a", Type: model.ConnectorSMPP, SMPP: &settings})
	require.NoError(t, err)

	got, err := s.GetConnectorByCID(ctx, "smppc_a")
	require.NoError(t, err)
	require.NotNil(t, got.SMPP)
	assert.Equal(t, settings, *got.SMPP)
	assert.False(t, got.Started)

	got.Started = true
	_, err = s.UpdateConnector(ctx, got)
	require.NoError(t, err)
	got, err = s.GetConnector(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Started)

	h, err := s.CreateConnector(ctx, model.Connector{CID: "http_b", Type: model.ConnectorHTTP,
		HTTP: &model.HTTPSettings{BaseURL: "http://mo.example.net/in", Method: "POST"}})
	require.NoError(t, err)
	got, err = s.GetConnector(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, "http://mo.example.net/in", got.HTTP.BaseURL)
	assert.Nil(t, got.SMPP)

	_, err = s.CreateConnector(ctx, model.Connector{CID: "broken", Type: model.ConnectorSMPP})
	assert.Error(t, err)

	list, err := s.ListConnectors(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestFilters_Param(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	f := mustFilter(t, s, "to_fr")
	got, err := s.GetFilterByFID(ctx, "to_fr")
	require.NoError(t, err)
	assert.Equal(t, f.ID, got.ID)
	require.NotNil(t, got.Param)
	assert.Equal(t, "^33", got.Param.Value)

	tr, err := s.CreateFilter(ctx, model.Filter{FID: "all", Type: jasmin.TransparentFilter, Nature: model.FilterAll})
	require.NoError(t, err)
	got, err = s.GetFilter(ctx, tr.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Param)
}

func TestRoutes_LinksKeepPosition(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a := mustSMPPConnector(t, s, "smppc_a")
	b := mustSMPPConnector(t, s, "smppc_b")
	f := mustFilter(t, s, "f1")
	rate := 12.5

	r, err := s.CreateRoute(ctx, model.Route{
		Order:        10,
		Nature:       jasmin.MT,
		Kind:         jasmin.FailoverKind,
		Rate:         &rate,
		ConnectorIDs: []int64{b.ID, a.ID},
		FilterIDs:    []int64{f.ID},
		Digest:       "d1",
	})
	require.NoError(t, err)

	got, err := s.GetRouteByOrder(ctx, jasmin.MT, 10)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, []int64{b.ID, a.ID}, got.ConnectorIDs)
	assert.Equal(t, []int64{f.ID}, got.FilterIDs)
	require.NotNil(t, got.Rate)
	assert.Equal(t, 12.5, *got.Rate)

	_, err = s.CreateRoute(ctx, model.Route{Order: 10, Nature: jasmin.MT, Kind: jasmin.StaticKind, ConnectorIDs: []int64{a.ID}})
	assert.True(t, IsConflict(err), "order is unique per nature")

	// A failed create leaves nothing behind.
	n, err := s.CountRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	refs, err := s.CountConnectorReferences(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, refs)
	assert.ErrorIs(t, s.DeleteConnector(ctx, a.ID), ErrReferenced)

	got.ConnectorIDs = []int64{a.ID}
	got.Kind = jasmin.StaticKind
	_, err = s.UpdateRoute(ctx, got)
	require.NoError(t, err)
	got, err = s.GetRoute(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID}, got.ConnectorIDs)
	assert.Equal(t, jasmin.StaticKind, got.Kind)

	require.NoError(t, s.SetRouteDigest(ctx, r.ID, "d2"))
	require.NoError(t, s.DeleteRoute(ctx, r.ID))
	refs, err = s.CountFilterReferences(ctx, f.ID)
	require.NoError(t, err)
	assert.Zero(t, refs)
	assert.NoError(t, s.DeleteConnector(ctx, b.ID))
}

func TestRoutes_ListByNature(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	a := mustSMPPConnector(t, s, "smppc_a")

	for _, order := range []int{0, 30, 20} {
		_, err := s.CreateRoute(ctx, model.Route{Order: order, Nature: jasmin.MT, Kind: jasmin.StaticKind, ConnectorIDs: []int64{a.ID}})
		require.NoError(t, err)
	}
	_, err := s.CreateRoute(ctx, model.Route{Order: 30, Nature: jasmin.MO, Kind: jasmin.DefaultKind, ConnectorIDs: []int64{a.ID}})
	require.NoError(t, err, "same order on the other nature")

	mt, err := s.ListRoutes(ctx, jasmin.MT)
	require.NoError(t, err)
	var orders []int
	for _, r := range mt {
		orders = append(orders, r.Order)
		assert.Equal(t, []int64{a.ID}, r.ConnectorIDs)
	}
	assert.Equal(t, []int{30, 20, 0}, orders)

	all, err := s.ListRoutes(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestInterceptors_CRUD(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	f := mustFilter(t, s, "f1")

	i, err := s.CreateInterceptor(ctx, model.Interceptor{
		Order: 5, Nature: jasmin.MO, Kind: jasmin.StaticInterceptorKind,
		Script: "/opt/hooks/tag.py", FilterIDs: []int64{f.ID},
	})
	require.NoError(t, err)

	got, err := s.GetInterceptorByOrder(ctx, jasmin.MO, 5)
	require.NoError(t, err)
	assert.Equal(t, i.ID, got.ID)
	assert.Equal(t, []int64{f.ID}, got.FilterIDs)

	refs, err := s.CountFilterReferences(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, refs)
	assert.ErrorIs(t, s.DeleteFilter(ctx, f.ID), ErrReferenced)

	got.FilterIDs = nil
	got.Kind = jasmin.DefaultInterceptorKind
	_, err = s.UpdateInterceptor(ctx, got)
	require.NoError(t, err)

	list, err := s.ListInterceptors(ctx, jasmin.MO)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].FilterIDs)

	require.NoError(t, s.DeleteInterceptor(ctx, i.ID))
	require.NoError(t, s.DeleteFilter(ctx, f.ID))
	n, err := s.CountInterceptors(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestJournal(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, state := range []string{"local_pending", "remote_in_flight", "committed"} {
		_, err := s.AppendOperation(ctx, Operation{OpID: "op-1", Op: "add_group", Entity: "group", Key: "g1", State: state})
		require.NoError(t, err)
	}
	_, err := s.AppendOperation(ctx, Operation{OpID: "op-2", Op: "remove_group", Entity: "group", Key: "g1", State: "remote_in_flight"})
	require.NoError(t, err)

	hist, err := s.OperationHistory(ctx, "op-1")
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, "local_pending", hist[0].State)
	assert.Equal(t, "committed", hist[2].State)

	recent, err := s.RecentOperations(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "op-2", recent[0].OpID)
}
