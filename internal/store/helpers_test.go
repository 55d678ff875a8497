package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/model"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestStore opens a fresh SQLite store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	return openTestStore(t, Options{DSN: filepath.Join(t.TempDir(), "test.db")})
}

func openTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	s, err := Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// reverseSealer marks sealed values so tests can see they were sealed.
type reverseSealer struct{}

func (reverseSealer) Seal(p string) (string, error) { return "sealed:" + reverse(p), nil }
func (reverseSealer) Unseal(s string) (string, error) {
	return reverse(strings.TrimPrefix(s, "sealed:")), nil
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func mustGroup(t *testing.T, s *Store, gid string) model.Group {
	t.Helper()
	g, err := s.CreateGroup(context.Background(), model.Group{GID: gid, Enabled: true})
	require.NoError(t, err)
	return g
}

func mustSMPPConnector(t *testing.T, s *Store, cid string) model.Connector {
	t.Helper()
	settings := model.DefaultSMPPSettings()
	c, err := s.CreateConnector(context.Background(), model.Connector{CID: cid, Type: model.ConnectorSMPP, SMPP: &settings})
	require.NoError(t, err)
	return c
}

func mustFilter(t *testing.T, s *Store, fid string) model.Filter {
	t.Helper()
	f, err := s.CreateFilter(context.Background(), model.Filter{
		FID:    fid,
		Type:   jasmin.DestinationAddrFilter,
		Nature: model.FilterAll,
		Param:  &model.FilterParam{Key: "destination_addr", Value: "^33"},
	})
	require.NoError(t, err)
	return f
}
