package compiler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/model"
)

func assertGolden(t *testing.T, name string, v any) {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}

func writeScript(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("routable.addTag(1)\n"), 0o600))
	return path
}

func smppConnector(cid string) model.Connector {
	s := model.DefaultSMPPSettings()
	return model.Connector{CID: cid, Type: model.ConnectorSMPP, SMPP: &s}
}

func httpConnector(cid string) model.Connector {
	return model.Connector{
		CID:  cid,
		Type: model.ConnectorHTTP,
		HTTP: &model.HTTPSettings{BaseURL: "http://crm.local/mo", Method: "post"},
	}
}

func filter(fid string, t jasmin.FilterType, n model.FilterNature, key string, value any) model.Filter {
	f := model.Filter{FID: fid, Type: t, Nature: n}
	if value != nil {
		f.Param = &model.FilterParam{Key: key, Value: value}
	}
	return f
}

func rate(v float64) *float64 { return &v }
