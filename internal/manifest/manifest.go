// Package manifest provisions a whole configuration from one YAML document.
//
// A manifest is checked against an embedded CUE schema before anything is
// applied, then applied in dependency order: groups, users, connectors,
// filters, routes, interceptors.
package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/quark/internal/coordinator"
	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/model"
)

//go:embed schema.cue
var schemaSource string

// Manifest is a parsed provisioning document.
type Manifest struct {
	Groups       []Group                          `yaml:"groups"`
	Users        []User                           `yaml:"users"`
	Connectors   []Connector                      `yaml:"connectors"`
	Filters      []Filter                         `yaml:"filters"`
	Routes       []coordinator.RouteRequest       `yaml:"routes"`
	Interceptors []coordinator.InterceptorRequest `yaml:"interceptors"`
}

// Group is a group entry. Groups are enabled unless stated otherwise.
type Group struct {
	GID         string `yaml:"gid"`
	Description string `yaml:"description"`
	Enabled     *bool  `yaml:"enabled"`
}

// User is a user entry. Missing credential bundles get the defaults.
type User struct {
	Username       string                  `yaml:"username"`
	Password       string                  `yaml:"password"`
	Group          string                  `yaml:"group"`
	Enabled        *bool                   `yaml:"enabled"`
	MTCredential   *model.CredentialBundle `yaml:"mt_credential"`
	SMPPCredential *model.CredentialBundle `yaml:"smpps_credential"`
}

// Connector is a connector entry. The cid is derived from type and name.
// SMPP settings left out keep the engine defaults.
type Connector struct {
	Name string              `yaml:"name"`
	Type model.ConnectorType `yaml:"type"`
	SMPP *model.SMPPSettings `yaml:"smpp"`
	HTTP *model.HTTPSettings `yaml:"http"`
}

// UnmarshalYAML decodes over the default SMPP settings.
func (c *Connector) UnmarshalYAML(n *yaml.Node) error {
	type plain Connector
	settings := model.DefaultSMPPSettings()
	p := plain{SMPP: &settings}
	if err := n.Decode(&p); err != nil {
		return err
	}
	*c = Connector(p)
	return nil
}

// Filter is a filter entry.
type Filter struct {
	FID    string             `yaml:"fid"`
	Type   jasmin.FilterType  `yaml:"type"`
	Nature model.FilterNature `yaml:"nature"`
	Value  any                `yaml:"value"`
}

// CID returns the connector id the entry creates.
func (c Connector) CID() string {
	return model.ConnectorCID(c.Type, c.Name)
}

func (g Group) model() model.Group {
	return model.Group{GID: g.GID, Description: g.Description, Enabled: enabled(g.Enabled)}
}

func (u User) model() model.User {
	m := model.User{Username: u.Username, Password: u.Password, GID: u.Group, Enabled: enabled(u.Enabled)}
	if u.MTCredential != nil {
		m.MTCredential = *u.MTCredential
	}
	if u.SMPPCredential != nil {
		m.SMPPCredential = *u.SMPPCredential
	}
	return m
}

func (c Connector) model() model.Connector {
	m := model.Connector{CID: c.CID(), Type: c.Type}
	switch c.Type {
	case model.ConnectorSMPP:
		m.SMPP = c.SMPP
	case model.ConnectorHTTP:
		m.HTTP = c.HTTP
	}
	return m
}

func (f Filter) model() model.Filter {
	m := model.Filter{FID: f.FID, Type: f.Type, Nature: f.Nature}
	if f.Value != nil {
		m.Param = &model.FilterParam{Value: f.Value}
	}
	return m
}

func enabled(b *bool) bool {
	return b == nil || *b
}

// Parse validates data against the schema and decodes it.
func Parse(data []byte) (*Manifest, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// Load reads and parses a manifest file. Relative script paths are
// resolved against the file's directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i := range m.Interceptors {
		m.Interceptors[i].Script = resolve(dir, m.Interceptors[i].Script)
	}
	for i := range m.Filters {
		if s, ok := m.Filters[i].Value.(string); ok && m.Filters[i].Type == jasmin.EvalPyFilter {
			m.Filters[i].Value = resolve(dir, s)
		}
	}
	return m, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// SchemaError is a manifest that does not match the schema.
type SchemaError struct {
	Message string
}

func (e *SchemaError) Error() string {
	return "manifest does not match schema: " + e.Message
}

func validate(raw any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile manifest schema: %w", err)
	}

	doc := ctx.Encode(raw)
	if err := doc.Err(); err != nil {
		return &SchemaError{Message: cueerrors.Details(err, nil)}
	}
	v := schema.LookupPath(cue.ParsePath("#Manifest")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return &SchemaError{Message: cueerrors.Details(err, nil)}
	}
	return nil
}
