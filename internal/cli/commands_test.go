package cli

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quark/internal/compiler"
	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/pb"
)

func TestGroupCommands(t *testing.T) {
	env := newTestEnv(t)

	env.mustRun(t, "group", "add", "customers", "--description", "paying customers")
	env.mustRun(t, "group", "add", "trial", "--disabled")

	out := env.mustRun(t, "group", "list")
	newGoldie(t).Assert(t, "group_list", []byte(out))

	groups := env.fake.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, jasmin.Group{GID: "customers", Enabled: true}, groups[0])
	assert.Equal(t, jasmin.Group{GID: "trial", Enabled: false}, groups[1])

	out = env.mustRun(t, "group", "enable", "trial")
	assert.Contains(t, out, "group enabled: trial")
	assert.True(t, env.fake.Groups()[1].Enabled)

	resp := decodeResponse(t, env.mustRun(t, "--format", "json", "group", "list", "--remote"))
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "remote", data["source"])
	assert.Len(t, data["items"], 2)

	env.mustRun(t, "group", "remove", "trial")
	assert.Len(t, env.fake.Groups(), 1)
}

func TestUserAddReadsPasswordFromStdin(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "group", "add", "customers")

	res := env.run(t, "s3cret\n", "user", "add", "acme", "--group", "customers")
	require.NoError(t, res.err, res.stderr)

	users := env.fake.Users()
	require.Len(t, users, 1)
	assert.Equal(t, "acme", users[0].UID)
	assert.Equal(t, "customers", users[0].GID)

	res = env.run(t, "n3w\n", "user", "passwd", "acme")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "password changed: acme")
}

func TestUserAddUnknownGroup(t *testing.T) {
	env := newTestEnv(t)

	res := env.run(t, "", "--format", "json", "user", "add", "ghost", "--group", "nowhere", "--password", "x")
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))

	resp := decodeResponse(t, res.stdout)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.CodeNotFound, resp.Error.Code)
	assert.Empty(t, env.fake.Calls(), "rejected input never reaches the engine")
}

func TestRejectedLoginIsCompensated(t *testing.T) {
	env := newTestEnv(t)
	env.fake.Username, env.fake.Password = "someone", "else"

	res := env.run(t, "", "--format", "json", "group", "add", "customers")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	resp := decodeResponse(t, res.stdout)
	assert.Equal(t, CodeConnection, resp.Error.Code)

	env.fake.Username, env.fake.Password = "", ""
	out := env.mustRun(t, "--format", "json", "group", "list")
	assert.Empty(t, decodeResponse(t, out).Data, "the local insert was rolled back")
}

func TestConnectorCommands(t *testing.T) {
	env := newTestEnv(t)

	env.mustRun(t, "connector", "add", "orange", "--host", "smsc.example.net", "--port", "2776",
		"--username", "acme", "--password", "pass")
	env.mustRun(t, "connector", "add", "crm", "--type", "http", "--url", "https://crm.example.net/mo", "--method", "post")

	cfg, started, ok := env.fake.Connector("smppc_orange")
	require.True(t, ok)
	assert.False(t, started)
	assert.Equal(t, "smsc.example.net", cfg["host"])
	_, _, ok = env.fake.Connector("http_crm")
	assert.False(t, ok, "HTTP connectors stay local")

	env.mustRun(t, "connector", "start", "smppc_orange")
	resp := decodeResponse(t, env.mustRun(t, "--format", "json", "connector", "status", "smppc_orange", "--details"))
	data := resp.Data.(map[string]any)
	status := data["status"].(map[string]any)
	assert.Equal(t, true, status["started"])
	assert.Equal(t, "BOUND_TRX", status["session_state"])
	assert.Equal(t, "smppc_orange", data["details"].(map[string]any)["id"])

	res := env.run(t, "", "connector", "remove", "smppc_orange")
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err), "a started connector must be stopped first")

	env.mustRun(t, "connector", "stop", "smppc_orange")
	env.mustRun(t, "connector", "remove", "smppc_orange")
	_, _, ok = env.fake.Connector("smppc_orange")
	assert.False(t, ok)
}

func TestRouteCommandsAndDrift(t *testing.T) {
	env := newTestEnv(t)

	env.mustRun(t, "connector", "add", "orange", "--host", "smsc.example.net", "--port", "2776")
	env.mustRun(t, "filter", "add", "france", "--type", "DestinationAddrFilter", "--value", "^33")
	env.mustRun(t, "route", "add", "--order", "0", "--kind", "Default", "--connector", "smppc_orange")
	env.mustRun(t, "route", "add", "--order", "10", "--kind", "Static", "--connector", "smppc_orange",
		"--filter", "france", "--rate", "0.02")

	routes := env.fake.Routes(jasmin.MT)
	require.Len(t, routes, 2)
	assert.Equal(t, 10, routes[0].Order)

	out := env.mustRun(t, "drift")
	assert.Contains(t, out, "in sync")

	// A failed persist leaves the group on the engine but not locally.
	env.fake.FailOn(pb.OpPersist, assert.AnError)
	res := env.run(t, "", "group", "add", "orphan")
	require.Error(t, res.err)
	env.fake.FailOn(pb.OpPersist, nil)

	res = env.run(t, "", "drift")
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Contains(t, res.stdout, "extra_remote")
	assert.Contains(t, res.stdout, "orphan")

	env.mustRun(t, "route", "remove", "--order", "10")
	assert.Len(t, env.fake.Routes(jasmin.MT), 1)

	res = env.run(t, "", "filter", "remove", "france")
	require.NoError(t, res.err, "the filter is no longer referenced: %s", res.stderr)
}

func TestInterceptorCommands(t *testing.T) {
	env := newTestEnv(t)
	script := filepath.Join(env.dir, "tag.py")
	require.NoError(t, os.WriteFile(script, []byte("routable.addTag(10)\n"), 0o600))

	env.mustRun(t, "interceptor", "add", "--nature", "mo", "--order", "5", "--kind", "Default", "--script", script)
	_, ok := env.fake.Interceptor(jasmin.MO, 5)
	assert.True(t, ok)

	resp := decodeResponse(t, env.mustRun(t, "--format", "json", "interceptor", "list", "--nature", "MO"))
	assert.Len(t, resp.Data, 1)

	env.mustRun(t, "interceptor", "remove", "--nature", "MO", "--order", "5")
	_, ok = env.fake.Interceptor(jasmin.MO, 5)
	assert.False(t, ok)
}

func TestInvalidNature(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(t, "", "route", "list", "--nature", "XX")
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Contains(t, res.stderr, "unknown nature")
}

const siteManifest = `groups:
  - gid: customers
users:
  - username: acme
    password: s3cret
    group: customers
connectors:
  - name: orange
    type: SMPP
    smpp:
      host: smsc.example.net
      port: 2776
  - name: crm
    type: HTTP
    http:
      base_url: https://crm.example.net/mo
      method: POST
filters:
  - fid: france
    type: DestinationAddrFilter
    value: "^33"
routes:
  - {order: 0, nature: MT, kind: Default, connectors: [smppc_orange]}
  - {order: 0, nature: MO, kind: Default, connectors: [http_crm]}
`

func TestApplyCommand(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(env.dir, "site.yaml")
	require.NoError(t, os.WriteFile(path, []byte(siteManifest), 0o600))

	out := env.mustRun(t, "apply", "--dry-run", "-f", path)
	assert.Contains(t, out, "1 groups, 1 users, 2 connectors, 1 filters, 2 routes, 0 interceptors")
	assert.Empty(t, env.fake.Calls())

	out = env.mustRun(t, "apply", "-f", path)
	assert.Equal(t, "applied 7, skipped 0\n", out)
	assert.Len(t, env.fake.Routes(jasmin.MO), 1)

	out = env.mustRun(t, "apply", "-f", path)
	assert.Equal(t, "applied 0, skipped 7\n", out)
}

func TestApplyRejectsInvalidManifest(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(env.dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routes:\n  - {order: -1, nature: MT, kind: Static, connectors: [a]}\n"), 0o600))

	res := env.run(t, "", "--format", "json", "apply", "-f", path)
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Equal(t, CodeSchema, decodeResponse(t, res.stdout).Error.Code)
}

func TestAuditLog(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "group", "add", "customers")

	resp := decodeResponse(t, env.mustRun(t, "--format", "json", "audit", "log", "--limit", "1"))
	ops := resp.Data.([]any)
	require.Len(t, ops, 1)
	last := ops[0].(map[string]any)
	assert.Equal(t, "add_group", last["op"])
	assert.Equal(t, "committed", last["state"])

	history := decodeResponse(t, env.mustRun(t, "--format", "json", "audit", "log", "--op", last["op_id"].(string)))
	assert.Len(t, history.Data, 3)
}

func TestAuditTailNeedsBrokers(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(t, "", "audit", "tail")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	assert.Contains(t, res.stderr, "no kafka brokers")
}

func TestKeygen(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(env.dir, "identity.txt")

	out := env.mustRun(t, "keygen", path)
	assert.Contains(t, out, "public key: age1")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	res := env.run(t, "", "keygen", path)
	require.Error(t, res.err, "existing identities are never overwritten")
}

func TestSealedPasswordsWithIdentity(t *testing.T) {
	env := newTestEnv(t)
	identity := filepath.Join(env.dir, "identity.txt")
	env.mustRun(t, "keygen", identity)

	f, err := os.OpenFile(env.config, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("sealing:\n  identity_file: " + identity + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	env.mustRun(t, "group", "add", "customers")
	env.mustRun(t, "user", "add", "acme", "--group", "customers", "--password", "s3cret")
	res := env.run(t, "n3w\n", "user", "passwd", "acme")
	require.NoError(t, res.err, res.stderr)
	assert.Len(t, env.fake.Users(), 1)
}

func TestBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quark.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  format: xml\n"), 0o600))

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--config", path, "group", "list"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
