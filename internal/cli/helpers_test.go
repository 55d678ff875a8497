package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quark/internal/pb"
	"github.com/roach88/quark/internal/testutil"
)

// testEnv is a fake engine served over TCP plus a config file pointing
// both endpoints at it.
type testEnv struct {
	fake   *testutil.FakeEngine
	dir    string
	config string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fake := testutil.NewFakeEngine()
	srv := pb.NewServer(fake.Authenticate, slog.New(slog.NewTextHandler(io.Discard, nil)))
	fake.Register(srv)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	port := ln.Addr().(*net.TCPAddr).Port
	dir := t.TempDir()
	config := filepath.Join(dir, "quark.yaml")
	body := fmt.Sprintf(`database:
  dsn: %s
router:
  host: 127.0.0.1
  port: %d
  timeout: 5s
smpp:
  host: 127.0.0.1
  port: %d
  timeout: 5s
log:
  level: error
`, filepath.Join(dir, "quark.db"), port, port)
	require.NoError(t, os.WriteFile(config, []byte(body), 0o600))

	return &testEnv{fake: fake, dir: dir, config: config}
}

type result struct {
	stdout string
	stderr string
	err    error
}

// run executes the CLI with the env's config. stdin feeds password
// prompts.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.ExecuteContext(context.Background())
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// mustRun runs a command that has to succeed.
func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	res := e.run(t, "", args...)
	require.NoError(t, res.err, "stderr: %s", res.stderr)
	return res.stdout
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}
