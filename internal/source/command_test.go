package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/dreadpi/internal/fault"
	"github.com/sweeney/dreadpi/internal/validate"
)

type fakeRunner struct {
	calls  [][]string
	stdout string
	stderr string
	code   int
	err    error
}

func (f *fakeRunner) run(ctx context.Context, name string, args ...string) (string, string, int, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.stdout, f.stderr, f.code, f.err
}

func TestCommandRejectsUnsafeScript(t *testing.T) {
	log, _ := test.NewNullLogger()

	for _, script := range []string{"; rm -rf /", "", "read-watts && reboot", "echo `id`", "cat /etc/shadow > /tmp/x", "a\tb"} {
		r := &fakeRunner{stdout: "1"}
		src, err := newCommand(CommandConfig{CollectionScript: script}, r.run, log)
		assert.Nil(t, src, "script %q", script)
		assert.True(t, errors.Is(err, fault.ErrConfiguration), "script %q", script)
		assert.Empty(t, r.calls)
	}
}

func TestCommandFetch(t *testing.T) {
	log, hook := test.NewNullLogger()
	r := &fakeRunner{stdout: "  1234\n"}
	src, err := newCommand(CommandConfig{CollectionScript: "/usr/local/bin/read-inverter --port 502"}, r.run, log)
	require.NoError(t, err)

	reading, err := src.Fetch(context.Background(), token(t))
	require.NoError(t, err)
	assert.Equal(t, "1234", reading.Watts)
	assert.Nil(t, reading.Timestamp)
	assert.Equal(t, [][]string{{"/usr/local/bin/read-inverter", "--port", "502"}}, r.calls)
	assert.Empty(t, warnings(hook))
}

func TestCommandExitCodeAndStderrWarn(t *testing.T) {
	log, hook := test.NewNullLogger()
	r := &fakeRunner{stdout: "800", stderr: "inverter slow to respond\n", code: 3}
	src, err := newCommand(CommandConfig{CollectionScript: "./collect.sh"}, r.run, log)
	require.NoError(t, err)

	reading, err := src.Fetch(context.Background(), token(t))
	require.NoError(t, err)
	assert.Equal(t, "800", reading.Watts)
	assert.Equal(t, []string{
		"./collect.sh return code: 3",
		"./collect.sh returned: inverter slow to respond",
	}, warnings(hook))
}

func TestCommandRunFailure(t *testing.T) {
	log, _ := test.NewNullLogger()
	r := &fakeRunner{err: errors.New("exec: no such file or directory")}
	src, err := newCommand(CommandConfig{CollectionScript: "/nonexistent"}, r.run, log)
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), token(t))
	assert.True(t, errors.Is(err, fault.ErrSourceUnavailable))
}

func TestCommandTimeoutDefault(t *testing.T) {
	log, _ := test.NewNullLogger()
	src, err := NewCommand(CommandConfig{CollectionScript: "/bin/true"}, log)
	require.NoError(t, err)
	assert.Equal(t, DefaultCommandTimeout, src.timeout)
}

func TestExecRunner(t *testing.T) {
	if _, err := os.Stat("/bin/echo"); err != nil {
		t.Skip("/bin/echo not available")
	}
	log, hook := test.NewNullLogger()

	src, err := NewCommand(CommandConfig{CollectionScript: "/bin/echo 4321"}, log)
	require.NoError(t, err)
	reading, err := src.Fetch(context.Background(), token(t))
	require.NoError(t, err)
	assert.Equal(t, "4321", reading.Watts)
	assert.Empty(t, warnings(hook))
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	if _, err := os.Stat("/bin/false"); err != nil {
		t.Skip("/bin/false not available")
	}
	log, hook := test.NewNullLogger()

	src, err := NewCommand(CommandConfig{CollectionScript: "/bin/false"}, log)
	require.NoError(t, err)
	reading, err := src.Fetch(context.Background(), token(t))
	require.NoError(t, err)
	assert.Equal(t, "", reading.Watts)
	assert.Equal(t, []string{"/bin/false return code: 1"}, warnings(hook))
}

func TestExecRunnerMissingBinary(t *testing.T) {
	log, _ := test.NewNullLogger()

	src, err := NewCommand(CommandConfig{CollectionScript: "/nonexistent/dreadpi-collector"}, log)
	require.NoError(t, err)
	_, err = src.Fetch(context.Background(), token(t))
	assert.True(t, errors.Is(err, fault.ErrSourceUnavailable))
}

// writeScript writes an executable shell script and returns its path.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	path := filepath.Join(t.TempDir(), "collect.sh")
	if !validate.IsSafeCommand(path) {
		t.Skipf("temp dir %q is not usable as a collection_script", path)
	}
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestExecRunnerTimeoutKillsScript(t *testing.T) {
	script := writeScript(t, "sleep 20\necho 1234\n")
	log, _ := test.NewNullLogger()

	src, err := NewCommand(CommandConfig{CollectionScript: script, TimeoutSeconds: 1}, log)
	require.NoError(t, err)

	start := time.Now()
	_, err = src.Fetch(context.Background(), token(t))
	elapsed := time.Since(start)

	assert.True(t, errors.Is(err, fault.ErrSourceUnavailable), "got %v", err)
	assert.Less(t, elapsed, 10*time.Second, "fetch must not outlive its timeout")
}

func TestExecRunnerTimeoutKillsBlockedChild(t *testing.T) {
	script := writeScript(t, "sleep 20 &\nwait\n")
	log, _ := test.NewNullLogger()

	src, err := NewCommand(CommandConfig{CollectionScript: script, TimeoutSeconds: 1}, log)
	require.NoError(t, err)

	start := time.Now()
	_, err = src.Fetch(context.Background(), token(t))
	elapsed := time.Since(start)

	assert.True(t, errors.Is(err, fault.ErrSourceUnavailable), "got %v", err)
	assert.Less(t, elapsed, 10*time.Second, "fetch must not outlive its timeout")
}

func TestExecRunnerLeftoverChildDoesNotBlock(t *testing.T) {
	script := writeScript(t, "sleep 20 &\necho 1234\n")
	log, _ := test.NewNullLogger()

	src, err := NewCommand(CommandConfig{CollectionScript: script, TimeoutSeconds: 15}, log)
	require.NoError(t, err)

	start := time.Now()
	reading, err := src.Fetch(context.Background(), token(t))
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, "1234", reading.Watts)
	assert.Less(t, elapsed, 10*time.Second, "a background child must not hold up the reading")
}
