package cmd

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shyim/kvprobe/internal/command"
	"github.com/shyim/kvprobe/internal/config"
	"github.com/shyim/kvprobe/internal/executor"
	"github.com/shyim/kvprobe/internal/fakestore"
	"github.com/shyim/kvprobe/internal/verify"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	configFile = ".kvprobe.yml"
	requestTimeout = 0
	noFollow = false
	escapeKeys = false
	assertVersioned = false
	debug = false

	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = f.Value.Set(f.DefValue)
			}

			f.Changed = false
		})
	}

	var out bytes.Buffer

	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())

	return out.String(), err
}

func startStore(t *testing.T) (*fakestore.Store, string) {
	t.Helper()

	store := fakestore.New()
	srv := httptest.NewServer(store.Handler())
	t.Cleanup(srv.Close)

	return store, srv.URL
}

func TestUsageErrorSendsNothing(t *testing.T) {
	store, address := startStore(t)

	cases := [][]string{
		{"get", address},
		{"redirect-get", address, "1"},
		{"put-plain", address, "k"},
		{"put-versioned", address, "k", "add", "x"},
		{"reconcile", address, "k"},
		{"concurrent-put", address, "k", `{"op":"add","item":"a","version":[]}`},
	}

	for _, args := range cases {
		_, err := runCLI(t, args...)

		var usageErr *command.UsageError
		require.ErrorAs(t, err, &usageErr, args[0])
		assert.Equal(t, args[0], usageErr.Command)

		var stderr bytes.Buffer
		assert.Equal(t, 2, exitCode(err, &stderr))
		assert.Contains(t, stderr.String(), "usage: kvprobe "+args[0]+" <address>")
	}

	assert.Equal(t, int64(0), store.Hits())
}

func TestInvalidVersionSendsNothing(t *testing.T) {
	store, address := startStore(t)

	_, err := runCLI(t, "put-versioned", address, "k", "add", "x", "not-json")

	assert.ErrorIs(t, err, command.ErrInvalidVersionJSON)
	assert.Equal(t, 1, exitCode(err, &bytes.Buffer{}))
	assert.Equal(t, int64(0), store.Hits())
}

func TestPutPlainThenGet(t *testing.T) {
	_, address := startStore(t)

	out, err := runCLI(t, "put-plain", address, "greeting", "hello")

	require.NoError(t, err)
	assert.Contains(t, out, "sent to "+address+"/put/greeting")
	assert.Contains(t, out, "request body:\n{\n    \"data\": \"hello\"\n}\n")

	out, err = runCLI(t, "get", address, "greeting")

	require.NoError(t, err)
	assert.Contains(t, out, "response body:\n{\n    \"data\": \"hello\"\n}\n")
	assert.Contains(t, out, "PASS get")
}

func TestGetMissingKeyFails(t *testing.T) {
	_, address := startStore(t)

	out, err := runCLI(t, "get", address, "missing")

	assert.ErrorIs(t, err, verify.ErrAssertionFailed)
	assert.Equal(t, 1, exitCode(err, &bytes.Buffer{}))
	assert.Contains(t, out, "FAIL get")
}

func TestStaleVersionedWriteIsObserved(t *testing.T) {
	_, address := startStore(t)

	_, err := runCLI(t, "put-versioned", address, "cart", "add", "apple", "[]")
	require.NoError(t, err)

	out, err := runCLI(t, "put-versioned", address, "cart", "add", "pear", "[]")

	require.NoError(t, err)
	assert.Contains(t, out, "status code: 302")
	assert.Contains(t, out, "\"node\": \"node-0\"")
	assert.Contains(t, out, "NOTICE put-versioned")

	_, err = runCLI(t, "--assert-versioned", "put-versioned", address, "cart", "add", "pear", "[]")

	assert.ErrorIs(t, err, verify.ErrAssertionFailed)
}

func TestReconcile(t *testing.T) {
	_, address := startStore(t)

	_, err := runCLI(t, "reconcile", address, "cart", `[{"items":["a"],"clocks":[{"node":"n1","timestamp":2}]},{"items":["b"],"clocks":[{"node":"n2","timestamp":1}]}]`)
	require.NoError(t, err)

	out, err := runCLI(t, "get", address, "cart")

	require.NoError(t, err)
	assert.Contains(t, out, "\"a\",\n")
	assert.Contains(t, out, "\"b\"\n")
}

func TestConcurrentPut(t *testing.T) {
	store, address := startStore(t)

	out, err := runCLI(t, "concurrent-put", address, "race",
		`{"op":"add","item":"a","version":[]}`,
		`{"op":"add","item":"b","version":[]}`,
	)

	require.NoError(t, err)
	assert.Equal(t, int64(2), store.Hits())
	assert.Contains(t, out, "NOTICE put-versioned")

	_, err = runCLI(t, "--assert-versioned", "concurrent-put", address, "race2",
		`{"op":"add","item":"a","version":[]}`,
		`{"op":"add","item":"b","version":[]}`,
	)

	assert.ErrorIs(t, err, verify.ErrAssertionFailed)
	assert.Contains(t, err.Error(), "1 of 2 requests failed")
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(fakestore.New().Handler())
	address := srv.URL
	srv.Close()

	out, err := runCLI(t, "get", address, "k")

	var transportErr *executor.TransportError
	assert.True(t, errors.As(err, &transportErr))
	assert.Equal(t, 1, exitCode(err, &bytes.Buffer{}))
	assert.Contains(t, out, "ERROR get")
}

func TestSuiteRecordAndHistory(t *testing.T) {
	_, address := startStore(t)
	tmpDir := t.TempDir()

	suiteFile := filepath.Join(tmpDir, "suite.yml")
	dbFile := filepath.Join(tmpDir, "history.db")

	content := "name: smoke\naddress: " + address + "\nconcurrency: 1\ncases:\n" +
		"  - name: write hello\n    command: put-plain\n    args: [k1, hello]\n" +
		"  - name: read hello\n    command: get\n    args: [k1]\n    expect: 'status == 200 && data == \"hello\"'\n"

	require.NoError(t, os.WriteFile(suiteFile, []byte(content), 0644))

	out, err := runCLI(t, "suite", "--config", suiteFile, "--record="+dbFile)

	require.NoError(t, err)
	assert.Contains(t, out, "read hello")
	assert.Contains(t, out, "smoke: 2 cases, 0 failed")

	out, err = runCLI(t, "history", "--db", dbFile, "read-hello")

	require.NoError(t, err)
	assert.Contains(t, out, "read-hello")
	assert.Contains(t, out, "PASS")
	assert.NotContains(t, out, "write-hello")
}

func TestSuiteFailure(t *testing.T) {
	_, address := startStore(t)

	suiteFile := filepath.Join(t.TempDir(), "suite.yml")
	content := "address: " + address + "\ncases:\n  - name: missing\n    command: get\n    args: [nope]\n"

	require.NoError(t, os.WriteFile(suiteFile, []byte(content), 0644))

	out, err := runCLI(t, "suite", "--config", suiteFile)

	assert.ErrorIs(t, err, verify.ErrAssertionFailed)
	assert.Contains(t, out, "FAIL")
}

func TestSuiteWatchWithoutSchedule(t *testing.T) {
	suiteFile := filepath.Join(t.TempDir(), "suite.yml")
	content := "address: localhost:1\ncases:\n  - name: a\n    command: get\n    args: [k]\n"

	require.NoError(t, os.WriteFile(suiteFile, []byte(content), 0644))

	_, err := runCLI(t, "suite", "--config", suiteFile, "--watch")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "has no schedule")
}

func TestInitWritesSuite(t *testing.T) {
	suiteFile := filepath.Join(t.TempDir(), "suite.yml")

	_, err := runCLI(t, "init", "--config", suiteFile, "--name", "My Store", "--address", "localhost:9000", "--preset", "conflict")
	require.NoError(t, err)

	cfg, err := config.CreateConfig(suiteFile)

	require.NoError(t, err)
	assert.Equal(t, "my-store", cfg.Name)
	assert.Equal(t, "localhost:9000", cfg.Address)
	assert.Len(t, cfg.Cases, 3)

	_, err = runCLI(t, "init", "--config", suiteFile, "--address", "localhost:9000")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already initialized")
}

func TestExitCodeWithoutError(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil, &bytes.Buffer{}))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.50s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m 5.00s", formatDuration(125*time.Second))
	assert.Equal(t, "invalid duration", formatDuration(-time.Second))
}
