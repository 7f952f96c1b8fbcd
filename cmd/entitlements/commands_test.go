package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackira01/scort-web-site-sub002/pkg/config"
)

func TestVersionCmd(t *testing.T) {
	oldVersion, oldCommit := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = oldVersion, oldCommit })
	Version = "1.2.3"
	GitCommit = "abcdef"

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "entitlements 1.2.3")
	assert.Contains(t, out.String(), "Commit: abcdef")
}

func TestRootCommands(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "sweep", "reconcile", "seed", "version"})

	sweep, _, err := root.Find([]string{"sweep"})
	require.NoError(t, err)
	assert.NotNil(t, sweep.Flags().Lookup("stats"))

	seed, _, err := root.Find([]string{"seed"})
	require.NoError(t, err)
	assert.NotNil(t, seed.Flags().Lookup("file"))
	assert.NotNil(t, seed.Flags().Lookup("default-plan"))

	assert.NotNil(t, root.PersistentFlags().Lookup("env-file"))
}

func TestLoadSeed(t *testing.T) {
	t.Parallel()

	t.Run("built-in", func(t *testing.T) {
		t.Parallel()
		seed, err := loadSeed("")
		require.NoError(t, err)
		assert.NotEmpty(t, seed.Plans)
		assert.NotEmpty(t, seed.Upgrades)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := loadSeed(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(file, []byte("LOCK_BACKEND=memory\nSWEEP_INTERVAL=1m\n"), 0o600))
	t.Setenv("LOCK_BACKEND", "")
	require.NoError(t, os.Unsetenv("LOCK_BACKEND"))
	t.Setenv("SWEEP_INTERVAL", "")
	require.NoError(t, os.Unsetenv("SWEEP_INTERVAL"))

	require.NoError(t, config.LoadEnv(file))
	cfg, err := config.Load[Config]()
	require.NoError(t, err)

	assert.Equal(t, lockMemory, cfg.LockBackend)
	assert.Equal(t, time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, 2, cfg.TopTierLevel)
	assert.Equal(t, 24*time.Hour, cfg.Invoice.TTL)
}

func TestUnknownLockBackend(t *testing.T) {
	t.Parallel()

	a := &app{
		cfg: Config{LockBackend: "etcd"},
		log: slog.New(slog.DiscardHandler),
	}
	_, err := a.locker(context.Background())
	assert.ErrorContains(t, err, "etcd")
}

func TestMemoryLockBackend(t *testing.T) {
	t.Parallel()

	a := &app{
		cfg: Config{LockBackend: lockMemory},
		log: slog.New(slog.DiscardHandler),
	}
	l, err := a.locker(context.Background())
	require.NoError(t, err)

	unlock, ok, err := l.TryLock(context.Background(), "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	unlock()
	assert.Empty(t, a.closers)
}

func TestRequestIDExtractor(t *testing.T) {
	t.Parallel()

	_, ok := requestIDExtractor(context.Background())
	assert.False(t, ok)

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	attr, ok := requestIDExtractor(ctx)
	require.True(t, ok)
	assert.Equal(t, "request_id", attr.Key)
	assert.Equal(t, "req-1", attr.Value.String())
}
