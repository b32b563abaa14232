package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/board/internal/daemon"
)

func TestPidFile_Path(t *testing.T) {
	dir := testEnv(t)

	pf := pidFile()
	assert.Equal(t, filepath.Join(dir, "board-serve.pid"), pf.Path)
}

func TestServeStatusRun_NotRunning(t *testing.T) {
	testEnv(t)

	// No PID file exists, so status should show "not running" without error.
	assert.NoError(t, serveStatusRun())
}

func TestServeStopRun_NotRunning(t *testing.T) {
	testEnv(t)

	err := serveStopRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}

func TestServeRun_AlreadyRunning(t *testing.T) {
	dir := testEnv(t)

	// Hold the lock as if another server were running.
	pf := daemon.NewPIDFile(filepath.Join(dir, "board-serve.pid"))
	require.NoError(t, pf.Acquire())
	t.Cleanup(func() { _ = pf.Release() })

	err := serveRun()
	require.Error(t, err)
	assert.ErrorIs(t, err, daemon.ErrAlreadyRunning)

	require.NoError(t, serveStatusRun())
}

func TestPurgeSessions_RunsUntilCancelled(t *testing.T) {
	testEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		purgeSessions(ctx, newLogger(&discard{}), func(context.Context) (int64, error) {
			if calls.Add(1) == 1 {
				return 0, errors.New("database locked")
			}
			return 1, nil
		})
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("purgeSessions did not stop after cancel")
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
