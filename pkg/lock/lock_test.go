package lock

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/heathsc/gembsctl/pkg/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockPath(t *testing.T) {
	assert.Equal(t, "/a/b/.state#gemBS_lock", LockPath("/a/b/state"))
	assert.Equal(t, "/a/b/.state#gemBS_lock", LockPath("/a/b/.state"))
}

func TestAcquireRelease(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "project.state")

	l, err := Acquire(target)
	require.NoError(t, err)
	require.FileExists(t, LockPath(target))

	_, err = Acquire(target)
	var locked *ErrLocked
	require.True(t, errors.As(err, &locked))
	assert.Equal(t, Identity(), locked.Holder)

	l.Close()
	_, err = os.Lstat(LockPath(target))
	assert.True(t, os.IsNotExist(err))
}

func TestWaitForSucceedsOnceReleased(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "project.state")

	held, err := Acquire(target)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		held.Close()
	}()

	l, err := WaitFor(target)
	require.NoError(t, err)
	l.Close()
}

func TestAcquireMutualExclusion(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "project.state")

	const n = 16
	var wg sync.WaitGroup
	won := make(chan *Lock, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l, err := Acquire(target); err == nil {
				won <- l
			}
		}()
	}
	wg.Wait()
	close(won)

	var winners []*Lock
	for l := range won {
		winners = append(winners, l)
	}
	require.Len(t, winners, 1, "exactly one of %d concurrent acquires may win", n)
	winners[0].Close()

	l, err := Acquire(target)
	require.NoError(t, err, "the lock is free again after release")
	l.Close()
}

func TestWaitForSignal(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "project.state")

	held, err := Acquire(target)
	require.NoError(t, err)
	defer held.Close()

	signal.Set(signal.SIGINT)
	defer signal.Reset()

	_, err = WaitFor(target)
	assert.ErrorIs(t, err, ErrSignal)
}
