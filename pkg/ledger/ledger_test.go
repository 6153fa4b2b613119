package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/heathsc/gembsctl/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAbsentFile(t *testing.T) {
	entries, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveEmptyRemovesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")

	require.NoError(t, Save(path, []types.RunningEntry{{ID: "t1", Owner: "u@h.1", StartTime: 1}}))
	require.FileExists(t, path)

	require.NoError(t, Save(path, nil))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")

	entries := []types.RunningEntry{
		{ID: "map_s1", Owner: "alice@host.100", StartTime: 1000},
		{ID: "call_s1", Owner: "alice@host.100", StartTime: 1001},
	}
	require.NoError(t, Save(path, entries))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, entries, loaded)

	ids := RunningIDs(loaded)
	assert.Contains(t, ids, "map_s1")
	assert.Contains(t, ids, "call_s1")
}

func TestDispatchAndClose(t *testing.T) {
	dir := t.TempDir()
	lockTarget := filepath.Join(dir, "project.state")
	ledgerPath := filepath.Join(dir, "gemBS_tasks.json")

	job, err := Dispatch(lockTarget, ledgerPath, "map_s1", "alice@host.100", time.Now())
	require.NoError(t, err)

	entries, err := Load(ledgerPath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "map_s1", entries[0].ID)

	job.Close()

	_, err = os.Stat(ledgerPath)
	assert.True(t, os.IsNotExist(err))
}

func TestDispatchRejectsDuplicate(t *testing.T) {
	dir := t.TempDir()
	lockTarget := filepath.Join(dir, "project.state")
	ledgerPath := filepath.Join(dir, "gemBS_tasks.json")

	job, err := Dispatch(lockTarget, ledgerPath, "map_s1", "alice@host.100", time.Now())
	require.NoError(t, err)
	defer job.Close()

	_, err = Dispatch(lockTarget, ledgerPath, "map_s1", "bob@host.200", time.Now())
	require.Error(t, err)
	var taken *ErrTaskTaken
	require.ErrorAs(t, err, &taken)
	assert.Equal(t, "map_s1", taken.ID)
}
