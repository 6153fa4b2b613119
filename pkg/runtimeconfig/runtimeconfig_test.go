package runtimeconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/heathsc/gembsctl/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.LockPollInterval())
	assert.Equal(t, 300*time.Second, cfg.LockTimeout())
	assert.Equal(t, "map", cfg.ToolPath(types.CmdMap))
}

func TestLoadOverridesPartialFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gembsctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 4\ntools:\n  map: /opt/gem/gem-mapper\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, DefaultLockTimeoutS, cfg.LockTimeoutS)
	assert.Equal(t, "/opt/gem/gem-mapper", cfg.ToolPath(types.CmdMap))
}
