package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/heathsc/gembsctl/pkg/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSingleStageCapture(t *testing.T) {
	res, err := Run(&Spec{
		Stages:     []Stage{{Path: "/bin/echo", Args: []string{"hello"}}},
		OutputMode: OutputCapture,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(res.Captured))
}

func TestRunTwoStagePipe(t *testing.T) {
	res, err := Run(&Spec{
		Stages: []Stage{
			{Path: "/bin/echo", Args: []string{"hello world"}},
			{Path: "/usr/bin/tr", Args: []string{"a-z", "A-Z"}},
		},
		OutputMode: OutputCapture,
	})
	require.NoError(t, err)
	assert.Equal(t, "HELLO WORLD\n", string(res.Captured))
}

func TestRunFailureUnlinksExpectedOutputs(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(out, []byte("partial"), 0o644))

	_, err := Run(&Spec{
		Stages:          []Stage{{Path: "/bin/false"}},
		ExpectedOutputs: []string{out},
	})
	require.Error(t, err)
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 1, failure.Stage)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunSuccessDeletesTempFiles(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "tmp.txt")
	require.NoError(t, os.WriteFile(tmp, []byte("x"), 0o644))

	_, err := Run(&Spec{
		Stages:          []Stage{{Path: "/bin/true"}},
		DeleteOnSuccess: []string{tmp},
	})
	require.NoError(t, err)

	_, statErr := os.Stat(tmp)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunSignalKillsPipeline(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(out, []byte("partial"), 0o644))

	signal.Reset()
	defer signal.Reset()
	go func() {
		time.Sleep(100 * time.Millisecond)
		signal.Set(signal.SIGINT)
	}()

	start := time.Now()
	_, err := Run(&Spec{
		Stages:          []Stage{{Path: "/bin/sleep", Args: []string{"30"}}},
		ExpectedOutputs: []string{out},
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.True(t, failure.Aborted)
	assert.Less(t, elapsed, 1250*time.Millisecond, "the kill cascade must fire within the signal-observation bound")

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunStdinFeed(t *testing.T) {
	res, err := Run(&Spec{
		Stages:     []Stage{{Path: "/bin/cat"}},
		HasStdin:   true,
		Stdin:      "piped input\n",
		OutputMode: OutputCapture,
	})
	require.NoError(t, err)
	assert.Equal(t, "piped input\n", string(res.Captured))
}
