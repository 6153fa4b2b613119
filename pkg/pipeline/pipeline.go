package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/heathsc/gembsctl/pkg/log"
	"github.com/heathsc/gembsctl/pkg/signal"
	"github.com/rs/zerolog"
)

const reapPollInterval = 100 * time.Millisecond

// OutputMode selects where the last stage's stdout goes.
type OutputMode int

const (
	OutputDiscard OutputMode = iota
	OutputFile
	OutputCapture
	OutputInherit
)

// Stage is one external command in the chain.
type Stage struct {
	Path string
	Args []string
}

// Spec describes a full pipeline invocation.
type Spec struct {
	Stages []Stage

	// Stdin, if HasStdin, is written to stage 0's stdin and then closed.
	HasStdin bool
	Stdin    string

	OutputMode OutputMode
	OutputPath string // used when OutputMode == OutputFile

	// StderrLogPath, if non-empty, is opened once and shared as stderr
	// across every stage. Empty means each stage inherits the
	// controller's stderr.
	StderrLogPath string

	// ExpectedOutputs lists paths that must be unlinked if the run
	// fails for any reason.
	ExpectedOutputs []string

	// DeleteOnSuccess lists paths to unlink after a successful run
	// (temp inputs consumed by a merge, for example).
	DeleteOnSuccess []string

	// DeleteLogOnSuccess removes StderrLogPath after a successful run.
	DeleteLogOnSuccess bool
}

// Result is what a successful Run returns.
type Result struct {
	// Captured holds the last stage's stdout when OutputMode is
	// OutputCapture.
	Captured []byte
}

// Failure reports which stage failed and how.
type Failure struct {
	// Stage is the 1-indexed position of the first failing stage.
	Stage int
	// ExitCode is the process exit code, or -1 if it died by signal.
	ExitCode int
	// Signal is the OS signal number that killed the stage, or 0.
	Signal int
	// Aborted is true if the failure was caused by the controller's
	// own cooperative-cancellation signal rather than the child.
	Aborted bool
}

func (f *Failure) Error() string {
	if f.Aborted {
		return fmt.Sprintf("pipeline: stage %d killed on cancellation", f.Stage)
	}
	if f.Signal != 0 {
		return fmt.Sprintf("pipeline: stage %d killed by signal %d", f.Stage, f.Signal)
	}
	return fmt.Sprintf("pipeline: stage %d exited with code %d", f.Stage, f.ExitCode)
}

// Run spawns every stage, pipes stdout into the next stage's stdin,
// waits for all children in reverse order while observing the
// cooperative-cancellation signal, and cleans up according to the
// spec's ExpectedOutputs / DeleteOnSuccess lists.
func Run(spec *Spec) (*Result, error) {
	if len(spec.Stages) == 0 {
		return nil, errors.New("pipeline: empty stage list")
	}
	lg := log.WithComponent("pipeline")

	var stderrFile *os.File
	if spec.StderrLogPath != "" {
		f, err := os.Create(spec.StderrLogPath)
		if err != nil {
			return nil, fmt.Errorf("pipeline: opening stderr log %s: %w", spec.StderrLogPath, err)
		}
		stderrFile = f
		defer stderrFile.Close()
	}

	cmds := make([]*exec.Cmd, len(spec.Stages))
	for i, st := range spec.Stages {
		cmds[i] = exec.Command(st.Path, st.Args...)
		if stderrFile != nil {
			cmds[i].Stderr = stderrFile
		} else {
			cmds[i].Stderr = os.Stderr
		}
	}

	var stdinPipe io.WriteCloser
	var err error
	if spec.HasStdin {
		stdinPipe, err = cmds[0].StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("pipeline: stage 0 stdin pipe: %w", err)
		}
	}

	for i := 0; i < len(cmds)-1; i++ {
		r, perr := cmds[i].StdoutPipe()
		if perr != nil {
			return nil, fmt.Errorf("pipeline: stage %d stdout pipe: %w", i+1, perr)
		}
		cmds[i+1].Stdin = r
	}

	var outBuf bytes.Buffer
	var capturePipe io.ReadCloser
	last := cmds[len(cmds)-1]
	switch spec.OutputMode {
	case OutputFile:
		f, cerr := os.Create(spec.OutputPath)
		if cerr != nil {
			return nil, fmt.Errorf("pipeline: creating output %s: %w", spec.OutputPath, cerr)
		}
		defer f.Close()
		last.Stdout = f
	case OutputCapture:
		capturePipe, err = last.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("pipeline: capturing last stage stdout: %w", err)
		}
	case OutputInherit:
		last.Stdout = os.Stdout
	}

	for i, c := range cmds {
		if err := c.Start(); err != nil {
			// Kill anything already started before bubbling up.
			for j := 0; j < i; j++ {
				_ = cmds[j].Process.Kill()
				_, _ = cmds[j].Process.Wait()
			}
			for _, p := range spec.ExpectedOutputs {
				if rerr := os.Remove(p); rerr != nil && !os.IsNotExist(rerr) {
					lg.Warn().Err(rerr).Str("path", p).Msg("failed to remove partial output")
				}
			}
			return nil, fmt.Errorf("pipeline: starting stage %d (%s): %w", i+1, c.Path, err)
		}
	}

	if spec.HasStdin {
		go func() {
			_, werr := io.WriteString(stdinPipe, spec.Stdin)
			if werr != nil && !errors.Is(werr, syscall.EPIPE) {
				lg.Debug().Err(werr).Msg("stage 0 stdin write error")
			}
			stdinPipe.Close()
		}()
	}

	if capturePipe != nil {
		if _, cerr := io.Copy(&outBuf, capturePipe); cerr != nil {
			lg.Debug().Err(cerr).Msg("error reading captured stdout")
		}
	}

	failIdx, exitCode, sigNum, aborted := reapAll(cmds, lg)

	if failIdx >= 0 {
		for _, p := range spec.ExpectedOutputs {
			if rerr := os.Remove(p); rerr != nil && !os.IsNotExist(rerr) {
				lg.Warn().Err(rerr).Str("path", p).Msg("failed to remove partial output")
			}
		}
		return nil, &Failure{Stage: failIdx + 1, ExitCode: exitCode, Signal: sigNum, Aborted: aborted}
	}

	for _, p := range spec.DeleteOnSuccess {
		if rerr := os.Remove(p); rerr != nil && !os.IsNotExist(rerr) {
			lg.Warn().Err(rerr).Str("path", p).Msg("failed to remove temp file after success")
		}
	}
	if spec.DeleteLogOnSuccess && spec.StderrLogPath != "" {
		if rerr := os.Remove(spec.StderrLogPath); rerr != nil && !os.IsNotExist(rerr) {
			lg.Warn().Err(rerr).Str("path", spec.StderrLogPath).Msg("failed to remove stderr log after success")
		}
	}

	return &Result{Captured: outBuf.Bytes()}, nil
}

// reapAll waits for every stage in reverse order, observing the
// cooperative-cancellation signal between polls. On the first signal
// observed it kills every not-yet-reaped stage (the kill cascade) and
// continues reaping to avoid leaving zombies. It returns the
// lowest-indexed failing stage, if any.
func reapAll(cmds []*exec.Cmd, lg zerolog.Logger) (failIdx, exitCode, sigNum int, aborted bool) {
	failIdx = -1
	n := len(cmds)
	done := make([]chan error, n)
	for i := range cmds {
		done[i] = make(chan error, 1)
		go func(i int) { done[i] <- cmds[i].Wait() }(i)
	}

	killedRest := false
	killCascade := func(upto int) {
		for j := 0; j <= upto; j++ {
			if cmds[j].Process != nil {
				_ = cmds[j].Process.Kill()
			}
		}
	}

	for i := n - 1; i >= 0; i-- {
		ticker := time.NewTicker(reapPollInterval)
		var werr error
	waitLoop:
		for {
			select {
			case werr = <-done[i]:
				break waitLoop
			case <-ticker.C:
				if signal.Get() != 0 && !killedRest {
					killedRest = true
					lg.Debug().Int("through_stage", i+1).Msg("signal observed, killing remaining pipeline stages")
					killCascade(i)
				}
			}
		}
		ticker.Stop()

		if werr != nil {
			code, sig, isSig := classifyExit(werr)
			if failIdx == -1 || i < failIdx {
				failIdx = i
				exitCode = code
				sigNum = sig
				aborted = killedRest && isSig
			}
		}
	}
	return
}

func classifyExit(err error) (code, sig int, isSignal bool) {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if ws.Signaled() {
				return -1, int(ws.Signal()), true
			}
			return ws.ExitStatus(), 0, false
		}
		return exitErr.ExitCode(), 0, false
	}
	return -1, 0, false
}
