package ffmpeg

import (
	"io"
	"os"
	"os/exec"
	"sync"
)

// Runner manages one ffmpeg process and its stdout pipe.
type Runner struct {
	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewRunner returns an idle runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Start stops any running process and launches path with args. The returned
// reader is the new process stdout; read it to EOF before calling Stop.
func (r *Runner) Start(path string, args []string) (io.Reader, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()

	cmd := exec.Command(path, args...)
	configureCmd(cmd)
	cmd.Stderr = os.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	r.cmd = cmd
	return stdout, nil
}

// Running reports whether a process is attached.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cmd != nil
}

// Stop kills the running process, if any, and reaps it.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

// stopLocked stops the current process while holding the lock.
func (r *Runner) stopLocked() {
	if r.cmd == nil {
		return
	}
	if r.cmd.Process != nil {
		_ = r.cmd.Process.Kill()
	}
	_ = r.cmd.Wait()
	r.cmd = nil
}
