// Package ptysession owns pseudo-terminals and the child processes attached
// to them (spec.md §4.2). It is built on github.com/creack/pty, the same
// library used by danielgatis-go-headless-term's websocket PTY bridge
// example (wasm/example/server.go) to allocate a master/slave pair and
// start a child with the slave as its controlling terminal.
package ptysession

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/creack/pty"
)

// DefaultGracePeriod is how long Close waits after SIGTERM before SIGKILL.
const DefaultGracePeriod = 5 * time.Second

// ErrReadTimedOut is returned by Read when the deadline elapses before any
// data arrives.
var ErrReadTimedOut = errors.New("ptysession: read timed out")

// ErrWaitTimedOut is returned by Wait when a non-zero timeout elapses
// before the child exits.
var ErrWaitTimedOut = errors.New("ptysession: wait timed out")

// SpawnFailedError wraps the OS error from a failed pty.StartWithSize call.
type SpawnFailedError struct {
	Reason string
}

func (e *SpawnFailedError) Error() string {
	return fmt.Sprintf("ptysession: spawn failed: %s", e.Reason)
}

// Session owns exactly one pseudo-terminal and its child process for the
// lifetime of one phase invocation (spec.md §4.2). It is safe for
// concurrent use: Read/Write/Resize/SendSignal/Wait/Close may be called
// from different goroutines, though in practice exactly one goroutine
// reads, one writes, and the session itself runs the wait loop.
type Session struct {
	cmd  *exec.Cmd
	ptmx *os.File

	mu         sync.Mutex
	cols, rows int

	pid int

	running   atomic.Bool
	done      chan struct{}
	exitCode  int
	waitErr   error

	closeOnce    sync.Once
	gracePeriod  time.Duration
}

// Open allocates a pty, spawns command[0] with command[1:] as arguments and
// the pty slave as its controlling terminal, and returns a handle. env, if
// non-nil, replaces the inherited environment entirely; cwd, if empty,
// leaves the child's working directory as the orchestrator's.
func Open(command []string, env []string, cwd string, cols, rows int) (*Session, error) {
	if len(command) == 0 {
		return nil, &SpawnFailedError{Reason: "empty command"}
	}

	cmd := exec.Command(command[0], command[1:]...)
	if env != nil {
		cmd.Env = env
	}
	if cwd != "" {
		cmd.Dir = cwd
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return nil, &SpawnFailedError{Reason: err.Error()}
	}

	s := &Session{
		cmd:         cmd,
		ptmx:        ptmx,
		cols:        cols,
		rows:        rows,
		pid:         cmd.Process.Pid,
		done:        make(chan struct{}),
		gracePeriod: DefaultGracePeriod,
	}
	s.running.Store(true)
	go s.waitTask()
	return s, nil
}

// waitTask is the session's single wait task: it reaps the child exactly
// once and records the outcome.
func (s *Session) waitTask() {
	err := s.cmd.Wait()
	s.mu.Lock()
	if err == nil {
		s.exitCode = 0
	} else {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			s.exitCode = exitErr.ExitCode()
		} else {
			s.exitCode = -1
			s.waitErr = err
		}
	}
	s.mu.Unlock()
	s.running.Store(false)
	close(s.done)
}

// Read performs a non-blocking read with a deadline. It returns
// ErrReadTimedOut if the deadline elapses first and io.EOF once the child
// has closed its end of the pty. A zero timeout blocks indefinitely.
func (s *Session) Read(timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		_ = s.ptmx.SetReadDeadline(time.Now().Add(timeout))
	} else {
		_ = s.ptmx.SetReadDeadline(time.Time{})
	}

	buf := make([]byte, 8192)
	n, err := s.ptmx.Read(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, ErrReadTimedOut
		}
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return buf[:n], nil
}

// Write writes to the master, retrying internally on partial writes.
func (s *Session) Write(data []byte) error {
	for len(data) > 0 {
		n, err := s.ptmx.Write(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// Resize sets the pty window size and signals the child with SIGWINCH.
func (s *Session) Resize(cols, rows int) error {
	if err := pty.Setsize(s.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		return err
	}
	s.mu.Lock()
	s.cols, s.rows = cols, rows
	s.mu.Unlock()
	return s.SendSignal(syscall.SIGWINCH)
}

// SendSignal delivers sig to the child's process group. Signalling a
// process that has already exited is not an error (spec.md §4.2).
func (s *Session) SendSignal(sig syscall.Signal) error {
	err := syscall.Kill(-s.pid, sig)
	if err != nil && errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

// Wait blocks until the child exits (or, with a positive timeout, until
// the timeout elapses) and returns the exit code.
func (s *Session) Wait(timeout time.Duration) (int, error) {
	if timeout <= 0 {
		<-s.done
	} else {
		select {
		case <-s.done:
		case <-time.After(timeout):
			return 0, ErrWaitTimedOut
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode, s.waitErr
}

// Close is idempotent. It terminates the child (SIGTERM, then SIGKILL
// after the grace period), closes the pty file descriptor, and reaps the
// child. It is safe to call on every exit path, including ones where the
// child already exited on its own.
func (s *Session) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		if s.running.Load() {
			_ = s.SendSignal(syscall.SIGTERM)
			select {
			case <-s.done:
			case <-time.After(s.gracePeriod):
				_ = s.SendSignal(syscall.SIGKILL)
				<-s.done
			}
		}
		closeErr = s.ptmx.Close()
	})
	return closeErr
}

// Pid returns the child's process ID.
func (s *Session) Pid() int { return s.pid }

// Cols returns the current pty column count.
func (s *Session) Cols() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols
}

// Rows returns the current pty row count.
func (s *Session) Rows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

// IsRunning reports whether the child has not yet exited.
func (s *Session) IsRunning() bool { return s.running.Load() }

// ExitCode returns the last observed exit code (valid once IsRunning is
// false, or immediately after Wait returns).
func (s *Session) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}
