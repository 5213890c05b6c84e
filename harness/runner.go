package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Process is a started child whose stdout and stderr both go to LogPath.
// The log file is owned by the process and closed once the process has
// been reaped, whether it exited on its own or was killed.
type Process struct {
	Command Command
	LogPath string

	cmd     *exec.Cmd
	log     *os.File
	started time.Time
	done    chan struct{}

	err      error
	closeErr error
	elapsed  time.Duration
}

// Start creates (truncating) the log file and starts the command. The
// process is killed if ctx is cancelled before it exits.
func Start(ctx context.Context, c Command, logPath string) (*Process, error) {
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("create log %s: %w", logPath, err)
	}

	cmd := exec.CommandContext(ctx, c.Binary, c.Args...)

	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()

		return nil, fmt.Errorf("start %s: %w", c.Binary, err)
	}

	p := &Process{
		Command: c,
		LogPath: logPath,
		cmd:     cmd,
		log:     logFile,
		started: time.Now(),
		done:    make(chan struct{}),
	}

	go p.reap()

	return p, nil
}

func (p *Process) reap() {
	p.err = p.cmd.Wait()
	p.elapsed = time.Since(p.started)
	p.closeErr = p.log.Close()
	close(p.done)
}

// Pid returns the operating system process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Done is closed once the process has exited and its log file is closed.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exited reports whether the process has already exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Await waits up to timeout for the process to exit. A non-positive
// timeout waits indefinitely.
func (p *Process) Await(timeout time.Duration) Outcome {
	if timeout <= 0 {
		<-p.done

		return p.exited()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return p.exited()
	case <-timer.C:
		return Outcome{
			State:   StateTimedOut,
			Timeout: timeout,
			Elapsed: time.Since(p.started),
		}
	}
}

// Wait blocks until the process exits or ctx is done.
func (p *Process) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.exited().Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Kill terminates the process if it is still running and blocks until it
// has been reaped and its log file closed. Killing an exited process is a
// no-op.
func (p *Process) Kill() error {
	if p.Exited() {
		return nil
	}

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill pid %d: %w", p.Pid(), err)
	}

	<-p.done

	return nil
}

func (p *Process) exited() Outcome {
	err := p.err
	if err == nil && p.closeErr != nil {
		err = fmt.Errorf("close log %s: %w", p.LogPath, p.closeErr)
	}

	return Outcome{State: StateExited, Err: err, Elapsed: p.elapsed}
}
