//go:build linux

package supervisor

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// State is a Module's lifecycle state. The zero value is Off.
type State int

const (
	Off State = iota
	Running
	Dead
	Exited
)

func (s State) String() string {
	switch s {
	case Off:
		return "OFF"
	case Running:
		return "RUNNING"
	case Dead:
		return "DEAD"
	case Exited:
		return "EXITED"
	default:
		return "UNKNOWN"
	}
}

// MaxFailForStop caps the restart attempts the Restart sweep makes for one
// module over the whole run: every attempt increments the module's failure
// count, which is never reset, and once the count reaches this value the
// module is left OFF for the remainder of the run.
const MaxFailForStop = 5

// Module is a single supervised child process: a stable name, an executable
// path and argument vector, and the lifecycle state the event loop reads and
// the reaper mutates.
//
// Fields below "guarded by Supervisor.mu" are read by the mainline only
// under that mutex, and are the only fields the reaper goroutine is allowed
// to touch — see (*reaper).reapAll in reaper.go.
type Module struct {
	Name string
	Path string
	Argv []string

	log *zap.Logger
	out outputRingBuffer

	// guarded by Supervisor.mu
	state            State
	cmd              *exec.Cmd
	pipeReadEnd      *os.File
	restartRequested bool
	lastExitStatus   int
	failureCount     int
}

// NewModule constructs a Module in the Off state.
func NewModule(log *zap.Logger, name, path string, argv []string) *Module {
	return &Module{
		Name: name,
		Path: path,
		Argv: argv,
		log:  log.Named("module").With(zap.String("module", name)),
		state: Off,
	}
}

func (m *Module) State() State { return m.state }

// Pipe returns the module's current pipe read end, or nil if it has none
// (before the first Start, or after Exit has closed it; a reaped DEAD
// module keeps its pipe until Exit).
func (m *Module) Pipe() *os.File { return m.pipeReadEnd }

// Tail returns up to n of the module's most recently relayed output lines,
// newest first, for the admin HTTP surface's log endpoint.
func (m *Module) Tail(n int) []string { return m.out.tail(n) }

// recordOutput appends each complete line in chunk to the module's output
// ring buffer, mirroring what the log sink writes for this module.
func (m *Module) recordOutput(chunk []byte) {
	for _, line := range bytes.Split(chunk, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		m.out.append(string(line))
	}
}

// Start performs module Start (init) per spec.md §4.1. Preconditions: the
// module must be Off, Dead, or Exited. Caller must hold Supervisor.mu (this
// is the Go realization of "block the two relevant signals for the caller"
// — the mainline holds the same mutex the reaper takes before mutating
// module state, so neither can interleave module-state writes).
func (m *Module) Start() error {
	if m.state == Running {
		return fmt.Errorf("module %s: already running", m.Name)
	}

	readEnd, writeEnd, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("module %s: pipe: %w", m.Name, err)
	}

	cmd := exec.Command(m.Path, m.Argv...)
	cmd.Dir = ""
	cmd.Stdout = writeEnd
	cmd.Stderr = writeEnd
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}

	if err := cmd.Start(); err != nil {
		_ = readEnd.Close()
		_ = writeEnd.Close()
		return fmt.Errorf("module %s: exec %s: %w", m.Name, m.Path, err)
	}

	// Parent closes its copy of the write end; the child keeps the one it
	// inherited at fork time as its stdout/stderr.
	if err := writeEnd.Close(); err != nil {
		m.log.Warn("failed to close write end after start", zap.Error(err))
	}

	if err := unix.SetNonblock(int(readEnd.Fd()), true); err != nil {
		_ = readEnd.Close()
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
		return fmt.Errorf("module %s: set nonblocking: %w", m.Name, err)
	}

	m.cmd = cmd
	m.pipeReadEnd = readEnd
	m.state = Running
	m.restartRequested = false
	m.log.Info("module started", zap.Int("pid", cmd.Process.Pid))
	return nil
}

// Exit performs module Exit per spec.md §4.1. Idempotent for modules already
// Off/Exited. Caller must hold Supervisor.mu.
func (m *Module) Exit() {
	if m.state == Off || m.state == Exited {
		return
	}

	if m.state == Running && m.cmd != nil && m.cmd.Process != nil {
		pid := m.cmd.Process.Pid
		if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
			m.log.Warn("SIGTERM failed, escalating to SIGKILL", zap.Error(err))
			if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
				m.log.Error("SIGKILL failed", zap.Error(err))
			}
		}
		_, err := m.cmd.Process.Wait()
		if err != nil && !errors.Is(err, syscall.ECHILD) {
			m.log.Warn("wait after exit failed", zap.Error(err))
		}
	}

	m.state = Dead
	m.cmd = nil

	if m.pipeReadEnd != nil {
		if err := m.pipeReadEnd.Close(); err != nil {
			m.log.Warn("failed to close module pipe", zap.Error(err))
		}
		m.pipeReadEnd = nil
	}

	m.state = Exited
	m.log.Info("module exited")
}
