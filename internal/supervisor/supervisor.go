//go:build linux

package supervisor

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Status is the Supervisor's own lifecycle status, per spec.md §3. It is
// distinct from a Module's State.
type Status int

const (
	StatusStarting Status = iota
	StatusRunning
	StatusStopped
)

// Supervisor owns every fd and collection in the process: the listen
// socket, the module table, the session list, and the log sink. It is
// constructed once in main and torn down on a single guaranteed release
// path (Shutdown), per SPEC_FULL.md §9's "owned context" note.
type Supervisor struct {
	log *zap.Logger

	mu      sync.Mutex
	status  Status
	modules []*Module
	sessions []*session

	modulesDirty  atomic.Bool
	sessionsDirty atomic.Bool

	socketPath string
	listenFd   int

	sink   *logSink
	reaper *reaper
}

// Config names the two fixed modules and the filesystem paths the spec
// requires, per spec.md §6.
type Config struct {
	SocketPath string
	LogPath    string
	Bot        ModuleSpec
	WebServer  ModuleSpec
}

// ModuleSpec is the static definition of one of the two fixed modules.
type ModuleSpec struct {
	Name string
	Path string
	Argv []string
}

// New constructs a Supervisor in the Starting status with its fixed module
// set (always exactly two: bot and web server, per spec.md §1's "module set
// is fixed at build time"). It does not yet touch the filesystem.
func New(log *zap.Logger, cfg Config) *Supervisor {
	return &Supervisor{
		log: log.Named("supervisor"),
		modules: []*Module{
			NewModule(log, cfg.Bot.Name, cfg.Bot.Path, cfg.Bot.Argv),
			NewModule(log, cfg.WebServer.Name, cfg.WebServer.Path, cfg.WebServer.Argv),
		},
		socketPath: cfg.SocketPath,
		status:     StatusStarting,
	}
}

// Startup performs spec.md §4.5's startup sequence: socket-path collision
// check, log sink open, bind+listen, signal install, and starting any
// modules the caller requests (via startBot/startWeb). It does not
// daemonize the calling process — a Unix binary that wants to fork into the
// background does so before calling Startup (double-fork is orthogonal to
// the supervisor logic this package owns); see cmd/supervisor/main.go.
func (sup *Supervisor) Startup(startBot, startWeb bool, logPath string) error {
	if _, err := os.Stat(sup.socketPath); err == nil {
		return fmt.Errorf("startup: socket %s already exists; another instance may be running", sup.socketPath)
	}

	sink, err := openLogSink(logPath)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	sup.sink = sink

	listenFd, err := bindListen(sup.socketPath)
	if err != nil {
		_ = sup.sink.close()
		return fmt.Errorf("startup: %w", err)
	}
	sup.listenFd = listenFd

	r, err := newReaper(sup)
	if err != nil {
		_ = unix.Close(sup.listenFd)
		_ = sup.sink.close()
		return fmt.Errorf("startup: %w", err)
	}
	sup.reaper = r
	sup.reaper.start()

	sup.mu.Lock()
	if startBot {
		if err := sup.modules[0].Start(); err != nil {
			sup.log.Error("failed to start bot module at startup", zap.Error(err))
		}
	}
	if startWeb {
		if err := sup.modules[1].Start(); err != nil {
			sup.log.Error("failed to start web-server module at startup", zap.Error(err))
		}
	}
	sup.status = StatusRunning
	sup.mu.Unlock()

	return nil
}

// bindListen creates a close-on-exec, address-reusable AF_UNIX stream
// listener with a backlog of 1, per spec.md §4.2's transport description.
func bindListen(path string) (int, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	addr := &unix.SockaddrUnix{Name: path}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("bind %s: %w", path, err)
	}
	if err := unix.Listen(fd, 1); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("listen: %w", err)
	}
	return fd, nil
}

// Run enters the event loop, per spec.md §4.3. It returns once status
// transitions to Stopped (e.g. via the "stop" command) and the loop has
// observed it.
func (sup *Supervisor) Run() error {
	return sup.run()
}

// Status reports the current Supervisor status.
func (sup *Supervisor) Status() Status {
	sup.mu.Lock()
	defer sup.mu.Unlock()
	return sup.status
}

// restartSweep performs spec.md §4.1's "Restart sweep". Caller holds sup.mu.
func (sup *Supervisor) restartSweep() {
	for _, m := range sup.modules {
		if !m.restartRequested {
			continue
		}
		if sup.status == StatusStarting {
			sup.log.Info("restart sweep observed during startup; clearing flag", zap.String("module", m.Name))
			m.restartRequested = false
			continue
		}
		if sup.status == StatusStopped {
			return
		}

		for {
			m.Exit()
			m.failureCount++
			if m.failureCount >= MaxFailForStop {
				sup.log.Warn("module failed too many times, leaving off",
					zap.String("module", m.Name), zap.Int("failures", m.failureCount))
				m.restartRequested = false
				break
			}
			if err := m.Start(); err != nil {
				sup.log.Warn("restart attempt failed", zap.String("module", m.Name), zap.Error(err))
				continue
			}
			m.restartRequested = false
			break
		}
	}
	sup.modulesDirty.Store(false)
}

// Shutdown performs spec.md §4.5's shutdown sequence: mark the status
// Stopped, close all sessions, exit every module, close the listener,
// unlink the socket path.
func (sup *Supervisor) Shutdown() {
	sup.mu.Lock()
	sup.status = StatusStopped
	for _, s := range sup.sessions {
		s.close()
	}
	sup.sessions = nil

	for _, m := range sup.modules {
		m.Exit()
	}
	sup.mu.Unlock()

	if sup.reaper != nil {
		sup.reaper.close()
	}
	if sup.listenFd != 0 {
		_ = unix.Close(sup.listenFd)
	}
	_ = os.Remove(sup.socketPath)
	if sup.sink != nil {
		_ = sup.sink.close()
	}
}

// ModuleSnapshot is a read-only view of one module's state, used by the
// optional admin HTTP surface (internal/supervisor/adminhttp) so it never
// touches Module/Supervisor internals directly.
type ModuleSnapshot struct {
	Name           string `json:"name"`
	State          string `json:"state"`
	FailureCount   int    `json:"failure_count"`
	LastExitStatus int    `json:"last_exit_status"`
}

// ModuleTail returns up to n of the most recent output lines relayed from
// the named module, newest first. ok is false if no module has that name.
func (sup *Supervisor) ModuleTail(name string, n int) (lines []string, ok bool) {
	sup.mu.Lock()
	defer sup.mu.Unlock()
	m := sup.lookupModule(name)
	if m == nil {
		return nil, false
	}
	return m.Tail(n), true
}

// Snapshot returns a point-in-time view of every module's state.
func (sup *Supervisor) Snapshot() []ModuleSnapshot {
	sup.mu.Lock()
	defer sup.mu.Unlock()
	out := make([]ModuleSnapshot, 0, len(sup.modules))
	for _, m := range sup.modules {
		out = append(out, ModuleSnapshot{
			Name:           m.Name,
			State:          m.state.String(),
			FailureCount:   m.failureCount,
			LastExitStatus: m.lastExitStatus,
		})
	}
	return out
}
