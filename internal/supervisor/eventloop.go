//go:build linux

package supervisor

import (
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// modPipeReadBufSize is the size of the fixed, reused buffer module-output
// draining reads into, per spec.md §4.4 ("a fixed 2048-byte buffer is reused").
const modPipeReadBufSize = 2048

// run is the Supervisor's single-threaded event loop, per spec.md §4.3.
// Exactly one goroutine ever calls this; it owns the listener, every
// module pipe, and every session for as long as the Supervisor is RUNNING.
func (sup *Supervisor) run() error {
	relayBuf := make([]byte, modPipeReadBufSize)

	for sup.Status() == StatusRunning {
		if sup.modulesDirty.Load() || sup.sessionsDirty.Load() {
			sup.mu.Lock()
			sup.restartSweep()
			sup.sessionsDirty.Store(false)
			sup.mu.Unlock()
		}

		pollFds := sup.buildPollSet()

		n, err := unix.Poll(pollFds, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}
		if n == 0 {
			continue
		}

		sup.mu.Lock()
		sup.servicePollResults(pollFds, relayBuf)
		sup.mu.Unlock()
	}
	return nil
}

// buildPollSet constructs the poll array: listener, self-pipe, every live
// module pipe, every live session — matching the dispatch order mandated by
// spec.md §4.3 step 4 (listener → module pipe → session).
func (sup *Supervisor) buildPollSet() []unix.PollFd {
	sup.mu.Lock()
	defer sup.mu.Unlock()

	fds := make([]unix.PollFd, 0, 2+len(sup.modules)+len(sup.sessions))
	fds = append(fds, unix.PollFd{Fd: int32(sup.listenFd), Events: unix.POLLIN})
	fds = append(fds, unix.PollFd{Fd: int32(sup.reaper.readFd()), Events: unix.POLLIN})
	for _, m := range sup.modules {
		if m.state == Running && m.pipeReadEnd != nil {
			fds = append(fds, unix.PollFd{Fd: int32(m.pipeReadEnd.Fd()), Events: unix.POLLIN})
		}
	}
	for _, s := range sup.sessions {
		fds = append(fds, unix.PollFd{Fd: int32(s.fd), Events: unix.POLLIN})
	}
	return fds
}

// servicePollResults dispatches every readable fd from a single poll wakeup.
// Caller holds sup.mu.
func (sup *Supervisor) servicePollResults(fds []unix.PollFd, relayBuf []byte) {
	for _, pfd := range fds {
		if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
			continue
		}
		switch {
		case int(pfd.Fd) == sup.listenFd:
			sup.acceptSession()
		case int(pfd.Fd) == sup.reaper.readFd():
			sup.reaper.drain()
		default:
			if m := sup.moduleByPipeFd(int(pfd.Fd)); m != nil {
				sup.drainModulePipe(m, relayBuf)
				continue
			}
			if s := sup.sessionByFd(int(pfd.Fd)); s != nil {
				sup.serviceSession(s)
			}
		}
	}
}

func (sup *Supervisor) moduleByPipeFd(fd int) *Module {
	for _, m := range sup.modules {
		if m.state == Running && m.pipeReadEnd != nil && int(m.pipeReadEnd.Fd()) == fd {
			return m
		}
	}
	return nil
}

func (sup *Supervisor) sessionByFd(fd int) *session {
	for _, s := range sup.sessions {
		if s.fd == fd {
			return s
		}
	}
	return nil
}

// acceptSession accepts one new connection per spec.md §4.3 step 4. Caller
// holds sup.mu.
func (sup *Supervisor) acceptSession() {
	fd, _, err := unix.Accept(sup.listenFd)
	if err != nil {
		sup.log.Warn("accept failed", zap.Error(err))
		return
	}
	_ = unix.SetNonblock(fd, true)
	sup.sessions = append(sup.sessions, newSession(fd, sup.log))
	sup.sessionsDirty.Store(true)
}

// drainModulePipe reads all currently-available bytes from a module's pipe
// (it is non-blocking) and relays them to the log sink, per spec.md §4.4.
// Caller holds sup.mu.
func (sup *Supervisor) drainModulePipe(m *Module, buf []byte) {
	for {
		n, err := m.pipeReadEnd.Read(buf)
		if n > 0 {
			sup.sink.relay(m.Name, buf[:n])
			m.recordOutput(buf[:n])
		}
		if err != nil || n == 0 {
			return
		}
		if n < len(buf) {
			return // short read: pipe drained for now
		}
	}
}

// serviceSession advances one session's state machine by one readable
// event, per spec.md §4.2. Caller holds sup.mu.
func (sup *Supervisor) serviceSession(s *session) {
	var ok bool
	if s.headerPending() {
		ok = s.readHeader()
	} else {
		ok = s.readPayload()
	}
	if !ok {
		sup.closeSession(s)
		return
	}
	if s.complete() {
		resp := sup.dispatch(s.payload())
		s.reply(resp)
		s.reset()
	}
}

func (sup *Supervisor) closeSession(s *session) {
	s.close()
	for i, cand := range sup.sessions {
		if cand == s {
			sup.sessions = append(sup.sessions[:i], sup.sessions[i+1:]...)
			break
		}
	}
	sup.sessionsDirty.Store(true)
}
