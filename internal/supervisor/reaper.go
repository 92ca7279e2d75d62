//go:build linux

package supervisor

import (
	"os"
	"os/signal"
	"syscall"
)

// reaper watches for SIGCHLD and reaps dead children, per spec.md §4.1
// "Reap". It mutates only the scalar state the mainline's restart sweep
// expects to find: a module's state enum, its child handle (cleared), its
// recorded exit status, and the module-dirty/restart-requested flags. It never allocates beyond the fixed
// setup below and never closes a module's pipe — that remains Exit's job,
// run only by the mainline.
//
// Go offers no equivalent of installing a true async-signal-safe C handler;
// signal.Notify delivers on a channel from a runtime goroutine instead. To
// preserve the spec's "single poll loop, asynchronous wakeup" architecture
// this goroutine communicates dirtiness to the event loop via a self-pipe,
// whose read end sits in the same poll set as the listener, module pipes,
// and sessions (see SPEC_FULL.md §9).
type reaper struct {
	sup       *Supervisor
	sigCh     chan os.Signal
	selfPipeR *os.File
	selfPipeW *os.File
	stop      chan struct{}
}

func newReaper(sup *Supervisor) (*reaper, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	rp := &reaper{
		sup:       sup,
		sigCh:     make(chan os.Signal, 8),
		selfPipeR: r,
		selfPipeW: w,
		stop:      make(chan struct{}),
	}
	return rp, nil
}

func (r *reaper) start() {
	signal.Notify(r.sigCh, syscall.SIGCHLD)
	go r.run()
}

func (r *reaper) close() {
	signal.Stop(r.sigCh)
	close(r.stop)
	_ = r.selfPipeW.Close()
	_ = r.selfPipeR.Close()
}

func (r *reaper) run() {
	for {
		select {
		case <-r.stop:
			return
		case <-r.sigCh:
			r.reapAll()
		}
	}
}

// reapAll drains every exited child reported by a non-blocking wait and
// wakes the event loop exactly once if anything changed.
func (r *reaper) reapAll() {
	woke := false
	for {
		var status syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &status, syscall.WNOHANG, nil)
		if pid <= 0 || err != nil {
			break
		}

		r.sup.mu.Lock()
		for _, m := range r.sup.modules {
			if m.state == Running && m.cmd != nil && m.cmd.Process != nil && m.cmd.Process.Pid == pid {
				m.state = Dead
				m.cmd = nil
				if status.Exited() {
					m.lastExitStatus = status.ExitStatus()
				} else if status.Signaled() {
					m.lastExitStatus = 128 + int(status.Signal())
				}
				m.restartRequested = true
				r.sup.modulesDirty.Store(true)
				woke = true
				break
			}
		}
		r.sup.mu.Unlock()
	}

	if woke {
		r.wake()
	}
}

// wake writes a single byte to the self-pipe, rousing the poll loop. It is
// safe to call repeatedly; a full pipe buffer just means the event loop has
// not yet drained a previous wakeup, which is harmless since it will find
// the dirty flags set regardless of how many wakeup bytes arrive.
func (r *reaper) wake() {
	var b [1]byte
	_, _ = r.selfPipeW.Write(b[:])
}

// drain empties the self-pipe's read end. Called by the event loop after
// poll reports it readable. A short read (fewer bytes than the buffer)
// means the pipe has nothing more buffered right now — a pipe read returns
// everything buffered up to the buffer size without waiting for more
// writes to fill it, so this is the same
// drained-for-now heuristic drainModulePipe uses, and it is what keeps this
// from blocking the single event-loop goroutine waiting on the next wake.
func (r *reaper) drain() {
	buf := make([]byte, 64)
	for {
		n, err := r.selfPipeR.Read(buf)
		if err != nil || n == 0 {
			return
		}
		if n < len(buf) {
			return
		}
	}
}

func (r *reaper) readFd() int { return int(r.selfPipeR.Fd()) }
