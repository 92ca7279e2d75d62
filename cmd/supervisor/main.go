// Command supervisor is the process-supervisor daemon, per spec.md §4.5 and
// §6's CLI surface. It either starts a new supervisor (-a/-b/-w) or talks to
// an already-running one over the control socket (-i/-s/-S).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/chrisn731/ts3supervisor/internal/supervisor"
	"github.com/chrisn731/ts3supervisor/internal/supervisor/adminhttp"
	"github.com/chrisn731/ts3supervisor/pkg/ctlclient"
	"github.com/chrisn731/ts3supervisor/pkg/fmtt"
)

// daemonizedEnv marks the re-exec'd child so it does not fork again.
// Go has no double-fork primitive (forking a multithreaded runtime and
// continuing to run Go code in the child is unsafe); the idiomatic
// substitute is to re-exec the same binary with a new session, mirroring
// what tools like docker/moby's reexec package do for the same reason.
const daemonizedEnv = "TS3SUPERVISOR_DAEMONIZED"

const (
	defaultSocketPath = "/tmp/ts_manager_sock"
	defaultLogPath    = "/tmp/ts_manager.log"

	// The module set is fixed at build time (spec.md §1's Non-goals: "no
	// dynamic registration of modules at runtime"). An operator who needs
	// different binaries edits these constants and rebuilds, the same way
	// the original manager compiled in its child argv.
	botPath    = "/usr/local/bin/ts_bot"
	botArg0    = "ts_bot"
	webPath    = "/usr/local/bin/ts_webserver"
	webArg0    = "ts_webserver"
)

func main() {
	var (
		startBoth = flag.Bool("a", false, "start both modules")
		startBot  = flag.Bool("b", false, "start the bot module only")
		startWeb  = flag.Bool("w", false, "start the web-server module only")
		interact  = flag.Bool("i", false, "attach as an interactive client to a running supervisor")
		send      = flag.String("s", "", "send a single command to a running supervisor and exit")
		sendUpper = flag.String("S", "", "alias of -s")
		httpAddr  = flag.String("http-addr", "", "start the optional read-only admin HTTP surface on this address")
		adminTok  = flag.String("admin-token", "", "token required to authenticate to the admin HTTP surface (leave empty to leave it open)")
		socket    = flag.String("socket", defaultSocketPath, "control-socket path")
		logPath   = flag.String("log", defaultLogPath, "daemon log sink path")
	)
	flag.Parse()

	verb := *send
	if verb == "" {
		verb = *sendUpper
	}

	if *interact {
		if err := ctlclient.Interactive(*socket, os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, "supervisor:", err)
			os.Exit(1)
		}
		return
	}

	if verb != "" {
		if err := ctlclient.SendOnce(*socket, verb, flag.Args()); err != nil {
			fmt.Fprintln(os.Stderr, "supervisor:", err)
			os.Exit(1)
		}
		return
	}

	daemonized := os.Getenv(daemonizedEnv) == "1"
	if !daemonized {
		daemonize()
		return // parent: the re-exec'd child is now the daemon
	}

	// Daemonized: no controlling terminal, stdin/stdout/stderr already
	// point at the null device (set up by daemonize's exec.Cmd before the
	// re-exec). Build directly to the log sink path instead of the
	// colored terminal encoder, per SPEC_FULL.md §4.10.
	log := newProductionLogger(*logPath)
	defer log.Sync()

	sup := supervisor.New(log, supervisor.Config{
		SocketPath: *socket,
		LogPath:    *logPath,
		Bot:        supervisor.ModuleSpec{Name: "bot", Path: botPath, Argv: []string{botArg0}},
		WebServer:  supervisor.ModuleSpec{Name: "web", Path: webPath, Argv: []string{webArg0}},
	})

	if err := sup.Startup(*startBoth || *startBot, *startBoth || *startWeb, *logPath); err != nil {
		fmtt.PrintFatal(err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var g errgroup.Group
	g.Go(func() error {
		// Run returns once status is Stopped (e.g. the "stop" command);
		// cancelling ctx then shuts down the admin surface and triggers
		// sup.Shutdown below, just as a termination signal does.
		defer stop()
		return sup.Run()
	})

	if *httpAddr != "" {
		admin := adminhttp.New(log, sup, adminhttp.Options{
			Addr:       *httpAddr,
			Dev:        os.Getenv("ENV") == "dev",
			AdminToken: *adminTok,
		})
		g.Go(func() error {
			return admin.Run(ctx)
		})
	}

	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		sup.Shutdown()
		close(shutdownDone)
	}()

	err := g.Wait()
	<-shutdownDone
	if err != nil {
		fmtt.PrintFatal(err)
		os.Exit(1)
	}
}

// daemonize re-execs the current binary detached from the controlling
// terminal and exits the parent, the Go-idiomatic stand-in for a
// double-fork: setsid on the child via SysProcAttr, stdio wired to
// /dev/null, cwd left unchanged (spec.md §4.5 "do not change directory").
// The child reaches main() again with daemonizedEnv set and skips this
// branch entirely.
func daemonize() {
	exe, err := os.Executable()
	if err != nil {
		fmt.Fprintln(os.Stderr, "supervisor: daemonize:", err)
		os.Exit(1)
	}

	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintln(os.Stderr, "supervisor: daemonize:", err)
		os.Exit(1)
	}
	defer devnull.Close()

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(), daemonizedEnv+"=1")
	cmd.Stdin = devnull
	cmd.Stdout = devnull
	cmd.Stderr = devnull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "supervisor: daemonize:", err)
		os.Exit(1)
	}
}

// newProductionLogger writes single-line JSON directly to the log sink
// path via zap's own file sink, matching the teacher's production encoder
// choice in SPEC_FULL.md §4.10 but targeting the sink file instead of
// stdout, since the daemon's own stdout is /dev/null once detached.
func newProductionLogger(logPath string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{logPath}
	cfg.ErrorOutputPaths = []string{logPath}
	log := zap.Must(cfg.Build())
	return log.Named("supervisor")
}
