// Package ctlclient implements the Supervisor control-socket client used by
// the -i/-s/-S flags: a single framed command-and-reply round trip, or an
// interactive read-eval-print loop over stdin. Grounded on
// original_source/man/client.c's send_cmd/build_message/wait_next_command.
package ctlclient

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/chrisn731/ts3supervisor/pkg/framing"
)

// ErrInvalidCommand is returned when a command line fails the verb/arity
// validation spec.md §6 requires before anything is sent over the wire.
var ErrInvalidCommand = errors.New("ctlclient: invalid command")

// ValidateCommand checks a verb and its argument count against spec.md
// §6's table: stop takes 0 extra args; enable/disable/restart take 1 or
// more; anything else is rejected.
func ValidateCommand(verb string, argc int) error {
	switch verb {
	case "stop":
		if argc != 0 {
			return fmt.Errorf("%w: stop takes no arguments", ErrInvalidCommand)
		}
	case "enable", "disable", "restart":
		if argc < 1 {
			return fmt.Errorf("%w: %s requires at least one module name", ErrInvalidCommand, verb)
		}
	default:
		return fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, verb)
	}
	return nil
}

// Dial connects to the Supervisor's control socket at path.
func Dial(path string) (net.Conn, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("connect to supervisor at %s: %w", path, err)
	}
	return conn, nil
}

// SendCommand frames and sends a single command, then prints the reply to
// stdout. It mirrors client.c's send_cmd: "quit" is special-cased to the
// close sentinel and expects no reply.
func SendCommand(conn net.Conn, cmd string) error {
	if strings.TrimSpace(cmd) == "" {
		return nil
	}
	if cmd == "quit" {
		var hdr [4]byte
		for i := range hdr {
			hdr[i] = 0xFF
		}
		_, err := conn.Write(hdr[:])
		return err
	}

	hdr, err := framing.EncodeHeader(len(cmd))
	if err != nil {
		return err
	}
	if _, err := conn.Write(append(hdr[:], cmd...)); err != nil {
		return fmt.Errorf("write command: %w", err)
	}

	buf := make([]byte, framing.MaxCmdLen-1)
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	fmt.Println(string(buf[:n]))
	return nil
}

// SendOnce opens a connection, sends exactly one validated command, and
// closes it — the -s/-S flag behavior.
func SendOnce(socketPath, verb string, args []string) error {
	if err := ValidateCommand(verb, len(args)); err != nil {
		return err
	}
	conn, err := Dial(socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	cmd := strings.Join(append([]string{verb}, args...), " ")
	return SendCommand(conn, cmd)
}

// Interactive runs a REPL over stdin against an already-running supervisor,
// the -i flag behavior, mirroring client.c's start_interactive/
// wait_next_command loop.
func Interactive(socketPath string, stdin *os.File, stdout *os.File) error {
	conn, err := Dial(socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	sc := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "[manager]$ ")
		if !sc.Scan() {
			return sc.Err()
		}
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := SendCommand(conn, line); err != nil {
			return err
		}
		if line == "quit" {
			return nil
		}
	}
}
