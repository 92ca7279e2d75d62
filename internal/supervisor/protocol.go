package supervisor

import (
	"strings"

	"go.uber.org/zap"
)

// dispatch parses a command payload per spec.md §4.2's grammar and applies
// it to the Supervisor, returning the reply to write back on the session.
// Caller must hold sup.mu.
func (sup *Supervisor) dispatch(payload string) string {
	fields := strings.Fields(payload)
	if len(fields) == 0 {
		return "Unknown command."
	}

	verb, args := fields[0], fields[1:]
	switch verb {
	case "stop":
		sup.status = StatusStopped
		return "Shutting down..."

	case "restart":
		if len(args) == 0 {
			return "No argument given."
		}
		ok := true
		for _, name := range args {
			m := sup.lookupModule(name)
			if m == nil {
				continue // unknown module names are silently skipped
			}
			m.Exit()
			if err := m.Start(); err != nil {
				sup.log.Warn("restart failed", zap.String("module", name), zap.Error(err))
				ok = false
			}
		}
		if ok {
			return "OK"
		}
		return "FAIL"

	case "disable":
		if len(args) == 0 {
			return "No argument given."
		}
		for _, name := range args {
			if m := sup.lookupModule(name); m != nil {
				m.Exit()
			}
		}
		return "OK"

	case "enable":
		if len(args) == 0 {
			return "No argument given."
		}
		ok := true
		for _, name := range args {
			m := sup.lookupModule(name)
			if m == nil {
				continue
			}
			if err := m.Start(); err != nil {
				sup.log.Warn("enable failed", zap.String("module", name), zap.Error(err))
				ok = false
			}
		}
		if ok {
			return "OK"
		}
		return "FAIL"

	default:
		return "Unknown command."
	}
}

func (sup *Supervisor) lookupModule(name string) *Module {
	for _, m := range sup.modules {
		if m.Name == name {
			return m
		}
	}
	return nil
}
