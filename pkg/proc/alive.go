package proc

import (
	"bytes"
	stderrors "errors"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
)

// ProcessAlive reports whether pid refers to a running, non-zombie process.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if isZombie(pid) {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	if stderrors.Is(err, syscall.EPERM) {
		return true
	}
	return false
}

func isZombie(pid int) bool {
	fields, err := statFields(pid)
	if err != nil || len(fields) < 1 || len(fields[0]) < 1 {
		return false
	}
	return fields[0][0] == 'Z'
}

// StartTicks returns the process start time in clock ticks since boot. Two
// processes that share a PID over time never share a start time, so callers
// holding a PID for a long period can detect reuse.
func StartTicks(pid int) (uint64, error) {
	if pid <= 0 {
		return 0, errors.New("invalid PID")
	}
	fields, err := statFields(pid)
	if err != nil {
		return 0, err
	}
	// Field 19 after comm is starttime.
	if len(fields) < 20 {
		return 0, errors.Errorf("malformed stat file: expected 20+ fields, got %d", len(fields))
	}
	ticks, err := strconv.ParseUint(string(fields[19]), 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parse starttime")
	}
	return ticks, nil
}

// statFields returns the fields of /proc/<pid>/stat that follow the comm field.
func statFields(pid int) ([][]byte, error) {
	path := filepath.Join("/proc", strconv.Itoa(pid), "stat")
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read stat file")
	}
	// Format: pid (comm) state ...
	// comm may contain spaces and parentheses, so split after the last ')'.
	i := bytes.LastIndexByte(b, ')')
	if i < 0 {
		return nil, errors.New("malformed stat file: no closing paren")
	}
	return bytes.Fields(bytes.TrimSpace(b[i+1:])), nil
}

// RequestCloseGroup sends SIGTERM to the process group led by pid, falling
// back to the process itself when it does not lead a group.
func RequestCloseGroup(pid int) error {
	return signalGroup(pid, syscall.SIGTERM)
}

func KillGroup(pid int) error {
	return signalGroup(pid, syscall.SIGKILL)
}

func signalGroup(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return errors.New("invalid PID")
	}
	if pgid, err := syscall.Getpgid(pid); err == nil && pgid == pid {
		if err := syscall.Kill(-pgid, sig); err == nil {
			return nil
		}
	}
	if err := syscall.Kill(pid, sig); err != nil {
		return errors.Wrapf(err, "signal %d with %s", pid, sig)
	}
	return nil
}
