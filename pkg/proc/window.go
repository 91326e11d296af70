package proc

import (
	"strings"

	"github.com/pkg/errors"
)

// WindowStyle controls how a spawned process is presented. On POSIX systems
// only Hidden changes behaviour: hidden processes get no output streams and
// refuse graceful close requests.
type WindowStyle int

const (
	WindowNormal WindowStyle = iota
	WindowMinimized
	WindowMaximized
	WindowHidden
)

func (w WindowStyle) String() string {
	switch w {
	case WindowNormal:
		return "normal"
	case WindowMinimized:
		return "minimized"
	case WindowMaximized:
		return "maximized"
	case WindowHidden:
		return "hidden"
	default:
		return "unknown"
	}
}

func (w WindowStyle) Visible() bool {
	return w != WindowHidden
}

func ParseWindowStyle(s string) (WindowStyle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal":
		return WindowNormal, nil
	case "", "minimized":
		return WindowMinimized, nil
	case "maximized":
		return WindowMaximized, nil
	case "hidden":
		return WindowHidden, nil
	default:
		return WindowMinimized, errors.Errorf("unknown window style %q", s)
	}
}
