package service

import (
	"errors"
	"os"
	"os/exec"
	"strings"
)

// State is what is known about the installed service.
type State struct {
	Path      string
	Installed bool
	// Manager is the service manager's view ("active", "loaded", ...), empty
	// when it could not be asked.
	Manager string
}

// Status reports whether the service file exists and, if so, asks the
// service manager about it.
func Status(label string) State {
	st := State{Path: Path(label)}
	if _, err := os.Stat(st.Path); err != nil {
		return st
	}
	st.Installed = true
	st.Manager = queryManager(label)
	return st
}

var queryManager = func(label string) string {
	if Launchd() {
		if err := exec.Command("launchctl", "list", label).Run(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return "not loaded"
			}
			return ""
		}
		return "loaded"
	}
	// is-active exits non-zero for inactive units but still prints the state.
	out, err := exec.Command("systemctl", "--user", "is-active", label).Output()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return ""
	}
	return strings.TrimSpace(string(out))
}
