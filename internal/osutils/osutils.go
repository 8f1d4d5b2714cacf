// Package osutils provides OS-specific helpers for the command-line tools.
package osutils

import "os"

// IsTerminal reports whether f is attached to an interactive terminal
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isTerminal(f.Fd())
}
