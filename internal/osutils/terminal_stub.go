//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly && !windows

package osutils

// Stub implementation for platforms without a terminal check
func isTerminal(fd uintptr) bool {
	return false
}
