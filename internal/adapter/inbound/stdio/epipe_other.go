//go:build windows

package stdio

// isBrokenPipe has no syscall-level signal to check on Windows; every write
// failure is treated as an unexpected error.
func isBrokenPipe(err error) bool {
	return false
}
