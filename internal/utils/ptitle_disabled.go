//go:build !linux

package utils

// SetProcTitle is a no-op off linux.
func SetProcTitle(title string) {}
