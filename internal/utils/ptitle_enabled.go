//go:build linux

package utils

import "github.com/erikdubbelboer/gspt"

// SetProcTitle sets the process title shown by ps and top.
func SetProcTitle(title string) {
	gspt.SetProcTitle(title)
}
