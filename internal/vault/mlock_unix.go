//go:build !windows

package vault

import (
	"golang.org/x/sys/unix"
)

// mlock pins the buffer's pages so plaintext key material never reaches
// swap. Best effort: a false return means the seed stays pageable.
func mlock(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return unix.Mlock(data) == nil
}

// munlock releases the pin before the buffer is zeroed and freed.
func munlock(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Munlock(data)
}
