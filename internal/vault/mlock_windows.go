//go:build windows

package vault

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// mlock pins the buffer's pages so plaintext key material never reaches
// the pagefile. Best effort: a false return means the seed stays
// pageable.
func mlock(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return windows.VirtualLock(uintptr(unsafe.Pointer(&data[0])), uintptr(len(data))) == nil
}

// munlock releases the pin before the buffer is zeroed and freed.
func munlock(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = windows.VirtualUnlock(uintptr(unsafe.Pointer(&data[0])), uintptr(len(data)))
}
