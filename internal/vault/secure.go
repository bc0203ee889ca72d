package vault

import (
	"runtime"
	"sync"
)

// secureBytes wraps a sensitive byte slice with mlock (where the system
// supports it) and explicit zeroing. Plaintext key material lives only
// inside one of these, only for the duration of a signing call.
type secureBytes struct {
	data   []byte
	locked bool
	mu     sync.Mutex
}

// newSecureBytes copies data into locked memory. The caller should zero
// its own copy after the call.
func newSecureBytes(data []byte) *secureBytes {
	sb := &secureBytes{data: make([]byte, len(data))}
	copy(sb.data, data)
	sb.locked = mlock(sb.data)

	// Belt and braces: zero on GC even if destroy is never called.
	runtime.SetFinalizer(sb, func(s *secureBytes) {
		s.destroy()
	})
	return sb
}

// bytes returns the underlying slice, or nil after destroy.
func (s *secureBytes) bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// destroy zeros and unlocks the memory. Safe to call multiple times.
func (s *secureBytes) destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		return
	}
	for i := range s.data {
		s.data[i] = 0
	}
	if s.locked {
		munlock(s.data)
		s.locked = false
	}
	s.data = nil
	runtime.SetFinalizer(s, nil)
}

// zeroBytes zeros a byte slice in place. runtime.KeepAlive prevents the
// compiler from treating the zeroing as a dead store.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
