// Package syncutil provides a mutex that remembers its owner goroutine so that re-entrant
// acquisition panics instead of deadlocking.
package syncutil

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrReentrant is wrapped by the panic value raised when a goroutine tries to acquire a Mutex it
// already holds.
var ErrReentrant = errors.New("re-entrant lock acquisition")

// ReentrancyError is the panic value of a re-entrant Lock.
type ReentrancyError struct {
	Lock      string
	Goroutine uint64
}

// Error implements the error interface.
func (e *ReentrancyError) Error() string {
	return fmt.Sprintf("%s: goroutine %d already holds %s", ErrReentrant.Error(), e.Goroutine, e.Lock)
}

// Unwrap returns ErrReentrant.
func (e *ReentrancyError) Unwrap() error { return ErrReentrant }

// Mutex is a sync.Mutex that records the goroutine holding it. Other goroutines block as usual,
// the holder itself gets a *ReentrancyError panic.
type Mutex struct {
	Name  string
	mu    sync.Mutex
	owner atomic.Uint64
}

// Lock acquires the mutex.
func (m *Mutex) Lock() {
	gid := GoroutineID()
	if m.mu.TryLock() {
		m.owner.Store(gid)
		return
	}
	if m.owner.Load() == gid {
		panic(&ReentrancyError{Lock: m.Name, Goroutine: gid})
	}
	m.mu.Lock()
	m.owner.Store(gid)
}

// Unlock releases the mutex.
func (m *Mutex) Unlock() {
	m.owner.Store(0)
	m.mu.Unlock()
}

// HeldByCurrent reports whether the calling goroutine holds the mutex.
func (m *Mutex) HeldByCurrent() bool {
	owner := m.owner.Load()
	return owner != 0 && owner == GoroutineID()
}

var goroutinePrefix = []byte("goroutine ")

// GoroutineID returns the ID of the current goroutine, parsed from the stack header
// ("goroutine 123 [running]:"). Only the header is formatted and the digits are read in place.
func GoroutineID() uint64 {
	var buf [32]byte
	n := runtime.Stack(buf[:], false)
	b, ok := bytes.CutPrefix(buf[:n], goroutinePrefix)
	if !ok {
		return 0
	}
	var id uint64
	for _, c := range b {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
