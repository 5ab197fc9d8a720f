package syncutil

import "sync"

// Sequencer hands out tickets and lets their holders run one at a time in ticket order. Tickets
// are taken while holding some state lock so that their order matches the order of state
// changes; the holder then releases the state lock and calls Wait. A goroutine that waits for a
// later ticket while it is itself being served would wait forever, so Wait panics with a
// *ReentrancyError instead and the abandoned ticket is skipped.
type Sequencer struct {
	Name    string
	mu      sync.Mutex
	cond    *sync.Cond
	next    uint64
	serving uint64
	owner   uint64
	skipped map[uint64]bool
}

func (s *Sequencer) initLocked() {
	if s.cond == nil {
		s.cond = sync.NewCond(&s.mu)
		s.skipped = map[uint64]bool{}
	}
}

// Ticket returns the next ticket.
func (s *Sequencer) Ticket() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.next
	s.next++
	return t
}

// Wait blocks until ticket t is served.
func (s *Sequencer) Wait(t uint64) {
	gid := GoroutineID()

	s.mu.Lock()
	s.initLocked()
	for s.serving != t {
		if s.owner == gid {
			s.skipped[t] = true
			s.mu.Unlock()
			panic(&ReentrancyError{Lock: s.Name, Goroutine: gid})
		}
		s.cond.Wait()
	}
	s.owner = gid
	s.mu.Unlock()
}

// Done finishes serving the current ticket.
func (s *Sequencer) Done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked()

	s.owner = 0
	s.serving++
	for s.skipped[s.serving] {
		delete(s.skipped, s.serving)
		s.serving++
	}
	s.cond.Broadcast()
}
