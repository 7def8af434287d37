package booking

import "sync"

// staffLocks serializes commit attempts per staff member. The lock is held
// for the whole re-validate-and-insert sequence; it is the single source of
// the no-double-booking guarantee.
type staffLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newStaffLocks() *staffLocks {
	return &staffLocks{locks: make(map[int64]*sync.Mutex)}
}

func (s *staffLocks) lock(staffID int64) *sync.Mutex {
	s.mu.Lock()
	m, ok := s.locks[staffID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[staffID] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m
}
