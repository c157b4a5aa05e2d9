package dedupe

import "sync"

type state uint8

const (
	inFlight state = iota + 1
	done
)

// Set tracks the documents handled during a single poll run.
// A document is claimed before its action runs so that concurrent workers
// never execute the same id twice; the claim becomes permanent on success
// and is released on failure so a later page may retry it.
type Set struct {
	mu    sync.Mutex
	items map[string]state
}

// NewSet creates an empty set. Create one per run and drop it afterwards.
func NewSet() *Set {
	return &Set{items: make(map[string]state)}
}

// Claim atomically checks and reserves the id. It returns false when the id
// is already done or being processed.
func (s *Set) Claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; ok {
		return false
	}
	s.items[id] = inFlight
	return true
}

// MarkDone records that the action updated the document.
func (s *Set) MarkDone(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[id] = done
}

// Release drops an in-flight claim. Completed ids are left untouched.
func (s *Set) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.items[id] == inFlight {
		delete(s.items, id)
	}
}

// Len returns the number of documents updated during this run.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, st := range s.items {
		if st == done {
			n++
		}
	}
	return n
}
