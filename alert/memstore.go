package alert

import (
	"context"
	"sync"

	"propguard/featureflag"
	"propguard/metrics"
)

type flagEntry struct {
	mu       sync.Mutex
	notified bool
}

// MemStore keeps notification flags in memory. It backs single-process
// deployments and tests; multi-observer deployments use the Postgres store,
// which shares the same compare-and-set contract.
type MemStore struct {
	mu    sync.RWMutex
	flags map[FlagKey]*flagEntry
	rtags *featureflag.RuntimeFlags
}

// NewMemStore constructs an empty store. Flags may be nil, in which case
// mutex protection is always on.
func NewMemStore(flags *featureflag.RuntimeFlags) *MemStore {
	return &MemStore{
		flags: make(map[FlagKey]*flagEntry),
		rtags: flags,
	}
}

func (s *MemStore) entry(key FlagKey) *flagEntry {
	s.mu.RLock()
	e, ok := s.flags[key]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.flags[key]; ok {
		return e
	}
	e = &flagEntry{}
	s.flags[key] = e
	return e
}

func (s *MemStore) useMutex() bool {
	if s.rtags == nil {
		return true
	}
	return s.rtags.MutexProtectionEnabled()
}

// Get returns the current flag value. Unknown keys read as unset.
func (s *MemStore) Get(_ context.Context, key FlagKey) (bool, error) {
	e := s.entry(key)
	if !s.useMutex() {
		return e.notified, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.notified, nil
}

// CompareAndSet transitions the flag only when it currently equals expected
// and reports whether this call made the transition.
func (s *MemStore) CompareAndSet(_ context.Context, key FlagKey, expected, next bool) (bool, error) {
	e := s.entry(key)
	if s.useMutex() {
		e.mu.Lock()
		defer e.mu.Unlock()
	} else {
		metrics.IncUnguardedFlagUpdates(key.AccountID)
	}

	if e.notified != expected {
		return false, nil
	}
	if expected == next {
		return false, nil
	}
	e.notified = next
	return true, nil
}
