package coordinator

import "sync"

// scheduler tracks which workspaces have an index run in flight. The
// check-and-set is a single critical section, so two callers can never
// both acquire the same workspace. Distinct workspaces run freely in
// parallel.
type scheduler struct {
	mu   sync.Mutex
	busy map[string]bool
}

func newScheduler() *scheduler {
	return &scheduler{busy: make(map[string]bool)}
}

// tryAcquire marks the workspace busy. Returns false when it already is.
func (s *scheduler) tryAcquire(workspacePath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[workspacePath] {
		return false
	}
	s.busy[workspacePath] = true
	return true
}

// release clears the workspace's busy flag. The key stays in the map,
// so snapshots keep listing workspaces that have indexed before.
func (s *scheduler) release(workspacePath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy[workspacePath] = false
}

// isBusy reports whether an index run is in flight for the workspace.
func (s *scheduler) isBusy(workspacePath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy[workspacePath]
}

// snapshot copies the whole busy map.
func (s *scheduler) snapshot() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.busy))
	for workspacePath, busy := range s.busy {
		out[workspacePath] = busy
	}
	return out
}
