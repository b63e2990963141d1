package history

// ActiveLocks exposes the number of live lock entries to tests.
func ActiveLocks(m *Manager) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
