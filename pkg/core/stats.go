package core

import "sync"

// SessionStats accumulates counters for one Session's lifetime: a
// mutex-guarded live struct the session updates internally, and a plain
// copy handed to callers so they never see (or need to import) the mutex.
type SessionStats struct {
	mu sync.RWMutex

	BytesRead       uint64
	BytesWritten    uint64
	DivesEnumerated uint64
	DivesDownloaded uint64
	Commands        uint64
}

// StatsSnapshot is a copy of SessionStats without the mutex, safe to hand
// to callers.
type StatsSnapshot struct {
	BytesRead       uint64
	BytesWritten    uint64
	DivesEnumerated uint64
	DivesDownloaded uint64
	Commands        uint64
}

func (s *SessionStats) AddRead(n int) {
	s.mu.Lock()
	s.BytesRead += uint64(n)
	s.mu.Unlock()
}

func (s *SessionStats) AddWritten(n int) {
	s.mu.Lock()
	s.BytesWritten += uint64(n)
	s.mu.Unlock()
}

func (s *SessionStats) IncCommands() {
	s.mu.Lock()
	s.Commands++
	s.mu.Unlock()
}

func (s *SessionStats) IncEnumerated() {
	s.mu.Lock()
	s.DivesEnumerated++
	s.mu.Unlock()
}

func (s *SessionStats) IncDownloaded() {
	s.mu.Lock()
	s.DivesDownloaded++
	s.mu.Unlock()
}

// Snapshot returns a mutex-free copy of the current counters.
func (s *SessionStats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StatsSnapshot{
		BytesRead:       s.BytesRead,
		BytesWritten:    s.BytesWritten,
		DivesEnumerated: s.DivesEnumerated,
		DivesDownloaded: s.DivesDownloaded,
		Commands:        s.Commands,
	}
}
