package service

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/roster-api/internal/models"
)

// RosterSnapshot holds the last successfully fetched roster. Fetches are
// numbered; a fetch result is applied only when no newer fetch has already
// been applied and its request is still live, so a slow stale response can
// never overwrite a fresher one.
type RosterSnapshot struct {
	mu        sync.RWMutex
	students  []models.Student
	fetchedAt time.Time
	issued    uint64
	applied   uint64
	now       func() time.Time
}

// NewRosterSnapshot constructs an empty snapshot.
func NewRosterSnapshot() *RosterSnapshot {
	return &RosterSnapshot{now: time.Now}
}

// Begin reserves the generation number of a new fetch.
func (s *RosterSnapshot) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Apply replaces the roster with the result of fetch gen. It reports whether
// the result was applied.
func (s *RosterSnapshot) Apply(ctx context.Context, gen uint64, students []models.Student) bool {
	if ctx.Err() != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen <= s.applied {
		return false
	}
	s.applied = gen
	s.students = append(make([]models.Student, 0, len(students)), students...)
	s.fetchedAt = s.now()
	return true
}

// Current returns a copy of the roster and when it was fetched. ok is false
// before the first successful fetch.
func (s *RosterSnapshot) Current() (students []models.Student, fetchedAt time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.applied == 0 {
		return nil, time.Time{}, false
	}
	return append(make([]models.Student, 0, len(s.students)), s.students...), s.fetchedAt, true
}

// Fresh reports whether the snapshot is younger than ttl.
func (s *RosterSnapshot) Fresh(ttl time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.applied == 0 {
		return false
	}
	return s.now().Sub(s.fetchedAt) < ttl
}
