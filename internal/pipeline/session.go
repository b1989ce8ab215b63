package pipeline

import (
	"sync"
	"time"
)

// Session keeps the most recent run for interactive front ends. It is created
// empty, filled by each conversion and emptied by Reset.
type Session struct {
	mu        sync.RWMutex
	result    *Result
	updatedAt time.Time
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{}
}

// Store replaces the current result.
func (s *Session) Store(res *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = res
	s.updatedAt = time.Now()
}

// Current returns the current result, if any.
func (s *Session) Current() (*Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result, s.result != nil
}

// UpdatedAt returns when the current result was stored.
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Reset discards the current result.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = nil
	s.updatedAt = time.Time{}
}
