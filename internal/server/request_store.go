package server

import (
	"sync"
	"time"

	"github.com/sentira-ai/sentira/internal/activation"
)

const (
	statusPending   = "pending"
	statusCompleted = "completed"
)

// requestStore keeps recent classification outcomes in memory so the
// status route can answer "what happened to request X" without any
// external storage. Entries expire after the TTL; expired entries are
// swept opportunistically on every access.
type requestStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	data map[string]requestEntry
}

type requestEntry struct {
	projectID  string
	status     string
	activation *activation.Event
	expiresAt  time.Time
}

func newRequestStore(ttl time.Duration) *requestStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &requestStore{
		ttl:  ttl,
		data: make(map[string]requestEntry),
	}
}

func (s *requestStore) Start(requestID, projectID string) {
	if s == nil || requestID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()
	s.data[requestID] = requestEntry{
		projectID: projectID,
		status:    statusPending,
		expiresAt: time.Now().Add(s.ttl),
	}
}

// Complete marks the request finished. The activation event may be nil
// when the capture level suppressed it; the status still flips so the
// lookup route reports completion.
func (s *requestStore) Complete(requestID string, ev *activation.Event) {
	if s == nil || requestID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()
	entry := requestEntry{
		status:     statusCompleted,
		activation: ev,
		expiresAt:  time.Now().Add(s.ttl),
	}
	if existing, ok := s.data[requestID]; ok {
		entry.projectID = existing.projectID
	} else if ev != nil {
		entry.projectID = ev.Meta.ProjectID
	}
	s.data[requestID] = entry
}

func (s *requestStore) Get(requestID string) (requestEntry, bool) {
	if s == nil || requestID == "" {
		return requestEntry{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()
	entry, ok := s.data[requestID]
	if !ok {
		return requestEntry{}, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.data, requestID)
		return requestEntry{}, false
	}
	return entry, true
}

func (s *requestStore) cleanupLocked() {
	now := time.Now()
	for k, v := range s.data {
		if now.After(v.expiresAt) {
			delete(s.data, k)
		}
	}
}
