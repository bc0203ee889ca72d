package intent

import (
	"sync"
	"time"
)

// HistoryStatus marks a history record's outcome.
type HistoryStatus string

// History record outcomes.
const (
	StatusExecuted HistoryStatus = "executed"
	StatusRejected HistoryStatus = "rejected"
)

// HistoryRecord is the unified record of one intent outcome, shared
// between built-in and external agents.
type HistoryRecord struct {
	IntentID  string         `json:"intentId"`
	AgentID   string         `json:"agentId"`
	Type      ExternalType   `json:"type"`
	Params    map[string]any `json:"params,omitempty"`
	Status    HistoryStatus  `json:"status"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// DefaultHistoryLimit bounds the shared history ring.
const DefaultHistoryLimit = 5_000

// HistoryStore is a bounded ring of intent outcomes.
type HistoryStore struct {
	mu      sync.Mutex
	records []HistoryRecord
	limit   int
}

// NewHistoryStore creates a store trimmed to limit records. Zero selects
// the default.
func NewHistoryStore(limit int) *HistoryStore {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &HistoryStore{limit: limit}
}

// Append records an intent outcome, stamping CreatedAt if unset.
func (s *HistoryStore) Append(rec HistoryRecord) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	if len(s.records) > s.limit {
		s.records = append(s.records[:0:0], s.records[len(s.records)-s.limit:]...)
	}
}

// Recent returns up to count records from the tail, newest first.
func (s *HistoryStore) Recent(count int) []HistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if count <= 0 || count > len(s.records) {
		count = len(s.records)
	}
	out := make([]HistoryRecord, count)
	for i := 0; i < count; i++ {
		out[i] = s.records[len(s.records)-1-i]
	}
	return out
}

// ForAgent returns up to count records for one agent, newest first.
func (s *HistoryStore) ForAgent(agentID string, count int) []HistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []HistoryRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].AgentID != agentID {
			continue
		}
		out = append(out, s.records[i])
		if count > 0 && len(out) >= count {
			break
		}
	}
	return out
}

// Len returns the number of retained records.
func (s *HistoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
