package orchestrator

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/casthq/warden/internal/intent"
)

// TxStatus is the lifecycle state of a ledger record.
type TxStatus string

// Transaction record statuses. The executor moves records from pending
// straight to confirmed or failed; submitted and finalized exist for
// chain clients that report the intermediate commitment levels.
const (
	TxPending   TxStatus = "pending"
	TxSubmitted TxStatus = "submitted"
	TxConfirmed TxStatus = "confirmed"
	TxFinalized TxStatus = "finalized"
	TxFailed    TxStatus = "failed"
)

// DefaultMaxTransactions bounds the ledger ring.
const DefaultMaxTransactions = 10_000

// TxRecord is one entry of the transaction ledger.
type TxRecord struct {
	ID        string      `json:"id"`
	IntentID  string      `json:"intentId"`
	AgentID   string      `json:"agentId"`
	WalletID  string      `json:"walletId"`
	Type      intent.Kind `json:"type"`
	Status    TxStatus    `json:"status"`
	Amount    float64     `json:"amount,omitempty"`
	Recipient string      `json:"recipient,omitempty"`
	Mint      string      `json:"mint,omitempty"`
	Signature string      `json:"signature,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Ledger is the bounded in-memory transaction ledger. Records are
// updated in place under the mutex and always read out as copies, so a
// reader never observes a half-updated record.
type Ledger struct {
	mu      sync.Mutex
	records []*TxRecord
	limit   int
}

// NewLedger creates a ledger trimmed to limit records. Zero selects the
// default.
func NewLedger(limit int) *Ledger {
	if limit <= 0 {
		limit = DefaultMaxTransactions
	}
	return &Ledger{limit: limit}
}

// Insert appends a pending record and returns its id.
func (l *Ledger) Insert(rec TxRecord) string {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = TxPending
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, &rec)
	if len(l.records) > l.limit {
		l.records = append(l.records[:0:0], l.records[len(l.records)-l.limit:]...)
	}
	return rec.ID
}

// Update mutates a record in place. Unknown ids are ignored; the record
// may have been trimmed.
func (l *Ledger) Update(id string, fn func(*TxRecord)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, rec := range l.records {
		if rec.ID == id {
			fn(rec)
			rec.UpdatedAt = time.Now()
			return
		}
	}
}

// Get returns a copy of one record.
func (l *Ledger) Get(id string) (TxRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, rec := range l.records {
		if rec.ID == id {
			return *rec, true
		}
	}
	return TxRecord{}, false
}

// All returns copies of every record, newest first.
func (l *Ledger) All() []TxRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]TxRecord, 0, len(l.records))
	for i := len(l.records) - 1; i >= 0; i-- {
		out = append(out, *l.records[i])
	}
	return out
}

// ForAgent returns copies of one agent's records, newest first.
func (l *Ledger) ForAgent(agentID string) []TxRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []TxRecord
	for i := len(l.records) - 1; i >= 0; i-- {
		if l.records[i].AgentID == agentID {
			out = append(out, *l.records[i])
		}
	}
	return out
}

// RecentSignatures returns up to count confirmed signatures for an
// agent, newest first.
func (l *Ledger) RecentSignatures(agentID string, count int) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []string
	for i := len(l.records) - 1; i >= 0 && len(out) < count; i-- {
		rec := l.records[i]
		if rec.AgentID == agentID && rec.Signature != "" {
			out = append(out, rec.Signature)
		}
	}
	return out
}

// Len returns the number of retained records.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// CountByStatus returns the number of retained records per status.
func (l *Ledger) CountByStatus() map[TxStatus]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[TxStatus]int, 3)
	for _, rec := range l.records {
		out[rec.Status]++
	}
	return out
}
