package orchestrator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casthq/warden/internal/intent"
)

func TestLedger_InsertUpdateGet(t *testing.T) {
	t.Parallel()

	l := NewLedger(0)
	id := l.Insert(TxRecord{AgentID: "a-1", Type: intent.KindAirdrop, Amount: 1.0})

	rec, ok := l.Get(id)
	require.True(t, ok)
	assert.Equal(t, TxPending, rec.Status)
	assert.False(t, rec.CreatedAt.IsZero())

	l.Update(id, func(r *TxRecord) {
		r.Status = TxConfirmed
		r.Signature = "sig-1"
	})

	rec, ok = l.Get(id)
	require.True(t, ok)
	assert.Equal(t, TxConfirmed, rec.Status)
	assert.Equal(t, "sig-1", rec.Signature)
	assert.False(t, rec.UpdatedAt.Before(rec.CreatedAt))

	// Unknown ids are ignored
	l.Update("missing", func(r *TxRecord) { r.Status = TxFailed })
	_, ok = l.Get("missing")
	assert.False(t, ok)
}

func TestLedger_TrimsToLimit(t *testing.T) {
	t.Parallel()

	l := NewLedger(10)
	for i := 0; i < 25; i++ {
		l.Insert(TxRecord{ID: fmt.Sprintf("tx-%d", i), AgentID: "a-1"})
	}

	assert.Equal(t, 10, l.Len())
	all := l.All()
	require.Len(t, all, 10)
	// Newest first; the oldest surviving record is tx-15
	assert.Equal(t, "tx-24", all[0].ID)
	assert.Equal(t, "tx-15", all[9].ID)

	_, ok := l.Get("tx-0")
	assert.False(t, ok)
}

func TestLedger_ForAgentAndSignatures(t *testing.T) {
	t.Parallel()

	l := NewLedger(0)
	for i := 0; i < 5; i++ {
		agent := "a-1"
		if i%2 == 1 {
			agent = "a-2"
		}
		id := l.Insert(TxRecord{ID: fmt.Sprintf("tx-%d", i), AgentID: agent})
		l.Update(id, func(r *TxRecord) {
			r.Status = TxConfirmed
			r.Signature = fmt.Sprintf("sig-%d", i)
		})
	}

	mine := l.ForAgent("a-1")
	require.Len(t, mine, 3)
	assert.Equal(t, "tx-4", mine[0].ID)

	sigs := l.RecentSignatures("a-1", 2)
	assert.Equal(t, []string{"sig-4", "sig-2"}, sigs)

	counts := l.CountByStatus()
	assert.Equal(t, 5, counts[TxConfirmed])
}
