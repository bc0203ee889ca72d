package intent

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindExternalMapping(t *testing.T) {
	t.Parallel()

	cases := map[Kind]ExternalType{
		KindAirdrop:       ExtRequestAirdrop,
		KindTransferSol:   ExtTransferSol,
		KindTransferToken: ExtTransferToken,
		KindQueryBalance:  ExtQueryBalance,
		KindAutonomous:    ExtAutonomous,
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.External())

		back, ok := KindForExternal(want)
		require.True(t, ok)
		assert.Equal(t, kind, back)
	}
}

func TestIsValidExternalType(t *testing.T) {
	t.Parallel()

	for _, ext := range AllExternalTypes() {
		assert.True(t, IsValidExternalType(ext))
	}
	assert.False(t, IsValidExternalType("MINT_NFT"))
}

func TestConstructors(t *testing.T) {
	t.Parallel()

	it := TransferSol("a-1", "Recipient111", 0.25)
	assert.Equal(t, KindTransferSol, it.Kind)
	assert.Equal(t, "a-1", it.AgentID)
	assert.Equal(t, 0.25, it.Amount)
	assert.NotEmpty(t, it.ID)
	assert.False(t, it.Timestamp.IsZero())
	assert.True(t, it.IsTransfer())

	q := QueryBalance("a-1")
	assert.False(t, q.IsTransfer())

	auto := Autonomous("a-1", ActionSwap, map[string]any{"from": "SOL"})
	assert.Equal(t, ActionSwap, auto.Action)
}

func TestHistoryStore_RingBound(t *testing.T) {
	t.Parallel()

	store := NewHistoryStore(10)
	for i := 0; i < 25; i++ {
		store.Append(HistoryRecord{
			IntentID: fmt.Sprintf("i-%d", i),
			AgentID:  "a-1",
			Type:     ExtQueryBalance,
			Status:   StatusExecuted,
		})
	}

	assert.Equal(t, 10, store.Len())

	recent := store.Recent(0)
	require.Len(t, recent, 10)
	assert.Equal(t, "i-24", recent[0].IntentID) // newest first
	assert.Equal(t, "i-15", recent[9].IntentID)
}

func TestHistoryStore_ForAgent(t *testing.T) {
	t.Parallel()

	store := NewHistoryStore(0)
	store.Append(HistoryRecord{IntentID: "i-1", AgentID: "a-1", Status: StatusExecuted})
	store.Append(HistoryRecord{IntentID: "i-2", AgentID: "a-2", Status: StatusRejected})
	store.Append(HistoryRecord{IntentID: "i-3", AgentID: "a-1", Status: StatusRejected})

	got := store.ForAgent("a-1", 0)
	require.Len(t, got, 2)
	assert.Equal(t, "i-3", got[0].IntentID)
	assert.Equal(t, "i-1", got[1].IntentID)

	one := store.ForAgent("a-1", 1)
	require.Len(t, one, 1)
	assert.Equal(t, "i-3", one[0].IntentID)
}

func TestHistoryStore_StampsCreatedAt(t *testing.T) {
	t.Parallel()

	store := NewHistoryStore(0)
	store.Append(HistoryRecord{IntentID: "i-1", AgentID: "a-1"})
	assert.False(t, store.Recent(1)[0].CreatedAt.IsZero())
}
