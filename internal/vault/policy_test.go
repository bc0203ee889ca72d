package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casthq/warden/internal/chain"
	"github.com/casthq/warden/internal/intent"
	"github.com/casthq/warden/pkg/errors"
)

func testPolicy() Policy {
	return Policy{
		MaxTransferLamports: chain.SOLToLamports(1.0),
		MaxDailyTransfers:   5,
		MinResidualLamports: chain.SOLToLamports(0.05),
	}
}

func TestEvaluateIntent_TransferWithinLimits(t *testing.T) {
	t.Parallel()

	it := intent.TransferSol("a-1", "Recipient111", 0.5)
	err := EvaluateIntent(testPolicy(), 0, it, chain.SOLToLamports(2.0))
	assert.NoError(t, err)
}

func TestEvaluateIntent_OverMaxTransfer(t *testing.T) {
	t.Parallel()

	it := intent.TransferSol("a-1", "Recipient111", 1.001)
	err := EvaluateIntent(testPolicy(), 0, it, chain.SOLToLamports(10.0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPolicyViolation))
	assert.Contains(t, err.Error(), "cap")
}

func TestEvaluateIntent_ResidualBalance(t *testing.T) {
	t.Parallel()

	p := testPolicy()

	// balance - amount - feeReserve must stay >= minResidual
	balance := chain.SOLToLamports(0.5)
	it := intent.TransferSol("a-1", "Recipient111", 0.46)
	err := EvaluateIntent(p, 0, it, balance)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPolicyViolation))

	ok := intent.TransferSol("a-1", "Recipient111", 0.4)
	assert.NoError(t, EvaluateIntent(p, 0, ok, balance))
}

func TestEvaluateIntent_DailyLimit(t *testing.T) {
	t.Parallel()

	p := testPolicy()

	it := intent.TransferSol("a-1", "Recipient111", 0.1)
	assert.NoError(t, EvaluateIntent(p, 4, it, chain.SOLToLamports(2.0)))

	err := EvaluateIntent(p, 5, it, chain.SOLToLamports(2.0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily limit")

	// Airdrops count against the daily limit too
	air := intent.Airdrop("a-1", 1.0)
	assert.Error(t, EvaluateIntent(p, 5, air, 0))

	// Reads never do
	q := intent.QueryBalance("a-1")
	assert.NoError(t, EvaluateIntent(p, 5, q, 0))
}

func TestEvaluateIntent_AllowList(t *testing.T) {
	t.Parallel()

	p := testPolicy()
	p.AllowRecipients = []string{"Friend111"}

	ok := intent.TransferSol("a-1", "Friend111", 0.1)
	assert.NoError(t, EvaluateIntent(p, 0, ok, chain.SOLToLamports(2.0)))

	bad := intent.TransferSol("a-1", "Stranger11", 0.1)
	err := EvaluateIntent(p, 0, bad, chain.SOLToLamports(2.0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allow list")
}

func TestEvaluateIntent_DenyList(t *testing.T) {
	t.Parallel()

	p := testPolicy()
	p.DenyRecipients = []string{"Mallory111"}

	bad := intent.TransferSol("a-1", "Mallory111", 0.1)
	err := EvaluateIntent(p, 0, bad, chain.SOLToLamports(2.0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deny")
}

func TestEvaluateIntent_TokenTransfer(t *testing.T) {
	t.Parallel()

	p := testPolicy()

	ok := intent.TransferToken("a-1", "Mint111", "Recipient111", 10)
	assert.NoError(t, EvaluateIntent(p, 0, ok, chain.SOLToLamports(1.0)))

	nonPositive := intent.TransferToken("a-1", "Mint111", "Recipient111", 0)
	assert.Error(t, EvaluateIntent(p, 0, nonPositive, chain.SOLToLamports(1.0)))

	// Not enough native balance to cover token fees plus residual
	broke := intent.TransferToken("a-1", "Mint111", "Recipient111", 10)
	assert.Error(t, EvaluateIntent(p, 0, broke, chain.SOLToLamports(0.05)))
}

func TestEvaluateAutonomous_DoubledCaps(t *testing.T) {
	t.Parallel()

	p := testPolicy()
	balance := chain.SOLToLamports(5.0)

	// 1.5 SOL exceeds the normal 1.0 cap but not the doubled 2.0 cap
	auto := intent.Autonomous("a-1", intent.ActionTransferSol, map[string]any{
		"amount": 1.5, "recipient": "Recipient111",
	})
	assert.NoError(t, EvaluateIntent(p, 0, auto, balance))

	over := intent.Autonomous("a-1", intent.ActionTransferSol, map[string]any{
		"amount": 2.5, "recipient": "Recipient111",
	})
	assert.Error(t, EvaluateIntent(p, 0, over, balance))

	// Daily limit is doubled: 9 actions pass, 10 fail
	assert.NoError(t, EvaluateIntent(p, 9, auto, balance))
	assert.Error(t, EvaluateIntent(p, 10, auto, balance))
}

func TestEvaluateAutonomous_SafetyFloor(t *testing.T) {
	t.Parallel()

	p := testPolicy()
	p.MinResidualLamports = 0 // operator tried to disable the floor

	// The built-in safety floor still applies to autonomous actions
	auto := intent.Autonomous("a-1", intent.ActionExecuteInstructions, map[string]any{})
	err := EvaluateIntent(p, 0, auto, SafetyFloorLamports/2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPolicyViolation))

	assert.NoError(t, EvaluateIntent(p, 0, auto, SafetyFloorLamports+chain.FeeReserveLamports))
}

func TestPolicyPatch_Apply(t *testing.T) {
	t.Parallel()

	p := testPolicy()
	newMax := chain.SOLToLamports(3.0)
	daily := 7
	allow := []string{"X1"}

	p.apply(PolicyPatch{
		MaxTransferLamports: &newMax,
		MaxDailyTransfers:   &daily,
		AllowRecipients:     &allow,
	})

	assert.Equal(t, newMax, p.MaxTransferLamports)
	assert.Equal(t, 7, p.MaxDailyTransfers)
	assert.Equal(t, []string{"X1"}, p.AllowRecipients)
	// Untouched fields survive
	assert.Equal(t, chain.SOLToLamports(0.05), p.MinResidualLamports)
}
