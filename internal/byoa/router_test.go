package byoa

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casthq/warden/internal/chain"
	"github.com/casthq/warden/internal/events"
	"github.com/casthq/warden/internal/intent"
	"github.com/casthq/warden/internal/vault"
	"github.com/casthq/warden/pkg/errors"
)

type routerRig struct {
	registry *Registry
	binder   *Binder
	router   *Router
	vault    *vault.Vault
	fake     *chain.Fake
	hist     *intent.HistoryStore
	bus      *events.Bus
}

func newRouterRig(t *testing.T, opts RouterOptions) *routerRig {
	t.Helper()

	v := vault.New("router-test-pass", nil)
	t.Cleanup(v.Close)

	registry := NewRegistry(10, nil)
	fake := chain.NewFake()
	bus := events.NewBus(0, 0, nil)
	hist := intent.NewHistoryStore(0)

	return &routerRig{
		registry: registry,
		binder:   NewBinder(registry, v, nil),
		router:   NewRouter(registry, v, fake, bus, hist, opts, nil),
		vault:    v,
		fake:     fake,
		hist:     hist,
		bus:      bus,
	}
}

// registerActive registers an agent, binds a wallet, and returns the
// record and raw token.
func (r *routerRig) registerActive(t *testing.T, reg Registration) (AgentRecord, string) {
	t.Helper()

	rec, token, err := r.registry.Register(reg)
	require.NoError(t, err)
	_, err = r.binder.BindNewWallet(rec.ID)
	require.NoError(t, err)

	rec, err = r.registry.GetAgent(rec.ID)
	require.NoError(t, err)
	return rec, token
}

func allIntentsRegistration(name string) Registration {
	return Registration{
		Name:             name,
		Kind:             KindLocal,
		SupportedIntents: intent.AllExternalTypes(),
	}
}

func TestSubmitIntent_QueryBalance(t *testing.T) {
	t.Parallel()

	rig := newRouterRig(t, RouterOptions{})
	rec, token := rig.registerActive(t, allIntentsRegistration("bot"))
	rig.fake.SetBalance(rec.WalletPublicKey, chain.SOLToLamports(1.5))

	res, err := rig.router.SubmitIntent(context.Background(), token,
		ExternalIntent{Type: intent.ExtQueryBalance})
	require.NoError(t, err)

	assert.Equal(t, intent.StatusExecuted, res.Status)
	assert.Equal(t, rec.ID, res.AgentID)
	assert.Equal(t, rec.WalletPublicKey, res.WalletPublicKey)
	assert.Equal(t, 1.5, res.Result["balance"])
	assert.NotEmpty(t, res.IntentID)
	assert.False(t, res.ExecutedAt.IsZero())

	recent := rig.hist.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, intent.StatusExecuted, recent[0].Status)
}

func TestSubmitIntent_TransferSol(t *testing.T) {
	t.Parallel()

	rig := newRouterRig(t, RouterOptions{})
	rec, token := rig.registerActive(t, allIntentsRegistration("bot"))
	rig.fake.SetBalance(rec.WalletPublicKey, chain.SOLToLamports(2.0))

	res, err := rig.router.SubmitIntent(context.Background(), token, ExternalIntent{
		Type:      intent.ExtTransferSol,
		Amount:    0.25,
		Recipient: "Friend111",
	})
	require.NoError(t, err)

	assert.Equal(t, intent.StatusExecuted, res.Status)
	assert.NotEmpty(t, res.Result["signature"])
	require.Len(t, rig.fake.SendCalls, 1)
	assert.Equal(t, rec.WalletPublicKey, rig.fake.SendCalls[0].Tx.FeePayer)

	// The transfer counted against the daily limit
	n, err := rig.vault.DailyTransfers(rec.WalletID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSubmitIntent_AuthFailures(t *testing.T) {
	t.Parallel()

	rig := newRouterRig(t, RouterOptions{})
	rec, token := rig.registerActive(t, allIntentsRegistration("bot"))
	rig.fake.SetBalance(rec.WalletPublicKey, chain.SOLToLamports(1.0))

	// Unknown token: Auth error, no result, no chain call
	_, err := rig.router.SubmitIntent(context.Background(), "wrd_agt_bogus",
		ExternalIntent{Type: intent.ExtQueryBalance})
	assert.True(t, errors.Is(err, errors.ErrAuth))

	// Revoked agent: original token fails the same way
	require.NoError(t, rig.registry.Revoke(rec.ID))
	_, err = rig.router.SubmitIntent(context.Background(), token,
		ExternalIntent{Type: intent.ExtQueryBalance})
	assert.True(t, errors.Is(err, errors.ErrAuth))

	assert.Empty(t, rig.fake.SendCalls)
	assert.Empty(t, rig.fake.AirdropCalls)
}

func TestSubmitIntent_InactiveAgentRejected(t *testing.T) {
	t.Parallel()

	rig := newRouterRig(t, RouterOptions{})
	rec, token := rig.registerActive(t, allIntentsRegistration("bot"))
	require.NoError(t, rig.registry.Deactivate(rec.ID))

	res, err := rig.router.SubmitIntent(context.Background(), token,
		ExternalIntent{Type: intent.ExtQueryBalance})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAuth))
	assert.Equal(t, intent.StatusRejected, res.Status)
	assert.Contains(t, res.Error, "not active")
}

// Scenario: 31 intents inside one minute; the 31st is rejected with a
// rate-limit error and never reaches the chain.
func TestSubmitIntent_RateLimit(t *testing.T) {
	t.Parallel()

	rig := newRouterRig(t, RouterOptions{RateLimitPerMinute: 30})
	rec, token := rig.registerActive(t, allIntentsRegistration("bot"))
	rig.fake.SetBalance(rec.WalletPublicKey, chain.SOLToLamports(1.0))

	for i := 0; i < 30; i++ {
		res, err := rig.router.SubmitIntent(context.Background(), token,
			ExternalIntent{Type: intent.ExtQueryBalance})
		require.NoError(t, err, "intent %d", i)
		assert.Equal(t, intent.StatusExecuted, res.Status)
	}

	res, err := rig.router.SubmitIntent(context.Background(), token,
		ExternalIntent{Type: intent.ExtQueryBalance})
	require.Error(t, err)
	assert.Equal(t, errors.CodeRateLimited, errors.Code(err))
	assert.Equal(t, intent.StatusRejected, res.Status)
	assert.Contains(t, res.Error, "Rate limit")

	recent := rig.hist.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, intent.StatusRejected, recent[0].Status)
}

// Scenario: an agent that only declared QUERY_BALANCE submits a
// transfer; the rejection names the intent type and no chain call is
// made.
func TestSubmitIntent_UnsupportedType(t *testing.T) {
	t.Parallel()

	rig := newRouterRig(t, RouterOptions{})
	rec, token := rig.registerActive(t, Registration{
		Name:             "reader",
		Kind:             KindLocal,
		SupportedIntents: []intent.ExternalType{intent.ExtQueryBalance},
	})
	rig.fake.SetBalance(rec.WalletPublicKey, chain.SOLToLamports(2.0))

	res, err := rig.router.SubmitIntent(context.Background(), token, ExternalIntent{
		Type:      intent.ExtTransferSol,
		Amount:    0.1,
		Recipient: "Friend111",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Equal(t, intent.StatusRejected, res.Status)
	assert.Contains(t, res.Error, "TRANSFER_SOL")
	assert.Empty(t, rig.fake.SendCalls)
}

func TestSubmitIntent_PolicyRejection(t *testing.T) {
	t.Parallel()

	rig := newRouterRig(t, RouterOptions{})
	rec, token := rig.registerActive(t, allIntentsRegistration("bot"))
	rig.fake.SetBalance(rec.WalletPublicKey, chain.SOLToLamports(10.0))

	// Over the default 1 SOL per-transfer cap
	res, err := rig.router.SubmitIntent(context.Background(), token, ExternalIntent{
		Type:      intent.ExtTransferSol,
		Amount:    1.5,
		Recipient: "Friend111",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPolicyViolation))
	assert.Equal(t, intent.StatusRejected, res.Status)
	assert.Empty(t, rig.fake.SendCalls)
}

func TestSubmitIntent_AutonomousRelaxedCap(t *testing.T) {
	t.Parallel()

	rig := newRouterRig(t, RouterOptions{})
	rec, token := rig.registerActive(t, allIntentsRegistration("bot"))
	rig.fake.SetBalance(rec.WalletPublicKey, chain.SOLToLamports(10.0))

	// 1.5 SOL exceeds the normal cap but fits the doubled autonomous cap
	res, err := rig.router.SubmitIntent(context.Background(), token, ExternalIntent{
		Type:   intent.ExtAutonomous,
		Action: intent.ActionTransferSol,
		Params: map[string]any{"amount": 1.5, "recipient": "Friend111"},
	})
	require.NoError(t, err)
	assert.Equal(t, intent.StatusExecuted, res.Status)
	assert.Len(t, rig.fake.SendCalls, 1)
}

func TestSubmitIntent_AutonomousForwardCompat(t *testing.T) {
	t.Parallel()

	rig := newRouterRig(t, RouterOptions{})
	rec, token := rig.registerActive(t, allIntentsRegistration("bot"))
	rig.fake.SetBalance(rec.WalletPublicKey, chain.SOLToLamports(5.0))

	res, err := rig.router.SubmitIntent(context.Background(), token, ExternalIntent{
		Type:   intent.ExtAutonomous,
		Action: "future_action",
		Params: map[string]any{
			"instructions": []any{map[string]any{"programId": chain.SystemProgramID}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, intent.StatusExecuted, res.Status)
	require.Len(t, rig.fake.SendCalls, 1)
	assert.Equal(t, rec.WalletPublicKey, rig.fake.SendCalls[0].Tx.FeePayer)
}

func TestBinder_BindNewWallet(t *testing.T) {
	t.Parallel()

	rig := newRouterRig(t, RouterOptions{})
	rec, _, err := rig.registry.Register(allIntentsRegistration("bot"))
	require.NoError(t, err)

	bound, err := rig.binder.BindNewWallet(rec.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, bound.WalletID)
	assert.NotEmpty(t, bound.PublicKey)
	assert.Equal(t, 1, rig.vault.WalletCount())

	// Wallet label carries the agent name
	info, err := rig.vault.GetWallet(bound.WalletID)
	require.NoError(t, err)
	assert.Equal(t, "byoa:bot", info.Label)

	// Reverse index resolves
	agentID, ok := rig.binder.AgentForWallet(bound.WalletID)
	require.True(t, ok)
	assert.Equal(t, rec.ID, agentID)

	// Second bind fails without touching the vault
	_, err = rig.binder.BindNewWallet(rec.ID)
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Equal(t, 1, rig.vault.WalletCount())
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(3)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	now := base
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("a-1"), "attempt %d", i)
	}
	assert.False(t, rl.Allow("a-1"))
	assert.Zero(t, rl.Remaining("a-1"))

	// Other agents have their own windows
	assert.True(t, rl.Allow("a-2"))

	// 61 seconds later the window has slid past the first burst
	now = base.Add(61 * time.Second)
	assert.Equal(t, 3, rl.Remaining("a-1"))
	assert.True(t, rl.Allow("a-1"))

	rl.Forget("a-1")
	assert.Equal(t, 3, rl.Remaining("a-1"))
}
