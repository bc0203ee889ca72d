package byoa

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casthq/warden/internal/intent"
	"github.com/casthq/warden/pkg/errors"
)

func queryOnlyRegistration(name string) Registration {
	return Registration{
		Name:             name,
		Kind:             KindLocal,
		SupportedIntents: []intent.ExternalType{intent.ExtQueryBalance},
	}
}

func TestRegister(t *testing.T) {
	t.Parallel()

	r := NewRegistry(10, nil)
	rec, token, err := r.Register(queryOnlyRegistration("bot-1"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(token, "wrd_agt_"))
	assert.Len(t, token, len("wrd_agt_")+64) // 32 random bytes, hex
	assert.Equal(t, StatusRegistered, rec.Status)
	assert.Empty(t, rec.WalletID)

	// The raw token authenticates back to the agent
	got, err := r.AuthenticateToken(token)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.NotNil(t, got.LastActiveAt)
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	r := NewRegistry(10, nil)

	cases := []struct {
		name string
		reg  Registration
	}{
		{"empty name", Registration{SupportedIntents: []intent.ExternalType{intent.ExtQueryBalance}}},
		{"name too long", queryOnlyRegistration(strings.Repeat("x", 101))},
		{"no intents", Registration{Name: "bot", Kind: KindLocal}},
		{"unknown intent", Registration{Name: "bot", SupportedIntents: []intent.ExternalType{"MINT_NFT"}}},
		{"remote without endpoint", Registration{Name: "bot", Kind: KindRemote,
			SupportedIntents: []intent.ExternalType{intent.ExtQueryBalance}}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := r.Register(tc.reg)
			assert.True(t, errors.Is(err, errors.ErrValidation), "expected validation error")
		})
	}
}

func TestRegister_NameUniquenessAmongNonRevoked(t *testing.T) {
	t.Parallel()

	r := NewRegistry(10, nil)
	first, _, err := r.Register(queryOnlyRegistration("bot"))
	require.NoError(t, err)

	_, _, err = r.Register(queryOnlyRegistration("bot"))
	assert.True(t, errors.Is(err, errors.ErrValidation))

	// A revoked agent releases its name
	require.NoError(t, r.Revoke(first.ID))
	_, _, err = r.Register(queryOnlyRegistration("bot"))
	assert.NoError(t, err)
}

func TestRegister_Capacity(t *testing.T) {
	t.Parallel()

	r := NewRegistry(1, nil)
	_, _, err := r.Register(queryOnlyRegistration("bot-1"))
	require.NoError(t, err)

	_, _, err = r.Register(queryOnlyRegistration("bot-2"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeCapacity, errors.Code(err))
}

func TestAuthenticateToken_Failures(t *testing.T) {
	t.Parallel()

	r := NewRegistry(10, nil)
	rec, token, err := r.Register(queryOnlyRegistration("bot"))
	require.NoError(t, err)

	_, err = r.AuthenticateToken("")
	assert.True(t, errors.Is(err, errors.ErrAuth))

	_, err = r.AuthenticateToken("wrd_agt_" + strings.Repeat("0", 64))
	assert.True(t, errors.Is(err, errors.ErrAuth))

	// Revocation is terminal: the original token stops authenticating
	require.NoError(t, r.Revoke(rec.ID))
	_, err = r.AuthenticateToken(token)
	assert.True(t, errors.Is(err, errors.ErrAuth))

	// Revoking twice is a no-op
	assert.NoError(t, r.Revoke(rec.ID))
}

func TestBindWallet(t *testing.T) {
	t.Parallel()

	r := NewRegistry(10, nil)
	rec, _, err := r.Register(queryOnlyRegistration("bot"))
	require.NoError(t, err)

	require.NoError(t, r.BindWallet(rec.ID, "w-1", "Pub111"))
	got, err := r.GetAgent(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, "w-1", got.WalletID)
	assert.Equal(t, "Pub111", got.WalletPublicKey)

	// One wallet per agent, ever
	err = r.BindWallet(rec.ID, "w-2", "Pub222")
	assert.True(t, errors.Is(err, errors.ErrValidation))

	err = r.BindWallet("missing", "w-3", "Pub333")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestLifecycle(t *testing.T) {
	t.Parallel()

	r := NewRegistry(10, nil)
	rec, _, err := r.Register(queryOnlyRegistration("bot"))
	require.NoError(t, err)

	// Activation requires a bound wallet
	err = r.Activate(rec.ID)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	require.NoError(t, r.BindWallet(rec.ID, "w-1", "Pub111"))
	require.NoError(t, r.Deactivate(rec.ID))
	got, _ := r.GetAgent(rec.ID)
	assert.Equal(t, StatusInactive, got.Status)

	require.NoError(t, r.Activate(rec.ID))
	got, _ = r.GetAgent(rec.ID)
	assert.Equal(t, StatusActive, got.Status)

	// Nothing moves a revoked agent
	require.NoError(t, r.Revoke(rec.ID))
	assert.True(t, errors.Is(r.Activate(rec.ID), errors.ErrAuth))
	assert.True(t, errors.Is(r.Deactivate(rec.ID), errors.ErrAuth))
}

func TestGetActiveAndAll(t *testing.T) {
	t.Parallel()

	r := NewRegistry(10, nil)
	a, _, err := r.Register(queryOnlyRegistration("bot-a"))
	require.NoError(t, err)
	_, _, err = r.Register(queryOnlyRegistration("bot-b"))
	require.NoError(t, err)

	require.NoError(t, r.BindWallet(a.ID, "w-1", "Pub111"))

	assert.Len(t, r.GetAll(), 2)
	active := r.GetActive()
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)
	assert.Equal(t, 2, r.Count())
}
