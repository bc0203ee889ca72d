package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casthq/warden/pkg/errors"
)

func TestRegistry_Builtins(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for _, name := range []string{"accumulator", "distributor", "balance_guard", "scheduled_payer"} {
		assert.True(t, r.Has(name), name)
		def, err := r.Get(name)
		require.NoError(t, err)
		assert.Equal(t, name, def.Name)
		assert.NotEmpty(t, def.SupportedIntents)
		assert.NotNil(t, def.Factory)
	}

	list := r.List()
	require.Len(t, list, 4)
	// Sorted by name
	assert.Equal(t, "accumulator", list[0].Name)
	assert.Equal(t, "scheduled_payer", list[3].Name)
}

func TestRegistry_UnknownNameSuggestsClosest(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, err := r.Get("acumulator")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	var we *errors.WardenError
	require.True(t, errors.As(err, &we))
	assert.Contains(t, we.Suggestion, "accumulator")
}

func TestRegistry_ValidateParams(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	// Defaults fill missing fields; ints coerce to float
	params, err := r.ValidateParams("accumulator", map[string]any{
		"minBalance":        1,
		"maxAirdropsPerDay": 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, params["minBalance"])
	assert.Equal(t, 2.0, params["maxAirdropsPerDay"])
	assert.Equal(t, 2.0, params["targetBalance"])
	assert.Equal(t, 1.0, params["airdropAmount"])

	// Out-of-range rejected
	_, err = r.ValidateParams("accumulator", map[string]any{"airdropAmount": 5.0})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	// Wrong type rejected
	_, err = r.ValidateParams("accumulator", map[string]any{"minBalance": "lots"})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	// Missing required field rejected
	_, err = r.ValidateParams("distributor", map[string]any{})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	// Unknown fields preserved softly
	params, err = r.ValidateParams("distributor", map[string]any{
		"recipients": []any{"A1", "B2"},
		"custom":     "kept",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "B2"}, params["recipients"])
	assert.Equal(t, "kept", params["custom"])
}

func TestRegistry_DTOsCarryNoFactories(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	dtos := r.ListDTOs()
	require.Len(t, dtos, 4)
	for _, dto := range dtos {
		assert.NotEmpty(t, dto.Fields)
		assert.NotEmpty(t, dto.Label)
	}

	dto, err := r.ToDTO("balance_guard")
	require.NoError(t, err)
	assert.Equal(t, "Balance Guard", dto.Label)

	_, err = r.ToDTO("nope")
	assert.Error(t, err)
}

func TestRegistry_NewBuildsStrategy(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	s, err := r.New("scheduled_payer", map[string]any{"recipient": "R1"})
	require.NoError(t, err)
	assert.Equal(t, "scheduled_payer", s.Name())

	_, err = r.New("scheduled_payer", map[string]any{})
	assert.True(t, errors.Is(err, errors.ErrValidation))
}
