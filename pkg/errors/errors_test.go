package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWardenError_Error(t *testing.T) {
	t.Parallel()

	err := &WardenError{
		Code:    CodePolicyViolation,
		Message: "amount exceeds limit",
		Details: map[string]string{"amount": "2.5", "limit": "1.0"},
	}

	// Details are sorted for deterministic output
	assert.Equal(t, "amount exceeds limit (amount: 2.5) (limit: 1.0)", err.Error())
}

func TestIs_MatchesByCode(t *testing.T) {
	t.Parallel()

	err := PolicyViolation("transfer of %s exceeds max", "2.5")
	assert.True(t, Is(err, ErrPolicyViolation))
	assert.False(t, Is(err, ErrNotFound))
}

func TestWrap_PreservesCode(t *testing.T) {
	t.Parallel()

	inner := NotFound("wallet", "w-123")
	wrapped := Wrap(inner, "executing intent")

	require.Error(t, wrapped)
	assert.Equal(t, CodeNotFound, Code(wrapped))
	assert.True(t, Is(wrapped, ErrNotFound))
	assert.Contains(t, wrapped.Error(), "executing intent")
}

func TestWrap_NilPassthrough(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Wrap(nil, "context"))
	assert.NoError(t, WithDetails(nil, map[string]string{"k": "v"}))
	assert.NoError(t, WithSuggestion(nil, "try again"))
}

func TestWrap_ForeignError(t *testing.T) {
	t.Parallel()

	wrapped := Wrap(fmt.Errorf("socket closed"), "sending transaction")
	assert.Equal(t, CodeInternal, Code(wrapped))
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{Validation("bad field"), http.StatusBadRequest},
		{NotFound("agent", "a-1"), http.StatusNotFound},
		{Auth("missing bearer token"), http.StatusUnauthorized},
		{PolicyViolation("daily limit"), http.StatusUnprocessableEntity},
		{New(CodeRateLimited, "rate limit exceeded"), http.StatusUnprocessableEntity},
		{Chain("rpc unavailable", nil), http.StatusBadGateway},
		{Internal("nil deref", nil), http.StatusInternalServerError},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), "error: %v", tc.err)
	}
}

func TestWithSuggestion(t *testing.T) {
	t.Parallel()

	err := WithSuggestion(Validation("unknown strategy"), `did you mean "accumulator"?`)

	var we *WardenError
	require.True(t, As(err, &we))
	assert.Equal(t, `did you mean "accumulator"?`, we.Suggestion)
	assert.Equal(t, CodeValidation, we.Code)
}
