package chain

import "strings"

// nonRetryableFragments is the closed set of send-error markers that
// must never be retried. Matching is case-insensitive substring.
var nonRetryableFragments = []string{
	"insufficient funds",
	"insufficient lamports",
	"invalid account",
	"invalid blockhash",
	"blockhash not found",
	"transaction too large",
	"account not found",
}

// IsNonRetryable reports whether a send error is in the closed
// non-retryable set.
func IsNonRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range nonRetryableFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}
