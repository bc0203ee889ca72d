// Package strategy holds the catalog of built-in agent strategies: the
// registry with per-strategy parameter schemas, and the decision
// functions the orchestrator invokes each cycle.
package strategy

import (
	"github.com/casthq/warden/internal/chain"
	"github.com/casthq/warden/internal/intent"
)

// Context is the snapshot of chain state a strategy decides on. The
// orchestrator assembles it before each cycle; strategies never perform
// I/O themselves.
type Context struct {
	AgentID          string
	PublicKey        string
	Balance          chain.Balance
	TokenBalances    []chain.TokenBalance
	RecentSignatures []string // newest first, at most 10
}

// Decision is a strategy's verdict for one cycle.
type Decision struct {
	ShouldAct bool
	Intent    *intent.Intent
	Reasoning string
}

func wait(reasoning string) Decision {
	return Decision{Reasoning: reasoning}
}

func act(it *intent.Intent, reasoning string) Decision {
	return Decision{ShouldAct: true, Intent: it, Reasoning: reasoning}
}

// Strategy is one agent's decision function plus its per-day state.
// Implementations are not safe for concurrent use; the orchestrator's
// non-overlapping cycle guarantee is what serializes access.
type Strategy interface {
	// Name returns the registry name of the strategy kind.
	Name() string

	// Decide inspects the context and returns the cycle's decision.
	Decide(ctx Context) Decision

	// ResetDaily zeroes the strategy's daily counters. Invoked by the
	// scheduler's midnight tick.
	ResetDaily()
}

// Factory builds a strategy instance from normalized parameters.
type Factory func(params map[string]any) (Strategy, error)
