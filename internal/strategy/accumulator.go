package strategy

import (
	"fmt"
	"math/rand"

	"github.com/casthq/warden/internal/intent"
)

// topUpProbability gates the soft top-up between min and target so an
// accumulator does not drain the faucet every cycle.
const topUpProbability = 0.1

func accumulatorDefinition() Definition {
	return Definition{
		Name:        "accumulator",
		Label:       "Accumulator",
		Description: "Keeps the wallet funded: airdrops below a minimum, soft-tops toward a target.",
		Category:    "funding",
		Icon:        "piggy-bank",
		SupportedIntents: []intent.ExternalType{
			intent.ExtRequestAirdrop, intent.ExtQueryBalance,
		},
		Schema: []Field{
			{Key: "targetBalance", Type: FieldNumber, Min: minOf(0.1), Max: maxOf(100), Default: 2.0,
				Description: "Balance in SOL the strategy accumulates toward"},
			{Key: "minBalance", Type: FieldNumber, Min: minOf(0.01), Max: maxOf(100), Default: 0.5,
				Description: "Balance in SOL below which an airdrop is always requested"},
			{Key: "airdropAmount", Type: FieldNumber, Min: minOf(0.001), Max: maxOf(2), Default: 1.0,
				Description: "SOL requested per airdrop"},
			{Key: "maxAirdropsPerDay", Type: FieldNumber, Min: minOf(1), Max: maxOf(20), Default: 5.0,
				Description: "Daily airdrop cap for this agent"},
		},
		DefaultParams: map[string]any{
			"targetBalance":     2.0,
			"minBalance":        0.5,
			"airdropAmount":     1.0,
			"maxAirdropsPerDay": 5.0,
		},
		Factory: func(params map[string]any) (Strategy, error) {
			return &accumulator{
				targetBalance:     floatParam(params, "targetBalance"),
				minBalance:        floatParam(params, "minBalance"),
				airdropAmount:     floatParam(params, "airdropAmount"),
				maxAirdropsPerDay: intParam(params, "maxAirdropsPerDay"),
				rng:               rand.Float64,
			}, nil
		},
	}
}

type accumulator struct {
	targetBalance     float64
	minBalance        float64
	airdropAmount     float64
	maxAirdropsPerDay int

	airdropsToday int
	rng           func() float64
}

func (a *accumulator) Name() string { return "accumulator" }

func (a *accumulator) Decide(ctx Context) Decision {
	if a.airdropsToday >= a.maxAirdropsPerDay {
		return wait(fmt.Sprintf("Daily airdrop cap of %d reached", a.maxAirdropsPerDay))
	}

	balance := ctx.Balance.SOL
	if balance < a.minBalance {
		a.airdropsToday++
		return act(intent.Airdrop(ctx.AgentID, a.airdropAmount),
			fmt.Sprintf("Balance %.4f SOL is below the %.4f SOL minimum, requesting %.4f SOL airdrop",
				balance, a.minBalance, a.airdropAmount))
	}

	if balance < a.targetBalance && a.rng() < topUpProbability {
		a.airdropsToday++
		return act(intent.Airdrop(ctx.AgentID, a.airdropAmount),
			fmt.Sprintf("Topping up %.4f SOL toward the %.4f SOL target", balance, a.targetBalance))
	}

	if balance < a.targetBalance {
		return wait(fmt.Sprintf("Balance %.4f SOL is below target, waiting for a top-up window", balance))
	}
	return wait(fmt.Sprintf("Balance %.4f SOL meets the %.4f SOL target", balance, a.targetBalance))
}

func (a *accumulator) ResetDaily() { a.airdropsToday = 0 }

// AirdropsToday reports the daily counter, for stats.
func (a *accumulator) AirdropsToday() int { return a.airdropsToday }
