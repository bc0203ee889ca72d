package strategy

import (
	"fmt"

	"github.com/casthq/warden/internal/intent"
)

func balanceGuardDefinition() Definition {
	return Definition{
		Name:        "balance_guard",
		Label:       "Balance Guard",
		Description: "Requests an airdrop only when the balance falls below a critical threshold.",
		Category:    "funding",
		Icon:        "shield",
		SupportedIntents: []intent.ExternalType{
			intent.ExtRequestAirdrop, intent.ExtQueryBalance,
		},
		Schema: []Field{
			{Key: "criticalBalance", Type: FieldNumber, Min: minOf(0.001), Max: maxOf(10), Default: 0.1,
				Description: "Balance in SOL that triggers a refill"},
			{Key: "airdropAmount", Type: FieldNumber, Min: minOf(0.001), Max: maxOf(2), Default: 1.0,
				Description: "SOL requested per refill"},
			{Key: "maxAirdropsPerDay", Type: FieldNumber, Min: minOf(1), Max: maxOf(10), Default: 3.0,
				Description: "Daily refill cap for this agent"},
		},
		DefaultParams: map[string]any{
			"criticalBalance":   0.1,
			"airdropAmount":     1.0,
			"maxAirdropsPerDay": 3.0,
		},
		Factory: func(params map[string]any) (Strategy, error) {
			return &balanceGuard{
				criticalBalance:   floatParam(params, "criticalBalance"),
				airdropAmount:     floatParam(params, "airdropAmount"),
				maxAirdropsPerDay: intParam(params, "maxAirdropsPerDay"),
			}, nil
		},
	}
}

type balanceGuard struct {
	criticalBalance   float64
	airdropAmount     float64
	maxAirdropsPerDay int

	airdropsToday int
}

func (g *balanceGuard) Name() string { return "balance_guard" }

func (g *balanceGuard) Decide(ctx Context) Decision {
	if ctx.Balance.SOL >= g.criticalBalance {
		return wait(fmt.Sprintf("Balance %.4f SOL is above the %.4f SOL critical threshold",
			ctx.Balance.SOL, g.criticalBalance))
	}
	if g.airdropsToday >= g.maxAirdropsPerDay {
		return wait(fmt.Sprintf("Balance is critical but the daily refill cap of %d is reached", g.maxAirdropsPerDay))
	}

	g.airdropsToday++
	return act(intent.Airdrop(ctx.AgentID, g.airdropAmount),
		fmt.Sprintf("Balance %.4f SOL is below the %.4f SOL critical threshold, requesting %.4f SOL",
			ctx.Balance.SOL, g.criticalBalance, g.airdropAmount))
}

func (g *balanceGuard) ResetDaily() { g.airdropsToday = 0 }
