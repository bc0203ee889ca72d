package strategy

import (
	"fmt"
	"math/rand"

	"github.com/casthq/warden/internal/chain"
	"github.com/casthq/warden/internal/intent"
)

func distributorDefinition() Definition {
	return Definition{
		Name:        "distributor",
		Label:       "Distributor",
		Description: "Cycles a recipient list, sending a fixed amount per cycle behind a probability gate.",
		Category:    "payments",
		Icon:        "send",
		SupportedIntents: []intent.ExternalType{
			intent.ExtTransferSol, intent.ExtQueryBalance,
		},
		Schema: []Field{
			{Key: "recipients", Type: FieldStringList, Required: true,
				Description: "Addresses to cycle through"},
			{Key: "amountPerTransfer", Type: FieldNumber, Min: minOf(0.000001), Max: maxOf(10), Default: 0.1,
				Description: "SOL sent per transfer"},
			{Key: "distributionProbability", Type: FieldNumber, Min: minOf(0), Max: maxOf(1), Default: 0.3,
				Description: "Chance a cycle sends at all"},
			{Key: "maxTransfersPerDay", Type: FieldNumber, Min: minOf(1), Max: maxOf(50), Default: 10.0,
				Description: "Daily transfer cap for this agent"},
			{Key: "minResidualBalance", Type: FieldNumber, Min: minOf(0), Max: maxOf(100), Default: 0.05,
				Description: "SOL that must remain after a transfer"},
		},
		DefaultParams: map[string]any{
			"amountPerTransfer":       0.1,
			"distributionProbability": 0.3,
			"maxTransfersPerDay":      10.0,
			"minResidualBalance":      0.05,
		},
		Factory: func(params map[string]any) (Strategy, error) {
			return &distributor{
				recipients:         stringListParam(params, "recipients"),
				amountPerTransfer:  floatParam(params, "amountPerTransfer"),
				probability:        floatParam(params, "distributionProbability"),
				maxTransfersPerDay: intParam(params, "maxTransfersPerDay"),
				minResidual:        floatParam(params, "minResidualBalance"),
				rng:                rand.Float64,
			}, nil
		},
	}
}

type distributor struct {
	recipients         []string
	amountPerTransfer  float64
	probability        float64
	maxTransfersPerDay int
	minResidual        float64

	index          int
	transfersToday int
	rng            func() float64
}

func (d *distributor) Name() string { return "distributor" }

func (d *distributor) Decide(ctx Context) Decision {
	if len(d.recipients) == 0 {
		return wait("No recipients configured")
	}
	if d.transfersToday >= d.maxTransfersPerDay {
		return wait(fmt.Sprintf("Daily transfer cap of %d reached", d.maxTransfersPerDay))
	}

	recipient := d.recipients[d.index%len(d.recipients)]
	if recipient == ctx.PublicKey {
		d.index++
		return wait("Skipping self as recipient")
	}

	needed := d.amountPerTransfer + d.minResidual + chain.LamportsToSOL(chain.FeeReserveLamports)
	if ctx.Balance.SOL < needed {
		return wait(fmt.Sprintf("Balance %.4f SOL cannot cover a %.4f SOL transfer plus the %.4f SOL residual",
			ctx.Balance.SOL, d.amountPerTransfer, d.minResidual))
	}

	if d.rng() >= d.probability {
		return wait("Probability gate closed this cycle")
	}

	d.index++
	d.transfersToday++
	return act(intent.TransferSol(ctx.AgentID, recipient, d.amountPerTransfer),
		fmt.Sprintf("Sending %.4f SOL to %s (recipient %d of %d)",
			d.amountPerTransfer, recipient, (d.index-1)%len(d.recipients)+1, len(d.recipients)))
}

func (d *distributor) ResetDaily() { d.transfersToday = 0 }
