package strategy

import (
	"fmt"

	"github.com/casthq/warden/internal/chain"
	"github.com/casthq/warden/internal/intent"
)

func scheduledPayerDefinition() Definition {
	return Definition{
		Name:        "scheduled_payer",
		Label:       "Scheduled Payer",
		Description: "Pays a single recipient a fixed amount, a capped number of times per day.",
		Category:    "payments",
		Icon:        "calendar",
		SupportedIntents: []intent.ExternalType{
			intent.ExtTransferSol, intent.ExtQueryBalance,
		},
		Schema: []Field{
			{Key: "recipient", Type: FieldString, Required: true,
				Description: "Address paid each cycle"},
			{Key: "amount", Type: FieldNumber, Min: minOf(0.000001), Max: maxOf(10), Default: 0.05,
				Description: "SOL per payment"},
			{Key: "maxPaymentsPerDay", Type: FieldNumber, Min: minOf(1), Max: maxOf(24), Default: 3.0,
				Description: "Daily payment cap for this agent"},
			{Key: "minResidualBalance", Type: FieldNumber, Min: minOf(0), Max: maxOf(100), Default: 0.05,
				Description: "SOL that must remain after a payment"},
		},
		DefaultParams: map[string]any{
			"amount":             0.05,
			"maxPaymentsPerDay":  3.0,
			"minResidualBalance": 0.05,
		},
		Factory: func(params map[string]any) (Strategy, error) {
			return &scheduledPayer{
				recipient:         stringParam(params, "recipient"),
				amount:            floatParam(params, "amount"),
				maxPaymentsPerDay: intParam(params, "maxPaymentsPerDay"),
				minResidual:       floatParam(params, "minResidualBalance"),
			}, nil
		},
	}
}

type scheduledPayer struct {
	recipient         string
	amount            float64
	maxPaymentsPerDay int
	minResidual       float64

	paymentsToday int
}

func (s *scheduledPayer) Name() string { return "scheduled_payer" }

func (s *scheduledPayer) Decide(ctx Context) Decision {
	if s.paymentsToday >= s.maxPaymentsPerDay {
		return wait(fmt.Sprintf("Daily payment cap of %d reached", s.maxPaymentsPerDay))
	}
	if s.recipient == ctx.PublicKey {
		return wait("Skipping self as recipient")
	}

	needed := s.amount + s.minResidual + chain.LamportsToSOL(chain.FeeReserveLamports)
	if ctx.Balance.SOL < needed {
		return wait(fmt.Sprintf("Balance %.4f SOL cannot cover a %.4f SOL payment plus the %.4f SOL residual",
			ctx.Balance.SOL, s.amount, s.minResidual))
	}

	s.paymentsToday++
	return act(intent.TransferSol(ctx.AgentID, s.recipient, s.amount),
		fmt.Sprintf("Paying %.4f SOL to %s (%d of %d today)",
			s.amount, s.recipient, s.paymentsToday, s.maxPaymentsPerDay))
}

func (s *scheduledPayer) ResetDaily() { s.paymentsToday = 0 }
