package vault

import (
	"github.com/casthq/warden/internal/chain"
	"github.com/casthq/warden/internal/intent"
	"github.com/casthq/warden/pkg/errors"
)

// SafetyFloorLamports is the built-in minimum residual balance for
// autonomous intents (0.01 SOL). The relaxed autonomous policy never
// goes below it, whatever the wallet policy says.
const SafetyFloorLamports = chain.LamportsPerSOL / 100

// autonomousRelaxFactor doubles the daily and per-transfer caps for
// autonomous intents.
const autonomousRelaxFactor = 2

// Policy is the per-wallet spending policy. Amounts are lamports.
type Policy struct {
	// MaxTransferLamports caps a single outbound transfer.
	MaxTransferLamports uint64 `json:"maxTransferLamports"`

	// MaxDailyTransfers caps counted actions per local day.
	MaxDailyTransfers int `json:"maxDailyTransfers"`

	// MinResidualLamports is the balance that must remain after a
	// transfer and its fee reserve.
	MinResidualLamports uint64 `json:"minResidualLamports"`

	// AllowRecipients, when non-empty, is the only set of permitted
	// transfer recipients.
	AllowRecipients []string `json:"allowRecipients,omitempty"`

	// DenyRecipients are always rejected, even if allow-listed.
	DenyRecipients []string `json:"denyRecipients,omitempty"`
}

// DefaultPolicy returns the policy assigned to new wallets.
func DefaultPolicy() Policy {
	return Policy{
		MaxTransferLamports: 1 * chain.LamportsPerSOL,
		MaxDailyTransfers:   10,
		MinResidualLamports: chain.LamportsPerSOL / 20, // 0.05 SOL
	}
}

// PolicyPatch updates individual policy fields; nil fields are left
// unchanged. Recipient lists replace wholesale when non-nil.
type PolicyPatch struct {
	MaxTransferLamports *uint64   `json:"maxTransferLamports,omitempty"`
	MaxDailyTransfers   *int      `json:"maxDailyTransfers,omitempty"`
	MinResidualLamports *uint64   `json:"minResidualLamports,omitempty"`
	AllowRecipients     *[]string `json:"allowRecipients,omitempty"`
	DenyRecipients      *[]string `json:"denyRecipients,omitempty"`
}

func (p *Policy) apply(patch PolicyPatch) {
	if patch.MaxTransferLamports != nil {
		p.MaxTransferLamports = *patch.MaxTransferLamports
	}
	if patch.MaxDailyTransfers != nil {
		p.MaxDailyTransfers = *patch.MaxDailyTransfers
	}
	if patch.MinResidualLamports != nil {
		p.MinResidualLamports = *patch.MinResidualLamports
	}
	if patch.AllowRecipients != nil {
		p.AllowRecipients = append([]string(nil), (*patch.AllowRecipients)...)
	}
	if patch.DenyRecipients != nil {
		p.DenyRecipients = append([]string(nil), (*patch.DenyRecipients)...)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// checkRecipient applies the allow/deny recipient rules.
func (p *Policy) checkRecipient(recipient string) error {
	if len(p.AllowRecipients) > 0 && !contains(p.AllowRecipients, recipient) {
		return errors.PolicyViolation("recipient %s is not in the allow list", recipient)
	}
	if contains(p.DenyRecipients, recipient) {
		return errors.PolicyViolation("recipient %s is deny-listed", recipient)
	}
	return nil
}

// EvaluateIntent checks an intent against the wallet policy, the daily
// counter, and the current balance. Pure and deterministic: no I/O, no
// clock reads. Amounts in the intent are decimal SOL; balance is
// lamports.
func EvaluateIntent(p Policy, dailyCount int, it *intent.Intent, balanceLamports uint64) error {
	if it.Kind == intent.KindAutonomous {
		return evaluateAutonomous(p, dailyCount, it, balanceLamports)
	}

	// Reads are never counted or restricted.
	if it.Kind == intent.KindQueryBalance {
		return nil
	}

	if dailyCount >= p.MaxDailyTransfers {
		return errors.PolicyViolation("daily limit of %d transfers exceeded", p.MaxDailyTransfers)
	}

	switch it.Kind {
	case intent.KindAirdrop:
		return nil

	case intent.KindTransferSol:
		amount := chain.SOLToLamports(it.Amount)
		if amount == 0 {
			return errors.PolicyViolation("transfer amount must be positive")
		}
		if amount > p.MaxTransferLamports {
			return errors.PolicyViolation("transfer of %.9f SOL exceeds the %.9f SOL per-transfer cap",
				it.Amount, chain.LamportsToSOL(p.MaxTransferLamports))
		}
		if err := p.checkRecipient(it.Recipient); err != nil {
			return err
		}
		needed := amount + chain.FeeReserveLamports + p.MinResidualLamports
		if balanceLamports < needed {
			return errors.PolicyViolation("transfer would leave less than the %.9f SOL minimum residual balance",
				chain.LamportsToSOL(p.MinResidualLamports))
		}
		return nil

	case intent.KindTransferToken:
		if it.Amount <= 0 {
			return errors.PolicyViolation("token transfer amount must be positive")
		}
		if err := p.checkRecipient(it.Recipient); err != nil {
			return err
		}
		if balanceLamports < chain.TokenFeeReserveLamports+p.MinResidualLamports {
			return errors.PolicyViolation("token transfer fees would breach the minimum residual balance")
		}
		return nil

	default:
		return errors.Validation("unknown intent kind %q", it.Kind)
	}
}

// evaluateAutonomous applies the relaxed autonomous rules: doubled daily
// and per-transfer caps, and a hard residual floor that never drops
// below the built-in safety floor. Autonomous intents are admitted under
// these floors, never silently stripped.
func evaluateAutonomous(p Policy, dailyCount int, it *intent.Intent, balanceLamports uint64) error {
	if dailyCount >= autonomousRelaxFactor*p.MaxDailyTransfers {
		return errors.PolicyViolation("autonomous daily limit of %d actions exceeded",
			autonomousRelaxFactor*p.MaxDailyTransfers)
	}

	floor := p.MinResidualLamports
	if floor < SafetyFloorLamports {
		floor = SafetyFloorLamports
	}

	switch it.Action {
	case intent.ActionQueryBalance:
		return nil

	case intent.ActionTransferSol:
		amount := chain.SOLToLamports(paramFloat(it.Params, "amount"))
		if amount == 0 {
			return errors.PolicyViolation("autonomous transfer amount must be positive")
		}
		if amount > autonomousRelaxFactor*p.MaxTransferLamports {
			return errors.PolicyViolation("autonomous transfer exceeds the relaxed %.9f SOL cap",
				chain.LamportsToSOL(autonomousRelaxFactor*p.MaxTransferLamports))
		}
		if recipient := paramString(it.Params, "recipient"); recipient != "" {
			if err := p.checkRecipient(recipient); err != nil {
				return err
			}
		}
		if balanceLamports < amount+chain.FeeReserveLamports+floor {
			return errors.PolicyViolation("autonomous transfer would breach the %.9f SOL residual floor",
				chain.LamportsToSOL(floor))
		}
		return nil

	case intent.ActionTransferToken:
		if balanceLamports < chain.TokenFeeReserveLamports+floor {
			return errors.PolicyViolation("autonomous token transfer would breach the %.9f SOL residual floor",
				chain.LamportsToSOL(floor))
		}
		return nil

	default:
		// Arbitrary instructions, raw transactions, swaps: spend is not
		// statically knowable, but fees alone must not breach the floor.
		if balanceLamports < chain.FeeReserveLamports+floor {
			return errors.PolicyViolation("autonomous action would breach the %.9f SOL residual floor",
				chain.LamportsToSOL(floor))
		}
		return nil
	}
}

func paramFloat(params map[string]any, key string) float64 {
	if params == nil {
		return 0
	}
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func paramString(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	if s, ok := params[key].(string); ok {
		return s
	}
	return ""
}
