// Package intent defines the declarative actions agents submit for
// execution, the canonical external intent enum, and the shared
// intent-history store that built-in and external agents both feed.
package intent

import (
	"time"

	"github.com/google/uuid"
)

// Kind tags an intent variant.
type Kind string

// Intent variants.
const (
	KindAirdrop       Kind = "airdrop"
	KindTransferSol   Kind = "transfer_sol"
	KindTransferToken Kind = "transfer_token"
	KindQueryBalance  Kind = "check_balance"
	KindAutonomous    Kind = "autonomous"
)

// Autonomous action names recognised by the dispatcher.
const (
	ActionAirdrop             = "airdrop"
	ActionTransferSol         = "transfer_sol"
	ActionTransferToken       = "transfer_token"
	ActionQueryBalance        = "query_balance"
	ActionExecuteInstructions = "execute_instructions"
	ActionRawTransaction      = "raw_transaction"
	ActionSwap                = "swap"
	ActionCreateToken         = "create_token"
)

// Intent is the tagged-variant action description. Only the fields of
// the active variant are populated; dispatch switches on Kind.
type Intent struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agentId"`
	Kind      Kind      `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Airdrop, TransferSol, TransferToken
	Amount float64 `json:"amount,omitempty"` // decimal SOL (or UI token units)

	// TransferSol, TransferToken
	Recipient string `json:"recipient,omitempty"`

	// TransferToken
	Mint string `json:"mint,omitempty"`

	// Autonomous
	Action string         `json:"action,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// New creates an intent of the given kind for an agent, with a fresh id
// and the current timestamp.
func New(kind Kind, agentID string) *Intent {
	return &Intent{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

// Airdrop builds an airdrop intent.
func Airdrop(agentID string, amount float64) *Intent {
	it := New(KindAirdrop, agentID)
	it.Amount = amount
	return it
}

// TransferSol builds a native transfer intent.
func TransferSol(agentID, recipient string, amount float64) *Intent {
	it := New(KindTransferSol, agentID)
	it.Recipient = recipient
	it.Amount = amount
	return it
}

// TransferToken builds a token transfer intent.
func TransferToken(agentID, mint, recipient string, amount float64) *Intent {
	it := New(KindTransferToken, agentID)
	it.Mint = mint
	it.Recipient = recipient
	it.Amount = amount
	return it
}

// QueryBalance builds a balance query intent.
func QueryBalance(agentID string) *Intent {
	return New(KindQueryBalance, agentID)
}

// Autonomous builds an autonomous intent carrying an action name and its
// free-form parameters.
func Autonomous(agentID, action string, params map[string]any) *Intent {
	it := New(KindAutonomous, agentID)
	it.Action = action
	it.Params = params
	return it
}

// IsTransfer reports whether the intent moves funds out of the wallet.
func (i *Intent) IsTransfer() bool {
	return i.Kind == KindTransferSol || i.Kind == KindTransferToken
}

// ExternalType is the canonical enum used on the external API surface
// and in the shared history feed.
type ExternalType string

// Canonical external intent types.
const (
	ExtRequestAirdrop ExternalType = "REQUEST_AIRDROP"
	ExtTransferSol    ExternalType = "TRANSFER_SOL"
	ExtTransferToken  ExternalType = "TRANSFER_TOKEN"
	ExtQueryBalance   ExternalType = "QUERY_BALANCE"
	ExtAutonomous     ExternalType = "AUTONOMOUS"
)

// AllExternalTypes lists the closed set of external intent types.
func AllExternalTypes() []ExternalType {
	return []ExternalType{ExtRequestAirdrop, ExtTransferSol, ExtTransferToken, ExtQueryBalance, ExtAutonomous}
}

// IsValidExternalType reports whether s names a known external type.
func IsValidExternalType(s ExternalType) bool {
	switch s {
	case ExtRequestAirdrop, ExtTransferSol, ExtTransferToken, ExtQueryBalance, ExtAutonomous:
		return true
	default:
		return false
	}
}

// externalByKind is the fixed mapping from internal intent kind to the
// canonical external enum.
var externalByKind = map[Kind]ExternalType{
	KindAirdrop:       ExtRequestAirdrop,
	KindTransferSol:   ExtTransferSol,
	KindTransferToken: ExtTransferToken,
	KindQueryBalance:  ExtQueryBalance,
	KindAutonomous:    ExtAutonomous,
}

// External returns the canonical external type for an internal kind.
func (k Kind) External() ExternalType {
	if ext, ok := externalByKind[k]; ok {
		return ext
	}
	return ExtAutonomous
}

// KindForExternal returns the internal kind for an external type.
func KindForExternal(ext ExternalType) (Kind, bool) {
	for k, e := range externalByKind {
		if e == ext {
			return k, true
		}
	}
	return "", false
}
