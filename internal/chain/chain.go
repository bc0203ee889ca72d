// Package chain defines the chain client capability the core depends
// on, plus the transaction shapes the vault signs. The JSON-RPC
// implementation in rpc.go is the only component that talks to the
// network; tests substitute the in-memory Fake.
package chain

import (
	"context"
	"math"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL uint64 = 1_000_000_000

// FeeReserveLamports is the reserve assumed per native transfer when
// checking residual balance.
const FeeReserveLamports uint64 = 5_000

// TokenFeeReserveLamports is the reserve assumed per token transfer:
// signature fee plus possible associated-account rent.
const TokenFeeReserveLamports uint64 = 2_044_280

// MaxAirdropLamports is the hard per-request airdrop cap (2 SOL).
const MaxAirdropLamports = 2 * LamportsPerSOL

// Well-known program addresses.
const (
	SystemProgramID = "11111111111111111111111111111111"
	TokenProgramID  = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
)

// SOLToLamports converts decimal SOL to lamports, rounding to the
// nearest lamport.
func SOLToLamports(sol float64) uint64 {
	if sol <= 0 {
		return 0
	}
	return uint64(math.Round(sol * float64(LamportsPerSOL)))
}

// LamportsToSOL converts lamports to decimal SOL.
func LamportsToSOL(lamports uint64) float64 {
	return float64(lamports) / float64(LamportsPerSOL)
}

// Balance is a native balance in both representations.
type Balance struct {
	Lamports uint64  `json:"lamports"`
	SOL      float64 `json:"sol"`
}

// NewBalance builds a Balance from lamports.
func NewBalance(lamports uint64) Balance {
	return Balance{Lamports: lamports, SOL: LamportsToSOL(lamports)}
}

// TokenBalance is one token holding of an address.
type TokenBalance struct {
	Mint     string  `json:"mint"`
	Amount   uint64  `json:"amount"` // raw units
	Decimals uint8   `json:"decimals"`
	UIAmount float64 `json:"uiAmount"`
}

// AirdropResult reports a faucet airdrop.
type AirdropResult struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
}

// SendResult reports a submitted transaction once confirmed.
type SendResult struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	Status    string `json:"status"` // processed, confirmed, finalized
}

// SendOptions tune transaction submission.
type SendOptions struct {
	// SkipPreflight disables simulation before submission.
	SkipPreflight bool
}

// Client is the chain capability. Implementations must not leak secret
// material; signing happens in the vault.
type Client interface {
	// CheckHealth verifies the RPC endpoint is reachable and healthy.
	CheckHealth(ctx context.Context) error

	// GetBalance retrieves the native balance for an address.
	GetBalance(ctx context.Context, address string) (Balance, error)

	// GetTokenBalances lists token holdings for an address.
	GetTokenBalances(ctx context.Context, address string) ([]TokenBalance, error)

	// RequestAirdrop requests lamports from the cluster faucet. Fails on
	// non-test networks and on amounts above MaxAirdropLamports.
	RequestAirdrop(ctx context.Context, address string, lamports uint64) (AirdropResult, error)

	// BuildNativeTransfer builds an unsigned native transfer.
	BuildNativeTransfer(ctx context.Context, from, to string, lamports uint64, memo string) (*Transaction, error)

	// BuildTokenTransfer builds an unsigned token transfer.
	BuildTokenTransfer(ctx context.Context, owner, mint, recipient string, rawAmount uint64, decimals uint8, memo string) (*Transaction, error)

	// BuildArbitraryTransaction builds an unsigned transaction from
	// caller-supplied instructions.
	BuildArbitraryTransaction(ctx context.Context, feePayer string, instructions []Instruction, memo string) (*Transaction, error)

	// DeserializeAndRebindFeePayer decodes a serialized transaction,
	// rebinds its fee payer, drops stale signatures, and refreshes the
	// blockhash.
	DeserializeAndRebindFeePayer(ctx context.Context, encoded, feePayer string) (*Transaction, error)

	// SendTransaction submits a signed transaction and waits for
	// confirmed commitment. Transient errors are retried with
	// exponential backoff; the non-retryable set is never retried.
	SendTransaction(ctx context.Context, tx *SignedTransaction, opts *SendOptions) (SendResult, error)

	// EstimateFee returns the fee in lamports for a transaction.
	EstimateFee(ctx context.Context, tx *Transaction) (uint64, error)
}
