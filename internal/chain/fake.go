package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/casthq/warden/pkg/errors"
)

// Fake is an in-memory Client used by tests and by local development
// without an RPC endpoint. Balances are tracked per address; airdrops
// and native transfers apply their effects.
type Fake struct {
	mu sync.Mutex

	balances      map[string]uint64
	tokenBalances map[string][]TokenBalance
	signatures    map[string][]string // address -> recent signatures

	nextSlot uint64
	nextSig  int

	// Scriptable failures. When set, the matching operation fails.
	HealthErr  error
	AirdropErr error
	SendErr    error
	BuildErr   error

	// Call records for assertions.
	AirdropCalls []uint64
	SendCalls    []*SignedTransaction

	// AirdropsDisabled simulates a non-test network.
	AirdropsDisabled bool
}

// NewFake creates an empty fake chain.
func NewFake() *Fake {
	return &Fake{
		balances:      make(map[string]uint64),
		tokenBalances: make(map[string][]TokenBalance),
		signatures:    make(map[string][]string),
	}
}

// SetBalance sets an address balance in lamports.
func (f *Fake) SetBalance(address string, lamports uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[address] = lamports
}

// SetTokenBalances sets the token holdings reported for an address.
func (f *Fake) SetTokenBalances(address string, balances []TokenBalance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenBalances[address] = balances
}

// CheckHealth implements Client.
func (f *Fake) CheckHealth(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.HealthErr
}

// GetBalance implements Client.
func (f *Fake) GetBalance(_ context.Context, address string) (Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return NewBalance(f.balances[address]), nil
}

// GetTokenBalances implements Client.
func (f *Fake) GetTokenBalances(_ context.Context, address string) ([]TokenBalance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TokenBalance(nil), f.tokenBalances[address]...), nil
}

// RequestAirdrop implements Client with the same cap and network guards
// as the RPC client.
func (f *Fake) RequestAirdrop(_ context.Context, address string, lamports uint64) (AirdropResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.AirdropsDisabled {
		return AirdropResult{}, errors.Validation("airdrops are not available on this network")
	}
	if lamports == 0 {
		return AirdropResult{}, errors.Validation("airdrop amount must be positive")
	}
	if lamports > MaxAirdropLamports {
		return AirdropResult{}, errors.Validation("airdrop of %.2f SOL exceeds the %.0f SOL per-request cap",
			LamportsToSOL(lamports), LamportsToSOL(MaxAirdropLamports))
	}

	f.AirdropCalls = append(f.AirdropCalls, lamports)
	if f.AirdropErr != nil {
		return AirdropResult{}, f.AirdropErr
	}

	f.balances[address] += lamports
	sig := f.newSignature("airdrop", address)
	f.nextSlot++
	return AirdropResult{Signature: sig, Slot: f.nextSlot}, nil
}

// BuildNativeTransfer implements Client.
func (f *Fake) BuildNativeTransfer(_ context.Context, from, to string, lamports uint64, memo string) (*Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.BuildErr != nil {
		return nil, f.BuildErr
	}
	if lamports == 0 {
		return nil, errors.Validation("transfer amount must be positive")
	}
	return &Transaction{
		Kind:            TxLegacy,
		FeePayer:        from,
		RecentBlockhash: "FakeBlockhash1111111111111111111",
		Instructions: []Instruction{{
			ProgramID: SystemProgramID,
			Accounts: []AccountMeta{
				{PublicKey: from, IsSigner: true, IsWritable: true},
				{PublicKey: to, IsWritable: true},
			},
			Data: encodeTransferData(lamports),
		}},
		Memo: memo,
	}, nil
}

// BuildTokenTransfer implements Client.
func (f *Fake) BuildTokenTransfer(_ context.Context, owner, mint, recipient string, rawAmount uint64, decimals uint8, memo string) (*Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.BuildErr != nil {
		return nil, f.BuildErr
	}
	if rawAmount == 0 {
		return nil, errors.Validation("token transfer amount must be positive")
	}
	return &Transaction{
		Kind:            TxLegacy,
		FeePayer:        owner,
		RecentBlockhash: "FakeBlockhash1111111111111111111",
		Instructions: []Instruction{{
			ProgramID: TokenProgramID,
			Accounts: []AccountMeta{
				{PublicKey: owner, IsSigner: true},
				{PublicKey: mint},
				{PublicKey: recipient, IsWritable: true},
			},
			Data: append(encodeTransferData(rawAmount), decimals),
		}},
		Memo: memo,
	}, nil
}

// BuildArbitraryTransaction implements Client.
func (f *Fake) BuildArbitraryTransaction(_ context.Context, feePayer string, instructions []Instruction, memo string) (*Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.BuildErr != nil {
		return nil, f.BuildErr
	}
	if len(instructions) == 0 {
		return nil, errors.Validation("at least one instruction is required")
	}
	return &Transaction{
		Kind:            TxVersioned,
		FeePayer:        feePayer,
		RecentBlockhash: "FakeBlockhash1111111111111111111",
		Instructions:    instructions,
		Memo:            memo,
	}, nil
}

// DeserializeAndRebindFeePayer implements Client.
func (f *Fake) DeserializeAndRebindFeePayer(_ context.Context, encoded, feePayer string) (*Transaction, error) {
	tx, err := DeserializeTransaction(encoded)
	if err != nil {
		return nil, err
	}
	tx.FeePayer = feePayer
	tx.RecentBlockhash = "FakeBlockhash2222222222222222222"
	return tx, nil
}

// SendTransaction implements Client. Native transfers debit and credit
// tracked balances, including the signature fee.
func (f *Fake) SendTransaction(_ context.Context, tx *SignedTransaction, _ *SendOptions) (SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if tx == nil || tx.Tx == nil || len(tx.Signature) == 0 {
		return SendResult{}, errors.Validation("transaction is not signed")
	}

	f.SendCalls = append(f.SendCalls, tx)
	if f.SendErr != nil {
		return SendResult{}, f.SendErr
	}

	f.applyEffects(tx.Tx)
	sig := f.newSignature("tx", tx.Tx.FeePayer)
	f.nextSlot++
	return SendResult{Signature: sig, Slot: f.nextSlot, Status: "confirmed"}, nil
}

// applyEffects interprets system-program transfers against tracked balances.
func (f *Fake) applyEffects(tx *Transaction) {
	for _, ins := range tx.Instructions {
		if ins.ProgramID != SystemProgramID || len(ins.Accounts) < 2 || len(ins.Data) < 12 {
			continue
		}
		var amount uint64
		for i := 0; i < 8; i++ {
			amount |= uint64(ins.Data[4+i]) << (8 * i)
		}
		from := ins.Accounts[0].PublicKey
		to := ins.Accounts[1].PublicKey
		if f.balances[from] >= amount+FeeReserveLamports {
			f.balances[from] -= amount + FeeReserveLamports
			f.balances[to] += amount
		}
	}
}

// EstimateFee implements Client.
func (f *Fake) EstimateFee(context.Context, *Transaction) (uint64, error) {
	return FeeReserveLamports, nil
}

// RecentSignatures returns the signatures recorded for an address,
// newest first.
func (f *Fake) RecentSignatures(address string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.signatures[address]...)
}

func (f *Fake) newSignature(kind, address string) string {
	f.nextSig++
	sig := fmt.Sprintf("fake-%s-%d", kind, f.nextSig)
	f.signatures[address] = append([]string{sig}, f.signatures[address]...)
	return sig
}

var _ Client = (*Fake)(nil)
