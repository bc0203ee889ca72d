// Package vault is the sole holder of secret key material. It generates
// keypairs, encrypts them at rest, signs transactions, and enforces the
// per-wallet spending policy. Plaintext secrets exist only on the stack
// of a signing call.
package vault

import (
	"crypto/ed25519"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/tyler-smith/go-bip39"
	"go.uber.org/zap"

	"github.com/casthq/warden/internal/chain"
	"github.com/casthq/warden/internal/intent"
	"github.com/casthq/warden/pkg/errors"
)

// WalletInfo is the public view of a wallet. It never carries secret or
// encrypted material.
type WalletInfo struct {
	ID        string    `json:"id"`
	PublicKey string    `json:"publicKey"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"createdAt"`
}

// ExportedWallet is one entry of a vault backup: public metadata plus
// the at-rest ciphertext. Plaintext secrets are never exported.
type ExportedWallet struct {
	Info            WalletInfo `json:"info"`
	EncryptedSecret []byte     `json:"encryptedSecret"`
	Policy          Policy     `json:"policy"`
}

type walletRecord struct {
	info           WalletInfo
	encrypted      []byte
	policy         Policy
	dailyTransfers int
}

// Vault owns all wallets, their policies, and their daily counters.
type Vault struct {
	mu         sync.Mutex
	passphrase []byte
	wallets    map[string]*walletRecord
	resetTimer *time.Timer
	closed     bool
	now        func() time.Time
	log        *zap.Logger
}

// New creates a vault keyed by the given passphrase and schedules the
// first daily counter reset at the next local midnight.
func New(passphrase string, log *zap.Logger) *Vault {
	if log == nil {
		log = zap.NewNop()
	}
	v := &Vault{
		passphrase: []byte(passphrase),
		wallets:    make(map[string]*walletRecord),
		now:        time.Now,
		log:        log,
	}
	v.mu.Lock()
	v.scheduleDailyReset()
	v.mu.Unlock()
	return v
}

// Close cancels the daily reset timer.
func (v *Vault) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	if v.resetTimer != nil {
		v.resetTimer.Stop()
		v.resetTimer = nil
	}
}

// CreateWallet generates a keypair, encrypts its secret at rest, and
// initializes the default policy and a zero daily counter. Only public
// info is returned.
func (v *Vault) CreateWallet(label string) (WalletInfo, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return WalletInfo{}, errors.Crypto("generating entropy", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return WalletInfo{}, errors.Crypto("generating mnemonic", err)
	}
	seed := bip39.NewSeed(mnemonic, "")
	defer zeroBytes(seed)
	zeroBytes(entropy)

	keySeed := seed[:ed25519.SeedSize]
	priv := ed25519.NewKeyFromSeed(keySeed)
	pub, _ := priv.Public().(ed25519.PublicKey)

	encrypted, err := encryptSecret(v.passphrase, keySeed)
	zeroBytes(priv)
	if err != nil {
		return WalletInfo{}, err
	}

	info := WalletInfo{
		ID:        uuid.NewString(),
		PublicKey: base58.Encode(pub),
		Label:     label,
		CreatedAt: v.now(),
	}

	v.mu.Lock()
	v.wallets[info.ID] = &walletRecord{
		info:      info,
		encrypted: encrypted,
		policy:    DefaultPolicy(),
	}
	v.mu.Unlock()

	v.log.Info("wallet created",
		zap.String("walletId", info.ID),
		zap.String("publicKey", info.PublicKey),
		zap.String("label", label))
	return info, nil
}

// GetWallet returns public wallet info.
func (v *Vault) GetWallet(id string) (WalletInfo, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	rec, ok := v.wallets[id]
	if !ok {
		return WalletInfo{}, errors.NotFound("wallet", id)
	}
	return rec.info, nil
}

// GetPublicKey returns the wallet address.
func (v *Vault) GetPublicKey(id string) (string, error) {
	info, err := v.GetWallet(id)
	if err != nil {
		return "", err
	}
	return info.PublicKey, nil
}

// SignTransaction decrypts the wallet secret, signs the transaction
// message, and discards the plaintext before returning. This is the only
// operation that decrypts key material, and it never suspends while the
// plaintext is live. Both legacy and versioned shapes are handled.
func (v *Vault) SignTransaction(id string, tx *chain.Transaction) (*chain.SignedTransaction, error) {
	if tx == nil {
		return nil, errors.Validation("transaction is required")
	}

	v.mu.Lock()
	rec, ok := v.wallets[id]
	if !ok {
		v.mu.Unlock()
		return nil, errors.NotFound("wallet", id)
	}
	encrypted := append([]byte(nil), rec.encrypted...)
	signer := rec.info.PublicKey
	v.mu.Unlock()

	plain, err := decryptSecret(v.passphrase, encrypted)
	if err != nil {
		return nil, err
	}
	sb := newSecureBytes(plain)
	zeroBytes(plain)
	defer sb.destroy()

	priv := ed25519.NewKeyFromSeed(sb.bytes())
	signature := ed25519.Sign(priv, tx.Message())
	zeroBytes(priv)

	return &chain.SignedTransaction{Tx: tx, Signature: signature, Signer: signer}, nil
}

// ValidateIntent runs the policy gate for an intent against the wallet's
// policy, daily counter, and the supplied balance.
func (v *Vault) ValidateIntent(id string, it *intent.Intent, balanceLamports uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	rec, ok := v.wallets[id]
	if !ok {
		return errors.NotFound("wallet", id)
	}
	return EvaluateIntent(rec.policy, rec.dailyTransfers, it, balanceLamports)
}

// RecordTransfer increments the wallet's daily counter.
func (v *Vault) RecordTransfer(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	rec, ok := v.wallets[id]
	if !ok {
		return errors.NotFound("wallet", id)
	}
	rec.dailyTransfers++
	return nil
}

// DailyTransfers returns the wallet's current daily counter.
func (v *Vault) DailyTransfers(id string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	rec, ok := v.wallets[id]
	if !ok {
		return 0, errors.NotFound("wallet", id)
	}
	return rec.dailyTransfers, nil
}

// GetPolicy returns the wallet's policy.
func (v *Vault) GetPolicy(id string) (Policy, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	rec, ok := v.wallets[id]
	if !ok {
		return Policy{}, errors.NotFound("wallet", id)
	}
	return rec.policy, nil
}

// UpdatePolicy applies a patch and returns the updated policy.
func (v *Vault) UpdatePolicy(id string, patch PolicyPatch) (Policy, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	rec, ok := v.wallets[id]
	if !ok {
		return Policy{}, errors.NotFound("wallet", id)
	}
	rec.policy.apply(patch)
	return rec.policy, nil
}

// DeleteWallet removes the wallet, its policy, and its counter. All
// subsequent operations on the id return NotFound.
func (v *Vault) DeleteWallet(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	rec, ok := v.wallets[id]
	if !ok {
		return errors.NotFound("wallet", id)
	}
	zeroBytes(rec.encrypted)
	delete(v.wallets, id)
	return nil
}

// WalletCount returns the number of wallets held.
func (v *Vault) WalletCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.wallets)
}

// Export returns all wallets with their at-rest ciphertext, for the
// encrypted backup path.
func (v *Vault) Export() []ExportedWallet {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]ExportedWallet, 0, len(v.wallets))
	for _, rec := range v.wallets {
		out = append(out, ExportedWallet{
			Info:            rec.info,
			EncryptedSecret: append([]byte(nil), rec.encrypted...),
			Policy:          rec.policy,
		})
	}
	return out
}

// ResetDailyCounters zeroes every wallet's daily counter. Serialised on
// the vault mutex with policy checks, so a reset never clobbers an
// increment in flight.
func (v *Vault) ResetDailyCounters() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.resetDailyCountersLocked()
}

func (v *Vault) resetDailyCountersLocked() {
	for _, rec := range v.wallets {
		rec.dailyTransfers = 0
	}
	zone, _ := v.now().Zone()
	v.log.Info("daily transfer counters reset",
		zap.Int("wallets", len(v.wallets)),
		zap.String("timezone", zone))
}

// scheduleDailyReset arms a one-shot timer for the next local midnight.
// Callers must hold v.mu.
func (v *Vault) scheduleDailyReset() {
	if v.closed {
		return
	}
	now := v.now()
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	v.resetTimer = time.AfterFunc(next.Sub(now), func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		v.resetDailyCountersLocked()
		v.scheduleDailyReset()
	})
}
