package byoa

import (
	"sync"

	"go.uber.org/zap"

	"github.com/casthq/warden/internal/vault"
	"github.com/casthq/warden/pkg/errors"
)

// Binder bridges the external agent registry and the vault: it creates
// a wallet for a freshly-registered agent and binds the two, keeping a
// reverse walletId -> agentId index.
type Binder struct {
	mu       sync.Mutex
	byWallet map[string]string

	registry *Registry
	vault    *vault.Vault
	log      *zap.Logger
}

// BoundWallet is the result of a successful bind.
type BoundWallet struct {
	WalletID  string `json:"walletId"`
	PublicKey string `json:"publicKey"`
}

// NewBinder creates a binder over the given registry and vault.
func NewBinder(registry *Registry, v *vault.Vault, log *zap.Logger) *Binder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Binder{
		byWallet: make(map[string]string),
		registry: registry,
		vault:    v,
		log:      log,
	}
}

// BindNewWallet creates a vault wallet for an unbound agent and binds
// it. A registry failure rolls the wallet back best-effort.
func (b *Binder) BindNewWallet(agentID string) (BoundWallet, error) {
	rec, err := b.registry.GetAgent(agentID)
	if err != nil {
		return BoundWallet{}, err
	}
	if rec.WalletID != "" {
		return BoundWallet{}, errors.Validation("agent %s already has a bound wallet", agentID)
	}

	wallet, err := b.vault.CreateWallet("byoa:" + rec.Name)
	if err != nil {
		return BoundWallet{}, err
	}

	if err := b.registry.BindWallet(agentID, wallet.ID, wallet.PublicKey); err != nil {
		if delErr := b.vault.DeleteWallet(wallet.ID); delErr != nil {
			b.log.Error("wallet rollback failed after bind error",
				zap.String("agentId", agentID),
				zap.String("walletId", wallet.ID),
				zap.Error(delErr))
		}
		return BoundWallet{}, err
	}

	b.mu.Lock()
	b.byWallet[wallet.ID] = agentID
	b.mu.Unlock()

	b.log.Info("wallet bound to external agent",
		zap.String("agentId", agentID),
		zap.String("walletId", wallet.ID),
		zap.String("publicKey", wallet.PublicKey))
	return BoundWallet{WalletID: wallet.ID, PublicKey: wallet.PublicKey}, nil
}

// AgentForWallet resolves a wallet id back to its agent.
func (b *Binder) AgentForWallet(walletID string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.byWallet[walletID]
	return id, ok
}
