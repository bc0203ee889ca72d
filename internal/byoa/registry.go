// Package byoa implements the bring-your-own-agent surface: the
// external agent registry with hashed control tokens, the wallet
// binder, the per-agent rate limiter, and the intent router.
package byoa

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/casthq/warden/internal/intent"
	"github.com/casthq/warden/pkg/errors"
)

// AgentKind distinguishes locally-polled agents from remote ones that
// receive event notifications at an endpoint.
type AgentKind string

// Agent kinds.
const (
	KindLocal  AgentKind = "local"
	KindRemote AgentKind = "remote"
)

// AgentStatus is an external agent's lifecycle state. Revocation is
// terminal.
type AgentStatus string

// External agent statuses.
const (
	StatusRegistered AgentStatus = "registered"
	StatusActive     AgentStatus = "active"
	StatusInactive   AgentStatus = "inactive"
	StatusRevoked    AgentStatus = "revoked"
)

// tokenPrefix marks control tokens so leaked strings are identifiable
// in scanners.
const tokenPrefix = "wrd_agt_"

// Registration is the input to Register.
type Registration struct {
	Name             string                `json:"name"`
	Kind             AgentKind             `json:"kind"`
	Endpoint         string                `json:"endpoint,omitempty"`
	Description      string                `json:"description,omitempty"`
	SupportedIntents []intent.ExternalType `json:"supportedIntents"`
}

// AgentRecord is the authoritative record of one external agent. The
// control token itself is never stored, only its SHA-256 digest.
type AgentRecord struct {
	ID               string                `json:"id"`
	Name             string                `json:"name"`
	Kind             AgentKind             `json:"kind"`
	Endpoint         string                `json:"endpoint,omitempty"`
	Description      string                `json:"description,omitempty"`
	SupportedIntents []intent.ExternalType `json:"supportedIntents"`
	Status           AgentStatus           `json:"status"`
	WalletID         string                `json:"walletId,omitempty"`
	WalletPublicKey  string                `json:"walletPublicKey,omitempty"`
	CreatedAt        time.Time             `json:"createdAt"`
	LastActiveAt     *time.Time            `json:"lastActiveAt,omitempty"`
	RevokedAt        *time.Time            `json:"revokedAt,omitempty"`
}

// SupportsIntent reports whether the agent declared the intent type.
func (r *AgentRecord) SupportsIntent(t intent.ExternalType) bool {
	for _, s := range r.SupportedIntents {
		if s == t {
			return true
		}
	}
	return false
}

// Registry holds external agents and the reverse token index.
type Registry struct {
	mu         sync.Mutex
	agents     map[string]*AgentRecord
	byDigest   map[string]string // hex token digest -> agent id
	digestByID map[string]string // agent id -> hex token digest
	maxAgents  int
	now        func() time.Time
	log        *zap.Logger
}

// NewRegistry creates an empty registry capped at maxAgents.
func NewRegistry(maxAgents int, log *zap.Logger) *Registry {
	if maxAgents <= 0 {
		maxAgents = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		agents:     make(map[string]*AgentRecord),
		byDigest:   make(map[string]string),
		digestByID: make(map[string]string),
		maxAgents:  maxAgents,
		now:        time.Now,
		log:        log,
	}
}

// Register validates a registration, mints a control token, and stores
// the agent with the token's digest. The raw token is returned exactly
// once and never persisted.
func (r *Registry) Register(reg Registration) (AgentRecord, string, error) {
	name := strings.TrimSpace(reg.Name)
	if name == "" || len(name) > 100 {
		return AgentRecord{}, "", errors.Validation("agent name must be 1-100 characters")
	}
	if reg.Kind == "" {
		reg.Kind = KindLocal
	}
	if reg.Kind != KindLocal && reg.Kind != KindRemote {
		return AgentRecord{}, "", errors.Validation("agent kind must be %q or %q", KindLocal, KindRemote)
	}
	if reg.Kind == KindRemote && reg.Endpoint == "" {
		return AgentRecord{}, "", errors.Validation("remote agents require an endpoint")
	}
	if len(reg.SupportedIntents) == 0 {
		return AgentRecord{}, "", errors.Validation("supportedIntents must not be empty")
	}
	for _, t := range reg.SupportedIntents {
		if !intent.IsValidExternalType(t) {
			return AgentRecord{}, "", errors.Validation("unknown intent type %q", t)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.agents) >= r.maxAgents {
		return AgentRecord{}, "", errors.New(errors.CodeCapacity, "maximum number of external agents reached")
	}
	for _, existing := range r.agents {
		if existing.Status != StatusRevoked && existing.Name == name {
			return AgentRecord{}, "", errors.Validation("an agent named %q already exists", name)
		}
	}

	rawToken, digest, err := mintToken()
	if err != nil {
		return AgentRecord{}, "", err
	}

	rec := &AgentRecord{
		ID:               uuid.NewString(),
		Name:             name,
		Kind:             reg.Kind,
		Endpoint:         reg.Endpoint,
		Description:      reg.Description,
		SupportedIntents: append([]intent.ExternalType(nil), reg.SupportedIntents...),
		Status:           StatusRegistered,
		CreatedAt:        r.now(),
	}
	r.agents[rec.ID] = rec
	r.byDigest[digest] = rec.ID
	r.digestByID[rec.ID] = digest

	r.log.Info("external agent registered",
		zap.String("agentId", rec.ID),
		zap.String("name", rec.Name),
		zap.String("kind", string(rec.Kind)))
	return *rec, rawToken, nil
}

// mintToken generates a 256-bit random control token and its digest.
func mintToken() (raw, digest string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", errors.Crypto("generating control token", err)
	}
	raw = tokenPrefix + hex.EncodeToString(buf)
	return raw, digestOf(raw), nil
}

func digestOf(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// BindWallet attaches a wallet to an agent and activates it. An agent
// binds at most one wallet, ever.
func (r *Registry) BindWallet(agentID, walletID, publicKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.agents[agentID]
	if !ok {
		return errors.NotFound("external agent", agentID)
	}
	if rec.Status == StatusRevoked {
		return errors.Auth("agent %s is revoked", agentID)
	}
	if rec.WalletID != "" {
		return errors.Validation("agent %s already has a bound wallet", agentID)
	}

	rec.WalletID = walletID
	rec.WalletPublicKey = publicKey
	rec.Status = StatusActive
	return nil
}

// AuthenticateToken resolves a raw control token to its agent. The
// stored digest comparison is constant-time; revoked agents always fail.
func (r *Registry) AuthenticateToken(rawToken string) (AgentRecord, error) {
	if rawToken == "" {
		return AgentRecord{}, errors.Auth("missing control token")
	}
	digest := digestOf(rawToken)

	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byDigest[digest]
	if !ok {
		return AgentRecord{}, errors.Auth("invalid control token")
	}
	rec, ok := r.agents[id]
	if !ok || !hmac.Equal([]byte(r.digestByID[id]), []byte(digest)) {
		return AgentRecord{}, errors.Auth("invalid control token")
	}
	if rec.Status == StatusRevoked {
		return AgentRecord{}, errors.Auth("agent %s has been revoked", rec.ID)
	}

	now := r.now()
	rec.LastActiveAt = &now
	return *rec, nil
}

// Activate transitions an inactive agent back to active. Requires a
// bound wallet.
func (r *Registry) Activate(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.agents[agentID]
	if !ok {
		return errors.NotFound("external agent", agentID)
	}
	if rec.Status == StatusRevoked {
		return errors.Auth("agent %s is revoked", agentID)
	}
	if rec.WalletID == "" {
		return errors.Validation("agent %s cannot be activated without a bound wallet", agentID)
	}
	rec.Status = StatusActive
	return nil
}

// Deactivate suspends an agent. Its token stops authorising intents
// until reactivation.
func (r *Registry) Deactivate(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.agents[agentID]
	if !ok {
		return errors.NotFound("external agent", agentID)
	}
	if rec.Status == StatusRevoked {
		return errors.Auth("agent %s is revoked", agentID)
	}
	rec.Status = StatusInactive
	return nil
}

// Revoke terminally disables an agent and evicts its token from the
// reverse index.
func (r *Registry) Revoke(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.agents[agentID]
	if !ok {
		return errors.NotFound("external agent", agentID)
	}
	if rec.Status == StatusRevoked {
		return nil
	}

	rec.Status = StatusRevoked
	now := r.now()
	rec.RevokedAt = &now

	if digest, ok := r.digestByID[agentID]; ok {
		delete(r.byDigest, digest)
		delete(r.digestByID, agentID)
	}
	r.log.Info("external agent revoked", zap.String("agentId", agentID))
	return nil
}

// GetAgent returns one agent record.
func (r *Registry) GetAgent(agentID string) (AgentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.agents[agentID]
	if !ok {
		return AgentRecord{}, errors.NotFound("external agent", agentID)
	}
	return *rec, nil
}

// GetAll returns every agent record.
func (r *Registry) GetAll() []AgentRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]AgentRecord, 0, len(r.agents))
	for _, rec := range r.agents {
		out = append(out, *rec)
	}
	return out
}

// GetActive returns the agents currently able to submit intents.
func (r *Registry) GetActive() []AgentRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []AgentRecord
	for _, rec := range r.agents {
		if rec.Status == StatusActive {
			out = append(out, *rec)
		}
	}
	return out
}

// Count returns the number of registered agents, revoked included.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.agents)
}
