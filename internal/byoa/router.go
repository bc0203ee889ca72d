package byoa

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/casthq/warden/internal/chain"
	"github.com/casthq/warden/internal/events"
	"github.com/casthq/warden/internal/intent"
	"github.com/casthq/warden/internal/vault"
	"github.com/casthq/warden/pkg/errors"
)

// ExternalIntent is the payload an external agent submits.
type ExternalIntent struct {
	Type      intent.ExternalType `json:"type"`
	Amount    float64             `json:"amount,omitempty"`
	Recipient string              `json:"recipient,omitempty"`
	Mint      string              `json:"mint,omitempty"`
	Action    string              `json:"action,omitempty"`
	Params    map[string]any      `json:"params,omitempty"`
}

// IntentResult is the deterministic response shape for every submitted
// intent. A policy or quota rejection is still a result, not a
// transport failure.
type IntentResult struct {
	IntentID        string               `json:"intentId"`
	Status          intent.HistoryStatus `json:"status"`
	Type            intent.ExternalType  `json:"type"`
	AgentID         string               `json:"agentId"`
	WalletPublicKey string               `json:"walletPublicKey"`
	Result          map[string]any       `json:"result,omitempty"`
	Error           string               `json:"error,omitempty"`
	ExecutedAt      time.Time            `json:"executedAt"`
}

// Router is the gateway between authenticated external agents and the
// execution substrate.
type Router struct {
	registry *Registry
	vault    *vault.Vault
	chain    chain.Client
	bus      *events.Bus
	history  *intent.HistoryStore
	limiter  *RateLimiter
	notifier Notifier
	log      *zap.Logger
}

// RouterOptions configure a Router.
type RouterOptions struct {
	// RateLimitPerMinute caps intents per agent per minute; zero selects
	// the default.
	RateLimitPerMinute int

	// Notifier, when set, receives results for remote agents.
	Notifier Notifier
}

// NewRouter creates a router over the given components.
func NewRouter(registry *Registry, v *vault.Vault, c chain.Client, bus *events.Bus,
	history *intent.HistoryStore, opts RouterOptions, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		registry: registry,
		vault:    v,
		chain:    c,
		bus:      bus,
		history:  history,
		limiter:  NewRateLimiter(opts.RateLimitPerMinute),
		notifier: opts.Notifier,
		log:      log,
	}
}

// SubmitIntent authenticates the token and runs the intent through the
// policy gate and the chain. Authentication failures return an error
// with no result; after authentication every outcome is an
// IntentResult, with the causal error alongside for status mapping.
func (r *Router) SubmitIntent(ctx context.Context, rawToken string, ext ExternalIntent) (IntentResult, error) {
	agent, err := r.registry.AuthenticateToken(rawToken)
	if err != nil {
		return IntentResult{}, err
	}

	res := IntentResult{
		IntentID:        uuid.NewString(),
		Type:            ext.Type,
		AgentID:         agent.ID,
		WalletPublicKey: agent.WalletPublicKey,
		ExecutedAt:      time.Now(),
	}

	reject := func(cause error) (IntentResult, error) {
		res.Status = intent.StatusRejected
		res.Error = cause.Error()
		r.record(agent, ext, res, cause)
		return res, cause
	}

	if agent.Status != StatusActive {
		return reject(errors.Auth("agent %s is not active", agent.ID))
	}
	if agent.WalletID == "" {
		return reject(errors.Validation("agent %s has no bound wallet", agent.ID))
	}
	if !r.limiter.Allow(agent.ID) {
		return reject(errors.New(errors.CodeRateLimited, "Rate limit exceeded: "+
			"too many intents in the last minute"))
	}
	if !intent.IsValidExternalType(ext.Type) {
		return reject(errors.Validation("unknown intent type %q", ext.Type))
	}
	if !agent.SupportsIntent(ext.Type) {
		return reject(errors.Validation("intent type %s is not in the agent's supported set", ext.Type))
	}

	result, err := r.execute(ctx, agent, ext)
	if err != nil {
		return reject(err)
	}

	res.Status = intent.StatusExecuted
	res.Result = result
	r.record(agent, ext, res, nil)
	return res, nil
}

// record appends the history entry, emits the tagged AgentAction event,
// and notifies remote agents.
func (r *Router) record(agent AgentRecord, ext ExternalIntent, res IntentResult, cause error) {
	rec := intent.HistoryRecord{
		IntentID: res.IntentID,
		AgentID:  agent.ID,
		Type:     ext.Type,
		Params:   externalParams(ext),
		Status:   res.Status,
		Result:   res.Result,
		Error:    res.Error,
	}
	r.history.Append(rec)

	r.bus.Emit(events.TypeAgentAction, agent.ID, map[string]any{
		"action": "byoa_intent:" + string(ext.Type),
		"status": string(res.Status),
		"error":  res.Error,
	})

	if cause != nil {
		r.log.Warn("external intent rejected",
			zap.String("agentId", agent.ID),
			zap.String("type", string(ext.Type)),
			zap.Error(cause))
	}

	if r.notifier != nil && agent.Kind == KindRemote && agent.Endpoint != "" {
		r.notifier.Notify(agent, res)
	}
}

func externalParams(ext ExternalIntent) map[string]any {
	out := map[string]any{}
	if ext.Amount != 0 {
		out["amount"] = ext.Amount
	}
	if ext.Recipient != "" {
		out["recipient"] = ext.Recipient
	}
	if ext.Mint != "" {
		out["mint"] = ext.Mint
	}
	if ext.Action != "" {
		out["action"] = ext.Action
	}
	if len(ext.Params) > 0 {
		out["params"] = ext.Params
	}
	return out
}

// execute dispatches on the external intent type. Every path runs the
// vault policy gate before touching the chain.
func (r *Router) execute(ctx context.Context, agent AgentRecord, ext ExternalIntent) (map[string]any, error) {
	balance, err := r.chain.GetBalance(ctx, agent.WalletPublicKey)
	if err != nil {
		return nil, err
	}

	switch ext.Type {
	case intent.ExtQueryBalance:
		tokens, err := r.chain.GetTokenBalances(ctx, agent.WalletPublicKey)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"balance":  balance.SOL,
			"lamports": balance.Lamports,
			"tokens":   tokens,
		}, nil

	case intent.ExtRequestAirdrop:
		it := intent.Airdrop(agent.ID, ext.Amount)
		if err := r.vault.ValidateIntent(agent.WalletID, it, balance.Lamports); err != nil {
			return nil, err
		}
		res, err := r.chain.RequestAirdrop(ctx, agent.WalletPublicKey, chain.SOLToLamports(ext.Amount))
		if err != nil {
			return nil, err
		}
		if err := r.vault.RecordTransfer(agent.WalletID); err != nil {
			return nil, err
		}
		r.emitTransaction(agent, "airdrop", res.Signature)
		return map[string]any{"signature": res.Signature, "slot": res.Slot}, nil

	case intent.ExtTransferSol:
		it := intent.TransferSol(agent.ID, ext.Recipient, ext.Amount)
		if err := r.vault.ValidateIntent(agent.WalletID, it, balance.Lamports); err != nil {
			return nil, err
		}
		tx, err := r.chain.BuildNativeTransfer(ctx, agent.WalletPublicKey, ext.Recipient,
			chain.SOLToLamports(ext.Amount), "")
		if err != nil {
			return nil, err
		}
		return r.signAndSend(ctx, agent, "transfer_sol", tx)

	case intent.ExtTransferToken:
		it := intent.TransferToken(agent.ID, ext.Mint, ext.Recipient, ext.Amount)
		if err := r.vault.ValidateIntent(agent.WalletID, it, balance.Lamports); err != nil {
			return nil, err
		}
		decimals := r.mintDecimals(ctx, agent.WalletPublicKey, ext.Mint)
		rawAmount := uint64(math.Round(ext.Amount * math.Pow10(int(decimals))))
		tx, err := r.chain.BuildTokenTransfer(ctx, agent.WalletPublicKey, ext.Mint, ext.Recipient,
			rawAmount, decimals, "")
		if err != nil {
			return nil, err
		}
		return r.signAndSend(ctx, agent, "transfer_token", tx)

	case intent.ExtAutonomous:
		it := intent.Autonomous(agent.ID, ext.Action, ext.Params)
		if err := r.vault.ValidateIntent(agent.WalletID, it, balance.Lamports); err != nil {
			return nil, err
		}
		return r.executeAutonomous(ctx, agent, ext)

	default:
		return nil, errors.Validation("unknown intent type %q", ext.Type)
	}
}

// executeAutonomous dispatches on the autonomous action name. Unknown
// actions carrying an instructions array run as execute_instructions so
// newer payloads keep working against older routers.
func (r *Router) executeAutonomous(ctx context.Context, agent AgentRecord, ext ExternalIntent) (map[string]any, error) {
	params := ext.Params

	switch ext.Action {
	case intent.ActionAirdrop:
		amount := floatParam(params, "amount")
		res, err := r.chain.RequestAirdrop(ctx, agent.WalletPublicKey, chain.SOLToLamports(amount))
		if err != nil {
			return nil, err
		}
		if err := r.vault.RecordTransfer(agent.WalletID); err != nil {
			return nil, err
		}
		r.emitTransaction(agent, "airdrop", res.Signature)
		return map[string]any{"signature": res.Signature, "slot": res.Slot}, nil

	case intent.ActionTransferSol:
		tx, err := r.chain.BuildNativeTransfer(ctx, agent.WalletPublicKey,
			stringParam(params, "recipient"), chain.SOLToLamports(floatParam(params, "amount")), "")
		if err != nil {
			return nil, err
		}
		return r.signAndSend(ctx, agent, "transfer_sol", tx)

	case intent.ActionTransferToken:
		mint := stringParam(params, "mint")
		decimals := r.mintDecimals(ctx, agent.WalletPublicKey, mint)
		rawAmount := uint64(math.Round(floatParam(params, "amount") * math.Pow10(int(decimals))))
		tx, err := r.chain.BuildTokenTransfer(ctx, agent.WalletPublicKey, mint,
			stringParam(params, "recipient"), rawAmount, decimals, "")
		if err != nil {
			return nil, err
		}
		return r.signAndSend(ctx, agent, "transfer_token", tx)

	case intent.ActionQueryBalance:
		balance, err := r.chain.GetBalance(ctx, agent.WalletPublicKey)
		if err != nil {
			return nil, err
		}
		return map[string]any{"balance": balance.SOL, "lamports": balance.Lamports}, nil

	case intent.ActionExecuteInstructions:
		return r.executeInstructions(ctx, agent, params)

	case intent.ActionRawTransaction:
		encoded := stringParam(params, "transaction")
		if encoded == "" {
			return nil, errors.Validation("raw_transaction requires a serialized transaction")
		}
		// Stale signatures and blockhash are dropped; the agent wallet
		// becomes the fee payer before signing.
		tx, err := r.chain.DeserializeAndRebindFeePayer(ctx, encoded, agent.WalletPublicKey)
		if err != nil {
			return nil, err
		}
		return r.signAndSend(ctx, agent, "raw_transaction", tx)

	default:
		if _, ok := params["instructions"]; ok {
			return r.executeInstructions(ctx, agent, params)
		}
		return nil, errors.Validation("unsupported autonomous action %q", ext.Action)
	}
}

func (r *Router) executeInstructions(ctx context.Context, agent AgentRecord, params map[string]any) (map[string]any, error) {
	raw, ok := params["instructions"].([]any)
	if !ok || len(raw) == 0 {
		return nil, errors.Validation("a non-empty instructions array is required")
	}
	instructions, err := chain.ParseInstructions(raw)
	if err != nil {
		return nil, err
	}
	tx, err := r.chain.BuildArbitraryTransaction(ctx, agent.WalletPublicKey, instructions,
		stringParam(params, "memo"))
	if err != nil {
		return nil, err
	}
	return r.signAndSend(ctx, agent, "execute_instructions", tx)
}

func (r *Router) signAndSend(ctx context.Context, agent AgentRecord, kind string, tx *chain.Transaction) (map[string]any, error) {
	signed, err := r.vault.SignTransaction(agent.WalletID, tx)
	if err != nil {
		return nil, err
	}
	res, err := r.chain.SendTransaction(ctx, signed, nil)
	if err != nil {
		return nil, err
	}
	if err := r.vault.RecordTransfer(agent.WalletID); err != nil {
		return nil, err
	}
	r.emitTransaction(agent, kind, res.Signature)
	return map[string]any{"signature": res.Signature, "slot": res.Slot, "status": res.Status}, nil
}

func (r *Router) emitTransaction(agent AgentRecord, kind, signature string) {
	r.bus.Emit(events.TypeTransaction, agent.ID, map[string]any{
		"type":      kind,
		"status":    "confirmed",
		"signature": signature,
		"source":    "byoa",
	})
}

func (r *Router) mintDecimals(ctx context.Context, owner, mint string) uint8 {
	tokens, err := r.chain.GetTokenBalances(ctx, owner)
	if err != nil {
		return 9
	}
	for _, t := range tokens {
		if t.Mint == mint {
			return t.Decimals
		}
	}
	return 9
}

func floatParam(params map[string]any, key string) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func stringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}
