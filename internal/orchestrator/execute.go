package orchestrator

import (
	"context"
	"math"

	"github.com/casthq/warden/internal/chain"
	"github.com/casthq/warden/internal/events"
	"github.com/casthq/warden/internal/intent"
	"github.com/casthq/warden/pkg/errors"
)

// executeIntent runs one intent against the chain: policy gate, build,
// sign, send, ledger record, event, and the shared history entry. The
// policy gate runs before any ledger record is created, so a rejected
// intent leaves no transaction behind.
func (o *Orchestrator) executeIntent(ctx context.Context, info AgentInfo, it *intent.Intent, balanceLamports uint64) error {
	if err := o.vault.ValidateIntent(info.WalletID, it, balanceLamports); err != nil {
		o.appendHistory(info.ID, it, nil, err)
		return err
	}

	result, err := o.dispatch(ctx, info, it, balanceLamports)
	o.appendHistory(info.ID, it, result, err)
	return err
}

func (o *Orchestrator) dispatch(ctx context.Context, info AgentInfo, it *intent.Intent, balanceLamports uint64) (map[string]any, error) {
	switch it.Kind {
	case intent.KindAirdrop:
		return o.executeAirdrop(ctx, info, it)

	case intent.KindTransferSol:
		return o.executeTransferSol(ctx, info, it)

	case intent.KindTransferToken:
		return o.executeTransferToken(ctx, info, it)

	case intent.KindQueryBalance:
		return map[string]any{
			"balance":  chain.LamportsToSOL(balanceLamports),
			"lamports": balanceLamports,
		}, nil

	case intent.KindAutonomous:
		return o.executeAutonomous(ctx, info, it)

	default:
		return nil, errors.Validation("unknown intent kind %q", it.Kind)
	}
}

func (o *Orchestrator) executeAirdrop(ctx context.Context, info AgentInfo, it *intent.Intent) (map[string]any, error) {
	recID := o.ledger.Insert(TxRecord{
		IntentID: it.ID,
		AgentID:  info.ID,
		WalletID: info.WalletID,
		Type:     intent.KindAirdrop,
		Amount:   it.Amount,
	})

	res, err := o.chain.RequestAirdrop(ctx, info.WalletPublicKey, chain.SOLToLamports(it.Amount))
	if err != nil {
		o.finishRecord(info.ID, recID, "", err)
		return nil, err
	}

	if err := o.vault.RecordTransfer(info.WalletID); err != nil {
		return nil, err
	}
	o.finishRecord(info.ID, recID, res.Signature, nil)
	o.emitBalanceChanged(ctx, info)
	return map[string]any{"signature": res.Signature, "slot": res.Slot}, nil
}

func (o *Orchestrator) executeTransferSol(ctx context.Context, info AgentInfo, it *intent.Intent) (map[string]any, error) {
	recID := o.ledger.Insert(TxRecord{
		IntentID:  it.ID,
		AgentID:   info.ID,
		WalletID:  info.WalletID,
		Type:      intent.KindTransferSol,
		Amount:    it.Amount,
		Recipient: it.Recipient,
	})

	tx, err := o.chain.BuildNativeTransfer(ctx, info.WalletPublicKey, it.Recipient,
		chain.SOLToLamports(it.Amount), "")
	if err != nil {
		o.finishRecord(info.ID, recID, "", err)
		return nil, err
	}
	return o.signAndSend(ctx, info, recID, tx, true)
}

func (o *Orchestrator) executeTransferToken(ctx context.Context, info AgentInfo, it *intent.Intent) (map[string]any, error) {
	recID := o.ledger.Insert(TxRecord{
		IntentID:  it.ID,
		AgentID:   info.ID,
		WalletID:  info.WalletID,
		Type:      intent.KindTransferToken,
		Amount:    it.Amount,
		Recipient: it.Recipient,
		Mint:      it.Mint,
	})

	decimals := o.mintDecimals(ctx, info.WalletPublicKey, it.Mint)
	rawAmount := uint64(math.Round(it.Amount * math.Pow10(int(decimals))))

	tx, err := o.chain.BuildTokenTransfer(ctx, info.WalletPublicKey, it.Mint, it.Recipient,
		rawAmount, decimals, "")
	if err != nil {
		o.finishRecord(info.ID, recID, "", err)
		return nil, err
	}
	return o.signAndSend(ctx, info, recID, tx, true)
}

// mintDecimals resolves a mint's decimals from the wallet's holdings,
// defaulting to 9 when the wallet has no account for the mint yet.
func (o *Orchestrator) mintDecimals(ctx context.Context, owner, mint string) uint8 {
	tokens, err := o.chain.GetTokenBalances(ctx, owner)
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

// signAndSend runs the common tail of every transfer path: vault
// signature, chain submission, daily counter, ledger update, event.
func (o *Orchestrator) signAndSend(ctx context.Context, info AgentInfo, recID string, tx *chain.Transaction, countTransfer bool) (map[string]any, error) {
	signed, err := o.vault.SignTransaction(info.WalletID, tx)
	if err != nil {
		o.finishRecord(info.ID, recID, "", err)
		return nil, err
	}

	res, err := o.chain.SendTransaction(ctx, signed, nil)
	if err != nil {
		o.finishRecord(info.ID, recID, "", err)
		return nil, err
	}

	if countTransfer {
		if err := o.vault.RecordTransfer(info.WalletID); err != nil {
			return nil, err
		}
	}
	o.finishRecord(info.ID, recID, res.Signature, nil)
	o.emitBalanceChanged(ctx, info)
	return map[string]any{"signature": res.Signature, "slot": res.Slot, "status": res.Status}, nil
}

// executeAutonomous dispatches an autonomous intent on its action name.
// Unknown actions that carry an instructions array run as
// execute_instructions so newer agent payloads keep working.
func (o *Orchestrator) executeAutonomous(ctx context.Context, info AgentInfo, it *intent.Intent) (map[string]any, error) {
	params := it.Params

	switch it.Action {
	case intent.ActionAirdrop:
		sub := intent.Airdrop(info.ID, paramFloat(params, "amount"))
		sub.ID = it.ID
		return o.executeAirdrop(ctx, info, sub)

	case intent.ActionTransferSol:
		sub := intent.TransferSol(info.ID, paramString(params, "recipient"), paramFloat(params, "amount"))
		sub.ID = it.ID
		return o.executeTransferSol(ctx, info, sub)

	case intent.ActionTransferToken:
		sub := intent.TransferToken(info.ID, paramString(params, "mint"),
			paramString(params, "recipient"), paramFloat(params, "amount"))
		sub.ID = it.ID
		return o.executeTransferToken(ctx, info, sub)

	case intent.ActionQueryBalance:
		balance, err := o.chain.GetBalance(ctx, info.WalletPublicKey)
		if err != nil {
			return nil, err
		}
		return map[string]any{"balance": balance.SOL, "lamports": balance.Lamports}, nil

	case intent.ActionExecuteInstructions:
		return o.executeInstructions(ctx, info, it)

	case intent.ActionRawTransaction:
		return o.executeRawTransaction(ctx, info, it)

	default:
		if _, ok := params["instructions"]; ok {
			return o.executeInstructions(ctx, info, it)
		}
		return nil, errors.Validation("unsupported autonomous action %q", it.Action)
	}
}

func (o *Orchestrator) executeInstructions(ctx context.Context, info AgentInfo, it *intent.Intent) (map[string]any, error) {
	raw, ok := it.Params["instructions"].([]any)
	if !ok || len(raw) == 0 {
		return nil, errors.Validation("autonomous action %q requires a non-empty instructions array", it.Action)
	}
	instructions, err := chain.ParseInstructions(raw)
	if err != nil {
		return nil, err
	}

	recID := o.ledger.Insert(TxRecord{
		IntentID: it.ID,
		AgentID:  info.ID,
		WalletID: info.WalletID,
		Type:     intent.KindAutonomous,
	})

	tx, err := o.chain.BuildArbitraryTransaction(ctx, info.WalletPublicKey, instructions, paramString(it.Params, "memo"))
	if err != nil {
		o.finishRecord(info.ID, recID, "", err)
		return nil, err
	}
	return o.signAndSend(ctx, info, recID, tx, true)
}

func (o *Orchestrator) executeRawTransaction(ctx context.Context, info AgentInfo, it *intent.Intent) (map[string]any, error) {
	encoded := paramString(it.Params, "transaction")
	if encoded == "" {
		return nil, errors.Validation("raw_transaction requires a serialized transaction")
	}

	recID := o.ledger.Insert(TxRecord{
		IntentID: it.ID,
		AgentID:  info.ID,
		WalletID: info.WalletID,
		Type:     intent.KindAutonomous,
	})

	// Stale signatures and blockhash are discarded; the agent wallet
	// becomes the fee payer before signing.
	tx, err := o.chain.DeserializeAndRebindFeePayer(ctx, encoded, info.WalletPublicKey)
	if err != nil {
		o.finishRecord(info.ID, recID, "", err)
		return nil, err
	}
	return o.signAndSend(ctx, info, recID, tx, true)
}

// finishRecord closes out a ledger record and emits the Transaction
// event.
func (o *Orchestrator) finishRecord(agentID, recID, signature string, err error) {
	o.ledger.Update(recID, func(rec *TxRecord) {
		if err != nil {
			rec.Status = TxFailed
			rec.Error = err.Error()
			return
		}
		rec.Status = TxConfirmed
		rec.Signature = signature
	})

	rec, ok := o.ledger.Get(recID)
	if !ok {
		return
	}
	o.bus.Emit(events.TypeTransaction, agentID, map[string]any{
		"transactionId": rec.ID,
		"type":          string(rec.Type),
		"status":        string(rec.Status),
		"signature":     rec.Signature,
		"error":         rec.Error,
	})
}

func (o *Orchestrator) emitBalanceChanged(ctx context.Context, info AgentInfo) {
	balance, err := o.chain.GetBalance(ctx, info.WalletPublicKey)
	if err != nil {
		return
	}
	o.bus.Emit(events.TypeBalanceChanged, info.ID, map[string]any{
		"publicKey": info.WalletPublicKey,
		"balance":   balance.SOL,
		"lamports":  balance.Lamports,
	})
}

// appendHistory writes the shared intent-history record for an intent
// outcome, using the canonical external type for the internal kind.
func (o *Orchestrator) appendHistory(agentID string, it *intent.Intent, result map[string]any, err error) {
	rec := intent.HistoryRecord{
		IntentID: it.ID,
		AgentID:  agentID,
		Type:     it.Kind.External(),
		Params:   historyParams(it),
		Status:   intent.StatusExecuted,
		Result:   result,
	}
	if err != nil {
		rec.Status = intent.StatusRejected
		rec.Error = err.Error()
	}
	o.history.Append(rec)
}

func historyParams(it *intent.Intent) map[string]any {
	if it.Kind == intent.KindAutonomous {
		return map[string]any{"action": it.Action, "params": it.Params}
	}
	out := map[string]any{}
	if it.Amount != 0 {
		out["amount"] = it.Amount
	}
	if it.Recipient != "" {
		out["recipient"] = it.Recipient
	}
	if it.Mint != "" {
		out["mint"] = it.Mint
	}
	return out
}

func paramFloat(params map[string]any, key string) float64 {
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
	s, _ := params[key].(string)
	return s
}
