package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/casthq/warden/internal/events"
	"github.com/casthq/warden/internal/strategy"
)

// runCycle executes one decision cycle for an agent. A tick that
// arrives while a previous cycle is still in flight is dropped, never
// queued.
func (o *Orchestrator) runCycle(id string) {
	o.mu.Lock()
	ag, ok := o.agents[id]
	if !ok || !ag.running {
		o.mu.Unlock()
		return
	}
	if !ag.inCycle.CompareAndSwap(false, true) {
		o.mu.Unlock()
		o.log.Debug("cycle still in flight, tick dropped", zap.String("agentId", id))
		return
	}
	o.setStatusLocked(ag, StatusThinking, "")
	strat := ag.strat
	info := ag.info
	o.mu.Unlock()
	defer ag.inCycle.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), o.callTimeout)
	defer cancel()

	sctx, err := o.assembleContext(ctx, info)
	if err != nil {
		o.failCycle(id, err)
		return
	}

	// Strategy state is guarded by the non-overlap flag, not a lock.
	decision := strat.Decide(sctx)

	action := "decided_to_wait"
	if decision.ShouldAct {
		action = "decided_to_act"
	}
	o.bus.Emit(events.TypeAgentAction, id, map[string]any{
		"action":    action,
		"reasoning": decision.Reasoning,
	})
	o.log.Debug("agent decision",
		zap.String("agentId", id),
		zap.String("action", action),
		zap.String("reasoning", decision.Reasoning))

	if decision.ShouldAct && decision.Intent != nil {
		o.setCycleStatus(id, StatusExecuting, "")
		if err := o.executeIntent(ctx, info, decision.Intent, sctx.Balance.Lamports); err != nil {
			o.failCycle(id, err)
			return
		}
	}

	o.mu.Lock()
	if ag, ok := o.agents[id]; ok {
		now := o.now()
		ag.info.LastActionAt = &now
		if ag.running {
			o.setStatusLocked(ag, StatusIdle, "")
		}
	}
	o.mu.Unlock()
}

// assembleContext snapshots the chain state a strategy decides on.
func (o *Orchestrator) assembleContext(ctx context.Context, info AgentInfo) (strategy.Context, error) {
	balance, err := o.chain.GetBalance(ctx, info.WalletPublicKey)
	if err != nil {
		return strategy.Context{}, err
	}
	tokens, err := o.chain.GetTokenBalances(ctx, info.WalletPublicKey)
	if err != nil {
		return strategy.Context{}, err
	}
	return strategy.Context{
		AgentID:          info.ID,
		PublicKey:        info.WalletPublicKey,
		Balance:          balance,
		TokenBalances:    tokens,
		RecentSignatures: o.ledger.RecentSignatures(info.ID, 10),
	}, nil
}

// failCycle marks the agent errored with a human-readable message. The
// ticker stays armed; the next tick runs normally.
func (o *Orchestrator) failCycle(id string, err error) {
	o.log.Warn("agent cycle failed", zap.String("agentId", id), zap.Error(err))
	o.setCycleStatus(id, StatusError, err.Error())
}

// setCycleStatus applies a status transition on behalf of an in-flight
// cycle. A stop that landed mid-cycle wins: once the agent is no longer
// running, the cycle must not overwrite the stopped status.
func (o *Orchestrator) setCycleStatus(id string, status Status, errMsg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ag, ok := o.agents[id]; ok && ag.running {
		o.setStatusLocked(ag, status, errMsg)
	}
}
