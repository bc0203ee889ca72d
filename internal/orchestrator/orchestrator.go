// Package orchestrator runs the managed built-in agents: per-agent
// decision cycles on their own cadence, intent execution through the
// vault and the chain client, the transaction ledger, and the daily
// strategy reset.
package orchestrator

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/casthq/warden/internal/chain"
	"github.com/casthq/warden/internal/events"
	"github.com/casthq/warden/internal/intent"
	"github.com/casthq/warden/internal/strategy"
	"github.com/casthq/warden/internal/vault"
	"github.com/casthq/warden/pkg/errors"
)

// Options configure an orchestrator.
type Options struct {
	// MaxAgents is the process-wide cap on managed agents.
	MaxAgents int

	// MaxTransactions bounds the ledger; zero selects the default.
	MaxTransactions int

	// ConfirmationTimeout bounds each chain call made during a cycle.
	ConfirmationTimeout time.Duration
}

type managedAgent struct {
	info    AgentInfo
	strat   strategy.Strategy
	ticker  *time.Ticker
	stop    chan struct{}
	running bool
	inCycle atomic.Bool
}

// Orchestrator owns the managed agents and the transaction ledger.
type Orchestrator struct {
	mu     sync.Mutex
	agents map[string]*managedAgent
	closed bool

	vault    *vault.Vault
	chain    chain.Client
	registry *strategy.Registry
	bus      *events.Bus
	history  *intent.HistoryStore
	ledger   *Ledger

	maxAgents   int
	callTimeout time.Duration

	resetTimer *time.Timer
	now        func() time.Time
	log        *zap.Logger
}

// New creates an orchestrator and arms the midnight strategy-reset
// timer.
func New(v *vault.Vault, c chain.Client, reg *strategy.Registry, bus *events.Bus,
	history *intent.HistoryStore, opts Options, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxAgents <= 0 {
		opts.MaxAgents = 10
	}
	if opts.ConfirmationTimeout <= 0 {
		opts.ConfirmationTimeout = 60 * time.Second
	}

	o := &Orchestrator{
		agents:      make(map[string]*managedAgent),
		vault:       v,
		chain:       c,
		registry:    reg,
		bus:         bus,
		history:     history,
		ledger:      NewLedger(opts.MaxTransactions),
		maxAgents:   opts.MaxAgents,
		callTimeout: opts.ConfirmationTimeout,
		now:         time.Now,
		log:         log,
	}
	o.mu.Lock()
	o.scheduleDailyReset()
	o.mu.Unlock()
	return o
}

// Ledger exposes the transaction ledger for read access.
func (o *Orchestrator) Ledger() *Ledger { return o.ledger }

// CreateAgent creates a wallet, builds the strategy, and registers the
// agent in idle state. A strategy-factory failure rolls the wallet back.
func (o *Orchestrator) CreateAgent(cfg AgentConfig) (AgentInfo, error) {
	if err := cfg.Validate(); err != nil {
		return AgentInfo{}, err
	}

	normalized, err := o.registry.ValidateParams(cfg.StrategyKind, cfg.StrategyParams)
	if err != nil {
		return AgentInfo{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return AgentInfo{}, errors.Validation("orchestrator is shut down")
	}
	if len(o.agents) >= o.maxAgents {
		return AgentInfo{}, errors.New(errors.CodeCapacity,
			fmt.Sprintf("maximum of %d agents reached", o.maxAgents))
	}

	wallet, err := o.vault.CreateWallet(cfg.Name)
	if err != nil {
		return AgentInfo{}, err
	}

	strat, err := o.registry.New(cfg.StrategyKind, normalized)
	if err != nil {
		if delErr := o.vault.DeleteWallet(wallet.ID); delErr != nil {
			o.log.Error("wallet rollback failed after strategy init error",
				zap.String("walletId", wallet.ID), zap.Error(delErr))
		}
		return AgentInfo{}, err
	}

	info := AgentInfo{
		ID:                uuid.NewString(),
		Name:              cfg.Name,
		StrategyKind:      cfg.StrategyKind,
		WalletID:          wallet.ID,
		WalletPublicKey:   wallet.PublicKey,
		Status:            StatusIdle,
		StrategyParams:    normalized,
		ExecutionSettings: cfg.ExecutionSettings,
		CreatedAt:         o.now(),
	}
	o.agents[info.ID] = &managedAgent{info: info, strat: strat}

	o.bus.Emit(events.TypeAgentCreated, info.ID, map[string]any{
		"agent": map[string]any{
			"id":           info.ID,
			"name":         info.Name,
			"strategyKind": info.StrategyKind,
			"publicKey":    info.WalletPublicKey,
		},
	})
	o.log.Info("agent created",
		zap.String("agentId", info.ID),
		zap.String("strategy", info.StrategyKind),
		zap.String("publicKey", info.WalletPublicKey))
	return info, nil
}

// StartAgent begins periodic cycles for an enabled agent and runs an
// immediate first cycle. Starting a running agent is an error.
func (o *Orchestrator) StartAgent(id string) error {
	o.mu.Lock()

	ag, ok := o.agents[id]
	if !ok {
		o.mu.Unlock()
		return errors.NotFound("agent", id)
	}
	if !ag.info.ExecutionSettings.Enabled {
		o.mu.Unlock()
		return errors.Validation("agent %s is not enabled for execution", id)
	}
	if ag.running {
		o.mu.Unlock()
		return errors.Validation("agent %s is already running", id)
	}

	ag.running = true
	ag.ticker = time.NewTicker(ag.info.ExecutionSettings.Interval())
	ag.stop = make(chan struct{})
	o.setStatusLocked(ag, StatusIdle, "")
	ticker, stop := ag.ticker, ag.stop
	intervalMs := ag.info.ExecutionSettings.CycleIntervalMs
	o.mu.Unlock()

	go o.loop(id, ticker, stop)

	o.log.Info("agent started", zap.String("agentId", id),
		zap.Int("cycleIntervalMs", intervalMs))
	return nil
}

// loop drives an agent's cycles until its stop channel closes. The
// first cycle runs immediately.
func (o *Orchestrator) loop(id string, ticker *time.Ticker, stop chan struct{}) {
	o.runCycle(id)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			o.runCycle(id)
		}
	}
}

// StopAgent cancels the agent's ticker and marks it stopped. An
// in-flight cycle runs to completion.
func (o *Orchestrator) StopAgent(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	ag, ok := o.agents[id]
	if !ok {
		return errors.NotFound("agent", id)
	}
	if !ag.running {
		return errors.Validation("agent %s is not running", id)
	}
	o.stopLocked(ag)
	o.log.Info("agent stopped", zap.String("agentId", id))
	return nil
}

func (o *Orchestrator) stopLocked(ag *managedAgent) {
	if ag.ticker != nil {
		ag.ticker.Stop()
		ag.ticker = nil
	}
	if ag.stop != nil {
		close(ag.stop)
		ag.stop = nil
	}
	ag.running = false
	o.setStatusLocked(ag, StatusStopped, "")
}

// UpdateAgentConfig applies a patch. Strategy params are re-validated
// and the strategy instance rebuilt; a cadence change swaps the running
// ticker in place so the new interval takes effect from now.
func (o *Orchestrator) UpdateAgentConfig(id string, patch ConfigPatch) (AgentInfo, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ag, ok := o.agents[id]
	if !ok {
		return AgentInfo{}, errors.NotFound("agent", id)
	}

	if patch.StrategyParams != nil {
		normalized, err := o.registry.ValidateParams(ag.info.StrategyKind, *patch.StrategyParams)
		if err != nil {
			return AgentInfo{}, err
		}
		strat, err := o.registry.New(ag.info.StrategyKind, normalized)
		if err != nil {
			return AgentInfo{}, err
		}
		ag.info.StrategyParams = normalized
		ag.strat = strat
	}

	if patch.ExecutionSettings != nil {
		settings := ag.info.ExecutionSettings
		if patch.ExecutionSettings.Enabled != nil {
			settings.Enabled = *patch.ExecutionSettings.Enabled
		}
		if patch.ExecutionSettings.CycleIntervalMs != nil {
			settings.CycleIntervalMs = *patch.ExecutionSettings.CycleIntervalMs
		}
		if err := settings.Validate(); err != nil {
			return AgentInfo{}, err
		}

		recadence := settings.CycleIntervalMs != ag.info.ExecutionSettings.CycleIntervalMs
		ag.info.ExecutionSettings = settings
		if recadence && ag.running && ag.ticker != nil {
			ag.ticker.Reset(settings.Interval())
			o.log.Info("agent cadence changed", zap.String("agentId", id),
				zap.Int("cycleIntervalMs", settings.CycleIntervalMs))
		}
	}

	return ag.info, nil
}

// GetAgent returns one agent's public view.
func (o *Orchestrator) GetAgent(id string) (AgentInfo, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ag, ok := o.agents[id]
	if !ok {
		return AgentInfo{}, errors.NotFound("agent", id)
	}
	return ag.info, nil
}

// GetAllAgents returns every agent's public view.
func (o *Orchestrator) GetAllAgents() []AgentInfo {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]AgentInfo, 0, len(o.agents))
	for _, ag := range o.agents {
		out = append(out, ag.info)
	}
	return out
}

// GetAgentTransactions returns one agent's ledger records, newest first.
func (o *Orchestrator) GetAgentTransactions(id string) ([]TxRecord, error) {
	o.mu.Lock()
	_, ok := o.agents[id]
	o.mu.Unlock()
	if !ok {
		return nil, errors.NotFound("agent", id)
	}
	return o.ledger.ForAgent(id), nil
}

// GetAllTransactions returns the full ledger, newest first.
func (o *Orchestrator) GetAllTransactions() []TxRecord {
	return o.ledger.All()
}

// Stats summarises the orchestrator's state.
type Stats struct {
	TotalAgents          int              `json:"totalAgents"`
	RunningAgents        int              `json:"runningAgents"`
	TotalTransactions    int              `json:"totalTransactions"`
	TransactionsByStatus map[TxStatus]int `json:"transactionsByStatus"`
	IntentHistoryRecords int              `json:"intentHistoryRecords"`
	MaxAgents            int              `json:"maxAgents"`
}

// GetStats returns aggregate counters.
func (o *Orchestrator) GetStats() Stats {
	o.mu.Lock()
	running := 0
	total := len(o.agents)
	for _, ag := range o.agents {
		if ag.running {
			running++
		}
	}
	o.mu.Unlock()

	return Stats{
		TotalAgents:          total,
		RunningAgents:        running,
		TotalTransactions:    o.ledger.Len(),
		TransactionsByStatus: o.ledger.CountByStatus(),
		IntentHistoryRecords: o.history.Len(),
		MaxAgents:            o.maxAgents,
	}
}

// Shutdown stops every agent and releases all timers. In-flight cycles
// run to completion.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closed = true
	if o.resetTimer != nil {
		o.resetTimer.Stop()
		o.resetTimer = nil
	}
	for id, ag := range o.agents {
		if ag.running {
			o.stopLocked(ag)
		} else {
			o.setStatusLocked(ag, StatusStopped, "")
		}
		o.log.Debug("agent shut down", zap.String("agentId", id))
	}
}

// setStatusLocked transitions an agent's status and emits the change.
// Callers must hold o.mu.
func (o *Orchestrator) setStatusLocked(ag *managedAgent, status Status, errMsg string) {
	if ag.info.Status == status && ag.info.ErrorMessage == errMsg {
		return
	}
	ag.info.Status = status
	ag.info.ErrorMessage = errMsg

	data := map[string]any{"status": string(status)}
	if errMsg != "" {
		data["error"] = errMsg
	}
	o.bus.Emit(events.TypeAgentStatusChanged, ag.info.ID, data)
}

// scheduleDailyReset arms a one-shot timer at the next local midnight
// that invokes every managed strategy's daily-reset hook. Callers must
// hold o.mu.
func (o *Orchestrator) scheduleDailyReset() {
	if o.closed {
		return
	}
	now := o.now()
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	o.resetTimer = time.AfterFunc(next.Sub(now), func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for _, ag := range o.agents {
			ag.strat.ResetDaily()
		}
		o.log.Info("strategy daily counters reset", zap.Int("agents", len(o.agents)))
		o.scheduleDailyReset()
	})
}
