package orchestrator

import (
	"strings"
	"time"

	"github.com/casthq/warden/pkg/errors"
)

// Status is an agent's lifecycle state.
type Status string

// Agent statuses.
const (
	StatusIdle      Status = "idle"
	StatusThinking  Status = "thinking"
	StatusExecuting Status = "executing"
	StatusWaiting   Status = "waiting"
	StatusError     Status = "error"
	StatusStopped   Status = "stopped"
)

// Cycle cadence bounds in milliseconds.
const (
	MinCycleIntervalMs = 5_000
	MaxCycleIntervalMs = 3_600_000
)

// ExecutionSettings controls whether and how often an agent runs.
type ExecutionSettings struct {
	Enabled         bool `json:"enabled"`
	CycleIntervalMs int  `json:"cycleIntervalMs"`
}

// Validate enforces the cadence bounds.
func (s ExecutionSettings) Validate() error {
	if s.CycleIntervalMs < MinCycleIntervalMs || s.CycleIntervalMs > MaxCycleIntervalMs {
		return errors.Validation("cycleIntervalMs must be between %d and %d, got %d",
			MinCycleIntervalMs, MaxCycleIntervalMs, s.CycleIntervalMs)
	}
	return nil
}

// Interval returns the cadence as a duration.
func (s ExecutionSettings) Interval() time.Duration {
	return time.Duration(s.CycleIntervalMs) * time.Millisecond
}

// AgentConfig is the input to CreateAgent.
type AgentConfig struct {
	Name              string            `json:"name"`
	StrategyKind      string            `json:"strategyKind"`
	StrategyParams    map[string]any    `json:"strategyParams"`
	ExecutionSettings ExecutionSettings `json:"executionSettings"`
}

// Validate checks the static parts of the config; strategy params are
// validated separately against the registry schema.
func (c AgentConfig) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" || len(name) > 100 {
		return errors.Validation("agent name must be 1-100 characters")
	}
	if c.StrategyKind == "" {
		return errors.Validation("strategyKind is required")
	}
	return c.ExecutionSettings.Validate()
}

// ConfigPatch updates an agent's strategy params or execution settings.
// Nil fields are left unchanged.
type ConfigPatch struct {
	StrategyParams    *map[string]any         `json:"strategyParams,omitempty"`
	ExecutionSettings *ExecutionSettingsPatch `json:"executionSettings,omitempty"`
}

// ExecutionSettingsPatch updates individual execution settings.
type ExecutionSettingsPatch struct {
	Enabled         *bool `json:"enabled,omitempty"`
	CycleIntervalMs *int  `json:"cycleIntervalMs,omitempty"`
}

// AgentInfo is the public view of a managed agent.
type AgentInfo struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	StrategyKind      string            `json:"strategyKind"`
	WalletID          string            `json:"walletId"`
	WalletPublicKey   string            `json:"walletPublicKey"`
	Status            Status            `json:"status"`
	StrategyParams    map[string]any    `json:"strategyParams"`
	ExecutionSettings ExecutionSettings `json:"executionSettings"`
	CreatedAt         time.Time         `json:"createdAt"`
	LastActionAt      *time.Time        `json:"lastActionAt,omitempty"`
	ErrorMessage      string            `json:"errorMessage,omitempty"`
}
