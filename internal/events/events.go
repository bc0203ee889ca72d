// Package events implements the in-memory system event bus: bounded
// fan-out to subscribers plus a trimmed history ring.
package events

import "time"

// Type tags a system event.
type Type string

// System event types.
const (
	TypeAgentCreated       Type = "agent_created"
	TypeAgentStatusChanged Type = "agent_status_changed"
	TypeAgentAction        Type = "agent_action"
	TypeTransaction        Type = "transaction"
	TypeBalanceChanged     Type = "balance_changed"
	TypeSystemError        Type = "system_error"
)

// Event is a single system event. IDs are assigned monotonically by the
// bus at emit time.
type Event struct {
	ID        uint64         `json:"id"`
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	AgentID   string         `json:"agentId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// matchesAgent reports whether the event belongs to the given agent,
// checking the top-level AgentID and a nested data["agent"]["id"].
func (e *Event) matchesAgent(agentID string) bool {
	if e.AgentID == agentID {
		return true
	}
	if v, ok := e.Data["agentId"]; ok {
		if s, ok := v.(string); ok && s == agentID {
			return true
		}
	}
	if v, ok := e.Data["agent"]; ok {
		if m, ok := v.(map[string]any); ok {
			if id, ok := m["id"].(string); ok && id == agentID {
				return true
			}
		}
	}
	return false
}
