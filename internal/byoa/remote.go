package byoa

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Notifier delivers intent results to remote agents.
type Notifier interface {
	Notify(agent AgentRecord, result IntentResult)
}

// notifyTimeout bounds each delivery attempt.
const notifyTimeout = 10 * time.Second

// HTTPNotifier POSTs intent results to a remote agent's endpoint.
// Delivery is fire-and-forget: failures are logged, never retried, and
// never surface to the intent submitter.
type HTTPNotifier struct {
	client *http.Client
	log    *zap.Logger
}

// NewHTTPNotifier creates a notifier with the default delivery timeout.
func NewHTTPNotifier(log *zap.Logger) *HTTPNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPNotifier{
		client: &http.Client{Timeout: notifyTimeout},
		log:    log,
	}
}

// Notify implements Notifier. Runs asynchronously so a slow endpoint
// never delays the submitting agent.
func (n *HTTPNotifier) Notify(agent AgentRecord, result IntentResult) {
	go n.deliver(agent, result)
}

func (n *HTTPNotifier) deliver(agent AgentRecord, result IntentResult) {
	body, err := json.Marshal(map[string]any{
		"event":  "intent_result",
		"result": result,
	})
	if err != nil {
		n.log.Error("encoding notification", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, agent.Endpoint, bytes.NewReader(body))
	if err != nil {
		n.log.Error("building notification request",
			zap.String("agentId", agent.ID), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Warn("notification delivery failed",
			zap.String("agentId", agent.ID),
			zap.String("endpoint", agent.Endpoint),
			zap.Error(err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		n.log.Warn("notification rejected by endpoint",
			zap.String("agentId", agent.ID),
			zap.Int("status", resp.StatusCode))
	}
}
