package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/casthq/warden/internal/config"
	"github.com/casthq/warden/internal/orchestrator"
	"github.com/casthq/warden/pkg/errors"
)

// healthTimeout bounds the chain probe on the liveness endpoint.
const healthTimeout = 3 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	chainStatus := "ok"
	status := "ok"
	if err := s.chain.CheckHealth(ctx); err != nil {
		chainStatus = err.Error()
		status = "degraded"
	}

	s.writeSuccess(w, http.StatusOK, map[string]any{
		"status":  status,
		"network": string(s.network),
		"chain":   chainStatus,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeSuccess(w, http.StatusOK, map[string]any{
		"orchestrator":   s.orch.GetStats(),
		"wallets":        s.vault.WalletCount(),
		"externalAgents": s.agents.Count(),
	})
}

func (s *Server) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	s.writeSuccess(w, http.StatusOK, map[string]any{
		"agents": s.orch.GetAllAgents(),
	})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	info, err := s.orch.GetAgent(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, info)
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var cfg orchestrator.AgentConfig
	if err := decodeBody(r, &cfg); err != nil {
		s.writeError(w, err)
		return
	}
	if cfg.ExecutionSettings.CycleIntervalMs == 0 {
		cfg.ExecutionSettings.CycleIntervalMs = s.defaultIntervalMs
	}

	info, err := s.orch.CreateAgent(cfg)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusCreated, info)
}

func (s *Server) handleUpdateAgentConfig(w http.ResponseWriter, r *http.Request) {
	var patch orchestrator.ConfigPatch
	if err := decodeBody(r, &patch); err != nil {
		s.writeError(w, err)
		return
	}

	info, err := s.orch.UpdateAgentConfig(mux.Vars(r)["id"], patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, info)
}

func (s *Server) handleStartAgent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.orch.StartAgent(id); err != nil {
		s.writeError(w, err)
		return
	}
	info, err := s.orch.GetAgent(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, info)
}

func (s *Server) handleStopAgent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.orch.StopAgent(id); err != nil {
		s.writeError(w, err)
		return
	}
	info, err := s.orch.GetAgent(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, info)
}

func (s *Server) handleAgentTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.orch.GetAgentTransactions(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if agentID := r.URL.Query().Get("agentId"); agentID != "" {
		txs, err := s.orch.GetAgentTransactions(agentID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeSuccess(w, http.StatusOK, map[string]any{"transactions": txs})
		return
	}
	s.writeSuccess(w, http.StatusOK, map[string]any{
		"transactions": s.orch.GetAllTransactions(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	if agentID := r.URL.Query().Get("agentId"); agentID != "" {
		s.writeSuccess(w, http.StatusOK, map[string]any{
			"events": s.bus.AgentEvents(agentID, limit),
		})
		return
	}
	s.writeSuccess(w, http.StatusOK, map[string]any{
		"events": s.bus.RecentEvents(limit),
	})
}

func (s *Server) handleIntents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	if agentID := r.URL.Query().Get("agentId"); agentID != "" {
		s.writeSuccess(w, http.StatusOK, map[string]any{
			"intents": s.history.ForAgent(agentID, limit),
		})
		return
	}
	s.writeSuccess(w, http.StatusOK, map[string]any{
		"intents": s.history.Recent(limit),
	})
}

func (s *Server) handleListStrategies(w http.ResponseWriter, _ *http.Request) {
	s.writeSuccess(w, http.StatusOK, map[string]any{
		"strategies": s.strategies.ListDTOs(),
	})
}

func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	dto, err := s.strategies.ToDTO(mux.Vars(r)["name"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, dto)
}

func (s *Server) handleExplorer(w http.ResponseWriter, r *http.Request) {
	signature := mux.Vars(r)["signature"]
	if signature == "" {
		s.writeError(w, errors.Validation("signature is required"))
		return
	}
	s.writeSuccess(w, http.StatusOK, map[string]any{
		"signature": signature,
		"url": fmt.Sprintf("https://explorer.solana.com/tx/%s?cluster=%s",
			signature, explorerCluster(s.network)),
	})
}

// explorerCluster maps the configured network to the explorer's cluster
// query value. Local validators use the explorer's custom-RPC mode.
func explorerCluster(n config.Network) string {
	if n == config.NetworkLocal {
		return "custom"
	}
	return string(n)
}

func (s *Server) handleAdminBackup(w http.ResponseWriter, _ *http.Request) {
	if s.backup == nil {
		s.writeError(w, errors.NotFound("backup exporter", "backup"))
		return
	}
	archive, err := s.backup.Export()
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="warden-backup.age"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
