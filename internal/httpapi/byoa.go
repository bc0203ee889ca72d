package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/casthq/warden/internal/byoa"
	"github.com/casthq/warden/pkg/errors"
)

// handleByoaRegister registers an external agent, binds a fresh wallet,
// and returns the control token. The token appears in this response and
// nowhere else, ever.
func (s *Server) handleByoaRegister(w http.ResponseWriter, r *http.Request) {
	var reg byoa.Registration
	if err := decodeBody(r, &reg); err != nil {
		s.writeError(w, err)
		return
	}

	rec, token, err := s.agents.Register(reg)
	if err != nil {
		s.writeError(w, err)
		return
	}

	bound, err := s.binder.BindNewWallet(rec.ID)
	if err != nil {
		if revErr := s.agents.Revoke(rec.ID); revErr != nil {
			s.log.Error("revoking agent after bind failure",
				zap.String("agentId", rec.ID), zap.Error(revErr))
		}
		s.writeError(w, err)
		return
	}

	rec, err = s.agents.GetAgent(rec.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeSuccess(w, http.StatusCreated, map[string]any{
		"agent":        rec,
		"controlToken": token,
		"wallet":       bound,
	})
}

// handleByoaSubmitIntent routes a bearer-authenticated intent. A policy
// or quota rejection is a result, not a transport failure: the response
// carries the rejected IntentResult with the status the cause maps to.
func (s *Server) handleByoaSubmitIntent(w http.ResponseWriter, r *http.Request) {
	token, err := bearerToken(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.submitIntent(w, r, token)
}

// handleByoaSubmitIntentFor is the path-scoped variant. The bearer
// token must resolve to the agent named in the path.
func (s *Server) handleByoaSubmitIntentFor(w http.ResponseWriter, r *http.Request) {
	token, err := bearerToken(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	rec, err := s.agents.AuthenticateToken(token)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if rec.ID != mux.Vars(r)["id"] {
		s.writeErrorStatus(w, http.StatusForbidden,
			errors.Auth("control token does not belong to agent %s", mux.Vars(r)["id"]))
		return
	}
	s.submitIntent(w, r, token)
}

func (s *Server) submitIntent(w http.ResponseWriter, r *http.Request, token string) {
	var ext byoa.ExternalIntent
	if err := decodeBody(r, &ext); err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.router.SubmitIntent(r.Context(), token, ext)
	if err != nil {
		if res.IntentID == "" {
			// Authentication failed before a result existed.
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, errors.HTTPStatus(err), envelope{
			Success: false,
			Data:    res,
			Error:   toErrorBody(err),
		})
		return
	}
	s.writeSuccess(w, http.StatusOK, res)
}

func (s *Server) handleByoaListAgents(w http.ResponseWriter, _ *http.Request) {
	s.writeSuccess(w, http.StatusOK, map[string]any{
		"agents": s.agents.GetAll(),
	})
}

func (s *Server) handleByoaGetAgent(w http.ResponseWriter, r *http.Request) {
	rec, err := s.agents.GetAgent(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, rec)
}

func (s *Server) handleByoaAgentIntents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.agents.GetAgent(id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, map[string]any{
		"intents": s.history.ForAgent(id, queryInt(r, "limit", 100)),
	})
}

func (s *Server) handleByoaActivate(w http.ResponseWriter, r *http.Request) {
	s.byoaLifecycle(w, r, s.agents.Activate)
}

func (s *Server) handleByoaDeactivate(w http.ResponseWriter, r *http.Request) {
	s.byoaLifecycle(w, r, s.agents.Deactivate)
}

func (s *Server) handleByoaRevoke(w http.ResponseWriter, r *http.Request) {
	s.byoaLifecycle(w, r, s.agents.Revoke)
}

func (s *Server) byoaLifecycle(w http.ResponseWriter, r *http.Request, op func(string) error) {
	id := mux.Vars(r)["id"]
	if err := op(id); err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := s.agents.GetAgent(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, rec)
}
