package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nutrigen/nutrigen/internal/app/orchestrator"
	"github.com/nutrigen/nutrigen/internal/domain"
	"github.com/nutrigen/nutrigen/internal/infra/surface"
)

// ─── Generation API ─────────────────────────────────────────────────────────
//
// POST /api/generations/{feature} — run one credit-gated generation
// GET  /api/generations            — recent generation logs for the caller
// GET  /api/generations/{id}       — one log by ID
// GET  /api/features               — registered generation features
// GET  /api/credits                — balance + recent ledger
// POST /api/credits/grant          — admin top-up
// GET  /api/progress               — latest stepper snapshot (polling fallback)

// generateBody is the optional JSON body of a generation request.
type generateBody struct {
	Preferences json.RawMessage `json:"preferences,omitempty"`
	Language    string          `json:"language,omitempty"`
}

// HandleGenerate runs one generation attempt for the caller.
// POST /api/generations/{feature}
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	if s.limiter != nil && !s.limiter.allow(uid) {
		writeError(w, http.StatusTooManyRequests, "too many generation requests")
		return
	}

	genType := domain.GenerationType(chi.URLParam(r, "feature"))
	if !genType.Valid() {
		writeError(w, http.StatusNotFound, "unknown generation feature")
		return
	}

	// An empty body is fine; preferences are optional.
	var body generateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	outcome, err := s.svc.Generate(r.Context(), uid, orchestrator.GenerateRequest{
		Type:        genType,
		Preferences: body.Preferences,
		Language:    body.Language,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrProfileNotFound):
			writeError(w, http.StatusNotFound, "profile not found")
		case errors.Is(err, domain.ErrUnknownFeature):
			writeError(w, http.StatusNotFound, "unknown generation feature")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	status := http.StatusOK
	switch outcome.Status {
	case orchestrator.OutcomeDenied:
		status = http.StatusPaymentRequired
	case orchestrator.OutcomeFailed:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, outcome)
}

// handleListFeatures returns the registered generation features with their
// step plans, so clients can render loading screens without hardcoding them.
// GET /api/features
func (s *Server) handleListFeatures(w http.ResponseWriter, r *http.Request) {
	type stepResponse struct {
		ID    string `json:"id"`
		Label string `json:"label"`
	}
	type featureResponse struct {
		Type  string         `json:"type"`
		Steps []stepResponse `json:"steps"`
	}

	var out []featureResponse
	for _, t := range domain.GenerationTypes() {
		f, ok := s.svc.Feature(t)
		if !ok {
			continue
		}
		fr := featureResponse{Type: string(t)}
		for _, st := range f.Steps {
			fr.Steps = append(fr.Steps, stepResponse{ID: st.ID, Label: st.Label})
		}
		out = append(out, fr)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"features": out,
	})
}

// handleListLogs returns the caller's recent generation logs, newest first.
// GET /api/generations?limit=20
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	logs, err := s.store.ListLogs(r.Context(), uid, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs": logs,
	})
}

// handleGetLog returns one generation log. Callers only see their own logs.
// GET /api/generations/{id}
func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	log, err := s.store.GetLog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrLogNotFound) {
			writeError(w, http.StatusNotFound, "log not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if log.UserID != uid {
		writeError(w, http.StatusNotFound, "log not found")
		return
	}

	writeJSON(w, http.StatusOK, log)
}

// handleCredits returns the caller's balance and recent ledger entries.
// GET /api/credits
func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	profile, err := s.profiles.GetProfile(r.Context(), uid)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ledger, err := s.profiles.Ledger(r.Context(), uid, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"remaining": profile.AIGenerationsRemaining,
		"ledger":    ledger,
	})
}

// grantRequest is the body of an admin credit grant.
type grantRequest struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
}

// handleGrantCredits tops up a user's balance. Admin only.
// POST /api/credits/grant
func (s *Server) handleGrantCredits(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	caller, err := s.profiles.GetProfile(r.Context(), uid)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if caller.Role != domain.RoleAdmin {
		writeError(w, http.StatusForbidden, "admin role required")
		return
	}

	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "user_id and positive amount required")
		return
	}

	balance, err := s.profiles.GrantCredits(r.Context(), req.UserID, req.Amount, domain.TxGrant)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "target profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":   req.UserID,
		"remaining": balance,
	})
}

// handleProgress returns the caller's latest stepper snapshot. Clients that
// cannot hold an SSE connection poll this instead.
// GET /api/progress
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	snap, active := s.svc.Progress(uid)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active":    active,
		"snapshot":  snap,
		"timestamp": time.Now().Unix(),
	})
}

// handleToasts returns the caller's recent toasts, oldest first. Clients
// replay these after a reconnect.
// GET /api/toasts
func (s *Server) handleToasts(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	var toasts []surface.Toast
	if s.toasts != nil {
		toasts = s.toasts.Recent(uid)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"toasts": toasts,
	})
}
