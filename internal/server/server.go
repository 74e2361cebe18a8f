// Package server exposes the policy engine as an HTTP tool façade: three
// evaluate tools, resource listing, audit queries and an SSE decision
// stream. No authorization logic lives here; every verdict comes from the
// engine.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/subguard/guardian/household"
	"github.com/subguard/guardian/internal/logger"
	"github.com/subguard/guardian/policy"
)

// Server routes tool calls to per-household engines.
type Server struct {
	manager *household.Manager
	router  *chi.Mux
	timeout time.Duration // request timeout for the non-streaming routes
}

// New creates the server over an already-populated household manager.
func New(manager *household.Manager) *Server {
	s := &Server{manager: manager, timeout: 60 * time.Second}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.timeout))

		r.Get("/api/v1/health", s.handleHealth)
		r.Get("/api/v1/households", s.handleListHouseholds)

		r.Route("/api/v1/households/{householdID}", func(r chi.Router) {
			r.Post("/reload", s.handleReload)
			r.Post("/tools/cancel", s.handleCancel)
			r.Post("/tools/delegation", s.handleDelegation)
			r.Post("/tools/spend", s.handleSpend)
			r.Get("/resources", s.handleResources)
			r.Get("/audit", s.handleAudit)
		})
	})

	// The decision stream stays open until the client disconnects, so it
	// must not run under the request timeout.
	r.Get("/api/v1/households/{householdID}/events", s.handleEvents)

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"households": len(s.manager.List()),
		"decisions":  logger.TotalDecisions.Load(),
		"denials":    logger.TotalDenials.Load(),
		"reloads":    logger.TotalReloads.Load(),
	})
}

func (s *Server) handleListHouseholds(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"households": s.manager.List(),
	})
}

// resolveHousehold fetches the household from the URL or writes a 404.
func (s *Server) resolveHousehold(w http.ResponseWriter, r *http.Request) (*household.Household, bool) {
	id := chi.URLParam(r, "householdID")
	h, err := s.manager.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "household not found", err)
		return nil, false
	}
	return h, true
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	h, ok := s.resolveHousehold(w, r)
	if !ok {
		return
	}

	if err := s.manager.Reload(h.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "reload failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "reloaded",
		"household": h.ID,
		"resources": len(h.Store.Snapshot().Catalog),
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	h, ok := s.resolveHousehold(w, r)
	if !ok {
		return
	}

	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.ResourceID == "" || req.Requester == "" {
		respondError(w, http.StatusBadRequest, "resource_id and requester are required", nil)
		return
	}

	decision := h.Engine.EvaluateCancel(req.ResourceID, req.Requester)
	respondJSON(w, http.StatusOK, toDecisionResponse(decision))
}

func (s *Server) handleDelegation(w http.ResponseWriter, r *http.Request) {
	h, ok := s.resolveHousehold(w, r)
	if !ok {
		return
	}

	var req DelegationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Requester == "" || req.ResourceID == "" {
		respondError(w, http.StatusBadRequest, "requester and resource_id are required", nil)
		return
	}

	action, err := policy.ParseAction(req.Action)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unrecognized action", err)
		return
	}
	if action == policy.ActionSpend {
		respondError(w, http.StatusBadRequest, "spend checks go through the spend tool", nil)
		return
	}

	// Cancels carry owner category and amount rules, which only the cancel
	// evaluator applies. Routing them there keeps every cancel verdict
	// identical regardless of which tool asked.
	var decision policy.Decision
	if action == policy.ActionCancel {
		decision = h.Engine.EvaluateCancel(req.ResourceID, req.Requester)
	} else {
		decision = h.Engine.EvaluateDelegation(req.Requester, action, req.ResourceID)
	}
	respondJSON(w, http.StatusOK, toDecisionResponse(decision))
}

func (s *Server) handleSpend(w http.ResponseWriter, r *http.Request) {
	h, ok := s.resolveHousehold(w, r)
	if !ok {
		return
	}

	var req SpendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Requester == "" {
		respondError(w, http.StatusBadRequest, "requester is required", nil)
		return
	}
	if req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "amount must be positive", nil)
		return
	}

	decision := h.Engine.EvaluateSpend(req.Amount, req.Category, req.Requester)
	respondJSON(w, http.StatusOK, toDecisionResponse(decision))
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	h, ok := s.resolveHousehold(w, r)
	if !ok {
		return
	}

	requester := r.URL.Query().Get("requester")
	if requester == "" {
		respondError(w, http.StatusBadRequest, "requester query parameter is required", nil)
		return
	}

	actor := policy.NewActor(requester, h.Engine)
	resources := actor.ListAccessible()
	if resources == nil {
		resources = []policy.Resource{}
	}

	respondJSON(w, http.StatusOK, ResourcesResponse{
		Requester: requester,
		Resources: resources,
	})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	h, ok := s.resolveHousehold(w, r)
	if !ok {
		return
	}

	filter, err := parseAuditFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid audit filter", err)
		return
	}

	entries := h.Engine.Audit().Query(filter)
	out := make([]DecisionResponse, 0, len(entries))
	for _, d := range entries {
		out = append(out, toDecisionResponse(d))
	}

	respondJSON(w, http.StatusOK, AuditResponse{
		Entries: out,
		Total:   h.Engine.Audit().Len(),
	})
}

func parseAuditFilter(r *http.Request) (policy.Filter, error) {
	q := r.URL.Query()
	filter := policy.Filter{
		Requester: q.Get("requester"),
		Action:    policy.Action(q.Get("action")),
	}

	if v := q.Get("allowed"); v != "" {
		allowed, err := strconv.ParseBool(v)
		if err != nil {
			return policy.Filter{}, fmt.Errorf("allowed: %w", err)
		}
		filter.Allowed = &allowed
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return policy.Filter{}, fmt.Errorf("since: %w", err)
		}
		filter.Since = t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return policy.Filter{}, fmt.Errorf("until: %w", err)
		}
		filter.Until = t
	}

	return filter, nil
}

// handleEvents streams decisions as server-sent events, one per audit
// append, until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	h, ok := s.resolveHousehold(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		respondError(w, http.StatusInternalServerError, "streaming unsupported", nil)
		return
	}

	events, cancel := h.Engine.Audit().Subscribe(16)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case d, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(toDecisionResponse(d))
			if err != nil {
				logger.Error("failed to encode decision event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: decision\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}
