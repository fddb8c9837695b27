package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/groxaxo/chatmode/store"
	"github.com/groxaxo/chatmode/types"
)

// AgentHandler exposes agent profile CRUD and the audit trail.
type AgentHandler struct {
	store  *store.Store
	logger *zap.Logger
}

// NewAgentHandler creates the agent handler.
func NewAgentHandler(s *store.Store, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{
		store:  s,
		logger: logger.With(zap.String("component", "agent_handler")),
	}
}

func (h *AgentHandler) audit(r *http.Request, action, resource, detail string) {
	actor := "unknown"
	if id, ok := IdentityFrom(r.Context()); ok {
		actor = id.Username
	}
	h.store.RecordAudit(r.Context(), actor, action, resource, detail)
}

// List handles GET /v1/agents?include_disabled=true.
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	includeDisabled := r.URL.Query().Get("include_disabled") == "true"
	profiles, err := h.store.ListAgents(r.Context(), includeDisabled)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, profiles)
}

// Get handles GET /v1/agents/{id}.
func (h *AgentHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.store.GetAgent(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, profile)
}

// Create handles POST /v1/agents.
func (h *AgentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var profile store.AgentProfile
	if err := DecodeJSONBody(w, r, &profile, h.logger); err != nil {
		return
	}

	if err := h.store.CreateAgent(r.Context(), &profile); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.audit(r, "agent.create", "agent/"+profile.ID, profile.Name)
	WriteJSON(w, http.StatusCreated, Response{Success: true, Data: profile})
}

// Update handles PUT /v1/agents/{id}.
func (h *AgentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var profile store.AgentProfile
	if err := DecodeJSONBody(w, r, &profile, h.logger); err != nil {
		return
	}
	profile.ID = r.PathValue("id")
	if profile.ID == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "agent id is required"), h.logger)
		return
	}

	if err := h.store.UpdateAgent(r.Context(), &profile); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.audit(r, "agent.update", "agent/"+profile.ID, profile.Name)
	WriteSuccess(w, profile)
}

// Disable handles POST /v1/agents/{id}/disable. Profiles are soft-disabled
// so message attribution in old transcripts stays intact.
func (h *AgentHandler) Disable(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.DisableAgent(r.Context(), id); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	h.audit(r, "agent.disable", "agent/"+id, "")
	WriteSuccess(w, map[string]string{"id": id, "status": "disabled"})
}

// Enable handles POST /v1/agents/{id}/enable.
func (h *AgentHandler) Enable(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.EnableAgent(r.Context(), id); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	h.audit(r, "agent.enable", "agent/"+id, "")
	WriteSuccess(w, map[string]string{"id": id, "status": "enabled"})
}

// Audit handles GET /v1/audit?limit=100.
func (h *AgentHandler) Audit(w http.ResponseWriter, r *http.Request) {
	// Invalid limits fall back to the default rather than erroring.
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.store.ListAudit(r.Context(), limit)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, entries)
}
