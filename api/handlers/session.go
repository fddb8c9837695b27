package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/groxaxo/chatmode/orchestrator"
	"github.com/groxaxo/chatmode/store"
	"github.com/groxaxo/chatmode/types"
)

// SessionHandler exposes the conversation control surface.
type SessionHandler struct {
	orch   *orchestrator.Orchestrator
	store  *store.Store
	logger *zap.Logger
}

// NewSessionHandler creates the session handler.
func NewSessionHandler(orch *orchestrator.Orchestrator, s *store.Store, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		orch:   orch,
		store:  s,
		logger: logger.With(zap.String("component", "session_handler")),
	}
}

func (h *SessionHandler) audit(r *http.Request, action, resource, detail string) {
	if h.store == nil {
		return
	}
	actor := "unknown"
	if id, ok := IdentityFrom(r.Context()); ok {
		actor = id.Username
	}
	h.store.RecordAudit(r.Context(), actor, action, resource, detail)
}

type startRequest struct {
	Topic    string   `json:"topic"`
	AgentIDs []string `json:"agent_ids"`
}

// Start handles POST /v1/session/start.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Topic == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "topic is required"), h.logger)
		return
	}

	snap, err := h.orch.Start(r.Context(), req.Topic, req.AgentIDs)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.audit(r, "session.start", "session/"+snap.SessionID, req.Topic)
	WriteSuccess(w, snap)
}

// Stop handles POST /v1/session/stop.
func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.orch.Stop()
	snap := h.orch.Status()
	h.audit(r, "session.stop", "session/"+snap.SessionID, "")
	WriteSuccess(w, snap)
}

// Resume handles POST /v1/session/resume.
func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	snap, err := h.orch.Resume()
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	h.audit(r, "session.resume", "session/"+snap.SessionID, "")
	WriteSuccess(w, snap)
}

// Status handles GET /v1/session/status.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.orch.Status())
}

// History handles GET /v1/session/history.
func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.orch.History()
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, history)
}

type injectRequest struct {
	Sender  string `json:"sender,omitempty"`
	Content string `json:"content"`
}

// Inject handles POST /v1/session/inject.
func (h *SessionHandler) Inject(w http.ResponseWriter, r *http.Request) {
	var req injectRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Content == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "content is required"), h.logger)
		return
	}

	msg, err := h.orch.Inject(req.Sender, req.Content)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.audit(r, "session.inject", "message/"+msg.ID, "")
	WriteSuccess(w, msg)
}

// Transcript handles GET /v1/session/transcript?format=markdown|csv|json|txt.
func (h *SessionHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	format, err := orchestrator.ParseTranscriptFormat(r.URL.Query().Get("format"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	data, err := h.orch.Transcript(format)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", format.MimeType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=transcript.%s", format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type clearMemoryRequest struct {
	AgentID   string `json:"agent_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// ClearMemory handles POST /v1/memory/clear.
func (h *SessionHandler) ClearMemory(w http.ResponseWriter, r *http.Request) {
	var req clearMemoryRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	deleted, err := h.orch.ClearMemory(r.Context(), req.AgentID, req.SessionID)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.audit(r, "memory.clear",
		fmt.Sprintf("memory/agent=%s/session=%s", req.AgentID, req.SessionID),
		fmt.Sprintf("deleted %d entries", deleted))
	WriteSuccess(w, map[string]int{"deleted": deleted})
}

// AgentStates handles GET /v1/session/agents.
func (h *SessionHandler) AgentStates(w http.ResponseWriter, r *http.Request) {
	states, err := h.orch.AgentStates()
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, states)
}

type agentActionRequest struct {
	Reason string `json:"reason,omitempty"`
}

// AgentAction handles POST /v1/session/agents/{id}/{action} for pause,
// resume, stop, finish, and restart.
func (h *SessionHandler) AgentAction(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")
	action := r.PathValue("action")

	var req agentActionRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
			return
		}
	}

	var (
		snap orchestrator.AgentSnapshot
		err  error
	)
	switch action {
	case "pause":
		snap, err = h.orch.PauseAgent(agentID, req.Reason)
	case "resume":
		snap, err = h.orch.ResumeAgent(agentID)
	case "stop":
		snap, err = h.orch.StopAgent(agentID, req.Reason)
	case "finish":
		snap, err = h.orch.FinishAgent(agentID)
	case "restart":
		snap, err = h.orch.RestartAgent(agentID)
	default:
		WriteError(w, types.NewError(types.ErrInvalidRequest,
			fmt.Sprintf("unknown agent action %q", action)), h.logger)
		return
	}
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.audit(r, "agent."+action, "agent/"+agentID, req.Reason)
	WriteSuccess(w, snap)
}

// ListTools handles GET /v1/session/agents/{id}/tools.
func (h *SessionHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	schemas, err := h.orch.ListTools(r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, schemas)
}

type callToolRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CallTool handles POST /v1/session/agents/{id}/tools/call. The call is
// subject to the agent's allow-list; execution failures come back inside
// the result payload.
func (h *SessionHandler) CallTool(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")

	var req callToolRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Name == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "tool name is required"), h.logger)
		return
	}

	result, err := h.orch.CallTool(r.Context(), agentID, types.ToolCall{
		Name:      req.Name,
		Arguments: req.Arguments,
	})
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.audit(r, "tool.call", "agent/"+agentID+"/tool/"+req.Name, result.Error)
	WriteSuccess(w, result)
}
