package orchestrator

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/groxaxo/chatmode/llm"
	"github.com/groxaxo/chatmode/tools"
)

// State is the per-agent runtime state within a session.
type State string

const (
	// StateActive means the agent takes turns in the rotation.
	StateActive State = "ACTIVE"
	// StatePaused means the agent is skipped in the rotation but keeps
	// history visibility and its rotation slot.
	StatePaused State = "PAUSED"
	// StateStopped means the agent is removed from rotation; any in-flight
	// generation was canceled.
	StateStopped State = "STOPPED"
	// StateFinished means the agent completed its role. Terminal unless
	// explicitly restarted.
	StateFinished State = "FINISHED"
)

// Action is an admin-initiated state transition request.
type Action string

const (
	ActionPause   Action = "pause"
	ActionResume  Action = "resume"
	ActionStop    Action = "stop"
	ActionFinish  Action = "finish"
	ActionRestart Action = "restart"
)

// transition returns the successor state for (state, action), and whether
// the pair is a valid transition. Invalid pairs keep the current state; the
// caller reports it unchanged so the admin control surface stays idempotent.
//
// Valid set: ACTIVE <-> PAUSED; ACTIVE/PAUSED -> STOPPED; any -> FINISHED;
// STOPPED/FINISHED -> ACTIVE via explicit restart only.
func transition(state State, action Action) (State, bool) {
	switch action {
	case ActionPause:
		if state == StateActive {
			return StatePaused, true
		}
	case ActionResume:
		if state == StatePaused {
			return StateActive, true
		}
	case ActionStop:
		if state == StateActive || state == StatePaused {
			return StateStopped, true
		}
	case ActionFinish:
		if state != StateFinished {
			return StateFinished, true
		}
	case ActionRestart:
		if state == StateStopped || state == StateFinished {
			return StateActive, true
		}
	}
	return state, false
}

// agentRuntime is the per-session runtime of one participating agent.
// All mutable fields are guarded by the orchestrator mutex.
type agentRuntime struct {
	cfg      AgentConfig
	provider llm.Provider
	toolset  *tools.Set
	limiter  *rate.Limiter // nil when unlimited

	state       State
	stateReason string

	// genCancel is non-nil while a generation for this agent is in flight.
	// Stopping the agent (or the session) invokes it, which propagates to
	// the underlying request immediately.
	genCancel context.CancelFunc
}

// AgentSnapshot is the externally visible view of an agent's runtime state.
type AgentSnapshot struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	State    State  `json:"state"`
	Reason   string `json:"reason,omitempty"`
	InFlight bool   `json:"in_flight"`
}

func (a *agentRuntime) snapshot() AgentSnapshot {
	return AgentSnapshot{
		ID:       a.cfg.ID,
		Name:     a.cfg.Name,
		State:    a.state,
		Reason:   a.stateReason,
		InFlight: a.genCancel != nil,
	}
}

// topK returns the agent's memory retrieval count given the default.
func (a *agentRuntime) topK(def int) int {
	if a.cfg.TopK > 0 {
		return a.cfg.TopK
	}
	return def
}

// historyWindow returns the agent's prompt history window given the default.
func (a *agentRuntime) historyWindow(def int) int {
	if a.cfg.ContextWindow > 0 {
		return a.cfg.ContextWindow
	}
	return def
}
