package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/groxaxo/chatmode/internal/metrics"
	"github.com/groxaxo/chatmode/llm"
	"github.com/groxaxo/chatmode/memory"
	"github.com/groxaxo/chatmode/speech"
	"github.com/groxaxo/chatmode/tools"
	"github.com/groxaxo/chatmode/types"
)

// ttsTimeout bounds one background synthesis call.
const ttsTimeout = 2 * time.Minute

// Orchestrator owns the single active session and drives its turn loop. All
// admin operations go through one mutex, so concurrent control calls are
// serialized; the loop itself is single-threaded in its decision-making even
// though individual I/O calls are asynchronous and cancelable.
type Orchestrator struct {
	cfg       Config
	profiles  ProfileSource
	providers ProviderFactory
	memory    *memory.Index
	synth     *speech.Synthesizer // nil disables TTS
	registry  *tools.Registry
	collector *metrics.Collector // nil disables metrics
	logger    *zap.Logger

	mu         sync.Mutex
	session    *Session
	agents     []*agentRuntime
	rotation   int
	loopCancel context.CancelFunc
	loopDone   chan struct{}

	subsMu  sync.Mutex
	subs    map[int]chan Message
	nextSub int

	ttsWG sync.WaitGroup
}

// New creates an orchestrator. synth and collector may be nil.
func New(cfg Config, profiles ProfileSource, providers ProviderFactory, mem *memory.Index,
	synth *speech.Synthesizer, registry *tools.Registry, collector *metrics.Collector,
	logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		profiles:  profiles,
		providers: providers,
		memory:    mem,
		synth:     synth,
		registry:  registry,
		collector: collector,
		logger:    logger.With(zap.String("component", "orchestrator")),
		subs:      make(map[int]chan Message),
	}
}

// =============================================================================
// Session lifecycle
// =============================================================================

// Start creates a new running session for the topic and begins the turn
// loop. A previously active session is stopped and replaced. When fewer than
// two agents resolve, a synthetic moderator is injected to keep a solo agent
// engaged. Fails with InvalidConfiguration when zero agents are resolvable.
func (o *Orchestrator) Start(ctx context.Context, topic string, agentIDs []string) (*StatusSnapshot, error) {
	configs, err := o.profiles.ResolveAgents(ctx, agentIDs)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidConfiguration, "failed to resolve agents").WithCause(err)
	}
	if len(configs) == 0 {
		return nil, types.NewError(types.ErrInvalidConfiguration, "no resolvable agents for session")
	}
	if len(configs) < 2 {
		configs = append(configs, moderatorConfig(o.cfg))
	}

	runtimes := make([]*agentRuntime, 0, len(configs))
	for i := range configs {
		cfg := configs[i]
		if err := cfg.Validate(o.cfg.MaxPersonaBytes); err != nil {
			return nil, err
		}

		provider, err := o.providers.Provider(cfg.Provider)
		if err != nil {
			return nil, types.NewError(types.ErrInvalidConfiguration,
				fmt.Sprintf("agent %s: unknown provider %q", cfg.ID, cfg.Provider)).WithCause(err)
		}

		toolset, err := o.registry.Resolve(cfg.Tools)
		if err != nil {
			return nil, err
		}

		var limiter *rate.Limiter
		if cfg.RatePerMinute > 0 {
			limiter = rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), 1)
		}

		runtimes = append(runtimes, &agentRuntime{
			cfg:      cfg,
			provider: provider,
			toolset:  toolset,
			limiter:  limiter,
			state:    StateActive,
		})
	}

	o.mu.Lock()
	o.stopLocked()
	o.session = NewSession(topic)
	o.agents = runtimes
	o.rotation = 0

	loopCtx, cancel := context.WithCancel(context.Background())
	o.loopCancel = cancel
	o.loopDone = make(chan struct{})
	go o.runLoop(loopCtx, o.loopDone)

	snapshot := o.statusLocked()
	o.mu.Unlock()

	o.logger.Info("session started",
		zap.String("session_id", snapshot.SessionID),
		zap.String("topic", topic),
		zap.Int("agents", len(runtimes)))
	return snapshot, nil
}

// Stop transitions the session to stopped and cancels any in-flight
// generation immediately. Idempotent: stopping with no session, or an
// already stopped session, is a no-op.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	done := o.loopDone
	o.stopLocked()
	o.mu.Unlock()

	if done != nil {
		<-done
	}
	o.logger.Info("session stopped")
}

// stopLocked halts the loop and cancels in-flight work. Caller holds o.mu.
func (o *Orchestrator) stopLocked() {
	if o.session != nil {
		o.session.SetStatus(StatusStopped)
	}
	for _, a := range o.agents {
		if a.genCancel != nil {
			a.genCancel()
		}
	}
	if o.loopCancel != nil {
		o.loopCancel()
		o.loopCancel = nil
	}
}

// Resume transitions a stopped or paused session back to running with the
// same topic and history. Fails with NoActiveSession when none exists.
func (o *Orchestrator) Resume() (*StatusSnapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return nil, types.NewError(types.ErrNoActiveSession, "no session to resume")
	}
	if o.session.Status() == StatusRunning {
		return o.statusLocked(), nil
	}

	o.session.SetStatus(StatusRunning)

	loopCtx, cancel := context.WithCancel(context.Background())
	o.loopCancel = cancel
	o.loopDone = make(chan struct{})
	go o.runLoop(loopCtx, o.loopDone)

	o.logger.Info("session resumed", zap.String("session_id", o.session.ID))
	return o.statusLocked(), nil
}

// Inject appends a message authored by an external actor to the history
// without going through generation. It is visible to subsequent turns.
func (o *Orchestrator) Inject(sender, content string) (*Message, error) {
	o.mu.Lock()
	session := o.session
	o.mu.Unlock()

	if session == nil {
		return nil, types.NewError(types.ErrNoActiveSession, "no active session")
	}
	if sender == "" {
		sender = "admin"
	}

	msg := session.Append(Message{Sender: sender, Content: content})
	o.broadcast(msg)
	o.logger.Info("message injected",
		zap.String("session_id", session.ID),
		zap.String("sender", sender))
	return &msg, nil
}

// ClearMemory deletes memory entries matching the filter combination and
// returns the count deleted. An empty filter clears the whole store scope.
func (o *Orchestrator) ClearMemory(ctx context.Context, agentID, sessionID string) (int, error) {
	return o.memory.Purge(ctx, memory.Filter{AgentID: agentID, SessionID: sessionID})
}

// StatusSnapshot is the externally visible session view.
type StatusSnapshot struct {
	SessionID    string          `json:"session_id,omitempty"`
	Topic        string          `json:"topic,omitempty"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"created_at,omitempty"`
	MessageCount int             `json:"message_count"`
	Recent       []Message       `json:"recent,omitempty"`
	Agents       []AgentSnapshot `json:"agents,omitempty"`
}

// Status returns the session state, a bounded window of recent messages,
// and per-agent state snapshots. With no session it reports idle.
func (o *Orchestrator) Status() *StatusSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.statusLocked()
}

func (o *Orchestrator) statusLocked() *StatusSnapshot {
	if o.session == nil {
		return &StatusSnapshot{Status: StatusIdle}
	}
	snap := &StatusSnapshot{
		SessionID:    o.session.ID,
		Topic:        o.session.Topic,
		Status:       o.session.Status(),
		CreatedAt:    o.session.CreatedAt,
		MessageCount: o.session.Len(),
		Recent:       o.session.Recent(o.cfg.StatusWindow),
	}
	for _, a := range o.agents {
		snap.Agents = append(snap.Agents, a.snapshot())
	}
	return snap
}

// AgentStates returns the per-agent runtime snapshots.
func (o *Orchestrator) AgentStates() ([]AgentSnapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return nil, types.NewError(types.ErrNoActiveSession, "no active session")
	}
	out := make([]AgentSnapshot, 0, len(o.agents))
	for _, a := range o.agents {
		out = append(out, a.snapshot())
	}
	return out, nil
}

// History returns a copy of the active session's full history.
func (o *Orchestrator) History() ([]Message, error) {
	o.mu.Lock()
	session := o.session
	o.mu.Unlock()

	if session == nil {
		return nil, types.NewError(types.ErrNoActiveSession, "no active session")
	}
	return session.History(), nil
}

// =============================================================================
// Per-agent control
// =============================================================================

// PauseAgent transitions ACTIVE -> PAUSED. The agent is skipped in rotation
// but retains history visibility and its rotation slot.
func (o *Orchestrator) PauseAgent(agentID, reason string) (AgentSnapshot, error) {
	return o.applyAction(agentID, ActionPause, reason)
}

// ResumeAgent transitions PAUSED -> ACTIVE; the agent rejoins at its
// original rotation slot.
func (o *Orchestrator) ResumeAgent(agentID string) (AgentSnapshot, error) {
	return o.applyAction(agentID, ActionResume, "")
}

// StopAgent transitions ACTIVE/PAUSED -> STOPPED and cancels any in-flight
// generation for the agent immediately.
func (o *Orchestrator) StopAgent(agentID, reason string) (AgentSnapshot, error) {
	return o.applyAction(agentID, ActionStop, reason)
}

// FinishAgent transitions any state -> FINISHED (terminal unless restarted).
func (o *Orchestrator) FinishAgent(agentID string) (AgentSnapshot, error) {
	return o.applyAction(agentID, ActionFinish, "")
}

// RestartAgent transitions STOPPED/FINISHED -> ACTIVE.
func (o *Orchestrator) RestartAgent(agentID string) (AgentSnapshot, error) {
	return o.applyAction(agentID, ActionRestart, "")
}

// applyAction applies a state transition. Invalid (state, action) pairs are
// idempotent no-ops that report the current state rather than erroring.
func (o *Orchestrator) applyAction(agentID string, action Action, reason string) (AgentSnapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return AgentSnapshot{}, types.NewError(types.ErrNoActiveSession, "no active session")
	}
	agent := o.findLocked(agentID)
	if agent == nil {
		return AgentSnapshot{}, types.NewError(types.ErrAgentNotFound,
			fmt.Sprintf("agent %s is not part of this session", agentID))
	}

	next, ok := transition(agent.state, action)
	if !ok {
		return agent.snapshot(), nil
	}

	prev := agent.state
	agent.state = next
	agent.stateReason = reason

	if next == StateStopped && agent.genCancel != nil {
		agent.genCancel()
	}

	o.collector.IncStateTransition(string(prev), string(next))
	o.logger.Info("agent state transition",
		zap.String("agent_id", agentID),
		zap.String("from", string(prev)),
		zap.String("to", string(next)),
		zap.String("reason", reason))
	return agent.snapshot(), nil
}

func (o *Orchestrator) findLocked(agentID string) *agentRuntime {
	for _, a := range o.agents {
		if a.cfg.ID == agentID {
			return a
		}
	}
	return nil
}

// =============================================================================
// Tools (admin surface)
// =============================================================================

// ListTools returns the tool schemas available to the named agent.
func (o *Orchestrator) ListTools(agentID string) ([]types.ToolSchema, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return nil, types.NewError(types.ErrNoActiveSession, "no active session")
	}
	agent := o.findLocked(agentID)
	if agent == nil {
		return nil, types.NewError(types.ErrAgentNotFound,
			fmt.Sprintf("agent %s is not part of this session", agentID))
	}
	return agent.toolset.Schemas(), nil
}

// CallTool invokes a tool on behalf of an agent, subject to the same
// allow-list check as model-initiated calls. Execution failures are reported
// inside the result, not as an error.
func (o *Orchestrator) CallTool(ctx context.Context, agentID string, call types.ToolCall) (types.ToolResult, error) {
	o.mu.Lock()
	if o.session == nil {
		o.mu.Unlock()
		return types.ToolResult{}, types.NewError(types.ErrNoActiveSession, "no active session")
	}
	agent := o.findLocked(agentID)
	o.mu.Unlock()

	if agent == nil {
		return types.ToolResult{}, types.NewError(types.ErrAgentNotFound,
			fmt.Sprintf("agent %s is not part of this session", agentID))
	}
	return agent.toolset.Call(ctx, call), nil
}

// =============================================================================
// Live feed
// =============================================================================

// Subscribe returns a channel receiving every appended message and a cancel
// function. Slow subscribers drop messages instead of blocking the loop.
func (o *Orchestrator) Subscribe() (<-chan Message, func()) {
	o.subsMu.Lock()
	defer o.subsMu.Unlock()

	id := o.nextSub
	o.nextSub++
	ch := make(chan Message, 64)
	o.subs[id] = ch

	return ch, func() {
		o.subsMu.Lock()
		defer o.subsMu.Unlock()
		if c, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(c)
		}
	}
}

func (o *Orchestrator) broadcast(msg Message) {
	o.subsMu.Lock()
	defer o.subsMu.Unlock()
	for _, ch := range o.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

// =============================================================================
// Turn loop
// =============================================================================

func (o *Orchestrator) runLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		if ctx.Err() != nil {
			return
		}

		progressed := o.step(ctx)

		delay := o.cfg.TurnDelay
		if !progressed {
			delay = o.cfg.IdleInterval
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// step executes at most one agent turn and reports whether it progressed.
// The rotation pointer ranges over the full configured agent list; inactive
// agents are skipped without losing their slot, and when no agent is
// eligible the pointer retains its position.
func (o *Orchestrator) step(ctx context.Context) bool {
	o.mu.Lock()
	if o.session == nil || o.session.Status() != StatusRunning || len(o.agents) == 0 {
		o.mu.Unlock()
		return false
	}

	idx := -1
	for i := 0; i < len(o.agents); i++ {
		j := (o.rotation + i) % len(o.agents)
		if o.agents[j].state == StateActive {
			idx = j
			break
		}
	}
	if idx == -1 {
		o.mu.Unlock()
		return false
	}

	agent := o.agents[idx]
	o.rotation = (idx + 1) % len(o.agents)

	genCtx, cancel := context.WithCancel(ctx)
	agent.genCancel = cancel
	session := o.session
	o.mu.Unlock()

	o.takeTurn(genCtx, session, agent)

	o.mu.Lock()
	agent.genCancel = nil
	o.mu.Unlock()
	cancel()
	return true
}

// takeTurn runs one agent's generation-and-append cycle. Every in-loop
// failure is contained: a failed chat call skips the turn, failed retrieval
// degrades to empty context, and a failed synthesis leaves the message
// without audio.
func (o *Orchestrator) takeTurn(ctx context.Context, session *Session, agent *agentRuntime) {
	start := time.Now()

	if agent.limiter != nil {
		if err := agent.limiter.Wait(ctx); err != nil {
			return
		}
	}

	o.maybeSummarize(ctx, session, agent)

	history := session.History()

	memories, err := o.memory.Query(ctx,
		buildMemoryQuery(session.Topic, history),
		agent.topK(o.cfg.DefaultTopK),
		memory.Filter{SessionID: session.ID})
	if err != nil {
		o.collector.IncMemoryFailure()
		o.logger.Warn("memory retrieval failed, proceeding with empty context",
			zap.String("agent_id", agent.cfg.ID),
			zap.Error(err))
		memories = nil
	}

	prompt := buildPrompt(agent, session.Topic, memories, history, agent.historyWindow(o.cfg.HistoryWindow))

	req := &llm.ChatRequest{
		Model:       agent.cfg.Model,
		Messages:    prompt,
		MaxTokens:   agent.cfg.MaxTokens,
		Temperature: agent.cfg.Temperature,
		TopP:        agent.cfg.TopP,
	}
	if !agent.toolset.Empty() {
		req.Tools = agent.toolset.Schemas()
		req.ToolChoice = "auto"
	}

	resp, err := agent.provider.Completion(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return // canceled turns are discarded silently
		}
		o.collector.IncProviderFailure(agent.provider.Name())
		o.collector.ObserveTurn(agent.cfg.ID, time.Since(start).Seconds(), true)
		o.logger.Warn("chat call failed, skipping turn",
			zap.String("agent_id", agent.cfg.ID),
			zap.Error(err))
		return
	}

	if calls := resp.ToolCalls(); len(calls) > 0 {
		resp, err = o.runToolRound(ctx, agent, req, resp)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.collector.IncProviderFailure(agent.provider.Name())
			o.collector.ObserveTurn(agent.cfg.ID, time.Since(start).Seconds(), true)
			o.logger.Warn("tool round trip failed, skipping turn",
				zap.String("agent_id", agent.cfg.ID),
				zap.Error(err))
			return
		}
	}

	if ctx.Err() != nil {
		return
	}

	content := resp.Text()
	tokens := resp.Usage.CompletionTokens
	if tokens == 0 {
		tokens = countTokens(agent.cfg.Model, content)
	}

	msg := session.Append(Message{
		AgentID:    agent.cfg.ID,
		Sender:     agent.cfg.Name,
		Content:    content,
		TokenCount: tokens,
		Latency:    time.Since(start),
	})
	o.broadcast(msg)
	o.collector.ObserveTurn(agent.cfg.ID, time.Since(start).Seconds(), false)

	if err := o.memory.Add(ctx, content, memory.Metadata{
		SessionID: session.ID,
		AgentID:   agent.cfg.ID,
		Topic:     session.Topic,
	}); err != nil {
		o.collector.IncMemoryFailure()
		o.logger.Warn("memory write-back failed",
			zap.String("agent_id", agent.cfg.ID),
			zap.Error(err))
	}

	if agent.cfg.Voice.Enabled && o.synth != nil {
		o.synthesizeAsync(session, msg, agent)
	}
}

// runToolRound executes the model's tool calls and requests the final
// natural-language response. The secondary call offers no tools, so the
// loop terminates within two model calls per turn. Disallowed or malformed
// calls feed an error string back to the model instead of executing.
func (o *Orchestrator) runToolRound(ctx context.Context, agent *agentRuntime, req *llm.ChatRequest, resp *llm.ChatResponse) (*llm.ChatResponse, error) {
	calls := resp.ToolCalls()

	messages := append([]types.Message{}, req.Messages...)
	messages = append(messages, resp.Choices[0].Message)

	for _, call := range calls {
		result := agent.toolset.Call(ctx, call)
		messages = append(messages, result.ToMessage())
		if result.IsError() {
			o.logger.Info("tool call rejected or failed",
				zap.String("agent_id", agent.cfg.ID),
				zap.String("tool", call.Name),
				zap.String("error", result.Error))
		}
	}

	followUp := &llm.ChatRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		// No tools: the follow-up must produce natural language.
	}
	return agent.provider.Completion(ctx, followUp)
}

// synthesizeAsync requests speech synthesis off the turn's critical path
// and attaches the audio reference to the message once ready. Failures are
// recorded on the message rather than failing the turn.
func (o *Orchestrator) synthesizeAsync(session *Session, msg Message, agent *agentRuntime) {
	o.ttsWG.Add(1)
	go func() {
		defer o.ttsWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), ttsTimeout)
		defer cancel()

		artifact, err := o.synth.Synthesize(ctx, &speech.SynthesizeRequest{
			Text:   msg.Content,
			Model:  agent.cfg.Voice.Model,
			Voice:  agent.cfg.Voice.Voice,
			Speed:  agent.cfg.Voice.Speed,
			Format: agent.cfg.Voice.Format,
		})
		if err != nil {
			o.collector.IncTTSFailure()
			o.logger.Warn("speech synthesis failed",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			session.SetAudio(msg.ID, nil, err.Error())
			return
		}
		session.SetAudio(msg.ID, artifact, "")
	}()
}

// WaitTTS blocks until all background synthesis requests settle.
func (o *Orchestrator) WaitTTS() {
	o.ttsWG.Wait()
}
