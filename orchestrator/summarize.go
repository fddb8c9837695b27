package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/groxaxo/chatmode/llm"
	"github.com/groxaxo/chatmode/types"
)

const summarizerInstruction = "Summarize the following conversation excerpt in a compact " +
	"paragraph. Preserve every fact, decision, and open question; attribute positions to " +
	"their speakers by name. Reply with the summary only."

// maybeSummarize compacts the session history when it exceeds the ceiling:
// the oldest half is summarized into one message via the acting agent's own
// provider, never a hardcoded default, and replaced in place. Failure to
// summarize is contained; the turn proceeds with the unsummarized history.
func (o *Orchestrator) maybeSummarize(ctx context.Context, session *Session, agent *agentRuntime) {
	if o.cfg.HistoryCeiling <= 0 || session.Len() <= o.cfg.HistoryCeiling {
		return
	}

	history := session.History()
	n := len(history) / 2
	if n == 0 {
		return
	}

	var transcript strings.Builder
	for _, m := range history[:n] {
		transcript.WriteString(m.Sender)
		transcript.WriteString(": ")
		transcript.WriteString(m.Content)
		transcript.WriteString("\n")
	}

	resp, err := agent.provider.Completion(ctx, &llm.ChatRequest{
		Model: agent.cfg.Model,
		Messages: []types.Message{
			types.NewSystemMessage(summarizerInstruction),
			types.NewUserMessage(transcript.String()),
		},
		Temperature: 0.2,
		MaxTokens:   agent.cfg.MaxTokens,
	})
	if err != nil {
		o.logger.Warn("history summarization failed, continuing unsummarized",
			zap.String("agent_id", agent.cfg.ID),
			zap.Error(err))
		return
	}

	summary := resp.Text()
	if summary == "" {
		return
	}

	session.Compact(n, Message{
		Sender:  "summary",
		Content: fmt.Sprintf("Summary of the first %d messages: %s", n, summary),
	})

	o.logger.Info("history summarized",
		zap.String("agent_id", agent.cfg.ID),
		zap.Int("compacted", n),
		zap.Int("remaining", session.Len()))
}
