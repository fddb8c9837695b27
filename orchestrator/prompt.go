package orchestrator

import (
	"fmt"
	"strings"

	"github.com/groxaxo/chatmode/memory"
	"github.com/groxaxo/chatmode/types"
)

// topicDirective is the fixed topic-adherence instruction injected into
// every prompt.
const topicDirective = "Stay strictly on the declared conversation topic: %q. " +
	"If a previous message drifted away from it, politely redirect the conversation " +
	"back to the topic in your reply. Never introduce unrelated subjects."

// memoryQueryDepth is how many trailing history messages are folded into the
// memory retrieval query alongside the topic.
const memoryQueryDepth = 3

// buildMemoryQuery forms the retrieval query from the topic plus the last
// few history messages.
func buildMemoryQuery(topic string, history []Message) string {
	var b strings.Builder
	b.WriteString(topic)

	start := len(history) - memoryQueryDepth
	if start < 0 {
		start = 0
	}
	for _, m := range history[start:] {
		b.WriteString("\n")
		b.WriteString(m.Content)
	}
	return b.String()
}

// buildPrompt assembles the message list for one agent turn: persona plus
// topic directive plus retrieved memory as the system message, then the
// last-N history window, then a final instruction to produce this agent's
// next utterance.
func buildPrompt(agent *agentRuntime, topic string, memories []memory.SearchResult, history []Message, window int) []types.Message {
	var system strings.Builder
	system.WriteString(agent.cfg.SystemPrompt)
	system.WriteString("\n\n")
	system.WriteString(fmt.Sprintf(topicDirective, topic))

	if len(agent.cfg.BlockedTopics) > 0 {
		system.WriteString("\nYou must not discuss the following subjects: ")
		system.WriteString(strings.Join(agent.cfg.BlockedTopics, ", "))
		system.WriteString(".")
	}

	if len(memories) > 0 {
		system.WriteString("\n\nRelevant context from earlier in this conversation:")
		for _, m := range memories {
			system.WriteString("\n- ")
			system.WriteString(m.Entry.Text)
		}
	}

	msgs := make([]types.Message, 0, window+2)
	msgs = append(msgs, types.NewSystemMessage(system.String()))

	start := len(history) - window
	if start < 0 {
		start = 0
	}
	for _, m := range history[start:] {
		if m.AgentID == agent.cfg.ID {
			msgs = append(msgs, types.NewAssistantMessage(m.Content))
			continue
		}
		user := types.NewUserMessage(fmt.Sprintf("%s: %s", m.Sender, m.Content))
		msgs = append(msgs, user)
	}

	msgs = append(msgs, types.NewUserMessage(fmt.Sprintf(
		"Produce %s's next utterance in this conversation. Reply with the utterance only.",
		agent.cfg.Name)))
	return msgs
}
