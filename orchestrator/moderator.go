package orchestrator

// moderatorPersona keeps a solo agent engaged: the synthetic moderator asks
// clarifying and provocative questions instead of contributing positions of
// its own.
const moderatorPersona = "You are the conversation moderator. Your role is to keep the " +
	"discussion lively and focused: ask clarifying questions, challenge assumptions with " +
	"provocative follow-ups, and invite the other participant to elaborate. Keep your " +
	"interventions short. Never answer on behalf of the other participant."

// moderatorConfig builds the synthetic moderator participant injected when a
// session starts with fewer than two agents.
func moderatorConfig(cfg Config) AgentConfig {
	return AgentConfig{
		ID:           "moderator",
		Name:         "Moderator",
		SystemPrompt: moderatorPersona,
		Provider:     cfg.ModeratorProvider,
		Model:        cfg.ModeratorModel,
		Temperature:  0.9,
		MaxTokens:    200,
	}
}
