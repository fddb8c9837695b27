// Package llm defines the unified chat-completion provider contract used by
// the conversation orchestrator, plus an OpenAI-compatible HTTP
// implementation. Tool calls are passed via ChatRequest.Tools; the LLM
// returns ToolCalls in the response and execution is handled by the tools
// package.
package llm
