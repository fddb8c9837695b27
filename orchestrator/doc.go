// Package orchestrator drives scripted multi-agent conversations: one
// active session at a time, a single-threaded turn loop over the rotation of
// active agents, memory-augmented prompt assembly, bounded-history
// summarization, allow-listed tool calling, and non-blocking speech
// synthesis.
//
// All admin operations are serialized through one mutex per orchestrator so
// concurrent control calls never interleave partial updates. Individual
// generation calls run under per-agent cancelable contexts so stopping a
// session or a single agent interrupts in-flight work immediately.
package orchestrator
