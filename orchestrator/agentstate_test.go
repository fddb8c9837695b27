package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name   string
		state  State
		action Action
		want   State
		ok     bool
	}{
		{"pause active", StateActive, ActionPause, StatePaused, true},
		{"pause paused", StatePaused, ActionPause, StatePaused, false},
		{"pause stopped", StateStopped, ActionPause, StateStopped, false},
		{"pause finished", StateFinished, ActionPause, StateFinished, false},

		{"resume paused", StatePaused, ActionResume, StateActive, true},
		{"resume active", StateActive, ActionResume, StateActive, false},
		{"resume stopped", StateStopped, ActionResume, StateStopped, false},
		{"resume finished", StateFinished, ActionResume, StateFinished, false},

		{"stop active", StateActive, ActionStop, StateStopped, true},
		{"stop paused", StatePaused, ActionStop, StateStopped, true},
		{"stop stopped", StateStopped, ActionStop, StateStopped, false},
		{"stop finished", StateFinished, ActionStop, StateFinished, false},

		{"finish active", StateActive, ActionFinish, StateFinished, true},
		{"finish paused", StatePaused, ActionFinish, StateFinished, true},
		{"finish stopped", StateStopped, ActionFinish, StateFinished, true},
		{"finish finished", StateFinished, ActionFinish, StateFinished, false},

		{"restart stopped", StateStopped, ActionRestart, StateActive, true},
		{"restart finished", StateFinished, ActionRestart, StateActive, true},
		{"restart active", StateActive, ActionRestart, StateActive, false},
		{"restart paused", StatePaused, ActionRestart, StatePaused, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := transition(tt.state, tt.action)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestTransitionProperties(t *testing.T) {
	states := []State{StateActive, StatePaused, StateStopped, StateFinished}
	actions := []Action{ActionPause, ActionResume, ActionStop, ActionFinish, ActionRestart}

	rapid.Check(t, func(t *rapid.T) {
		state := rapid.SampledFrom(states).Draw(t, "state")
		action := rapid.SampledFrom(actions).Draw(t, "action")

		next, ok := transition(state, action)

		// Totality: every pair produces a known state.
		assert.Contains(t, states, next)

		// Invalid pairs never move the state.
		if !ok {
			assert.Equal(t, state, next)
		}

		// Applying the same action again is always a no-op from the
		// successor state.
		_, okAgain := transition(next, action)
		if ok {
			assert.False(t, okAgain, "transition %s via %s should not repeat", state, action)
		}

		// Only restart leaves STOPPED or FINISHED.
		if (state == StateStopped || state == StateFinished) && ok {
			assert.Equal(t, ActionRestart, action)
			assert.Equal(t, StateActive, next)
		}
	})
}
