package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/groxaxo/chatmode/testutil/mocks"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	return NewIndex(mocks.NewEmbedder(), NewInMemoryStore(zap.NewNop()), zap.NewNop())
}

func seed(t *testing.T, idx *Index, text, sessionID, agentID string) {
	t.Helper()
	require.NoError(t, idx.Add(context.Background(), text, Metadata{
		SessionID: sessionID,
		AgentID:   agentID,
		Topic:     "test topic",
	}))
}

func TestQueryReturnsTopK(t *testing.T) {
	idx := newTestIndex(t)
	seed(t, idx, "cats are great pets", "s1", "a1")
	seed(t, idx, "dogs are loyal companions", "s1", "a1")
	seed(t, idx, "stock markets fell sharply", "s1", "a1")

	results, err := idx.Query(context.Background(), "cats are great pets", 2, Filter{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "cats are great pets", results[0].Entry.Text)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestQueryNeverLeaksAcrossSessions(t *testing.T) {
	idx := newTestIndex(t)
	// Near-duplicate text under two sessions for the same agent.
	seed(t, idx, "the launch is scheduled for friday", "s1", "a1")
	seed(t, idx, "the launch is scheduled for friday!", "s2", "a1")

	results, err := idx.Query(context.Background(), "when is the launch?", 10, Filter{SessionID: "s1"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, "s1", r.Entry.Metadata.SessionID,
			"query scoped to s1 returned an entry from %s", r.Entry.Metadata.SessionID)
	}
}

func TestQueryAgentFilter(t *testing.T) {
	idx := newTestIndex(t)
	seed(t, idx, "alpha statement", "s1", "a1")
	seed(t, idx, "alpha statement repeated", "s1", "a2")

	results, err := idx.Query(context.Background(), "alpha statement", 10, Filter{SessionID: "s1", AgentID: "a2"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a2", results[0].Entry.Metadata.AgentID)
}

func TestPurgeFilterMatrix(t *testing.T) {
	// Seed (agent=A, session=S1), (agent=A, session=S2), (agent=B, session=S1);
	// purge(agent=A) must leave exactly the (B, S1) entry.
	idx := newTestIndex(t)
	seed(t, idx, "first", "S1", "A")
	seed(t, idx, "second", "S2", "A")
	seed(t, idx, "third", "S1", "B")

	removed, err := idx.Purge(context.Background(), Filter{AgentID: "A"})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	count, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	remaining, err := idx.Query(context.Background(), "third", 10, Filter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "B", remaining[0].Entry.Metadata.AgentID)
	assert.Equal(t, "S1", remaining[0].Entry.Metadata.SessionID)
}

func TestPurgeBySession(t *testing.T) {
	idx := newTestIndex(t)
	seed(t, idx, "first", "S1", "A")
	seed(t, idx, "second", "S2", "A")
	seed(t, idx, "third", "S1", "B")

	removed, err := idx.Purge(context.Background(), Filter{SessionID: "S1"})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	remaining, err := idx.Query(context.Background(), "second", 10, Filter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "S2", remaining[0].Entry.Metadata.SessionID)
}

func TestPurgeIntersection(t *testing.T) {
	idx := newTestIndex(t)
	seed(t, idx, "first", "S1", "A")
	seed(t, idx, "second", "S2", "A")
	seed(t, idx, "third", "S1", "B")

	removed, err := idx.Purge(context.Background(), Filter{SessionID: "S1", AgentID: "A"})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	count, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestQueryZeroK(t *testing.T) {
	idx := newTestIndex(t)
	seed(t, idx, "anything", "s1", "a1")

	results, err := idx.Query(context.Background(), "anything", 0, Filter{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAddEmbedderFailure(t *testing.T) {
	embedder := mocks.NewEmbedder().WithError(errors.New("embedding backend down"))
	idx := NewIndex(embedder, NewInMemoryStore(zap.NewNop()), zap.NewNop())

	err := idx.Add(context.Background(), "text", Metadata{SessionID: "s1", AgentID: "a1"})
	require.Error(t, err)

	count, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}
