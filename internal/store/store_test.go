package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relogic/internal/logic"
	"relogic/internal/perception"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "nested", "relogic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTraceStore_StoreAndList(t *testing.T) {
	ts := newTestStore(t).GetTraceStore()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, ts.StoreCallTrace(&perception.CallTrace{
		ID: "t1", RunID: "run-a", Provider: "openai", Model: "gpt-4o-mini", Schema: "choose_parser",
		Prompt: "[CHOOSE_PARSER]\n\nSentence: 'Alice sings'", Response: `{"answer":"A"}`,
		DurationMs: 120, Success: true, Timestamp: base,
	}))
	require.NoError(t, ts.StoreCallTrace(&perception.CallTrace{
		ID: "t2", RunID: "run-a", Provider: "openai", Schema: "intransitive",
		Prompt: "p", DurationMs: 80, Success: false, ErrorMessage: "timeout",
		Timestamp: base.Add(time.Second),
	}))
	require.NoError(t, ts.StoreCallTrace(&perception.CallTrace{
		ID: "t3", RunID: "run-b", Provider: "ollama", Schema: "choose_parser",
		Prompt: "p", Success: true, Timestamp: base.Add(2 * time.Second),
	}))

	all, err := ts.ListTraces(10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "t3", all[0].ID)
	assert.Equal(t, "t1", all[2].ID)
	assert.Equal(t, "gpt-4o-mini", all[2].Model)
	assert.Equal(t, `{"answer":"A"}`, all[2].Response)
	assert.True(t, all[2].Timestamp.Equal(base))

	limited, err := ts.ListTraces(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	run, err := ts.GetRunTraces("run-a")
	require.NoError(t, err)
	require.Len(t, run, 2)
	assert.Equal(t, "t1", run[0].ID)
	assert.False(t, run[1].Success)
	assert.Equal(t, "timeout", run[1].ErrorMessage)

	stats, err := ts.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 2, stats.BySchema["choose_parser"])
	assert.InDelta(t, 66.67, stats.AvgDurationMs, 0.01)
}

func TestTraceStore_ReplaceByID(t *testing.T) {
	ts := newTestStore(t).GetTraceStore()
	trace := &perception.CallTrace{ID: "same", Provider: "vllm", Schema: "rephrase", Prompt: "p", Success: false}
	require.NoError(t, ts.StoreCallTrace(trace))
	trace.Success = true
	require.NoError(t, ts.StoreCallTrace(trace))

	all, err := ts.ListTraces(0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Success)
}

func TestTraceStore_EmptyStats(t *testing.T) {
	stats, err := newTestStore(t).GetTraceStore().Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.Failed)
	assert.Empty(t, stats.BySchema)
}

func TestDocumentStore_RoundTrip(t *testing.T) {
	ds := newTestStore(t).GetDocumentStore()

	rl := logic.NewRelationalLogic("Every student studies. John gave Mary a book.")
	impl, err := logic.NewBinary(logic.If,
		&logic.Adjective{Adjective: "student", Operand: logic.Constant{Name: "x"}},
		&logic.IntransitiveVerb{Verb: "study", Subject: logic.Constant{Name: "x"}})
	require.NoError(t, err)
	all, err := logic.NewQuantified(logic.ForAll, logic.Variable{Name: "x"}, impl)
	require.NoError(t, err)
	rl.Append(all)
	rl.Append(&logic.DitransitiveVerb{
		Verb:           "give",
		Subject:        logic.Constant{Name: "John"},
		DirectObject:   logic.Constant{Name: "a book"},
		IndirectObject: logic.Constant{Name: "Mary"},
	})

	id, err := ds.SaveDocument(rl, "cli")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	back, err := ds.LoadDocument(id)
	require.NoError(t, err)
	assert.Equal(t, rl.String(), back.String())
	assert.Equal(t, rl.OriginalSentence, back.OriginalSentence)

	list, err := ds.ListDocuments(10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, "cli", list[0].Source)
	assert.Equal(t, 2, list[0].SentenceCount)
}

func TestDocumentStore_NotFound(t *testing.T) {
	_, err := newTestStore(t).GetDocumentStore().LoadDocument("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relogic.db")
	s, err := NewLocalStore(path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())

	rl := logic.NewRelationalLogic("Alice sings")
	rl.Append(&logic.IntransitiveVerb{Verb: "sing", Subject: logic.Constant{Name: "Alice"}})
	id, err := s.GetDocumentStore().SaveDocument(rl, "")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	s2, err := NewLocalStore(path)
	require.NoError(t, err)
	defer s2.Close()
	back, err := s2.GetDocumentStore().LoadDocument(id)
	require.NoError(t, err)
	assert.Equal(t, "sing(Alice)\n", back.String())
}
