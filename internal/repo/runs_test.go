package repo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/hibari/internal/model"
	"github.com/ashita-ai/hibari/internal/storage"
)

// fakeRunStore is an in-memory RunStore. Errors can be injected per
// operation to exercise wrapping behavior.
type fakeRunStore struct {
	mu    sync.Mutex
	runs  map[string]model.Run
	turns map[string]model.TurnMetadata

	insertRunErr error
	getRunErr    error
	updateErr    error
	insertMDErr  error
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{
		runs:  make(map[string]model.Run),
		turns: make(map[string]model.TurnMetadata),
	}
}

func turnKey(runID string, turn int) string {
	return fmt.Sprintf("%s/%d", runID, turn)
}

func (f *fakeRunStore) InsertRun(ctx context.Context, run model.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertRunErr != nil {
		return f.insertRunErr
	}
	f.runs[run.ID] = run
	return nil
}

func (f *fakeRunStore) GetRun(ctx context.Context, id string) (model.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getRunErr != nil {
		return model.Run{}, f.getRunErr
	}
	run, ok := f.runs[id]
	if !ok {
		return model.Run{}, storage.ErrNotFound
	}
	return run, nil
}

func (f *fakeRunStore) ListRuns(ctx context.Context) ([]model.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	runs := make([]model.Run, 0, len(f.runs))
	for _, run := range f.runs {
		runs = append(runs, run)
	}
	return runs, nil
}

func (f *fakeRunStore) UpdateRunStatus(ctx context.Context, id string, status model.RunStatus, completedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	run, ok := f.runs[id]
	if !ok {
		return storage.ErrNotFound
	}
	run.Status = status
	run.CompletedAt = completedAt
	f.runs[id] = run
	return nil
}

func (f *fakeRunStore) InsertTurnMetadata(ctx context.Context, md model.TurnMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertMDErr != nil {
		return f.insertMDErr
	}
	f.turns[turnKey(md.RunID, md.TurnNumber)] = md
	return nil
}

func (f *fakeRunStore) GetTurnMetadata(ctx context.Context, runID string, turnNumber int) (model.TurnMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	md, ok := f.turns[turnKey(runID, turnNumber)]
	if !ok {
		return model.TurnMetadata{}, storage.ErrNotFound
	}
	return md, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRuns(store RunStore) *Runs {
	return NewRuns(store, testLogger())
}

func TestCreateRun_HappyPath(t *testing.T) {
	ctx := context.Background()
	runs := newTestRuns(newFakeRunStore())

	run, err := runs.CreateRun(ctx, model.RunConfig{NumAgents: 3, NumTurns: 7})
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.Nil(t, run.CompletedAt)
	assert.Equal(t, 3, run.TotalAgents)
	assert.Equal(t, 7, run.TotalTurns)
	assert.Equal(t, run.CreatedAt, run.StartedAt)
	require.NoError(t, run.Validate())
}

func TestCreateRun_InvalidConfig(t *testing.T) {
	ctx := context.Background()
	store := newFakeRunStore()
	runs := newTestRuns(store)

	_, err := runs.CreateRun(ctx, model.RunConfig{NumAgents: 0, NumTurns: 5})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Empty(t, store.runs, "validation failures never reach storage")
}

func TestCreateRun_StorageFailureWrapped(t *testing.T) {
	ctx := context.Background()
	store := newFakeRunStore()
	store.insertRunErr = errors.New("connection refused")
	runs := newTestRuns(store)

	_, err := runs.CreateRun(ctx, model.RunConfig{NumAgents: 1, NumTurns: 1})

	var creationErr *RunCreationError
	require.ErrorAs(t, err, &creationErr)
	assert.NotEmpty(t, creationErr.RunID, "the attempted run id is carried on the error")
	assert.ErrorContains(t, err, "connection refused")
}

func TestCreateRun_ConcurrentIDsDistinct(t *testing.T) {
	ctx := context.Background()
	runs := newTestRuns(newFakeRunStore())

	const n = 10
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run, err := runs.CreateRun(ctx, model.RunConfig{NumAgents: 1, NumTurns: 1})
			if assert.NoError(t, err) {
				ids <- run.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{})
	for id := range ids {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, n)
}

func TestGetRun_EmptyID(t *testing.T) {
	runs := newTestRuns(newFakeRunStore())
	_, err := runs.GetRun(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestGetRun_AbsentIsNotAnError(t *testing.T) {
	runs := newTestRuns(newFakeRunStore())
	run, err := runs.GetRun(context.Background(), "run_missing")
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestGetRun_RoundTrip(t *testing.T) {
	ctx := context.Background()
	runs := newTestRuns(newFakeRunStore())

	created, err := runs.CreateRun(ctx, model.RunConfig{NumAgents: 2, NumTurns: 4})
	require.NoError(t, err)

	got, err := runs.GetRun(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created, *got)
}

func TestUpdateRunStatus_CompletedSetsCompletedAt(t *testing.T) {
	ctx := context.Background()
	runs := newTestRuns(newFakeRunStore())
	created, err := runs.CreateRun(ctx, model.RunConfig{NumAgents: 1, NumTurns: 1})
	require.NoError(t, err)

	updated, err := runs.UpdateRunStatus(ctx, created.ID, model.RunStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, updated.Status)
	require.NotNil(t, updated.CompletedAt)
	assert.False(t, updated.CompletedAt.Before(updated.StartedAt))
	require.NoError(t, updated.Validate())
}

func TestUpdateRunStatus_FailedLeavesCompletedAtNull(t *testing.T) {
	ctx := context.Background()
	runs := newTestRuns(newFakeRunStore())
	created, err := runs.CreateRun(ctx, model.RunConfig{NumAgents: 1, NumTurns: 1})
	require.NoError(t, err)

	updated, err := runs.UpdateRunStatus(ctx, created.ID, model.RunStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, updated.Status)
	assert.Nil(t, updated.CompletedAt)
}

func TestUpdateRunStatus_RunningIsIdempotent(t *testing.T) {
	ctx := context.Background()
	runs := newTestRuns(newFakeRunStore())
	created, err := runs.CreateRun(ctx, model.RunConfig{NumAgents: 1, NumTurns: 1})
	require.NoError(t, err)

	updated, err := runs.UpdateRunStatus(ctx, created.ID, model.RunStatusRunning)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, updated.Status)
}

func TestUpdateRunStatus_TerminalStatesRejectTransitions(t *testing.T) {
	ctx := context.Background()
	runs := newTestRuns(newFakeRunStore())

	for _, terminal := range []model.RunStatus{model.RunStatusCompleted, model.RunStatusFailed} {
		created, err := runs.CreateRun(ctx, model.RunConfig{NumAgents: 1, NumTurns: 1})
		require.NoError(t, err)
		_, err = runs.UpdateRunStatus(ctx, created.ID, terminal)
		require.NoError(t, err)

		for _, target := range []model.RunStatus{model.RunStatusRunning, model.RunStatusCompleted, model.RunStatusFailed} {
			_, err := runs.UpdateRunStatus(ctx, created.ID, target)
			var transitionErr *InvalidTransitionError
			require.ErrorAs(t, err, &transitionErr, "%s -> %s must be illegal", terminal, target)
			assert.Equal(t, created.ID, transitionErr.RunID)
			assert.Equal(t, terminal, transitionErr.From)
			assert.Equal(t, target, transitionErr.To)
			assert.Empty(t, transitionErr.Allowed)
		}
	}
}

func TestUpdateRunStatus_FailedThenCompleted(t *testing.T) {
	ctx := context.Background()
	runs := newTestRuns(newFakeRunStore())
	created, err := runs.CreateRun(ctx, model.RunConfig{NumAgents: 1, NumTurns: 1})
	require.NoError(t, err)

	_, err = runs.UpdateRunStatus(ctx, created.ID, model.RunStatusFailed)
	require.NoError(t, err)

	_, err = runs.UpdateRunStatus(ctx, created.ID, model.RunStatusCompleted)
	var transitionErr *InvalidTransitionError
	assert.ErrorAs(t, err, &transitionErr)
}

func TestUpdateRunStatus_UnknownRun(t *testing.T) {
	runs := newTestRuns(newFakeRunStore())
	_, err := runs.UpdateRunStatus(context.Background(), "run_missing", model.RunStatusFailed)

	var notFound *RunNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "run_missing", notFound.RunID)
}

func TestUpdateRunStatus_StorageFailureWrapped(t *testing.T) {
	ctx := context.Background()
	store := newFakeRunStore()
	runs := newTestRuns(store)
	created, err := runs.CreateRun(ctx, model.RunConfig{NumAgents: 1, NumTurns: 1})
	require.NoError(t, err)

	store.updateErr = errors.New("lock timeout")
	_, err = runs.UpdateRunStatus(ctx, created.ID, model.RunStatusCompleted)

	var updateErr *RunStatusUpdateError
	require.ErrorAs(t, err, &updateErr)
	assert.Equal(t, created.ID, updateErr.RunID)

	// Domain errors must never be wrapped in RunStatusUpdateError.
	var transitionErr *InvalidTransitionError
	assert.False(t, errors.As(err, &transitionErr))
}

func TestWriteTurnMetadata_HappyPathAndDuplicate(t *testing.T) {
	ctx := context.Background()
	store := newFakeRunStore()
	runs := newTestRuns(store)
	created, err := runs.CreateRun(ctx, model.RunConfig{NumAgents: 1, NumTurns: 3})
	require.NoError(t, err)

	first := model.TurnMetadata{
		RunID:        created.ID,
		TurnNumber:   1,
		TotalActions: model.ActionCounts{model.ActionLike: 5},
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, runs.WriteTurnMetadata(ctx, first))

	second := first
	second.TotalActions = model.ActionCounts{model.ActionLike: 99}
	err = runs.WriteTurnMetadata(ctx, second)

	var dup *DuplicateTurnMetadataError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, created.ID, dup.RunID)
	assert.Equal(t, 1, dup.TurnNumber)

	// The first record is unchanged.
	got, err := runs.GetTurnMetadata(ctx, created.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 5, got.TotalActions[model.ActionLike])
}

func TestWriteTurnMetadata_UnknownRun(t *testing.T) {
	runs := newTestRuns(newFakeRunStore())
	err := runs.WriteTurnMetadata(context.Background(), model.TurnMetadata{
		RunID:      "run_missing",
		TurnNumber: 0,
	})

	var notFound *RunNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestWriteTurnMetadata_TurnOutOfRange(t *testing.T) {
	ctx := context.Background()
	runs := newTestRuns(newFakeRunStore())
	created, err := runs.CreateRun(ctx, model.RunConfig{NumAgents: 1, NumTurns: 2})
	require.NoError(t, err)

	err = runs.WriteTurnMetadata(ctx, model.TurnMetadata{RunID: created.ID, TurnNumber: 2})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestWriteTurnMetadata_ValidationBeforeIO(t *testing.T) {
	runs := newTestRuns(newFakeRunStore())

	err := runs.WriteTurnMetadata(context.Background(), model.TurnMetadata{RunID: "", TurnNumber: 0})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	err = runs.WriteTurnMetadata(context.Background(), model.TurnMetadata{RunID: "run_x", TurnNumber: -1})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestGetTurnMetadata_Validation(t *testing.T) {
	runs := newTestRuns(newFakeRunStore())

	_, err := runs.GetTurnMetadata(context.Background(), "", 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = runs.GetTurnMetadata(context.Background(), "run_x", -1)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	md, err := runs.GetTurnMetadata(context.Background(), "run_x", 0)
	require.NoError(t, err)
	assert.Nil(t, md, "absence is a valid outcome")
}
