package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRun() Run {
	return Run{
		ID:          "run_20260101T000000_abc",
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		StartedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		TotalTurns:  5,
		TotalAgents: 3,
		Status:      RunStatusRunning,
	}
}

func TestRunValidate_HappyPath(t *testing.T) {
	require.NoError(t, validRun().Validate())
}

func TestRunValidate_CompletedRequiresCompletedAt(t *testing.T) {
	run := validRun()
	run.Status = RunStatusCompleted
	assert.Error(t, run.Validate(), "completed without completed_at must fail")

	completedAt := run.StartedAt.Add(time.Minute)
	run.CompletedAt = &completedAt
	assert.NoError(t, run.Validate())
}

func TestRunValidate_CompletedAtOnNonCompleted(t *testing.T) {
	run := validRun()
	completedAt := run.StartedAt.Add(time.Minute)
	run.CompletedAt = &completedAt
	assert.Error(t, run.Validate(), "running with completed_at must fail")
}

func TestRunValidate_CompletedAtBeforeStartedAt(t *testing.T) {
	run := validRun()
	run.Status = RunStatusCompleted
	completedAt := run.StartedAt.Add(-time.Minute)
	run.CompletedAt = &completedAt
	assert.Error(t, run.Validate())
}

func TestRunValidate_FieldInvariants(t *testing.T) {
	run := validRun()
	run.ID = ""
	assert.Error(t, run.Validate())

	run = validRun()
	run.TotalTurns = 0
	assert.Error(t, run.Validate())

	run = validRun()
	run.TotalAgents = -1
	assert.Error(t, run.Validate())

	run = validRun()
	run.Status = RunStatus("paused")
	assert.Error(t, run.Validate())
}

func TestParseRunStatus(t *testing.T) {
	for _, valid := range []string{"running", "completed", "failed"} {
		status, err := ParseRunStatus(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, string(status))
	}

	_, err := ParseRunStatus("RUNNING")
	assert.Error(t, err, "statuses are stored lowercase; anything else is malformed")
	_, err = ParseRunStatus("")
	assert.Error(t, err)
}

func TestRunConfigValidate(t *testing.T) {
	require.NoError(t, RunConfig{NumAgents: 1, NumTurns: 1}.Validate())
	assert.Error(t, RunConfig{NumAgents: 0, NumTurns: 1}.Validate())
	assert.Error(t, RunConfig{NumAgents: 1, NumTurns: -3}.Validate())
}

func TestParseActionKind(t *testing.T) {
	for _, valid := range []string{"like", "comment", "follow"} {
		kind, err := ParseActionKind(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, string(kind))
	}
	_, err := ParseActionKind("repost")
	assert.Error(t, err)
}

func TestActionCounts_MergeAndTotal(t *testing.T) {
	counts := ActionCounts{ActionLike: 2}
	counts.Merge(ActionCounts{ActionLike: 1, ActionFollow: 4})

	assert.Equal(t, 3, counts[ActionLike])
	assert.Equal(t, 4, counts[ActionFollow])
	assert.Equal(t, 0, counts[ActionComment])
	assert.Equal(t, 7, counts.Total())
}

func TestTurnMetadataValidate(t *testing.T) {
	md := TurnMetadata{
		RunID:        "run_x",
		TurnNumber:   0,
		TotalActions: ActionCounts{ActionLike: 1},
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, md.Validate())

	md.RunID = ""
	assert.Error(t, md.Validate())

	md = TurnMetadata{RunID: "run_x", TurnNumber: -1}
	assert.Error(t, md.Validate())

	md = TurnMetadata{RunID: "run_x", TotalActions: ActionCounts{ActionKind("repost"): 1}}
	assert.Error(t, md.Validate(), "unknown action kinds are rejected")

	md = TurnMetadata{RunID: "run_x", TotalActions: ActionCounts{ActionLike: -1}}
	assert.Error(t, md.Validate())
}
