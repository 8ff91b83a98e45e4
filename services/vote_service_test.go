package services

import (
	"fmt"
	"testing"

	"dare-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCastVote_ParticipationReward(t *testing.T) {
	e := newTestEngine(t)
	dare := seedDare(t, e.DB, models.DareStatusPendingReview, 100)

	result, err := e.Votes.CastVote(dare.ID, "voter-1", models.VoteApprove)
	require.NoError(t, err)
	assert.False(t, result.AlreadyVoted)
	assert.Equal(t, e.Config.VotePoints, result.PointsAwarded)
	assert.Equal(t, int64(1), result.ApproveCount)
	assert.Equal(t, int64(0), result.RejectCount)

	account, err := e.Votes.GetVoterAccount("voter-1")
	require.NoError(t, err)
	assert.Equal(t, e.Config.VotePoints, account.TotalPoints)
	assert.Equal(t, int64(1), account.TotalVotes)
}

func TestCastVote_DuplicateIsNoOp(t *testing.T) {
	e := newTestEngine(t)
	dare := seedDare(t, e.DB, models.DareStatusPendingReview, 100)

	first, err := e.Votes.CastVote(dare.ID, "voter-1", models.VoteApprove)
	require.NoError(t, err)
	require.False(t, first.AlreadyVoted)

	// Second cast — even flipping direction — returns the stored vote.
	second, err := e.Votes.CastVote(dare.ID, "voter-1", models.VoteReject)
	require.NoError(t, err)
	assert.True(t, second.AlreadyVoted)
	assert.Equal(t, models.VoteApprove, second.Direction)
	assert.Zero(t, second.PointsAwarded)
	assert.Equal(t, int64(1), second.ApproveCount)
	assert.Equal(t, int64(0), second.RejectCount)

	// No extra points accrued.
	account, err := e.Votes.GetVoterAccount("voter-1")
	require.NoError(t, err)
	assert.Equal(t, e.Config.VotePoints, account.TotalPoints)
	assert.Equal(t, int64(1), account.TotalVotes)
}

func TestCastVote_ClosedOutsideReview(t *testing.T) {
	e := newTestEngine(t)
	for _, status := range []models.DareStatus{
		models.DareStatusPending,
		models.DareStatusVerified,
		models.DareStatusFailed,
		models.DareStatusExpired,
	} {
		dare := seedDare(t, e.DB, status, 100)
		_, err := e.Votes.CastVote(dare.ID, "voter-1", models.VoteApprove)
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict, "status %s", status)
	}
}

func TestConsensus_SevenThreeVerifies(t *testing.T) {
	e := newTestEngine(t)
	dare := seedDare(t, e.DB, models.DareStatusPendingReview, 100, func(d *models.Dare) {
		submitter := "performer-1"
		d.ProofSubmitter = &submitter
	})

	// 7 approve / 3 reject; quorum of 10 hits on the final cast.
	var last *CastVoteResult
	for i := 0; i < 7; i++ {
		var err error
		last, err = e.Votes.CastVote(dare.ID, fmt.Sprintf("approver-%d", i), models.VoteApprove)
		require.NoError(t, err)
		assert.False(t, last.Resolved)
	}
	for i := 0; i < 3; i++ {
		var err error
		last, err = e.Votes.CastVote(dare.ID, fmt.Sprintf("rejecter-%d", i), models.VoteReject)
		require.NoError(t, err)
	}

	require.True(t, last.Resolved)
	require.NotNil(t, last.Outcome)
	assert.Equal(t, models.DareStatusVerified, *last.Outcome)

	var fresh models.Dare
	require.NoError(t, e.DB.Where("id = ?", dare.ID).First(&fresh).Error)
	assert.Equal(t, models.DareStatusVerified, fresh.Status)
	require.NotNil(t, fresh.SettledAt) // crowd verification settles in the same commit

	// Winners: participation + consensus bonus, streak 1. Losers: streak reset.
	for i := 0; i < 7; i++ {
		account, err := e.Votes.GetVoterAccount(fmt.Sprintf("approver-%d", i))
		require.NoError(t, err)
		assert.Equal(t, e.Config.VotePoints+e.Config.ConsensusPoints, account.TotalPoints)
		assert.Equal(t, int64(1), account.CurrentStreak)
		assert.Equal(t, int64(1), account.CorrectVotes)
	}
	for i := 0; i < 3; i++ {
		account, err := e.Votes.GetVoterAccount(fmt.Sprintf("rejecter-%d", i))
		require.NoError(t, err)
		assert.Equal(t, e.Config.VotePoints, account.TotalPoints)
		assert.Equal(t, int64(0), account.CurrentStreak)
		assert.Equal(t, int64(0), account.CorrectVotes)
	}

	// Votes after resolution are refused and never rewrite history.
	_, err := e.Votes.CastVote(dare.ID, "latecomer", models.VoteReject)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestConsensus_TieBreaksTowardReject(t *testing.T) {
	e := newTestEngine(t)
	dare := seedDare(t, e.DB, models.DareStatusPendingReview, 100)

	var last *CastVoteResult
	for i := 0; i < 5; i++ {
		var err error
		last, err = e.Votes.CastVote(dare.ID, fmt.Sprintf("approver-%d", i), models.VoteApprove)
		require.NoError(t, err)
	}
	for i := 0; i < 5; i++ {
		var err error
		last, err = e.Votes.CastVote(dare.ID, fmt.Sprintf("rejecter-%d", i), models.VoteReject)
		require.NoError(t, err)
	}

	require.True(t, last.Resolved)
	assert.Equal(t, models.DareStatusFailed, *last.Outcome)

	var fresh models.Dare
	require.NoError(t, e.DB.Where("id = ?", dare.ID).First(&fresh).Error)
	assert.Equal(t, models.DareStatusFailed, fresh.Status)
	assert.Nil(t, fresh.SettledAt)
}

func TestConsensus_StreakAccumulatesAndResets(t *testing.T) {
	e := newTestEngine(t)

	// voter-x aligns with consensus twice, then lands on the losing side.
	for round := 0; round < 2; round++ {
		dare := seedDare(t, e.DB, models.DareStatusPendingReview, 100)
		_, err := e.Votes.CastVote(dare.ID, "voter-x", models.VoteApprove)
		require.NoError(t, err)
		for i := 0; i < 9; i++ {
			_, err := e.Votes.CastVote(dare.ID, fmt.Sprintf("crowd-%d-%d", round, i), models.VoteApprove)
			require.NoError(t, err)
		}
	}

	account, err := e.Votes.GetVoterAccount("voter-x")
	require.NoError(t, err)
	assert.Equal(t, int64(2), account.CurrentStreak)
	assert.Equal(t, int64(2), account.BestStreak)

	dare := seedDare(t, e.DB, models.DareStatusPendingReview, 100)
	_, err = e.Votes.CastVote(dare.ID, "voter-x", models.VoteReject)
	require.NoError(t, err)
	for i := 0; i < 9; i++ {
		_, err := e.Votes.CastVote(dare.ID, fmt.Sprintf("crowd-final-%d", i), models.VoteApprove)
		require.NoError(t, err)
	}

	account, err = e.Votes.GetVoterAccount("voter-x")
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.CurrentStreak)
	assert.Equal(t, int64(2), account.BestStreak) // best is monotone
	assert.Equal(t, int64(2), account.CorrectVotes)
	assert.Equal(t, int64(3), account.TotalVotes)
}

func TestVotesFromSupersededRoundDontCount(t *testing.T) {
	e := newTestEngine(t)
	dare := seedDare(t, e.DB, models.DareStatusPendingReview, 100, func(d *models.Dare) {
		d.ReviewRound = 2 // re-opened by an approved appeal
	})

	// A leftover round-1 vote exists on record.
	require.NoError(t, e.DB.Create(&models.Vote{
		ID:          "old-vote",
		DareID:      dare.ID,
		VoterID:     "round1-voter",
		Direction:   models.VoteReject,
		ReviewRound: 1,
	}).Error)

	result, err := e.Votes.CastVote(dare.ID, "round2-voter", models.VoteApprove)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.ApproveCount)
	assert.Equal(t, int64(0), result.RejectCount) // round-1 vote is audit-only now
}
