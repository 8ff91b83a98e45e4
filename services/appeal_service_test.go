package services

import (
	"fmt"
	"testing"

	"dare-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileAppeal_OnlyFailedDaresByCreator(t *testing.T) {
	e := newTestEngine(t)
	dare := seedDare(t, e.DB, models.DareStatusFailed, 100)

	// Wrong identity.
	_, err := e.Appeals.FileAppeal(dare.ID, "stranger", "i did the dare")
	var authz *AuthorizationError
	require.ErrorAs(t, err, &authz)

	// Wrong state.
	verified := seedDare(t, e.DB, models.DareStatusVerified, 100)
	_, err = e.Appeals.FileAppeal(verified.ID, "creator-1", "why not")
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)

	// Missing reason.
	_, err = e.Appeals.FileAppeal(dare.ID, "creator-1", "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	// Happy path: appealStatus moves to PENDING, status stays FAILED.
	appeal, err := e.Appeals.FileAppeal(dare.ID, "creator-1", "the proof was real")
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusPending, appeal.Status)

	var fresh models.Dare
	require.NoError(t, e.DB.Where("id = ?", dare.ID).First(&fresh).Error)
	assert.Equal(t, models.DareStatusFailed, fresh.Status)
	require.NotNil(t, fresh.AppealStatus)
	assert.Equal(t, models.AppealStatusPending, *fresh.AppealStatus)

	// One appeal per dare, ever.
	_, err = e.Appeals.FileAppeal(dare.ID, "creator-1", "second try")
	require.ErrorAs(t, err, &conflict)
}

func TestResolveAppeal_ApprovedReopensReview(t *testing.T) {
	e := newTestEngine(t)
	dare := seedDare(t, e.DB, models.DareStatusFailed, 100)
	_, err := e.Appeals.FileAppeal(dare.ID, "creator-1", "the proof was real")
	require.NoError(t, err)

	appeal, err := e.Appeals.ResolveAppeal(dare.ID, "op-1", models.AppealStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusApproved, appeal.Status)
	require.NotNil(t, appeal.ResolvedBy)
	assert.Equal(t, "op-1", *appeal.ResolvedBy)

	var fresh models.Dare
	require.NoError(t, e.DB.Where("id = ?", dare.ID).First(&fresh).Error)
	assert.Equal(t, models.DareStatusPendingReview, fresh.Status) // the only backward edge
	require.NotNil(t, fresh.AppealStatus)
	assert.Equal(t, models.AppealStatusApproved, *fresh.AppealStatus)
	assert.Equal(t, 2, fresh.ReviewRound) // old votes stop counting toward quorum

	// Manual override logged for audit, distinct from crowd resolution.
	var override models.OverrideLog
	require.NoError(t, e.DB.Where("dare_id = ? AND action = ?", dare.ID, "appeal_approved").
		First(&override).Error)
	assert.Equal(t, "op-1", override.OperatorID)

	// An appeal resolves once.
	_, err = e.Appeals.ResolveAppeal(dare.ID, "op-2", models.AppealStatusRejected)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestResolveAppeal_RejectedIsPermanent(t *testing.T) {
	e := newTestEngine(t)
	dare := seedDare(t, e.DB, models.DareStatusFailed, 100)
	_, err := e.Appeals.FileAppeal(dare.ID, "creator-1", "the proof was real")
	require.NoError(t, err)

	_, err = e.Appeals.ResolveAppeal(dare.ID, "op-1", models.AppealStatusRejected)
	require.NoError(t, err)

	var fresh models.Dare
	require.NoError(t, e.DB.Where("id = ?", dare.ID).First(&fresh).Error)
	assert.Equal(t, models.DareStatusFailed, fresh.Status)
	require.NotNil(t, fresh.AppealStatus)
	assert.Equal(t, models.AppealStatusRejected, *fresh.AppealStatus)
	assert.Equal(t, 1, fresh.ReviewRound)
}

func TestResolveAppeal_UnknownDare(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Appeals.ResolveAppeal("missing", "op-1", models.AppealStatusApproved)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestForceResolve_VerifiedForcesConfidenceAndSettles(t *testing.T) {
	e := newTestEngine(t)
	dare := seedDare(t, e.DB, models.DareStatusPendingReview, 100)

	require.NoError(t, e.Appeals.ForceResolve(dare.ID, "op-1", models.DareStatusVerified, "checked the video myself"))

	var fresh models.Dare
	require.NoError(t, e.DB.Where("id = ?", dare.ID).First(&fresh).Error)
	assert.Equal(t, models.DareStatusVerified, fresh.Status)
	assert.Equal(t, 1.0, fresh.ProofConfidence) // operator judgment overrides the scorer
	require.NotNil(t, fresh.SettledAt)

	var override models.OverrideLog
	require.NoError(t, e.DB.Where("dare_id = ?", dare.ID).First(&override).Error)
	assert.Equal(t, "forced_VERIFIED", override.Action)
}

func TestForceResolve_FailedLeavesConfidence(t *testing.T) {
	e := newTestEngine(t)
	dare := seedDare(t, e.DB, models.DareStatusPendingReview, 100)

	require.NoError(t, e.Appeals.ForceResolve(dare.ID, "op-1", models.DareStatusFailed, "proof is recycled"))

	var fresh models.Dare
	require.NoError(t, e.DB.Where("id = ?", dare.ID).First(&fresh).Error)
	assert.Equal(t, models.DareStatusFailed, fresh.Status)
	assert.NotEqual(t, 1.0, fresh.ProofConfidence)
	assert.Nil(t, fresh.SettledAt)
}

func TestForceResolve_OnlyFromReview(t *testing.T) {
	e := newTestEngine(t)
	for _, status := range []models.DareStatus{
		models.DareStatusPending,
		models.DareStatusVerified,
		models.DareStatusExpired,
	} {
		dare := seedDare(t, e.DB, status, 100)
		err := e.Appeals.ForceResolve(dare.ID, "op-1", models.DareStatusVerified, "")
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict, "status %s", status)
	}

	dare := seedDare(t, e.DB, models.DareStatusPendingReview, 100)
	err := e.Appeals.ForceResolve(dare.ID, "op-1", models.DareStatusExpired, "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestAppealScenario_FailedToReviewToVerified(t *testing.T) {
	e := newTestEngine(t)

	// A dare fails crowd review, the creator appeals, an operator approves,
	// and the second round verifies it.
	dare := seedDare(t, e.DB, models.DareStatusPendingReview, 100, func(d *models.Dare) {
		submitter := "performer-1"
		d.ProofSubmitter = &submitter
	})

	for i := 0; i < 4; i++ {
		_, err := e.Votes.CastVote(dare.ID, fmt.Sprintf("a%d", i), models.VoteApprove)
		require.NoError(t, err)
	}
	for i := 0; i < 6; i++ {
		_, err := e.Votes.CastVote(dare.ID, fmt.Sprintf("r%d", i), models.VoteReject)
		require.NoError(t, err)
	}

	var failed models.Dare
	require.NoError(t, e.DB.Where("id = ?", dare.ID).First(&failed).Error)
	require.Equal(t, models.DareStatusFailed, failed.Status)

	_, err := e.Appeals.FileAppeal(dare.ID, "creator-1", "rejecters never watched it")
	require.NoError(t, err)
	_, err = e.Appeals.ResolveAppeal(dare.ID, "op-1", models.AppealStatusApproved)
	require.NoError(t, err)

	// Round 2: fresh voters verify it; round-1 votes are audit-only.
	for i := 0; i < 10; i++ {
		_, err := e.Votes.CastVote(dare.ID, fmt.Sprintf("round2-%d", i), models.VoteApprove)
		require.NoError(t, err)
	}

	var final models.Dare
	require.NoError(t, e.DB.Where("id = ?", dare.ID).First(&final).Error)
	assert.Equal(t, models.DareStatusVerified, final.Status)
	require.NotNil(t, final.SettledAt)
}
