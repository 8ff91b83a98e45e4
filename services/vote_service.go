package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"dare-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VoteService struct {
	DB         *gorm.DB
	Settlement *SettlementService
}

func NewVoteService(db *gorm.DB, settlement *SettlementService) *VoteService {
	return &VoteService{DB: db, Settlement: settlement}
}

// CastVoteResult reports the tally after the cast plus the voter's reward
// state. AlreadyVoted means the cast was a duplicate no-op and Direction is
// the stored vote.
type CastVoteResult struct {
	Direction     models.VoteDirection `json:"direction"`
	ApproveCount  int64                `json:"approve_count"`
	RejectCount   int64                `json:"reject_count"`
	PointsAwarded int64                `json:"points_awarded"`
	VoterStreak   int64                `json:"voter_streak"`
	AlreadyVoted  bool                 `json:"already_voted"`
	Resolved      bool                 `json:"resolved"`
	Outcome       *models.DareStatus   `json:"outcome,omitempty"`
}

// CastVote records one vote per (dare, voter). Duplicates return the prior
// vote rather than an error. When the cast reaches quorum the dare resolves
// in the same call; the terminal transition is first-writer-wins so parallel
// quorum detections award points exactly once.
func (s *VoteService) CastVote(dareID, voterID string, direction models.VoteDirection) (*CastVoteResult, error) {
	if direction != models.VoteApprove && direction != models.VoteReject {
		return nil, &ValidationError{Check: "direction", Reason: "direction must be APPROVE or REJECT"}
	}

	var dare models.Dare
	if err := s.DB.Where("id = ?", dareID).First(&dare).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "dare", ID: dareID}
		}
		return nil, err
	}
	if dare.Status != models.DareStatusPendingReview {
		return nil, &ConflictError{Reason: fmt.Sprintf("dare is %s, voting is closed", dare.Status)}
	}

	cfg, err := s.Settlement.CurrentFeeConfig()
	if err != nil {
		return nil, err
	}

	vote := models.Vote{
		ID:          uuid.NewString(),
		DareID:      dareID,
		VoterID:     voterID,
		Direction:   direction,
		ReviewRound: dare.ReviewRound,
	}

	var pointsAwarded int64
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dare_id"}, {Name: "voter_id"}},
			DoNothing: true,
		}).Create(&vote)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Duplicate cast: surface the stored vote untouched. Load into a
			// fresh struct so the freshly generated id is not used as a
			// query condition.
			var existing models.Vote
			if err := tx.Where("dare_id = ? AND voter_id = ?", dareID, voterID).
				First(&existing).Error; err != nil {
				return err
			}
			vote = existing
			return nil
		}

		// Flat participation reward, granted at cast time.
		account, err := ensureVoterAccount(tx, voterID)
		if err != nil {
			return err
		}
		now := time.Now()
		account.TotalPoints += cfg.VotePoints
		account.TotalVotes++
		account.LastVotedAt = &now
		pointsAwarded = cfg.VotePoints
		return tx.Save(account).Error
	})
	if err != nil {
		return nil, err
	}

	alreadyVoted := pointsAwarded == 0

	approves, rejects, err := s.tally(dareID, dare.ReviewRound)
	if err != nil {
		return nil, err
	}

	result := &CastVoteResult{
		Direction:     vote.Direction,
		ApproveCount:  approves,
		RejectCount:   rejects,
		PointsAwarded: pointsAwarded,
		AlreadyVoted:  alreadyVoted,
	}

	if !alreadyVoted && approves+rejects >= int64(cfg.QuorumSize) {
		outcome, resolved, err := s.resolveConsensus(&dare, approves, rejects, cfg)
		if err != nil {
			return nil, err
		}
		if resolved {
			result.Resolved = true
			result.Outcome = &outcome
		}
	}

	var account models.VoterAccount
	if err := s.DB.Where("voter_id = ?", voterID).First(&account).Error; err == nil {
		result.VoterStreak = account.CurrentStreak
	}
	return result, nil
}

// Tally returns the current approve/reject counts for a dare's active round.
func (s *VoteService) Tally(dareID string) (approves, rejects int64, err error) {
	var dare models.Dare
	if err := s.DB.Where("id = ?", dareID).First(&dare).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, 0, &NotFoundError{Entity: "dare", ID: dareID}
		}
		return 0, 0, err
	}
	return s.tally(dareID, dare.ReviewRound)
}

func (s *VoteService) tally(dareID string, round int) (approves, rejects int64, err error) {
	if err = s.DB.Model(&models.Vote{}).
		Where("dare_id = ? AND review_round = ? AND direction = ?", dareID, round, models.VoteApprove).
		Count(&approves).Error; err != nil {
		return
	}
	err = s.DB.Model(&models.Vote{}).
		Where("dare_id = ? AND review_round = ? AND direction = ?", dareID, round, models.VoteReject).
		Count(&rejects).Error
	return
}

// resolveConsensus moves the dare to its crowd-decided terminal state and
// pays out voter rewards. Ties break toward REJECT, the conservative default.
// Resolution is one-time and irreversible: the conditional transition makes
// the first resolver the only one that mutates voter accounts, and votes that
// arrive after resolution never rewrite history.
func (s *VoteService) resolveConsensus(dare *models.Dare, approves, rejects int64, cfg *models.FeeConfig) (models.DareStatus, bool, error) {
	outcome := models.DareStatusFailed
	winning := models.VoteReject
	if approves > rejects {
		outcome = models.DareStatusVerified
		winning = models.VoteApprove
	}

	resolved := false
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Dare{}).
			Where("id = ? AND status = ?", dare.ID, models.DareStatusPendingReview).
			Update("status", outcome)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // another caller resolved first
		}
		resolved = true

		var votes []models.Vote
		if err := tx.Where("dare_id = ? AND review_round = ?", dare.ID, dare.ReviewRound).
			Find(&votes).Error; err != nil {
			return err
		}

		for _, v := range votes {
			account, err := ensureVoterAccount(tx, v.VoterID)
			if err != nil {
				return err
			}
			if v.Direction == winning {
				account.TotalPoints += cfg.ConsensusPoints
				account.CorrectVotes++
				account.CurrentStreak++
				if account.CurrentStreak > account.BestStreak {
					account.BestStreak = account.CurrentStreak
				}
			} else {
				account.CurrentStreak = 0
			}
			if err := tx.Save(account).Error; err != nil {
				return err
			}
		}

		if outcome == models.DareStatusVerified {
			var fresh models.Dare
			if err := tx.Where("id = ?", dare.ID).First(&fresh).Error; err != nil {
				return err
			}
			return s.Settlement.settleInTx(tx, &fresh, cfg)
		}
		return queueNotification(tx, dare.ID, "dare_failed",
			fmt.Sprintf("consensus %d approve / %d reject", approves, rejects))
	})
	if err != nil {
		return outcome, false, err
	}
	if resolved {
		log.Printf("🗳️ Consensus reached on dare %s: %s (%d approve / %d reject)",
			dare.ID, outcome, approves, rejects)
	}
	return outcome, resolved, nil
}

// GetVoterAccount returns reviewer stats, creating the row on first read.
func (s *VoteService) GetVoterAccount(voterID string) (*models.VoterAccount, error) {
	var account *models.VoterAccount
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		account, err = ensureVoterAccount(tx, voterID)
		return err
	})
	return account, err
}

// ensureVoterAccount fetches-or-creates the accumulator row (idempotent).
func ensureVoterAccount(tx *gorm.DB, voterID string) (*models.VoterAccount, error) {
	var account models.VoterAccount
	err := tx.Where("voter_id = ?", voterID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		account = models.VoterAccount{
			ID:      uuid.NewString(),
			VoterID: voterID,
		}
		if err := tx.Create(&account).Error; err != nil {
			return nil, err
		}
		return &account, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}
