package services

import (
	"testing"
	"time"

	"dare-engine/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB spins up an in-memory sqlite database with the full schema so
// conditional updates, unique indexes, and transactions run against real SQL.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1) // one shared in-memory database

	require.NoError(t, db.AutoMigrate(
		&models.Dare{},
		&models.Vote{},
		&models.VoterAccount{},
		&models.ProofLedgerEntry{},
		&models.Appeal{},
		&models.OverrideLog{},
		&models.FeeConfig{},
		&models.SettlementInstruction{},
		&models.NotificationEvent{},
	))
	return db
}

type testEngine struct {
	DB         *gorm.DB
	Settlement *SettlementService
	Validator  *ProofValidator
	Dares      *DareService
	Votes      *VoteService
	Appeals    *AppealService
	Config     *models.FeeConfig
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	db := newTestDB(t)

	settlement := NewSettlementService(db)
	cfg, err := settlement.EnsureFeeConfig()
	require.NoError(t, err)

	validator := NewProofValidator(db)
	return &testEngine{
		DB:         db,
		Settlement: settlement,
		Validator:  validator,
		Dares:      NewDareService(db, validator, settlement),
		Votes:      NewVoteService(db, settlement),
		Appeals:    NewAppealService(db, settlement),
		Config:     cfg,
	}
}

// seedDare inserts a dare directly, bypassing the risk gate, so tests can
// start from any lifecycle state.
func seedDare(t *testing.T, db *gorm.DB, status models.DareStatus, bounty float64, mutate ...func(*models.Dare)) *models.Dare {
	t.Helper()
	dare := &models.Dare{
		ID:             uuid.NewString(),
		PublicID:       models.NewPublicID("test dare"),
		Title:          "eat a spoonful of hot sauce",
		CreatorID:      "creator-1",
		Bounty:         bounty,
		Currency:       "USD",
		StakerID:       "creator-1",
		Status:         status,
		ReviewRound:    1,
		RiskLevel:      models.RiskLevelLow,
		RiskConfidence: 0.75,
	}
	for _, m := range mutate {
		m(dare)
	}
	require.NoError(t, db.Create(dare).Error)
	return dare
}

func validProofRef() string {
	return "https://ipfs.io/ipfs/" + uuid.NewString()
}

func recentCapture() time.Time {
	return time.Now().Add(-1 * time.Hour)
}
