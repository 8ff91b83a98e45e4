package services

import (
	"testing"
	"time"

	"dare-engine/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProofValidator_ChecksInOrder(t *testing.T) {
	db := newTestDB(t)
	v := NewProofValidator(db)
	now := time.Now()
	fresh := now.Add(-1 * time.Hour)

	tests := []struct {
		name      string
		ref       string
		captured  time.Time
		wantCheck string
	}{
		{name: "empty ref", ref: "   ", captured: fresh, wantCheck: "empty"},
		{name: "not a url", ref: "just-some-hash", captured: fresh, wantCheck: "format"},
		{name: "http not https", ref: "http://ipfs.io/ipfs/abc", captured: fresh, wantCheck: "format"},
		{name: "untrusted host", ref: "https://random-video-host.example/clip.mp4", captured: fresh, wantCheck: "host"},
		{name: "future capture", ref: "https://ipfs.io/ipfs/futureproof", captured: now.Add(2 * time.Hour), wantCheck: "freshness"},
		{name: "stale capture", ref: "https://ipfs.io/ipfs/oldproof", captured: now.Add(-8 * 24 * time.Hour), wantCheck: "freshness"},
		{name: "override token", ref: "https://ipfs.io/ipfs/abc?admin_approved=1", captured: fresh, wantCheck: "tampering"},
		{name: "verified token", ref: "https://arweave.net/tx/verified=true", captured: fresh, wantCheck: "tampering"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.ref, tt.captured, now)
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantCheck, verr.Check)
			assert.NotEmpty(t, verr.Reason)
		})
	}
}

func TestProofValidator_AcceptsAllowlistedHosts(t *testing.T) {
	db := newTestDB(t)
	v := NewProofValidator(db)
	now := time.Now()

	for _, ref := range []string{
		"https://ipfs.io/ipfs/QmAbc123",
		"https://arweave.net/tx/xyz",
		"https://mybucket.s3.amazonaws.com/proofs/a.mp4", // subdomain of allowlisted provider
	} {
		assert.NoError(t, v.Validate(ref, now.Add(-time.Hour), now), ref)
	}
}

func TestProofValidator_ExtraHostAllowlist(t *testing.T) {
	db := newTestDB(t)
	v := NewProofValidator(db)
	now := time.Now()

	ref := "https://cdn.dares.example/proofs/a.mp4"
	require.Error(t, v.Validate(ref, now.Add(-time.Hour), now))

	v.AllowHost("cdn.dares.example")
	assert.NoError(t, v.Validate(ref, now.Add(-time.Hour), now))
}

func TestProofValidator_ReplayDetected(t *testing.T) {
	db := newTestDB(t)
	v := NewProofValidator(db)
	now := time.Now()

	ref := "https://ipfs.io/ipfs/QmUsedOnce"
	require.NoError(t, db.Create(&models.ProofLedgerEntry{
		ID:            uuid.NewString(),
		NormalizedRef: NormalizeRef(ref),
		DareID:        "dare-original",
	}).Error)

	err := v.Validate(ref, now.Add(-time.Hour), now)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "replay", verr.Check)
	assert.Contains(t, verr.Reason, "dare-original")

	// Cache-buster params must not dodge the ledger.
	err = v.Validate(ref+"?t=12345", now.Add(-time.Hour), now)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "replay", verr.Check)
}

func TestNormalizeRef(t *testing.T) {
	assert.Equal(t,
		NormalizeRef("https://IPFS.io/ipfs/QmAbc?x=1#frag"),
		NormalizeRef("https://ipfs.io/ipfs/QmAbc"),
	)
	// Path casing is meaningful (content-addressed ids are case-sensitive).
	assert.NotEqual(t,
		NormalizeRef("https://ipfs.io/ipfs/QmAbc"),
		NormalizeRef("https://ipfs.io/ipfs/qmabc"),
	)
}
