package services

import (
	"net/url"
	"strings"
	"time"

	"dare-engine/models"

	"gorm.io/gorm"
)

// ProofFreshnessWindow bounds how old a captured proof may claim to be at
// submission time.
const ProofFreshnessWindow = 7 * 24 * time.Hour

// proofHostAllowlist: trusted content-addressed or managed storage providers.
// Arbitrary third-party video hosts are rejected — we can't pin their content.
var proofHostAllowlist = map[string]bool{
	"ipfs.io":                  true,
	"cloudflare-ipfs.com":      true,
	"arweave.net":              true,
	"storage.googleapis.com":   true,
	"s3.amazonaws.com":         true,
	"r2.cloudflarestorage.com": true,
}

// overrideTokens are adversarial strings seen embedded in proof refs to game
// downstream string-matching ("...?verified=true&admin_approved=1").
var overrideTokens = []string{
	"admin_approved", "force_verify", "verified=true", "override",
	"confidence=1", "bypass", "auto_settle",
}

// ProofValidator validates submitted proof references against allowlist,
// freshness, and replay rules. The replay check reads the ledger; the ledger
// insert itself happens inside the caller's transaction so a pass can never
// be spent twice.
type ProofValidator struct {
	DB             *gorm.DB
	ExtraHosts     map[string]bool // e.g. the service's own R2 public host
	FreshnessLimit time.Duration
}

func NewProofValidator(db *gorm.DB) *ProofValidator {
	return &ProofValidator{
		DB:             db,
		ExtraHosts:     map[string]bool{},
		FreshnessLimit: ProofFreshnessWindow,
	}
}

// AllowHost adds a host to the allowlist (used for the configured R2 public domain).
func (v *ProofValidator) AllowHost(host string) {
	host = strings.ToLower(strings.TrimSpace(host))
	if host != "" {
		v.ExtraHosts[host] = true
	}
}

// NormalizeRef canonicalizes a proof reference for ledger storage: lowercased
// scheme+host, query and fragment stripped so cache-buster params can't dodge
// replay detection. Bare hashes are lowercased as-is.
func NormalizeRef(ref string) string {
	ref = strings.TrimSpace(ref)
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return strings.ToLower(ref)
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

// Validate runs the checks in order; each is a hard fail with its own reason.
func (v *ProofValidator) Validate(ref string, capturedAt time.Time, now time.Time) error {
	ref = strings.TrimSpace(ref)

	// (a) non-empty
	if ref == "" {
		return &ValidationError{Check: "empty", Reason: "proof reference is required"}
	}

	// (b) host allowlist
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" || u.Scheme != "https" {
		return &ValidationError{Check: "format", Reason: "proof reference must be an https URL"}
	}
	host := strings.ToLower(u.Hostname())
	if !v.hostAllowed(host) {
		return &ValidationError{Check: "host", Reason: "proof host " + host + " is not a trusted storage provider"}
	}

	// (c) replay: one artifact settles at most one dare, ever
	normalized := NormalizeRef(ref)
	var existing models.ProofLedgerEntry
	err = v.DB.Where("normalized_ref = ?", normalized).First(&existing).Error
	if err == nil {
		return &ValidationError{Check: "replay", Reason: "this proof was already used for dare " + existing.DareID}
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	// (d) freshness
	if capturedAt.After(now.Add(5 * time.Minute)) {
		return &ValidationError{Check: "freshness", Reason: "capture timestamp is in the future"}
	}
	if now.Sub(capturedAt) > v.FreshnessLimit {
		return &ValidationError{Check: "freshness", Reason: "proof is older than the freshness window"}
	}

	// (e) adversarial override tokens
	lowered := strings.ToLower(ref)
	for _, tok := range overrideTokens {
		if strings.Contains(lowered, tok) {
			return &ValidationError{Check: "tampering", Reason: "proof reference contains a disallowed token"}
		}
	}

	return nil
}

func (v *ProofValidator) hostAllowed(host string) bool {
	if proofHostAllowlist[host] || v.ExtraHosts[host] {
		return true
	}
	// subdomains of allowlisted providers (bucket.s3.amazonaws.com etc.)
	for allowed := range proofHostAllowlist {
		if strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	for allowed := range v.ExtraHosts {
		if strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}
