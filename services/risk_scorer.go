package services

import (
	"strings"

	"dare-engine/models"
)

// RiskAssessment is the scorer's full output. The whole thing is persisted on
// the dare so moderation decisions stay auditable, not just the boolean.
type RiskAssessment struct {
	Allowed         bool             `json:"allowed"`
	Flagged         bool             `json:"flagged"`
	Reason          string           `json:"reason"`
	Confidence      float64          `json:"confidence"` // [0,1]
	RiskLevel       models.RiskLevel `json:"risk_level"`
	MatchedPatterns []string         `json:"matched_patterns"`
}

// Pattern sets, checked against lowercased title+description. Instant-reject
// matches short-circuit; review matches subtract confidence; safety matches
// add it back.
var (
	instantRejectPatterns = []string{
		"kill", "murder", "suicide", "self-harm", "self harm",
		"shoot", "stab", "assault", "kidnap",
		"steal a car", "rob", "robbery", "break into",
		"arson", "set fire",
		"drug deal", "sell drugs", "trafficking",
		"minor", "underage", "child", "children",
		"nude", "naked", "porn", "sexual",
	}

	needsReviewPatterns = []string{
		"gun", "knife", "weapon", "firearm",
		"alcohol", "drunk", "vodka", "shots", "smoke", "vape", "high",
		"strip", "lingerie", "onlyfans", "twerk",
		"bet", "casino", "gamble", "poker",
		"fight", "slap", "prank",
	}

	safetyPatterns = []string{
		"game", "videogame", "chess", "speedrun",
		"eat", "food", "pizza", "hot sauce", "cook", "bake",
		"pushup", "push-up", "plank", "marathon", "workout", "gym", "run",
		"sing", "song", "dance", "karaoke", "rap", "guitar", "piano",
		"draw", "paint", "juggle",
	}
)

// Stake thresholds: textual filters get easier to game as the money at stake
// grows, so confidence scales down with stake, not just wording.
const (
	baselineConfidence = 0.7
	reviewPenalty      = 0.15
	safetyBonus        = 0.05
	lowConfidenceFloor = 0.5

	stakeTierLow      = 50.0
	stakeTierMedium   = 200.0
	stakeTierCritical = 500.0

	stakePenaltyLow      = 0.05
	stakePenaltyMedium   = 0.15
	stakePenaltyCritical = 0.30
)

// ScoreDare is a pure function: dare text + stake → publishability decision.
func ScoreDare(title, description string, stake float64) RiskAssessment {
	text := strings.ToLower(title + " " + description)

	// Tier 1: hard block. Never reaches stake logic.
	for _, p := range instantRejectPatterns {
		if matchesTerm(text, p) {
			return RiskAssessment{
				Allowed:         false,
				Flagged:         true,
				Reason:          "content matches a prohibited category",
				Confidence:      0,
				RiskLevel:       models.RiskLevelCritical,
				MatchedPatterns: []string{p},
			}
		}
	}

	confidence := baselineConfidence
	var matched []string
	flagged := false
	reason := ""

	for _, p := range needsReviewPatterns {
		if matchesTerm(text, p) {
			confidence -= reviewPenalty
			matched = append(matched, p)
			flagged = true
			reason = "content matches a review-required category"
		}
	}
	for _, p := range safetyPatterns {
		if matchesTerm(text, p) {
			confidence += safetyBonus
			matched = append(matched, p)
		}
	}

	// Tier 2: soft flag scaled by money at stake.
	switch {
	case stake >= stakeTierCritical:
		confidence -= stakePenaltyCritical
		flagged = true
		reason = "stake at or above the critical threshold"
	case stake >= stakeTierMedium:
		confidence -= stakePenaltyMedium
	case stake >= stakeTierLow:
		confidence -= stakePenaltyLow
	}

	// Clamp to [0.1, 1.0]
	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0.1 {
		confidence = 0.1
	}

	if confidence < lowConfidenceFloor && !flagged {
		flagged = true
		reason = "low confidence"
	}

	return RiskAssessment{
		Allowed:         true,
		Flagged:         flagged,
		Reason:          reason,
		Confidence:      confidence,
		RiskLevel:       riskLevelFor(confidence, flagged),
		MatchedPatterns: matched,
	}
}

// matchesTerm reports whether pattern occurs in text on word boundaries, so
// "run" never fires inside "drunk" and "high" never fires inside "highest".
// A plain trailing "s" on the matched word still counts ("guns" matches
// "gun"). Text and patterns are already lowercased ASCII.
func matchesTerm(text, pattern string) bool {
	for from := 0; from+len(pattern) <= len(text); {
		i := strings.Index(text[from:], pattern)
		if i < 0 {
			return false
		}
		i += from
		from = i + 1

		end := i + len(pattern)
		if end < len(text) && text[end] == 's' {
			end++
		}
		if (i == 0 || !isWordChar(text[i-1])) && (end == len(text) || !isWordChar(text[end])) {
			return true
		}
	}
	return false
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

func riskLevelFor(confidence float64, flagged bool) models.RiskLevel {
	switch {
	case confidence >= 0.7 && !flagged:
		return models.RiskLevelLow
	case confidence >= 0.5:
		return models.RiskLevelMedium
	case confidence >= 0.3:
		return models.RiskLevelHigh
	default:
		return models.RiskLevelCritical
	}
}
