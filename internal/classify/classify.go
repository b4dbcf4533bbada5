package classify

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/techcorp/taskflow-support/internal/domain"
)

// Decision thresholds and signal confidences. These constants are part of
// the classifier contract; conformance tests pin every one of them.
const (
	// AlwaysConfidence is reported for mandatory-handoff matches.
	AlwaysConfidence = 1.0
	// LikelyBaseConfidence is the confidence a likely pattern match starts at.
	LikelyBaseConfidence = 0.6
	// SentimentSignalCap bounds the confidence of the sentiment/trend signal.
	SentimentSignalCap = 0.5
	// SentimentEscalateThreshold is the per-message score below which the
	// sentiment signal fires.
	SentimentEscalateThreshold = -0.3
	// LikelyEscalateBelow: a likely result escalates when its confidence is
	// under this value, or when two or more independent signals fired.
	LikelyEscalateBelow = 0.6
)

// Message confidence formula (whether to answer at all, separate from the
// escalation decision above).
const (
	ConfidenceBase             = 0.5
	ConfidenceGroundingBonus   = 0.20
	ConfidenceClearIntentBonus = 0.15
	ConfidenceEasyIntentBonus  = 0.10
	ConfidenceShortPenalty     = 0.15
	ConfidenceNegativePenalty  = 0.10
	// ConfidenceFloor forces escalation regardless of the pattern result.
	ConfidenceFloor = 0.4

	// minMessageLen is the length under which a message is too short to
	// answer confidently.
	minMessageLen = 20
	// stronglyNegative is the sentiment below which the confidence penalty
	// applies. Same threshold as the sentiment escalation signal.
	stronglyNegative = -0.3
)

// Signal is one independent escalation indicator: a matched pattern set or
// the sentiment/trend signal. Signals are combined by counting, never by
// first-one-wins.
type Signal struct {
	Source     string // "pattern" or "sentiment"
	Category   string
	Confidence float64
}

// Result is the classifier verdict for one message.
type Result struct {
	Tier       Tier
	Category   string
	Confidence float64
	Reason     string
	Signals    []Signal
	Escalate   bool
}

// Classify runs the escalation decision procedure for one message:
//
//  1. Always pattern sets, in fixed order; the first match wins and cannot
//     be overridden by sentiment.
//  2. Likely pattern sets, each firing an independent signal at base
//     confidence. The enterprise compound rule needs severity + scope
//     clauses plus an enterprise plan.
//  3. The sentiment/trend signal, independent of patterns.
//  4. Combine: always escalates unconditionally; likely escalates on low
//     confidence or two stacked signals; otherwise the message is handled
//     autonomously.
//
// The reported Confidence is the highest individual signal confidence.
func Classify(text, plan, trend string, sentimentScore float64) Result {
	for _, m := range alwaysMatchers {
		if matchAny(m.patterns, text) {
			return Result{
				Tier:       TierAlways,
				Category:   m.category,
				Confidence: AlwaysConfidence,
				Reason:     m.category,
				Signals: []Signal{
					{Source: "pattern", Category: m.category, Confidence: AlwaysConfidence},
				},
				Escalate: true,
			}
		}
	}

	var signals []Signal
	for _, m := range likelyMatchers {
		if matchAny(m.patterns, text) {
			signals = append(signals, Signal{
				Source:     "pattern",
				Category:   m.category,
				Confidence: LikelyBaseConfidence,
			})
		}
	}
	if plan == domain.PlanEnterprise &&
		enterpriseSeverityRE.MatchString(text) && enterpriseScopeRE.MatchString(text) {
		signals = append(signals, Signal{
			Source:     "pattern",
			Category:   categoryEnterpriseBug,
			Confidence: LikelyBaseConfidence,
		})
	}

	if sentimentScore < SentimentEscalateThreshold || trend == domain.TrendDeclining {
		signals = append(signals, Signal{
			Source:     "sentiment",
			Category:   CategorySentiment,
			Confidence: SentimentSignalCap,
		})
	}

	if len(signals) == 0 {
		return Result{Tier: TierNone, Confidence: 0, Reason: ""}
	}

	confidence := 0.0
	categories := make([]string, 0, len(signals))
	for _, s := range signals {
		if s.Confidence > confidence {
			confidence = s.Confidence
		}
		categories = append(categories, s.Category)
	}

	return Result{
		Tier:       TierLikely,
		Category:   signals[0].Category,
		Confidence: confidence,
		Reason:     strings.Join(categories, "; "),
		Signals:    signals,
		Escalate:   confidence < LikelyEscalateBelow || len(signals) >= 2,
	}
}

// MessageConfidence scores whether the message can be answered at all.
// Scores below ConfidenceFloor force escalation regardless of Classify.
func MessageConfidence(text, intent string, grounded bool, sentimentScore float64) float64 {
	c := ConfidenceBase
	if grounded {
		c += ConfidenceGroundingBonus
	}
	if ClearIntent(intent) {
		c += ConfidenceClearIntentBonus
	}
	if EasyIntent(intent) {
		c += ConfidenceEasyIntentBonus
	}
	if len(strings.TrimSpace(text)) < minMessageLen {
		c -= ConfidenceShortPenalty
	}
	if sentimentScore < stronglyNegative {
		c -= ConfidenceNegativePenalty
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	// two decimals, same precision the scores are reported with
	return math.Round(c*100) / 100
}

// Describe renders a short human-readable reason line for audit logs, e.g.
// "likely: human_requested; sentiment (conf 0.60)".
func (r Result) Describe() string {
	if r.Tier == TierNone {
		return "none"
	}
	return fmt.Sprintf("%s: %s (conf %.2f)", r.Tier, r.Reason, r.Confidence)
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
