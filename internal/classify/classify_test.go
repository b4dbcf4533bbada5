package classify

import (
	"strings"
	"testing"

	"github.com/techcorp/taskflow-support/internal/domain"
)

func TestClassify_AlwaysBeatsPositiveSentiment(t *testing.T) {
	r := Classify("You folks are amazing but I need a refund for last month", domain.PlanFree, domain.TrendStable, 0.9)
	if r.Tier != TierAlways || !r.Escalate {
		t.Fatalf("refund must always escalate: %+v", r)
	}
	if r.Category != CategoryBilling {
		t.Fatalf("category: got %q want billing", r.Category)
	}
	if r.Confidence != 1.0 {
		t.Fatalf("always confidence: got %v want 1.0", r.Confidence)
	}
}

func TestClassify_GDPRIsAlwaysLegal(t *testing.T) {
	r := Classify("We need your GDPR data processing details", domain.PlanPro, domain.TrendStable, 0.2)
	if r.Tier != TierAlways || r.Category != CategoryLegal || !r.Escalate {
		t.Fatalf("gdpr must escalate as legal: %+v", r)
	}
}

func TestClassify_LegalEntityAloneDoesNotEscalate(t *testing.T) {
	r := Classify("Which legal entity is listed on our workspace billing profile?", domain.PlanFree, domain.TrendStable, 0.0)
	if r.Tier == TierAlways && r.Category == CategoryLegal {
		t.Fatalf("bare 'legal entity' must not trip the legal category: %+v", r)
	}
	if r.Escalate {
		t.Fatalf("should stay autonomous: %+v", r)
	}
}

func TestClassify_AlwaysOrderFirstMatchWins(t *testing.T) {
	// text matches both billing (refund) and legal (gdpr); billing is
	// evaluated first and wins
	r := Classify("refund please, also gdpr question", domain.PlanFree, domain.TrendStable, 0.0)
	if r.Tier != TierAlways || r.Category != CategoryBilling {
		t.Fatalf("first always set should win: %+v", r)
	}
}

func TestClassify_SingleLikelySignalStaysAutonomous(t *testing.T) {
	r := Classify("Could I speak to a manager about our rollout plan options", domain.PlanFree, domain.TrendStable, 0.1)
	if r.Tier != TierLikely {
		t.Fatalf("expected likely tier: %+v", r)
	}
	if len(r.Signals) != 1 {
		t.Fatalf("expected one signal: %+v", r.Signals)
	}
	if r.Confidence != LikelyBaseConfidence {
		t.Fatalf("likely base confidence: got %v want %v", r.Confidence, LikelyBaseConfidence)
	}
	if r.Escalate {
		t.Fatalf("one likely signal at base confidence must not escalate: %+v", r)
	}
}

func TestClassify_TwoLikelySignalsEscalate(t *testing.T) {
	// human request pattern + very negative sentiment = two independent
	// signals; each alone would not escalate
	r := Classify("I want to talk to a person", domain.PlanFree, domain.TrendStable, -0.5)
	if r.Tier != TierLikely || !r.Escalate {
		t.Fatalf("stacked signals must escalate: %+v", r)
	}
	if len(r.Signals) != 2 {
		t.Fatalf("expected two signals: %+v", r.Signals)
	}
}

func TestClassify_SentimentOnlyEscalates(t *testing.T) {
	r := Classify("everything here is the usual", domain.PlanFree, domain.TrendStable, -0.4)
	if r.Tier != TierLikely || !r.Escalate {
		t.Fatalf("sentiment below threshold must escalate: %+v", r)
	}
	if r.Category != CategorySentiment {
		t.Fatalf("category: got %q want sentiment", r.Category)
	}
	if r.Confidence != SentimentSignalCap {
		t.Fatalf("sentiment confidence: got %v want %v", r.Confidence, SentimentSignalCap)
	}
}

func TestClassify_DecliningTrendEscalates(t *testing.T) {
	r := Classify("the export finished fine today", domain.PlanFree, domain.TrendDeclining, 0.0)
	if !r.Escalate {
		t.Fatalf("declining trend must escalate regardless of message content: %+v", r)
	}
}

func TestClassify_EnterpriseCompoundRule(t *testing.T) {
	// severity clause and scope clause ~100 chars apart: the clauses are
	// matched independently, not within a proximity window
	text := "The board view has been unusable since this morning. " +
		strings.Repeat("We tried clearing caches and switching browsers. ", 2) +
		"This affects all users in our company."

	r := Classify(text, domain.PlanEnterprise, domain.TrendStable, 0.0)
	found := false
	for _, s := range r.Signals {
		if s.Category == categoryEnterpriseBug {
			found = true
		}
	}
	if !found {
		t.Fatalf("enterprise severity+scope should fire the compound rule: %+v", r.Signals)
	}

	// same text on a pro plan does not fire the compound rule
	r = Classify(text, domain.PlanPro, domain.TrendStable, 0.0)
	for _, s := range r.Signals {
		if s.Category == categoryEnterpriseBug {
			t.Fatalf("compound rule must be enterprise-only: %+v", r.Signals)
		}
	}
}

func TestClassify_NoSignals(t *testing.T) {
	r := Classify("what time does the webinar start tomorrow", domain.PlanFree, domain.TrendStable, 0.1)
	if r.Tier != TierNone || r.Escalate {
		t.Fatalf("benign message must stay autonomous: %+v", r)
	}
}

func TestMessageConfidence_Constants(t *testing.T) {
	long := "this message is comfortably longer than the short-message cutoff"

	if got := MessageConfidence(long, IntentGeneralInquiry, false, 0.0); got != 0.5 {
		t.Fatalf("base: got %v want 0.5", got)
	}
	if got := MessageConfidence(long, IntentHowTo, true, 0.0); got != 0.95 {
		t.Fatalf("grounded+clear+easy: got %v want 0.95", got)
	}
	if got := MessageConfidence(long, IntentBugReport, false, 0.0); got != 0.65 {
		t.Fatalf("clear only: got %v want 0.65", got)
	}
	if got := MessageConfidence("help", IntentGeneralInquiry, false, 0.0); got != 0.35 {
		t.Fatalf("short penalty: got %v want 0.35", got)
	}
	if got := MessageConfidence(long, IntentGeneralInquiry, false, -0.6); got != 0.4 {
		t.Fatalf("negative penalty: got %v want 0.4", got)
	}
	// the penalty threshold matches the sentiment escalation signal: a score
	// just under -0.3 is already penalized, exactly -0.3 is not
	if got := MessageConfidence(long, IntentGeneralInquiry, false, -0.4); got != 0.4 {
		t.Fatalf("moderately negative penalty: got %v want 0.4", got)
	}
	if got := MessageConfidence(long, IntentGeneralInquiry, false, -0.3); got != 0.5 {
		t.Fatalf("boundary score must not be penalized: got %v want 0.5", got)
	}
	if MessageConfidence("help", IntentGeneralInquiry, false, 0.0) >= ConfidenceFloor {
		t.Fatalf("short unclear message should land below the floor")
	}
}

func TestDetectIntent(t *testing.T) {
	cases := map[string]string{
		"I forgot my password and can't sign in": IntentPasswordReset,
		"how do I set up the Jira board":         IntentHowTo,
		"hello":                                  IntentGreeting,
		"ok":                                     IntentUnclear,
		"our slack integration stopped":          IntentIntegrationIssue,
		"click now buy cheap at www dot example dot biz": IntentSpam,
		"what time does the webinar start tomorrow":      IntentGeneralInquiry,
	}
	for text, want := range cases {
		if got := DetectIntent(text); got != want {
			t.Fatalf("DetectIntent(%q) = %q; want %q", text, got, want)
		}
	}
}

func TestIntentHelpers(t *testing.T) {
	if !EasyIntent(IntentHowTo) || !EasyIntent(IntentFeatureRequest) || EasyIntent(IntentBugReport) {
		t.Fatalf("easy intents are how_to and feature_request only")
	}
	if ClearIntent(IntentGeneralInquiry) || ClearIntent(IntentUnclear) || ClearIntent("") {
		t.Fatalf("fallback buckets are not clear intents")
	}
	if !ClearIntent(IntentSyncProblem) {
		t.Fatalf("specific categories are clear intents")
	}
}
