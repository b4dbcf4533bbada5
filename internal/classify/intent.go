package classify

import (
	"regexp"
	"strings"
)

// Intent categories. IntentGeneralInquiry is the fallback when nothing
// matches; IntentSpam is only returned when at least two spam patterns hit.
const (
	IntentPasswordReset     = "password_reset"
	IntentIntegrationIssue  = "integration_issue"
	IntentSyncProblem       = "sync_problem"
	IntentBillingInquiry    = "billing_inquiry"
	IntentHowTo             = "how_to"
	IntentBugReport         = "bug_report"
	IntentFeatureRequest    = "feature_request"
	IntentDataConcern       = "data_concern"
	IntentNotificationIssue = "notification_issue"
	IntentMobileIssue       = "mobile_issue"
	IntentGreeting          = "greeting"
	IntentUnclear           = "unclear"
	IntentSpam              = "spam"
	IntentGeneralInquiry    = "general_inquiry"
)

// intentPatterns is evaluated in order; ties go to the earlier entry so the
// outcome is deterministic.
var intentPatterns = []struct {
	intent   string
	patterns []*regexp.Regexp
}{
	{IntentPasswordReset, compileLower(
		`\bpassword\b`, `\blogin\b`, `\blog\s*in\b`, `\blocked\s*out\b`,
		`\b2fa\b`, `\bcredentials\b`, `\bsign\s*in\b`,
	)},
	{IntentIntegrationIssue, compileLower(
		`\bslack\b`, `\bgithub\b`, `\bgoogle\s*(drive|calendar)\b`,
		`\bzapier\b`, `\bteams\b`, `\bintegration\b`, `\bokta\b`,
		`\bsaml\b`, `\bsso\b`,
	)},
	{IntentSyncProblem, compileLower(
		`\bsync\b`, `\bnot\s*(updating|showing|appearing|syncing)\b`,
		`\boffline\b`,
	)},
	{IntentBillingInquiry, compileLower(
		`\bbilling\b`, `\bcharged?\b`, `\brefund\b`, `\bpric(e|ing)\b`,
		`\bplan\b`, `\bsubscription\b`, `\binvoice\b`, `\bpayment\b`,
		`\bdiscount\b`, `\bcost\b`,
	)},
	{IntentHowTo, compileLower(
		`\bhow\s*(do|to|can)\b`, `\bwhere\s*(do|is|can)\b`,
		`\bset\s*up\b`, `\bcreate\b`, `\bimport\b`, `\bexport\b`,
		`\bwalk\s*me\s*through\b`, `\bstep[\s-]*by[\s-]*step\b`,
		`\bconfigure\b`, `\benable\b`,
	)},
	{IntentBugReport, compileLower(
		`\bbug\b`, `\bnot\s*working\b`, `\bbroken\b`, `\bcrash(ing|es)?\b`,
		`\berror\b`, `\bfailing\b`, `\bstuck\b`, `\bglitch\b`,
		`\bnon.?functional\b`,
	)},
	{IntentFeatureRequest, compileLower(
		`\bfeature\s*request\b`, `\bwould\s*be\s*(great|nice|amazing)\b`,
		`\bcan\s*you\s*add\b`, `\bdark\s*mode\b`, `\bplease\s*add\b`,
		`\bsuggestion\b`,
	)},
	{IntentDataConcern, compileLower(
		`\bgdpr\b`, `\bdata\s*(deletion|export|residency|retention)\b`,
		`\bsoc\s*2\b`, `\bcompliance\b`, `\bdpa\b`, `\bdata\s*location\b`,
	)},
	{IntentNotificationIssue, compileLower(
		`\bnotification\b`, `\balert\b`, `\bemail\s*notification\b`,
		`\bpush\s*notification\b`,
	)},
	{IntentMobileIssue, compileLower(
		`\bapp\b.*\b(crash|not\s*working|slow|crashing)\b`,
		`\bmobile\b`, `\biphone\b`, `\bandroid\b`, `\bios\b`,
	)},
	{IntentGreeting, compileLower(
		`^\s*(hi|hello|hey|good\s*(morning|afternoon|evening))[\s!.,]*$`,
	)},
	{IntentUnclear, compileLower(
		`^.{0,5}$`,
	)},
	{IntentSpam, compileLower(
		`(buy\s*cheap|click\s*now|limited\s*time\s*offer|guaranteed.*returns)`,
		`(www\s*dot|\.biz|tempmail)`,
	)},
}

func compileLower(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// DetectIntent classifies a message into one intent category by counting
// pattern hits per category. Spam needs two distinct hits to win outright;
// otherwise the highest-scoring category wins, earlier categories breaking
// ties.
func DetectIntent(message string) string {
	lower := strings.ToLower(strings.TrimSpace(message))

	best := IntentGeneralInquiry
	bestScore := 0
	spamScore := 0

	for _, ip := range intentPatterns {
		score := 0
		for _, re := range ip.patterns {
			if re.MatchString(lower) {
				score++
			}
		}
		if ip.intent == IntentSpam {
			spamScore = score
		}
		if score > bestScore {
			best = ip.intent
			bestScore = score
		}
	}

	if spamScore >= 2 {
		return IntentSpam
	}
	return best
}

// EasyIntent reports whether the intent belongs to the easy categories that
// raise answer confidence.
func EasyIntent(intent string) bool {
	return intent == IntentHowTo || intent == IntentFeatureRequest
}

// ClearIntent reports whether the detector produced a specific category
// rather than a fallback bucket.
func ClearIntent(intent string) bool {
	switch intent {
	case IntentGeneralInquiry, IntentUnclear, IntentSpam, "":
		return false
	}
	return true
}
