// Package classify implements the escalation classifier: an ordered list of
// tagged category matchers combined with a sentiment/trend signal. The rule
// order and the confidence constants are load-bearing; tests pin them.
package classify

import "regexp"

// Tier is the escalation severity of a classification result.
type Tier string

const (
	// TierAlways is a mandatory human handoff; sentiment cannot override it.
	TierAlways Tier = "always"
	// TierLikely needs judgment: it escalates on low confidence or when two
	// independent signals stack.
	TierLikely Tier = "likely"
	// TierNone means the message is handled autonomously.
	TierNone Tier = "none"
)

// Always-escalate categories, evaluated in this order; the first matching
// set wins and short-circuits the rest.
const (
	CategoryBilling  = "billing"
	CategoryLegal    = "legal"
	CategorySecurity = "security"
	CategoryAccount  = "account"

	CategorySentiment = "sentiment"
)

type matcher struct {
	category string
	patterns []*regexp.Regexp
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

// alwaysMatchers are the mandatory-handoff pattern sets. Note the legal set:
// bare "legal" is intentionally not a trigger — only legal *action* context
// is ("legal action", "legal counsel"), so "legal entity" stays autonomous.
var alwaysMatchers = []matcher{
	{CategoryBilling, compile(
		`\brefund\b`,
		`\bmoney\s*back\b`,
		`\bcharged\s*(twice|incorrectly|wrong)`,
		`\bduplicate\s*charge`,
		`\bbilling\s*dispute`,
		`\bdiscount\b`,
		`\bcustom\s*(pricing|invoice)`,
		`\bPO\s*number\b`,
		`\bpurchase\s*order\b`,
		`\bcharged\b.{0,40}\b(never\s*(upgraded|signed|agreed|authorized))`,
		`\b(unauthorized|unexpected|surprise)\s*(charge|billing|payment)`,
	)},
	{CategoryLegal, compile(
		`\bgdpr\b`,
		`\bdata\s*deletion\b`,
		`\bright\s*to\s*(erasure|be\s*forgotten)`,
		`\bccpa\b`,
		`\bdpa\b`,
		`\bdata\s*processing\s*agreement\b`,
		`\bsoc\s*2\b`,
		`\bcompliance\s*(documentation|report|certification|audit)`,
		`\blawyer\b`,
		`\battorney\b`,
		`\bsue\b`,
		`\bsubpoena\b`,
		`\blegal\s+(action|threat|team|department|counsel|dispute|proceeding|notice)`,
		`\b(threaten|filing|file)\s+(a\s+)?(lawsuit|complaint|dispute)`,
	)},
	{CategorySecurity, compile(
		`\bdata\s*breach\b`,
		`\bunauthorized\s*access\b`,
		`\bsecurity\s*(bug|vulnerability|concern|issue)\b`,
		`\bsuspicious\s*(activity|login)`,
		`\bpermission.{0,20}bypass\b`,
		`\bguest.{0,30}(edit|modify|change|move|delete).{0,20}(task|card|board|project)`,
	)},
	{CategoryAccount, compile(
		`\b(workspace|account)\s*deletion\b`,
		`\bownership\s*transfer\b`,
		`\bdeactivated\s*(email|account)\b`,
		`\btransfer\s*ownership\b`,
	)},
}

// likelyMatchers are judgment-call pattern sets. Each matching set fires one
// signal; the combiner counts signals rather than taking the first.
var likelyMatchers = []matcher{
	{"human_requested", compile(
		`\breal\s*person\b`,
		`\bhuman\s*(agent)?\b`,
		`\bspeak\s*to\s*(a\s*)?(manager|someone|person)\b`,
		`\btalk\s*to\s*(a\s*)?(manager|someone|person|human)\b`,
		`\btransfer\s*me\b`,
	)},
	{"churn_risk", compile(
		`\bswitch(ing)?\s*to\s*(asana|trello|monday|competitor)\b`,
		`\bcancel\s*(my|our)\s*(account|subscription)\b`,
		`\bmigrat(e|ing)\s*(to|away)\b`,
		`\bconsidering\s*(switch|moving|leaving)\b`,
	)},
	{"data_loss", compile(
		`\bdata\s*loss\b`,
		`\blost\s*(work|data|tasks|files|hours|changes|progress)`,
		`\b(tasks?|data|files|work)\s*(disappeared|vanished|gone|missing|deleted)`,
		`\bdisappeared\b`,
		`\bvanished\b`,
	)},
	{"account_lockout", compile(
		`\blocked\s*out\b.{0,40}(admin|workspace|entire|company|organization)`,
		`\b2fa\b.{0,40}(lost|locked|cannot|can't|no\s*access)`,
		`\bauthenticator\b.{0,30}(lost|broken|damaged|stolen)`,
		`\brecovery\s*codes?\b.{0,30}(lost|cannot|can't|missing)`,
	)},
	{"stuck_operations", compile(
		`\b(export|import|sync|upload|download|migration).{0,60}(stuck|hanging|frozen|stalled|processing|pending)`,
		`\b(stuck|hanging|frozen)\s*(for|since|over)\s*\d+\s*(hour|day|week)`,
		`\bmore\s*than\s*\d+\s*(hour|day)`,
		`\b\d+\s*(hour|day|week)s?\b.{0,30}(still|not\s*complete|processing|pending)`,
		`\bstill\s*(show|display|say).{0,20}(processing|pending|waiting|queued)`,
	)},
	{"repeat_contact", compile(
		`\b(second|third|fourth|2nd|3rd|4th)\s*time\b`,
		`\bagain\b`,
		`\bstill\s*not\b`,
		`\balready\s*(contacted|reported|emailed|told|asked)`,
		`\bthree\s*times\b`,
	)},
}

// The enterprise compound rule fires when a severity clause and a scope
// clause both appear anywhere in the text of an enterprise customer's
// message. The two clauses are matched independently rather than within one
// regex window, so "unusable ... affects all users" triggers it no matter
// how far apart the clauses sit.
var (
	enterpriseSeverityRE = regexp.MustCompile(`(?i)\b(critical|blocking|blocks)\s*(bug|issue|problem)\b|\b(not\s*load(ing)?|stuck\s*on\s*spinner|timeout|unusable)\b`)
	enterpriseScopeRE    = regexp.MustCompile(`(?i)\b(entire|whole)?\s*(team|organization|company|workspace|everyone|all\s*users)\b`)
)

const categoryEnterpriseBug = "critical_enterprise_bug"
