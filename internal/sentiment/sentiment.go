// Package sentiment implements a lexicon-based sentiment scorer used to
// gauge customer mood per inbound message. It is deliberately dependency
// free and deterministic: the same text always yields the same score, which
// keeps escalation decisions reproducible in tests.
//
// Scores range from -1.0 (very negative) to 1.0 (very positive). The scorer
// handles negation ("not happy"), intensifiers ("really broken"), shouting
// (long all-caps runs), and exclamation pile-ups.
package sentiment

import (
	"math"
	"regexp"
	"strings"
)

// positiveWords maps positive terms to their weight.
var positiveWords = map[string]float64{
	// strong positive
	"love": 2, "amazing": 2, "excellent": 2, "fantastic": 2, "perfect": 2,
	"outstanding": 2, "incredible": 2, "wonderful": 2, "brilliant": 2,
	// moderate positive
	"great": 1, "good": 1, "nice": 1, "helpful": 1, "thanks": 1, "thank": 1,
	"appreciate": 1, "happy": 1, "pleased": 1, "enjoy": 1, "glad": 1,
	"awesome": 1, "impressive": 1, "smooth": 1, "easy": 1, "convenient": 1,
	"improved": 1, "fast": 1, "reliable": 1, "intuitive": 1, "clean": 1,
	"productive": 1, "efficient": 1, "solid": 1, "useful": 1,
}

// negativeWords maps negative terms to their weight.
var negativeWords = map[string]float64{
	// strong negative
	"terrible": 3, "worst": 3, "garbage": 3, "useless": 3, "unacceptable": 3,
	"awful": 3, "horrible": 3, "disgusting": 3, "pathetic": 3, "hate": 3,
	"scam": 3,
	// moderate negative
	"broken": 2, "frustrated": 2, "frustrating": 2, "angry": 2, "annoying": 2,
	"furious": 2, "ridiculous": 2, "disappointed": 2, "unresponsive": 2,
	"unusable": 2, "failing": 2, "disaster": 2, "outraged": 2, "ruined": 2,
	"wasted": 2,
	// mild negative
	"issue": 1, "problem": 1, "bug": 1, "error": 1, "stuck": 1,
	"slow": 1, "confusing": 1, "difficult": 1, "crash": 1, "crashing": 1,
	"missing": 1, "lost": 1, "fail": 1, "failed": 1, "wrong": 1,
	"concern": 1, "worried": 1, "trouble": 1, "unfortunately": 1,
	"worse": 1, "lag": 1, "delay": 1, "glitch": 1,
}

// negationWords flip the sentiment of the following word.
var negationWords = map[string]struct{}{
	"not": {}, "n't": {}, "no": {}, "never": {}, "neither": {}, "nobody": {},
	"nothing": {}, "nowhere": {}, "hardly": {}, "barely": {}, "without": {},
}

// intensifiers scale the weight of the following word.
var intensifiers = map[string]float64{
	"very": 1.5, "really": 1.5, "extremely": 2.0, "absolutely": 2.0,
	"completely": 1.5, "totally": 1.5, "so": 1.3, "incredibly": 2.0,
	"beyond": 1.5, "super": 1.5,
}

var (
	wordRE     = regexp.MustCompile(`[a-z']+`)
	nonAlphaRE = regexp.MustCompile(`[^a-zA-Z]`)
)

// Score returns the sentiment of text in [-1, 1], rounded to two decimals.
// Empty or near-empty text scores neutral.
func Score(text string) float64 {
	if len(strings.TrimSpace(text)) < 2 {
		return 0.0
	}

	words := wordRE.FindAllString(strings.ToLower(text), -1)
	if len(words) == 0 {
		return 0.0
	}

	var posScore, negScore float64
	var prev, prevPrev string

	for _, word := range words {
		multiplier := 1.0
		if m, ok := intensifiers[prev]; ok {
			multiplier = m
		}

		negated := false
		if _, ok := negationWords[prev]; ok {
			negated = true
		} else if strings.HasSuffix(prev, "n't") {
			negated = true
		} else if _, ok := negationWords[prevPrev]; ok {
			negated = true
		}

		if w, ok := positiveWords[word]; ok {
			weight := w * multiplier
			if negated {
				negScore += weight * 0.5 // negated positive reads mildly negative
			} else {
				posScore += weight
			}
		}
		if w, ok := negativeWords[word]; ok {
			weight := w * multiplier
			if negated {
				posScore += weight * 0.3 // negated negative reads mildly positive
			} else {
				negScore += weight
			}
		}

		prevPrev = prev
		prev = word
	}

	// Sustained all-caps reads as shouting.
	alpha := nonAlphaRE.ReplaceAllString(text, "")
	if len(alpha) > 15 && alpha == strings.ToUpper(alpha) {
		negScore += 5.0
	}

	// Exclamation pile-ups amplify whichever side dominates.
	if strings.Count(text, "!") >= 3 {
		switch {
		case negScore > posScore:
			negScore *= 1.3
		case posScore > negScore:
			posScore *= 1.2
		}
	}

	total := posScore + negScore
	if total == 0 {
		return 0.0
	}

	raw := (posScore - negScore) / total
	return round2(math.Max(-1.0, math.Min(1.0, raw)))
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
