// Package filter implements the safety gate: a deterministic content
// classifier plus a per-sender rate limiter. Both sides of a conversation
// pass through here — inbound user text before it reaches the composer,
// outbound replies before they reach the radio.
package filter

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rule names, recorded in the filtered_content audit table.
const (
	RuleHateSpeech = "hate_speech"
	RuleViolence   = "violence"
	RuleIllegal    = "illegal"
	RuleProfanity  = "profanity"
	RuleExplicit   = "explicit"
	RuleScam       = "scam"
	RuleSensitive  = "sensitive_info"
	RuleSpam       = "spam"
)

// Verdict is the classification outcome.
type Verdict struct {
	Allowed bool
	Rule    string
	Reason  string
}

// Allow is the verdict for unmatched text.
var Allow = Verdict{Allowed: true}

type patternRule struct {
	name   string
	reason string
	re     *regexp.Regexp
	strict bool // only enforced in strict mode
}

// Filter classifies message content with an ordered rule list; the first
// matching rule wins. It holds no mutable state and is safe for concurrent
// use.
type Filter struct {
	strict bool
	rules  []patternRule

	ssnRe  *regexp.Regexp
	cardRe *regexp.Regexp
}

// New compiles the rule set. Strict mode additionally enforces profanity,
// explicit content, and scam rules.
func New(strict bool) *Filter {
	compile := func(patterns ...string) *regexp.Regexp {
		return regexp.MustCompile(`(?i)` + strings.Join(patterns, "|"))
	}

	return &Filter{
		strict: strict,
		rules: []patternRule{
			{
				name:   RuleHateSpeech,
				reason: "contains hate speech",
				re: compile(
					`\b(kill|murder|exterminate)\s+(all|every)\s+\w+`,
					`\b(death\s+to|die)\s+\w+`,
				),
			},
			{
				name:   RuleViolence,
				reason: "contains violent threats",
				re: compile(
					`\b(going to|gonna|will)\s+(kill|shoot|stab|hurt|attack)`,
					`\b(bomb|explosive|weapon)\s+(threat|attack)`,
					`\bi'?ll\s+(kill|shoot|stab|hurt)`,
					`\bkill\s+your?(self)?\b`,
				),
			},
			{
				name:   RuleIllegal,
				reason: "references illegal activity",
				re: compile(
					`\b(buy|sell|get)\s+(drugs?|cocaine|heroin|meth)\b`,
					`\b(hack|crack)\s+(password|account|system)`,
					`\bhow\s+to\s+(make|build)\s+(a\s+)?(bomb|explosive|weapon)`,
					`\bsteal\s+(credit|identity|money)`,
				),
			},
			{
				name:   RuleProfanity,
				reason: "contains profanity",
				strict: true,
				re: compile(
					`\bf+u+c+k+`, `\bs+h+i+t+`, `\ba+s+s+h+o+l+e`,
					`\bb+i+t+c+h+`, `\bc+u+n+t+`, `\bw+h+o+r+e+`,
				),
			},
			{
				name:   RuleExplicit,
				reason: "contains explicit content",
				strict: true,
				re: compile(
					`\b(nude|naked|porn)\b`,
					`\bsend\s+(nudes?|pics?)\b`,
				),
			},
			{
				name:   RuleScam,
				reason: "appears to be a scam",
				strict: true,
				re: compile(
					`\b(send|give)\s+(me\s+)?(money|bitcoin|crypto|btc)\b`,
					`\b(won|winner|lottery|prize)\b`,
					`\b(nigerian|prince|inheritance)\b`,
					`\bclick\s+(this|here|link)\b`,
					`\bfree\s+(money|crypto|bitcoin)\b`,
					`\bwire\s+transfer\b`,
				),
			},
		},
		ssnRe:  regexp.MustCompile(`\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`),
		cardRe: regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`),
	}
}

// Classify runs the ordered rule list over the text; the first match
// denies. Unmatched text is allowed.
func (f *Filter) Classify(text string) Verdict {
	if text == "" {
		return Allow
	}

	for _, r := range f.rules {
		if r.strict && !f.strict {
			continue
		}
		if r.re.MatchString(text) {
			return Verdict{Rule: r.name, Reason: r.reason}
		}
	}

	if f.ssnRe.MatchString(text) || f.cardRe.MatchString(text) {
		return Verdict{Rule: RuleSensitive, Reason: "contains sensitive personal information"}
	}

	if reason := spamReason(text); reason != "" {
		return Verdict{Rule: RuleSpam, Reason: reason}
	}

	return Allow
}

// Redact masks SSN and card numbers; used when auditing sensitive-info
// denials so the audit row itself doesn't retain the data.
func (f *Filter) Redact(text string) string {
	text = f.ssnRe.ReplaceAllString(text, "[REDACTED]")
	return f.cardRe.ReplaceAllString(text, "[REDACTED]")
}

// spamReason flags flooding characteristics: 5+ repeats of one symbol, or
// mostly-caps text.
func spamReason(text string) string {
	run, prev := 0, rune(-1)
	for _, r := range text {
		if r == prev {
			run++
			if run >= 5 {
				return "excessive character repetition"
			}
		} else {
			prev, run = r, 1
		}
	}

	if utf8.RuneCountInString(text) > 10 {
		letters, caps := 0, 0
		for _, r := range text {
			if unicode.IsLetter(r) {
				letters++
				if unicode.IsUpper(r) {
					caps++
				}
			}
		}
		if letters > 0 && float64(caps)/float64(letters) > 0.7 {
			return "excessive capitalization"
		}
	}
	return ""
}
