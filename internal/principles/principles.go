// Package principles implements the rule-based tripwire checks run against
// generated coaching content. Each principle owns two phrase tables and is
// evaluated by case-insensitive substring containment.
package principles

import (
	"fmt"
	"strings"
)

// Kind identifies one of the five principles
type Kind int

const (
	Ahimsa Kind = iota
	Satya
	Asteya
	Brahmacharya
	Aparigraha
)

// category is a named phrase table with its failure message template
type category struct {
	name    string
	message string
	phrases []string
}

type definition struct {
	name        string
	description string
	harmony     string
	categories  [2]category
}

var definitions = [...]definition{
	Ahimsa: {
		name:        "Ahimsa",
		description: "Non-harm: Protect user's psychological safety and agency",
		harmony:     "Ahimsa: Content respects user's boundaries and safety",
		categories: [2]category{
			{
				name:    "harm_indicators",
				message: "AHIMSA VIOLATION: Content suggests potentially harmful medical advice: '%s'",
				phrases: []string{
					"stop medication", "ignore doctor", "avoid treatment", "skip consultation",
					"self-diagnose", "definitely have", "must be", "always means", "you should stop",
				},
			},
			{
				name:    "forcing_patterns",
				message: "AHIMSA VIOLATION: Content forces user disclosure: '%s'",
				phrases: []string{
					"you need to tell me", "you must share", "everyone does this",
					"it's wrong not to", "you're avoiding",
				},
			},
		},
	},
	Satya: {
		name:        "Satya",
		description: "Truthfulness: Honest about uncertainty, honor contradictions",
		harmony:     "Satya: Content honors complexity and uncertainty",
		categories: [2]category{
			{
				name:    "false_certainty",
				message: "SATYA VIOLATION: Overstating certainty: '%s'",
				phrases: []string{
					"guaranteed", "definitely will", "always works", "never fails",
					"impossible to", "certain to", "100% effective", "proven cure",
				},
			},
			{
				name:    "contradiction_dismissal",
				message: "SATYA VIOLATION: Dismissing user's contradictions: '%s'",
				phrases: []string{
					"you're contradicting yourself", "that doesn't make sense", "pick one",
					"which is it really", "stop being inconsistent",
				},
			},
		},
	},
	Asteya: {
		name:        "Asteya",
		description: "Non-stealing: Respect user's ownership of their narrative",
		harmony:     "Asteya: Content respects user's narrative ownership",
		categories: [2]category{
			{
				name:    "narrative_theft",
				message: "ASTEYA VIOLATION: Stealing user's interpretation: '%s'",
				phrases: []string{
					"you really mean", "what you're actually saying is", "let me tell you what's happening",
					"the truth is", "you're in denial about", "you don't realize",
				},
			},
			{
				name:    "manipulation",
				message: "ASTEYA VIOLATION: Manipulative commercial intent: '%s'",
				phrases: []string{
					"must buy", "need to purchase", "requires paid",
					"won't work unless", "have to subscribe", "click here to cure",
				},
			},
		},
	},
	Brahmacharya: {
		name:        "Brahmacharya",
		description: "Discipline: Stay within scope, defer medical decisions",
		harmony:     "Brahmacharya: Content maintains appropriate boundaries",
		categories: [2]category{
			{
				name:    "scope_overreach",
				message: "BRAHMACHARYA VIOLATION: Exceeding health coach scope: '%s'",
				phrases: []string{
					"diagnose yourself", "you have", "you definitely", "symptoms indicate",
					"medical diagnosis", "prescribe", "instead of doctor", "don't need medical",
				},
			},
			{
				name:    "forced_intensity",
				message: "BRAHMACHARYA VIOLATION: Forcing emotional intensity: '%s'",
				phrases: []string{
					"you must confront", "face your trauma now", "dig deeper immediately",
					"you need to process this now",
				},
			},
		},
	},
	Aparigraha: {
		name:        "Aparigraha",
		description: "Non-attachment: No commercial bias, respect autonomy",
		harmony:     "Aparigraha: Content offers without attachment",
		categories: [2]category{
			{
				name:    "commercial_bias",
				message: "APARIGRAHA VIOLATION: Commercial bias detected: '%s'",
				phrases: []string{
					"this brand", "buy our", "my product", "exclusive offer", "limited time", "act now",
				},
			},
			{
				name:    "outcome_attachment",
				message: "APARIGRAHA VIOLATION: Attached to specific outcome: '%s'",
				phrases: []string{
					"you have to", "you must achieve", "only way forward",
					"my solution is", "follow my plan", "do exactly",
				},
			},
		},
	},
}

var order = []Kind{Ahimsa, Satya, Asteya, Brahmacharya, Aparigraha}

// All returns every principle in evaluation order
func All() []Kind {
	out := make([]Kind, len(order))
	copy(out, order)
	return out
}

// Name returns the principle's display name
func (k Kind) Name() string {
	if !k.valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return definitions[k].name
}

// Description returns a one-line summary of what the principle protects
func (k Kind) Description() string {
	if !k.valid() {
		return ""
	}
	return definitions[k].description
}

func (k Kind) String() string {
	return k.Name()
}

func (k Kind) valid() bool {
	return k >= Ahimsa && k <= Aparigraha
}

// Outcome is the result of checking one principle against content
type Outcome struct {
	Principle   Kind
	Passed      bool
	Explanation string
	// Category and Matched are empty when the check passed
	Category string
	Matched  string
}

// Check scans content against the principle's phrase tables.
// The first match wins; tables are scanned in declaration order.
func (k Kind) Check(content string) Outcome {
	if !k.valid() {
		return Outcome{Principle: k, Explanation: fmt.Sprintf("unknown principle %d", int(k))}
	}
	def := &definitions[k]
	lowered := strings.ToLower(content)

	for _, cat := range def.categories {
		for _, phrase := range cat.phrases {
			if strings.Contains(lowered, phrase) {
				return Outcome{
					Principle:   k,
					Passed:      false,
					Explanation: fmt.Sprintf(cat.message, phrase),
					Category:    cat.name,
					Matched:     phrase,
				}
			}
		}
	}

	return Outcome{Principle: k, Passed: true, Explanation: def.harmony}
}

// Phrases returns a copy of every phrase the principle watches for, grouped by category name
func (k Kind) Phrases() map[string][]string {
	out := make(map[string][]string, 2)
	if !k.valid() {
		return out
	}
	for _, cat := range definitions[k].categories {
		out[cat.name] = append([]string(nil), cat.phrases...)
	}
	return out
}
