package engine

import (
	"strings"
	"unicode"
)

// pronounIndicators are anaphoric words that only resolve against
// earlier turns. Matched as whole words.
var pronounIndicators = map[string]bool{
	"it":    true,
	"this":  true,
	"that":  true,
	"these": true,
	"those": true,
}

// phraseIndicators signal comparison, continuation, or reference to
// something already discussed. Matched as substrings.
var phraseIndicators = []string{
	"differ", "difference", "compare", "comparison",
	"example", "more about", "also", "additionally",
	"what about", "how about", "the same", "similar",
	"mentioned", "said", "explained", "previous", "earlier",
}

// questionStarters are the canonical interrogative openers. A short
// question that does not begin with one is assumed to lean on context.
var questionStarters = map[string]bool{
	"what":  true,
	"when":  true,
	"where": true,
	"who":   true,
	"why":   true,
	"how":   true,
	"which": true,
}

// NeedsContext reports whether a question likely depends on prior
// conversation turns. It is a deterministic heuristic over the question
// text alone; the caller decides what to do with the flag.
func NeedsContext(question string) bool {
	lower := strings.ToLower(question)

	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if pronounIndicators[w] {
			return true
		}
	}

	for _, indicator := range phraseIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}

	tokens := strings.Fields(question)
	if len(tokens) <= 3 {
		if len(tokens) > 0 && !questionStarters[strings.ToLower(tokens[0])] {
			return true
		}
		// even a question-word opener is under-specified at 1-2 words
		if len(tokens) <= 2 {
			return true
		}
	}

	return false
}
