// Package strength scores candidate passwords against simple heuristics.
package strength

import (
	"strings"
	"unicode/utf8"
)

// Label is the strength band of a score.
type Label string

const (
	VeryWeak Label = "Very Weak"
	Weak     Label = "Weak"
	Moderate Label = "Moderate"
	Strong   Label = "Strong"
	// VeryStrong is declared for a fifth band above Strong. The reference
	// calibration clamps the score to 4 before labeling, which makes this
	// band unreachable. Kept as a documented inconsistency rather than
	// silently recalibrated.
	VeryStrong Label = "Very Strong"
)

// Result is the outcome of scoring one candidate.
type Result struct {
	Score       int      `json:"score"`
	Label       Label    `json:"label"`
	Suggestions []string `json:"suggestions"`
}

var denyList = []string{"password", "123456", "qwerty", "letmein", "welcome"}

const (
	promptMessage      = "Enter a password"
	affirmativeMessage = "Good job! This is a strong password."
)

// Score rates a candidate on a 0-4 scale with improvement suggestions.
// Empty input scores 0 with a prompt to enter a password; when nothing is
// wrong, a single affirmative message is returned instead of an empty list.
func Score(candidate string) Result {
	if candidate == "" {
		return Result{Score: 0, Label: VeryWeak, Suggestions: []string{promptMessage}}
	}

	score := 0
	var suggestions []string

	length := utf8.RuneCountInString(candidate)
	if length < 8 {
		suggestions = append(suggestions, "Make it at least 8 characters long")
	} else if length >= 12 {
		score++
	}

	if strings.ContainsFunc(candidate, func(r rune) bool { return r >= 'a' && r <= 'z' }) {
		score++
	} else {
		suggestions = append(suggestions, "Add lowercase letters")
	}

	if strings.ContainsFunc(candidate, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
		score++
	} else {
		suggestions = append(suggestions, "Add uppercase letters")
	}

	if strings.ContainsFunc(candidate, func(r rune) bool { return r >= '0' && r <= '9' }) {
		score++
	} else {
		suggestions = append(suggestions, "Add numbers")
	}

	if strings.ContainsFunc(candidate, isSymbol) {
		score++
	} else {
		suggestions = append(suggestions, "Add symbols")
	}

	if onDenyList(candidate) {
		score = max(0, score-2)
		suggestions = append(suggestions, "Avoid common passwords")
	}

	if hasRepeatRun(candidate, 3) {
		score = max(0, score-1)
		suggestions = append(suggestions, "Avoid repeating characters")
	}

	if score > 4 {
		score = 4
	}

	if len(suggestions) == 0 {
		suggestions = []string{affirmativeMessage}
	}

	return Result{Score: score, Label: labelFor(score), Suggestions: suggestions}
}

func labelFor(score int) Label {
	switch {
	case score <= 1:
		return VeryWeak
	case score == 2:
		return Weak
	case score == 3:
		return Moderate
	default:
		return Strong
	}
}

func isSymbol(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return false
	case r >= 'A' && r <= 'Z':
		return false
	case r >= '0' && r <= '9':
		return false
	}
	return true
}

func onDenyList(candidate string) bool {
	lower := strings.ToLower(candidate)
	for _, common := range denyList {
		if lower == common {
			return true
		}
	}
	return false
}

// hasRepeatRun reports whether the candidate contains a run of n or more
// identical consecutive characters.
func hasRepeatRun(candidate string, n int) bool {
	runes := []rune(candidate)
	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}
