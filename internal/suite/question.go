// Package suite defines the test questions a run executes and the results
// it records.
package suite

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Question is one test case: the text to send to the agent and, optionally,
// the expected answer used for similarity scoring. Immutable once built.
type Question struct {
	Text     string
	Expected string
	Language language.Tag
}

// NewQuestion builds a validated question. The language defaults to Hebrew,
// matching the default question set.
func NewQuestion(text, expected, lang string) (Question, error) {
	if strings.TrimSpace(text) == "" {
		return Question{}, fmt.Errorf("question text cannot be empty")
	}
	tag := language.Hebrew
	if lang != "" {
		parsed, err := language.Parse(lang)
		if err != nil {
			return Question{}, fmt.Errorf("invalid language tag %q: %w", lang, err)
		}
		tag = parsed
	}
	return Question{Text: text, Expected: expected, Language: tag}, nil
}

// TestResult records the outcome of one question.
type TestResult struct {
	Question     string        `json:"question"`
	Response     string        `json:"response,omitempty"`
	Expected     string        `json:"expected,omitempty"`
	Duration     time.Duration `json:"duration"`
	Success      bool          `json:"success"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`

	// Similarity is the normalized match percentage between Response and
	// Expected; Quality is its coarse grade. Both are zero-valued when no
	// expected answer was given.
	Similarity float64 `json:"similarity,omitempty"`
	Quality    string  `json:"quality,omitempty"`
}

// Summary aggregates a completed run.
type Summary struct {
	Total           int           `json:"total"`
	Passed          int           `json:"passed"`
	Failed          int           `json:"failed"`
	SuccessRate     float64       `json:"success_rate"`
	AverageDuration time.Duration `json:"average_duration"`
}

// Summarize computes the run summary from an ordered result list.
func Summarize(results []TestResult) Summary {
	s := Summary{Total: len(results)}
	if s.Total == 0 {
		return s
	}
	var total time.Duration
	for _, r := range results {
		if r.Success {
			s.Passed++
		} else {
			s.Failed++
		}
		total += r.Duration
	}
	s.SuccessRate = float64(s.Passed) / float64(s.Total) * 100
	s.AverageDuration = total / time.Duration(s.Total)
	return s
}
