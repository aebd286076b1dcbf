package suite

import (
	"regexp"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Quality grades for a similarity score, at the 80/60/40 cut-offs.
const (
	QualityExcellent = "excellent"
	QualityGood      = "good"
	QualityFair      = "fair"
	QualityPoor      = "poor"
)

var whitespace = regexp.MustCompile(`\s+`)

// Similarity scores how closely an answer matches the expected text as a
// percentage in [0, 100]. Both sides are lowercased and
// whitespace-normalized first; either side empty scores 0.
func Similarity(answer, expected string) float64 {
	a := normalize(answer)
	b := normalize(expected)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a, b, false)
	distance := dmp.DiffLevenshtein(diffs)

	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	ratio := 1 - float64(distance)/float64(longest)
	if ratio < 0 {
		ratio = 0
	}
	return ratio * 100
}

// Grade buckets a similarity score into a quality label.
func Grade(score float64) string {
	switch {
	case score >= 80:
		return QualityExcellent
	case score >= 60:
		return QualityGood
	case score >= 40:
		return QualityFair
	default:
		return QualityPoor
	}
}

func normalize(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(strings.ToLower(s), " "))
}
