package match

import (
	"math"
	"sort"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/clarusrisk/diligence-cli/internal/model"
)

// Score returns a token-sort similarity between two entity names on a 0-100
// scale. Both names are normalized, their tokens sorted, and the sorted forms
// compared with Levenshtein similarity, so word order ("Bank Rossiya" vs
// "Rossiya Bank") does not matter. Empty input scores 0.
func Score(a, b string) int {
	sa := tokenSort(a)
	sb := tokenSort(b)
	if sa == "" || sb == "" {
		return 0
	}
	sim := levenshtein.Similarity(sa, sb, nil)
	return int(math.Round(sim * 100))
}

func tokenSort(name string) string {
	tokens := strings.Fields(NormalizeName(name))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// Best tracks the single best-scoring candidate over a linear scan.
// First-seen wins on exact ties.
type Best struct {
	Score     int
	Candidate string
	Payload   map[string]string
}

// Consider updates the running best if score is strictly greater.
func (b *Best) Consider(score int, candidate string, payload map[string]string) {
	if score > b.Score {
		b.Score = score
		b.Candidate = candidate
		b.Payload = payload
	}
}

// Decide maps a best score to a screening outcome given the configured
// thresholds: >= critical -> critical, >= warn -> warning, else ok.
func Decide(score, criticalThreshold, warnThreshold int) model.Status {
	switch {
	case score >= criticalThreshold:
		return model.StatusCritical
	case score >= warnThreshold:
		return model.StatusWarning
	default:
		return model.StatusOK
	}
}
