package evaluate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kljensen/snowball/english"

	"docrag/internal/domain"
)

// Score is one ROUGE measurement.
type Score struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	FMeasure  float64 `json:"fmeasure"`
}

// Scores holds ROUGE-1, ROUGE-2 and ROUGE-L of a generated text against a
// reference.
type Scores struct {
	Rouge1 Score `json:"rouge1"`
	Rouge2 Score `json:"rouge2"`
	RougeL Score `json:"rougeL"`
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// ScoreOverlap scores generated against reference. Tokens are lowercased,
// split on anything but ASCII letters and digits, and tokens longer than
// three characters are stemmed.
func ScoreOverlap(reference, generated string) (Scores, error) {
	if strings.TrimSpace(reference) == "" || strings.TrimSpace(generated) == "" {
		return Scores{}, fmt.Errorf("%w: reference and generated text must both be non-empty", domain.ErrInvalidInput)
	}
	ref, gen := tokenize(reference), tokenize(generated)
	return Scores{
		Rouge1: ngramScore(ref, gen, 1),
		Rouge2: ngramScore(ref, gen, 2),
		RougeL: lcsScore(ref, gen),
	}, nil
}

func tokenize(text string) []string {
	toks := strings.Fields(nonAlnum.ReplaceAllString(strings.ToLower(text), " "))
	for i, t := range toks {
		if len(t) > 3 {
			toks[i] = english.Stem(t, true)
		}
	}
	return toks
}

func ngrams(toks []string, n int) map[string]int {
	out := map[string]int{}
	for i := 0; i+n <= len(toks); i++ {
		out[strings.Join(toks[i:i+n], " ")]++
	}
	return out
}

func ngramScore(ref, gen []string, n int) Score {
	refGrams, genGrams := ngrams(ref, n), ngrams(gen, n)
	var refTotal, genTotal, overlap int
	for _, c := range refGrams {
		refTotal += c
	}
	for g, c := range genGrams {
		genTotal += c
		overlap += min(c, refGrams[g])
	}
	return newScore(overlap, genTotal, refTotal)
}

func lcsScore(ref, gen []string) Score {
	return newScore(lcsLength(ref, gen), len(gen), len(ref))
}

// lcsLength is the length of the longest common subsequence of a and b.
func lcsLength(a, b []string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = max(prev[j], cur[j-1])
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func newScore(overlap, genTotal, refTotal int) Score {
	if genTotal == 0 || refTotal == 0 {
		return Score{}
	}
	p := float64(overlap) / float64(genTotal)
	r := float64(overlap) / float64(refTotal)
	s := Score{Precision: p, Recall: r}
	if p+r > 0 {
		s.FMeasure = 2 * p * r / (p + r)
	}
	return s
}
