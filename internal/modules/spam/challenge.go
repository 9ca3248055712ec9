package spam

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Challenge approves a submission whose challenge answer matches the
// expected one. A wrong or missing answer is not evidence of spam, so it
// yields Indecisive and the chain moves on.
type Challenge struct{}

func NewChallenge() *Challenge { return &Challenge{} }

func (*Challenge) Kind() Kind { return KindChallenge }

func (*Challenge) Available(context.Context) (bool, error) { return true, nil }

func (*Challenge) Check(_ context.Context, ev Evidence) (Result, error) {
	if PassesChallenge(ev.Answer, ev.ExpectedAnswer) {
		return Result{Verdict: Ham}, nil
	}
	return Result{Verdict: Indecisive}, nil
}

// PassesChallenge compares answers after slug normalization, so case,
// accents and punctuation do not matter. A blank expected answer never passes.
func PassesChallenge(answer, expected string) bool {
	if strings.TrimSpace(expected) == "" {
		return false
	}
	want := slugify(expected)
	return want != "" && slugify(answer) == want
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	// transform chains are stateful, build one per call
	foldMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(foldMarks, s); err == nil {
		s = folded
	}

	var b strings.Builder
	dash := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
