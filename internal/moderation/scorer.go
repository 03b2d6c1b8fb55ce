// internal/moderation/scorer.go
package moderation

import (
	"math"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Scorer is the text scoring collaborator used by lobby creation and search.
type Scorer interface {
	// Similarity returns how alike two texts are, in [0,1].
	Similarity(a, b string) float64
	// IsRejected reports whether text must not be published.
	IsRejected(text string) bool
}

// DefaultBlocklist is used when NewLexicalScorer gets no words.
var DefaultBlocklist = []string{
	"idiot", "moron", "stupid", "loser", "scum", "trash", "garbage", "kys", "hate", "dumb",
}

// LexicalScorer compares term-frequency vectors of normalized words and
// rejects text containing a blocklisted word. Its normalizers and word table
// are built on first use.
type LexicalScorer struct {
	words []string

	once        sync.Once
	normalizers sync.Pool
	blocked     map[string]struct{}
}

var _ Scorer = (*LexicalScorer)(nil)

// NewLexicalScorer returns a scorer rejecting the given words, or
// DefaultBlocklist when none are given.
func NewLexicalScorer(blocklist ...string) *LexicalScorer {
	if len(blocklist) == 0 {
		blocklist = DefaultBlocklist
	}
	return &LexicalScorer{words: blocklist}
}

// normalizer strips diacritics and folds case. Both transformers keep state,
// so one is used by a single goroutine at a time.
type normalizer struct {
	strip transform.Transformer
	fold  cases.Caser
}

func (s *LexicalScorer) init() {
	s.once.Do(func() {
		s.normalizers.New = func() any {
			return &normalizer{
				strip: transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
				fold:  cases.Fold(),
			}
		}
		s.blocked = make(map[string]struct{}, len(s.words))
		for _, w := range s.words {
			for _, tok := range s.tokenize(w) {
				s.blocked[tok] = struct{}{}
			}
		}
	})
}

// Similarity is the cosine of the two texts' term-frequency vectors.
func (s *LexicalScorer) Similarity(a, b string) float64 {
	s.init()
	va, vb := s.termFreq(a), s.termFreq(b)
	if len(va) == 0 || len(vb) == 0 {
		return 0
	}
	var dot, na, nb float64
	for tok, x := range va {
		na += x * x
		if y, ok := vb[tok]; ok {
			dot += x * y
		}
	}
	for _, y := range vb {
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return math.Min(1, dot/(math.Sqrt(na)*math.Sqrt(nb)))
}

// IsRejected reports whether any word of text is blocklisted.
func (s *LexicalScorer) IsRejected(text string) bool {
	s.init()
	for _, tok := range s.tokenize(text) {
		if _, ok := s.blocked[tok]; ok {
			return true
		}
	}
	return false
}

func (s *LexicalScorer) termFreq(text string) map[string]float64 {
	toks := s.tokenize(text)
	out := make(map[string]float64, len(toks))
	for _, t := range toks {
		out[t]++
	}
	return out
}

// tokenize folds case, strips diacritics and splits on anything that is not a
// letter or digit. Callers must have run init.
func (s *LexicalScorer) tokenize(text string) []string {
	n := s.normalizers.Get().(*normalizer)
	defer s.normalizers.Put(n)

	clean, _, err := transform.String(n.strip, text)
	if err != nil {
		clean = text
	}
	clean = n.fold.String(clean)
	return strings.FieldsFunc(clean, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
