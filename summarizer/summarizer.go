// Package summarizer builds extractive summaries by scoring sentences with
// the frequency of the topical words they contain.
package summarizer

import (
	"bufio"
	_ "embed"
	"slices"
	"strings"
	"sync"
	"unicode"

	uaxsentences "github.com/clipperhouse/uax29/v2/sentences"
	"github.com/clipperhouse/uax29/v2/words"
	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

//go:embed stopwords_english.txt
var englishStopwords string

// FrequencyTable counts normalized words (lowercase, alphabetic, not a stopword).
type FrequencyTable map[string]int

// ScoredSentence is a distinct sentence of the input with its score.
// Index is its position among distinct sentences in reading order.
type ScoredSentence struct {
	Text  string
	Score int
	Index int
}

// Summarizer is safe for concurrent use; its stopword set is never mutated after New.
type Summarizer struct {
	stopwords map[string]struct{}
}

// New returns a Summarizer that ignores the given stopwords (matched case-insensitively).
func New(stopwords []string) *Summarizer {
	set := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return &Summarizer{stopwords: set}
}

// NewEnglish returns a Summarizer using the English stopword list.
func NewEnglish() *Summarizer {
	return New(EnglishStopwords())
}

// EnglishStopwords returns a copy of the embedded English stopword list.
func EnglishStopwords() []string {
	var out []string
	scanner := bufio.NewScanner(strings.NewReader(englishStopwords))
	for scanner.Scan() {
		if w := strings.TrimSpace(scanner.Text()); w != "" {
			out = append(out, w)
		}
	}
	return out
}

var defaultSummarizer = sync.OnceValue(NewEnglish)

// Default returns the shared English Summarizer, built on first use.
func Default() *Summarizer {
	return defaultSummarizer()
}

// Summarize summarizes text with the shared English Summarizer.
func Summarize(text string, maxSentences int) string {
	return Default().Summarize(text, maxSentences)
}

// IsStopword reports whether w (already lowercased) is ignored for scoring.
func (s *Summarizer) IsStopword(w string) bool {
	_, ok := s.stopwords[w]
	return ok
}

// BuildFrequencyTable counts every alphabetic, non-stopword word of text.
func (s *Summarizer) BuildFrequencyTable(text string) FrequencyTable {
	table := make(FrequencyTable)
	for _, w := range Words(strings.ToLower(text)) {
		if !isAlpha(w) || s.IsStopword(w) {
			continue
		}
		table[w]++
	}
	return table
}

// Score returns the distinct sentences of text in reading order, each scored
// by the summed table counts of its words. A repeated sentence keeps the
// position of its first occurrence.
func (s *Summarizer) Score(text string) []ScoredSentence {
	table := s.BuildFrequencyTable(text)

	seen := make(map[string]struct{})
	var scored []ScoredSentence
	for _, sent := range Sentences(text) {
		if _, dup := seen[sent]; dup {
			continue
		}
		seen[sent] = struct{}{}

		score := 0
		for _, w := range Words(strings.ToLower(sent)) {
			score += table[w]
		}
		scored = append(scored, ScoredSentence{Text: sent, Score: score, Index: len(scored)})
	}
	return scored
}

// Summarize returns up to maxSentences sentences of text, highest score first,
// joined by a single space. Equal scores keep reading order. The result is in
// score order, not reading order.
func (s *Summarizer) Summarize(text string, maxSentences int) string {
	if maxSentences <= 0 || strings.TrimSpace(text) == "" {
		return ""
	}

	ranked := s.Score(text)
	if len(ranked) == 0 {
		return ""
	}
	slices.SortStableFunc(ranked, func(a, b ScoredSentence) int {
		return b.Score - a.Score
	})
	if len(ranked) > maxSentences {
		ranked = ranked[:maxSentences]
	}

	parts := make([]string, len(ranked))
	for i, sent := range ranked {
		parts[i] = sent.Text
	}
	return strings.Join(parts, " ")
}

var englishTokenizer = sync.OnceValues(func() (*sentences.DefaultSentenceTokenizer, error) {
	return english.NewSentenceTokenizer(nil)
})

// Sentences splits text with the Punkt English model, so abbreviations such
// as "Mr." or "Dr." do not end a sentence. Each sentence is trimmed.
func Sentences(text string) []string {
	tokenizer, err := englishTokenizer()
	if err != nil {
		return unicodeSentences(text)
	}

	var out []string
	for _, sent := range tokenizer.Tokenize(text) {
		if trimmed := strings.TrimSpace(sent.Text); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// unicodeSentences splits on UAX #29 sentence boundaries. It only runs when
// the Punkt model fails to load.
func unicodeSentences(text string) []string {
	var out []string
	iter := uaxsentences.FromString(text)
	for iter.Next() {
		if sent := strings.TrimSpace(iter.Value()); sent != "" {
			out = append(out, sent)
		}
	}
	return out
}

// Words splits text on Unicode word boundaries, dropping whitespace segments.
// Punctuation comes back as its own token, except that a hyphen directly
// between two words joins them ("now-classic" is one token).
func Words(text string) []string {
	var segments []string
	iter := words.FromString(text)
	for iter.Next() {
		segments = append(segments, iter.Value())
	}

	var out []string
	for i := 0; i < len(segments); i++ {
		tok := segments[i]
		if tok == "-" && i > 0 && i+1 < len(segments) && len(out) > 0 &&
			startsWord(segments[i-1]) && startsWord(segments[i+1]) {
			out[len(out)-1] += tok + segments[i+1]
			i++
			continue
		}
		if strings.TrimSpace(tok) != "" {
			out = append(out, tok)
		}
	}
	return out
}

func startsWord(segment string) bool {
	for _, r := range segment {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}
	return false
}

func isAlpha(w string) bool {
	if w == "" {
		return false
	}
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
