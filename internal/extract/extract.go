// Package extract scans raw problem text for keyword and pattern
// signals. Keyword matching is deliberately case-insensitive substring
// containment, not word-boundary matching: short keywords can match
// inside unrelated longer words, and that behavior is load-bearing for
// the confidence scores of the existing corpus.
package extract

import (
	"strings"

	"finsight/internal/kb"
)

// KeywordHit records one matched keyword with everything it signals and
// every character offset where it occurs. Offsets support highlighting;
// scoring only uses presence and weight.
type KeywordHit struct {
	Keyword    string   `json:"keyword"`
	Weight     float64  `json:"weight"`
	Archetypes []string `json:"archetypes,omitempty"`
	Deviations []string `json:"deviations,omitempty"`
	Offsets    []int    `json:"offsets,omitempty"`
}

// PatternHit records one detection pattern that matched. One hit per
// pattern, not per occurrence.
type PatternHit struct {
	DeviationCode string `json:"deviationCode"`
	Pattern       string `json:"pattern"`
}

// EvidenceSet is everything the extractor found in one pass over the
// text. Hit order follows registry order and is deterministic.
type EvidenceSet struct {
	KeywordHits []KeywordHit `json:"keywordHits"`
	PatternHits []PatternHit `json:"patternHits"`
}

// Empty reports whether the extractor found nothing at all.
func (e EvidenceSet) Empty() bool {
	return len(e.KeywordHits) == 0 && len(e.PatternHits) == 0
}

// MatchedKeywords returns the matched keywords in hit order.
func (e EvidenceSet) MatchedKeywords() []string {
	out := make([]string, 0, len(e.KeywordHits))
	for _, hit := range e.KeywordHits {
		out = append(out, hit.Keyword)
	}
	return out
}

// Signals runs the full extraction: every indexed keyword against the
// lowercased text, every compiled deviation pattern against the
// original-case text. Empty input yields an empty evidence set, not an
// error.
func Signals(text string, k *kb.KnowledgeBase) EvidenceSet {
	ev := EvidenceSet{
		KeywordHits: Keywords(text, k.SignalIndex()),
	}

	devs := make([]*kb.Deviation, 0, len(k.Deviations))
	for i := range k.Deviations {
		devs = append(devs, &k.Deviations[i])
	}
	ev.PatternHits = Patterns(text, devs)

	return ev
}

// Keywords scans the flat signal index against the text in one pass.
// The index is consulted in its deterministic registry order, so the
// resulting hit order is stable across runs and platforms.
func Keywords(text string, index []kb.IndexedKeyword) []KeywordHit {
	if text == "" || len(index) == 0 {
		return nil
	}

	lowered := strings.ToLower(text)

	var hits []KeywordHit
	for _, entry := range index {
		offsets := findOffsets(lowered, entry.Keyword)
		if offsets == nil {
			continue
		}
		hits = append(hits, KeywordHit{
			Keyword:    entry.Keyword,
			Weight:     entry.Weight,
			Archetypes: entry.Archetypes,
			Deviations: entry.Deviations,
			Offsets:    offsets,
		})
	}
	return hits
}

// Patterns evaluates each deviation's precompiled patterns against the
// original-case text; some patterns rely on case or punctuation, so the
// text is never lowercased here. Each matching pattern contributes one
// hit regardless of how many times it occurs.
func Patterns(text string, devs []*kb.Deviation) []PatternHit {
	if text == "" {
		return nil
	}

	var hits []PatternHit
	for _, d := range devs {
		for _, re := range d.Patterns() {
			if re.MatchString(text) {
				hits = append(hits, PatternHit{
					DeviationCode: d.Code,
					Pattern:       re.String(),
				})
			}
		}
	}
	return hits
}

// findOffsets returns every occurrence of needle in haystack, or nil
// when absent. The scan resumes one byte past each match start, so
// overlapping occurrences all count: "aaa" contains "aa" twice.
func findOffsets(haystack, needle string) []int {
	if needle == "" {
		return nil
	}

	var offsets []int
	from := 0
	for {
		idx := strings.Index(haystack[from:], needle)
		if idx < 0 {
			break
		}
		offsets = append(offsets, from+idx)
		from += idx + 1
	}
	return offsets
}
