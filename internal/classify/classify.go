// Package classify ranks archetype candidates from extracted keyword
// evidence. Confidence is relative to the best candidate in this text,
// not an absolute probability: the top candidate is always 100 unless a
// strong signal pins something else higher.
package classify

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"finsight/internal/config"
	"finsight/internal/extract"
	"finsight/internal/kb"
	"finsight/internal/logging"
)

// UnknownCode is the primary archetype reported when the text carries
// no recognizable signal.
const UnknownCode = "UNKNOWN"

// Candidate is one scored archetype.
type Candidate struct {
	Code            string   `json:"code"`
	Name            string   `json:"name"`
	Score           float64  `json:"score"`
	Confidence      float64  `json:"confidence"`
	MatchedKeywords []string `json:"matchedKeywords,omitempty"`
}

// Ranking is the full classification result. All candidates are kept so
// callers can inspect near misses; Primary and Secondary are the ones
// the report surfaces.
type Ranking struct {
	Primary           Candidate  `json:"primary"`
	Secondary         *Candidate `json:"secondary,omitempty"`
	IsHybrid          bool       `json:"isHybrid"`
	HybridCombination string     `json:"hybridCombination,omitempty"`
	SolvingSequence   string     `json:"solvingSequence,omitempty"`
	Message           string     `json:"message"`
	All               []Candidate `json:"all,omitempty"`
}

// solvingSequences holds curated solve orders for known hybrid pairs,
// keyed by the two codes in ascending order joined with "+". Pairs not
// listed fall back to a generated sequence.
var solvingSequences = map[string]string{
	"A1+A4": "Build the survival-adjusted cash flows first, then discount them as a standard bond.",
	"A1+A2": "Value the debt side first, then feed its cost into the capital structure.",
	"A2+A4": "Establish the credit spread first, then rebuild the weighted cost of capital with it.",
}

// Scorer classifies problem text into archetypes.
type Scorer struct {
	kb     *kb.KnowledgeBase
	cfg    config.ScoringConfig
	logger *logging.Logger
}

// NewScorer builds an archetype scorer over the given knowledge base.
func NewScorer(k *kb.KnowledgeBase, cfg config.ScoringConfig, logger *logging.Logger) *Scorer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scorer{kb: k, cfg: cfg, logger: logger}
}

// Score ranks every archetype signaled by the evidence. Scores are the
// sum of matched keyword weights per archetype; confidence normalizes
// against the top score. Two candidates above the hybrid floor mark the
// text as a hybrid problem.
func (s *Scorer) Score(ev extract.EvidenceSet) Ranking {
	scores := make(map[string]float64)
	matched := make(map[string][]string)

	for _, hit := range ev.KeywordHits {
		for _, code := range hit.Archetypes {
			scores[code] += hit.Weight
			matched[code] = append(matched[code], hit.Keyword)
		}
	}

	if len(scores) == 0 {
		return Ranking{
			Primary: Candidate{Code: UnknownCode, Name: "Unknown", Confidence: 0},
			Message: "No recognizable archetype signals in the text.",
		}
	}

	var maxScore float64
	for _, sc := range scores {
		if sc > maxScore {
			maxScore = sc
		}
	}

	candidates := make([]Candidate, 0, len(scores))
	for code, sc := range scores {
		c := Candidate{
			Code:            code,
			Score:           sc,
			Confidence:      round1(100 * sc / maxScore),
			MatchedKeywords: matched[code],
		}
		if a, err := s.kb.ArchetypeByCode(code); err == nil {
			c.Name = a.Name
		}
		candidates = append(candidates, c)
	}

	s.applyStrongSignals(ev, candidates)

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Code < candidates[j].Code
	})

	r := Ranking{
		Primary: candidates[0],
		All:     candidates,
	}
	if len(candidates) > 1 {
		r.Secondary = &candidates[1]
	}

	// Every candidate above the floor qualifies for the hybrid label,
	// including ones lifted there by a strong signal. The combination
	// joins all qualifying codes in rank order; the solving sequence is
	// keyed by the top two.
	var qualifying []Candidate
	for _, c := range candidates {
		if c.Confidence > s.cfg.HybridConfidenceFloor {
			qualifying = append(qualifying, c)
		}
	}

	if len(qualifying) >= 2 {
		codes := make([]string, len(qualifying))
		names := make([]string, len(qualifying))
		for i, c := range qualifying {
			codes[i] = c.Code
			names[i] = displayName(c)
		}
		r.IsHybrid = true
		r.HybridCombination = strings.Join(codes, "+")
		r.SolvingSequence = solvingSequence(qualifying[0], qualifying[1])
		r.Message = fmt.Sprintf("Hybrid problem combining %s.", strings.Join(names, " and "))
	} else {
		r.Message = fmt.Sprintf("Classified as %s with %.0f%% confidence.",
			displayName(r.Primary), r.Primary.Confidence)
	}

	s.logger.Debug("Archetype ranking computed", map[string]interface{}{
		"primary":    r.Primary.Code,
		"confidence": r.Primary.Confidence,
		"hybrid":     r.IsHybrid,
		"candidates": len(candidates),
	})

	return r
}

// applyStrongSignals raises a candidate's confidence to the pinned
// value when every keyword of a strong-signal combination was matched.
// Strong signals only ever raise, never lower.
func (s *Scorer) applyStrongSignals(ev extract.EvidenceSet, candidates []Candidate) {
	if len(s.kb.StrongSignals) == 0 {
		return
	}

	present := make(map[string]bool, len(ev.KeywordHits))
	for _, hit := range ev.KeywordHits {
		present[hit.Keyword] = true
	}

	for _, sig := range s.kb.StrongSignals {
		complete := len(sig.Keywords) > 0
		for _, kw := range sig.Keywords {
			if !present[strings.ToLower(kw)] {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		for i := range candidates {
			if candidates[i].Code == sig.Archetype && sig.Confidence > candidates[i].Confidence {
				candidates[i].Confidence = sig.Confidence
			}
		}
	}
}

// solvingSequence returns the curated solve order for a hybrid pair, or
// a generated one putting the stronger candidate first.
func solvingSequence(primary, secondary Candidate) string {
	key := primary.Code + "+" + secondary.Code
	if secondary.Code < primary.Code {
		key = secondary.Code + "+" + primary.Code
	}
	if seq, ok := solvingSequences[key]; ok {
		return seq
	}
	return fmt.Sprintf("Solve %s first, then %s.", displayName(primary), displayName(secondary))
}

func displayName(c Candidate) string {
	if c.Name != "" {
		return c.Name
	}
	return c.Code
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
