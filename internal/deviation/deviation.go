// Package deviation implements the four-phase deviation detector:
// keyword scoring, pattern bonuses, archetype-context correlation, and
// ranking into confidence buckets. It also maps a ranked deviation list
// onto solution steps, attaching at most one alert per step.
package deviation

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"finsight/internal/cache"
	"finsight/internal/config"
	"finsight/internal/extract"
	"finsight/internal/kb"
	"finsight/internal/logging"
)

// Bucket is the coarse confidence classification of a detection.
type Bucket string

const (
	BucketHigh   Bucket = "HIGH"
	BucketMedium Bucket = "MEDIUM"
	BucketLow    Bucket = "LOW"
	// BucketNone is only used for metadata when nothing was detected.
	BucketNone Bucket = "NONE"
)

// bucketRank orders buckets for the step mapper's conflict resolution.
var bucketRank = map[Bucket]int{
	BucketHigh:   3,
	BucketMedium: 2,
	BucketLow:    1,
}

// Detection is one admitted deviation with its score and evidence.
type Detection struct {
	Code              string      `json:"code"`
	Name              string      `json:"name"`
	Category          string      `json:"category,omitempty"`
	Severity          kb.Severity `json:"severity"`
	Score             float64     `json:"score"`
	Bucket            Bucket      `json:"confidence"`
	MatchedKeywords   []string    `json:"matchedKeywords,omitempty"`
	MatchedPatterns   []string    `json:"matchedPatterns,omitempty"`
	Correlated        bool        `json:"correlated,omitempty"`
	TimeImpactMinutes int         `json:"timeImpactMinutes"`
	Checkpoints       []string    `json:"checkpoints,omitempty"`
}

// Metadata aggregates a detection run.
type Metadata struct {
	Total             int       `json:"total"`
	OverallConfidence Bucket    `json:"overallConfidence"`
	TopScore          float64   `json:"topScore"`
	GeneratedAt       time.Time `json:"generatedAt"`
}

// Ranking is the full result of one detection run. Ephemeral; cached by
// derived key but never persisted.
type Ranking struct {
	Detections []Detection `json:"deviations"`
	Metadata   Metadata    `json:"metadata"`
}

// TotalTimeImpact sums the time impact of all detections, in minutes.
func (r Ranking) TotalTimeImpact() int {
	total := 0
	for _, d := range r.Detections {
		total += d.TimeImpactMinutes
	}
	return total
}

// Scorer runs deviation detection against a fixed knowledge base.
type Scorer struct {
	kb     *kb.KnowledgeBase
	cfg    config.ScoringConfig
	cache  *cache.FIFO[Ranking]
	logger *logging.Logger
}

// NewScorer builds a deviation scorer. The cache is disabled when
// cacheCfg.Enable is false.
func NewScorer(k *kb.KnowledgeBase, cfg config.ScoringConfig, cacheCfg config.CacheConfig, logger *logging.Logger) *Scorer {
	if logger == nil {
		logger = logging.Discard()
	}
	capacity := 0
	if cacheCfg.Enable {
		capacity = cacheCfg.MaxEntries
	}
	return &Scorer{
		kb:     k,
		cfg:    cfg,
		cache:  cache.NewFIFO[Ranking](capacity),
		logger: logger,
	}
}

// cacheKeyPrefixLen bounds how much text feeds the cache key. Long
// problems rarely differ only after this point, and the ranking for a
// collision is merely recomputed evidence, never wrong data.
const cacheKeyPrefixLen = 200

func cacheKey(text, archetype string) string {
	prefix := text
	if len(prefix) > cacheKeyPrefixLen {
		prefix = prefix[:cacheKeyPrefixLen]
	}
	sum := sha256.Sum256([]byte(prefix + "|" + archetype))
	return hex.EncodeToString(sum[:])
}

// Detect runs all four phases against the text. The archetype argument
// is the optional context for the correlation phase; pass "" for none.
// Empty text yields an empty ranking with overall confidence NONE.
func (s *Scorer) Detect(text, archetype string) Ranking {
	key := cacheKey(text, archetype)
	if r, ok := s.cache.Get(key); ok {
		return r
	}

	detections := s.run(text, archetype)

	overall := BucketNone
	topScore := 0.0
	if len(detections) > 0 {
		overall = detections[0].Bucket
		topScore = detections[0].Score
	}

	r := Ranking{
		Detections: detections,
		Metadata: Metadata{
			Total:             len(detections),
			OverallConfidence: overall,
			TopScore:          topScore,
			GeneratedAt:       time.Now().UTC(),
		},
	}

	s.logger.Debug("Deviation detection complete", map[string]interface{}{
		"detections": len(detections),
		"overall":    string(overall),
		"archetype":  archetype,
	})

	s.cache.Put(key, r)
	return r
}

// run executes the keyword, pattern, correlation and rank phases.
// Correlation is skipped when archetype is empty; the step mapper uses
// that to re-score step text without the context boost.
func (s *Scorer) run(text, archetype string) []Detection {
	scores := make(map[string]float64)
	matchedKeywords := make(map[string][]string)

	// Keyword phase. Every trigger contributes its weight to each
	// deviation it signals.
	for _, hit := range extract.Keywords(text, s.kb.SignalIndex()) {
		for _, code := range hit.Deviations {
			scores[code] += hit.Weight
			matchedKeywords[code] = append(matchedKeywords[code], hit.Keyword)
		}
	}

	// Pattern phase. Patterns are only evaluated for deviations already
	// touched by a keyword; the admission threshold cannot be met by a
	// pattern bonus alone, so untouched deviations can never rank.
	touched := make([]*kb.Deviation, 0, len(scores))
	for i := range s.kb.Deviations {
		d := &s.kb.Deviations[i]
		if _, ok := scores[d.Code]; ok {
			touched = append(touched, d)
		}
	}
	matchedPatterns := make(map[string][]string)
	for _, hit := range extract.Patterns(text, touched) {
		scores[hit.DeviationCode] += s.cfg.PatternBonus
		matchedPatterns[hit.DeviationCode] = append(matchedPatterns[hit.DeviationCode], hit.Pattern)
	}

	// Correlation phase. One boost per related deviation, no stacking.
	correlated := make(map[string]bool)
	if archetype != "" {
		for code := range scores {
			if d, ok := s.kb.DeviationByCode(code); ok && d.RelatedTo(archetype) {
				scores[code] += s.cfg.CorrelationBoost
				correlated[code] = true
			}
		}
	}

	// Rank phase. Admission threshold, then score descending with
	// severity rank and code as spelled-out tie-breaks.
	var detections []Detection
	for code, score := range scores {
		if score < s.cfg.AdmissionThreshold {
			continue
		}
		d, ok := s.kb.DeviationByCode(code)
		if !ok {
			continue
		}
		detections = append(detections, Detection{
			Code:              d.Code,
			Name:              d.Name,
			Category:          d.Category,
			Severity:          d.Severity,
			Score:             score,
			Bucket:            s.bucketFor(score),
			MatchedKeywords:   matchedKeywords[code],
			MatchedPatterns:   matchedPatterns[code],
			Correlated:        correlated[code],
			TimeImpactMinutes: d.TimeImpactMinutes,
			Checkpoints:       d.Checkpoints,
		})
	}

	sort.SliceStable(detections, func(i, j int) bool {
		if detections[i].Score != detections[j].Score {
			return detections[i].Score > detections[j].Score
		}
		if c := kb.CompareSeverity(detections[i].Severity, detections[j].Severity); c != 0 {
			return c > 0
		}
		return detections[i].Code < detections[j].Code
	})

	return detections
}

func (s *Scorer) bucketFor(score float64) Bucket {
	switch {
	case score >= s.cfg.HighBucketCut:
		return BucketHigh
	case score >= s.cfg.MediumBucketCut:
		return BucketMedium
	default:
		return BucketLow
	}
}

// alertSeverity derives the severity of a step alert from the winning
// detection's bucket and score.
func (s *Scorer) alertSeverity(d Detection) kb.Severity {
	switch {
	case d.Bucket == BucketHigh && d.Score >= s.cfg.CriticalScoreCut:
		return kb.SeverityCritical
	case d.Bucket == BucketHigh:
		return kb.SeverityHigh
	case d.Bucket == BucketMedium:
		return kb.SeverityMedium
	default:
		return kb.SeverityLow
	}
}

// MapToSteps re-runs detection against each step's own text and
// attaches the single highest-priority matching deviation as the step's
// alert. Priority is confidence bucket first, raw score second, code as
// the final tie-break. Steps with no match are returned unchanged, and
// a step never carries more than one alert.
func (s *Scorer) MapToSteps(steps []kb.SolutionStep) []kb.SolutionStep {
	out := make([]kb.SolutionStep, len(steps))
	copy(out, steps)

	for i := range out {
		text := stepText(out[i])
		if text == "" {
			continue
		}

		// No archetype context for per-step scoring; correlation applies
		// only to whole-problem detection.
		detections := s.run(text, "")
		if len(detections) == 0 {
			continue
		}

		best := detections[0]
		for _, d := range detections[1:] {
			if stepPriorityLess(best, d) {
				best = d
			}
		}

		out[i].Alert = &kb.DeviationAlert{
			Code:              best.Code,
			Warning:           best.Name,
			Checkpoints:       best.Checkpoints,
			Severity:          s.alertSeverity(best),
			TimeImpactMinutes: best.TimeImpactMinutes,
		}
	}

	return out
}

// stepPriorityLess reports whether b outranks a for alert selection.
func stepPriorityLess(a, b Detection) bool {
	if bucketRank[a.Bucket] != bucketRank[b.Bucket] {
		return bucketRank[a.Bucket] < bucketRank[b.Bucket]
	}
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Code > b.Code
}

func stepText(step kb.SolutionStep) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{step.Prompt, step.Reasoning, step.Calculation, step.SanityCheck} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// CacheStats exposes the detection cache's hit and miss counters.
func (s *Scorer) CacheStats() (hits, misses uint64) {
	return s.cache.Stats()
}
