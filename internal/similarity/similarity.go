// Package similarity scores how close two corpus problems are and, for
// a close enough match, explains how the target diverges from it.
package similarity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"

	"finsight/internal/config"
	"finsight/internal/kb"
	"finsight/internal/logging"
)

// Weights are the composite-score coefficients. They must sum to 1.
type Weights struct {
	Archetype float64
	Deviation float64
	Keyword   float64
}

// DefaultWeights: archetype agreement dominates, deviation overlap
// second, raw keyword overlap last.
var DefaultWeights = Weights{Archetype: 0.40, Deviation: 0.35, Keyword: 0.25}

// Breakdown exposes the three component similarities before weighting.
type Breakdown struct {
	ArchetypeSim float64 `json:"archetypeSim"`
	DeviationSim float64 `json:"deviationSim"`
	KeywordSim   float64 `json:"keywordSim"`
}

// Score is the weighted composite with its breakdown.
type Score struct {
	Total     float64   `json:"total"`
	Breakdown Breakdown `json:"breakdown"`
}

// Guidance types, one per divergence kind.
const (
	GuidanceAdditionalComplexity = "additional_complexity"
	GuidanceSimplification       = "simplification"
	GuidanceConceptualExtension  = "conceptual_extension"
)

// Guidance is one adaptation-guidance entry explaining how to adapt the
// comp's approach to the target problem.
type Guidance struct {
	Type              string      `json:"type"`
	Title             string      `json:"title"`
	Description       string      `json:"description"`
	Steps             []string    `json:"steps,omitempty"`
	TimeImpactMinutes int         `json:"timeImpactMinutes"`
	Severity          kb.Severity `json:"severity"`
}

// Divergence describes how the target differs from its closest comp.
type Divergence struct {
	AdditionalDeviations []string   `json:"additionalDeviations"`
	MissingDeviations    []string   `json:"missingDeviations"`
	AdditionalConcepts   []string   `json:"additionalConcepts"`
	Guidance             []Guidance `json:"adaptationGuidance"`
}

// Result is the closest-comp lookup outcome. A best score at or below
// the threshold is a normal outcome, not an error: HasComp is false and
// only the score is reported for transparency.
type Result struct {
	HasComp         bool        `json:"hasComp"`
	ClosestID       string      `json:"closestId,omitempty"`
	SimilarityScore float64     `json:"similarityScore"`
	Breakdown       Breakdown   `json:"breakdown"`
	Divergence      *Divergence `json:"divergenceAnalysis,omitempty"`
}

// Distribution summarizes the similarity scores of a target against the
// whole corpus. Used by diagnostics to judge how isolated a problem is.
type Distribution struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stdDev"`
	Max    float64 `json:"max"`
}

// compApproaches maps archetype codes to a short canned description of
// the standard method. Unknown codes get a generic fallback.
var compApproaches = map[string]string{
	"A1": "Discount the promised cash flows at the required yield and compare with the quoted price.",
	"A2": "Weight each capital component's after-tax cost by its market-value proportion.",
	"A3": "Project free cash flows, discount at the appropriate rate, and add the terminal value.",
	"A4": "Convert default assumptions into expected cash flows before discounting.",
}

// Engine computes similarity over a fixed knowledge base corpus.
type Engine struct {
	kb        *kb.KnowledgeBase
	weights   Weights
	threshold float64
	logger    *logging.Logger
}

// NewEngine builds a similarity engine using the configured threshold.
func NewEngine(k *kb.KnowledgeBase, cfg config.AnalysisConfig, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{
		kb:        k,
		weights:   DefaultWeights,
		threshold: cfg.SimilarityThreshold,
		logger:    logger,
	}
}

// Compare scores two problems. Component similarities are combined with
// the engine's weights; each component is in [0, 1].
func (e *Engine) Compare(a, b *kb.Problem) Score {
	br := Breakdown{
		ArchetypeSim: archetypeSim(a.Archetype, b.Archetype),
		DeviationSim: jaccard(normalizeSet(a.Deviations), normalizeSet(b.Deviations)),
		KeywordSim:   jaccard(normalizeSet(a.Keywords), normalizeSet(b.Keywords)),
	}
	total := e.weights.Archetype*br.ArchetypeSim +
		e.weights.Deviation*br.DeviationSim +
		e.weights.Keyword*br.KeywordSim
	return Score{Total: total, Breakdown: br}
}

// FindClosest compares the target against every corpus problem except
// itself and keeps the maximum. HasComp requires the best score to be
// strictly above the threshold. Corpus order breaks exact score ties,
// so results are reproducible for a fixed registry.
func (e *Engine) FindClosest(target *kb.Problem) Result {
	var (
		best      Score
		bestMatch *kb.Problem
	)

	for i := range e.kb.Problems {
		p := &e.kb.Problems[i]
		if p.ID == target.ID {
			continue
		}
		s := e.Compare(target, p)
		if bestMatch == nil || s.Total > best.Total {
			best = s
			bestMatch = p
		}
	}

	r := Result{
		SimilarityScore: best.Total,
		Breakdown:       best.Breakdown,
	}
	if bestMatch == nil {
		return r
	}

	r.ClosestID = bestMatch.ID
	if best.Total > e.threshold {
		r.HasComp = true
		r.Divergence = e.diverge(target, bestMatch)
	}

	e.logger.Debug("Closest comp computed", map[string]interface{}{
		"target":  target.ID,
		"closest": bestMatch.ID,
		"score":   best.Total,
		"hasComp": r.HasComp,
	})

	return r
}

// diverge builds the divergence analysis and adaptation guidance for a
// confirmed comp.
func (e *Engine) diverge(target, comp *kb.Problem) *Divergence {
	d := &Divergence{
		AdditionalDeviations: setDifference(target.Deviations, comp.Deviations),
		MissingDeviations:    setDifference(comp.Deviations, target.Deviations),
		AdditionalConcepts:   setDifference(target.Keywords, comp.Keywords),
	}

	approach := e.inferCompApproach(comp)

	for _, code := range d.AdditionalDeviations {
		g := Guidance{
			Type:     GuidanceAdditionalComplexity,
			Title:    fmt.Sprintf("Additional complexity: %s", code),
			Severity: kb.SeverityMedium,
		}
		if dev, ok := e.kb.DeviationByCode(code); ok {
			g.Title = fmt.Sprintf("Additional complexity: %s", dev.Name)
			g.Description = fmt.Sprintf("This problem adds %s on top of the comp's approach.", dev.Name)
			g.Steps = append([]string{"Start from the comp's method: " + approach}, dev.Checkpoints...)
			g.TimeImpactMinutes = dev.TimeImpactMinutes
			g.Severity = dev.Severity
		} else {
			g.Description = fmt.Sprintf("This problem carries deviation %s that the comp does not.", code)
		}
		d.Guidance = append(d.Guidance, g)
	}

	for _, code := range d.MissingDeviations {
		g := Guidance{
			Type:     GuidanceSimplification,
			Title:    fmt.Sprintf("Simplification: %s", code),
			Severity: kb.SeverityMedium,
		}
		if dev, ok := e.kb.DeviationByCode(code); ok {
			g.Title = fmt.Sprintf("Simplification: %s", dev.Name)
			g.Description = fmt.Sprintf("The comp handles %s; this problem does not, so that work can be skipped.", dev.Name)
			g.Steps = []string{
				"Start from the comp's method: " + approach,
				fmt.Sprintf("Skip the %s adjustment; it does not apply here.", dev.Name),
			}
			g.TimeImpactMinutes = dev.TimeImpactMinutes
			g.Severity = dev.Severity
		} else {
			g.Description = fmt.Sprintf("The comp's deviation %s does not apply here.", code)
			g.Steps = []string{
				"Start from the comp's method: " + approach,
				fmt.Sprintf("Skip the %s adjustment; it does not apply here.", code),
			}
		}
		d.Guidance = append(d.Guidance, g)
	}

	if len(d.AdditionalConcepts) > 0 {
		d.Guidance = append(d.Guidance, Guidance{
			Type:        GuidanceConceptualExtension,
			Title:       "New concepts beyond the comp",
			Description: fmt.Sprintf("This problem introduces concepts the comp never used: %s.", strings.Join(d.AdditionalConcepts, ", ")),
			Steps:       []string{"Start from the comp's method: " + approach, "Work out how each new concept changes the inputs before recalculating."},
			Severity:    kb.SeverityMedium,
		})
	}

	// Severity rank descending, stable on ties so generation order
	// (additional, missing, concepts) is preserved.
	sort.SliceStable(d.Guidance, func(i, j int) bool {
		return kb.CompareSeverity(d.Guidance[i].Severity, d.Guidance[j].Severity) > 0
	})

	return d
}

// inferCompApproach returns a short description of the comp's standard
// method. Never empty, never an error: unknown archetypes get a generic
// fallback.
func (e *Engine) inferCompApproach(p *kb.Problem) string {
	code := kb.NormalizeCode(p.Archetype)
	if approach, ok := compApproaches[code]; ok {
		return approach
	}
	if a, err := e.kb.ArchetypeByCode(code); err == nil {
		return fmt.Sprintf("Apply the standard %s method step by step.", a.Name)
	}
	return "Apply the comp's worked solution step by step, adjusting inputs as needed."
}

// Distribution computes summary statistics of the target's similarity
// against every other corpus problem.
func (e *Engine) Distribution(target *kb.Problem) Distribution {
	var scores []float64
	for i := range e.kb.Problems {
		p := &e.kb.Problems[i]
		if p.ID == target.ID {
			continue
		}
		scores = append(scores, e.Compare(target, p).Total)
	}

	dist := Distribution{Count: len(scores)}
	if len(scores) == 0 {
		return dist
	}
	dist.Mean, _ = stats.Mean(scores)
	dist.Median, _ = stats.Median(scores)
	dist.StdDev, _ = stats.StandardDeviation(scores)
	dist.Max, _ = stats.Max(scores)
	return dist
}

// archetypeSim scores archetype agreement: identical codes are 1, codes
// sharing the same leading alphabetic prefix (the tier letter) are 0.5,
// anything else is 0.
func archetypeSim(a, b string) float64 {
	a, b = kb.NormalizeCode(a), kb.NormalizeCode(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if alphaPrefix(a) != "" && alphaPrefix(a) == alphaPrefix(b) {
		return 0.5
	}
	return 0
}

func alphaPrefix(code string) string {
	for i, r := range code {
		if r < 'A' || r > 'Z' {
			return code[:i]
		}
	}
	return code
}

// jaccard computes intersection over union for two normalized sets. An
// empty/empty pair is 0: absence of evidence is not similarity.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if b[k] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// normalizeSet deduplicates and case-normalizes a slice into a set.
func normalizeSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			set[item] = true
		}
	}
	return set
}

// setDifference returns the elements of a absent from b, preserving a's
// order, compared case-insensitively.
func setDifference(a, b []string) []string {
	exclude := normalizeSet(b)
	seen := make(map[string]bool, len(a))
	var out []string
	for _, item := range a {
		key := strings.ToLower(strings.TrimSpace(item))
		if key == "" || exclude[key] || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}
