package kb

import "regexp"

// Severity classifies how badly a deviation derails the standard approach.
// The rank order is shared by the deviation ranker, the step mapper, and
// the adaptation-guidance sorter so the three always agree.
type Severity string

const (
	// SeverityCritical for deviations that invalidate the standard approach
	SeverityCritical Severity = "critical"
	// SeverityHigh for deviations that require a major adjustment
	SeverityHigh Severity = "high"
	// SeverityMedium for deviations that add steps but keep the approach
	SeverityMedium Severity = "medium"
	// SeverityLow for deviations that only need a sanity check
	SeverityLow Severity = "low"
)

// severityRank defines the total order used for tie-breaking.
// Higher numbers sort first.
var severityRank = map[Severity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
}

// Rank returns the numeric priority of a severity. Unknown severities
// rank below low.
func (s Severity) Rank() int {
	return severityRank[s]
}

// CompareSeverity returns a positive value when a outranks b, negative
// when b outranks a, and zero when equal.
func CompareSeverity(a, b Severity) int {
	return a.Rank() - b.Rank()
}

// Archetype is a named recurring problem pattern. Archetypes are static
// reference data and are never mutated at runtime.
type Archetype struct {
	Code                  string   `json:"code" yaml:"code"`
	Name                  string   `json:"name" yaml:"name"`
	Tier                  int      `json:"tier" yaml:"tier"`
	TimeAllocationMinutes int      `json:"timeAllocationMinutes" yaml:"timeAllocationMinutes"`
	PointValue            string   `json:"pointValue" yaml:"pointValue"`
	ExcelTabRef           string   `json:"excelTabRef,omitempty" yaml:"excelTabRef,omitempty"`
	Keywords              []string `json:"keywords" yaml:"keywords"`
}

// KeywordEntry maps a lowercase phrase to the archetypes it signals.
// Weight is monotonically non-decreasing with specificity: >=4 instant
// trigger, >=3 strong, >=2 moderate, else weak.
type KeywordEntry struct {
	Keyword    string   `json:"keyword" yaml:"keyword"`
	Weight     float64  `json:"weight" yaml:"weight"`
	Archetypes []string `json:"archetypes" yaml:"archetypes"`
}

// StrongSignal is a keyword combination that, when fully present,
// pins an archetype at an explicit confidence.
type StrongSignal struct {
	Keywords   []string `json:"keywords" yaml:"keywords"`
	Archetype  string   `json:"archetype" yaml:"archetype"`
	Confidence float64  `json:"confidence" yaml:"confidence"`
}

// Deviation is a known pitfall or variant technique detected
// independently of archetype. Static reference data.
type Deviation struct {
	Code              string   `json:"code" yaml:"code"`
	Name              string   `json:"name" yaml:"name"`
	Description       string   `json:"description" yaml:"description"`
	Category          string   `json:"category" yaml:"category"`
	Severity          Severity `json:"severity" yaml:"severity"`
	TimeImpactMinutes int      `json:"timeImpactMinutes" yaml:"timeImpactMinutes"`
	DetectionTriggers []string `json:"detectionTriggers" yaml:"detectionTriggers"`
	DetectionPatterns []string `json:"detectionPatterns" yaml:"detectionPatterns"`
	RelatedArchetypes []string `json:"relatedArchetypes" yaml:"relatedArchetypes"`
	Checkpoints       []string `json:"checkpoints" yaml:"checkpoints"`
	CommonErrors      []string `json:"commonErrors" yaml:"commonErrors"`
	FormulaHints      []string `json:"formulaHints" yaml:"formulaHints"`

	// compiled holds the patterns that survived compilation at load time.
	// Invalid patterns are skipped with a warning and never re-parsed.
	compiled []*regexp.Regexp
}

// Patterns returns the precompiled detection patterns for this deviation.
func (d *Deviation) Patterns() []*regexp.Regexp {
	return d.compiled
}

// RelatedTo reports whether the deviation is related to the given
// archetype code.
func (d *Deviation) RelatedTo(archetype string) bool {
	for _, code := range d.RelatedArchetypes {
		if code == archetype {
			return true
		}
	}
	return false
}

// DeviationAlert is the single alert attached to a solution step by the
// step mapper. At most one alert per step.
type DeviationAlert struct {
	Code              string   `json:"code"`
	Warning           string   `json:"warning"`
	Checkpoints       []string `json:"checkpoints,omitempty"`
	Severity          Severity `json:"severity"`
	TimeImpactMinutes int      `json:"timeImpactMinutes"`
}

// SolutionStep is one ordered step of a problem's worked solution.
type SolutionStep struct {
	Index       int             `json:"index" yaml:"index"`
	Prompt      string          `json:"prompt" yaml:"prompt"`
	Reasoning   string          `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	Calculation string          `json:"calculation,omitempty" yaml:"calculation,omitempty"`
	SanityCheck string          `json:"sanityCheck,omitempty" yaml:"sanityCheck,omitempty"`
	Alert       *DeviationAlert `json:"alert,omitempty" yaml:"-"`
}

// Comparison is a pre-computed closest-match payload carried by some
// corpus problems. It is an output artifact, never authoritative input.
type Comparison struct {
	ClosestID       string   `json:"closestId" yaml:"closestId"`
	SimilarityScore float64  `json:"similarityScore" yaml:"similarityScore"`
	KeyDistinctions []string `json:"keyDistinctions,omitempty" yaml:"keyDistinctions,omitempty"`
}

// Problem is one previously solved problem in the corpus.
type Problem struct {
	ID         string         `json:"id" yaml:"id"`
	Archetype  string         `json:"archetype" yaml:"archetype"`
	Deviations []string       `json:"deviations" yaml:"deviations"`
	Keywords   []string       `json:"keywords" yaml:"keywords"`
	Text       string         `json:"text" yaml:"text"`
	Steps      []SolutionStep `json:"steps,omitempty" yaml:"steps,omitempty"`
	Comparison *Comparison    `json:"comparison,omitempty" yaml:"comparison,omitempty"`
}
