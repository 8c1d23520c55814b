package kb

import (
	"fmt"
	"strings"

	"finsight/internal/errors"
	"finsight/internal/logging"
)

// DefaultTriggerWeight is the weight assigned to a deviation trigger
// keyword that has no entry in the keyword map. It sits exactly at the
// default admission threshold so a single trigger is enough to admit a
// deviation into the ranking.
const DefaultTriggerWeight = 2

// IndexedKeyword is one entry of the flat signal index: a lowercase
// phrase plus everything it signals. The extractor checks this index in
// a single pass instead of consulting the keyword map and every
// deviation's trigger list separately.
type IndexedKeyword struct {
	Keyword    string
	Weight     float64
	Archetypes []string
	Deviations []string
}

// SkippedPattern records a detection pattern that failed to compile and
// was excluded from matching.
type SkippedPattern struct {
	DeviationCode string `json:"deviationCode"`
	Pattern       string `json:"pattern"`
	Reason        string `json:"reason"`
}

// LoadReport summarizes what the knowledge base was built from. A
// partial registry (missing file, skipped patterns) keeps the rest of
// the system usable; the report is how diagnostics surface it.
type LoadReport struct {
	ArchetypeCount  int              `json:"archetypeCount"`
	KeywordCount    int              `json:"keywordCount"`
	DeviationCount  int              `json:"deviationCount"`
	ProblemCount    int              `json:"problemCount"`
	SkippedPatterns []SkippedPattern `json:"skippedPatterns,omitempty"`
	MissingFiles    []string         `json:"missingFiles,omitempty"`
}

// Options tunes knowledge base construction.
type Options struct {
	// TriggerWeight overrides DefaultTriggerWeight when positive.
	TriggerWeight float64
}

// KnowledgeBase holds all static reference data: archetype definitions,
// the keyword map, the deviation registry and the problem corpus.
// Constructed once at startup and treated as immutable thereafter.
type KnowledgeBase struct {
	Archetypes    []Archetype
	Keywords      []KeywordEntry
	StrongSignals []StrongSignal
	Deviations    []Deviation
	Problems      []Problem
	Report        LoadReport

	archetypeByCode map[string]*Archetype
	deviationByCode map[string]*Deviation
	problemByID     map[string]*Problem
	signalIndex     []IndexedKeyword
}

// New builds a knowledge base from registry data, compiling all
// detection patterns once. Invalid patterns are skipped with a warning
// and recorded in the load report; they never abort construction.
func New(archetypes []Archetype, keywords []KeywordEntry, strong []StrongSignal,
	deviations []Deviation, problems []Problem, opts Options, logger *logging.Logger) *KnowledgeBase {

	if logger == nil {
		logger = logging.Discard()
	}
	triggerWeight := opts.TriggerWeight
	if triggerWeight <= 0 {
		triggerWeight = DefaultTriggerWeight
	}

	k := &KnowledgeBase{
		Archetypes:    archetypes,
		Keywords:      keywords,
		StrongSignals: strong,
		Deviations:    deviations,
		Problems:      problems,
	}

	k.archetypeByCode = make(map[string]*Archetype, len(archetypes))
	for i := range k.Archetypes {
		k.archetypeByCode[k.Archetypes[i].Code] = &k.Archetypes[i]
	}

	k.deviationByCode = make(map[string]*Deviation, len(deviations))
	for i := range k.Deviations {
		d := &k.Deviations[i]
		k.deviationByCode[d.Code] = d

		for _, raw := range d.DetectionPatterns {
			re, err := CompilePattern(raw)
			if err != nil {
				logger.Warn("Skipping invalid detection pattern", map[string]interface{}{
					"deviation": d.Code,
					"pattern":   raw,
					"error":     err.Error(),
				})
				k.Report.SkippedPatterns = append(k.Report.SkippedPatterns, SkippedPattern{
					DeviationCode: d.Code,
					Pattern:       raw,
					Reason:        err.Error(),
				})
				continue
			}
			d.compiled = append(d.compiled, re)
		}
	}

	k.problemByID = make(map[string]*Problem, len(problems))
	for i := range k.Problems {
		k.problemByID[k.Problems[i].ID] = &k.Problems[i]
	}

	k.buildSignalIndex(triggerWeight)

	k.Report.ArchetypeCount = len(archetypes)
	k.Report.KeywordCount = len(keywords)
	k.Report.DeviationCount = len(deviations)
	k.Report.ProblemCount = len(problems)

	logger.Debug("Knowledge base constructed", map[string]interface{}{
		"archetypes":      len(archetypes),
		"keywords":        len(keywords),
		"deviations":      len(deviations),
		"problems":        len(problems),
		"skippedPatterns": len(k.Report.SkippedPatterns),
	})

	return k
}

// buildSignalIndex merges the keyword map and every deviation's trigger
// list into one flat, ordered index. Keyword-map entries come first in
// registry order, then triggers for keywords not already indexed, in
// deviation registry order. The order is load-bearing: it is the
// first-encountered-in-registry tie-break for equal-score candidates.
func (k *KnowledgeBase) buildSignalIndex(triggerWeight float64) {
	position := make(map[string]int)

	for _, entry := range k.Keywords {
		kw := strings.ToLower(entry.Keyword)
		if idx, ok := position[kw]; ok {
			k.signalIndex[idx].Archetypes = append(k.signalIndex[idx].Archetypes, entry.Archetypes...)
			continue
		}
		position[kw] = len(k.signalIndex)
		k.signalIndex = append(k.signalIndex, IndexedKeyword{
			Keyword:    kw,
			Weight:     entry.Weight,
			Archetypes: append([]string(nil), entry.Archetypes...),
		})
	}

	for i := range k.Deviations {
		d := &k.Deviations[i]
		for _, trigger := range d.DetectionTriggers {
			kw := strings.ToLower(trigger)
			if idx, ok := position[kw]; ok {
				k.signalIndex[idx].Deviations = append(k.signalIndex[idx].Deviations, d.Code)
				continue
			}
			position[kw] = len(k.signalIndex)
			k.signalIndex = append(k.signalIndex, IndexedKeyword{
				Keyword:    kw,
				Weight:     triggerWeight,
				Deviations: []string{d.Code},
			})
		}
	}
}

// SignalIndex returns the flat keyword index in deterministic registry
// order. Callers must not mutate it.
func (k *KnowledgeBase) SignalIndex() []IndexedKeyword {
	return k.signalIndex
}

// ArchetypeByCode looks up an archetype by its explicit code. This is
// the one lookup where a caller-visible error is appropriate.
func (k *KnowledgeBase) ArchetypeByCode(code string) (*Archetype, error) {
	if a, ok := k.archetypeByCode[code]; ok {
		return a, nil
	}
	return nil, errors.New(errors.ArchetypeNotFound,
		fmt.Sprintf("no archetype with code %q", code), nil)
}

// DeviationByCode looks up a deviation by code.
func (k *KnowledgeBase) DeviationByCode(code string) (*Deviation, bool) {
	d, ok := k.deviationByCode[code]
	return d, ok
}

// ProblemByID looks up a corpus problem by id.
func (k *KnowledgeBase) ProblemByID(id string) (*Problem, error) {
	if p, ok := k.problemByID[id]; ok {
		return p, nil
	}
	return nil, errors.New(errors.ProblemNotFound,
		fmt.Sprintf("no problem with id %q", id), nil)
}
