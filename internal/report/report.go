// Package report orchestrates one full analysis: extraction, archetype
// classification, deviation detection, similar-example lookup and the
// suggested workflow, assembled into a single report for the
// presentation layer.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"finsight/internal/classify"
	"finsight/internal/config"
	"finsight/internal/deviation"
	"finsight/internal/errors"
	"finsight/internal/extract"
	"finsight/internal/kb"
	"finsight/internal/logging"
	"finsight/internal/similarity"
)

// Workflow phase names, fixed across all reports.
const (
	PhaseIdentify = "identify"
	PhaseExtract  = "extract"
	PhaseMap      = "map"
	PhaseExecute  = "execute"
	PhaseCheck    = "check"
)

// WorkflowPhase is one of the five fixed solving phases with its share
// of the archetype's time allocation.
type WorkflowPhase struct {
	Name              string   `json:"name"`
	TimeBudgetMinutes int      `json:"timeBudgetMinutes"`
	Checklist         []string `json:"checklist"`
}

// CalculationStep is one canned formula hint for the classified
// archetype.
type CalculationStep struct {
	Label   string `json:"label"`
	Formula string `json:"formula"`
}

// Example is one similar corpus problem surfaced in the report.
type Example struct {
	ProblemID string               `json:"problemId"`
	Archetype string               `json:"archetype"`
	Score     float64              `json:"score"`
	Breakdown similarity.Breakdown `json:"breakdown"`
}

// Report is the complete analysis output.
type Report struct {
	ID                     string            `json:"id"`
	GeneratedAt            time.Time         `json:"generatedAt"`
	Archetypes             classify.Ranking  `json:"archetypes"`
	Deviations             deviation.Ranking `json:"deviations"`
	TotalTimeImpactMinutes int               `json:"totalTimeImpactMinutes"`
	SimilarExamples        []Example         `json:"similarExamples,omitempty"`
	SuggestedWorkflow      []WorkflowPhase   `json:"suggestedWorkflow"`
	Calculations           []CalculationStep `json:"calculations,omitempty"`
}

// calculations maps archetype codes to canned formula steps. Unknown
// codes yield no calculations section rather than a generic filler.
var calculations = map[string][]CalculationStep{
	"A1": {
		{Label: "Price", Formula: "P = Σ CF_t / (1+y)^t"},
		{Label: "Current yield", Formula: "CY = annual coupon / price"},
	},
	"A2": {
		{Label: "WACC", Formula: "WACC = (E/V)·Re + (D/V)·Rd·(1−Tc)"},
		{Label: "Levered beta", Formula: "βL = βU·(1 + (1−Tc)·D/E)"},
	},
	"A3": {
		{Label: "Terminal value", Formula: "TV = FCF_{n+1} / (r − g)"},
	},
	"A4": {
		{Label: "Expected loss", Formula: "EL = PD × LGD × EAD"},
		{Label: "Survival", Formula: "S(t) = (1 − h)^t for flat hazard h"},
	},
}

// phaseShares splits an archetype's time allocation across the five
// phases. Execute takes half; the rest covers setup and verification.
var phaseShares = []struct {
	name  string
	share float64
}{
	{PhaseIdentify, 0.10},
	{PhaseExtract, 0.15},
	{PhaseMap, 0.15},
	{PhaseExecute, 0.50},
	{PhaseCheck, 0.10},
}

// Builder wires the scoring components together and memoizes whole
// reports. Unlike the detection cache, the report cache is a true LRU
// with a TTL: reports embed timestamps and ids, so staleness matters
// and recency is a useful signal here.
type Builder struct {
	kb         *kb.KnowledgeBase
	cfg        *config.Config
	classifier *classify.Scorer
	detector   *deviation.Scorer
	engine     *similarity.Engine
	cache      *expirable.LRU[string, *Report]
	logger     *logging.Logger
}

// NewBuilder constructs the full analysis pipeline over one knowledge
// base.
func NewBuilder(k *kb.KnowledgeBase, cfg *config.Config, logger *logging.Logger) *Builder {
	if logger == nil {
		logger = logging.Discard()
	}

	b := &Builder{
		kb:         k,
		cfg:        cfg,
		classifier: classify.NewScorer(k, cfg.Scoring, logger),
		detector:   deviation.NewScorer(k, cfg.Scoring, cfg.Cache, logger),
		engine:     similarity.NewEngine(k, cfg.Analysis, logger),
		logger:     logger,
	}
	if cfg.Cache.Enable {
		ttl := time.Duration(cfg.Cache.TtlMs) * time.Millisecond
		b.cache = expirable.NewLRU[string, *Report](cfg.Cache.MaxEntries, nil, ttl)
	}
	return b
}

// Analyze produces the full report for one problem text. Empty text is
// not an error: it yields an Unknown classification and an empty
// deviation ranking, clearly flagged in the result.
func (b *Builder) Analyze(text string) *Report {
	key := reportKey(text)
	if b.cache != nil {
		if r, ok := b.cache.Get(key); ok {
			return r
		}
	}

	started := time.Now()
	ev := extract.Signals(text, b.kb)
	archetypes := b.classifier.Score(ev)

	var deviations deviation.Ranking
	if b.cfg.Analysis.IncludeDeviations {
		context := archetypes.Primary.Code
		if context == classify.UnknownCode {
			context = ""
		}
		deviations = b.detector.Detect(text, context)
	} else {
		deviations.Metadata.OverallConfidence = deviation.BucketNone
		deviations.Metadata.GeneratedAt = time.Now().UTC()
	}

	r := &Report{
		ID:                     uuid.NewString(),
		GeneratedAt:            time.Now().UTC(),
		Archetypes:             archetypes,
		Deviations:             deviations,
		TotalTimeImpactMinutes: deviations.TotalTimeImpact(),
		SuggestedWorkflow:      b.workflow(archetypes, deviations),
	}

	if b.cfg.Analysis.IncludeExamples {
		r.SimilarExamples = b.similarExamples(ev, archetypes, deviations)
	}
	if b.cfg.Analysis.IncludeCalculations {
		r.Calculations = calculations[archetypes.Primary.Code]
	}

	b.logger.Info("Analysis complete", map[string]interface{}{
		"report":     r.ID,
		"archetype":  archetypes.Primary.Code,
		"deviations": deviations.Metadata.Total,
		"durationMs": time.Since(started).Milliseconds(),
	})

	if b.cache != nil {
		b.cache.Add(key, r)
	}
	return r
}

// similarExamples scores a synthetic problem built from the evidence
// against the whole corpus and keeps the top matches.
func (b *Builder) similarExamples(ev extract.EvidenceSet, archetypes classify.Ranking, deviations deviation.Ranking) []Example {
	if len(b.kb.Problems) == 0 || b.cfg.Analysis.MaxExamples <= 0 {
		return nil
	}

	devCodes := make([]string, 0, len(deviations.Detections))
	for _, d := range deviations.Detections {
		devCodes = append(devCodes, d.Code)
	}
	synthetic := &kb.Problem{
		ID:         "",
		Archetype:  archetypes.Primary.Code,
		Deviations: devCodes,
		Keywords:   ev.MatchedKeywords(),
	}

	examples := make([]Example, 0, len(b.kb.Problems))
	for i := range b.kb.Problems {
		p := &b.kb.Problems[i]
		s := b.engine.Compare(synthetic, p)
		if s.Total == 0 {
			continue
		}
		examples = append(examples, Example{
			ProblemID: p.ID,
			Archetype: p.Archetype,
			Score:     s.Total,
			Breakdown: s.Breakdown,
		})
	}

	sort.SliceStable(examples, func(i, j int) bool {
		if examples[i].Score != examples[j].Score {
			return examples[i].Score > examples[j].Score
		}
		return examples[i].ProblemID < examples[j].ProblemID
	})

	if len(examples) > b.cfg.Analysis.MaxExamples {
		examples = examples[:b.cfg.Analysis.MaxExamples]
	}
	return examples
}

// workflow builds the five fixed phases with time budgets scaled to the
// classified archetype. Deviation time impact is added to the execute
// phase, where the extra work actually lands.
func (b *Builder) workflow(archetypes classify.Ranking, deviations deviation.Ranking) []WorkflowPhase {
	allocation := 20
	if a, err := b.kb.ArchetypeByCode(archetypes.Primary.Code); err == nil && a.TimeAllocationMinutes > 0 {
		allocation = a.TimeAllocationMinutes
	}

	phases := make([]WorkflowPhase, 0, len(phaseShares))
	for _, ps := range phaseShares {
		budget := int(float64(allocation)*ps.share + 0.5)
		if budget < 1 {
			budget = 1
		}
		phase := WorkflowPhase{
			Name:              ps.name,
			TimeBudgetMinutes: budget,
			Checklist:         checklistFor(ps.name, archetypes, deviations),
		}
		if ps.name == PhaseExecute {
			phase.TimeBudgetMinutes += deviations.TotalTimeImpact()
		}
		phases = append(phases, phase)
	}
	return phases
}

func checklistFor(phase string, archetypes classify.Ranking, deviations deviation.Ranking) []string {
	switch phase {
	case PhaseIdentify:
		items := []string{"Confirm the problem type matches " + archetypes.Primary.Code + "."}
		if archetypes.IsHybrid {
			items = append(items, "Hybrid problem: plan the solving sequence before starting.")
		}
		return items
	case PhaseExtract:
		return []string{"List all given values with their units.", "Note what the question actually asks for."}
	case PhaseMap:
		items := []string{"Choose the formula set for the identified archetype."}
		for _, d := range deviations.Detections {
			items = append(items, "Adjust for: "+d.Name+".")
		}
		return items
	case PhaseExecute:
		return []string{"Work the calculation in order, keeping intermediate values."}
	case PhaseCheck:
		items := []string{"Sanity-check the magnitude and sign of the result."}
		for _, d := range deviations.Detections {
			items = append(items, d.Checkpoints...)
		}
		return items
	default:
		return nil
	}
}

// Divergence looks up a corpus problem by id and runs the closest-comp
// analysis for it.
func (b *Builder) Divergence(problemID string) (similarity.Result, error) {
	p, err := b.kb.ProblemByID(problemID)
	if err != nil {
		return similarity.Result{}, err
	}
	return b.engine.FindClosest(p), nil
}

// MapToSteps exposes the step mapper for a stored problem's worked
// solution.
func (b *Builder) MapToSteps(problemID string) ([]kb.SolutionStep, error) {
	p, err := b.kb.ProblemByID(problemID)
	if err != nil {
		return nil, err
	}
	return b.detector.MapToSteps(p.Steps), nil
}

// Distribution reports corpus-wide similarity statistics for a stored
// problem.
func (b *Builder) Distribution(problemID string) (similarity.Distribution, error) {
	p, err := b.kb.ProblemByID(problemID)
	if err != nil {
		return similarity.Distribution{}, err
	}
	return b.engine.Distribution(p), nil
}

// Validate rejects input the pipeline cannot analyze meaningfully.
// Only a hard size limit is enforced; empty text is handled gracefully
// by Analyze itself.
const maxTextBytes = 1 << 20

func Validate(text string) error {
	if len(text) > maxTextBytes {
		return errors.New(errors.InvalidInput, "problem text exceeds the 1 MiB limit", nil)
	}
	return nil
}

func reportKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
