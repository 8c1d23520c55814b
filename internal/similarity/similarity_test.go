package similarity

import (
	"math"
	"testing"

	"finsight/internal/config"
	"finsight/internal/kb"
	"finsight/internal/logging"
)

func testEngine(problems []kb.Problem) *Engine {
	archetypes := []kb.Archetype{
		{Code: "A1", Name: "Bond Valuation", Tier: 1},
		{Code: "A4", Name: "Credit Risk", Tier: 2},
	}
	deviations := []kb.Deviation{
		{
			Code:              "D1",
			Name:              "Hazard rate default timing",
			Severity:          kb.SeverityHigh,
			TimeImpactMinutes: 6,
			Checkpoints:       []string{"Convert hazard rate to survival probabilities"},
		},
		{
			Code:              "D2",
			Name:              "Amortizing principal",
			Severity:          kb.SeverityMedium,
			TimeImpactMinutes: 4,
		},
		{
			Code:              "D3",
			Name:              "Rounding convention",
			Severity:          kb.SeverityLow,
			TimeImpactMinutes: 1,
		},
	}
	k := kb.New(archetypes, nil, nil, deviations, problems, kb.Options{}, logging.Discard())
	return NewEngine(k, config.DefaultConfig().Analysis, logging.Discard())
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCompareIdenticalProblems(t *testing.T) {
	e := testEngine(nil)
	a := &kb.Problem{ID: "P-1", Archetype: "A1", Deviations: []string{"D1"}, Keywords: []string{"debt", "ytm"}}
	b := &kb.Problem{ID: "P-2", Archetype: "A1", Deviations: []string{"D1"}, Keywords: []string{"debt", "ytm"}}

	s := e.Compare(a, b)
	if !almostEqual(s.Total, 1.0) {
		t.Errorf("identical-field problems should score 1.0, got %v", s.Total)
	}
}

func TestCompareTierPrefixOnly(t *testing.T) {
	e := testEngine(nil)
	a := &kb.Problem{ID: "P-1", Archetype: "A1", Deviations: []string{"D1"}, Keywords: []string{"bond"}}
	b := &kb.Problem{ID: "P-2", Archetype: "A4", Deviations: []string{"D2"}, Keywords: []string{"default"}}

	s := e.Compare(a, b)
	if !almostEqual(s.Breakdown.ArchetypeSim, 0.5) {
		t.Errorf("shared letter prefix should score 0.5, got %v", s.Breakdown.ArchetypeSim)
	}
	if s.Breakdown.DeviationSim != 0 || s.Breakdown.KeywordSim != 0 {
		t.Errorf("disjoint sets should score 0: %+v", s.Breakdown)
	}
	if !almostEqual(s.Total, 0.20) {
		t.Errorf("expected total 0.20, got %v", s.Total)
	}
}

func TestJaccardEmptyPairIsZero(t *testing.T) {
	e := testEngine(nil)
	a := &kb.Problem{ID: "P-1", Archetype: "A1"}
	b := &kb.Problem{ID: "P-2", Archetype: "A1"}

	s := e.Compare(a, b)
	if s.Breakdown.DeviationSim != 0 || s.Breakdown.KeywordSim != 0 {
		t.Errorf("empty/empty sets must score 0, got %+v", s.Breakdown)
	}
	// Only the archetype component contributes.
	if !almostEqual(s.Total, 0.40) {
		t.Errorf("expected total 0.40, got %v", s.Total)
	}
}

func TestJaccardNormalizesAndDeduplicates(t *testing.T) {
	e := testEngine(nil)
	a := &kb.Problem{ID: "P-1", Archetype: "A1", Keywords: []string{"Debt", "debt", " YTM "}}
	b := &kb.Problem{ID: "P-2", Archetype: "A1", Keywords: []string{"debt", "ytm"}}

	s := e.Compare(a, b)
	if !almostEqual(s.Breakdown.KeywordSim, 1.0) {
		t.Errorf("case and duplicate variants should normalize to identical sets, got %v", s.Breakdown.KeywordSim)
	}
}

func TestFindClosestIdenticalComp(t *testing.T) {
	target := kb.Problem{ID: "P-1", Archetype: "A1", Deviations: []string{"D1"}, Keywords: []string{"debt", "ytm"}}
	e := testEngine([]kb.Problem{
		target,
		{ID: "P-2", Archetype: "A1", Deviations: []string{"D1"}, Keywords: []string{"debt", "ytm"}},
		{ID: "P-3", Archetype: "A4", Deviations: []string{"D2"}, Keywords: []string{"spread"}},
	})

	r := e.FindClosest(&target)
	if !r.HasComp {
		t.Fatalf("identical comp should clear the threshold: %+v", r)
	}
	if r.ClosestID != "P-2" {
		t.Errorf("expected closest P-2, got %s", r.ClosestID)
	}
	if r.SimilarityScore < 0.9 {
		t.Errorf("expected near-perfect score, got %v", r.SimilarityScore)
	}
	if len(r.Divergence.AdditionalDeviations) != 0 {
		t.Errorf("identical comp should have no additional deviations: %+v", r.Divergence)
	}
}

func TestFindClosestBelowThreshold(t *testing.T) {
	target := kb.Problem{ID: "P-1", Archetype: "A1", Deviations: []string{"D1"}, Keywords: []string{"bond"}}
	e := testEngine([]kb.Problem{
		target,
		{ID: "P-2", Archetype: "A4", Deviations: []string{"D2"}, Keywords: []string{"default"}},
	})

	r := e.FindClosest(&target)
	if r.HasComp {
		t.Fatalf("score below threshold must not confirm a comp: %+v", r)
	}
	if r.Divergence != nil {
		t.Error("no divergence analysis without a confirmed comp")
	}
	// Best score still reported for transparency.
	if r.ClosestID != "P-2" || r.SimilarityScore == 0 {
		t.Errorf("best candidate should still be reported: %+v", r)
	}
}

func TestFindClosestExcludesTarget(t *testing.T) {
	target := kb.Problem{ID: "P-1", Archetype: "A1", Deviations: []string{"D1"}, Keywords: []string{"bond"}}
	e := testEngine([]kb.Problem{target})

	r := e.FindClosest(&target)
	if r.HasComp || r.ClosestID != "" {
		t.Errorf("a corpus of only the target has no comp: %+v", r)
	}
}

func TestDivergenceGuidance(t *testing.T) {
	target := kb.Problem{
		ID: "P-1", Archetype: "A1",
		Deviations: []string{"D1", "D2"},
		Keywords:   []string{"bond", "coupon", "hazard rate"},
	}
	comp := kb.Problem{
		ID: "P-2", Archetype: "A1",
		Deviations: []string{"D1"},
		Keywords:   []string{"bond", "coupon"},
	}
	e := testEngine([]kb.Problem{target, comp})

	r := e.FindClosest(&target)
	if !r.HasComp {
		t.Fatalf("expected confirmed comp, got %+v", r)
	}
	d := r.Divergence
	if len(d.AdditionalDeviations) != 1 || d.AdditionalDeviations[0] != "D2" {
		t.Errorf("wrong additional deviations: %v", d.AdditionalDeviations)
	}
	if len(d.MissingDeviations) != 0 {
		t.Errorf("unexpected missing deviations: %v", d.MissingDeviations)
	}
	if len(d.AdditionalConcepts) != 1 || d.AdditionalConcepts[0] != "hazard rate" {
		t.Errorf("wrong additional concepts: %v", d.AdditionalConcepts)
	}

	if len(d.Guidance) != 2 {
		t.Fatalf("expected guidance for the deviation plus the concept entry, got %+v", d.Guidance)
	}
	first := d.Guidance[0]
	if first.Type != GuidanceAdditionalComplexity || first.Severity != kb.SeverityMedium {
		t.Errorf("unexpected first guidance entry: %+v", first)
	}
	if first.TimeImpactMinutes != 4 {
		t.Errorf("guidance should copy the registry time impact, got %d", first.TimeImpactMinutes)
	}
	if d.Guidance[1].Type != GuidanceConceptualExtension {
		t.Errorf("concept entry should follow on severity tie, got %+v", d.Guidance[1])
	}
}

func TestGuidanceSortedBySeverity(t *testing.T) {
	// Additional: D2 (medium). Missing: D1 (high). Generation order puts
	// the medium entry first; the sort must put high first.
	target := kb.Problem{ID: "P-1", Archetype: "A1", Deviations: []string{"D3", "D2"}, Keywords: []string{"bond"}}
	comp := kb.Problem{ID: "P-2", Archetype: "A1", Deviations: []string{"D3", "D1"}, Keywords: []string{"bond"}}
	e := testEngine([]kb.Problem{target, comp})

	r := e.FindClosest(&target)
	if !r.HasComp {
		t.Fatalf("expected confirmed comp, got %+v", r)
	}
	d := r.Divergence
	if len(d.Guidance) != 2 {
		t.Fatalf("expected 2 guidance entries, got %+v", d.Guidance)
	}
	if d.Guidance[0].Severity != kb.SeverityHigh || d.Guidance[0].Type != GuidanceSimplification {
		t.Errorf("high-severity simplification should sort first: %+v", d.Guidance[0])
	}
	if len(d.Guidance[0].Steps) == 0 {
		t.Error("simplification guidance must carry adaptation steps")
	}
	if d.Guidance[1].Severity != kb.SeverityMedium || d.Guidance[1].Type != GuidanceAdditionalComplexity {
		t.Errorf("medium-severity entry should sort second: %+v", d.Guidance[1])
	}
}

func TestInferCompApproachFallback(t *testing.T) {
	e := testEngine(nil)

	if got := e.inferCompApproach(&kb.Problem{Archetype: "A1"}); got == "" {
		t.Error("known archetype must yield a non-empty approach")
	}
	if got := e.inferCompApproach(&kb.Problem{Archetype: "Z9"}); got == "" {
		t.Error("unknown archetype must yield the generic fallback")
	}
}

func TestDistribution(t *testing.T) {
	target := kb.Problem{ID: "P-1", Archetype: "A1", Deviations: []string{"D1"}, Keywords: []string{"bond"}}
	e := testEngine([]kb.Problem{
		target,
		{ID: "P-2", Archetype: "A1", Deviations: []string{"D1"}, Keywords: []string{"bond"}},
		{ID: "P-3", Archetype: "A4", Deviations: []string{"D2"}, Keywords: []string{"spread"}},
	})

	dist := e.Distribution(&target)
	if dist.Count != 2 {
		t.Fatalf("expected 2 scored problems, got %d", dist.Count)
	}
	if !almostEqual(dist.Max, 1.0) {
		t.Errorf("expected max 1.0 from the identical comp, got %v", dist.Max)
	}
	if dist.Mean <= 0 || dist.Mean >= 1 {
		t.Errorf("mean out of range: %v", dist.Mean)
	}
}
