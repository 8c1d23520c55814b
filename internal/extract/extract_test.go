package extract

import (
	"testing"

	"finsight/internal/kb"
	"finsight/internal/logging"
)

func testKB(t *testing.T) *kb.KnowledgeBase {
	t.Helper()
	archetypes := []kb.Archetype{
		{Code: "A1", Name: "Bond Valuation", Tier: 1, TimeAllocationMinutes: 20},
		{Code: "A4", Name: "Credit Risk", Tier: 2, TimeAllocationMinutes: 15},
	}
	keywords := []kb.KeywordEntry{
		{Keyword: "yield to maturity", Weight: 4, Archetypes: []string{"A1"}},
		{Keyword: "bond", Weight: 2, Archetypes: []string{"A1"}},
		{Keyword: "default", Weight: 2, Archetypes: []string{"A4"}},
	}
	deviations := []kb.Deviation{
		{
			Code:              "DEV-1.1.1",
			Name:              "Hazard rate default timing",
			Severity:          kb.SeverityHigh,
			DetectionTriggers: []string{"hazard rate"},
			DetectionPatterns: []string{`/hazard\s+rate/i`},
			RelatedArchetypes: []string{"A1", "A4"},
		},
	}
	return kb.New(archetypes, keywords, nil, deviations, nil, kb.Options{}, logging.Discard())
}

func TestKeywordsCaseInsensitive(t *testing.T) {
	k := testKB(t)
	hits := Keywords("A BOND with a Yield To Maturity of 6%.", k.SignalIndex())

	if len(hits) != 2 {
		t.Fatalf("expected 2 keyword hits, got %d: %+v", len(hits), hits)
	}
	// Registry order: "yield to maturity" is indexed before "bond".
	if hits[0].Keyword != "yield to maturity" || hits[1].Keyword != "bond" {
		t.Errorf("hits out of registry order: %+v", hits)
	}
	if hits[0].Weight != 4 {
		t.Errorf("expected map weight 4, got %v", hits[0].Weight)
	}
}

func TestKeywordsSubstringContainment(t *testing.T) {
	k := testKB(t)
	// "bond" matches inside "vagabonds"; containment is intentional.
	hits := Keywords("the vagabonds traveled", k.SignalIndex())

	if len(hits) != 1 || hits[0].Keyword != "bond" {
		t.Fatalf("expected substring hit for 'bond', got %+v", hits)
	}
	if len(hits[0].Offsets) != 1 || hits[0].Offsets[0] != 8 {
		t.Errorf("wrong offsets: %v", hits[0].Offsets)
	}
}

func TestKeywordsAllOccurrences(t *testing.T) {
	k := testKB(t)
	hits := Keywords("a bond and another bond", k.SignalIndex())

	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if len(hits[0].Offsets) != 2 {
		t.Errorf("expected 2 occurrences, got offsets %v", hits[0].Offsets)
	}
}

func TestPatternsOneHitPerPattern(t *testing.T) {
	k := testKB(t)
	d, _ := k.DeviationByCode("DEV-1.1.1")

	hits := Patterns("A Hazard Rate here, another hazard rate there.", []*kb.Deviation{d})
	if len(hits) != 1 {
		t.Fatalf("expected 1 pattern hit, got %d", len(hits))
	}
	if hits[0].DeviationCode != "DEV-1.1.1" {
		t.Errorf("wrong deviation: %+v", hits[0])
	}
}

func TestSignalsEmptyText(t *testing.T) {
	k := testKB(t)
	ev := Signals("", k)

	if !ev.Empty() {
		t.Errorf("empty text should yield empty evidence, got %+v", ev)
	}
}

func TestSignalsCombined(t *testing.T) {
	k := testKB(t)
	ev := Signals("A bond whose default follows a hazard rate.", k)

	if len(ev.KeywordHits) != 3 {
		t.Errorf("expected keyword hits for bond, default, hazard rate; got %+v", ev.KeywordHits)
	}
	if len(ev.PatternHits) != 1 {
		t.Errorf("expected 1 pattern hit, got %+v", ev.PatternHits)
	}
	got := ev.MatchedKeywords()
	if len(got) != 3 || got[0] != "bond" || got[1] != "default" || got[2] != "hazard rate" {
		t.Errorf("unexpected matched keywords: %v", got)
	}
}
