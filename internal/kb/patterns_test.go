package kb

import "testing"

func TestCompilePatternBare(t *testing.T) {
	re, err := CompilePattern(`hazard\s+rate`)
	if err != nil {
		t.Fatalf("CompilePattern failed: %v", err)
	}
	if !re.MatchString("a 5% hazard rate of default") {
		t.Error("expected bare pattern to match")
	}
	if re.MatchString("Hazard Rate") {
		t.Error("bare pattern should be case-sensitive")
	}
}

func TestCompilePatternWithFlags(t *testing.T) {
	re, err := CompilePattern(`/hazard\s+rate/i`)
	if err != nil {
		t.Fatalf("CompilePattern failed: %v", err)
	}
	if !re.MatchString("Hazard Rate of default") {
		t.Error("expected /i pattern to match regardless of case")
	}
}

func TestCompilePatternGlobalFlagIgnored(t *testing.T) {
	re, err := CompilePattern(`/amortiz(e|ing|ation)/gi`)
	if err != nil {
		t.Fatalf("CompilePattern failed: %v", err)
	}
	if !re.MatchString("Amortizing principal") {
		t.Error("expected pattern with g flag to compile and match")
	}
}

func TestCompilePatternBodyWithSlashes(t *testing.T) {
	re, err := CompilePattern(`/debt\/equity/i`)
	if err != nil {
		t.Fatalf("CompilePattern failed: %v", err)
	}
	if !re.MatchString("the Debt/Equity ratio") {
		t.Error("expected escaped slash in body to match")
	}
}

func TestCompilePatternInvalid(t *testing.T) {
	if _, err := CompilePattern(`/[unclosed/i`); err == nil {
		t.Error("expected error for malformed regex")
	}
	if _, err := CompilePattern(`/foo/x`); err == nil {
		t.Error("expected error for unsupported flag")
	}
}
