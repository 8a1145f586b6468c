package consensus

import (
	"encoding/json"
	"reflect"
	"testing"

	"omr-grader/internal/config"
	"omr-grader/internal/intensity"
)

// uniformResults produces the full five-method result set with every method
// reporting the same intensity.
func uniformResults(v float64) []intensity.Result {
	names := []string{
		config.MethodDarkness,
		config.MethodMorphological,
		config.MethodContour,
		config.MethodTemplate,
		config.MethodStatistical,
	}
	results := make([]intensity.Result, len(names))
	for i, n := range names {
		results[i] = intensity.Result{Method: n, Intensity: v}
	}
	return results
}

func TestCombineEmpty(t *testing.T) {
	combined, conf := Combine(nil, config.Default().MethodWeights)
	if combined != 0 || conf != 0 {
		t.Errorf("got (%v, %v), want (0, 0)", combined, conf)
	}
}

func TestCombineWeightedSum(t *testing.T) {
	weights := config.Default().MethodWeights
	combined, _ := Combine(uniformResults(0.8), weights)
	if combined < 0.799 || combined > 0.801 {
		t.Errorf("combined %v, want 0.8 (weights sum to 1)", combined)
	}
}

func TestCombineBoostsConfidenceOnAgreement(t *testing.T) {
	weights := config.Default().MethodWeights
	combined, conf := Combine(uniformResults(0.8), weights)
	if conf <= combined {
		t.Errorf("agreeing methods: confidence %v not above combined %v", conf, combined)
	}
	if conf > 1 {
		t.Errorf("confidence %v exceeds 1", conf)
	}
}

func TestCombineNoBoostOnDisagreement(t *testing.T) {
	weights := config.Default().MethodWeights
	results := uniformResults(0)
	results[0].Intensity = 1
	results[2].Intensity = 1

	combined, conf := Combine(results, weights)
	if conf != combined {
		t.Errorf("disagreeing methods: confidence %v differs from combined %v", conf, combined)
	}
}

func TestResolveThresholdIsInclusive(t *testing.T) {
	cfg := config.Default()
	// A single fully-weighted method makes the combined intensity exact.
	cfg.MethodWeights = map[string]float64{config.MethodDarkness: 1}

	at := map[string][]intensity.Result{
		"A": {{Method: config.MethodDarkness, Intensity: cfg.DetectionThreshold}},
	}
	if a := Resolve(1, 0, at, cfg); a.State != StateAnswered {
		t.Errorf("intensity at threshold resolved %v, want ANSWERED", a.State)
	}

	below := map[string][]intensity.Result{
		"A": {{Method: config.MethodDarkness, Intensity: cfg.DetectionThreshold - 0.01}},
	}
	if a := Resolve(1, 0, below, cfg); a.State != StateBlank {
		t.Errorf("intensity below threshold resolved %v, want BLANK", a.State)
	}
}

func TestResolveSingleMark(t *testing.T) {
	cfg := config.Default()
	perOption := map[string][]intensity.Result{
		"A": uniformResults(0.95),
		"B": uniformResults(0.05),
		"C": uniformResults(0.05),
		"D": uniformResults(0.05),
		"E": uniformResults(0.05),
	}

	a := Resolve(7, 0, perOption, cfg)
	if a.State != StateAnswered || a.Option != "A" {
		t.Fatalf("got state %v option %q, want ANSWERED A", a.State, a.Option)
	}
	if a.Multiple {
		t.Error("single mark flagged multiple")
	}
	if a.Confidence <= 0.8 {
		t.Errorf("confidence %v, want > 0.8 for a clean dark mark", a.Confidence)
	}
	if a.Question != 7 {
		t.Errorf("question %d, want 7", a.Question)
	}
	if len(a.Intensities) != 5 {
		t.Errorf("answer kept %d option intensities, want 5", len(a.Intensities))
	}
}

func TestResolveMultipleMarksPenalized(t *testing.T) {
	cfg := config.Default()
	single := map[string][]intensity.Result{
		"A": uniformResults(0.95),
		"B": uniformResults(0.05),
	}
	double := map[string][]intensity.Result{
		"A": uniformResults(0.95),
		"B": uniformResults(0.90),
	}

	clean := Resolve(1, 0, single, cfg)
	marked := Resolve(1, 0, double, cfg)

	if marked.State != StateMultiple || !marked.Multiple {
		t.Fatalf("got state %v, want MULTIPLE", marked.State)
	}
	if marked.Option != "A" {
		t.Errorf("winner %q, want the darker option A", marked.Option)
	}
	if marked.Confidence <= 0 {
		t.Error("multiple-mark confidence must stay positive")
	}
	if marked.Confidence >= clean.Confidence {
		t.Errorf("multiple-mark confidence %v not below clean confidence %v",
			marked.Confidence, clean.Confidence)
	}
}

func TestResolveBlank(t *testing.T) {
	cfg := config.Default()
	perOption := map[string][]intensity.Result{
		"A": uniformResults(0.05),
		"B": uniformResults(0.08),
		"C": uniformResults(0.04),
	}

	a := Resolve(3, 0, perOption, cfg)
	if a.State != StateBlank {
		t.Fatalf("got state %v, want BLANK", a.State)
	}
	if a.Option != "" {
		t.Errorf("blank answer carries option %q", a.Option)
	}
	if a.Confidence <= 0 || a.Confidence > 0.3 {
		t.Errorf("blank confidence %v, want in (0, 0.3]", a.Confidence)
	}
}

func TestResolveNoOptions(t *testing.T) {
	a := Resolve(1, 0, nil, config.Default())
	if a.State != StateBlank {
		t.Fatalf("got state %v, want BLANK", a.State)
	}
	if a.Confidence != blankConfidenceCap {
		t.Errorf("confidence %v, want cap %v", a.Confidence, blankConfidenceCap)
	}
}

func TestResolveTieBrokenByIntensity(t *testing.T) {
	cfg := config.Default()
	// Both options sit in the top vote tier; raw intensity decides.
	perOption := map[string][]intensity.Result{
		"A": uniformResults(0.75),
		"B": uniformResults(0.95),
	}

	a := Resolve(1, 0, perOption, cfg)
	if a.Option != "B" {
		t.Errorf("winner %q, want B", a.Option)
	}
}

func TestResolvePerSectionThreshold(t *testing.T) {
	cfg := config.Default().WithSectionThreshold(1, 0.8)
	perOption := map[string][]intensity.Result{
		"A": uniformResults(0.6),
	}

	if a := Resolve(1, 0, perOption, cfg); a.State != StateAnswered {
		t.Errorf("section 0 got %v, want ANSWERED at default threshold", a.State)
	}
	if a := Resolve(1, 1, perOption, cfg); a.State != StateBlank {
		t.Errorf("section 1 got %v, want BLANK under raised threshold", a.State)
	}
}

func TestResolveIdempotent(t *testing.T) {
	cfg := config.Default()
	perOption := map[string][]intensity.Result{
		"A": uniformResults(0.92),
		"B": uniformResults(0.41),
		"C": uniformResults(0.10),
	}

	first := Resolve(5, 0, perOption, cfg)
	second := Resolve(5, 0, perOption, cfg)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated resolution differs:\n%+v\n%+v", first, second)
	}
}

func TestStateJSON(t *testing.T) {
	for s, want := range map[State]string{
		StateAnswered: `"ANSWERED"`,
		StateBlank:    `"BLANK"`,
		StateMultiple: `"MULTIPLE"`,
	} {
		data, err := json.Marshal(s)
		if err != nil {
			t.Fatalf("marshal %v: %v", s, err)
		}
		if string(data) != want {
			t.Errorf("state %v marshaled %s, want %s", s, data, want)
		}
	}
}
