package mapping

import (
	"errors"
	"math"
	"testing"

	"omr-grader/internal/bubble"
	"omr-grader/internal/cluster"
	"omr-grader/internal/config"
	"omr-grader/internal/layout"
	"omr-grader/pkg/geometry"
)

const (
	gridOriginX = 100.0
	gridOriginY = 100.0
	gridColStep = 50.0
	gridRowStep = 60.0
	gridSecStep = 400.0
)

func bubbleAt(x, y float64) bubble.Candidate {
	return bubble.Candidate{
		Box:        geometry.RectInt{X: int(x) - 12, Y: int(y) - 12, Width: 24, Height: 24},
		Center:     geometry.Point2D{X: x, Y: y},
		Area:       450,
		Confidence: 0.9,
	}
}

func gridCenter(section, row, col int) (float64, float64) {
	x := gridOriginX + float64(section)*gridSecStep + float64(col)*gridColStep
	y := gridOriginY + float64(row)*gridRowStep
	return x, y
}

// threeSectionSheet builds the candidates for a 40-question sheet: three
// five-option sections with 14, 13 and 13 rows. skip drops a (section, row)
// cell from the visible set while keeping it in the full candidate list.
func threeSectionSheet(skip map[[2]int]bool) (visible, all []bubble.Candidate) {
	sectionRows := []int{14, 13, 13}
	for s, rows := range sectionRows {
		for r := 0; r < rows; r++ {
			for c := 0; c < 5; c++ {
				x, y := gridCenter(s, r, c)
				cand := bubbleAt(x, y)
				all = append(all, cand)
				if !skip[[2]int{s, r}] {
					visible = append(visible, cand)
				}
			}
		}
	}
	return visible, all
}

func buildLayout(t *testing.T, visible, all []bubble.Candidate, cfg config.DetectionConfig) layout.Layout {
	t.Helper()
	rows := cluster.GroupRows(visible, cfg)
	l, err := layout.Build(rows, all, cfg)
	if err != nil {
		t.Fatalf("layout.Build: %v", err)
	}
	return l
}

func TestMapNumbersSectionMajor(t *testing.T) {
	cfg := config.Default()
	visible, all := threeSectionSheet(nil)
	l := buildLayout(t, visible, all, cfg)

	res, err := Map(l, 40, cfg)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if len(res.Questions) != 40 {
		t.Fatalf("mapped %d questions, want 40", len(res.Questions))
	}
	if res.Report.Direct != 40 || res.Report.Partial {
		t.Errorf("report %+v, want 40 direct and not partial", res.Report)
	}

	sectionOf := func(num int) int {
		switch {
		case num <= 14:
			return 0
		case num <= 27:
			return 1
		default:
			return 2
		}
	}
	for num := 1; num <= 40; num++ {
		q, ok := res.Questions[num]
		if !ok {
			t.Fatalf("question %d missing", num)
		}
		if q.Number != num {
			t.Errorf("question %d carries number %d", num, q.Number)
		}
		if q.Section != sectionOf(num) {
			t.Errorf("question %d in section %d, want %d", num, q.Section, sectionOf(num))
		}
	}
	// Section-major, row-major: Q15 is the first row of section 1.
	if q := res.Questions[15]; q.Row != 0 || q.Section != 1 {
		t.Errorf("Q15 at section %d row %d, want section 1 row 0", q.Section, q.Row)
	}
	if q := res.Questions[14]; q.Row != 13 || q.Section != 0 {
		t.Errorf("Q14 at section %d row %d, want section 0 row 13", q.Section, q.Row)
	}
}

func TestMapOptionLettersAscendX(t *testing.T) {
	cfg := config.Default()
	visible, all := threeSectionSheet(nil)
	l := buildLayout(t, visible, all, cfg)

	res, err := Map(l, 40, cfg)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	for num, q := range res.Questions {
		if len(q.Options) != 5 {
			t.Fatalf("question %d has %d options, want 5", num, len(q.Options))
		}
		for i, o := range q.Options {
			if o.Letter != rune('A'+i) {
				t.Errorf("question %d option %d lettered %c", num, i, o.Letter)
			}
			if i > 0 && o.Box.Center().X <= q.Options[i-1].Box.Center().X {
				t.Errorf("question %d options not ordered by x", num)
			}
		}
	}
}

func TestMapCapsOptionsAtFive(t *testing.T) {
	cfg := config.Default()
	var cands []bubble.Candidate
	for r := 0; r < 8; r++ {
		for c := 0; c < 7; c++ {
			x, y := gridCenter(0, r, c)
			cands = append(cands, bubbleAt(x, y))
		}
	}
	l := buildLayout(t, cands, cands, cfg)

	res, err := Map(l, 8, cfg)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	for num, q := range res.Questions {
		if len(q.Options) != 5 {
			t.Errorf("question %d has %d options, want cap of 5", num, len(q.Options))
		}
		if last := q.Letters()[len(q.Letters())-1]; last != 'E' {
			t.Errorf("question %d last letter %c, want E", num, last)
		}
	}
}

func TestMapHonorsConfiguredOptionCount(t *testing.T) {
	cfg := config.Default()
	cfg.ExpectedOptionsPerQuestion = 4
	visible, all := threeSectionSheet(nil)
	l := buildLayout(t, visible, all, cfg)

	res, err := Map(l, 40, cfg)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	for num, q := range res.Questions {
		if got := string(q.Letters()); got != "ABCD" {
			t.Errorf("question %d letters %q, want \"ABCD\" under a 4-option config", num, got)
		}
	}
}

func TestMapRecoversTrailingQuestions(t *testing.T) {
	cfg := config.Default()
	// Section 2's last two rows are invisible to clustering but present in the
	// candidate pool, as when smudges drop them from their rows.
	visible, all := threeSectionSheet(map[[2]int]bool{
		{2, 11}: true,
		{2, 12}: true,
	})
	l := buildLayout(t, visible, all, cfg)

	res, err := Map(l, 40, cfg)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if res.Report.Direct != 38 {
		t.Fatalf("direct count %d, want 38", res.Report.Direct)
	}
	if len(res.Report.Recovered) != 2 || res.Report.Recovered[0] != 39 || res.Report.Recovered[1] != 40 {
		t.Fatalf("recovered %v, want [39 40]", res.Report.Recovered)
	}
	if res.Report.Partial {
		t.Error("report marked partial after full recovery")
	}

	for i, num := range []int{39, 40} {
		q, ok := res.Questions[num]
		if !ok {
			t.Fatalf("recovered question %d missing", num)
		}
		if q.Section != 2 {
			t.Errorf("question %d in section %d, want 2", num, q.Section)
		}
		if len(q.Options) != 5 {
			t.Errorf("question %d has %d options, want 5", num, len(q.Options))
		}
		wantRow := 11 + i
		for c, o := range q.Options {
			wantX, wantY := gridCenter(2, wantRow, c)
			ctr := o.Box.Center()
			if math.Abs(ctr.X-wantX) > 2 || math.Abs(ctr.Y-wantY) > 2 {
				t.Errorf("question %d option %c at (%.0f,%.0f), want (%.0f,%.0f)",
					num, o.Letter, ctr.X, ctr.Y, wantX, wantY)
			}
		}
	}
}

func TestMapFailsBelowRecoveryRatio(t *testing.T) {
	cfg := config.Default()
	var cands []bubble.Candidate
	for r := 0; r < 14; r++ {
		for c := 0; c < 5; c++ {
			x, y := gridCenter(0, r, c)
			cands = append(cands, bubbleAt(x, y))
		}
	}
	l := buildLayout(t, cands, cands, cfg)

	if _, err := Map(l, 40, cfg); !errors.Is(err, ErrMappingFailed) {
		t.Fatalf("got %v, want ErrMappingFailed", err)
	}
}

func TestMapRecoveryNeverBelowTwoOptions(t *testing.T) {
	cfg := config.Default()
	var visible []bubble.Candidate
	for r := 0; r < 6; r++ {
		for c := 0; c < 5; c++ {
			x, y := gridCenter(0, r, c)
			visible = append(visible, bubbleAt(x, y))
		}
	}
	// The seventh row left only one recognizable bubble.
	x, y := gridCenter(0, 6, 0)
	all := append(append([]bubble.Candidate{}, visible...), bubbleAt(x, y))
	l := buildLayout(t, visible, all, cfg)

	res, err := Map(l, 7, cfg)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if _, ok := res.Questions[7]; ok {
		t.Error("question 7 synthesized from a single bubble")
	}
	if !res.Report.Partial {
		t.Error("report not marked partial")
	}
}

func TestMapRecoveryTwoOptions(t *testing.T) {
	cfg := config.Default()
	var visible []bubble.Candidate
	for r := 0; r < 6; r++ {
		for c := 0; c < 5; c++ {
			x, y := gridCenter(0, r, c)
			visible = append(visible, bubbleAt(x, y))
		}
	}
	all := append([]bubble.Candidate{}, visible...)
	for c := 0; c < 2; c++ {
		x, y := gridCenter(0, 6, c)
		all = append(all, bubbleAt(x, y))
	}
	l := buildLayout(t, visible, all, cfg)

	res, err := Map(l, 7, cfg)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	q, ok := res.Questions[7]
	if !ok {
		t.Fatal("question 7 not recovered from two bubbles")
	}
	if got := string(q.Letters()); got != "AB" {
		t.Errorf("question 7 letters %q, want \"AB\"", got)
	}
	if res.Report.Partial {
		t.Error("report marked partial after full recovery")
	}
}

func TestMapRejectsNonPositiveExpected(t *testing.T) {
	cfg := config.Default()
	visible, all := threeSectionSheet(nil)
	l := buildLayout(t, visible, all, cfg)
	if _, err := Map(l, 0, cfg); err == nil {
		t.Fatal("expected error for zero expected count")
	}
}
