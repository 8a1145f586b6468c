package pipeline

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"omr-grader/internal/config"
	"omr-grader/internal/layout"
	"omr-grader/internal/mapping"
	"omr-grader/internal/sheetimage"
)

// ItemResult is one batch item's outcome. Exactly one of Result and Err is set.
type ItemResult struct {
	Path   string       `json:"path"`
	Result *SheetResult `json:"result,omitempty"`
	Err    error        `json:"-"`
}

// BatchOptions tune batch grading.
type BatchOptions struct {
	// Template is used for items whose layout detection fails. Nil disables
	// the fallback.
	Template *mapping.FixedTemplate
}

// GradeBatch grades many sheets on a bounded worker pool. Items are fully
// independent: one sheet's failure or cancellation never aborts its
// siblings, and results keep the input order regardless of completion order.
func GradeBatch(ctx context.Context, paths []string, expected int, cfg config.DetectionConfig, opts BatchOptions) []ItemResult {
	items := make([]ItemResult, len(paths))

	var g errgroup.Group
	g.SetLimit(workerCount(cfg))

	for i, path := range paths {
		g.Go(func() error {
			items[i] = gradeItem(ctx, path, expected, cfg, opts)
			return nil
		})
	}
	_ = g.Wait()

	return items
}

func gradeItem(ctx context.Context, path string, expected int, cfg config.DetectionConfig, opts BatchOptions) ItemResult {
	item := ItemResult{Path: path}

	if err := ctx.Err(); err != nil {
		item.Err = err
		return item
	}

	sheet, err := sheetimage.Load(path)
	if err != nil {
		item.Err = err
		return item
	}
	defer sheet.Close()

	result, err := GradeSheet(ctx, sheet, expected, cfg)
	if err != nil && opts.Template != nil && errors.Is(err, layout.ErrLayoutUndetected) {
		result, err = GradeSheetWithTemplate(ctx, sheet, opts.Template, cfg)
	}
	if err != nil {
		item.Err = err
		return item
	}

	item.Result = result
	return item
}
