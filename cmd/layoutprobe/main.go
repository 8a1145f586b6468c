// Command layoutprobe runs layout detection on one sheet and prints what it
// found. Useful when calibrating a preset for a new sheet design.
package main

import (
	"flag"
	"fmt"
	"os"

	"omr-grader/internal/anchor"
	"omr-grader/internal/bubble"
	"omr-grader/internal/cluster"
	"omr-grader/internal/config"
	"omr-grader/internal/layout"
	"omr-grader/internal/sheetimage"
)

func main() {
	imagePath := flag.String("image", "", "Path to sheet image (PNG, JPEG, TIFF, or PDF)")
	preset := flag.String("preset", "default", "Named preset")
	useAnchors := flag.Bool("anchors", false, "Derive rows from OCR question-number anchors")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: layoutprobe -image <path> [-preset default] [-anchors]")
		os.Exit(1)
	}

	cfg, err := config.Preset(*preset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	sheet, err := sheetimage.Load(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load sheet: %v\n", err)
		os.Exit(1)
	}
	defer sheet.Close()

	fmt.Printf("Loaded %dx%d sheet", sheet.Width, sheet.Height)
	if sheet.DPI > 0 {
		fmt.Printf(" at %.0f DPI", sheet.DPI)
	}
	fmt.Println()

	cands, err := bubble.ExtractCandidates(sheet.Gray, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Extraction failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Candidates: %d\n", len(cands))

	var rows []cluster.Row
	if *useAnchors {
		engine, err := anchor.NewEngine()
		if err != nil {
			fmt.Fprintf(os.Stderr, "OCR engine unavailable: %v\n", err)
			os.Exit(1)
		}
		defer engine.Close()

		anchors, err := engine.FindAnchors(sheet.Gray, 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Anchor detection failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Anchors: %d\n", len(anchors))
		rows = anchor.RowsFromAnchors(anchors, cands, cfg)
	} else {
		rows = cluster.GroupRows(cands, cfg)
	}
	fmt.Printf("Rows: %d\n", len(rows))

	l, err := layout.Build(rows, cands, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Layout detection failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Variant: %s\n", l.Variant)
	fmt.Printf("Columns (%d): ", len(l.Columns.Positions))
	for _, x := range l.Columns.Positions {
		fmt.Printf("%.0f ", x)
	}
	fmt.Println()
	fmt.Printf("Sections: %d\n", len(l.Columns.Sections))
	for i, s := range l.Columns.Sections {
		fmt.Printf("  [%d] columns %d-%d, x %.0f-%.0f\n", i, s.Start, s.End, s.StartX, s.EndX)
	}
	for i, r := range l.Rows {
		fmt.Printf("row %2d: y=%.0f members=%d\n", i, r.MeanY, len(r.Members))
	}
}
