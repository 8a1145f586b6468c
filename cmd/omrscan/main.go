// Command omrscan grades scanned answer sheets and prints JSON results.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gocv.io/x/gocv"

	"omr-grader/internal/config"
	"omr-grader/internal/mapping"
	"omr-grader/internal/pipeline"
	"omr-grader/internal/render"
	"omr-grader/internal/sheetimage"
)

// itemJSON flattens an ItemResult for output; errors become strings.
type itemJSON struct {
	Path   string                `json:"path"`
	Result *pipeline.SheetResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

func main() {
	images := flag.String("image", "", "Comma-separated sheet paths (PNG, JPEG, TIFF, or PDF)")
	questions := flag.Int("questions", 0, "Expected question count")
	preset := flag.String("preset", "default", "Named preset: default, strict, lenient, evalbee, dense40")
	configPath := flag.String("config", "", "YAML preset file (overrides -preset)")
	workers := flag.Int("workers", 0, "Worker count (0 = NumCPU)")
	templatePath := flag.String("template", "", "JSON fixed-template fallback for undetectable layouts")
	debugDir := flag.String("debug-out", "", "Directory for per-sheet overlay PNGs")
	timeout := flag.Duration("timeout", 2*time.Minute, "Per-batch timeout")
	flag.Parse()

	if *images == "" || *questions <= 0 {
		fmt.Println("Usage: omrscan -image <paths> -questions <n> [-preset default] [-config file.yaml]")
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath, *preset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if *workers > 0 {
		cfg = cfg.WithWorkers(*workers)
	}

	var opts pipeline.BatchOptions
	if *templatePath != "" {
		tmpl, err := mapping.LoadTemplateFromFile(*templatePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load template: %v\n", err)
			os.Exit(1)
		}
		mapping.RegisterTemplate(tmpl)
		opts.Template = tmpl
	}

	paths := splitPaths(*images)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	items := pipeline.GradeBatch(ctx, paths, *questions, cfg, opts)

	failures := 0
	out := make([]itemJSON, len(items))
	for i, item := range items {
		out[i] = itemJSON{Path: item.Path, Result: item.Result}
		if item.Err != nil {
			out[i].Error = item.Err.Error()
			failures++
			continue
		}
		if *debugDir != "" {
			writeOverlay(*debugDir, item, cfg)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write results: %v\n", err)
		os.Exit(1)
	}

	if failures == len(items) {
		os.Exit(1)
	}
}

func loadConfig(path, preset string) (config.DetectionConfig, error) {
	if path != "" {
		return config.LoadPreset(path)
	}
	return config.Preset(preset)
}

func splitPaths(s string) []string {
	var paths []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// writeOverlay regenerates the sheet's questions and writes the debug image.
// Overlay rendering is best effort; a failure here never fails the run.
func writeOverlay(dir string, item pipeline.ItemResult, cfg config.DetectionConfig) {
	sheet, err := sheetimage.Load(item.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Overlay skipped for %s: %v\n", item.Path, err)
		return
	}
	defer sheet.Close()

	l, err := pipeline.DetectLayout(sheet, cfg)
	if err != nil {
		return
	}
	mapped, err := pipeline.MapCoordinates(l, item.Result.Report.Expected, cfg)
	if err != nil {
		return
	}

	overlay := render.Overlay(sheet.Gray, mapped.Questions, item.Result.Answers)
	defer overlay.Close()

	name := strings.ReplaceAll(strings.TrimPrefix(item.Path, "/"), "/", "_")
	gocv.IMWrite(fmt.Sprintf("%s/%s.overlay.png", dir, name), overlay)
}
