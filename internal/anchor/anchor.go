// Package anchor reads printed question numbers off the sheet margin with
// Tesseract and turns them into row positions. It is an alternate input for
// the coordinate mapper when contour clustering cannot find usable rows;
// the primary path never needs it.
package anchor

import (
	"fmt"
	"image"
	"sort"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"

	"omr-grader/internal/bubble"
	"omr-grader/internal/cluster"
	"omr-grader/internal/config"
)

// RowAnchor is one recognized question number and its position.
type RowAnchor struct {
	Number int     `json:"number"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Engine wraps a Tesseract client restricted to digits.
type Engine struct {
	client *gosseract.Client
}

// NewEngine creates the OCR engine. Callers own Close.
func NewEngine() (*Engine, error) {
	client := gosseract.NewClient()

	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	// Question numbers are bare digits; dictionary correction only hurts.
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")

	return &Engine{client: client}, nil
}

// Close releases OCR resources.
func (e *Engine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// FindAnchors OCRs a vertical strip at the sheet's left edge and returns the
// question numbers it can read, sorted by y. stripWidth of zero uses an
// eighth of the sheet width.
func (e *Engine) FindAnchors(gray gocv.Mat, stripWidth int) ([]RowAnchor, error) {
	if gray.Empty() {
		return nil, fmt.Errorf("empty image")
	}
	if stripWidth <= 0 {
		stripWidth = gray.Cols() / 8
	}
	if stripWidth > gray.Cols() {
		stripWidth = gray.Cols()
	}

	strip := gray.Region(image.Rect(0, 0, stripWidth, gray.Rows()))
	defer strip.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, strip)
	if err != nil {
		return nil, fmt.Errorf("failed to encode strip: %w", err)
	}
	defer buf.Close()

	if err := e.client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return nil, fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := e.client.SetWhitelist("0123456789"); err != nil {
		return nil, fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	var anchors []RowAnchor
	for _, box := range boxes {
		word := strings.TrimSpace(box.Word)
		num, err := strconv.Atoi(word)
		if err != nil || num <= 0 {
			continue
		}
		anchors = append(anchors, RowAnchor{
			Number: num,
			X:      float64(box.Box.Min.X+box.Box.Max.X) / 2,
			Y:      float64(box.Box.Min.Y+box.Box.Max.Y) / 2,
		})
	}

	sort.Slice(anchors, func(i, j int) bool { return anchors[i].Y < anchors[j].Y })
	return anchors, nil
}

// RowsFromAnchors builds rows by collecting the candidates sharing each
// anchor's y-band. Anchors whose band holds fewer than two bubbles are
// skipped. The result feeds layout.Build in place of scan-order clustering.
func RowsFromAnchors(anchors []RowAnchor, cands []bubble.Candidate, cfg config.DetectionConfig) []cluster.Row {
	var rows []cluster.Row
	for _, a := range anchors {
		var members []bubble.Candidate
		for _, c := range cands {
			dy := c.Center.Y - a.Y
			if dy < 0 {
				dy = -dy
			}
			if dy <= cfg.RowTolerance {
				members = append(members, c)
			}
		}
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool {
			return members[i].Center.X < members[j].Center.X
		})
		var sumY float64
		for _, m := range members {
			sumY += m.Center.Y
		}
		rows = append(rows, cluster.Row{Members: members, MeanY: sumY / float64(len(members))})
	}
	return rows
}
