// Package render draws grading diagnostics onto a copy of the sheet image.
package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"omr-grader/internal/consensus"
	"omr-grader/internal/mapping"
)

var (
	colorWinner   = color.RGBA{G: 180, A: 255}
	colorMultiple = color.RGBA{R: 255, G: 140, A: 255}
	colorOption   = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	colorLabel    = color.RGBA{R: 200, A: 255}
)

// Overlay renders questions and resolved answers onto a BGR copy of the
// grayscale sheet. The caller owns the returned mat; write it out with
// gocv.IMWrite.
func Overlay(gray gocv.Mat, questions map[int]mapping.Question, answers []consensus.Answer) gocv.Mat {
	out := gocv.NewMat()
	gocv.CvtColor(gray, &out, gocv.ColorGrayToBGR)

	byQuestion := make(map[int]consensus.Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.Question] = a
	}

	for num, q := range questions {
		answer, resolved := byQuestion[num]
		for _, opt := range q.Options {
			rect := image.Rect(opt.Box.X, opt.Box.Y,
				opt.Box.X+opt.Box.Width, opt.Box.Y+opt.Box.Height)

			c := colorOption
			thickness := 1
			if resolved && string(opt.Letter) == answer.Option {
				thickness = 2
				c = colorWinner
				if answer.Multiple {
					c = colorMultiple
				}
			}
			gocv.Rectangle(&out, rect, c, thickness)
		}

		if len(q.Options) > 0 {
			label := fmt.Sprintf("%d", num)
			if resolved && answer.State == consensus.StateBlank {
				label += " -"
			}
			first := q.Options[0].Box
			origin := image.Point{X: first.X - 28, Y: first.Y + first.Height}
			gocv.PutText(&out, label, origin, gocv.FontHersheySimplex, 0.5, colorLabel, 1)
		}
	}

	return out
}
