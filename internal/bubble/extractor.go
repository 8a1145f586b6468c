package bubble

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"omr-grader/internal/config"
	"omr-grader/pkg/geometry"
)

// ExtractCandidates binarizes a grayscale sheet and filters its contours into
// shape-scored bubble candidates. Output order carries no meaning.
// Returns ErrInsufficientSignal when nothing survives the filters.
func ExtractCandidates(gray gocv.Mat, cfg config.DetectionConfig) ([]Candidate, error) {
	if gray.Empty() {
		return nil, ErrInsufficientSignal
	}

	binary := Binarize(gray, cfg.BinarizationAdaptive)
	defer binary.Close()

	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var candidates []Candidate
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)

		area := gocv.ContourArea(contour)
		if area < cfg.MinBubbleArea || area > cfg.MaxBubbleArea {
			continue
		}

		rect := gocv.BoundingRect(contour)
		w, h := rect.Dx(), rect.Dy()
		if w == 0 || h == 0 {
			continue
		}
		aspect := float64(w) / float64(h)
		if aspect < 1-cfg.AspectRatioTolerance || aspect > 1+cfg.AspectRatioTolerance {
			continue
		}

		perimeter := gocv.ArcLength(contour, true)
		if perimeter <= 0 {
			continue
		}
		circularity := 4 * math.Pi * area / (perimeter * perimeter)
		if circularity < cfg.CircularityThreshold {
			continue
		}

		solidity := contourSolidity(contour, area)
		if solidity < cfg.SolidityThreshold {
			continue
		}

		box := geometry.RectInt{X: rect.Min.X, Y: rect.Min.Y, Width: w, Height: h}
		candidates = append(candidates, Candidate{
			Box:         box,
			Center:      box.Center(),
			Area:        area,
			AspectRatio: aspect,
			Circularity: circularity,
			Solidity:    solidity,
			Confidence:  shapeConfidence(area, circularity, solidity, cfg),
		})
	}

	if len(candidates) == 0 {
		return nil, ErrInsufficientSignal
	}
	return candidates, nil
}

// Binarize produces a foreground mask where printed marks are white.
// Adaptive mean thresholding handles uneven phone-photo lighting; Otsu is
// the right choice for flatbed scans. A close-then-open pass stabilizes
// contours the same way the mask cleanup does for via detection.
func Binarize(gray gocv.Mat, adaptive bool) gocv.Mat {
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: 5, Y: 5}, 0, 0, gocv.BorderDefault)

	mask := gocv.NewMat()
	if adaptive {
		gocv.AdaptiveThreshold(blurred, &mask, 255, gocv.AdaptiveThresholdMean, gocv.ThresholdBinaryInv, 25, 10)
	} else {
		gocv.Threshold(blurred, &mask, 0, 255, gocv.ThresholdBinaryInv|gocv.ThresholdOtsu)
	}

	closeKernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 5, Y: 5})
	defer closeKernel.Close()
	gocv.MorphologyEx(mask, &mask, gocv.MorphClose, closeKernel)

	openKernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 3, Y: 3})
	defer openKernel.Close()
	gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, openKernel)

	return mask
}

// contourSolidity computes area / convex hull area for a contour.
func contourSolidity(contour gocv.PointVector, area float64) float64 {
	pts := contour.ToPoints()
	hullPts := make([]geometry.Point2D, len(pts))
	for i, p := range pts {
		hullPts[i] = geometry.Point2D{X: float64(p.X), Y: float64(p.Y)}
	}
	hullArea := geometry.PolygonArea(geometry.ConvexHull(hullPts))
	if hullArea <= 0 {
		return 0
	}
	s := area / hullArea
	if s > 1 {
		s = 1
	}
	return s
}

// shapeConfidence blends normalized area, circularity and solidity into one
// candidate score. Area is normalized against the configured range so a
// mid-sized bubble scores highest.
func shapeConfidence(area, circularity, solidity float64, cfg config.DetectionConfig) float64 {
	span := cfg.MaxBubbleArea - cfg.MinBubbleArea
	normArea := 0.0
	if span > 0 {
		// Distance from the range edges, peaking at the midpoint.
		mid := cfg.MinBubbleArea + span/2
		normArea = 1 - math.Abs(area-mid)/(span/2)
		if normArea < 0 {
			normArea = 0
		}
	}
	conf := 0.4*normArea + 0.35*circularity + 0.25*solidity
	if conf > 1 {
		conf = 1
	}
	return conf
}
