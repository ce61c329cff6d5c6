package cv

import (
	"image"
	"math"
)

// MatchResult contains the outcome of locating a template within a frame
type MatchResult struct {
	Template   string      // name of the template that produced the match
	Location   image.Point // top-left corner of the best alignment
	Confidence float64     // normalized cross-correlation score, always in [0,1]
}

// Center returns the center point of the matched template area
func (r MatchResult) Center(templateSize image.Point) image.Point {
	return image.Point{
		X: r.Location.X + templateSize.X/2,
		Y: r.Location.Y + templateSize.Y/2,
	}
}

// MatchConfig configures a template search
type MatchConfig struct {
	Threshold    float64          // minimum confidence, 0.0-1.0
	SearchRegion *image.Rectangle // optional: limit the scanned area
}

// DefaultThreshold is applied when a template does not override it.
const DefaultThreshold = 0.8

// Match locates the best alignment of needle within haystack using
// normalized cross-correlation. It returns false when the best score is
// below config.Threshold or the needle cannot fit the search area.
// Deterministic for identical inputs; no side effects.
func Match(haystack, needle *image.RGBA, config MatchConfig) (MatchResult, bool) {
	if haystack == nil || needle == nil {
		return MatchResult{}, false
	}

	haystackBounds := haystack.Bounds()
	needleBounds := needle.Bounds()
	needleWidth := needleBounds.Dx()
	needleHeight := needleBounds.Dy()

	if needleWidth == 0 || needleHeight == 0 {
		return MatchResult{}, false
	}
	if needleWidth > haystackBounds.Dx() || needleHeight > haystackBounds.Dy() {
		return MatchResult{}, false
	}

	searchBounds := haystackBounds
	if config.SearchRegion != nil {
		searchBounds = config.SearchRegion.Intersect(haystackBounds)
		if searchBounds.Empty() {
			return MatchResult{}, false
		}
	}

	maxY := searchBounds.Max.Y - needleHeight
	maxX := searchBounds.Max.X - needleWidth
	if maxY < searchBounds.Min.Y || maxX < searchBounds.Min.X {
		// Needle does not fit inside the search region
		return MatchResult{}, false
	}

	bestScore := -1.0
	bestLocation := image.Point{}

	for y := searchBounds.Min.Y; y <= maxY; y++ {
		for x := searchBounds.Min.X; x <= maxX; x++ {
			score := scoreNCC(haystack, needle, x, y, needleWidth, needleHeight)
			if score > bestScore {
				bestScore = score
				bestLocation = image.Point{X: x, Y: y}
			}
		}
	}

	result := MatchResult{
		Location:   bestLocation,
		Confidence: clamp01(bestScore),
	}
	return result, result.Confidence >= config.Threshold
}

// scoreNCC computes the normalized cross-correlation of the needle against
// the haystack region at (x, y), mapped from [-1,1] to [0,1].
func scoreNCC(haystack, needle *image.RGBA, x, y, width, height int) float64 {
	var sumH, sumN, sumHN, sumHH, sumNN float64
	pixelCount := float64(width * height * 3)

	needleMin := needle.Bounds().Min

	for ny := 0; ny < height; ny++ {
		for nx := 0; nx < width; nx++ {
			hIdx := haystack.PixOffset(x+nx, y+ny)
			nIdx := needle.PixOffset(needleMin.X+nx, needleMin.Y+ny)

			for c := 0; c < 3; c++ {
				h := float64(haystack.Pix[hIdx+c])
				n := float64(needle.Pix[nIdx+c])

				sumH += h
				sumN += n
				sumHN += h * n
				sumHH += h * h
				sumNN += n * n
			}
		}
	}

	numerator := sumHN - (sumH * sumN / pixelCount)
	denomH := math.Sqrt(sumHH - (sumH * sumH / pixelCount))
	denomN := math.Sqrt(sumNN - (sumN * sumN / pixelCount))

	if denomH == 0 || denomN == 0 {
		// Flat region or flat template: correlation undefined, treat as
		// perfect only when both are flat and equal in mean
		if denomH == 0 && denomN == 0 && math.Abs(sumH-sumN) < 1e-9 {
			return 1.0
		}
		return 0
	}

	correlation := numerator / (denomH * denomN)
	return (correlation + 1.0) / 2.0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// CropRegion extracts a rectangular region as a zero-based image
func CropRegion(img *image.RGBA, rect image.Rectangle) *image.RGBA {
	cropped := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			cropped.SetRGBA(x-rect.Min.X, y-rect.Min.Y, img.RGBAAt(x, y))
		}
	}
	return cropped
}
