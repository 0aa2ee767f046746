package detect

import (
	"context"
	"image"
)

// BBox is a detection box in pixel coordinates, ordered x1, y1, x2, y2.
// It marshals as a JSON array, matching the result payload schema.
type BBox [4]float64

// Clamp clips the box to frame bounds in place.
func (b *BBox) Clamp(width, height int) {
	w, h := float64(width), float64(height)
	if b[0] < 0 {
		b[0] = 0
	}
	if b[1] < 0 {
		b[1] = 0
	}
	if b[2] > w {
		b[2] = w
	}
	if b[3] > h {
		b[3] = h
	}
}

// Width returns x2-x1.
func (b BBox) Width() float64 { return b[2] - b[0] }

// Height returns y2-y1.
func (b BBox) Height() float64 { return b[3] - b[1] }

// Area returns the box area, 0 for degenerate boxes.
func (b BBox) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Detection is a single detector result for a frame. Color fields are
// attached later by the color extractor and are absent until then.
type Detection struct {
	Class      string    `json:"class"`
	Confidence float64   `json:"confidence"`
	BBox       BBox      `json:"bbox"`
	Color      string    `json:"color,omitempty"`
	ColorRGB   *[3]uint8 `json:"color_rgb,omitempty"`
}

// Detector runs object detection on a single frame. Implementations are
// expensive to construct, read-only afterwards, and safe to share across
// concurrent pipeline runs.
type Detector interface {
	Infer(ctx context.Context, frame image.Image) ([]Detection, error)
	Close() error
}

// FilterByConfidence returns the subsequence of detections with
// confidence >= threshold, preserving relative order. The lower bound is
// inclusive: a detection at exactly the threshold is kept.
func FilterByConfidence(detections []Detection, threshold float64) []Detection {
	if len(detections) == 0 {
		return nil
	}
	kept := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if d.Confidence >= threshold {
			kept = append(kept, d)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}
