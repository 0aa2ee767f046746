package color

import (
	"image"
	"math"
	"math/rand"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
)

// Sample is a named dominant color with its RGB rendering.
type Sample struct {
	Name string
	RGB  [3]uint8
}

// Extractor computes the dominant color of a detection region by clustering
// its pixels in HSV space. Extraction never fails upward: any degenerate
// geometry or clustering problem yields ok=false and the detection simply
// carries no color.
type Extractor struct {
	logger zerolog.Logger
	params KMeansParams

	// maxDim caps the longest crop side before clustering; larger crops
	// are downscaled proportionally.
	maxDim int
	// minSide is the smallest usable crop side.
	minSide int
	seed    int64
}

// NewExtractor creates an extractor with the standard parameters:
// k=3 clusters, 200px downscale cap, 5px minimum region side.
func NewExtractor(logger zerolog.Logger) *Extractor {
	return &Extractor{
		logger:  logger.With().Str("component", "color-extractor").Logger(),
		params:  DefaultKMeansParams(),
		maxDim:  200,
		minSide: 5,
		seed:    0x66666,
	}
}

// Extract returns the dominant color of the bbox region of frame, or
// ok=false when the region is degenerate or clustering fails.
func (e *Extractor) Extract(frame image.Image, bbox [4]float64) (Sample, bool) {
	bounds := frame.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return Sample{}, false
	}

	x1 := clampInt(int(bbox[0]), 0, width-1)
	y1 := clampInt(int(bbox[1]), 0, height-1)
	x2 := clampInt(int(bbox[2]), 0, width)
	y2 := clampInt(int(bbox[3]), 0, height)

	if x2 <= x1 || y2 <= y1 {
		e.logger.Debug().Floats64("bbox", bbox[:]).Msg("degenerate bbox, no color")
		return Sample{}, false
	}
	if x2-x1 < e.minSide || y2-y1 < e.minSide {
		e.logger.Debug().Floats64("bbox", bbox[:]).Msg("region too small for color extraction")
		return Sample{}, false
	}

	crop := cropRGBA(frame, x1, y1, x2, y2)

	// Downscale large regions before clustering.
	cw, ch := crop.Bounds().Dx(), crop.Bounds().Dy()
	if longest := maxInt(cw, ch); longest > e.maxDim {
		scale := float64(e.maxDim) / float64(longest)
		nw := uint(math.Max(1, float64(cw)*scale))
		nh := uint(math.Max(1, float64(ch)*scale))
		crop = toRGBA(resize.Resize(nw, nh, crop, resize.Bilinear))
	}

	points := hsvPixels(crop)
	if len(points) == 0 {
		return Sample{}, false
	}

	rng := rand.New(rand.NewSource(e.seed))
	centroids, counts, err := KMeans(points, e.params, rng)
	if err != nil {
		e.logger.Debug().Err(err).Msg("pixel clustering failed, no color")
		return Sample{}, false
	}

	dominant := 0
	for c := 1; c < len(counts); c++ {
		if counts[c] > counts[dominant] {
			dominant = c
		}
	}

	// Quantize the centroid before naming and rendering, so the name and
	// the RGB triple describe the same color.
	h := clampFloat(math.Round(centroids[dominant][0]), 0, 180)
	s := clampFloat(math.Round(centroids[dominant][1]), 0, 255)
	v := clampFloat(math.Round(centroids[dominant][2]), 0, 255)

	r, g, b := HSVToRGB(h, s, v)
	return Sample{
		Name: Classify(h, s, v),
		RGB:  [3]uint8{r, g, b},
	}, true
}

// hsvPixels flattens a crop into HSV observation vectors.
func hsvPixels(img *image.RGBA) [][3]float64 {
	bounds := img.Bounds()
	points := make([][3]float64, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := img.Pix[(y-bounds.Min.Y)*img.Stride:]
		for x := 0; x < bounds.Dx(); x++ {
			o := x * 4
			h, s, v := RGBToHSV(row[o], row[o+1], row[o+2])
			points = append(points, [3]float64{h, s, v})
		}
	}
	return points
}

// cropRGBA copies a region of any image into a fresh RGBA.
func cropRGBA(src image.Image, x1, y1, x2, y2 int) *image.RGBA {
	min := src.Bounds().Min
	dst := image.NewRGBA(image.Rect(0, 0, x2-x1, y2-y1))
	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			dst.Set(x-x1, y-y1, src.At(min.X+x, min.Y+y))
		}
	}
	return dst
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			dst.Set(x-bounds.Min.X, y-bounds.Min.Y, img.At(x, y))
		}
	}
	return dst
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
