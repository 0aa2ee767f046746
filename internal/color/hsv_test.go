package color

import (
	"math"
	"testing"
)

func TestRGBToHSVKnownColors(t *testing.T) {
	cases := []struct {
		name    string
		r, g, b uint8
		h, s, v float64
	}{
		{"black", 0, 0, 0, 0, 0, 0},
		{"white", 255, 255, 255, 0, 0, 255},
		{"red", 255, 0, 0, 0, 255, 255},
		{"green", 0, 255, 0, 60, 255, 255},
		{"blue", 0, 0, 255, 120, 255, 255},
		{"yellow", 255, 255, 0, 30, 255, 255},
		{"cyan", 0, 255, 255, 90, 255, 255},
		{"magenta", 255, 0, 255, 150, 255, 255},
		{"mid gray", 128, 128, 128, 0, 0, 128},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h, s, v := RGBToHSV(c.r, c.g, c.b)
			if math.Abs(h-c.h) > 0.5 || math.Abs(s-c.s) > 0.5 || math.Abs(v-c.v) > 0.5 {
				t.Errorf("RGBToHSV(%d,%d,%d) = (%v,%v,%v), want (%v,%v,%v)",
					c.r, c.g, c.b, h, s, v, c.h, c.s, c.v)
			}
		})
	}
}

func TestHSVRoundTrip(t *testing.T) {
	colors := [][3]uint8{
		{255, 0, 0}, {0, 255, 0}, {0, 0, 255},
		{255, 128, 0}, {30, 200, 90}, {250, 250, 250},
		{17, 17, 17}, {200, 40, 160},
	}

	for _, c := range colors {
		h, s, v := RGBToHSV(c[0], c[1], c[2])
		r, g, b := HSVToRGB(h, s, v)
		// Quantization through half-degree hue loses a little precision.
		if absDiff(r, c[0]) > 3 || absDiff(g, c[1]) > 3 || absDiff(b, c[2]) > 3 {
			t.Errorf("round trip %v -> (%v,%v,%v) -> (%d,%d,%d)", c, h, s, v, r, g, b)
		}
	}
}

func absDiff(a, b uint8) int {
	d := int(a) - int(b)
	if d < 0 {
		return -d
	}
	return d
}
