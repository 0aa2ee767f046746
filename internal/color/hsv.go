package color

import "math"

// RGBToHSV converts 8-bit RGB to HSV in OpenCV's 8-bit ranges:
// hue 0..180 (half-degrees), saturation 0..255, value 0..255. Range
// boundaries for the classifier table are defined against these units.
func RGBToHSV(r, g, b uint8) (h, s, v float64) {
	rf := float64(r)
	gf := float64(g)
	bf := float64(b)

	max := math.Max(rf, math.Max(gf, bf))
	min := math.Min(rf, math.Min(gf, bf))
	delta := max - min

	v = max

	if max > 0 {
		s = delta / max * 255.0
	}

	if delta > 0 {
		var deg float64
		switch max {
		case rf:
			deg = 60 * (gf - bf) / delta
		case gf:
			deg = 120 + 60*(bf-rf)/delta
		default:
			deg = 240 + 60*(rf-gf)/delta
		}
		if deg < 0 {
			deg += 360
		}
		h = deg / 2
	}

	return h, s, v
}

// HSVToRGB inverts RGBToHSV, mapping an OpenCV-range HSV triple back to
// 8-bit RGB.
func HSVToRGB(h, s, v float64) (r, g, b uint8) {
	deg := h * 2
	if deg >= 360 {
		deg -= 360
	}
	sf := s / 255.0
	vf := v / 255.0

	c := vf * sf
	x := c * (1 - math.Abs(math.Mod(deg/60, 2)-1))
	m := vf - c

	var rf, gf, bf float64
	switch {
	case deg < 60:
		rf, gf, bf = c, x, 0
	case deg < 120:
		rf, gf, bf = x, c, 0
	case deg < 180:
		rf, gf, bf = 0, c, x
	case deg < 240:
		rf, gf, bf = 0, x, c
	case deg < 300:
		rf, gf, bf = x, 0, c
	default:
		rf, gf, bf = c, 0, x
	}

	r = uint8(math.Round((rf + m) * 255))
	g = uint8(math.Round((gf + m) * 255))
	b = uint8(math.Round((bf + m) * 255))
	return r, g, b
}
