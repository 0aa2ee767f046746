package color

// Vocabulary is the closed set of color names the classifier produces.
var Vocabulary = []string{
	"red", "orange", "yellow", "green", "cyan", "blue",
	"purple", "pink", "white", "black", "gray",
}

// hsvRange is an inclusive box in OpenCV HSV space.
type hsvRange struct {
	loH, hiH float64
	loS, hiS float64
	loV, hiV float64
}

func (r hsvRange) contains(h, s, v float64) bool {
	return h >= r.loH && h <= r.hiH &&
		s >= r.loS && s <= r.hiS &&
		v >= r.loV && v <= r.hiV
}

// colorTable is evaluated in order; the first matching range wins. Red's
// two hue bands are deliberately kept as separate disjoint ranges rather
// than one circular test.
var colorTable = []struct {
	name   string
	ranges []hsvRange
}{
	{"red", []hsvRange{
		{0, 10, 50, 255, 50, 255},
		{170, 180, 50, 255, 50, 255},
	}},
	{"orange", []hsvRange{{11, 25, 50, 255, 50, 255}}},
	{"yellow", []hsvRange{{26, 35, 50, 255, 50, 255}}},
	{"green", []hsvRange{{36, 85, 50, 255, 50, 255}}},
	{"cyan", []hsvRange{{86, 95, 50, 255, 50, 255}}},
	{"blue", []hsvRange{{96, 130, 50, 255, 50, 255}}},
	{"purple", []hsvRange{{131, 155, 50, 255, 50, 255}}},
	{"pink", []hsvRange{{156, 169, 50, 255, 50, 255}}},
	{"white", []hsvRange{{0, 180, 0, 30, 200, 255}}},
	{"black", []hsvRange{{0, 180, 0, 255, 0, 50}}},
	{"gray", []hsvRange{{0, 180, 0, 30, 51, 199}}},
}

// Classify maps an OpenCV-range HSV triple (hue 0-180, saturation and value
// 0-255) to one name from Vocabulary. It is total: every valid triple
// yields exactly one name.
func Classify(h, s, v float64) string {
	for _, entry := range colorTable {
		for _, r := range entry.ranges {
			if r.contains(h, s, v) {
				return entry.name
			}
		}
	}

	// No table range matched: low-saturation colors split on value,
	// everything else buckets purely by hue.
	if s < 30 {
		switch {
		case v > 200:
			return "white"
		case v < 50:
			return "black"
		default:
			return "gray"
		}
	}

	switch {
	case h < 10 || h >= 170:
		return "red"
	case h < 25:
		return "orange"
	case h < 35:
		return "yellow"
	case h < 85:
		return "green"
	case h < 95:
		return "cyan"
	case h < 130:
		return "blue"
	case h < 155:
		return "purple"
	default:
		return "pink"
	}
}

// IsColorName reports whether name (already lowercased) is in Vocabulary.
func IsColorName(name string) bool {
	for _, v := range Vocabulary {
		if v == name {
			return true
		}
	}
	return false
}
