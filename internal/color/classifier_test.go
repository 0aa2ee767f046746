package color

import "testing"

func TestClassifyTable(t *testing.T) {
	cases := []struct {
		name    string
		h, s, v float64
		want    string
	}{
		{"red low band", 5, 200, 200, "red"},
		{"red high band", 175, 200, 200, "red"},
		{"red low edge", 10, 50, 50, "red"},
		{"orange low edge", 11, 50, 50, "orange"},
		{"orange", 18, 180, 180, "orange"},
		{"yellow", 30, 180, 180, "yellow"},
		{"green", 60, 180, 180, "green"},
		{"green high edge", 85, 50, 50, "green"},
		{"cyan low edge", 86, 50, 50, "cyan"},
		{"cyan", 90, 180, 180, "cyan"},
		{"blue", 110, 180, 180, "blue"},
		{"blue high edge", 130, 50, 50, "blue"},
		{"purple", 140, 180, 180, "purple"},
		{"pink", 160, 180, 180, "pink"},
		{"white", 90, 10, 230, "white"},
		{"white sat edge", 0, 30, 200, "white"},
		{"black", 90, 100, 30, "black"},
		{"black zero", 0, 0, 0, "black"},
		{"gray", 90, 10, 120, "gray"},
		{"gray val edge low", 0, 0, 51, "gray"},
		{"gray val edge high", 180, 30, 199, "gray"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Classify(c.h, c.s, c.v); got != c.want {
				t.Errorf("Classify(%v,%v,%v) = %q, want %q", c.h, c.s, c.v, got, c.want)
			}
		})
	}
}

func TestClassifyFallbacks(t *testing.T) {
	// Saturated but bright gap between table rows, e.g. s in (30,50):
	// falls through to pure hue bucketing.
	cases := []struct {
		h, s, v float64
		want    string
	}{
		{5, 40, 220, "red"},
		{172, 40, 220, "red"},
		{20, 40, 220, "orange"},
		{30, 40, 220, "yellow"},
		{70, 40, 220, "green"},
		{90, 40, 220, "cyan"},
		{120, 40, 220, "blue"},
		{150, 40, 220, "purple"},
		{160, 40, 220, "pink"},
		// Beyond the last hue boundary defaults to pink... except the
		// >=170 red test comes first in the bucket chain.
		{169, 40, 220, "pink"},
		// Low saturation fallback (s<30 but outside the table, v in
		// (199,200] hits neither white nor gray rows).
		{90, 20, 199.5, "gray"},
	}

	for _, c := range cases {
		if got := Classify(c.h, c.s, c.v); got != c.want {
			t.Errorf("Classify(%v,%v,%v) = %q, want %q", c.h, c.s, c.v, got, c.want)
		}
	}
}

// Classification must be total: every triple produces a vocabulary name.
func TestClassifyTotal(t *testing.T) {
	names := make(map[string]bool, len(Vocabulary))
	for _, n := range Vocabulary {
		names[n] = true
	}

	for h := 0.0; h <= 180; h += 4.5 {
		for s := 0.0; s <= 255; s += 15 {
			for v := 0.0; v <= 255; v += 15 {
				got := Classify(h, s, v)
				if !names[got] {
					t.Fatalf("Classify(%v,%v,%v) = %q, not in vocabulary", h, s, v, got)
				}
			}
		}
	}
}

func TestIsColorName(t *testing.T) {
	if !IsColorName("red") || !IsColorName("gray") {
		t.Error("vocabulary members not recognized")
	}
	if IsColorName("crimson") || IsColorName("Red") {
		t.Error("non-members recognized")
	}
}
