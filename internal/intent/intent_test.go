package intent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/framehound/framehound/internal/match"
)

func TestFallbackRedCar(t *testing.T) {
	got := ParseFallback("find a red car")

	want := Result{
		Pairs:   []match.Query{{Object: "car", Color: "red"}},
		Targets: []string{"car"},
		Colors:  []string{"red"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseFallback mismatch (-want +got):\n%s", diff)
	}
}

func TestFallbackEmptyInput(t *testing.T) {
	for _, query := range []string{"", "   ", "a an to"} {
		got := ParseFallback(query)
		if len(got.Pairs) != 0 || len(got.Targets) != 0 || len(got.Colors) != 0 {
			t.Errorf("ParseFallback(%q) = %+v, want empty lists", query, got)
		}
		if got.Pairs == nil || got.Targets == nil || got.Colors == nil {
			t.Errorf("ParseFallback(%q) returned nil slices", query)
		}
	}
}

func TestFallbackUnpairedColor(t *testing.T) {
	// Color at the end of the query has nothing to attach to.
	got := ParseFallback("show me anything blue")

	if len(got.Pairs) != 0 {
		t.Errorf("unexpected pairs %v", got.Pairs)
	}
	if diff := cmp.Diff([]string{"blue"}, got.Colors); diff != "" {
		t.Errorf("colors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"anything"}, got.Targets); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}
}

func TestFallbackAdjacentColors(t *testing.T) {
	// Two colors in a row: only the second pairs with the object.
	got := ParseFallback("red blue truck")

	want := Result{
		Pairs:   []match.Query{{Object: "truck", Color: "blue"}},
		Targets: []string{"truck"},
		Colors:  []string{"red", "blue"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseFallback mismatch (-want +got):\n%s", diff)
	}
}

func TestFallbackStopwordsAndShortWords(t *testing.T) {
	got := ParseFallback("Please FIND every Green Bicycle in the video footage")

	want := Result{
		Pairs:   []match.Query{{Object: "bicycle", Color: "green"}},
		Targets: []string{"bicycle"},
		Colors:  []string{"green"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseFallback mismatch (-want +got):\n%s", diff)
	}
}

func TestFallbackMultiplePairs(t *testing.T) {
	got := ParseFallback("find a red car and a blue shirt")

	wantPairs := []match.Query{
		{Object: "car", Color: "red"},
		{Object: "shirt", Color: "blue"},
	}
	if diff := cmp.Diff(wantPairs, got.Pairs); diff != "" {
		t.Errorf("pairs mismatch (-want +got):\n%s", diff)
	}
}

type fakeExtractor struct {
	pairs []match.Query
	err   error
}

func (f *fakeExtractor) Extract(_ context.Context, _ string) ([]match.Query, error) {
	return f.pairs, f.err
}

func TestParserPrefersRemote(t *testing.T) {
	remote := &fakeExtractor{pairs: []match.Query{{Object: "person", Color: "blue"}}}
	p := NewParser(zerolog.Nop(), remote)

	got := p.Parse(context.Background(), "someone wearing blue")
	want := Result{
		Pairs:   []match.Query{{Object: "person", Color: "blue"}},
		Targets: []string{"person"},
		Colors:  []string{"blue"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse mismatch (-want +got):\n%s", diff)
	}
}

func TestParserFallsBackOnRemoteError(t *testing.T) {
	remote := &fakeExtractor{err: errors.New("upstream down")}
	p := NewParser(zerolog.Nop(), remote)

	got := p.Parse(context.Background(), "find a red car")
	if diff := cmp.Diff([]match.Query{{Object: "car", Color: "red"}}, got.Pairs); diff != "" {
		t.Errorf("fallback pairs mismatch (-want +got):\n%s", diff)
	}
}

func TestParserFallsBackOnEmptyRemote(t *testing.T) {
	p := NewParser(zerolog.Nop(), &fakeExtractor{})

	got := p.Parse(context.Background(), "find a red car")
	if len(got.Pairs) != 1 || got.Pairs[0].Object != "car" {
		t.Errorf("expected fallback result, got %+v", got)
	}
}

func TestGeminiClientExtract(t *testing.T) {
	reply := map[string]any{
		"candidates": []map[string]any{
			{
				"content": map[string]any{
					"parts": []map[string]string{
						{"text": "Here you go:\n{\"pairs\": [{\"object\": \"car\", \"color\": \"red\"}, {\"object\": \"dog\", \"color\": null}]}"},
					},
				},
			},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key in query, got %q", r.URL.RawQuery)
		}
		if err := json.NewEncoder(w).Encode(reply); err != nil {
			t.Fatal(err)
		}
	}))
	defer srv.Close()

	c := NewGeminiClient("test-key")
	c.BaseURL = srv.URL

	pairs, err := c.Extract(context.Background(), "find a red car and a dog")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := []match.Query{{Object: "car", Color: "red"}, {Object: "dog"}}
	if diff := cmp.Diff(want, pairs); diff != "" {
		t.Errorf("pairs mismatch (-want +got):\n%s", diff)
	}
}

func TestGeminiClientErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, "boom"},
		{"no candidates", http.StatusOK, `{"candidates": []}`},
		{"no json in reply", http.StatusOK, `{"candidates": [{"content": {"parts": [{"text": "sorry, no"}]}}]}`},
		{"malformed json blob", http.StatusOK, `{"candidates": [{"content": {"parts": [{"text": "{\"pairs\": oops}"}]}}]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewGeminiClient("k")
			c.BaseURL = srv.URL
			if _, err := c.Extract(context.Background(), "find a cat"); err == nil {
				t.Error("expected error")
			}
		})
	}
}
