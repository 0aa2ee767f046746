package intent

import (
	"regexp"
	"strings"

	"github.com/framehound/framehound/internal/color"
	"github.com/framehound/framehound/internal/match"
)

// Filler words stripped before matching. Short words (<3 chars) never
// make it past tokenization in the first place.
var stopwords = map[string]struct{}{
	"find": {}, "show": {}, "frame": {}, "frames": {}, "with": {},
	"please": {}, "can": {}, "you": {}, "the": {}, "any": {},
	"all": {}, "for": {}, "look": {}, "search": {}, "detect": {},
	"spot": {}, "every": {}, "video": {}, "footage": {}, "objects": {},
	"and": {},
}

var wordPattern = regexp.MustCompile(`\b[a-z]{3,}\b`)

// ParseFallback is the deterministic local parser. It lowercases the
// query, keeps words of length >= 3, drops stopwords, and pairs each
// color word with the object word that immediately follows it. Colors
// and objects that end up unpaired are still reported in their own
// lists. It never fails; empty input yields empty lists.
func ParseFallback(query string) Result {
	res := Result{
		Pairs:   []match.Query{},
		Targets: []string{},
		Colors:  []string{},
	}

	tokens := wordPattern.FindAllString(strings.ToLower(query), -1)
	filtered := tokens[:0]
	for _, tok := range tokens {
		if _, skip := stopwords[tok]; skip {
			continue
		}
		filtered = append(filtered, tok)
	}

	seenTarget := make(map[string]struct{})
	seenColor := make(map[string]struct{})
	addTarget := func(name string) {
		if _, ok := seenTarget[name]; !ok {
			seenTarget[name] = struct{}{}
			res.Targets = append(res.Targets, name)
		}
	}
	addColor := func(name string) {
		if _, ok := seenColor[name]; !ok {
			seenColor[name] = struct{}{}
			res.Colors = append(res.Colors, name)
		}
	}

	for i := 0; i < len(filtered); i++ {
		tok := filtered[i]
		if !color.IsColorName(tok) {
			addTarget(tok)
			continue
		}
		addColor(tok)
		if i+1 < len(filtered) && !color.IsColorName(filtered[i+1]) {
			res.Pairs = append(res.Pairs, match.Query{Object: filtered[i+1], Color: tok})
			addTarget(filtered[i+1])
			i++
		}
	}

	return res
}
