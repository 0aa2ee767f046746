// Package intent turns free-text requests like "find a red car" into
// structured object/color targets. An optional Gemini-backed extractor
// handles messy phrasing; a deterministic local parser covers the rest
// and every failure mode of the remote one.
package intent

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/framehound/framehound/internal/match"
)

// Result is the parsed form of a query.
type Result struct {
	Pairs   []match.Query `json:"pairs"`
	Targets []string      `json:"targets"`
	Colors  []string      `json:"colors"`
}

// Extractor is the remote intent collaborator. Implementations may fail;
// callers always have the local fallback behind them.
type Extractor interface {
	Extract(ctx context.Context, query string) ([]match.Query, error)
}

// Parser resolves query text, preferring the remote extractor when one
// is configured and falling back to local tokenization otherwise.
type Parser struct {
	logger zerolog.Logger
	remote Extractor
}

// NewParser builds a parser. remote may be nil, in which case only the
// local fallback runs.
func NewParser(logger zerolog.Logger, remote Extractor) *Parser {
	return &Parser{
		logger: logger.With().Str("component", "intent").Logger(),
		remote: remote,
	}
}

// Parse never returns an error: remote failures are logged and absorbed
// by the fallback. Empty input yields empty lists.
func (p *Parser) Parse(ctx context.Context, query string) Result {
	if p.remote != nil {
		pairs, err := p.remote.Extract(ctx, query)
		if err != nil {
			p.logger.Warn().Err(err).Msg("remote intent extraction failed, using fallback")
		} else if len(pairs) > 0 {
			return resultFromPairs(pairs)
		}
	}
	return ParseFallback(query)
}

// resultFromPairs rebuilds the target and color lists from remote pairs,
// so both paths produce the same shape.
func resultFromPairs(pairs []match.Query) Result {
	res := Result{
		Pairs:   make([]match.Query, 0, len(pairs)),
		Targets: []string{},
		Colors:  []string{},
	}
	seenTarget := make(map[string]struct{})
	seenColor := make(map[string]struct{})
	for _, q := range pairs {
		n := q.Normalize()
		if n.Object == "" {
			continue
		}
		res.Pairs = append(res.Pairs, n)
		if _, ok := seenTarget[n.Object]; !ok {
			seenTarget[n.Object] = struct{}{}
			res.Targets = append(res.Targets, n.Object)
		}
		if n.Color != "" {
			if _, ok := seenColor[n.Color]; !ok {
				seenColor[n.Color] = struct{}{}
				res.Colors = append(res.Colors, n.Color)
			}
		}
	}
	return res
}
