package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/thywilljoshua/pdf-insights/internal/retrieval"
)

const insightPrompt = `You are a careful research assistant. Given ONLY the following passages from a PDF, extract insights for each category below. Do not use any outside knowledge. If a category is not present, return an empty list for it. Be concise and specific.

User highlighted this text:
%q

Related passages:
%s

Return ONLY a JSON object with these keys, each a list of strings:
%s`

// InsightSource asks a Generator for insights grounded in retrieved passages.
// Items that share no prefix with any passage are dropped, so no passages
// means no insights.
type InsightSource struct {
	gen      Generator
	passages PassageFinder
	log      *zap.Logger
}

func NewInsightSource(gen Generator, passages PassageFinder, log *zap.Logger) *InsightSource {
	if log == nil {
		log = zap.NewNop()
	}
	return &InsightSource{gen: gen, passages: passages, log: log.With(zap.String("module", "ai"))}
}

func (s *InsightSource) Insights(ctx context.Context, highlight string) ([]retrieval.Group, error) {
	var related []string
	if s.passages != nil {
		p, err := s.passages(ctx, highlight)
		if err != nil {
			return nil, fmt.Errorf("find passages: %w", err)
		}
		related = p
	}

	out, err := s.gen.Generate(ctx, buildPrompt(highlight, related))
	if err != nil {
		return nil, err
	}
	groups, err := parseGroups(out)
	if err != nil {
		return nil, err
	}
	groups = filterGrounded(groups, related)
	s.log.Debug("insights generated", zap.Int("passages", len(related)), zap.Int("groups", len(groups)))
	return groups, nil
}

func buildPrompt(highlight string, related []string) string {
	schema := make(map[string][]string, len(Categories))
	for _, c := range Categories {
		schema[c] = []string{"..."}
	}
	b, _ := json.MarshalIndent(schema, "", "  ")
	return fmt.Sprintf(insightPrompt, highlight, strings.Join(related, "\n\n"), b)
}

func parseGroups(out string) ([]retrieval.Group, error) {
	js := stripCodeFences(out)
	groups, err := retrieval.DecodeGroups([]byte(js))
	if err == nil {
		return groups, nil
	}
	if s := findFirstJSON(js); s != "" {
		if groups, err2 := retrieval.DecodeGroups([]byte(s)); err2 == nil {
			return groups, nil
		}
	}
	return nil, fmt.Errorf("parse model response: %w", err)
}

func filterGrounded(groups []retrieval.Group, related []string) []retrieval.Group {
	lowered := make([]string, len(related))
	for i, p := range related {
		lowered[i] = strings.ToLower(p)
	}
	out := make([]retrieval.Group, 0, len(groups))
	for _, g := range groups {
		kept := []string{}
		for _, item := range g.Items {
			if grounded(item, lowered) {
				kept = append(kept, item)
			}
		}
		out = append(out, retrieval.Group{Label: g.Label, Items: kept})
	}
	return out
}

func grounded(item string, passages []string) bool {
	item = strings.ToLower(strings.TrimSpace(item))
	if item == "" {
		return false
	}
	if r := []rune(item); len(r) > 10 {
		item = string(r[:10])
	}
	for _, p := range passages {
		if strings.Contains(p, item) {
			return true
		}
	}
	return false
}

// BackendPassages finds related passages through the snippet search route.
func BackendPassages(search func(ctx context.Context, highlight string) ([]retrieval.Snippet, error)) PassageFinder {
	return func(ctx context.Context, highlight string) ([]string, error) {
		snips, err := search(ctx, highlight)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(snips))
		for _, sn := range snips {
			out = append(out, sn.Text)
		}
		return out, nil
	}
}
