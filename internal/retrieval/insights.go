package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/thywilljoshua/pdf-insights/internal/backend"
)

// Group is one insight category with its suggestions, in response order.
type Group struct {
	Label string
	Items []string
}

// InsightSource turns highlighted text into categorized suggestions.
type InsightSource interface {
	Insights(ctx context.Context, highlight string) ([]Group, error)
}

type highlightRequest struct {
	Highlight string `json:"highlight"`
}

// BackendSource asks the RAG insights route.
type BackendSource struct {
	api *backend.Client
}

func NewBackendSource(api *backend.Client) *BackendSource {
	return &BackendSource{api: api}
}

func (s *BackendSource) Insights(ctx context.Context, highlight string) ([]Group, error) {
	body, err := s.api.PostJSONRaw(ctx, pathInsights, highlightRequest{Highlight: highlight})
	if err != nil {
		return nil, err
	}
	return DecodeGroups(body)
}

// DecodeGroups reads a JSON object mapping category to a list of strings.
// Categories keep the order they appear in the document. Members that are not
// arrays are skipped, and non-string items are kept in their raw JSON form.
func DecodeGroups(body []byte) ([]Group, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("insights: invalid json")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("insights: expected object, got %s", root.Type)
	}
	groups := []Group{}
	root.ForEach(func(key, value gjson.Result) bool {
		if !value.IsArray() {
			return true
		}
		g := Group{Label: key.String(), Items: []string{}}
		value.ForEach(func(_, item gjson.Result) bool {
			if item.Type == gjson.String {
				g.Items = append(g.Items, item.Str)
			} else {
				g.Items = append(g.Items, item.Raw)
			}
			return true
		})
		groups = append(groups, g)
		return true
	})
	return groups, nil
}
