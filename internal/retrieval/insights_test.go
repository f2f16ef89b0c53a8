package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeGroups(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    []Group
		wantErr bool
	}{
		{
			name: "backend categories in order",
			body: `{"key_takeaways":["k1"],"did_you_know":[],"contradictions":["c1","c2"]}`,
			want: []Group{
				{Label: "key_takeaways", Items: []string{"k1"}},
				{Label: "did_you_know", Items: []string{}},
				{Label: "contradictions", Items: []string{"c1", "c2"}},
			},
		},
		{
			name: "non array members skipped",
			body: `{"error":"boom","themes":["a", 3]}`,
			want: []Group{{Label: "themes", Items: []string{"a", "3"}}},
		},
		{
			name: "empty object",
			body: `{}`,
			want: []Group{},
		},
		{name: "array root", body: `["a"]`, wantErr: true},
		{name: "invalid", body: `{"a":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeGroups([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
