package thread

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThread_AppendOrder(t *testing.T) {
	th := New()
	th.Bot("hello")
	th.User("question")
	th.Warn("careful")
	th.Fail("broken")

	msgs := th.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, RoleBot, msgs[0].Role)
	assert.Equal(t, RoleUser, msgs[1].Role)
	assert.Equal(t, FlagWarning, msgs[2].Flag)
	assert.Equal(t, FlagError, msgs[3].Flag)
	for _, m := range msgs {
		assert.NotEmpty(t, m.ID)
		assert.False(t, m.Timestamp.IsZero())
	}
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)

	last, ok := th.Last()
	require.True(t, ok)
	assert.Equal(t, "broken", last.Content)
}

func TestThread_MessagesIsCopy(t *testing.T) {
	th := New()
	th.Bot("a")
	msgs := th.Messages()
	msgs[0].Content = "changed"
	assert.Equal(t, "a", th.Messages()[0].Content)
}

func TestThread_ConcurrentAppend(t *testing.T) {
	th := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			th.User("x")
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, th.Len())
}

func TestAnalysis_KeepsRaw(t *testing.T) {
	var a Analysis
	payload := `{"persona":{"role":"Student"},"documents":[{"doc_id":"1"},{"doc_id":"2"}],"extra":true}`
	require.NoError(t, json.Unmarshal([]byte(payload), &a))
	assert.Equal(t, "Student", a.Persona.Role)
	assert.Len(t, a.Documents, 2)
	assert.JSONEq(t, payload, string(a.Raw))
}
