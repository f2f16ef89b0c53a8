// Package thread holds the append-only conversation shown by the chat-style controllers.
package thread

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Flag marks messages that render as a warning or an error.
type Flag int

const (
	FlagNone Flag = iota
	FlagWarning
	FlagError
)

func (f Flag) String() string {
	switch f {
	case FlagWarning:
		return "warning"
	case FlagError:
		return "error"
	default:
		return "none"
	}
}

// Analysis is the structured persona analysis payload attached to a bot reply.
type Analysis struct {
	Persona struct {
		Role string `json:"role"`
	} `json:"persona"`
	Documents []json.RawMessage `json:"documents"`

	// Raw keeps the full payload for callers that render more than the summary.
	Raw json.RawMessage `json:"-"`
}

func (a *Analysis) UnmarshalJSON(b []byte) error {
	type plain Analysis
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*a = Analysis(p)
	a.Raw = append(json.RawMessage(nil), b...)
	return nil
}

type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
	Analysis  *Analysis
	Flag      Flag
}

// Thread is an ordered, append-only list of messages. Safe for concurrent use.
type Thread struct {
	mu   sync.Mutex
	msgs []Message
	now  func() time.Time
}

func New() *Thread {
	return &Thread{now: time.Now}
}

// Append stamps m with an id and timestamp when missing and adds it to the end.
func (t *Thread) Append(m Message) Message {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if m.Timestamp.IsZero() {
		m.Timestamp = t.now()
	}
	t.msgs = append(t.msgs, m)
	return m
}

// Bot appends a plain bot message.
func (t *Thread) Bot(content string) Message {
	return t.Append(Message{Role: RoleBot, Content: content})
}

// Warn appends a bot warning.
func (t *Thread) Warn(content string) Message {
	return t.Append(Message{Role: RoleBot, Content: content, Flag: FlagWarning})
}

// Fail appends a bot error.
func (t *Thread) Fail(content string) Message {
	return t.Append(Message{Role: RoleBot, Content: content, Flag: FlagError})
}

// User appends a user message.
func (t *Thread) User(content string) Message {
	return t.Append(Message{Role: RoleUser, Content: content})
}

// Messages returns a copy of the thread in order.
func (t *Thread) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

func (t *Thread) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.msgs)
}

// Last returns the newest message, if any.
func (t *Thread) Last() (Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.msgs) == 0 {
		return Message{}, false
	}
	return t.msgs[len(t.msgs)-1], true
}
