package qa

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/thywilljoshua/pdf-insights/internal/backend"
)

// Media is the playback element for synthesized narration. Implementations
// report progress through the callback passed to Bind.
type Media interface {
	Bind(notify func(src string, ev MediaEvent))
	Load(ctx context.Context, src string) error
	SetRate(rate float64)
	Play(ctx context.Context) error
	Pause() error
}

// SaveMedia "plays" narration by downloading it to a directory, for terminals
// without an audio device. Playback ends when the file is fully written.
type SaveMedia struct {
	api *backend.Client
	dir string

	mu     sync.Mutex
	notify func(string, MediaEvent)
	src    string
	rate   float64
	cancel context.CancelFunc
	done   chan struct{}
	saved  string
	err    error
}

func NewSaveMedia(api *backend.Client, dir string) *SaveMedia {
	return &SaveMedia{api: api, dir: dir, rate: 1}
}

func (m *SaveMedia) Bind(notify func(string, MediaEvent)) {
	m.mu.Lock()
	m.notify = notify
	m.mu.Unlock()
}

func (m *SaveMedia) Load(_ context.Context, src string) error {
	if src == "" {
		return errors.New("empty audio source")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
	m.src, m.saved, m.err, m.done, m.cancel = src, "", nil, nil, nil
	return nil
}

func (m *SaveMedia) SetRate(rate float64) {
	m.mu.Lock()
	m.rate = rate
	m.mu.Unlock()
}

// Rate is the playback rate last applied.
func (m *SaveMedia) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

func (m *SaveMedia) Play(ctx context.Context) error {
	m.mu.Lock()
	if m.src == "" {
		m.mu.Unlock()
		return errors.New("no audio loaded")
	}
	src, notify := m.src, m.notify
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel, m.done = cancel, done
	m.mu.Unlock()

	emit(notify, src, MediaPlaying)
	go func() {
		defer close(done)
		defer cancel()
		saved, err := m.save(ctx, src)
		m.mu.Lock()
		m.saved, m.err = saved, err
		m.mu.Unlock()
		if err == nil {
			emit(notify, src, MediaEnded)
		}
	}()
	return nil
}

func (m *SaveMedia) Pause() error {
	m.mu.Lock()
	src, notify, cancel := m.src, m.notify, m.cancel
	m.mu.Unlock()
	if cancel == nil {
		return errors.New("not playing")
	}
	cancel()
	emit(notify, src, MediaPaused)
	return nil
}

// Wait blocks until the current playback finishes and returns the saved path.
func (m *SaveMedia) Wait(ctx context.Context) (string, error) {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done == nil {
		return "", errors.New("not playing")
	}
	select {
	case <-done:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved, m.err
}

func (m *SaveMedia) save(ctx context.Context, src string) (string, error) {
	data, err := m.api.GetBytes(ctx, src)
	if err != nil {
		return "", fmt.Errorf("download narration: %w", err)
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", err
	}
	out := filepath.Join(m.dir, narrationFile(src))
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", err
	}
	return out, nil
}

// narrationFile names the saved file after the last path element of src,
// ignoring any query or fragment.
func narrationFile(src string) string {
	p := src
	if u, err := url.Parse(src); err == nil {
		p = u.Path
	}
	name := path.Base(p)
	if name == "" || name == "/" || name == "." {
		return "narration.wav"
	}
	return name
}

func emit(notify func(string, MediaEvent), src string, ev MediaEvent) {
	if notify != nil {
		notify(src, ev)
	}
}
