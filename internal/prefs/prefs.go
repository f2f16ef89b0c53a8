// Package prefs owns user display preferences. The theme has one mutation
// entry point and is fanned out to every subscribed surface.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"

	// DefaultTheme applies when nothing has been stored.
	DefaultTheme = ThemeLight
)

var ErrInvalidTheme = errors.New("invalid theme")

func (t Theme) Valid() bool { return t == ThemeLight || t == ThemeDark }

// Opposite returns the theme a toggle switches to.
func (t Theme) Opposite() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// ParseTheme accepts "light" or "dark".
func ParseTheme(s string) (Theme, error) {
	t := Theme(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTheme, s)
	}
	return t, nil
}

type stored struct {
	Theme Theme `toml:"theme"`
}

// Service holds the current theme and persists changes to a TOML file.
// An empty path keeps preferences in memory only.
type Service struct {
	path string
	log  *zap.Logger

	mu    sync.Mutex
	theme Theme
	subs  map[int]func(Theme)
	next  int
}

func NewService(path string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		path:  path,
		log:   log.With(zap.String("module", "prefs")),
		theme: DefaultTheme,
		subs:  make(map[int]func(Theme)),
	}
}

// Load reads the stored theme. A missing file leaves the default in place;
// an unreadable or invalid file also falls back to the default and is reported.
func (s *Service) Load() (Theme, error) {
	if s.path == "" {
		return s.Theme(), nil
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s.Theme(), nil
	}
	if err != nil {
		return s.Theme(), fmt.Errorf("read preferences: %w", err)
	}
	var st stored
	if err := toml.Unmarshal(data, &st); err != nil {
		return s.Theme(), fmt.Errorf("parse preferences %s: %w", s.path, err)
	}
	if !st.Theme.Valid() {
		s.log.Warn("ignoring stored theme", zap.String("theme", string(st.Theme)))
		return s.Theme(), nil
	}
	s.mu.Lock()
	s.theme = st.Theme
	s.mu.Unlock()
	return st.Theme, nil
}

func (s *Service) Theme() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// SetTheme stores t and notifies subscribers when it changed.
func (s *Service) SetTheme(t Theme) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, t)
	}
	s.mu.Lock()
	if s.theme == t {
		s.mu.Unlock()
		return nil
	}
	s.theme = t
	subs := s.subscribersLocked()
	s.mu.Unlock()

	err := s.save(t)
	for _, fn := range subs {
		fn(t)
	}
	s.log.Debug("theme changed", zap.String("theme", string(t)), zap.Int("subscribers", len(subs)))
	return err
}

// Toggle switches between light and dark and returns the new theme.
func (s *Service) Toggle() (Theme, error) {
	t := s.Theme().Opposite()
	return t, s.SetTheme(t)
}

// Subscribe registers fn for theme changes and returns a function that
// removes it. fn is not called with the current theme.
func (s *Service) Subscribe(fn func(Theme)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Service) subscribersLocked() []func(Theme) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Theme), len(ids))
	for i, id := range ids {
		out[i] = s.subs[id]
	}
	return out
}

func (s *Service) save(t Theme) error {
	if s.path == "" {
		return nil
	}
	data, err := toml.Marshal(stored{Theme: t})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
