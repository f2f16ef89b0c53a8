// Package qa runs the upload, ask and narrate workflow against the Gemini QA routes.
package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/thywilljoshua/pdf-insights/internal/backend"
)

const (
	pathIndex = "/api/gemini/upload"
	pathAsk   = "/api/gemini/summarise"
	pathAudio = "/api/audio/insight"
)

// Messages shown to the user. Each failure replaces the previous message.
const (
	MsgSelectFiles   = "Please select at least one PDF file."
	MsgUploadFailed  = "Upload failed."
	MsgEnterQuestion = "Please enter a question."
	MsgAskFailed     = "Failed to get answer."
	MsgAudioFailed   = "Audio generation failed."
	NoticeIndexed    = "PDFs uploaded and indexed! You can now ask questions."
)

var (
	ErrNoFiles       = errors.New("no files staged")
	ErrUploading     = errors.New("upload in progress")
	ErrNotIndexed    = errors.New("batch not indexed")
	ErrBusy          = errors.New("request already in flight")
	ErrEmptyQuestion = errors.New("empty question")
	ErrNoAnswer      = errors.New("no answer to narrate")
	ErrNotPlaying    = errors.New("narration not playing")
	ErrInvalidRate   = errors.New("unsupported playback rate")
	ErrSuperseded    = errors.New("superseded by a newer request")
	errNotIndexed    = errors.New("backend did not confirm indexing")
)

// PlaybackRates are the narration speeds offered to the user.
var PlaybackRates = []float64{0.75, 1, 1.25, 1.5}

// Answer is the latest reply and the sections it was drawn from.
type Answer struct {
	Question string
	Summary  string
	Sections []string
}

// Snapshot is a consistent read of the pipeline for rendering.
type Snapshot struct {
	Files    []string
	Index    IndexState
	Ask      AskState
	Audio    AudioState
	Answer   Answer
	Error    string
	Notice   string
	CanAsk   bool
	Playing  bool
	Rate     float64
	AudioURL string
}

type indexResponse struct {
	Success bool `json:"success"`
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Summary          string   `json:"summary"`
	RelevantSections []string `json:"relevant_sections"`
}

type audioRequest struct {
	Text  string  `json:"text"`
	Speed float64 `json:"speed"`
}

type audioResponse struct {
	AudioURL string `json:"audio_url"`
}

// Pipeline sequences indexing, asking and narration. Asking is only possible
// while the current batch is indexed. Safe for concurrent use; no lock is held
// across a network call or a Media call.
type Pipeline struct {
	api   *backend.Client
	media Media
	log   *zap.Logger

	mu       sync.Mutex
	batch    Batch
	index    IndexState
	ask      AskState
	audio    AudioState
	answer   Answer
	errMsg   string
	notice   string
	rate     float64
	audioURL string
	// gen advances whenever the answer is discarded, so late replies and
	// late narrations for an older answer can be dropped.
	gen uint64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPlaybackRate sets the initial narration speed.
func WithPlaybackRate(rate float64) Option {
	return func(p *Pipeline) {
		if validRate(rate) {
			p.rate = rate
		}
	}
}

func New(api *backend.Client, media Media, log *zap.Logger, opts ...Option) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pipeline{
		api:   api,
		media: media,
		log:   log.With(zap.String("module", "qa")),
		rate:  1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if media != nil {
		media.Bind(p.HandleMediaEvent)
	}
	return p
}

// Stage adds files to the batch, ignoring names already staged. Any change
// closes the ask gate until the batch is uploaded again.
func (p *Pipeline) Stage(parts ...backend.Part) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index == IndexUploading {
		return 0, ErrUploading
	}
	n := p.batch.Add(parts...)
	if n > 0 {
		p.batchChangedLocked()
	}
	return n, nil
}

// Remove unstages a file by name.
func (p *Pipeline) Remove(name string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index == IndexUploading {
		return false, ErrUploading
	}
	ok := p.batch.Remove(name)
	if ok {
		p.batchChangedLocked()
	}
	return ok, nil
}

func (p *Pipeline) batchChangedLocked() {
	if p.batch.Len() == 0 {
		p.index = IndexEmpty
	} else {
		p.index = IndexStaged
	}
	p.ask = AskIdle
	p.errMsg = ""
	p.notice = ""
	p.discardAnswerLocked()
}

// discardAnswerLocked drops the answer and any narration derived from it.
func (p *Pipeline) discardAnswerLocked() {
	p.gen++
	p.answer = Answer{}
	p.audio = AudioNone
	p.audioURL = ""
}

// Upload sends the whole batch for indexing. Only the backend's success flag
// moves the pipeline to IndexReady; the batch passes or fails as a unit.
func (p *Pipeline) Upload(ctx context.Context) error {
	p.mu.Lock()
	if p.index == IndexUploading {
		p.mu.Unlock()
		return ErrUploading
	}
	if p.batch.Len() == 0 {
		p.errMsg = MsgSelectFiles
		p.mu.Unlock()
		return ErrNoFiles
	}
	parts := p.batch.Parts()
	p.index = IndexUploading
	p.ask = AskIdle
	p.errMsg = ""
	p.notice = ""
	p.discardAnswerLocked()
	p.mu.Unlock()

	var resp indexResponse
	err := p.api.PostMultipart(ctx, pathIndex, "files", parts, &resp)
	if err == nil && !resp.Success {
		err = errNotIndexed
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.index = IndexFailed
		p.errMsg = MsgUploadFailed
		p.log.Warn("index batch failed", zap.Int("files", len(parts)), zap.Error(err))
		return fmt.Errorf("index batch: %w", err)
	}
	p.index = IndexReady
	p.notice = NoticeIndexed
	p.log.Info("batch indexed", zap.Int("files", len(parts)))
	return nil
}

// Ask sends a question about the indexed batch. The previous answer, its
// sections and its narration are cleared before the request is made.
func (p *Pipeline) Ask(ctx context.Context, question string) (Answer, error) {
	q := strings.TrimSpace(question)

	p.mu.Lock()
	if p.index != IndexReady {
		p.mu.Unlock()
		return Answer{}, ErrNotIndexed
	}
	if p.ask == AskPending {
		p.mu.Unlock()
		return Answer{}, ErrBusy
	}
	if q == "" {
		p.errMsg = MsgEnterQuestion
		p.mu.Unlock()
		return Answer{}, ErrEmptyQuestion
	}
	p.ask = AskPending
	p.errMsg = ""
	p.notice = ""
	p.discardAnswerLocked()
	gen := p.gen
	p.mu.Unlock()

	var resp askResponse
	err := p.api.PostJSON(ctx, pathAsk, askRequest{Question: q}, &resp)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return Answer{}, ErrSuperseded
	}
	if err != nil {
		p.ask = AskFailed
		p.errMsg = MsgAskFailed
		p.log.Warn("ask failed", zap.Error(err))
		return Answer{}, fmt.Errorf("ask: %w", err)
	}
	sections := resp.RelevantSections
	if sections == nil {
		sections = []string{}
	}
	p.ask = AskAnswered
	p.answer = Answer{Question: q, Summary: resp.Summary, Sections: sections}
	p.audio = AudioNone
	return cloneAnswer(p.answer), nil
}

// SetPlaybackRate changes the narration speed used by the next PlayAudio.
func (p *Pipeline) SetPlaybackRate(rate float64) error {
	if !validRate(rate) {
		return fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}
	p.mu.Lock()
	p.rate = rate
	p.mu.Unlock()
	return nil
}

// PlayAudio synthesizes narration for the current answer and starts playback.
// The rate is sent with the synthesis request and applied again to the media.
func (p *Pipeline) PlayAudio(ctx context.Context) error {
	p.mu.Lock()
	if p.ask != AskAnswered || p.answer.Summary == "" {
		p.mu.Unlock()
		return ErrNoAnswer
	}
	if p.audio == AudioSynthesizing {
		p.mu.Unlock()
		return ErrBusy
	}
	if p.media == nil {
		p.mu.Unlock()
		return errors.New("no media attached")
	}
	p.audio = AudioSynthesizing
	p.audioURL = ""
	p.errMsg = ""
	gen, text, rate := p.gen, p.answer.Summary, p.rate
	p.mu.Unlock()

	var resp audioResponse
	err := p.api.PostJSON(ctx, pathAudio, audioRequest{Text: text, Speed: rate}, &resp)
	if err == nil && resp.AudioURL == "" {
		err = errors.New("empty audio url")
	}

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		p.audio = AudioNone
		p.errMsg = MsgAudioFailed
		p.mu.Unlock()
		p.log.Warn("audio synthesis failed", zap.Error(err))
		return fmt.Errorf("synthesize audio: %w", err)
	}
	src := p.api.URL(resp.AudioURL)
	p.audio = AudioReady
	p.audioURL = src
	rate = p.rate
	p.mu.Unlock()

	if err := p.media.Load(ctx, src); err != nil {
		return p.mediaFailed(gen, src, fmt.Errorf("load audio: %w", err))
	}
	p.media.SetRate(rate)
	if err := p.media.Play(ctx); err != nil {
		return p.mediaFailed(gen, src, fmt.Errorf("play audio: %w", err))
	}

	p.mu.Lock()
	if gen == p.gen && p.audioURL == src && p.audio == AudioReady {
		p.audio = AudioPlaying
	}
	p.mu.Unlock()
	return nil
}

func (p *Pipeline) mediaFailed(gen uint64, src string, err error) error {
	p.mu.Lock()
	if gen == p.gen && p.audioURL == src {
		p.audio = AudioNone
		p.audioURL = ""
		p.errMsg = MsgAudioFailed
	}
	p.mu.Unlock()
	p.log.Warn("audio playback failed", zap.Error(err))
	return err
}

// Pause pauses narration that is playing.
func (p *Pipeline) Pause() error {
	p.mu.Lock()
	if p.audio != AudioPlaying {
		p.mu.Unlock()
		return ErrNotPlaying
	}
	src := p.audioURL
	p.mu.Unlock()

	if err := p.media.Pause(); err != nil {
		return fmt.Errorf("pause audio: %w", err)
	}
	p.HandleMediaEvent(src, MediaPaused)
	return nil
}

// Resume continues paused narration, or restarts narration that ended.
func (p *Pipeline) Resume(ctx context.Context) error {
	p.mu.Lock()
	if p.audio != AudioPaused && p.audio != AudioEnded {
		p.mu.Unlock()
		return ErrNotPlaying
	}
	src, rate := p.audioURL, p.rate
	p.mu.Unlock()

	p.media.SetRate(rate)
	if err := p.media.Play(ctx); err != nil {
		return fmt.Errorf("resume audio: %w", err)
	}
	p.HandleMediaEvent(src, MediaPlaying)
	return nil
}

// HandleMediaEvent applies a playback event. Events for any source other than
// the current narration are ignored.
func (p *Pipeline) HandleMediaEvent(src string, ev MediaEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if src == "" || src != p.audioURL {
		return
	}
	switch p.audio {
	case AudioReady, AudioPlaying, AudioPaused, AudioEnded:
	default:
		return
	}
	switch ev {
	case MediaPlaying:
		p.audio = AudioPlaying
	case MediaPaused:
		if p.audio == AudioPlaying {
			p.audio = AudioPaused
		}
	case MediaEnded:
		p.audio = AudioEnded
	}
}

// CanAsk reports whether the ask control is enabled.
func (p *Pipeline) CanAsk() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index == IndexReady && p.ask != AskPending
}

func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		Files:    p.batch.Names(),
		Index:    p.index,
		Ask:      p.ask,
		Audio:    p.audio,
		Answer:   cloneAnswer(p.answer),
		Error:    p.errMsg,
		Notice:   p.notice,
		CanAsk:   p.index == IndexReady && p.ask != AskPending,
		Playing:  p.audio == AudioPlaying,
		Rate:     p.rate,
		AudioURL: p.audioURL,
	}
}

// Excerpt shortens a relevant section for display.
func Excerpt(section string) string {
	const max = 200
	r := []rune(section)
	if len(r) <= max {
		return section
	}
	return string(r[:max]) + "..."
}

func validRate(rate float64) bool {
	for _, r := range PlaybackRates {
		if r == rate {
			return true
		}
	}
	return false
}

func cloneAnswer(a Answer) Answer {
	if a.Sections != nil {
		a.Sections = append([]string{}, a.Sections...)
	}
	return a
}
