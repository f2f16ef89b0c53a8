package qa

// IndexState tracks the upload-and-index step for the staged batch.
type IndexState int

const (
	IndexEmpty IndexState = iota
	IndexStaged
	IndexUploading
	IndexReady
	IndexFailed
)

func (s IndexState) String() string {
	switch s {
	case IndexEmpty:
		return "empty"
	case IndexStaged:
		return "files-staged"
	case IndexUploading:
		return "uploading"
	case IndexReady:
		return "indexed"
	case IndexFailed:
		return "upload-failed"
	default:
		return "unknown"
	}
}

// AskState tracks the question/answer exchange.
type AskState int

const (
	AskIdle AskState = iota
	AskPending
	AskAnswered
	AskFailed
)

func (s AskState) String() string {
	switch s {
	case AskIdle:
		return "idle"
	case AskPending:
		return "asking"
	case AskAnswered:
		return "answered"
	case AskFailed:
		return "ask-failed"
	default:
		return "unknown"
	}
}

// AudioState tracks narration of the latest answer.
type AudioState int

const (
	AudioNone AudioState = iota
	AudioSynthesizing
	AudioReady
	AudioPlaying
	AudioPaused
	AudioEnded
)

func (s AudioState) String() string {
	switch s {
	case AudioNone:
		return "none"
	case AudioSynthesizing:
		return "synthesizing"
	case AudioReady:
		return "ready"
	case AudioPlaying:
		return "playing"
	case AudioPaused:
		return "paused"
	case AudioEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// MediaEvent is reported by a Media implementation as playback progresses.
type MediaEvent int

const (
	MediaPlaying MediaEvent = iota
	MediaPaused
	MediaEnded
)
