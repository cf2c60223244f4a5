package asr

import "fmt"

// StatusKind enumerates model lifecycle states.
type StatusKind int

const (
	StatusNotLoaded StatusKind = iota
	StatusDownloading
	StatusLoading
	StatusLoaded
	StatusError
)

func (k StatusKind) String() string {
	switch k {
	case StatusNotLoaded:
		return "not_loaded"
	case StatusDownloading:
		return "downloading"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ModelStatus describes the speech model independently of the pipeline phase.
// Progress is meaningful for StatusDownloading, Message for StatusError.
type ModelStatus struct {
	Kind     StatusKind `json:"kind"`
	Progress float64    `json:"progress,omitempty"`
	Message  string     `json:"message,omitempty"`
}

func NotLoaded() ModelStatus { return ModelStatus{Kind: StatusNotLoaded} }
func Loading() ModelStatus   { return ModelStatus{Kind: StatusLoading} }
func Loaded() ModelStatus    { return ModelStatus{Kind: StatusLoaded} }

// Downloading clamps p into [0,1].
func Downloading(p float64) ModelStatus {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return ModelStatus{Kind: StatusDownloading, Progress: p}
}

func Failed(msg string) ModelStatus { return ModelStatus{Kind: StatusError, Message: msg} }

func (s ModelStatus) IsLoaded() bool { return s.Kind == StatusLoaded }

func (s ModelStatus) String() string {
	switch s.Kind {
	case StatusDownloading:
		return fmt.Sprintf("downloading %d%%", int(s.Progress*100))
	case StatusError:
		return "error: " + s.Message
	default:
		return s.Kind.String()
	}
}
