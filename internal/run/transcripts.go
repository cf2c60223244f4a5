package run

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"holdtalk/internal/control"
	"holdtalk/internal/pipeline"

	"github.com/sirupsen/logrus"
)

// transcriptLog keeps the last few transcripts for status and appends every
// one to a file.
type transcriptLog struct {
	path   string
	tail   int
	logger *logrus.Logger

	mu      sync.Mutex
	entries []control.Transcript
}

func newTranscriptLog(path string, tail int, logger *logrus.Logger) *transcriptLog {
	if tail <= 0 {
		tail = 1
	}
	return &transcriptLog{path: path, tail: tail, logger: logger, entries: make([]control.Transcript, 0, tail)}
}

func (l *transcriptLog) record(t pipeline.Transcript) {
	entry := control.Transcript{
		Text:      t.Text,
		Timestamp: t.At,
		Model:     t.Model,
		AudioSec:  t.Audio.Seconds(),
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.tail {
		l.entries = l.entries[len(l.entries)-l.tail:]
	}
	if l.path == "" {
		return
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l.logger.Warnf("open transcript log: %v", err)
		return
	}
	defer func() { _ = f.Close() }()
	line := strings.ReplaceAll(entry.Text, "\n", " ")
	if _, err := fmt.Fprintf(f, "%s\t%s\n", entry.Timestamp.Format(time.RFC3339), line); err != nil {
		l.logger.Warnf("write transcript: %v", err)
	}
}

func (l *transcriptLog) recent() []control.Transcript {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]control.Transcript, len(l.entries))
	copy(out, l.entries)
	return out
}
