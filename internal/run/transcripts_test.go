package run

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"holdtalk/internal/logging"
	"holdtalk/internal/pipeline"
)

func TestTranscriptLogKeepsTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcripts.log")
	l := newTranscriptLog(path, 2, logging.NewTestLogger())
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, text := range []string{"one", "two", "three\nlines"} {
		l.record(pipeline.Transcript{Text: text, At: at, Audio: time.Second, Model: "tiny"})
	}
	recent := l.recent()
	if len(recent) != 2 || recent[0].Text != "two" || recent[1].Text != "three\nlines" {
		t.Fatalf("tail: %+v", recent)
	}
	if recent[1].Model != "tiny" || recent[1].AudioSec != 1 {
		t.Fatalf("fields: %+v", recent[1])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("want 3 lines, got %q", data)
	}
	if lines[2] != "2026-01-02T03:04:05Z\tthree lines" {
		t.Fatalf("line: %q", lines[2])
	}
}

func TestTranscriptLogRecentIsACopy(t *testing.T) {
	l := newTranscriptLog("", 3, logging.NewTestLogger())
	l.record(pipeline.Transcript{Text: "a"})
	r := l.recent()
	r[0].Text = "changed"
	if l.recent()[0].Text != "a" {
		t.Fatalf("recent aliased internal state")
	}
}
