package asr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const modelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// DefaultSources lists the known ggml models and where to fetch them.
var DefaultSources = map[string]string{
	"ggml-tiny.en-q5_1.bin":        modelBaseURL + "ggml-tiny.en-q5_1.bin",
	"ggml-base.en-q5_1.bin":        modelBaseURL + "ggml-base.en-q5_1.bin",
	"ggml-base-q5_1.bin":           modelBaseURL + "ggml-base-q5_1.bin",
	"ggml-small-q5_1.bin":          modelBaseURL + "ggml-small-q5_1.bin",
	"ggml-medium-q5_1.bin":         modelBaseURL + "ggml-medium-q5_1.bin",
	"ggml-large-v3-q5_0.bin":       modelBaseURL + "ggml-large-v3-q5_0.bin",
	"ggml-large-v3-turbo-q8_0.bin": modelBaseURL + "ggml-large-v3-turbo-q8_0.bin",
	"ggml-large-v3-turbo.bin":      modelBaseURL + "ggml-large-v3-turbo.bin",
}

// Catalog resolves model ids to files in a models directory, downloading
// known models on demand.
type Catalog struct {
	dir     string
	sources map[string]string
	client  *http.Client
	logger  *logrus.Logger
}

// NewCatalog uses DefaultSources when sources is nil.
func NewCatalog(dir string, sources map[string]string, logger *logrus.Logger) *Catalog {
	if sources == nil {
		sources = DefaultSources
	}
	return &Catalog{dir: dir, sources: sources, client: http.DefaultClient, logger: logger}
}

// Dir returns the models directory.
func (c *Catalog) Dir() string { return c.dir }

// Names returns the known model names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.sources))
	for n := range c.sources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Known reports whether id is a catalog name.
func (c *Catalog) Known(id string) bool {
	_, ok := c.sources[id]
	return ok
}

// Downloaded reports whether a catalog model is present locally.
func (c *Catalog) Downloaded(name string) bool {
	return fileExists(filepath.Join(c.dir, name))
}

// Resolve maps id to a file path without touching the network. Ids with a
// path separator must point at an existing file.
func (c *Catalog) Resolve(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty id", ErrInvalidModel)
	}
	if strings.ContainsRune(id, os.PathSeparator) || strings.Contains(id, "/") {
		if !fileExists(id) {
			return "", fmt.Errorf("%w: %s does not exist", ErrInvalidModel, id)
		}
		return id, nil
	}
	local := filepath.Join(c.dir, id)
	if c.Known(id) || fileExists(local) {
		return local, nil
	}
	return "", fmt.Errorf("%w: %q is not a known model", ErrInvalidModel, id)
}

// Fetch implements Engine.
func (c *Catalog) Fetch(ctx context.Context, id string, progress func(float64)) (string, error) {
	path, err := c.Resolve(id)
	if err != nil {
		return "", err
	}
	if fileExists(path) {
		return path, nil
	}
	url, ok := c.sources[id]
	if !ok {
		return "", fmt.Errorf("%w: %q has no download source", ErrInvalidModel, id)
	}
	if err := c.download(ctx, url, path, progress); err != nil {
		return "", err
	}
	return path, nil
}

func (c *Catalog) download(ctx context.Context, url, dest string, progress func(float64)) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	c.logger.Infof("downloading %s -> %s", url, dest)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
		_ = os.Remove(tmp)
	}()
	pw := &progressWriter{total: resp.ContentLength, report: progress}
	if _, err := io.Copy(out, io.TeeReader(resp.Body, pw)); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if progress != nil {
		progress(1)
	}
	return os.Rename(tmp, dest)
}

// Remove implements Engine. Only files inside the models directory are
// removed.
func (c *Catalog) Remove(_ context.Context, id string) error {
	name := filepath.Base(strings.TrimSpace(id))
	if name == "." || name == string(os.PathSeparator) || name == "" {
		return fmt.Errorf("%w: %q", ErrInvalidModel, id)
	}
	err := os.Remove(filepath.Join(c.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s is not downloaded", ErrInvalidModel, name)
	}
	return err
}

// progressWriter reports whole-percent steps of a download.
type progressWriter struct {
	total   int64
	written int64
	last    int
	report  func(float64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.report == nil || p.total <= 0 {
		return len(b), nil
	}
	pct := int(p.written * 100 / p.total)
	if pct != p.last {
		p.last = pct
		p.report(float64(p.written) / float64(p.total))
	}
	return len(b), nil
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
