package asr

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Coordinator guards the loaded model. Loads, deletes and transcriptions take
// turns in FIFO order; a generation counter lets a newer load supersede an
// older one that is still queued or in flight.
type Coordinator struct {
	engine Engine
	logger *logrus.Logger

	mu      sync.Mutex
	busy    bool
	waiters []chan struct{}
	gen     uint64
	target  string // id of the most recent load request
	model   Model
	modelID string
	retired []Model
}

func NewCoordinator(engine Engine, logger *logrus.Logger) *Coordinator {
	return &Coordinator{engine: engine, logger: logger}
}

// acquireTurn blocks until the caller is the sole holder. Waiters are served
// in arrival order; a waiter whose context ends leaves the queue.
func (c *Coordinator) acquireTurn(ctx context.Context) error {
	c.mu.Lock()
	if !c.busy {
		c.busy = true
		c.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		for i, w := range c.waiters {
			if w == ch {
				c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
				c.mu.Unlock()
				return ctx.Err()
			}
		}
		c.mu.Unlock()
		// The turn was handed over concurrently; pass it on.
		c.releaseTurn()
		return ctx.Err()
	}
}

// releaseTurn hands the turn to the next waiter or frees it.
func (c *Coordinator) releaseTurn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.waiters) == 0 {
		c.busy = false
		return
	}
	next := c.waiters[0]
	c.waiters = c.waiters[1:]
	close(next)
}

// Generation returns the current generation.
func (c *Coordinator) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// LoadedModel returns the id of the committed model, or "".
func (c *Coordinator) LoadedModel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modelID
}

// retireLocked detaches the loaded model. It is closed later by whoever next
// holds the turn, so a transcription already using it can finish.
func (c *Coordinator) retireLocked() {
	if c.model != nil {
		c.retired = append(c.retired, c.model)
	}
	c.model = nil
	c.modelID = ""
}

// closeRetired must be called while holding the turn.
func (c *Coordinator) closeRetired() {
	c.mu.Lock()
	retired := c.retired
	c.retired = nil
	c.mu.Unlock()
	for _, m := range retired {
		if err := m.Close(); err != nil {
			c.logger.Warnf("close retired model: %v", err)
		}
	}
}

// LoadOp is a load request that has already claimed its generation.
type LoadOp struct {
	c   *Coordinator
	id  string
	gen uint64
}

// PrepareLoad bumps the generation and retires the loaded model. Every
// earlier load becomes stale from this point on.
func (c *Coordinator) PrepareLoad(id string) *LoadOp {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.target = id
	c.retireLocked()
	return &LoadOp{c: c, id: id, gen: c.gen}
}

func (op *LoadOp) ID() string         { return op.id }
func (op *LoadOp) Generation() uint64 { return op.gen }

// Current reports whether no newer request has superseded op.
func (op *LoadOp) Current() bool { return op.c.Generation() == op.gen }

func (op *LoadOp) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return cancelledError{op: "load", id: op.id, cause: err}
	}
	if !op.Current() {
		return cancelledError{op: "load", id: op.id}
	}
	return nil
}

// Run waits for the turn, fetches and opens the model, and commits it if op
// is still current. report receives Downloading and Loading updates.
func (op *LoadOp) Run(ctx context.Context, report func(ModelStatus)) error {
	c := op.c
	if report == nil {
		report = func(ModelStatus) {}
	}
	if err := c.acquireTurn(ctx); err != nil {
		return cancelledError{op: "load", id: op.id, cause: err}
	}
	defer c.releaseTurn()
	c.closeRetired()

	if err := op.checkpoint(ctx); err != nil {
		return err
	}
	log := c.logger.WithFields(logrus.Fields{"model": op.id, "generation": op.gen})

	path, err := c.engine.Fetch(ctx, op.id, func(p float64) {
		if op.Current() {
			report(Downloading(p))
		}
	})
	if err != nil {
		if cerr := op.checkpoint(ctx); cerr != nil {
			return cerr
		}
		return fmt.Errorf("fetch %s: %w", op.id, err)
	}
	if err := op.checkpoint(ctx); err != nil {
		return err
	}

	report(Loading())
	log.Infof("opening model %s", path)
	m, err := c.engine.Open(ctx, path)
	if err != nil {
		if cerr := op.checkpoint(ctx); cerr != nil {
			return cerr
		}
		return fmt.Errorf("open %s: %w", op.id, err)
	}
	if err := op.checkpoint(ctx); err != nil {
		_ = m.Close()
		return err
	}

	c.mu.Lock()
	if c.gen != op.gen {
		c.mu.Unlock()
		_ = m.Close()
		log.Info("model load superseded before commit")
		return cancelledError{op: "load", id: op.id}
	}
	c.model = m
	c.modelID = op.id
	c.mu.Unlock()
	log.Info("model loaded")
	return nil
}

// LoadModel supersedes any in-flight load and loads id.
func (c *Coordinator) LoadModel(ctx context.Context, id string, report func(ModelStatus)) error {
	return c.PrepareLoad(id).Run(ctx, report)
}

// DeleteModel removes id from storage. Deleting the loaded model, or the
// target of a pending load, unloads it and bumps the generation. It reports
// whether the model was unloaded.
func (c *Coordinator) DeleteModel(ctx context.Context, id string) (bool, error) {
	if err := c.acquireTurn(ctx); err != nil {
		return false, err
	}
	defer c.releaseTurn()

	unloaded := false
	c.mu.Lock()
	if c.modelID == id || c.target == id {
		c.gen++
		c.target = ""
		unloaded = c.model != nil
		c.retireLocked()
	}
	c.mu.Unlock()
	c.closeRetired()

	if err := c.engine.Remove(ctx, id); err != nil {
		return unloaded, fmt.Errorf("delete %s: %w", id, err)
	}
	c.logger.Infof("model %s deleted", id)
	return unloaded, nil
}

// Transcribe runs the loaded model on samples. If the model is swapped while
// inference runs, the result is discarded and a cancellation is returned.
func (c *Coordinator) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", ErrEmptyAudio
	}
	if err := c.acquireTurn(ctx); err != nil {
		return "", cancelledError{op: "transcribe", cause: err}
	}
	defer c.releaseTurn()

	c.mu.Lock()
	m, gen := c.model, c.gen
	c.mu.Unlock()
	if m == nil {
		return "", ErrModelNotLoaded
	}

	text, err := m.Transcribe(ctx, samples)
	if c.Generation() != gen {
		return "", cancelledError{op: "transcribe"}
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", cancelledError{op: "transcribe", cause: ctx.Err()}
		}
		return "", fmt.Errorf("transcribe: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResult
	}
	return text, nil
}

// Close waits for the turn and releases every model handle.
func (c *Coordinator) Close() error {
	if err := c.acquireTurn(context.Background()); err != nil {
		return err
	}
	defer c.releaseTurn()
	c.mu.Lock()
	c.gen++
	c.retireLocked()
	c.mu.Unlock()
	c.closeRetired()
	return nil
}
