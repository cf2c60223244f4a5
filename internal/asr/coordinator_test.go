package asr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"holdtalk/internal/logging"
)

type fakeModel struct {
	id     string
	text   string
	err    error
	gate   chan struct{}
	mu     sync.Mutex
	closed bool
}

func (m *fakeModel) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if m.gate != nil {
		<-m.gate
	}
	return m.text, m.err
}

func (m *fakeModel) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *fakeModel) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type fakeEngine struct {
	mu        sync.Mutex
	fetchGate map[string]chan struct{}
	openGate  map[string]chan struct{}
	started   chan string
	openErr   map[string]error
	text      map[string]string
	opened    []string
	models    map[string]*fakeModel
	removed   []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		fetchGate: map[string]chan struct{}{},
		openGate:  map[string]chan struct{}{},
		started:   make(chan string, 16),
		openErr:   map[string]error{},
		text:      map[string]string{},
		models:    map[string]*fakeModel{},
	}
}

func (e *fakeEngine) Fetch(ctx context.Context, id string, progress func(float64)) (string, error) {
	e.started <- id
	e.mu.Lock()
	gate := e.fetchGate[id]
	e.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if progress != nil {
		progress(0.5)
		progress(1)
	}
	return "/models/" + id, nil
}

func (e *fakeEngine) Open(ctx context.Context, path string) (Model, error) {
	id := path[len("/models/"):]
	e.mu.Lock()
	gate := e.openGate[id]
	err := e.openErr[id]
	e.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	m := &fakeModel{id: id, text: e.text[id]}
	if m.text == "" {
		m.text = " hello from " + id + " "
	}
	e.mu.Lock()
	e.opened = append(e.opened, id)
	e.models[id] = m
	e.mu.Unlock()
	return m, nil
}

func (e *fakeEngine) Remove(ctx context.Context, id string) error {
	e.mu.Lock()
	e.removed = append(e.removed, id)
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) model(id string) *fakeModel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.models[id]
}

func (e *fakeEngine) openedIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.opened...)
}

func waitStarted(t *testing.T, e *fakeEngine, want string) {
	t.Helper()
	select {
	case got := <-e.started:
		if got != want {
			t.Fatalf("fetch started for %s, want %s", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("fetch for %s never started", want)
	}
}

func waitWaiters(t *testing.T, c *Coordinator, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		got := len(c.waiters)
		c.mu.Unlock()
		if got == n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("waiters never reached %d", n)
}

func TestNewerLoadSupersedesInFlightLoad(t *testing.T) {
	eng := newFakeEngine()
	gateA := make(chan struct{})
	eng.fetchGate["A"] = gateA
	c := NewCoordinator(eng, logging.NewTestLogger())

	errA := make(chan error, 1)
	go func() { errA <- c.LoadModel(context.Background(), "A", nil) }()
	waitStarted(t, eng, "A")

	opB := c.PrepareLoad("B")
	errB := make(chan error, 1)
	go func() { errB <- opB.Run(context.Background(), nil) }()
	waitWaiters(t, c, 1)

	close(gateA)
	if err := <-errA; !IsCancelled(err) {
		t.Fatalf("load A: got %v, want cancellation", err)
	}
	if err := <-errB; err != nil {
		t.Fatalf("load B: %v", err)
	}
	if got := c.LoadedModel(); got != "B" {
		t.Fatalf("loaded = %q, want B", got)
	}
	if ids := eng.openedIDs(); len(ids) != 1 || ids[0] != "B" {
		t.Fatalf("opened %v, want only B", ids)
	}
}

func TestStaleOpenedModelIsClosed(t *testing.T) {
	eng := newFakeEngine()
	gateA := make(chan struct{})
	eng.openGate["A"] = gateA
	c := NewCoordinator(eng, logging.NewTestLogger())

	errA := make(chan error, 1)
	go func() { errA <- c.LoadModel(context.Background(), "A", nil) }()
	waitStarted(t, eng, "A")

	opB := c.PrepareLoad("B")
	close(gateA)
	if err := <-errA; !IsCancelled(err) {
		t.Fatalf("load A: got %v, want cancellation", err)
	}
	if m := eng.model("A"); m == nil || !m.isClosed() {
		t.Fatalf("stale model A was not closed")
	}
	if err := opB.Run(context.Background(), nil); err != nil {
		t.Fatalf("load B: %v", err)
	}
}

func TestLoadReportsProgress(t *testing.T) {
	eng := newFakeEngine()
	c := NewCoordinator(eng, logging.NewTestLogger())
	var seen []ModelStatus
	if err := c.LoadModel(context.Background(), "A", func(s ModelStatus) { seen = append(seen, s) }); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(seen) != 3 || seen[0].Kind != StatusDownloading || seen[2].Kind != StatusLoading {
		t.Fatalf("unexpected progress %v", seen)
	}
}

func TestLoadFailureIsNotCancellation(t *testing.T) {
	eng := newFakeEngine()
	eng.openErr["bad"] = errors.New("corrupt file")
	c := NewCoordinator(eng, logging.NewTestLogger())
	err := c.LoadModel(context.Background(), "bad", nil)
	if err == nil || IsCancelled(err) {
		t.Fatalf("got %v, want plain failure", err)
	}
	if c.LoadedModel() != "" {
		t.Fatalf("failed load committed a model")
	}
}

func TestTurnsAreGrantedInArrivalOrder(t *testing.T) {
	c := NewCoordinator(newFakeEngine(), logging.NewTestLogger())
	if err := c.acquireTurn(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := c.acquireTurn(context.Background()); err != nil {
				t.Errorf("acquire %d: %v", i, err)
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			c.releaseTurn()
		}(i)
		waitWaiters(t, c, i+1)
	}
	c.releaseTurn()
	wg.Wait()
	for i, got := range order {
		if got != i {
			t.Fatalf("order = %v", order)
		}
	}
	if c.busy {
		t.Fatalf("turn still held after all releases")
	}
}

func TestCancelledWaiterLeavesQueue(t *testing.T) {
	c := NewCoordinator(newFakeEngine(), logging.NewTestLogger())
	if err := c.acquireTurn(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.acquireTurn(ctx) }()
	waitWaiters(t, c, 1)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
	waitWaiters(t, c, 0)
	c.releaseTurn()
	if c.busy {
		t.Fatalf("turn leaked to a cancelled waiter")
	}
}

func TestTranscribeErrors(t *testing.T) {
	eng := newFakeEngine()
	eng.text["quiet"] = "   "
	c := NewCoordinator(eng, logging.NewTestLogger())
	ctx := context.Background()

	if _, err := c.Transcribe(ctx, nil); !errors.Is(err, ErrEmptyAudio) {
		t.Fatalf("empty audio: %v", err)
	}
	if _, err := c.Transcribe(ctx, []float32{0.1}); !errors.Is(err, ErrModelNotLoaded) {
		t.Fatalf("not loaded: %v", err)
	}
	if err := c.LoadModel(ctx, "quiet", nil); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := c.Transcribe(ctx, []float32{0.1}); !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("empty result: %v", err)
	}
}

func TestTranscribeTrimsText(t *testing.T) {
	eng := newFakeEngine()
	c := NewCoordinator(eng, logging.NewTestLogger())
	if err := c.LoadModel(context.Background(), "A", nil); err != nil {
		t.Fatalf("load: %v", err)
	}
	text, err := c.Transcribe(context.Background(), []float32{0.1, 0.2})
	if err != nil || text != "hello from A" {
		t.Fatalf("got %q, %v", text, err)
	}
}

func TestModelSwapDuringTranscriptionCancelsIt(t *testing.T) {
	eng := newFakeEngine()
	c := NewCoordinator(eng, logging.NewTestLogger())
	ctx := context.Background()
	if err := c.LoadModel(ctx, "A", nil); err != nil {
		t.Fatalf("load: %v", err)
	}
	modelA := eng.model("A")
	modelA.gate = make(chan struct{})
	<-eng.started // drain A's fetch

	res := make(chan error, 1)
	go func() {
		_, err := c.Transcribe(ctx, []float32{0.1})
		res <- err
	}()
	waitBusy(t, c)

	opB := c.PrepareLoad("B")
	if modelA.isClosed() {
		t.Fatalf("model closed while a transcription holds the turn")
	}
	close(modelA.gate)
	if err := <-res; !IsCancelled(err) {
		t.Fatalf("transcribe: got %v, want cancellation", err)
	}
	if err := opB.Run(ctx, nil); err != nil {
		t.Fatalf("load B: %v", err)
	}
	if !modelA.isClosed() {
		t.Fatalf("retired model A not closed by the next load")
	}
}

func TestDeleteLoadedModelUnloads(t *testing.T) {
	eng := newFakeEngine()
	c := NewCoordinator(eng, logging.NewTestLogger())
	ctx := context.Background()
	if err := c.LoadModel(ctx, "A", nil); err != nil {
		t.Fatalf("load: %v", err)
	}
	gen := c.Generation()
	unloaded, err := c.DeleteModel(ctx, "A")
	if err != nil || !unloaded {
		t.Fatalf("delete: unloaded=%v err=%v", unloaded, err)
	}
	if c.Generation() == gen {
		t.Fatalf("generation not bumped")
	}
	if !eng.model("A").isClosed() {
		t.Fatalf("deleted model not closed")
	}
	if unloaded, err := c.DeleteModel(ctx, "other"); err != nil || unloaded {
		t.Fatalf("delete other: unloaded=%v err=%v", unloaded, err)
	}
}

func waitBusy(t *testing.T, c *Coordinator) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		busy := c.busy
		c.mu.Unlock()
		if busy {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("turn never taken")
}
