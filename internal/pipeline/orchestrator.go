// Package pipeline drives push-to-talk dictation: hotkey edges move the
// phase machine through recording, transcription and output, with
// timeouts and automatic recovery from errors.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"holdtalk/internal/asr"
	"holdtalk/internal/audio"
	"holdtalk/internal/hotkey"
	"holdtalk/internal/output"
	"holdtalk/internal/permissions"
	"holdtalk/internal/phase"

	evbus "github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PermissionChecker is satisfied by *permissions.Checker. It is called on
// the control goroutine, so Refresh and the answers must not wait on probes.
type PermissionChecker interface {
	Refresh()
	Microphone() permissions.State
	Accessibility() permissions.State
}

// Deps are the collaborators the orchestrator drives.
type Deps struct {
	Coordinator *asr.Coordinator
	Capture     audio.Capture
	Output      output.Emitter
	Permissions PermissionChecker
	Bus         evbus.Bus
	Logger      *logrus.Logger
}

// Snapshot is a consistent view of the pipeline state.
type Snapshot struct {
	Phase         phase.Phase     `json:"phase"`
	Model         asr.ModelStatus `json:"model"`
	SelectedModel string          `json:"selected_model"`
	LoadedModel   string          `json:"loaded_model"`
	EditingHotkey bool            `json:"editing_hotkey"`
	Session       string          `json:"session,omitempty"`
}

// Orchestrator owns Phase and ModelStatus. Every field below ops is touched
// only by the control goroutine started with Run.
type Orchestrator struct {
	cfg     Config
	machine *phase.Machine
	coord   *asr.Coordinator
	capture audio.Capture
	out     output.Emitter
	perms   PermissionChecker
	bus     evbus.Bus
	logger  *logrus.Logger

	ops  chan func()
	done chan struct{}
	ctx  context.Context

	model      asr.ModelStatus
	selected   string
	editing    bool
	latestLoad uint64

	session   string
	recStart  time.Time
	timeout   *time.Timer
	timeoutID uint64
	recovery  *time.Timer
	recoverID uint64
}

func New(cfg Config, deps Deps) *Orchestrator {
	if deps.Bus == nil {
		deps.Bus = NewBus()
	}
	o := &Orchestrator{
		cfg:     cfg,
		machine: phase.NewMachine(deps.Logger),
		coord:   deps.Coordinator,
		capture: deps.Capture,
		out:     deps.Output,
		perms:   deps.Permissions,
		bus:     deps.Bus,
		logger:  deps.Logger,
		ops:     make(chan func(), 64),
		done:    make(chan struct{}),
		ctx:     context.Background(),
		model:   asr.NotLoaded(),
	}
	o.machine.Observe(func(from, to phase.Phase) {
		o.bus.Publish(TopicPhase, from, to)
	})
	return o
}

// Bus returns the event bus status updates are published on.
func (o *Orchestrator) Bus() evbus.Bus { return o.bus }

// Run services posted work until ctx ends.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.ctx = ctx
	defer close(o.done)
	for {
		select {
		case fn := <-o.ops:
			fn()
		case <-ctx.Done():
			o.shutdown()
			return nil
		}
	}
}

func (o *Orchestrator) shutdown() {
	o.cancelTimeout()
	o.cancelRecovery()
	if o.machine.Current().Is(phase.KindRecording) {
		o.capture.Stop()
		o.setIndicator(false)
		o.machine.Transition(phase.Idle())
	}
}

// post queues fn for the control goroutine. It gives up once Run exits.
func (o *Orchestrator) post(fn func()) {
	select {
	case o.ops <- fn:
	case <-o.done:
	}
}

// tryPost drops fn when the queue is full.
func (o *Orchestrator) tryPost(fn func()) {
	select {
	case o.ops <- fn:
	default:
	}
}

// call runs fn on the control goroutine and waits for its result.
func (o *Orchestrator) call(fn func() error) error {
	res := make(chan error, 1)
	select {
	case o.ops <- func() { res <- fn() }:
	case <-o.done:
		return ErrStopped
	}
	select {
	case err := <-res:
		return err
	case <-o.done:
		return ErrStopped
	}
}

// Callbacks returns detector callbacks that feed this orchestrator. They only
// enqueue work, so they are safe to run under the detector's lock.
func (o *Orchestrator) Callbacks() hotkey.Callbacks {
	return hotkey.Callbacks{
		OnEngage:    func() { o.post(o.handleEngage) },
		OnDisengage: func() { o.post(o.handleDisengage) },
	}
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() (Snapshot, error) {
	var s Snapshot
	err := o.call(func() error {
		s = Snapshot{
			Phase:         o.machine.Current(),
			Model:         o.model,
			SelectedModel: o.selected,
			LoadedModel:   o.coord.LoadedModel(),
			EditingHotkey: o.editing,
			Session:       o.session,
		}
		return nil
	})
	return s, err
}

// SetEditingHotkey suppresses engagement while the user records a new
// binding.
func (o *Orchestrator) SetEditingHotkey(editing bool) error {
	return o.call(func() error {
		o.editing = editing
		return nil
	})
}

func (o *Orchestrator) handleEngage() {
	cur := o.machine.Current()
	if o.editing || !cur.Is(phase.KindIdle) || !o.model.IsLoaded() {
		o.logger.Debugf("engage ignored (phase=%s model=%s editing=%v)", cur, o.model, o.editing)
		return
	}
	if o.perms != nil {
		o.perms.Refresh()
		if missing := o.missingPermission(); missing != "" {
			msg := fmt.Sprintf("Missing %s permission. Grant it and try again.", missing)
			o.fail(newFailure(KindUserInput, "engage", msg, nil), o.cfg.RecoverPermission)
			return
		}
	}
	if !o.machine.Transition(phase.Recording()) {
		return
	}
	o.session = uuid.NewString()
	o.recStart = time.Now()
	o.setIndicator(true)
	o.startTimeout()
	o.logger.WithField("session", o.session).Info("recording started")

	if err := o.capture.Start(o.onLevel); err != nil {
		o.cancelTimeout()
		o.fail(newFailure(KindResource, "capture", "Could not start recording.", err), o.cfg.RecoverCapture)
	}
}

func (o *Orchestrator) missingPermission() string {
	if o.perms.Microphone() == permissions.Denied {
		return "Microphone"
	}
	if o.perms.Accessibility() != permissions.Granted {
		return "Accessibility"
	}
	return ""
}

func (o *Orchestrator) onLevel(level float64) {
	o.tryPost(func() {
		if o.machine.Current().Is(phase.KindRecording) {
			o.bus.Publish(TopicLevel, level)
		}
	})
}

func (o *Orchestrator) handleDisengage() {
	if !o.machine.Current().Is(phase.KindRecording) {
		return
	}
	o.stopRecording("release")
}

func (o *Orchestrator) startTimeout() {
	o.timeoutID++
	id := o.timeoutID
	o.timeout = time.AfterFunc(o.cfg.RecordingTimeout, func() {
		o.post(func() {
			if id != o.timeoutID || !o.machine.Current().Is(phase.KindRecording) {
				return
			}
			o.logger.WithField("session", o.session).Warnf("recording hit %s limit", o.cfg.RecordingTimeout)
			o.stopRecording("timeout")
		})
	})
}

func (o *Orchestrator) cancelTimeout() {
	o.timeoutID++
	if o.timeout != nil {
		o.timeout.Stop()
		o.timeout = nil
	}
}

func (o *Orchestrator) stopRecording(reason string) {
	o.cancelTimeout()
	samples := o.capture.Stop()
	o.bus.Publish(TopicLevel, 0.0)
	log := o.logger.WithFields(logrus.Fields{
		"session": o.session,
		"reason":  reason,
		"samples": len(samples),
		"held":    time.Since(o.recStart).Round(time.Millisecond),
	})

	if o.cfg.DumpDir != "" && len(samples) > 0 {
		go func(s []float32) {
			if path, err := audio.DumpRecording(o.cfg.DumpDir, s, time.Now()); err != nil {
				o.logger.Warnf("dump recording: %v", err)
			} else {
				o.logger.Debugf("recording saved to %s", path)
			}
		}(samples)
	}

	if len(samples) < o.cfg.MinSamples() {
		log.Info("recording too short")
		o.setIndicator(false)
		o.fail(newFailure(KindUserInput, "record", "Recording too short. Hold the hotkey while you speak.", nil), o.cfg.RecoverTooShort)
		return
	}
	if !o.machine.Transition(phase.Transcribing()) {
		return
	}
	log.Info("recording stopped; transcribing")

	session := o.session
	audioLen := time.Duration(float64(len(samples)) / float64(o.cfg.SampleRate) * float64(time.Second))
	ctx := o.ctx
	go func() {
		start := time.Now()
		text, err := o.coord.Transcribe(ctx, samples)
		took := time.Since(start)
		o.post(func() { o.finishTranscription(session, audioLen, took, text, err) })
	}()
}

func (o *Orchestrator) finishTranscription(session string, audioLen, took time.Duration, text string, err error) {
	if session != o.session || !o.machine.Current().Is(phase.KindTranscribing) {
		return
	}
	log := o.logger.WithField("session", session)
	if err != nil {
		f := transcriptionFailure(err)
		if f.Kind == KindCancelled {
			log.Info("transcription superseded")
			o.setIndicator(false)
			o.machine.Transition(phase.Idle())
			return
		}
		log.Warnf("transcription failed: %v", err)
		o.fail(f, o.cfg.RecoverTranscription)
		return
	}
	if !o.machine.Transition(phase.Pasting()) {
		return
	}
	log.Infof("transcribed %s of audio in %s", audioLen.Round(time.Millisecond), took.Round(time.Millisecond))
	o.bus.Publish(TopicTranscript, Transcript{
		Session:  session,
		Text:     text,
		At:       time.Now(),
		Audio:    audioLen,
		Model:    o.coord.LoadedModel(),
		Inferred: took,
	})

	ctx := o.ctx
	go func() {
		err := o.out.Emit(ctx, text)
		o.post(func() { o.finishOutput(session, err) })
	}()
}

func (o *Orchestrator) finishOutput(session string, err error) {
	if session != o.session || !o.machine.Current().Is(phase.KindPasting) {
		return
	}
	if err != nil {
		o.logger.WithField("session", session).Warnf("output failed: %v", err)
		o.fail(outputFailure(err), o.cfg.RecoverOutput)
		return
	}
	o.setIndicator(false)
	o.machine.Transition(phase.Idle())
}

// fail enters Error, hides the indicator and schedules recovery to Idle.
func (o *Orchestrator) fail(f *Failure, recoverAfter time.Duration) {
	errPhase := phase.Error(f.Message)
	if !o.machine.Transition(errPhase) {
		return
	}
	o.setIndicator(false)
	o.bus.Publish(TopicFailure, f)
	o.scheduleRecovery(errPhase, recoverAfter)
}

func (o *Orchestrator) scheduleRecovery(errPhase phase.Phase, after time.Duration) {
	o.cancelRecovery()
	id := o.recoverID
	o.recovery = time.AfterFunc(after, func() {
		o.post(func() {
			if id != o.recoverID || o.machine.Current() != errPhase {
				return
			}
			o.machine.Transition(phase.Idle())
		})
	})
}

func (o *Orchestrator) cancelRecovery() {
	o.recoverID++
	if o.recovery != nil {
		o.recovery.Stop()
		o.recovery = nil
	}
}

func (o *Orchestrator) setIndicator(visible bool) {
	o.bus.Publish(TopicIndicator, visible)
}

func (o *Orchestrator) setModel(s asr.ModelStatus) {
	if s == o.model {
		return
	}
	o.model = s
	o.bus.Publish(TopicModel, s)
}
