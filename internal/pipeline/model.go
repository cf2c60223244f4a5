package pipeline

import (
	"context"
	"fmt"

	"holdtalk/internal/asr"
	"holdtalk/internal/phase"

	"github.com/sirupsen/logrus"
)

// LoadModel selects id and starts loading it, superseding any load still in
// flight. The returned channel receives the outcome once: nil, a
// cancellation (asr.IsCancelled) or a failure. Loads are refused with
// ErrBusy while a dictation is in progress.
func (o *Orchestrator) LoadModel(id string) (<-chan error, error) {
	result := make(chan error, 1)
	err := o.call(func() error {
		switch o.machine.Current().Kind {
		case phase.KindRecording, phase.KindTranscribing, phase.KindPasting:
			return ErrBusy
		}
		op := o.beginLoad(id)
		ctx := o.ctx
		go func() {
			err := op.Run(ctx, func(s asr.ModelStatus) {
				o.post(func() { o.loadProgress(op, s) })
			})
			o.post(func() { o.finishLoad(op, err) })
			result <- err
		}()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// beginLoad supersedes earlier loads and makes id the load that owns the
// model status. Control goroutine only.
func (o *Orchestrator) beginLoad(id string) *asr.LoadOp {
	op := o.coord.PrepareLoad(id)
	o.latestLoad = op.Generation()
	o.selected = id
	o.setModel(asr.Loading())
	o.machine.Transition(phase.Loading("Preparing model…"))
	o.logger.WithFields(logrus.Fields{"model": id, "generation": op.Generation()}).Info("model load requested")
	return op
}

// LoadModelAndWait loads id and blocks until the load settles or ctx ends.
func (o *Orchestrator) LoadModelAndWait(ctx context.Context, id string) error {
	res, err := o.LoadModel(id)
	if err != nil {
		return err
	}
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) loadProgress(op *asr.LoadOp, s asr.ModelStatus) {
	if op.Generation() != o.latestLoad {
		return
	}
	o.setModel(s)
	if !o.machine.Current().Is(phase.KindLoading) {
		return
	}
	switch s.Kind {
	case asr.StatusDownloading:
		o.machine.Transition(phase.Loading(fmt.Sprintf("Downloading model… %d%%", int(s.Progress*100))))
	case asr.StatusLoading:
		o.machine.Transition(phase.Loading("Initializing model…"))
	}
}

func (o *Orchestrator) finishLoad(op *asr.LoadOp, err error) {
	log := o.logger.WithFields(logrus.Fields{"model": op.ID(), "generation": op.Generation()})
	if op.Generation() != o.latestLoad {
		// A newer request owns the status now.
		log.Debug("superseded load settled")
		return
	}
	switch {
	case asr.IsCancelled(err), err == nil && !op.Current():
		// A delete may have unloaded the model after the load committed.
		log.Info("model load cancelled")
		o.setModel(asr.NotLoaded())
		if o.machine.Current().Is(phase.KindLoading) {
			o.machine.Transition(phase.Idle())
		}
	case err == nil:
		o.setModel(asr.Loaded())
		if o.machine.Current().Is(phase.KindLoading) {
			o.machine.Transition(phase.Idle())
		}
	default:
		log.Errorf("model load failed: %v", err)
		f := loadFailure(op.ID(), err)
		o.setModel(asr.Failed(f.Message))
		o.fail(f, o.cfg.RecoverModel)
	}
}

// DeleteModel removes a downloaded model. Deleting the selected model leaves
// nothing loaded.
func (o *Orchestrator) DeleteModel(ctx context.Context, id string) error {
	_, err := o.coord.DeleteModel(ctx, id)
	if cerr := o.call(func() error {
		if id == o.selected {
			o.selected = ""
			o.setModel(asr.NotLoaded())
		}
		return nil
	}); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
