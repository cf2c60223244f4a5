package run

import (
	"holdtalk/internal/pipeline"

	"github.com/gen2brain/beeep"
	"github.com/sirupsen/logrus"
)

// notifyFunc shows a desktop notification.
type notifyFunc func(title, message string) error

func desktopNotify(title, message string) error {
	return beeep.Notify(title, message, "")
}

// failureNotifier pops a desktop notification for every pipeline failure.
// It is subscribed asynchronously so a slow notification daemon never holds
// up the orchestrator.
type failureNotifier struct {
	notify notifyFunc
	logger *logrus.Logger
}

func (n failureNotifier) onFailure(f *pipeline.Failure) {
	if f.Kind == pipeline.KindCancelled {
		return
	}
	if err := n.notify("holdtalk", f.Message); err != nil {
		n.logger.Debugf("notify: %v", err)
	}
}
