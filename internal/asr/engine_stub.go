//go:build !whisper

package asr

import "github.com/sirupsen/logrus"

func openWhisper(path, language string, threads int, logger *logrus.Logger) (Model, error) {
	return nil, ErrEngineUnavailable
}
