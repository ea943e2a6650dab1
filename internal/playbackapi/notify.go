package playbackapi

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// LogNotifier reports user-facing errors to the log
type LogNotifier struct {
	Logger log.Logger
}

func (n LogNotifier) NotifyError(title, message string) {
	logger := n.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	level.Error(logger).Log("msg", title, "detail", message)
}
