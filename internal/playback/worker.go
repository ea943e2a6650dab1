package playback

import (
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/pkg/models"
)

// ExecFunc runs one command against a backend
type ExecFunc func(cmd models.Command) error

// Worker runs backend commands one at a time, in submission order, off the
// caller's goroutine. Submit never blocks; when the queue is full the
// command is dropped.
type Worker struct {
	exec   ExecFunc
	logger log.Logger
	queue  chan models.Command
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewWorker creates and starts a worker with a queue of size capacity
func NewWorker(exec ExecFunc, capacity int, logger log.Logger) *Worker {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if capacity <= 0 {
		capacity = 64
	}
	w := &Worker{
		exec:   exec,
		logger: logger,
		queue:  make(chan models.Command, capacity),
		done:   make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Submit queues cmd. Returns false if the command was dropped.
func (w *Worker) Submit(cmd models.Command) bool {
	select {
	case <-w.done:
		return false
	default:
	}

	select {
	case w.queue <- cmd:
		return true
	default:
		level.Warn(w.logger).Log("msg", "command queue full, dropping command",
			"namespace", cmd.Namespace, "method", cmd.Method)
		return false
	}
}

// Stop discards queued commands and waits for the running one to finish
func (w *Worker) Stop() {
	w.once.Do(func() {
		close(w.done)
	})
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case cmd := <-w.queue:
			if err := w.exec(cmd); err != nil {
				level.Error(w.logger).Log("msg", "command failed",
					"namespace", cmd.Namespace, "method", cmd.Method, "err", err)
			}
		}
	}
}
