package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/pkg/models"
)

func TestWorkerRunsCommandsInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	w := NewWorker(func(cmd models.Command) error {
		mu.Lock()
		got = append(got, cmd.Method)
		n := len(got)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
		return nil
	}, 8, nil)
	defer w.Stop()

	require.True(t, w.Submit(models.Command{Namespace: "playback", Method: "a"}))
	require.True(t, w.Submit(models.Command{Namespace: "playback", Method: "b"}))
	require.True(t, w.Submit(models.Command{Namespace: "playback", Method: "c"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not run commands")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestWorkerSubmitDoesNotBlockWhenFull(t *testing.T) {
	block := make(chan struct{})
	w := NewWorker(func(models.Command) error {
		<-block
		return nil
	}, 1, nil)
	defer func() {
		close(block)
		w.Stop()
	}()

	// First is picked up by the worker, second fills the queue.
	w.Submit(models.Command{Method: "1"})
	deadline := time.Now().Add(time.Second)
	for !w.Submit(models.Command{Method: "2"}) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	returned := make(chan bool, 1)
	go func() { returned <- w.Submit(models.Command{Method: "3"}) }()

	select {
	case ok := <-returned:
		assert.False(t, ok, "submit on a full queue should drop")
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}
}

func TestWorkerSurvivesFailingCommands(t *testing.T) {
	ran := make(chan string, 2)
	w := NewWorker(func(cmd models.Command) error {
		ran <- cmd.Method
		return errors.New("boom")
	}, 4, nil)
	defer w.Stop()

	w.Submit(models.Command{Method: "first"})
	w.Submit(models.Command{Method: "second"})

	for _, want := range []string{"first", "second"} {
		select {
		case got := <-ran:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("command %s never ran", want)
		}
	}
}

func TestWorkerSubmitAfterStop(t *testing.T) {
	w := NewWorker(func(models.Command) error { return nil }, 1, nil)
	w.Stop()
	w.Stop()
	assert.False(t, w.Submit(models.Command{Method: "late"}))
}
