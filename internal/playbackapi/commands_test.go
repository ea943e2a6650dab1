package playbackapi

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/playback"
	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/pkg/models"
)

// fakeEngine records what the dispatcher forwards and serves state from a
// real tracker
type fakeEngine struct {
	*playback.Tracker

	mu         sync.Mutex
	registered []string
	commands   []models.Command
}

func newFakeEngine(bus playback.Publisher) *fakeEngine {
	return &fakeEngine{Tracker: playback.NewTracker(bus)}
}

func (e *fakeEngine) RegisterController(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registered = append(e.registered, name)
}

func (e *fakeEngine) ExecuteCommand(namespace, method string, args []any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = append(e.commands, models.Command{Namespace: namespace, Method: method, Arguments: args})
}

func (e *fakeEngine) Registered() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.registered...)
}

func (e *fakeEngine) Commands() []models.Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Command(nil), e.commands...)
}

func TestDispatchForwardsCommands(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want models.Command
	}{
		{
			name: "no arguments",
			msg:  `{"namespace":"playback","method":"playPause"}`,
			want: models.Command{Namespace: "playback", Method: "playPause", Arguments: []any{}},
		},
		{
			name: "null arguments",
			msg:  `{"namespace":"playback","method":"forward","arguments":null}`,
			want: models.Command{Namespace: "playback", Method: "forward", Arguments: []any{}},
		},
		{
			name: "numeric argument",
			msg:  `{"namespace":"playback","method":"setCurrentTime","arguments":[42000]}`,
			want: models.Command{Namespace: "playback", Method: "setCurrentTime", Arguments: []any{float64(42000)}},
		},
		{
			name: "unknown namespace still forwarded",
			msg:  `{"namespace":"nope","method":"nothing","arguments":[]}`,
			want: models.Command{Namespace: "nope", Method: "nothing", Arguments: []any{}},
		},
		{
			name: "connect with two arguments is generic",
			msg:  `{"namespace":"connect","method":"connect","arguments":["Alice","1234"]}`,
			want: models.Command{Namespace: "connect", Method: "connect", Arguments: []any{"Alice", "1234"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newFakeEngine(nil)
			d := NewCommandDispatcher(engine, nil)

			require.NoError(t, d.Dispatch([]byte(tt.msg)))
			assert.Equal(t, []models.Command{tt.want}, engine.Commands())
			assert.Empty(t, engine.Registered())
		})
	}
}

func TestDispatchConnectRegistersController(t *testing.T) {
	engine := newFakeEngine(nil)
	d := NewCommandDispatcher(engine, nil)

	require.NoError(t, d.Dispatch([]byte(`{"namespace":"connect","method":"connect","arguments":["Alice"]}`)))

	assert.Equal(t, []string{"Alice"}, engine.Registered())
	assert.Empty(t, engine.Commands())
}

func TestDispatchRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		msg  string
	}{
		{"not json", `not json at all`},
		{"json array", `[1,2,3]`},
		{"missing method", `{"namespace":"playback"}`},
		{"missing namespace", `{"method":"playPause"}`},
		{"arguments object", `{"namespace":"playback","method":"play","arguments":{"a":1}}`},
		{"arguments string", `{"namespace":"playback","method":"play","arguments":"x"}`},
		{"connect without arguments", `{"namespace":"connect","method":"connect"}`},
		{"connect with number", `{"namespace":"connect","method":"connect","arguments":[7]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newFakeEngine(nil)
			d := NewCommandDispatcher(engine, nil)

			assert.Error(t, d.Dispatch([]byte(tt.msg)))
			assert.Empty(t, engine.Commands())
			assert.Empty(t, engine.Registered())
		})
	}
}

func TestHandleSwallowsErrors(t *testing.T) {
	engine := newFakeEngine(nil)
	d := NewCommandDispatcher(engine, nil)

	assert.NotPanics(t, func() { d.Handle("client-1", []byte("{")) })
	assert.Empty(t, engine.Commands())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate([]byte("abc"), 5))
	assert.Equal(t, "ab...", truncate([]byte("abcdef"), 2))
}
