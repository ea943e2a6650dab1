package playbackapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/playback"
)

const (
	connectNamespace = "connect"
	connectMethod    = "connect"
	maxLoggedData    = 200
)

// ErrMalformedCommand is returned for messages that parse but have the wrong shape
var ErrMalformedCommand = errors.New("malformed command")

// rawCommand keeps arguments undecoded so "absent" and "not an array" can be told apart
type rawCommand struct {
	Namespace string          `json:"namespace"`
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments"`
}

// CommandDispatcher validates inbound client messages and forwards them to the engine
type CommandDispatcher struct {
	engine playback.Engine
	logger log.Logger
}

// NewCommandDispatcher creates a dispatcher forwarding to engine
func NewCommandDispatcher(engine playback.Engine, logger log.Logger) *CommandDispatcher {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &CommandDispatcher{engine: engine, logger: logger}
}

// Handle dispatches one message from client. Invalid messages are logged and
// dropped; nothing is ever sent back.
func (d *CommandDispatcher) Handle(client string, data []byte) {
	if err := d.Dispatch(data); err != nil {
		level.Warn(d.logger).Log("msg", "invalid message received", "client", client,
			"err", err, "data", truncate(data, maxLoggedData))
	}
}

// Dispatch parses data and calls the engine. The connect command goes to
// RegisterController only; everything else goes to ExecuteCommand.
func (d *CommandDispatcher) Dispatch(data []byte) error {
	var raw rawCommand
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if raw.Namespace == "" || raw.Method == "" {
		return fmt.Errorf("%w: namespace and method are required", ErrMalformedCommand)
	}

	args, present, err := decodeArguments(raw.Arguments)
	if err != nil {
		return err
	}

	if raw.Namespace == connectNamespace && raw.Method == connectMethod {
		if !present {
			return fmt.Errorf("%w: connect requires arguments", ErrMalformedCommand)
		}
		if len(args) == 1 {
			name, ok := args[0].(string)
			if !ok {
				return fmt.Errorf("%w: controller name must be a string", ErrMalformedCommand)
			}
			d.engine.RegisterController(name)
			return nil
		}
	}

	d.engine.ExecuteCommand(raw.Namespace, raw.Method, args)
	return nil
}

// decodeArguments returns an empty slice for a missing or null field and an
// error for anything that is not an array
func decodeArguments(raw json.RawMessage) ([]any, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []any{}, false, nil
	}
	if trimmed[0] != '[' {
		return nil, true, fmt.Errorf("%w: arguments must be an array", ErrMalformedCommand)
	}
	args := []any{}
	if err := json.Unmarshal(trimmed, &args); err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	return args, true, nil
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
