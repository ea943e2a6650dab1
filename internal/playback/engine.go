package playback

import (
	"errors"
	"fmt"

	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/pkg/models"
)

var (
	// ErrNotConnected is returned when the backend player is not reachable
	ErrNotConnected = errors.New("player not connected")
	// ErrUnknownCommand is returned for a namespace/method the backend does not implement
	ErrUnknownCommand = errors.New("unknown command")
	// ErrBadArgument is returned when a command argument has the wrong type
	ErrBadArgument = errors.New("bad command argument")
)

// Snapshot is the read side of the playback engine
type Snapshot interface {
	IsPlaying() bool
	CurrentShuffle() models.ShuffleMode
	CurrentRepeat() models.RepeatMode
	Playlists() []models.Playlist
	CurrentSong() *models.Song
	CurrentTime() models.TimeInfo
	CurrentLyrics() *string
}

// Engine is the playback engine as seen by the API server.
// RegisterController and ExecuteCommand are notifications: they return
// immediately and report failures through the engine's own logging.
type Engine interface {
	Snapshot
	RegisterController(name string)
	ExecuteCommand(namespace, method string, args []any)
}

// UnknownCommand wraps ErrUnknownCommand with the command name
func UnknownCommand(namespace, method string) error {
	return fmt.Errorf("%w: %s.%s", ErrUnknownCommand, namespace, method)
}

// NumberArg reads args[i] as a number. JSON numbers decode as float64.
func NumberArg(args []any, i int) (float64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%w: missing argument %d", ErrBadArgument, i)
	}
	switch v := args[i].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: argument %d is %T, want number", ErrBadArgument, i, args[i])
	}
}

// StringArg reads args[i] as a string
func StringArg(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%w: missing argument %d", ErrBadArgument, i)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("%w: argument %d is %T, want string", ErrBadArgument, i, args[i])
	}
	return s, nil
}

// ControllerRegistry records remote controllers that named themselves
type ControllerRegistry interface {
	Register(name string) (models.RemoteController, error)
}

// DefaultVolumeStep is used by increaseVolume/decreaseVolume without an argument
const DefaultVolumeStep = 5

// ClampVolume limits v to the 0..100 range players accept
func ClampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// VolumeStep reads the optional step argument of increaseVolume/decreaseVolume
func VolumeStep(args []any) (float64, error) {
	if len(args) == 0 {
		return DefaultVolumeStep, nil
	}
	return NumberArg(args, 0)
}

// ParseShuffle validates a shuffle mode argument
func ParseShuffle(args []any) (models.ShuffleMode, error) {
	s, err := StringArg(args, 0)
	if err != nil {
		return "", err
	}
	switch mode := models.ShuffleMode(s); mode {
	case models.ShuffleAll, models.ShuffleOff:
		return mode, nil
	}
	return "", fmt.Errorf("%w: unknown shuffle mode %q", ErrBadArgument, s)
}

// ParseRepeat validates a repeat mode argument
func ParseRepeat(args []any) (models.RepeatMode, error) {
	s, err := StringArg(args, 0)
	if err != nil {
		return "", err
	}
	switch mode := models.RepeatMode(s); mode {
	case models.RepeatList, models.RepeatSingle, models.RepeatOff:
		return mode, nil
	}
	return "", fmt.Errorf("%w: unknown repeat mode %q", ErrBadArgument, s)
}
