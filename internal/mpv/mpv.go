// Package mpv drives an mpv player over its JSON IPC socket and exposes it
// as a playback engine.
package mpv

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/dexterlb/mpvipc"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/playback"
	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/pkg/models"
)

// QueuePlaylistID names the player's own playlist in the playlists channel
const QueuePlaylistID = "queue"

// ipc is the subset of *mpvipc.Connection the controller calls
type ipc interface {
	Call(arguments ...interface{}) (interface{}, error)
	Set(property string, value interface{}) error
	Get(property string) (interface{}, error)
}

// Observed property IDs
const (
	propPause = iota + 1
	propTimePos
	propDuration
	propMetadata
	propMediaTitle
	propLoopPlaylist
	propLoopFile
	propShuffle
	propPlaylist
	propVolume
	propIdle
)

var observed = map[int64]string{
	propPause:        "pause",
	propTimePos:      "time-pos",
	propDuration:     "duration",
	propMetadata:     "metadata",
	propMediaTitle:   "media-title",
	propLoopPlaylist: "loop-playlist",
	propLoopFile:     "loop-file",
	propShuffle:      "shuffle",
	propPlaylist:     "playlist",
	propVolume:       "volume",
	propIdle:         "idle-active",
}

// Controller manages the mpv instance and mirrors its state into a tracker
type Controller struct {
	*playback.Tracker

	mu         sync.RWMutex
	conn       *mpvipc.Connection
	client     ipc
	cmd        *exec.Cmd
	socketPath string
	pidFile    string
	executable string
	adopted    bool

	// last raw values, needed to derive song, time and repeat
	stateMu    sync.Mutex
	paused     bool
	idle       bool
	position   float64
	duration   float64
	metadata   map[string]any
	mediaTitle string
	loopList   bool
	loopFile   bool
	volume     float64

	worker   *playback.Worker
	registry playback.ControllerRegistry
	logger   log.Logger
}

// NewController creates a controller. executable defaults to "mpv";
// registry may be nil.
func NewController(executable string, bus playback.Publisher, registry playback.ControllerRegistry, logger log.Logger) *Controller {
	if executable == "" {
		executable = "mpv"
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	c := &Controller{
		Tracker:    playback.NewTracker(bus),
		socketPath: defaultSocketPath(),
		pidFile:    defaultPidFile(),
		executable: executable,
		paused:     true,
		idle:       true,
		volume:     100,
		registry:   registry,
		logger:     logger,
	}
	c.worker = playback.NewWorker(c.execute, 0, logger)
	return c
}

// Start adopts a running player on our socket or launches a new one
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conn := c.adopt(); conn != nil {
		level.Info(c.logger).Log("msg", "adopted existing player", "socket", c.socketPath)
		c.adopted = true
		return c.attach(conn)
	}

	c.cleanupOrphans()
	conn, err := c.spawn()
	if err != nil {
		return fmt.Errorf("failed to start mpv: %w", err)
	}
	c.adopted = false
	return c.attach(conn)
}

// attach observes every mirrored property and starts the event loop
func (c *Controller) attach(conn *mpvipc.Connection) error {
	c.conn = conn
	c.client = conn

	// listen first so the initial value of each observed property is seen
	events, stopListening := conn.NewEventListener()
	go c.listenEvents(events, stopListening)

	ids := make([]int64, 0, len(observed))
	for id := range observed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if _, err := conn.Call("observe_property", id, observed[id]); err != nil {
			return fmt.Errorf("observe %s: %w", observed[id], err)
		}
	}
	return nil
}

// Stop quits the player and releases its socket
func (c *Controller) Stop() error {
	c.worker.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Call("quit")
		c.conn.Close()
		c.conn = nil
	}
	c.client = nil
	if c.cmd != nil && c.cmd.Process != nil {
		c.cmd.Process.Kill()
		c.cmd.Wait()
		c.cmd = nil
	}
	os.Remove(c.socketPath)
	os.Remove(c.pidFile)
	c.adopted = false
	return nil
}

// IsRunning reports whether the IPC connection is up
func (c *Controller) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client != nil
}

// RegisterController records a remote controller by name
func (c *Controller) RegisterController(name string) {
	level.Info(c.logger).Log("msg", "remote controller connected", "name", name)
	if c.registry == nil {
		return
	}
	if _, err := c.registry.Register(name); err != nil {
		level.Error(c.logger).Log("msg", "failed to register controller", "name", name, "err", err)
	}
}

// ExecuteCommand queues a command for the player
func (c *Controller) ExecuteCommand(namespace, method string, args []any) {
	c.worker.Submit(models.Command{Namespace: namespace, Method: method, Arguments: args})
}

func (c *Controller) listenEvents(events chan *mpvipc.Event, stopListening chan struct{}) {
	defer close(stopListening)

	for event := range events {
		switch event.Name {
		case "property-change":
			if name, ok := observed[int64(event.ID)]; ok {
				c.applyProperty(name, event.Data)
			}
		case "end-file":
			level.Debug(c.logger).Log("msg", "end-file", "data", fmt.Sprintf("%v", event.ExtraData))
		}
	}
	level.Info(c.logger).Log("msg", "player connection closed")
}

// applyProperty folds one property change into the tracker
func (c *Controller) applyProperty(name string, value any) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	switch name {
	case "pause":
		c.paused = asBool(value, true)
		c.syncPlaying()
	case "idle-active":
		c.idle = asBool(value, false)
		c.syncPlaying()
		if c.idle {
			c.metadata = nil
			c.mediaTitle = ""
			c.position, c.duration = 0, 0
			c.syncSong()
			c.syncTime()
		}
	case "time-pos":
		c.position = asFloat(value)
		c.syncTime()
	case "duration":
		c.duration = asFloat(value)
		c.syncTime()
	case "metadata":
		c.metadata, _ = value.(map[string]any)
		c.syncSong()
	case "media-title":
		c.mediaTitle, _ = value.(string)
		c.syncSong()
	case "loop-playlist":
		c.loopList = isLooping(value)
		c.syncRepeat()
	case "loop-file":
		c.loopFile = isLooping(value)
		c.syncRepeat()
	case "shuffle":
		mode := models.ShuffleOff
		if asBool(value, false) {
			mode = models.ShuffleAll
		}
		if mode != c.CurrentShuffle() {
			c.SetShuffle(mode)
		}
	case "playlist":
		c.SetPlaylists([]models.Playlist{queuePlaylist(value)})
	case "volume":
		c.volume = asFloat(value)
	}
}

func (c *Controller) syncPlaying() {
	playing := !c.paused && !c.idle
	if playing != c.IsPlaying() {
		c.SetPlaying(playing)
	}
}

func (c *Controller) syncTime() {
	ti := models.TimeInfo{
		Current: int64(c.position) * 1000,
		Total:   int64(c.duration) * 1000,
	}
	if ti != c.CurrentTime() {
		c.SetTime(ti)
	}
}

func (c *Controller) syncRepeat() {
	mode := models.RepeatOff
	switch {
	case c.loopFile:
		mode = models.RepeatSingle
	case c.loopList:
		mode = models.RepeatList
	}
	if mode != c.CurrentRepeat() {
		c.SetRepeat(mode)
	}
}

// syncSong publishes song and lyrics when the metadata describes a
// different track than the one announced last
func (c *Controller) syncSong() {
	song := songFromMetadata(c.metadata, c.mediaTitle)
	current := c.CurrentSong()
	if song == nil && current == nil {
		return
	}
	if song != nil && current != nil && *song == *current {
		return
	}
	c.SetSong(song)
	c.SetLyrics(lyricsFromMetadata(c.metadata))
}

func songFromMetadata(meta map[string]any, mediaTitle string) *models.Song {
	title := metaString(meta, "title")
	if title == "" {
		title = mediaTitle
	}
	if title == "" {
		return nil
	}
	artist := metaString(meta, "artist")
	if artist == "" {
		artist = metaString(meta, "album_artist")
	}
	return &models.Song{
		Title:  title,
		Artist: artist,
		Album:  metaString(meta, "album"),
	}
}

// lyricsFromMetadata returns the first lyrics tag, e.g. LYRICS or lyrics-eng
func lyricsFromMetadata(meta map[string]any) *string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !strings.HasPrefix(strings.ToLower(k), "lyrics") {
			continue
		}
		if s, ok := meta[k].(string); ok && s != "" {
			return &s
		}
	}
	return nil
}

// metaString looks a tag up case-insensitively; mpv keeps the file's casing
func metaString(meta map[string]any, key string) string {
	for k, v := range meta {
		if strings.EqualFold(k, key) {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

func queuePlaylist(value any) models.Playlist {
	pl := models.Playlist{ID: QueuePlaylistID, Name: "Queue", Tracks: []models.Track{}}
	entries, _ := value.([]any)
	for i, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		filename, _ := entry["filename"].(string)
		title, _ := entry["title"].(string)
		if title == "" {
			title = filename
		}
		pl.Tracks = append(pl.Tracks, models.Track{
			ID:    fmt.Sprint(i),
			Title: title,
		})
	}
	return pl
}

func asBool(value any, def bool) bool {
	if b, ok := value.(bool); ok {
		return b
	}
	return def
}

func asFloat(value any) float64 {
	if f, ok := value.(float64); ok {
		return f
	}
	return 0
}

// isLooping interprets loop-file / loop-playlist: "no", false or 0 mean off;
// "inf", "force", true or a count mean on
func isLooping(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != "no" && v != ""
	case float64:
		return v > 0
	}
	return false
}
