// Package mpd drives a Music Player Daemon and exposes it as a playback
// engine.
package mpd

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/playback"
	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/pkg/models"
)

// Subsystems the idle watcher listens on
var Subsystems = []string{"player", "options", "stored_playlist", "mixer"}

const pollInterval = time.Second

// conn is the part of an MPD client connection the controller uses
type conn interface {
	Status() (mpd.Attrs, error)
	CurrentSong() (mpd.Attrs, error)
	ListPlaylists() ([]mpd.Attrs, error)
	PlaylistContents(name string) ([]mpd.Attrs, error)
	Pause(pause bool) error
	Play(pos int) error
	Next() error
	Previous() error
	SeekCur(d time.Duration, relative bool) error
	Random(random bool) error
	Repeat(repeat bool) error
	Single(single bool) error
	SetVolume(volume int) error
	Clear() error
	PlaylistLoad(name string, start, end int) error
	Lyrics(uri string) *string
	Close() error
}

// clientConn adds the calls gompd has no helper for
type clientConn struct {
	*mpd.Client
}

// Lyrics reads embedded lyrics tags of uri, nil when there are none
func (c clientConn) Lyrics(uri string) *string {
	if uri == "" {
		return nil
	}
	tags, err := c.Command("readcomments %s", uri).Attrs()
	if err != nil {
		return nil
	}
	for _, key := range []string{"LYRICS", "UNSYNCEDLYRICS", "lyrics"} {
		if l, ok := tags[key]; ok && l != "" {
			return &l
		}
	}
	return nil
}

// Controller mirrors MPD state into a tracker and runs commands against it.
// Each query or command uses a short-lived connection; the idle watcher
// holds its own.
type Controller struct {
	*playback.Tracker

	network  string
	addr     string
	password string
	dial     func() (conn, error)

	mu      sync.Mutex
	volume  int
	cancel  context.CancelFunc
	done    chan struct{}
	watcher *mpd.Watcher

	worker   *playback.Worker
	registry playback.ControllerRegistry
	logger   log.Logger
}

// NewController creates a controller for the server at addr: host:port or
// a unix socket path. registry may be nil.
func NewController(addr, password string, bus playback.Publisher, registry playback.ControllerRegistry, logger log.Logger) *Controller {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if addr == "" {
		addr = "localhost:6600"
	}
	network := "tcp"
	if strings.HasPrefix(addr, "/") {
		network = "unix"
	}
	c := &Controller{
		Tracker:  playback.NewTracker(bus),
		network:  network,
		addr:     addr,
		password: password,
		registry: registry,
		logger:   logger,
	}
	c.dial = c.dialMPD
	c.worker = playback.NewWorker(c.execute, 0, logger)
	return c
}

func (c *Controller) dialMPD() (conn, error) {
	client, err := mpd.Dial(c.network, c.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", playback.ErrNotConnected, err)
	}
	if c.password != "" {
		if err := client.Command("password %s", c.password).OK(); err != nil {
			client.Close()
			return nil, fmt.Errorf("mpd password auth failed: %w", err)
		}
	}
	return clientConn{client}, nil
}

// do runs fn on a fresh connection
func (c *Controller) do(fn func(conn) error) error {
	cl, err := c.dial()
	if err != nil {
		return err
	}
	defer cl.Close()
	return fn(cl)
}

// Start loads the current state and begins following MPD's idle events
func (c *Controller) Start(ctx context.Context) error {
	if err := c.refresh(Subsystems...); err != nil {
		return err
	}
	w, err := mpd.NewWatcher(c.network, c.addr, c.password, Subsystems...)
	if err != nil {
		return fmt.Errorf("mpd watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.watcher = w
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.watch(ctx, w)
	level.Info(c.logger).Log("msg", "following mpd", "addr", c.addr)
	return nil
}

// Stop ends the watcher and the command worker
func (c *Controller) Stop() error {
	c.worker.Stop()

	c.mu.Lock()
	cancel, done, w := c.cancel, c.done, c.watcher
	c.cancel, c.watcher = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return w.Close()
}

func (c *Controller) watch(ctx context.Context, w *mpd.Watcher) {
	defer close(c.done)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	errs := w.Error
	for {
		select {
		case <-ctx.Done():
			return
		case subsystem, ok := <-w.Event:
			if !ok {
				level.Warn(c.logger).Log("msg", "mpd watcher closed")
				return
			}
			if err := c.refresh(subsystem); err != nil {
				level.Error(c.logger).Log("msg", "refresh failed", "subsystem", subsystem, "err", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			level.Warn(c.logger).Log("msg", "mpd watcher error", "err", err)
		case <-ticker.C:
			if !c.IsPlaying() {
				continue
			}
			if err := c.do(func(cl conn) error {
				st, err := cl.Status()
				if err != nil {
					return err
				}
				c.applyTime(st)
				return nil
			}); err != nil {
				level.Debug(c.logger).Log("msg", "time poll failed", "err", err)
			}
		}
	}
}

// refresh re-reads whatever the named subsystems cover
func (c *Controller) refresh(subsystems ...string) error {
	return c.do(func(cl conn) error {
		var status mpd.Attrs
		getStatus := func() (mpd.Attrs, error) {
			if status != nil {
				return status, nil
			}
			st, err := cl.Status()
			status = st
			return st, err
		}

		for _, sub := range subsystems {
			switch sub {
			case "player":
				st, err := getStatus()
				if err != nil {
					return err
				}
				song, err := cl.CurrentSong()
				if err != nil {
					return err
				}
				c.applySong(song, cl)
				c.applyPlayState(st)
				c.applyTime(st)
			case "options":
				st, err := getStatus()
				if err != nil {
					return err
				}
				c.applyOptions(st)
			case "mixer":
				st, err := getStatus()
				if err != nil {
					return err
				}
				c.applyVolume(st)
			case "stored_playlist":
				pls, err := loadPlaylists(cl)
				if err != nil {
					return err
				}
				c.SetPlaylists(pls)
			}
		}
		return nil
	})
}

func (c *Controller) applyPlayState(st mpd.Attrs) {
	playing := st["state"] == "play"
	if playing != c.IsPlaying() {
		c.SetPlaying(playing)
	}
}

func (c *Controller) applyTime(st mpd.Attrs) {
	ti := models.TimeInfo{
		Current: secondsToMillis(st["elapsed"]),
		Total:   secondsToMillis(st["duration"]),
	}
	// older servers only report "time" as elapsed:total
	if ti.Total == 0 {
		if elapsed, total, ok := strings.Cut(st["time"], ":"); ok {
			ti.Current = secondsToMillis(elapsed)
			ti.Total = secondsToMillis(total)
		}
	}
	if ti != c.CurrentTime() {
		c.SetTime(ti)
	}
}

func (c *Controller) applyOptions(st mpd.Attrs) {
	shuffle := models.ShuffleOff
	if st["random"] == "1" {
		shuffle = models.ShuffleAll
	}
	if shuffle != c.CurrentShuffle() {
		c.SetShuffle(shuffle)
	}

	repeat := models.RepeatOff
	switch {
	case st["repeat"] == "1" && st["single"] == "1":
		repeat = models.RepeatSingle
	case st["repeat"] == "1":
		repeat = models.RepeatList
	}
	if repeat != c.CurrentRepeat() {
		c.SetRepeat(repeat)
	}
}

func (c *Controller) applyVolume(st mpd.Attrs) {
	v, err := strconv.Atoi(st["volume"])
	if err != nil {
		return
	}
	c.mu.Lock()
	c.volume = v
	c.mu.Unlock()
}

func (c *Controller) applySong(attrs mpd.Attrs, cl conn) {
	song := songFromAttrs(attrs)
	current := c.CurrentSong()
	if song == nil && current == nil {
		return
	}
	if song != nil && current != nil && *song == *current {
		return
	}
	c.SetSong(song)
	if song == nil {
		c.SetLyrics(nil)
		return
	}
	c.SetLyrics(cl.Lyrics(attrs["file"]))
}

func songFromAttrs(attrs mpd.Attrs) *models.Song {
	file := attrs["file"]
	if file == "" {
		return nil
	}
	title := attrs["Title"]
	if title == "" {
		title = attrs["Name"]
	}
	if title == "" {
		title = file[strings.LastIndex(file, "/")+1:]
	}
	artist := attrs["Artist"]
	if artist == "" {
		artist = attrs["AlbumArtist"]
	}
	return &models.Song{Title: title, Artist: artist, Album: attrs["Album"]}
}

func loadPlaylists(cl conn) ([]models.Playlist, error) {
	list, err := cl.ListPlaylists()
	if err != nil {
		return nil, err
	}
	pls := make([]models.Playlist, 0, len(list))
	for _, attrs := range list {
		name := attrs["playlist"]
		if name == "" {
			continue
		}
		songs, err := cl.PlaylistContents(name)
		if err != nil {
			return nil, fmt.Errorf("playlist %q: %w", name, err)
		}
		pl := models.Playlist{ID: name, Name: name, Tracks: make([]models.Track, 0, len(songs))}
		for _, s := range songs {
			song := songFromAttrs(s)
			if song == nil {
				continue
			}
			dur := secondsToMillis(s["duration"])
			if dur == 0 {
				dur = secondsToMillis(s["Time"])
			}
			pl.Tracks = append(pl.Tracks, models.Track{
				ID:       s["file"],
				Title:    song.Title,
				Artist:   song.Artist,
				Album:    song.Album,
				Duration: dur,
			})
		}
		pls = append(pls, pl)
	}
	return pls, nil
}

func secondsToMillis(s string) int64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int64(math.Floor(f)) * 1000
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

// ExecuteCommand queues a command for the server
func (c *Controller) ExecuteCommand(namespace, method string, args []any) {
	c.worker.Submit(models.Command{Namespace: namespace, Method: method, Arguments: args})
}

// execute runs one queued command
func (c *Controller) execute(cmd models.Command) error {
	args := cmd.Arguments
	switch cmd.Namespace + "." + cmd.Method {
	case "rating.toggleThumbsUp":
		c.ToggleLike()
		return nil
	case "rating.toggleThumbsDown":
		c.ToggleDislike()
		return nil
	}

	action, err := c.action(cmd.Namespace, cmd.Method, args)
	if err != nil {
		return err
	}
	return c.do(action)
}

// action validates a command and returns what to run on a connection
func (c *Controller) action(namespace, method string, args []any) (func(conn) error, error) {
	switch namespace + "." + method {
	case "playback.playPause":
		return func(cl conn) error {
			st, err := cl.Status()
			if err != nil {
				return err
			}
			switch st["state"] {
			case "play":
				return cl.Pause(true)
			case "pause":
				return cl.Pause(false)
			}
			return cl.Play(-1)
		}, nil
	case "playback.play":
		return func(cl conn) error {
			st, err := cl.Status()
			if err != nil {
				return err
			}
			if st["state"] == "pause" {
				return cl.Pause(false)
			}
			return cl.Play(-1)
		}, nil
	case "playback.pause":
		return func(cl conn) error { return cl.Pause(true) }, nil
	case "playback.forward":
		return func(cl conn) error { return cl.Next() }, nil
	case "playback.rewind":
		return func(cl conn) error { return cl.Previous() }, nil
	case "playback.setCurrentTime":
		ms, err := playback.NumberArg(args, 0)
		if err != nil {
			return nil, err
		}
		return func(cl conn) error {
			return cl.SeekCur(time.Duration(ms)*time.Millisecond, false)
		}, nil

	case "playback.toggleShuffle":
		random := c.CurrentShuffle() != models.ShuffleAll
		return func(cl conn) error { return cl.Random(random) }, nil
	case "playback.setShuffle":
		mode, err := playback.ParseShuffle(args)
		if err != nil {
			return nil, err
		}
		return func(cl conn) error { return cl.Random(mode == models.ShuffleAll) }, nil

	case "playback.toggleRepeat":
		return repeatAction(c.CurrentRepeat().NextRepeat()), nil
	case "playback.setRepeat":
		mode, err := playback.ParseRepeat(args)
		if err != nil {
			return nil, err
		}
		return repeatAction(mode), nil

	case "volume.setVolume":
		v, err := playback.NumberArg(args, 0)
		if err != nil {
			return nil, err
		}
		return func(cl conn) error { return cl.SetVolume(int(playback.ClampVolume(v))) }, nil
	case "volume.increaseVolume", "volume.decreaseVolume":
		step, err := playback.VolumeStep(args)
		if err != nil {
			return nil, err
		}
		if method == "decreaseVolume" {
			step = -step
		}
		c.mu.Lock()
		target := int(playback.ClampVolume(float64(c.volume) + step))
		c.mu.Unlock()
		return func(cl conn) error { return cl.SetVolume(target) }, nil

	case "playlists.play":
		name, err := playback.StringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return func(cl conn) error {
			if err := cl.Clear(); err != nil {
				return err
			}
			if err := cl.PlaylistLoad(name, -1, -1); err != nil {
				return err
			}
			return cl.Play(0)
		}, nil
	}
	return nil, playback.UnknownCommand(namespace, method)
}

func repeatAction(mode models.RepeatMode) func(conn) error {
	return func(cl conn) error {
		if err := cl.Repeat(mode != models.RepeatOff); err != nil {
			return err
		}
		return cl.Single(mode == models.RepeatSingle)
	}
}
