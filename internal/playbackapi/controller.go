// Package playbackapi serves the live playback state over websocket to local
// clients and forwards their commands to the playback engine.
package playbackapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/discovery"
	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/playback"
	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/settings"
	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/websocket"
)

// APIVersion is the protocol version sent in the handshake and the mDNS record
const APIVersion = "1.1.0"

// ErrBind is returned when the listener cannot bind its port
var ErrBind = errors.New("could not bind playback API port")

// Settings persists the enabled flag and the last bound port
type Settings interface {
	GetBool(key string, def bool) bool
	SetBool(key string, value bool) error
	SetInt(key string, value int) error
}

// Notifier surfaces fatal errors to the host application's user
type Notifier interface {
	NotifyError(title, message string)
}

// Config wires the controller to its collaborators
type Config struct {
	Port       int    // 0 picks a free port
	Host       string // bind host, empty for all interfaces
	Hostname   string // advertised instance name
	APIVersion string

	Engine     playback.Engine
	Bus        playback.Subscriber
	Settings   Settings
	Advertiser discovery.Advertiser
	Notifier   Notifier
	Logger     log.Logger
}

// Controller starts and stops the playback API. Enable, Disable and
// SetEnabled are serialised, so at most one listener and one advertisement
// are live at any time.
type Controller struct {
	mu       sync.Mutex
	cfg      Config
	commands *CommandDispatcher
	handle   *ServerHandle
	logger   log.Logger
}

// NewController creates a disabled controller
func NewController(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = log.NewNopLogger()
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = APIVersion
	}
	if cfg.Notifier == nil {
		cfg.Notifier = LogNotifier{Logger: cfg.Logger}
	}
	if cfg.Advertiser == nil {
		cfg.Advertiser = noopAdvertiser{}
	}
	return &Controller{
		cfg:      cfg,
		commands: NewCommandDispatcher(cfg.Engine, cfg.Logger),
		logger:   cfg.Logger,
	}
}

// ServerHandle owns everything that lives for one enable/disable cycle
type ServerHandle struct {
	listener net.Listener
	server   *http.Server
	hub      *websocket.Hub
	subs     []*playback.Subscription
	active   atomic.Bool
	served   chan struct{}
	logger   log.Logger

	timeMu      sync.Mutex
	lastTime    any
	hasLastTime bool
}

// Port returns the bound TCP port
func (h *ServerHandle) Port() int {
	if addr, ok := h.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Enable starts the listener and the advertisement. It is a no-op when
// already enabled. A bind failure is reported to the notifier and returned
// wrapped in ErrBind.
func (c *Controller) Enable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enableLocked()
}

// Disable stops the listener, drops every connection and withdraws the
// advertisement. It is a no-op when already disabled.
func (c *Controller) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disableLocked()
}

// SetEnabled applies a toggle event and persists the requested state
func (c *Controller) SetEnabled(state bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if state {
		err = c.enableLocked()
	} else {
		c.disableLocked()
	}

	if c.cfg.Settings != nil {
		if serr := c.cfg.Settings.SetBool(settings.KeyPlaybackAPI, state); serr != nil {
			level.Error(c.logger).Log("msg", "failed to persist playback API state", "err", serr)
		}
	}
	return err
}

// Restore enables the API when the persisted flag says so
func (c *Controller) Restore() error {
	if c.cfg.Settings == nil || !c.cfg.Settings.GetBool(settings.KeyPlaybackAPI, false) {
		return nil
	}
	return c.Enable()
}

// Run applies toggle events until ctx is done, then disables the API
func (c *Controller) Run(ctx context.Context, toggles <-chan bool) {
	defer c.Disable()
	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-toggles:
			if !ok {
				<-ctx.Done()
				return
			}
			if err := c.SetEnabled(state); err != nil {
				level.Error(c.logger).Log("msg", "toggle failed", "state", state, "err", err)
			}
		}
	}
}

// Enabled reports whether a listener is live
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle != nil
}

// Port returns the bound port, or 0 when disabled
func (c *Controller) Port() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil {
		return 0
	}
	return c.handle.Port()
}

// ClientCount returns the number of open connections
func (c *Controller) ClientCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil {
		return 0
	}
	return c.handle.hub.Count()
}

func (c *Controller) enableLocked() error {
	if c.handle != nil {
		return nil
	}

	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		c.cfg.Notifier.NotifyError("Could not start Playback API",
			fmt.Sprintf("The playback API attempted (and failed) to start on port %d. Another application is probably using this port", c.cfg.Port))
		level.Error(c.logger).Log("msg", "failed to bind playback API", "addr", addr, "err", err)
		return fmt.Errorf("%w %d: %v", ErrBind, c.cfg.Port, err)
	}

	h := &ServerHandle{
		listener: ln,
		hub:      websocket.NewHub(log.With(c.logger, "component", "hub")),
		served:   make(chan struct{}),
		logger:   c.logger,
	}
	h.hub.SetHandlers(websocket.HubHandlers{
		OnConnect: func(client *websocket.Client) {
			SendSnapshot(client, c.cfg.Engine, c.cfg.APIVersion)
		},
		OnMessage: func(client *websocket.Client, data []byte) {
			c.commands.Handle(client.ID().String(), data)
		},
	})
	h.server = &http.Server{
		Handler:           h.hub,
		ReadHeaderTimeout: 10 * time.Second,
	}
	h.active.Store(true)
	if c.cfg.Bus != nil {
		h.subscribe(c.cfg.Bus)
	}

	go func() {
		defer close(h.served)
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			level.Error(c.logger).Log("msg", "playback API server stopped", "err", err)
		}
	}()

	port := h.Port()
	level.Info(c.logger).Log("msg", "playback API listening", "addr", ln.Addr().String())
	if c.cfg.Settings != nil {
		if err := c.cfg.Settings.SetInt(settings.KeyPlaybackAPIPort, port); err != nil {
			level.Warn(c.logger).Log("msg", "failed to record playback API port", "err", err)
		}
	}

	// Discovery is best-effort: the listener keeps serving without it.
	if err := c.cfg.Advertiser.Start(discovery.Record{
		Instance:   c.cfg.Hostname,
		Port:       port,
		APIVersion: c.cfg.APIVersion,
	}); err != nil {
		level.Warn(c.logger).Log("msg", "could not initialize service discovery", "err", err)
	}

	c.handle = h
	return nil
}

func (c *Controller) disableLocked() {
	h := c.handle
	c.handle = nil
	if h != nil {
		h.shutdown()
		level.Info(c.logger).Log("msg", "playback API stopped")
	}
	c.cfg.Advertiser.Stop()
}

// shutdown invalidates the handle: no more broadcasts, no listener, no clients
func (h *ServerHandle) shutdown() {
	h.active.Store(false)
	for _, sub := range h.subs {
		sub.Unsubscribe()
	}
	h.subs = nil
	h.server.Close()
	h.hub.Close()
	<-h.served
}

type noopAdvertiser struct{}

func (noopAdvertiser) Start(discovery.Record) error { return nil }
func (noopAdvertiser) Stop()                        {}
