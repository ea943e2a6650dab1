package playbackapi

import (
	"reflect"

	"github.com/go-kit/log/level"

	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/playback"
	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/pkg/models"
)

// WireChannel maps a bus event to the channel name clients see
func WireChannel(event playback.Event) models.Channel {
	if event == playback.EventState {
		return models.ChannelPlayState
	}
	return models.Channel(event)
}

// subscribe attaches the handle to every bus event for its lifetime
func (h *ServerHandle) subscribe(bus playback.Subscriber) {
	for _, event := range playback.Events {
		h.subs = append(h.subs, bus.Subscribe(event, func(payload any) {
			h.dispatch(event, payload)
		}))
	}
}

// dispatch pushes one change to every ready connection. Time ticks that
// did not move are dropped.
func (h *ServerHandle) dispatch(event playback.Event, payload any) {
	if !h.active.Load() {
		return
	}
	if event == playback.EventTime && !h.timeChanged(payload) {
		return
	}
	if _, err := h.hub.Broadcast(WireChannel(event), payload); err != nil {
		level.Error(h.logger).Log("msg", "failed to encode broadcast", "channel", event, "err", err)
	}
}

// timeChanged compares payload with the last broadcast time and records it
// when it differs
func (h *ServerHandle) timeChanged(payload any) bool {
	h.timeMu.Lock()
	defer h.timeMu.Unlock()

	if h.hasLastTime && reflect.DeepEqual(h.lastTime, payload) {
		return false
	}
	h.lastTime = payload
	h.hasLastTime = true
	return true
}
