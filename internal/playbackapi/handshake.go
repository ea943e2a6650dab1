package playbackapi

import (
	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/playback"
	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/pkg/models"
)

// Sender queues an envelope for one connection
type Sender interface {
	Send(channel models.Channel, payload any) error
}

// SendSnapshot brings a new connection up to date. The order is fixed:
// API_VERSION, playState, shuffle, repeat, playlists, then song, time and
// lyrics when a song is loaded.
func SendSnapshot(s Sender, engine playback.Snapshot, apiVersion string) {
	s.Send(models.ChannelAPIVersion, apiVersion)
	s.Send(models.ChannelPlayState, engine.IsPlaying())
	s.Send(models.ChannelShuffle, engine.CurrentShuffle())
	s.Send(models.ChannelRepeat, engine.CurrentRepeat())
	s.Send(models.ChannelPlaylists, engine.Playlists())

	song := engine.CurrentSong()
	if song == nil {
		return
	}
	s.Send(models.ChannelSong, song)
	s.Send(models.ChannelTime, engine.CurrentTime())
	s.Send(models.ChannelLyrics, engine.CurrentLyrics())
}
