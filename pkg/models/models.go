package models

import "time"

// Channel names a server -> client envelope stream
type Channel string

const (
	ChannelAPIVersion Channel = "API_VERSION"
	ChannelPlayState  Channel = "playState"
	ChannelShuffle    Channel = "shuffle"
	ChannelRepeat     Channel = "repeat"
	ChannelPlaylists  Channel = "playlists"
	ChannelSong       Channel = "song"
	ChannelTime       Channel = "time"
	ChannelLyrics     Channel = "lyrics"
	ChannelRating     Channel = "rating"
)

// Envelope is the unit sent from server to client
type Envelope struct {
	Channel Channel `json:"channel"`
	Payload any     `json:"payload"`
}

// Command is the unit sent from client to server
type Command struct {
	Namespace string `json:"namespace"`
	Method    string `json:"method"`
	Arguments []any  `json:"arguments"`
}

// ShuffleMode mirrors the player's shuffle setting
type ShuffleMode string

const (
	ShuffleAll ShuffleMode = "ALL_SHUFFLE"
	ShuffleOff ShuffleMode = "NO_SHUFFLE"
)

// RepeatMode mirrors the player's repeat setting
type RepeatMode string

const (
	RepeatList   RepeatMode = "LIST_REPEAT"
	RepeatSingle RepeatMode = "SINGLE_REPEAT"
	RepeatOff    RepeatMode = "NO_REPEAT"
)

// NextRepeat returns the mode a repeat toggle moves to
func (m RepeatMode) NextRepeat() RepeatMode {
	switch m {
	case RepeatOff:
		return RepeatList
	case RepeatList:
		return RepeatSingle
	default:
		return RepeatOff
	}
}

// Song is the metadata of the currently loaded track
type Song struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	AlbumArt string `json:"albumArt"` // URL or file path, empty when unknown
}

// TimeInfo is the playback position, both fields in milliseconds
type TimeInfo struct {
	Current int64 `json:"current"`
	Total   int64 `json:"total"`
}

// Rating is the like/dislike state of the current song
type Rating struct {
	Liked    bool `json:"liked"`
	Disliked bool `json:"disliked"`
}

// Track is one entry of a playlist
type Track struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	Duration int64  `json:"duration"` // milliseconds
}

// Playlist is a named, ordered collection of tracks
type Playlist struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Tracks []Track `json:"tracks"`
}

// RemoteController is a client that registered itself by name with the connect command
type RemoteController struct {
	ID           string    `json:"id"` // UUID
	Name         string    `json:"name"`
	RegisteredAt time.Time `json:"registered_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}
