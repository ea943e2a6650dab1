package playback

import (
	"slices"
	"sync"

	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/pkg/models"
)

// Publisher is the publish half of the bus
type Publisher interface {
	Publish(event Event, payload any)
}

// Tracker holds the last known player state and announces every change on
// the bus. Backends write into it; the API server reads from it.
type Tracker struct {
	mu        sync.RWMutex
	bus       Publisher
	playing   bool
	shuffle   models.ShuffleMode
	repeat    models.RepeatMode
	playlists []models.Playlist
	song      *models.Song
	time      models.TimeInfo
	lyrics    *string
	rating    models.Rating
}

// NewTracker creates a tracker publishing to bus
func NewTracker(bus Publisher) *Tracker {
	return &Tracker{
		bus:       bus,
		shuffle:   models.ShuffleOff,
		repeat:    models.RepeatOff,
		playlists: []models.Playlist{},
	}
}

func (t *Tracker) IsPlaying() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.playing
}

func (t *Tracker) CurrentShuffle() models.ShuffleMode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.shuffle
}

func (t *Tracker) CurrentRepeat() models.RepeatMode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.repeat
}

// Playlists returns a copy of the playlist collection
func (t *Tracker) Playlists() []models.Playlist {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.playlists)
}

// CurrentSong returns nil when nothing is loaded
func (t *Tracker) CurrentSong() *models.Song {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.song == nil {
		return nil
	}
	song := *t.song
	return &song
}

func (t *Tracker) CurrentTime() models.TimeInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.time
}

// CurrentLyrics returns nil when the current song has no lyrics
func (t *Tracker) CurrentLyrics() *string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.lyrics == nil {
		return nil
	}
	l := *t.lyrics
	return &l
}

func (t *Tracker) CurrentRating() models.Rating {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rating
}

func (t *Tracker) SetPlaying(playing bool) {
	t.mu.Lock()
	t.playing = playing
	t.mu.Unlock()
	t.publish(EventState, playing)
}

func (t *Tracker) SetShuffle(mode models.ShuffleMode) {
	t.mu.Lock()
	t.shuffle = mode
	t.mu.Unlock()
	t.publish(EventShuffle, mode)
}

func (t *Tracker) SetRepeat(mode models.RepeatMode) {
	t.mu.Lock()
	t.repeat = mode
	t.mu.Unlock()
	t.publish(EventRepeat, mode)
}

func (t *Tracker) SetPlaylists(playlists []models.Playlist) {
	if playlists == nil {
		playlists = []models.Playlist{}
	}
	t.mu.Lock()
	t.playlists = slices.Clone(playlists)
	t.mu.Unlock()
	t.publish(EventPlaylists, slices.Clone(playlists))
}

// SetSong replaces the current song. A new song clears the rating.
func (t *Tracker) SetSong(song *models.Song) {
	var payload *models.Song
	t.mu.Lock()
	if song != nil {
		s := *song
		t.song = &s
		c := s
		payload = &c
	} else {
		t.song = nil
	}
	t.rating = models.Rating{}
	t.mu.Unlock()
	t.publish(EventSong, payload)
	t.publish(EventRating, models.Rating{})
}

func (t *Tracker) SetTime(ti models.TimeInfo) {
	t.mu.Lock()
	t.time = ti
	t.mu.Unlock()
	t.publish(EventTime, ti)
}

func (t *Tracker) SetLyrics(lyrics *string) {
	var payload *string
	t.mu.Lock()
	if lyrics != nil {
		l := *lyrics
		t.lyrics = &l
		c := l
		payload = &c
	} else {
		t.lyrics = nil
	}
	t.mu.Unlock()
	t.publish(EventLyrics, payload)
}

func (t *Tracker) SetRating(r models.Rating) {
	t.mu.Lock()
	t.rating = r
	t.mu.Unlock()
	t.publish(EventRating, r)
}

func (t *Tracker) publish(event Event, payload any) {
	if t.bus != nil {
		t.bus.Publish(event, payload)
	}
}

// ToggleLike flips the liked flag of the current song and clears dislike
func (t *Tracker) ToggleLike() {
	t.mu.Lock()
	t.rating = models.Rating{Liked: !t.rating.Liked}
	r := t.rating
	t.mu.Unlock()
	t.publish(EventRating, r)
}

// ToggleDislike flips the disliked flag of the current song and clears like
func (t *Tracker) ToggleDislike() {
	t.mu.Lock()
	t.rating = models.Rating{Disliked: !t.rating.Disliked}
	r := t.rating
	t.mu.Unlock()
	t.publish(EventRating, r)
}
