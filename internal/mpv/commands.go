package mpv

import (
	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/internal/playback"
	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/pkg/models"
)

// execute runs one queued command against the player
func (c *Controller) execute(cmd models.Command) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		return playback.ErrNotConnected
	}

	args := cmd.Arguments
	switch cmd.Namespace + "." + cmd.Method {
	case "playback.playPause":
		_, err := client.Call("cycle", "pause")
		return err
	case "playback.play":
		return client.Set("pause", false)
	case "playback.pause":
		return client.Set("pause", true)
	case "playback.forward":
		_, err := client.Call("playlist-next", "force")
		return err
	case "playback.rewind":
		_, err := client.Call("playlist-prev", "force")
		return err
	case "playback.setCurrentTime":
		ms, err := playback.NumberArg(args, 0)
		if err != nil {
			return err
		}
		_, err = client.Call("seek", ms/1000, "absolute")
		return err

	case "playback.toggleShuffle":
		next := models.ShuffleAll
		if c.CurrentShuffle() == models.ShuffleAll {
			next = models.ShuffleOff
		}
		return setShuffle(client, next)
	case "playback.setShuffle":
		mode, err := playback.ParseShuffle(args)
		if err != nil {
			return err
		}
		return setShuffle(client, mode)

	case "playback.toggleRepeat":
		return setRepeat(client, c.CurrentRepeat().NextRepeat())
	case "playback.setRepeat":
		mode, err := playback.ParseRepeat(args)
		if err != nil {
			return err
		}
		return setRepeat(client, mode)

	case "volume.setVolume":
		v, err := playback.NumberArg(args, 0)
		if err != nil {
			return err
		}
		return client.Set("volume", playback.ClampVolume(v))
	case "volume.increaseVolume", "volume.decreaseVolume":
		step, err := playback.VolumeStep(args)
		if err != nil {
			return err
		}
		if cmd.Method == "decreaseVolume" {
			step = -step
		}
		c.stateMu.Lock()
		target := playback.ClampVolume(c.volume + step)
		c.stateMu.Unlock()
		return client.Set("volume", target)

	case "rating.toggleThumbsUp":
		c.ToggleLike()
		return nil
	case "rating.toggleThumbsDown":
		c.ToggleDislike()
		return nil

	case "playlists.play":
		id, err := playback.StringArg(args, 0)
		if err != nil {
			return err
		}
		if id == QueuePlaylistID {
			if _, err := client.Call("playlist-play-index", 0); err != nil {
				return err
			}
		} else if _, err := client.Call("loadlist", id, "replace"); err != nil {
			return err
		}
		return client.Set("pause", false)
	}
	return playback.UnknownCommand(cmd.Namespace, cmd.Method)
}

// setShuffle reorders the playlist; the shuffle option is set as well so the
// observer reports the new mode
func setShuffle(client ipc, mode models.ShuffleMode) error {
	op := "playlist-unshuffle"
	if mode == models.ShuffleAll {
		op = "playlist-shuffle"
	}
	if _, err := client.Call(op); err != nil {
		return err
	}
	return client.Set("shuffle", mode == models.ShuffleAll)
}

func setRepeat(client ipc, mode models.RepeatMode) error {
	loopFile, loopList := "no", "no"
	switch mode {
	case models.RepeatSingle:
		loopFile = "inf"
	case models.RepeatList:
		loopList = "inf"
	}
	if err := client.Set("loop-file", loopFile); err != nil {
		return err
	}
	return client.Set("loop-playlist", loopList)
}
