package player

import "github.com/Vansh-Bhardwaj/debridui-sync-go/internal/protocol"

// PlaybackSurface is the local playback capability commands act on. The in-app
// player and the external player bridge both implement it; the sync core never
// renders anything itself.
type PlaybackSurface interface {
	// Available reports whether this surface can take commands right now
	// (e.g. the in-app player has a mounted media element).
	Available() bool

	Play() error
	Pause() error
	Toggle() error
	Stop() error
	Seek(positionSeconds float64) error
	SetVolume(level float64) error
	Next() error
	Previous() error
	SetAudioTrack(id string) error
	SetSubtitleTrack(id string) error
	Fullscreen() error
	PlayEpisode(imdbID string, season, episode int) error
	PlaySource(index int) error

	// Open starts playback of a resolved URL, used when a transfer lands on
	// this device.
	Open(url string, opts OpenOptions) error

	// State returns the current now-playing snapshot, or nil when idle.
	State() *protocol.NowPlayingInfo
}

// OpenOptions carries the context of an Open call.
type OpenOptions struct {
	Title           string
	Subtitles       []protocol.Subtitle
	ProgressSeconds float64
}

// Selector picks the surface a command lands on: the in-app player when it is
// present, otherwise the external bridge. The rule is evaluated per command,
// not cached, because the in-app player mounts and unmounts as the UI
// navigates.
type Selector struct {
	local  PlaybackSurface
	bridge PlaybackSurface
}

// NewSelector creates a selector. Either surface may be nil.
func NewSelector(local, bridge PlaybackSurface) *Selector {
	return &Selector{local: local, bridge: bridge}
}

// Active returns the surface to use right now, or nil when none is available.
func (s *Selector) Active() PlaybackSurface {
	if s.local != nil && s.local.Available() {
		return s.local
	}
	if s.bridge != nil && s.bridge.Available() {
		return s.bridge
	}
	return nil
}
