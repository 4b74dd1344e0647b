package player

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/protocol"
)

// fakeSurface records every call; embed it and flip fields per test.
type fakeSurface struct {
	available bool
	calls     []string
	seekTo    float64
	volume    float64
	trackID   string
	srcIndex  int
	failWith  error
	state     *protocol.NowPlayingInfo
}

func (f *fakeSurface) Available() bool { return f.available }

func (f *fakeSurface) record(name string) error {
	f.calls = append(f.calls, name)
	return f.failWith
}

func (f *fakeSurface) Play() error     { return f.record("play") }
func (f *fakeSurface) Pause() error    { return f.record("pause") }
func (f *fakeSurface) Toggle() error   { return f.record("toggle") }
func (f *fakeSurface) Stop() error     { return f.record("stop") }
func (f *fakeSurface) Next() error     { return f.record("next") }
func (f *fakeSurface) Previous() error { return f.record("previous") }
func (f *fakeSurface) Seek(pos float64) error {
	f.seekTo = pos
	return f.record("seek")
}
func (f *fakeSurface) SetVolume(level float64) error {
	f.volume = level
	return f.record("setVolume")
}
func (f *fakeSurface) SetAudioTrack(id string) error {
	f.trackID = id
	return f.record("setAudioTrack")
}
func (f *fakeSurface) SetSubtitleTrack(id string) error {
	f.trackID = id
	return f.record("setSubtitleTrack")
}
func (f *fakeSurface) Fullscreen() error { return f.record("fullscreen") }
func (f *fakeSurface) PlayEpisode(imdbID string, season, episode int) error {
	return f.record("playEpisode")
}
func (f *fakeSurface) PlaySource(index int) error {
	f.srcIndex = index
	return f.record("playSource")
}
func (f *fakeSurface) Open(url string, opts OpenOptions) error { return f.record("open") }
func (f *fakeSurface) State() *protocol.NowPlayingInfo         { return f.state }

func TestSelector_PrefersLocalWhenAvailable(t *testing.T) {
	local := &fakeSurface{available: true}
	bridge := &fakeSurface{available: true}
	selector := NewSelector(local, bridge)

	require.Same(t, PlaybackSurface(local), selector.Active())

	local.available = false
	require.Same(t, PlaybackSurface(bridge), selector.Active())

	bridge.available = false
	require.Nil(t, selector.Active())
}

func TestDispatch_RoutesActions(t *testing.T) {
	surface := &fakeSurface{available: true}
	d := NewDispatcher(NewSelector(surface, nil), nil)

	pos := 42.5
	vol := 0.8
	track := "sub-en"
	idx := 2

	d.Dispatch(protocol.Command{Action: "play"})
	d.Dispatch(protocol.Command{Action: "seek", Payload: protocol.CommandPayload{Position: &pos}})
	d.Dispatch(protocol.Command{Action: "setVolume", Payload: protocol.CommandPayload{Volume: &vol}})
	d.Dispatch(protocol.Command{Action: "setSubtitleTrack", Payload: protocol.CommandPayload{TrackID: &track}})
	d.Dispatch(protocol.Command{Action: "playSource", Payload: protocol.CommandPayload{Index: &idx}})

	require.Equal(t, []string{"play", "seek", "setVolume", "setSubtitleTrack", "playSource"}, surface.calls)
	require.Equal(t, 42.5, surface.seekTo)
	require.Equal(t, 0.8, surface.volume)
	require.Equal(t, "sub-en", surface.trackID)
	require.Equal(t, 2, surface.srcIndex)
}

func TestDispatch_UnknownActionIgnored(t *testing.T) {
	surface := &fakeSurface{available: true}
	d := NewDispatcher(NewSelector(surface, nil), nil)

	d.Dispatch(protocol.Command{Action: "levitate"})
	require.Empty(t, surface.calls)
}

func TestDispatch_NoSurfaceIsHarmless(t *testing.T) {
	d := NewDispatcher(NewSelector(nil, nil), nil)
	d.Dispatch(protocol.Command{Action: "play"})
}

func TestDispatch_SurfaceErrorSuppressesObservers(t *testing.T) {
	surface := &fakeSurface{available: true, failWith: errors.New("player gone")}
	d := NewDispatcher(NewSelector(surface, nil), nil)

	var events []Event
	d.Subscribe(func(e Event) { events = append(events, e) })

	d.Dispatch(protocol.Command{Action: "play"})
	require.Empty(t, events)

	surface.failWith = nil
	d.Dispatch(protocol.Command{Action: "pause"})
	require.Len(t, events, 1)
	require.Equal(t, "pause", events[0].Action)
}

func TestDispatch_MissingArgumentIsIgnored(t *testing.T) {
	surface := &fakeSurface{available: true}
	d := NewDispatcher(NewSelector(surface, nil), nil)

	d.Dispatch(protocol.Command{Action: "seek"}) // no position
	require.Empty(t, surface.calls)
}
