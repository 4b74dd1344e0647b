package player

import (
	"log"
	"sync"

	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/protocol"
)

// Event is published to dispatcher observers after a command lands, so UI
// code can react (fullscreen toggles, subtitle pickers) without ambient
// app-wide events.
type Event struct {
	Action  string
	Payload protocol.CommandPayload
}

// Dispatcher translates inbound remote commands into calls against the active
// playback surface. It holds no playback state and never emits protocol
// messages; its only side effects are on the surface and its observers.
type Dispatcher struct {
	selector *Selector
	logger   *log.Logger

	mu        sync.RWMutex
	observers []func(Event)
}

// NewDispatcher creates a dispatcher over the surface selector.
func NewDispatcher(selector *Selector, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{selector: selector, logger: logger}
}

// Subscribe registers an observer for dispatched commands. The set of
// consumers is declared here, not discovered at runtime.
func (d *Dispatcher) Subscribe(observer func(Event)) {
	d.mu.Lock()
	d.observers = append(d.observers, observer)
	d.mu.Unlock()
}

// Dispatch executes one command. Unknown actions are ignored; surface errors
// are logged, never propagated; a failed remote command must not disturb the
// session.
func (d *Dispatcher) Dispatch(cmd protocol.Command) {
	surface := d.selector.Active()
	if surface == nil {
		d.logger.Printf("no playback surface for command %q", cmd.Action)
		return
	}

	var err error
	switch cmd.Action {
	case "play":
		err = surface.Play()
	case "pause":
		err = surface.Pause()
	case "toggle":
		err = surface.Toggle()
	case "stop":
		err = surface.Stop()
	case "seek":
		if cmd.Payload.Position != nil {
			err = surface.Seek(*cmd.Payload.Position)
		}
	case "setVolume":
		if cmd.Payload.Volume != nil {
			err = surface.SetVolume(*cmd.Payload.Volume)
		}
	case "next":
		err = surface.Next()
	case "previous":
		err = surface.Previous()
	case "setAudioTrack":
		if cmd.Payload.TrackID != nil {
			err = surface.SetAudioTrack(*cmd.Payload.TrackID)
		}
	case "setSubtitleTrack":
		if cmd.Payload.TrackID != nil {
			err = surface.SetSubtitleTrack(*cmd.Payload.TrackID)
		}
	case "fullscreen":
		err = surface.Fullscreen()
	case "playEpisode":
		err = surface.PlayEpisode(cmd.Payload.ImdbID, cmd.Payload.Season, cmd.Payload.Episode)
	case "playSource":
		if cmd.Payload.Index != nil {
			err = surface.PlaySource(*cmd.Payload.Index)
		}
	default:
		return
	}

	if err != nil {
		d.logger.Printf("command %q failed: %v", cmd.Action, err)
		return
	}

	d.mu.RLock()
	observers := d.observers
	d.mu.RUnlock()
	for _, observer := range observers {
		observer(Event{Action: cmd.Action, Payload: cmd.Payload})
	}
}
