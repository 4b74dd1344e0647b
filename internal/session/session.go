package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/apperrors"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/hub"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/player"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/progress"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/protocol"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/queue"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/registry"
)

// Conn is the slice of the hub client the session needs.
type Conn interface {
	Send(msg *protocol.ClientMessage) error
	Status() hub.Status
}

// Notifier surfaces user-visible notices (ControlReverted, transfer failures).
type Notifier interface {
	Notify(message string)
}

// SourceResolver turns a transfer payload into a playable URL via the addon /
// source-resolution layer, honoring this device's own source preferences.
type SourceResolver interface {
	Resolve(ctx context.Context, payload protocol.TransferPayload) (string, error)
}

// BrowseProvider answers browse requests from other devices against this
// device's local library view.
type BrowseProvider interface {
	Browse(query protocol.BrowseQuery) []protocol.BrowseResult
}

type nopNotifier struct{}

func (nopNotifier) Notify(string) {}

// Options wires a Session.
type Options struct {
	Identity   protocol.DeviceIdentity
	Conn       Conn
	Registry   *registry.Registry
	Queue      *queue.Store
	Dispatcher *player.Dispatcher
	Surfaces   *player.Selector

	// Optional collaborators.
	Reconciler *progress.Reconciler
	Resolver   SourceResolver
	Browser    BrowseProvider
	Notifier   Notifier
	Logger     *log.Logger

	TransferTimeout time.Duration
}

// Session is the composition root of the sync protocol: the one place every
// inbound message lands, and the owner of control and transfer state. All
// handlers are idempotent because the broadcast relay may redeliver any frame.
type Session struct {
	identity   protocol.DeviceIdentity
	conn       Conn
	registry   *registry.Registry
	queue      *queue.Store
	dispatcher *player.Dispatcher
	surfaces   *player.Selector
	reconciler *progress.Reconciler
	resolver   SourceResolver
	browser    BrowseProvider
	notifier   Notifier
	logger     *log.Logger

	transferTimeout time.Duration

	mu sync.Mutex
	// Controlling axis: the device this one is driving.
	targetID   string
	targetName string
	// Being-controlled axis: the device driving this one. Independent of the
	// controlling axis; both can be set at once.
	controllerID   string
	controllerName string
	// Transfer pending state.
	pendingTitle    string
	pendingTargetID string
	pendingTimer    *time.Timer
	// Last inbound transfer handled, for redelivery dedup.
	lastTransferKey string
	lastTransferAt  time.Time
}

// transferReplayWindow bounds how long a redelivered transfer frame for the
// same payload is treated as a duplicate rather than a new handoff.
const transferReplayWindow = 10 * time.Second

// New builds a session.
func New(opts Options) *Session {
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.TransferTimeout <= 0 {
		opts.TransferTimeout = 30 * time.Second
	}
	return &Session{
		identity:        opts.Identity,
		conn:            opts.Conn,
		registry:        opts.Registry,
		queue:           opts.Queue,
		dispatcher:      opts.Dispatcher,
		surfaces:        opts.Surfaces,
		reconciler:      opts.Reconciler,
		resolver:        opts.Resolver,
		browser:         opts.Browser,
		notifier:        opts.Notifier,
		logger:          opts.Logger,
		transferTimeout: opts.TransferTimeout,
	}
}

// AttachReconciler sets the progress reconciler after construction, for hosts
// that bring up persistence later than the session.
func (s *Session) AttachReconciler(rc *progress.Reconciler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconciler = rc
}

// HandleConnectionStatus reacts to hub connection transitions: a drop cancels
// the pending-transfer timer so it never resolves against a dead connection.
func (s *Session) HandleConnectionStatus(status hub.Status) {
	if status != hub.StatusDisconnected {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearPendingLocked()
}

// HandleMessage is the entry point for frames from this process's own hub
// connection.
func (s *Session) HandleMessage(msg *protocol.ServerMessage) {
	s.handle(msg, false)
}

// HandleMirrored is the entry point for frames republished by the broadcast
// relay. Mirrored frames update shared state but never act on playback: the
// elected writer already dispatched the command or opened the transfer, and a
// sibling process doing it again would double the side effect.
func (s *Session) HandleMirrored(msg *protocol.ServerMessage) {
	s.handle(msg, true)
}

func (s *Session) handle(msg *protocol.ServerMessage, mirrored bool) {
	if msg == nil {
		return
	}

	switch msg.Type {
	case protocol.MsgDevices:
		s.registry.ApplySnapshot(msg.Devices)
		s.dropVanishedTarget()

	case protocol.MsgDeviceJoined:
		if msg.Device == nil {
			return
		}
		replaced := s.registry.ApplyJoin(*msg.Device)
		if replaced != "" {
			s.retarget(replaced, msg.Device.ID)
		}

	case protocol.MsgDeviceLeft:
		if s.registry.ApplyLeave(msg.DeviceID) {
			s.handleTargetLeft(msg.DeviceID)
		}

	case protocol.MsgNowPlayingUpdate:
		s.registry.UpdateNowPlaying(msg.DeviceID, msg.NowPlaying, msg.IsPlaying, time.Now().UnixMilli())
		s.observeTransferProgress(msg.DeviceID, msg.NowPlaying)
		s.mu.Lock()
		reconciler := s.reconciler
		s.mu.Unlock()
		if reconciler != nil && msg.NowPlaying != nil {
			if _, err := reconciler.Apply(msg.DeviceID, msg.NowPlaying); err != nil {
				s.logger.Printf("progress reconcile failed: %v", err)
			}
		}

	case protocol.MsgTransfer:
		if msg.Transfer == nil || mirrored {
			return
		}
		if s.replayedTransfer(*msg.Transfer) {
			return
		}
		go s.receiveTransfer(*msg.Transfer)

	case protocol.MsgCommand:
		if msg.Command != nil && !mirrored {
			s.dispatcher.Dispatch(*msg.Command)
		}

	case protocol.MsgControlClaimed:
		s.mu.Lock()
		s.controllerID = msg.ControllerID
		s.controllerName = msg.ControllerName
		s.mu.Unlock()

	case protocol.MsgControlReleased:
		s.mu.Lock()
		if msg.ControllerID == "" || msg.ControllerID == s.controllerID {
			s.controllerID = ""
			s.controllerName = ""
		}
		s.mu.Unlock()

	case protocol.MsgBrowseRequest:
		// Answered by the process that owns the hub connection.
		if !mirrored {
			s.answerBrowse(msg)
		}

	case protocol.MsgBrowseResponse:
		// Correlated inside the hub client; nothing to do here.

	case protocol.MsgNotification:
		if msg.Message != "" {
			s.notifier.Notify(msg.Message)
		}

	case protocol.MsgQueueUpdated:
		s.queue.Replace(msg.Queue)

	case protocol.MsgError:
		s.logger.Printf("hub error: %s", msg.Message)
	}
}

// answerBrowse responds to another device browsing this one's library. A
// request carrying this device's own id is a relay echo of an outbound
// browse, not something to answer.
func (s *Session) answerBrowse(msg *protocol.ServerMessage) {
	if msg.RequestID == "" || msg.FromID == s.identity.ID {
		return
	}
	var results []protocol.BrowseResult
	if s.browser != nil && msg.Query != nil {
		results = s.browser.Browse(*msg.Query)
	}
	if err := s.conn.Send(&protocol.ClientMessage{
		Type:      protocol.MsgBrowseResponse,
		TargetID:  msg.FromID,
		RequestID: msg.RequestID,
		Results:   results,
	}); err != nil {
		s.logger.Printf("browse response failed: %v", err)
	}
}

// ReportNowPlaying publishes this device's own playback state. Failures while
// disconnected are expected and dropped; presence catches up on reconnect.
func (s *Session) ReportNowPlaying(nowPlaying *protocol.NowPlayingInfo, isPlaying bool) {
	if err := s.conn.Send(&protocol.ClientMessage{
		Type:       protocol.MsgNowPlayingUpdate,
		NowPlaying: nowPlaying,
		IsPlaying:  isPlaying,
	}); err != nil {
		s.logger.Printf("now-playing report dropped: %v", err)
	}
}

// NotifyDevice shows a message on another device's notification surface.
func (s *Session) NotifyDevice(targetID, message string) error {
	if _, ok := s.registry.Get(targetID); !ok {
		return apperrors.NewTargetUnavailableError(targetID)
	}
	return s.conn.Send(&protocol.ClientMessage{
		Type:     protocol.MsgNotify,
		TargetID: targetID,
		Message:  message,
	})
}

// SendCommand relays a playback action to another device.
func (s *Session) SendCommand(targetID string, cmd protocol.Command) error {
	if _, ok := s.registry.Get(targetID); !ok {
		return apperrors.NewTargetUnavailableError(targetID)
	}
	return s.conn.Send(&protocol.ClientMessage{
		Type:     protocol.MsgCommand,
		TargetID: targetID,
		Command:  &cmd,
	})
}

// Close releases timers. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearPendingLocked()
}
