package session

import (
	"context"
	"fmt"
	"time"

	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/hub"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/player"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/protocol"
)

// Transfer hands the current stream off to another device. Returns false
// immediately when the hub connection is down or the target is unknown; the
// local player keeps playing in that case. On success the handoff is pending
// until the target reports the title as its own now-playing, or until the
// timeout clears it and tells the user.
func (s *Session) Transfer(targetID string, payload protocol.TransferPayload) bool {
	if s.conn.Status() != hub.StatusConnected {
		return false
	}
	if _, ok := s.registry.Get(targetID); !ok {
		return false
	}

	if err := s.conn.Send(&protocol.ClientMessage{
		Type:     protocol.MsgTransfer,
		TargetID: targetID,
		Transfer: &payload,
	}); err != nil {
		s.logger.Printf("transfer send failed: %v", err)
		return false
	}

	s.mu.Lock()
	s.clearPendingLocked()
	s.pendingTitle = payload.Title
	s.pendingTargetID = targetID
	s.pendingTimer = time.AfterFunc(s.transferTimeout, s.expirePending)
	s.mu.Unlock()
	return true
}

// TransferPending reports whether a handoff is awaiting confirmation.
func (s *Session) TransferPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingTimer != nil
}

// observeTransferProgress confirms a pending handoff when the target starts
// reporting playback. Any non-nil now-playing from the target counts: the
// target may have resolved a different source for the same title.
func (s *Session) observeTransferProgress(deviceID string, nowPlaying *protocol.NowPlayingInfo) {
	if nowPlaying == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingTimer == nil || deviceID != s.pendingTargetID {
		return
	}
	s.clearPendingLocked()
}

// expirePending clears the handoff when the timer fires. The hub has no
// transfer-ack concept, so the far end is assumed to have failed silently and
// nothing further is surfaced.
func (s *Session) expirePending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearPendingLocked()
}

func (s *Session) clearPendingLocked() {
	if s.pendingTimer != nil {
		s.pendingTimer.Stop()
		s.pendingTimer = nil
	}
	s.pendingTitle = ""
	s.pendingTargetID = ""
}

// replayedTransfer reports whether this payload was already handled within
// the replay window, and records it otherwise. The relay can redeliver a
// transfer frame; opening playback twice for one handoff must not happen.
func (s *Session) replayedTransfer(payload protocol.TransferPayload) bool {
	key := fmt.Sprintf("%s|%s|%d|%d|%.0f", payload.URL, payload.Title, payload.Season, payload.Episode, payload.ProgressSeconds)

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if key == s.lastTransferKey && now.Sub(s.lastTransferAt) < transferReplayWindow {
		return true
	}
	s.lastTransferKey = key
	s.lastTransferAt = now
	return false
}

// receiveTransfer plays a handoff addressed to this device. The placeholder
// now-playing report goes out first so the sender's pending state resolves
// even while source resolution is still running; a later report replaces the
// placeholder with real progress.
func (s *Session) receiveTransfer(payload protocol.TransferPayload) {
	s.ReportNowPlaying(&protocol.NowPlayingInfo{
		Title:           payload.Title,
		ImdbID:          payload.ImdbID,
		MediaType:       payload.MediaType,
		Season:          payload.Season,
		Episode:         payload.Episode,
		ProgressSeconds: payload.ProgressSeconds,
		DurationSeconds: payload.DurationSeconds,
	}, true)

	url := payload.URL
	if s.resolver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.transferTimeout)
		defer cancel()
		resolved, err := s.resolver.Resolve(ctx, payload)
		if err != nil {
			s.logger.Printf("source resolution for %q failed, using sender url: %v", payload.Title, err)
		} else if resolved != "" {
			url = resolved
		}
	}
	if url == "" {
		s.logger.Printf("transfer of %q has no playable url", payload.Title)
		s.notifier.Notify("Could not play " + payload.Title)
		return
	}

	surface := s.surfaces.Active()
	if surface == nil {
		s.logger.Printf("transfer of %q dropped: no playback surface", payload.Title)
		return
	}
	if err := surface.Open(url, openOptionsFor(payload)); err != nil {
		s.logger.Printf("open for transfer of %q failed: %v", payload.Title, err)
		s.notifier.Notify("Could not play " + payload.Title)
	}
}

func openOptionsFor(payload protocol.TransferPayload) player.OpenOptions {
	return player.OpenOptions{
		Title:           payload.Title,
		Subtitles:       payload.Subtitles,
		ProgressSeconds: payload.ProgressSeconds,
	}
}
