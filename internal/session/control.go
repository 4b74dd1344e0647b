package session

import (
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/protocol"
)

// ControlState is a read-only view of both control axes.
type ControlState struct {
	TargetID       string `json:"targetId,omitempty"`
	TargetName     string `json:"targetName,omitempty"`
	ControllerID   string `json:"controllerId,omitempty"`
	ControllerName string `json:"controllerName,omitempty"`
}

// ControlState reports who this device is driving and who is driving it.
func (s *Session) ControlState() ControlState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ControlState{
		TargetID:       s.targetID,
		TargetName:     s.targetName,
		ControllerID:   s.controllerID,
		ControllerName: s.controllerName,
	}
}

// SetActiveTarget switches which device this one is driving. An empty id
// releases the current target. The local switch always succeeds; claim and
// release sends are best-effort and a failure leaves the hub to reconcile
// state on reconnect.
func (s *Session) SetActiveTarget(id string) {
	s.mu.Lock()
	previous := s.targetID
	if id == previous {
		s.mu.Unlock()
		return
	}

	if id == "" {
		s.targetID = ""
		s.targetName = ""
	} else {
		device, ok := s.registry.Get(id)
		if !ok {
			s.mu.Unlock()
			return
		}
		s.targetID = id
		s.targetName = device.Name
	}
	s.mu.Unlock()

	if previous != "" {
		if err := s.conn.Send(&protocol.ClientMessage{
			Type:     protocol.MsgControlRelease,
			TargetID: previous,
		}); err != nil {
			s.logger.Printf("control release for %s dropped: %v", previous, err)
		}
	}
	if id != "" {
		if err := s.conn.Send(&protocol.ClientMessage{
			Type:     protocol.MsgControlClaim,
			TargetID: id,
		}); err != nil {
			s.logger.Printf("control claim for %s dropped: %v", id, err)
		}
	}
}

// retarget re-points control and transfer state when a phantom entry was
// replaced by a fresh id for the same (name, deviceClass).
func (s *Session) retarget(oldID, newID string) {
	s.mu.Lock()
	reclaim := false
	if s.targetID == oldID {
		s.targetID = newID
		reclaim = true
	}
	if s.pendingTargetID == oldID {
		s.pendingTargetID = newID
	}
	s.mu.Unlock()

	if reclaim {
		if err := s.conn.Send(&protocol.ClientMessage{
			Type:     protocol.MsgControlClaim,
			TargetID: newID,
		}); err != nil {
			s.logger.Printf("control re-claim for %s dropped: %v", newID, err)
		}
	}
}

// handleTargetLeft clears the controlling axis when the driven device
// disconnects, with exactly one user notification. Redelivered device-left
// frames are no-ops because ApplyLeave already reported the entry gone.
func (s *Session) handleTargetLeft(id string) {
	s.mu.Lock()
	notify := ""
	if s.targetID == id {
		notify = s.targetName
		s.targetID = ""
		s.targetName = ""
	}
	if s.controllerID == id {
		s.controllerID = ""
		s.controllerName = ""
	}
	if s.pendingTargetID == id {
		s.clearPendingLocked()
	}
	s.mu.Unlock()

	if notify != "" {
		s.notifier.Notify("Lost control of " + notify)
	}
}

// dropVanishedTarget clears control state whose device is absent from a fresh
// presence snapshot.
func (s *Session) dropVanishedTarget() {
	s.mu.Lock()
	id := s.targetID
	s.mu.Unlock()
	if id == "" {
		return
	}
	if _, ok := s.registry.Get(id); !ok {
		s.handleTargetLeft(id)
	}
}
