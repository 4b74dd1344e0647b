package registry

import (
	"log"
	"sort"
	"sync"

	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/protocol"
)

// Registry holds the deduplicated set of known remote devices. It is the sole
// owner of that set; other components read snapshots via Devices/Get.
//
// Devices are keyed by id but deduplicated by (name, deviceClass): a device
// that wipes its local state reconnects with a fresh id while remaining "the
// same device" to the user, and the stale entry must not linger as a phantom.
type Registry struct {
	mu      sync.RWMutex
	selfID  string
	devices map[string]protocol.DeviceInfo
	logger  *log.Logger
}

// New creates a registry for the given local device id. The local device is
// never a member of its own registry.
func New(selfID string, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		selfID:  selfID,
		devices: make(map[string]protocol.DeviceInfo),
		logger:  logger,
	}
}

type identityKey struct {
	name  string
	class protocol.DeviceClass
}

// ApplySnapshot replaces the whole set from a full presence snapshot,
// excluding self and keeping the most-recently-seen entry per
// (name, deviceClass).
func (r *Registry) ApplySnapshot(devices []protocol.DeviceInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byIdentity := make(map[identityKey]protocol.DeviceInfo)
	for _, device := range devices {
		if device.ID == "" || device.ID == r.selfID {
			continue
		}
		key := identityKey{device.Name, device.DeviceClass}
		if existing, ok := byIdentity[key]; ok && existing.LastSeenAt >= device.LastSeenAt {
			continue
		}
		byIdentity[key] = device
	}

	r.devices = make(map[string]protocol.DeviceInfo, len(byIdentity))
	for _, device := range byIdentity {
		r.devices[device.ID] = device
	}
}

// ApplyJoin inserts or replaces a single device. When an existing entry shares
// (name, deviceClass) under a different id, that entry is a phantom from a
// stale session: it is removed and its id returned so the caller can re-point
// an active control or transfer target at the new id.
func (r *Registry) ApplyJoin(device protocol.DeviceInfo) (replacedID string) {
	if device.ID == "" || device.ID == r.selfID {
		return ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := identityKey{device.Name, device.DeviceClass}
	for id, existing := range r.devices {
		if id == device.ID {
			continue
		}
		if (identityKey{existing.Name, existing.DeviceClass}) == key {
			delete(r.devices, id)
			replacedID = id
			r.logger.Printf("replaced phantom device %s with %s (%s)", id, device.ID, device.Name)
			break
		}
	}

	r.devices[device.ID] = device
	return replacedID
}

// ApplyLeave removes a device by id. Reports whether anything was removed so
// the caller can clear a dangling target.
func (r *Registry) ApplyLeave(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; !ok {
		return false
	}
	delete(r.devices, id)
	return true
}

// UpdateNowPlaying folds a now-playing report into the device's entry. Reports
// for unknown devices are dropped; the entry lifecycle is owned by presence
// messages.
func (r *Registry) UpdateNowPlaying(id string, nowPlaying *protocol.NowPlayingInfo, isPlaying bool, seenAt int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[id]
	if !ok {
		return
	}
	device.NowPlaying = nowPlaying
	device.IsPlaying = isPlaying
	if seenAt > device.LastSeenAt {
		device.LastSeenAt = seenAt
	}
	r.devices[id] = device
}

// Get returns the entry for a device id.
func (r *Registry) Get(id string) (protocol.DeviceInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	device, ok := r.devices[id]
	return device, ok
}

// Devices returns a stable-ordered snapshot of the current set.
func (r *Registry) Devices() []protocol.DeviceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]protocol.DeviceInfo, 0, len(r.devices))
	for _, device := range r.devices {
		devices = append(devices, device)
	}
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Name != devices[j].Name {
			return devices[i].Name < devices[j].Name
		}
		return devices[i].ID < devices[j].ID
	})
	return devices
}
