package protocol

// MessageType tags every frame on the hub connection. Unknown types are
// ignored, never fatal.
type MessageType string

// Server to client.
const (
	MsgDevices          MessageType = "devices"
	MsgDeviceJoined     MessageType = "device-joined"
	MsgDeviceLeft       MessageType = "device-left"
	MsgNowPlayingUpdate MessageType = "now-playing-update"
	MsgTransfer         MessageType = "transfer"
	MsgCommand          MessageType = "command"
	MsgControlClaimed   MessageType = "control-claimed"
	MsgControlReleased  MessageType = "control-released"
	MsgBrowseRequest    MessageType = "browse-request"
	MsgBrowseResponse   MessageType = "browse-response"
	MsgNotification     MessageType = "notification"
	MsgQueueUpdated     MessageType = "queue-updated"
	MsgError            MessageType = "error"
)

// Client to server.
const (
	MsgHello          MessageType = "hello"
	MsgQueueGet       MessageType = "queue-get"
	MsgQueueAdd       MessageType = "queue-add"
	MsgQueueRemove    MessageType = "queue-remove"
	MsgQueueClear     MessageType = "queue-clear"
	MsgQueueReorder   MessageType = "queue-reorder"
	MsgControlClaim   MessageType = "control-claim"
	MsgControlRelease MessageType = "control-release"
	MsgNotify         MessageType = "notify"
)

// DeviceClass categorizes a device for display and dedup purposes.
type DeviceClass string

const (
	DeviceClassDesktop DeviceClass = "desktop"
	DeviceClassMobile  DeviceClass = "mobile"
	DeviceClassTablet  DeviceClass = "tablet"
	DeviceClassTV      DeviceClass = "tv"
)

// DeviceIdentity is the stable per-install identity announced on connect.
type DeviceIdentity struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	DeviceClass      DeviceClass `json:"deviceClass"`
	UserAgentSummary string      `json:"userAgentSummary,omitempty"`
}

// NowPlayingInfo is the playback state the active device reports for itself.
type NowPlayingInfo struct {
	Title           string     `json:"title"`
	ImdbID          string     `json:"imdbId,omitempty"`
	MediaType       string     `json:"mediaType,omitempty"` // "movie" or "show"
	Season          int        `json:"season,omitempty"`
	Episode         int        `json:"episode,omitempty"`
	ProgressSeconds float64    `json:"progressSeconds"`
	DurationSeconds float64    `json:"durationSeconds"`
	Paused          bool       `json:"paused"`
	Volume          *float64   `json:"volume,omitempty"`
	AudioTracks     []Track    `json:"audioTracks,omitempty"`
	SubtitleTracks  []Track    `json:"subtitleTracks,omitempty"`
	Sources         []Source   `json:"sources,omitempty"`
	Subtitles       []Subtitle `json:"subtitles,omitempty"`
}

// Track identifies a selectable audio or subtitle track.
type Track struct {
	ID       string `json:"id"`
	Label    string `json:"label,omitempty"`
	Language string `json:"language,omitempty"`
	Active   bool   `json:"active,omitempty"`
}

// Source is one playable stream variant for the current title.
type Source struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Subtitle is an external subtitle attachment carried through a transfer.
type Subtitle struct {
	URL      string `json:"url"`
	Language string `json:"language,omitempty"`
	Label    string `json:"label,omitempty"`
}

// DeviceInfo is a registry entry for a remote device.
type DeviceInfo struct {
	DeviceIdentity
	LastSeenAt int64           `json:"lastSeenAt"` // unix millis
	NowPlaying *NowPlayingInfo `json:"nowPlaying,omitempty"`
	IsPlaying  bool            `json:"isPlaying"`
}

// TransferPayload hands a stream off to another device. Immutable; not stored
// beyond the handshake.
type TransferPayload struct {
	URL             string     `json:"url"`
	Title           string     `json:"title"`
	ImdbID          string     `json:"imdbId,omitempty"`
	MediaType       string     `json:"mediaType,omitempty"`
	Season          int        `json:"season,omitempty"`
	Episode         int        `json:"episode,omitempty"`
	Subtitles       []Subtitle `json:"subtitles,omitempty"`
	ProgressSeconds float64    `json:"progressSeconds,omitempty"`
	DurationSeconds float64    `json:"durationSeconds,omitempty"`
}

// QueueItem is one entry of the server-owned shared queue.
type QueueItem struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	AddedBy   string     `json:"addedBy"`
	AddedAt   int64      `json:"addedAt"` // unix millis
	MediaType string     `json:"mediaType,omitempty"`
	Season    int        `json:"season,omitempty"`
	Episode   int        `json:"episode,omitempty"`
	ImdbID    string     `json:"imdbId,omitempty"`
	Subtitles []Subtitle `json:"subtitles,omitempty"`
}

// Command is a remote playback action relayed between devices.
type Command struct {
	Action  string         `json:"action"`
	Payload CommandPayload `json:"payload,omitempty"`
}

// CommandPayload carries the optional arguments of a Command. Only the fields
// relevant to the action are set.
type CommandPayload struct {
	Position *float64 `json:"position,omitempty"` // seek
	Volume   *float64 `json:"volume,omitempty"`   // setVolume
	TrackID  *string  `json:"trackId,omitempty"`  // setAudioTrack / setSubtitleTrack
	Index    *int     `json:"index,omitempty"`    // playSource
	ImdbID   string   `json:"imdbId,omitempty"`   // playEpisode
	Season   int      `json:"season,omitempty"`
	Episode  int      `json:"episode,omitempty"`
	URL      string   `json:"url,omitempty"`
}

// BrowseQuery asks a device to enumerate part of its local library view.
type BrowseQuery struct {
	Path   string `json:"path"`
	ImdbID string `json:"imdbId,omitempty"`
	Season int    `json:"season,omitempty"`
}

// BrowseResult is one entry of a browse response.
type BrowseResult struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	Season    int    `json:"season,omitempty"`
	Episode   int    `json:"episode,omitempty"`
}

// ServerMessage is a parsed inbound frame. Exactly the fields implied by Type
// are populated; everything else is zero.
type ServerMessage struct {
	Type MessageType `json:"type"`

	Devices    []DeviceInfo    `json:"devices,omitempty"`    // devices
	Device     *DeviceInfo     `json:"device,omitempty"`     // device-joined
	DeviceID   string          `json:"deviceId,omitempty"`   // device-left, now-playing-update, control-*
	NowPlaying *NowPlayingInfo `json:"nowPlaying,omitempty"` // now-playing-update
	IsPlaying  bool            `json:"isPlaying,omitempty"`  // now-playing-update
	Transfer   *TransferPayload `json:"transfer,omitempty"`  // transfer
	Command    *Command        `json:"command,omitempty"`    // command

	ControllerID   string `json:"controllerId,omitempty"`   // control-claimed
	ControllerName string `json:"controllerName,omitempty"` // control-claimed

	RequestID string         `json:"requestId,omitempty"` // browse-request/-response
	FromID    string         `json:"fromId,omitempty"`    // browse-request origin
	Query     *BrowseQuery   `json:"query,omitempty"`     // browse-request
	Results   []BrowseResult `json:"results,omitempty"`   // browse-response

	Message string      `json:"message,omitempty"` // notification, error
	Queue   []QueueItem `json:"queue"`             // queue-updated (empty list is meaningful)
}

// ClientMessage is an outbound frame. Exactly the fields implied by Type are
// populated.
type ClientMessage struct {
	Type MessageType `json:"type"`

	Identity *DeviceIdentity `json:"identity,omitempty"` // hello

	TargetID string           `json:"targetId,omitempty"` // control-*, transfer, command, notify
	Transfer *TransferPayload `json:"transfer,omitempty"`
	Command  *Command         `json:"command,omitempty"`

	NowPlaying *NowPlayingInfo `json:"nowPlaying,omitempty"` // now-playing-update (self report)
	IsPlaying  bool            `json:"isPlaying,omitempty"`

	Item   *QueueItem `json:"item,omitempty"`   // queue-add
	ItemID string     `json:"itemId,omitempty"` // queue-remove
	Order  []string   `json:"order,omitempty"`  // queue-reorder

	RequestID string         `json:"requestId,omitempty"` // browse-request/-response
	Query     *BrowseQuery   `json:"query,omitempty"`
	Results   []BrowseResult `json:"results,omitempty"`

	Message string `json:"message,omitempty"` // notify
}
