package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"

	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/protocol"
)

const identityFile = "identity.json"

// Load returns the persisted device identity for this install, creating and
// persisting a fresh one on first run. The identity is immutable for the
// lifetime of the state directory; wiping the directory yields a new id, which
// the registry's phantom-device handling absorbs on the other devices.
func Load(stateDir, nameOverride, classOverride string) (protocol.DeviceIdentity, error) {
	path := filepath.Join(stateDir, identityFile)

	data, err := os.ReadFile(path)
	if err == nil {
		var ident protocol.DeviceIdentity
		if err := json.Unmarshal(data, &ident); err == nil && ident.ID != "" {
			return ident, nil
		}
		// Corrupt file: fall through and regenerate.
	} else if !os.IsNotExist(err) {
		return protocol.DeviceIdentity{}, fmt.Errorf("read identity: %w", err)
	}

	ident := protocol.DeviceIdentity{
		ID:               uuid.NewString(),
		Name:             deviceName(nameOverride),
		DeviceClass:      deviceClass(classOverride),
		UserAgentSummary: userAgentSummary(),
	}

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return protocol.DeviceIdentity{}, fmt.Errorf("create state dir: %w", err)
	}
	payload, err := json.MarshalIndent(ident, "", "  ")
	if err != nil {
		return protocol.DeviceIdentity{}, fmt.Errorf("encode identity: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return protocol.DeviceIdentity{}, fmt.Errorf("persist identity: %w", err)
	}

	return ident, nil
}

func deviceName(override string) string {
	if override != "" {
		return override
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "Unnamed device"
	}
	// Strip mDNS-style suffixes for display.
	return strings.TrimSuffix(host, ".local")
}

func deviceClass(override string) protocol.DeviceClass {
	switch protocol.DeviceClass(strings.ToLower(override)) {
	case protocol.DeviceClassDesktop, protocol.DeviceClassMobile, protocol.DeviceClassTablet, protocol.DeviceClassTV:
		return protocol.DeviceClass(strings.ToLower(override))
	}
	switch runtime.GOOS {
	case "android", "ios":
		return protocol.DeviceClassMobile
	default:
		return protocol.DeviceClassDesktop
	}
}

func userAgentSummary() string {
	return fmt.Sprintf("syncd (%s %s)", runtime.GOOS, runtime.GOARCH)
}
