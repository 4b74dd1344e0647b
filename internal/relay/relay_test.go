package relay

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// freePort grabs a port the kernel considers free right now.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestElect_FirstBindWins(t *testing.T) {
	lockPort := freePort(t)
	mcastPort := freePort(t)

	first, err := New(lockPort, mcastPort, nil)
	require.NoError(t, err)
	t.Cleanup(first.Close)

	second, err := New(lockPort, mcastPort, nil)
	require.NoError(t, err)
	t.Cleanup(second.Close)

	require.Equal(t, RoleWriter, first.Elect())
	require.Equal(t, RoleListener, second.Elect())

	// Election is stable across repeated calls.
	require.Equal(t, RoleWriter, first.Elect())
	require.Equal(t, RoleListener, second.Elect())
}

func TestElect_LockReleasedOnClose(t *testing.T) {
	lockPort := freePort(t)
	mcastPort := freePort(t)

	first, err := New(lockPort, mcastPort, nil)
	require.NoError(t, err)
	require.Equal(t, RoleWriter, first.Elect())
	first.Close()

	second, err := New(lockPort, mcastPort, nil)
	require.NoError(t, err)
	t.Cleanup(second.Close)
	require.Equal(t, RoleWriter, second.Elect())
}

func TestPublish_RequiresWriterRole(t *testing.T) {
	lockPort := freePort(t)
	mcastPort := freePort(t)

	writer, err := New(lockPort, mcastPort, nil)
	require.NoError(t, err)
	t.Cleanup(writer.Close)
	require.Equal(t, RoleWriter, writer.Elect())

	listener, err := New(lockPort, mcastPort, nil)
	require.NoError(t, err)
	t.Cleanup(listener.Close)
	require.Equal(t, RoleListener, listener.Elect())

	require.ErrorIs(t, listener.Publish([]byte("frame")), ErrNotElected)
}

func TestLoopbackInterface_IsLoopback(t *testing.T) {
	lo, err := loopbackInterface()
	require.NoError(t, err)
	require.NotZero(t, lo.Flags&net.FlagLoopback)
	require.NotZero(t, lo.Flags&net.FlagUp)
}

func TestPublish_SendSocketBoundToLoopback(t *testing.T) {
	lockPort := freePort(t)
	mcastPort := freePort(t)

	writer, err := New(lockPort, mcastPort, nil)
	require.NoError(t, err)
	t.Cleanup(writer.Close)
	require.Equal(t, RoleWriter, writer.Elect())

	require.NoError(t, writer.Publish([]byte("frame")))

	writer.mu.Lock()
	local := writer.sendConn.LocalAddr().(*net.UDPAddr)
	writer.mu.Unlock()
	require.True(t, local.IP.IsLoopback(), "send socket must not use a LAN-facing address, got %s", local.IP)
}

func TestPublish_ReachesListener(t *testing.T) {
	lockPort := freePort(t)
	mcastPort := freePort(t)

	writer, err := New(lockPort, mcastPort, nil)
	require.NoError(t, err)
	t.Cleanup(writer.Close)
	require.Equal(t, RoleWriter, writer.Elect())

	listener, err := New(lockPort, mcastPort, nil)
	require.NoError(t, err)
	t.Cleanup(listener.Close)
	require.Equal(t, RoleListener, listener.Elect())

	var mu sync.Mutex
	var frames [][]byte
	go func() {
		_ = listener.Listen(func(frame []byte) {
			mu.Lock()
			frames = append(frames, frame)
			mu.Unlock()
		})
	}()

	// Give the listener a beat to join the group, then publish a few times;
	// UDP delivery is best-effort even on loopback.
	time.Sleep(100 * time.Millisecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, writer.Publish([]byte(`{"type":"queue-updated","queue":[]}`)))
		time.Sleep(20 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(frames) > 0
	}, 2*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.JSONEq(t, `{"type":"queue-updated","queue":[]}`, string(frames[0]))
}
