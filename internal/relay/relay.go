package relay

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"

	"golang.org/x/net/ipv4"
)

// Role is the outcome of writer election.
type Role string

const (
	// RoleWriter owns the hub connection and republishes every hub frame to
	// sibling processes on this host.
	RoleWriter Role = "writer"
	// RoleListener consumes republished frames and never opens its own hub
	// connection, so one physical device stays one logical device.
	RoleListener Role = "listener"
)

// ErrNotElected is returned by Publish on a listener.
var ErrNotElected = errors.New("relay: not the elected writer")

const multicastGroup = "239.255.42.99"

// Relay fans hub frames out to every sibling process of the same logical
// device. Election is a loopback TCP bind: whoever holds the lock port is the
// writer; everyone else listens. Frames travel over UDP multicast pinned to
// the loopback interface on both ends, so N listeners can join without
// coordination and no frame ever leaves the host. Two machines on one LAN
// must never hear each other's relay, or their logical devices would merge.
type Relay struct {
	lockPort  int
	groupAddr *net.UDPAddr
	logger    *log.Logger

	mu       sync.Mutex
	role     Role
	lock     net.Listener // held while writer
	sendConn *net.UDPConn
	recvConn *net.UDPConn
	closed   bool
}

// New creates a relay using the given loopback lock port and multicast port.
func New(lockPort, multicastPort int, logger *log.Logger) (*Relay, error) {
	if logger == nil {
		logger = log.Default()
	}
	groupAddr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", multicastGroup, multicastPort))
	if err != nil {
		return nil, fmt.Errorf("relay: resolve group: %w", err)
	}
	return &Relay{
		lockPort:  lockPort,
		groupAddr: groupAddr,
		logger:    logger,
	}, nil
}

// Elect determines this process's role. The first process to bind the lock
// port is the writer; the bind is held until Close so the role is stable for
// the process lifetime.
func (r *Relay) Elect() Role {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.role != "" {
		return r.role
	}

	lock, err := net.Listen("tcp4", fmt.Sprintf("127.0.0.1:%d", r.lockPort))
	if err != nil {
		r.role = RoleListener
		r.logger.Printf("relay: lock port held elsewhere, running as listener")
		return r.role
	}
	r.lock = lock
	r.role = RoleWriter
	return r.role
}

// Role returns the elected role, or empty before Elect.
func (r *Relay) Role() Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.role
}

// loopbackInterface finds the host's loopback interface, which both relay
// sockets are pinned to.
func loopbackInterface() (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("relay: list interfaces: %w", err)
	}
	for i := range ifaces {
		if ifaces[i].Flags&net.FlagLoopback != 0 && ifaces[i].Flags&net.FlagUp != 0 {
			return &ifaces[i], nil
		}
	}
	return nil, errors.New("relay: no loopback interface")
}

// Publish rebroadcasts one hub frame to listeners. Writer only; listeners are
// receive-only by contract and never feed frames back toward the hub.
func (r *Relay) Publish(frame []byte) error {
	r.mu.Lock()
	if r.role != RoleWriter {
		r.mu.Unlock()
		return ErrNotElected
	}
	if r.sendConn == nil {
		conn, err := r.dialGroupLocked()
		if err != nil {
			r.mu.Unlock()
			return err
		}
		r.sendConn = conn
	}
	conn := r.sendConn
	r.mu.Unlock()

	if _, err := conn.WriteToUDP(frame, r.groupAddr); err != nil {
		return fmt.Errorf("relay: publish: %w", err)
	}
	return nil
}

// dialGroupLocked opens the send socket with loopback as the outgoing
// multicast interface. Caller holds r.mu.
func (r *Relay) dialGroupLocked() (*net.UDPConn, error) {
	lo, err := loopbackInterface()
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return nil, fmt.Errorf("relay: open send socket: %w", err)
	}
	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetMulticastInterface(lo); err != nil {
		conn.Close()
		return nil, fmt.Errorf("relay: pin send interface: %w", err)
	}
	if err := pc.SetMulticastLoopback(true); err != nil {
		conn.Close()
		return nil, fmt.Errorf("relay: enable loopback delivery: %w", err)
	}
	return conn, nil
}

// Listen joins the multicast group on the loopback interface and delivers
// each republished frame to the handler until Close. Blocks; run on its own
// goroutine.
func (r *Relay) Listen(handler func(frame []byte)) error {
	lo, err := loopbackInterface()
	if err != nil {
		return err
	}
	conn, err := net.ListenMulticastUDP("udp4", lo, r.groupAddr)
	if err != nil {
		return fmt.Errorf("relay: join group: %w", err)
	}
	_ = conn.SetReadBuffer(256 * 1024)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.Close()
		return nil
	}
	r.recvConn = conn
	r.mu.Unlock()

	buf := make([]byte, 64*1024)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			r.mu.Lock()
			closed := r.closed
			r.mu.Unlock()
			if closed {
				return nil
			}
			return fmt.Errorf("relay: read: %w", err)
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		handler(frame)
	}
}

// Close releases the writer lock and stops any listen loop.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if r.lock != nil {
		r.lock.Close()
		r.lock = nil
	}
	if r.sendConn != nil {
		r.sendConn.Close()
		r.sendConn = nil
	}
	if r.recvConn != nil {
		r.recvConn.Close()
		r.recvConn = nil
	}
}
