package ssdp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/anacrolix/log"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// MulticastAddr is the SSDP multicast group.
const MulticastAddr = "239.255.255.250"

// Port is the well-known SSDP UDP port.
const Port = 1900

// MaxInterfaces bounds how many interface bindings are retained at once.
const MaxInterfaces = 4

// Interface is one bound network interface: its address, netmask, and a
// ready-to-send multicast socket.
type Interface struct {
	Name  string
	Addr  net.IP
	Mask  net.IPMask
	Index int

	conn *net.UDPConn
	pc   *ipv4.PacketConn
}

// send transmits buf as a single UDP datagram to the SSDP multicast
// group from this interface's notify socket.
func (in *Interface) send(buf []byte) error {
	dst := &net.UDPAddr{IP: net.ParseIP(MulticastAddr), Port: Port}
	_, err := in.conn.WriteTo(buf, dst)
	return err
}

// Close closes this interface's notify socket. Safe to call on an
// interface that has already been swapped out of an InterfaceSet.
func (in *Interface) Close() error {
	return in.conn.Close()
}

// InterfaceSet is the live, atomically-replaceable collection of bound
// interfaces the SSDP engine advertises on.
type InterfaceSet struct {
	mu       sync.RWMutex
	ifaces   []*Interface
	names    []string // configured interface names; empty means auto-discover
	logger   log.Logger
	reloadMu sync.Mutex
}

// NewInterfaceSet creates a set that will bind the named interfaces, or
// auto-discover every non-loopback interface that is up if names is
// empty.
func NewInterfaceSet(names []string, logger log.Logger) *InterfaceSet {
	return &InterfaceSet{names: names, logger: logger.WithNames("ssdp-if")}
}

// Snapshot returns the currently bound interfaces. Callers must not
// retain the slice across a Reload.
func (s *InterfaceSet) Snapshot() []*Interface {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Interface, len(s.ifaces))
	copy(out, s.ifaces)
	return out
}

// ForClient finds the bound interface whose subnet contains addr. ok is
// false if addr belongs to none of them (the caller should then treat
// the request as loopback/unknown).
func (s *InterfaceSet) ForClient(addr net.IP) (in *Interface, ok bool) {
	addr = addr.To4()
	if addr == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, i := range s.ifaces {
		ia := i.Addr.To4()
		if ia == nil {
			continue
		}
		if sameSubnet(addr, ia, i.Mask) {
			return i, true
		}
	}
	return nil, false
}

func sameSubnet(a, b net.IP, mask net.IPMask) bool {
	if len(a) != len(b) || len(a) != len(mask) {
		return false
	}
	for i := range a {
		if a[i]&mask[i] != b[i]&mask[i] {
			return false
		}
	}
	return true
}

func candidateAddrs(names []string) ([]*net.Interface, error) {
	all, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		var out []*net.Interface
		for i := range all {
			ifi := &all[i]
			if ifi.Flags&net.FlagLoopback != 0 {
				continue
			}
			if ifi.Flags&net.FlagUp == 0 {
				continue
			}
			out = append(out, ifi)
		}
		return out, nil
	}
	var out []*net.Interface
	for _, n := range names {
		for i := range all {
			if all[i].Name == n {
				out = append(out, &all[i])
				break
			}
		}
	}
	return out, nil
}

func openNotifySocket(addr net.IP, index int) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var setErr error
			err := c.Control(func(fd uintptr) {
				setErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
			})
			if err != nil {
				return err
			}
			return setErr
		},
	}
	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf("%s:0", addr.String()))
	if err != nil {
		return nil, err
	}
	conn := pc.(*net.UDPConn)

	p := ipv4.NewPacketConn(conn)
	if err := p.SetMulticastTTL(4); err != nil {
		conn.Close()
		return nil, err
	}
	if err := p.SetMulticastLoopback(false); err != nil {
		conn.Close()
		return nil, err
	}
	if err := p.SetMulticastInterface(&net.Interface{Index: index}); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// Reload rebuilds the interface set from scratch: it resolves the
// configured (or auto-discovered) interfaces, opens a fresh notify
// socket for up to MaxInterfaces of them, and swaps them in atomically.
// The caller is responsible for emitting byebye/alive NOTIFY bursts
// around the swap; Reload itself only manages sockets.
func (s *InterfaceSet) Reload() ([]*Interface, []*Interface, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	cands, err := candidateAddrs(s.names)
	if err != nil {
		return nil, nil, err
	}

	var fresh []*Interface
	for _, ifi := range cands {
		if len(fresh) >= MaxInterfaces {
			break
		}
		addrs, err := ifi.Addrs()
		if err != nil {
			s.logger.Levelf(log.Warning, "listing addrs on %s: %v", ifi.Name, err)
			continue
		}
		for _, a := range addrs {
			ipn, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipn.IP.To4()
			if ip4 == nil {
				continue
			}
			conn, err := openNotifySocket(ip4, ifi.Index)
			if err != nil {
				s.logger.Levelf(log.Warning, "opening notify socket on %s: %v", ifi.Name, err)
				continue
			}
			fresh = append(fresh, &Interface{
				Name:  ifi.Name,
				Addr:  ip4,
				Mask:  ipn.Mask,
				Index: ifi.Index,
				conn:  conn,
				pc:    ipv4.NewPacketConn(conn),
			})
			break
		}
	}

	s.mu.Lock()
	old := s.ifaces
	s.ifaces = fresh
	s.mu.Unlock()

	return old, fresh, nil
}

// CloseAll closes every socket owned by this set.
func (s *InterfaceSet) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	CloseInterfaces(s.ifaces)
	s.ifaces = nil
}

// CloseInterfaces closes the notify socket of every interface in ifs.
// Used to release the set Reload swapped out, which InterfaceSet no
// longer references and so cannot close itself.
func CloseInterfaces(ifs []*Interface) {
	for _, i := range ifs {
		i.Close()
	}
}

// ReloadWithBackoff retries Reload with exponential backoff (capped at
// 60s) until at least one interface is bound, or ctx-like cancellation
// is observed via the stop channel.
func (s *InterfaceSet) ReloadWithBackoff(stop <-chan struct{}) ([]*Interface, []*Interface) {
	backoff := time.Second
	const max = 60 * time.Second
	for {
		old, fresh, err := s.Reload()
		if err == nil && len(fresh) > 0 {
			return old, fresh
		}
		if err != nil {
			s.logger.Levelf(log.Warning, "interface reload failed: %v", err)
		} else {
			s.logger.Levelf(log.Warning, "no usable interfaces found, retrying in %s", backoff)
		}
		select {
		case <-stop:
			return old, fresh
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > max {
			backoff = max
		}
	}
}
