// Package ssdp implements the interface manager and discovery engine for
// SSDP (Simple Service Discovery Protocol): enumerating IPv4 interfaces,
// deriving the device UUID, answering M-SEARCH probes, and emitting
// periodic alive/byebye NOTIFY bursts.
package ssdp

import (
	"bufio"
	"fmt"
	"math/rand"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/anacrolix/log"
)

// ServiceTypes is the fixed, ordered list of advertised search/notify
// types. Index 0 is always the device UUID itself.
func ServiceTypes(uuid string) []string {
	return []string{
		uuid,
		"upnp:rootdevice",
		"urn:schemas-upnp-org:device:MediaServer:",
		"urn:schemas-upnp-org:service:ContentDirectory:",
		"urn:schemas-upnp-org:service:ConnectionManager:",
		"urn:microsoft.com:service:X_MS_MediaReceiverRegistrar:",
	}
}

// Server drives SSDP discovery: it owns the shared receive socket and
// the per-interface notify sockets managed by an InterfaceSet.
type Server struct {
	Interfaces     *InterfaceSet
	UUID           string
	Port           int // the HTTP port advertised in LOCATION
	NotifyInterval time.Duration
	Logger         log.Logger

	recv *net.UDPConn
}

// Listen opens the shared multicast receive socket bound to port 1900.
func (s *Server) Listen() error {
	addr := &net.UDPAddr{IP: net.ParseIP(MulticastAddr), Port: Port}
	conn, err := net.ListenMulticastUDP("udp4", nil, addr)
	if err != nil {
		return fmt.Errorf("ssdp: binding receive socket: %w", err)
	}
	conn.SetReadBuffer(64 * 1024)
	s.recv = conn
	return nil
}

// Close shuts down the receive socket.
func (s *Server) Close() error {
	if s.recv == nil {
		return nil
	}
	return s.recv.Close()
}

// Serve loops reading M-SEARCH datagrams until the receive socket is
// closed, answering each on its own goroutine so a slow random-delay
// sleep never blocks subsequent discovery traffic.
func (s *Server) Serve() error {
	buf := make([]byte, 2048)
	for {
		n, addr, err := s.recv.ReadFromUDP(buf)
		if err != nil {
			return err
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		go s.handleSearch(pkt, addr)
	}
}

type searchRequest struct {
	st  string
	mx  int
	man string
}

func parseSearch(pkt []byte) (searchRequest, bool) {
	const reqLine = "M-SEARCH * HTTP/1.1\r\n"
	text := string(pkt)
	if !strings.HasPrefix(text, reqLine) {
		return searchRequest{}, false
	}
	rest := text[len(reqLine):]
	tp := textproto.NewReader(bufio.NewReader(strings.NewReader(rest)))
	header, err := tp.ReadMIMEHeader()
	if err != nil && len(header) == 0 {
		return searchRequest{}, false
	}
	req := searchRequest{
		st:  strings.TrimSpace(header.Get("ST")),
		man: strings.TrimSpace(header.Get("MAN")),
		mx:  -1,
	}
	if mxStr := strings.TrimSpace(header.Get("MX")); mxStr != "" {
		if v, err := strconv.Atoi(mxStr); err == nil {
			req.mx = v
		}
	}
	return req, true
}

// matchServiceType reports whether st (a search target) matches the
// i'th entry of types, per the versioned-prefix rule: entries 0 and 1
// match only exactly (the UUID and "upnp:rootdevice" carry no version
// suffix); entries 2+ match with an optional trailing "1" possibly
// followed by whitespace.
func matchServiceType(st string, i int, entry string) bool {
	if !strings.HasPrefix(st, entry) {
		return false
	}
	rest := st[len(entry):]
	if i < 2 {
		return rest == ""
	}
	if rest == "" {
		return true
	}
	if rest[0] != '1' {
		return false
	}
	return strings.TrimSpace(rest[1:]) == ""
}

// matches returns the indexes into types that st selects. ST ==
// "ssdp:all" selects every entry.
func matches(st string, types []string) []int {
	if st == "ssdp:all" {
		out := make([]int, len(types))
		for i := range types {
			out[i] = i
		}
		return out
	}
	var out []int
	for i, t := range types {
		if matchServiceType(st, i, t) {
			out = append(out, i)
		}
	}
	return out
}

func usn(uuid string, idx int, types []string) string {
	if idx == 0 {
		return uuid
	}
	suffix := types[idx]
	if idx > 1 {
		suffix += "1"
	}
	return uuid + "::" + suffix
}

func stValue(idx int, types []string) string {
	if idx > 1 {
		return types[idx] + "1"
	}
	return types[idx]
}

func (s *Server) handleSearch(pkt []byte, from *net.UDPAddr) {
	req, ok := parseSearch(pkt)
	if !ok {
		return
	}
	if req.man != `"ssdp:discover"` {
		s.Logger.Levelf(log.Debug, "ignoring M-SEARCH from %s: bad MAN %q", from, req.man)
		return
	}
	if req.mx < 0 {
		s.Logger.Levelf(log.Debug, "ignoring M-SEARCH from %s: bad MX", from)
		return
	}
	if req.st == "" {
		s.Logger.Levelf(log.Debug, "ignoring M-SEARCH from %s: missing ST", from)
		return
	}

	types := ServiceTypes(s.UUID)
	idxs := matches(req.st, types)
	if len(idxs) == 0 {
		return
	}

	host := s.hostFor(from.IP)
	for _, idx := range idxs {
		idx := idx
		go func() {
			d := time.Duration(rand.Int63n(int64(2 * time.Second)))
			time.Sleep(d)
			s.respond(idx, types, from, host)
		}()
	}
}

func (s *Server) hostFor(client net.IP) string {
	if in, ok := s.Interfaces.ForClient(client); ok {
		return in.Addr.String()
	}
	return "127.0.0.1"
}

func (s *Server) maxAge() int {
	return int(2*s.NotifyInterval.Seconds()) + 10
}

func (s *Server) respond(idx int, types []string, to *net.UDPAddr, host string) {
	resp := fmt.Sprintf("HTTP/1.1 200 OK\r\n"+
		"CACHE-CONTROL: max-age=%d\r\n"+
		"DATE: %s\r\n"+
		"ST: %s\r\n"+
		"USN: %s\r\n"+
		"EXT:\r\n"+
		"SERVER: %s\r\n"+
		"LOCATION: http://%s:%d/rootDesc.xml\r\n"+
		"Content-Length: 0\r\n"+
		"\r\n",
		s.maxAge(), time.Now().UTC().Format(time.RFC1123),
		stValue(idx, types), usn(s.UUID, idx, types), ServerField, host, s.Port)
	if _, err := s.recv.WriteToUDP([]byte(resp), to); err != nil {
		s.Logger.Levelf(log.Warning, "sending M-SEARCH response to %s: %v", to, err)
	}
}

// ServerField is the SSDP/HTTP Server: header value advertised by every
// response and NOTIFY this engine emits.
var ServerField = "Linux/3.4 DLNADOC/1.50 UPnP/1.0 microdlna/1"

func (s *Server) notifyBody(in *Interface, idx int, types []string, nts string) string {
	nt := stValue(idx, types)
	return fmt.Sprintf("NOTIFY * HTTP/1.1\r\n"+
		"HOST: %s:%d\r\n"+
		"CACHE-CONTROL: max-age=%d\r\n"+
		"LOCATION: http://%s:%d/rootDesc.xml\r\n"+
		"SERVER: %s\r\n"+
		"NT: %s\r\n"+
		"USN: %s\r\n"+
		"NTS: %s\r\n"+
		"\r\n",
		MulticastAddr, Port, s.maxAge(), in.Addr.String(), s.Port, ServerField,
		nt, usn(s.UUID, idx, types), nts)
}

// sendBursts emits two passes of one NOTIFY per service type, 200us
// apart, on every bound interface.
func (s *Server) sendBursts(nts string) {
	types := ServiceTypes(s.UUID)
	for _, in := range s.Interfaces.Snapshot() {
		for pass := 0; pass < 2; pass++ {
			if pass == 1 {
				time.Sleep(200 * time.Microsecond)
			}
			for idx := range types {
				body := s.notifyBody(in, idx, types, nts)
				if err := in.send([]byte(body)); err != nil {
					s.Logger.Levelf(log.Warning, "sending %s NOTIFY on %s: %v", nts, in.Name, err)
				}
			}
		}
	}
}

// SendAlive emits an ssdp:alive NOTIFY burst on every bound interface.
func (s *Server) SendAlive() { s.sendBursts("ssdp:alive") }

// SendByebye emits an ssdp:byebye NOTIFY burst on every bound interface.
func (s *Server) SendByebye() { s.sendBursts("ssdp:byebye") }
