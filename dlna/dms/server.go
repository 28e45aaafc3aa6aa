// Package dms is the main loop: it owns the HTTP listener, the SSDP
// engine, the event-subscription engine, and the directory lister, and
// wires an incoming request through to one of those subsystems.
package dms

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/user"
	"sync"
	"time"

	"github.com/anacrolix/log"

	"github.com/anacrolix/microdlna/content"
	"github.com/anacrolix/microdlna/events"
	"github.com/anacrolix/microdlna/icons"
	"github.com/anacrolix/microdlna/ssdp"
)

const serverVersion = "1"

const (
	rootDescPath   = "/rootDesc.xml"
	serviceCtlPath = "/ctl/"
	serviceEvtPath = "/evt/"
	mediaItemsPath = "/MediaItems/"
	iconsPath      = "/icons/"
)

// Config is the immutable set of startup parameters a Server is built
// from; every field is an external-collaborator input (CLI flags,
// environment, config file).
type Config struct {
	Port           int
	NotifyInterval time.Duration
	MaxConnections int
	MediaRoot      string
	FriendlyName   string
	UUID           string // override; empty derives from a MAC address
	InterfaceNames []string
	LogHeaders     bool
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = 2800
	}
	if c.NotifyInterval == 0 {
		c.NotifyInterval = 895 * time.Second
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = 10
	}
	return c
}

// Server ties together the directory lister, the SOAP/DIDL dispatch,
// the SSDP discovery engine, and the GENA event engine behind one HTTP
// front end.
type Server struct {
	Config Config
	Logger log.Logger

	uuid         string
	friendlyName string

	lister  *content.Lister
	events  *events.Engine
	icons   []icons.Icon
	ifaces  *ssdp.InterfaceSet
	ssdp    *ssdp.Server
	mux     *http.ServeMux

	rootDescXML []byte

	listener net.Listener
	httpSrv  *http.Server

	workers chan struct{}

	closing    chan struct{}
	closeOnce  sync.Once
	stopNotify chan struct{}
}

// New builds a Server from cfg, deriving the device UUID, building the
// device description, and constructing (but not yet starting) every
// subsystem.
func New(cfg Config, logger log.Logger) (*Server, error) {
	cfg = cfg.withDefaults()
	if cfg.MediaRoot == "" {
		return nil, fmt.Errorf("dms: MediaRoot is required")
	}

	uuid, err := ssdp.DeviceUUID(cfg.UUID)
	if err != nil {
		return nil, err
	}

	friendlyName := cfg.FriendlyName
	if friendlyName == "" {
		friendlyName = defaultFriendlyName()
	}

	builtIcons, err := icons.Build()
	if err != nil {
		return nil, fmt.Errorf("dms: building icons: %w", err)
	}

	s := &Server{
		Config:       cfg,
		Logger:       logger,
		uuid:         uuid,
		friendlyName: friendlyName,
		icons:        builtIcons,
		lister:       content.NewLister(cfg.MediaRoot, logger),
		events:       events.NewEngine(uuid, logger),
		ifaces:       ssdp.NewInterfaceSet(cfg.InterfaceNames, logger),
		workers:      make(chan struct{}, cfg.MaxConnections),
		closing:      make(chan struct{}),
		stopNotify:   make(chan struct{}),
	}
	s.ssdp = &ssdp.Server{
		Interfaces:     s.ifaces,
		UUID:           uuid,
		Port:           cfg.Port,
		NotifyInterval: cfg.NotifyInterval,
		Logger:         logger.WithNames("ssdp"),
	}
	s.rootDescXML = buildRootDesc(friendlyName, uuid, builtIcons)
	s.mux = s.newMux()

	return s, nil
}

func defaultFriendlyName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	name := "unknown"
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	return fmt.Sprintf("MicroDLNA %s: %s on %s", serverVersion, name, host)
}

// Run binds the HTTP and SSDP sockets, starts the notify-burst and
// subscription-sweep ticker, and serves until Close is called.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Config.Port))
	if err != nil {
		return fmt.Errorf("dms: binding HTTP listener: %w", err)
	}
	s.listener = ln

	s.ifaces.ReloadWithBackoff(s.closing)

	if err := s.ssdp.Listen(); err != nil {
		ln.Close()
		return err
	}

	s.httpSrv = &http.Server{Handler: s.mux}
	s.httpSrv.SetKeepAlivesEnabled(false)

	go s.ssdp.Serve()
	go s.notifyLoop()

	s.ssdp.SendAlive()

	err = s.httpSrv.Serve(ln)
	select {
	case <-s.closing:
		return nil
	default:
		return err
	}
}

// notifyLoop emits periodic ssdp:alive bursts and sweeps expired event
// subscriptions; this is the Go-native stand-in for the single-threaded
// reactor's "time until next notify" select timeout.
func (s *Server) notifyLoop() {
	t := time.NewTicker(s.Config.NotifyInterval)
	defer t.Stop()
	sweep := time.NewTicker(30 * time.Second)
	defer sweep.Stop()
	for {
		select {
		case <-t.C:
			s.ssdp.SendAlive()
		case <-sweep.C:
			s.events.Sweep()
		case <-s.stopNotify:
			return
		}
	}
}

// ReloadInterfaces re-binds SSDP notify sockets (SIGHUP), sending
// ssdp:byebye on the outgoing set before ssdp:alive on the new one.
func (s *Server) ReloadInterfaces() {
	s.ssdp.SendByebye()
	old, fresh, err := s.ifaces.Reload()
	if err != nil {
		s.Logger.Levelf(log.Warning, "interface reload failed: %v", err)
		return
	}
	ssdp.CloseInterfaces(old)
	if len(fresh) == 0 {
		s.Logger.Levelf(log.Warning, "interface reload found no usable interfaces")
		return
	}
	s.ssdp.SendAlive()
}

// Close tears down every subsystem: it sends ssdp:byebye, drops all
// event subscriptions, and closes the HTTP and SSDP sockets.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closing)
		close(s.stopNotify)
		s.ssdp.SendByebye()
		s.events.Shutdown()
		s.ssdp.Close()
		s.ifaces.CloseAll()
		if s.listener != nil {
			err = s.listener.Close()
		}
	})
	return err
}
