// Package events implements the UPnP GENA event-subscription engine:
// SUBSCRIBE/UNSUBSCRIBE handling, delivery of the initial NOTIFY to a
// new subscriber's callback URL, and subscription expiry.
package events

import (
	"crypto/rand"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/anacrolix/generics"
	"github.com/anacrolix/log"

	"github.com/anacrolix/microdlna/internal/mime"
)

// Service identifies one of the three subscribable services.
type Service int

const (
	ContentDirectory Service = iota + 1
	ConnectionManager
	MediaReceiverRegistrar
)

// EventURLs maps each SUBSCRIBE/UNSUBSCRIBE path to its Service.
var EventURLs = map[string]Service{
	"/evt/ContentDir":                  ContentDirectory,
	"/evt/ConnectionMgr":                ConnectionManager,
	"/evt/X_MS_MediaReceiverRegistrar": MediaReceiverRegistrar,
}

// Subscriber is one live GENA subscription.
type Subscriber struct {
	SID      string
	Service  Service
	Callback *url.URL
	Expiry   time.Time // zero value means infinite

	mu     sync.Mutex
	seq    uint32
	notify generics.Option[*notifyJob]
}

// State is a notify job's position in the delivery state machine.
type State int

const (
	Created State = iota
	Connecting
	Sending
	WaitingForResponse
	Finished
	Error
)

type notifyJob struct {
	mu    sync.Mutex
	state State
	sub   *Subscriber // nullable: cleared when the subscriber is removed
}

// Engine owns the live subscriber set and drives NOTIFY delivery.
type Engine struct {
	mu          sync.Mutex
	subscribers map[string]*Subscriber
	uuid        string
	logger      log.Logger
	mimeTable   []mime.Type
	dialTimeout time.Duration
}

// NewEngine creates an Engine for the device identified by uuid.
func NewEngine(uuid string, logger log.Logger) *Engine {
	return &Engine{
		subscribers: make(map[string]*Subscriber),
		uuid:        uuid,
		logger:      logger.WithNames("eventing"),
		mimeTable:   mime.All(),
		dialTimeout: 5 * time.Second,
	}
}

func serviceForPath(path string) (Service, bool) {
	s, ok := EventURLs[path]
	return s, ok
}

func newSID(uuid string) string {
	var nibbles [4]byte
	rand.Read(nibbles[:])
	suffix := fmt.Sprintf("%02x%02x", nibbles[0], nibbles[1])
	if len(uuid) < 4 {
		return uuid + suffix
	}
	return uuid[:len(uuid)-4] + suffix
}

// Subscribe creates a new subscription for eventPath. timeoutSeconds is
// the caller's requested Timeout; 0 means "not specified" (defaults to
// 300). Returns the fault to answer with (412) on any validation
// failure.
func (e *Engine) Subscribe(eventPath string, callback *url.URL, timeoutSeconds int) (*Subscriber, error) {
	svc, ok := serviceForPath(eventPath)
	if !ok {
		return nil, errUnknownEventPath
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 300
	}

	sub := &Subscriber{
		SID:      newSID(e.uuid),
		Service:  svc,
		Callback: callback,
		Expiry:   time.Now().Add(time.Duration(timeoutSeconds) * time.Second),
	}

	e.mu.Lock()
	e.subscribers[sub.SID] = sub
	e.mu.Unlock()

	e.startNotify(sub)
	return sub, nil
}

// Renew updates an existing subscription's expiry by SID.
func (e *Engine) Renew(sid string, timeoutSeconds int) error {
	e.mu.Lock()
	sub, ok := e.subscribers[sid]
	e.mu.Unlock()
	if !ok {
		return errUnknownSID
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 300
	}
	sub.mu.Lock()
	sub.Expiry = time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	sub.mu.Unlock()
	return nil
}

// Unsubscribe removes a subscription by SID, clearing its notify job's
// back-pointer if one is in flight.
func (e *Engine) Unsubscribe(sid string) error {
	e.mu.Lock()
	sub, ok := e.subscribers[sid]
	if ok {
		delete(e.subscribers, sid)
	}
	e.mu.Unlock()
	if !ok {
		return errUnknownSID
	}
	sub.mu.Lock()
	if job, ok := sub.notify.Get(); ok {
		job.mu.Lock()
		job.sub = nil
		job.mu.Unlock()
	}
	sub.mu.Unlock()
	return nil
}

// Sweep removes every subscriber whose expiry has passed and which has
// no in-flight notify. dms.Server calls it every 30 seconds from its
// notify loop, on a ticker separate from the SSDP notify bursts.
func (e *Engine) Sweep() {
	now := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	for sid, sub := range e.subscribers {
		sub.mu.Lock()
		_, inFlight := sub.notify.Get()
		expired := !sub.Expiry.IsZero() && now.After(sub.Expiry)
		sub.mu.Unlock()
		if expired && !inFlight {
			delete(e.subscribers, sid)
		}
	}
}

// Shutdown tears down every subscriber, used on graceful exit.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	e.subscribers = make(map[string]*Subscriber)
	e.mu.Unlock()
}

var (
	errUnknownEventPath = fmt.Errorf("events: unknown event subscription path")
	errUnknownSID       = fmt.Errorf("events: unknown SID")
)

func (s Service) String() string {
	switch s {
	case ContentDirectory:
		return "ContentDirectory"
	case ConnectionManager:
		return "ConnectionManager"
	case MediaReceiverRegistrar:
		return "X_MS_MediaReceiverRegistrar"
	default:
		return "Unknown"
	}
}

func trimCallback(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "<")
	v = strings.TrimSuffix(v, ">")
	return v
}

// ParseCallback parses a Callback header value (possibly "<url>") into a
// URL.
func ParseCallback(header string) (*url.URL, error) {
	return url.Parse(trimCallback(header))
}
