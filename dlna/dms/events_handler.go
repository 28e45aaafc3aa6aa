package dms

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/anacrolix/microdlna/events"
)

// handleEvent implements SUBSCRIBE and UNSUBSCRIBE for one of the three
// GENA event paths.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "SUBSCRIBE":
		s.handleSubscribe(w, r)
	case "UNSUBSCRIBE":
		s.handleUnsubscribe(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// defaultSubscriptionTimeout mirrors the Engine's own "unspecified
// Timeout" default so the response header it echoes back agrees with
// the expiry the Engine actually applied.
const defaultSubscriptionTimeout = 300

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	sid := r.Header.Get("SID")
	callbackHeader := r.Header.Get("Callback")
	nt := r.Header.Get("NT")
	timeout := parseTimeout(r.Header.Get("Timeout"))
	if timeout <= 0 {
		timeout = defaultSubscriptionTimeout
	}

	switch {
	case sid == "" && callbackHeader != "" && nt == "upnp:event":
		callback, err := events.ParseCallback(callbackHeader)
		if err != nil {
			http.Error(w, "bad callback", http.StatusPreconditionFailed)
			return
		}
		sub, err := s.events.Subscribe(r.URL.Path, callback, timeout)
		if err != nil {
			http.Error(w, err.Error(), http.StatusPreconditionFailed)
			return
		}
		w.Header().Set("SID", sub.SID)
		w.Header().Set("Timeout", "Second-"+strconv.Itoa(timeout))
		w.WriteHeader(http.StatusOK)

	case sid != "" && callbackHeader == "" && nt == "":
		if err := s.events.Renew(sid, timeout); err != nil {
			http.Error(w, err.Error(), http.StatusPreconditionFailed)
			return
		}
		w.Header().Set("SID", sid)
		w.Header().Set("Timeout", "Second-"+strconv.Itoa(timeout))
		w.WriteHeader(http.StatusOK)

	default:
		http.Error(w, "malformed subscription request", http.StatusPreconditionFailed)
	}
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	sid := r.Header.Get("SID")
	if sid == "" || r.Header.Get("Callback") != "" || r.Header.Get("NT") != "" {
		http.Error(w, "malformed unsubscribe request", http.StatusPreconditionFailed)
		return
	}
	if err := s.events.Unsubscribe(sid); err != nil {
		http.Error(w, err.Error(), http.StatusPreconditionFailed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// parseTimeout parses a `Second-<n>` Timeout header value; 0 means
// unspecified.
func parseTimeout(header string) int {
	const prefix = "Second-"
	if !strings.HasPrefix(header, prefix) {
		return 0
	}
	n, err := strconv.Atoi(header[len(prefix):])
	if err != nil || n < 0 {
		return 0
	}
	return n
}
