package dms

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/anacrolix/log"

	"github.com/anacrolix/microdlna/stream"
)

// handleMedia serves a streaming GET/HEAD for one media item. It runs
// on a detached worker slot bounded by Config.MaxConnections; exceeding
// the cap answers 500 and closes rather than queuing, matching the
// original reactor's thread-pool exhaustion behaviour.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	select {
	case s.workers <- struct{}{}:
	default:
		http.Error(w, "too many connections", http.StatusInternalServerError)
		return
	}
	defer func() { <-s.workers }()

	reqPath := strings.TrimPrefix(r.URL.Path, mediaItemsPath)

	streamReq, err := buildStreamRequest(r)
	if err != nil {
		s.writeStreamError(w, err)
		return
	}

	resp, absPath, err := stream.Prepare(s.Config.MediaRoot, reqPath, streamReq)
	if err != nil {
		s.writeStreamError(w, err)
		return
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	conn, bufrw, err := hijacker.Hijack()
	if err != nil {
		s.Logger.Levelf(log.Warning, "hijacking connection for %s: %v", reqPath, err)
		return
	}
	defer conn.Close()

	if err := stream.WriteHeaders(bufrw, resp, mediaURLPrefix(r)); err != nil {
		s.Logger.Levelf(log.Warning, "writing media headers for %s: %v", reqPath, err)
		return
	}
	if err := bufrw.Flush(); err != nil {
		return
	}
	if r.Method == http.MethodHead {
		return
	}

	if err := stream.Transfer(conn, absPath, resp.Start, resp.End, s.Logger); err != nil {
		s.Logger.Levelf(log.Debug, "transferring %s: %v", reqPath, err)
	}
}

func mediaURLPrefix(r *http.Request) string {
	return fmt.Sprintf("http://%s%s", r.Host, mediaItemsPath)
}

func (s *Server) writeStreamError(w http.ResponseWriter, err error) {
	if se, ok := err.(*stream.StatusError); ok {
		http.Error(w, se.Msg, se.Status)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
