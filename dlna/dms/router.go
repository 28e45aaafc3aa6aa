package dms

import (
	"net"
	"net/http"
	"strings"

	"github.com/anacrolix/log"
)

const serverHeaderValue = "Linux/3.4 DLNADOC/1.50 UPnP/1.0 microdlna/1"

// newMux wires every path from the external-interface table to its
// handler and wraps the whole thing in the ambient header/security
// middleware.
func (s *Server) newMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc(rootDescPath, s.handleRootDesc)
	for path := range scpdPaths {
		p := path
		mux.HandleFunc(p, s.handleSCPD(p))
	}

	mux.HandleFunc(serviceCtlPath+"ContentDir", s.handleControl)
	mux.HandleFunc(serviceCtlPath+"ConnectionMgr", s.handleControl)
	mux.HandleFunc(serviceCtlPath+"X_MS_MediaReceiverRegistrar", s.handleControl)

	mux.HandleFunc(serviceEvtPath+"ContentDir", s.handleEvent)
	mux.HandleFunc(serviceEvtPath+"ConnectionMgr", s.handleEvent)
	mux.HandleFunc(serviceEvtPath+"X_MS_MediaReceiverRegistrar", s.handleEvent)

	mux.HandleFunc(iconsPath, s.handleIcon)
	mux.HandleFunc(mediaItemsPath, s.handleMedia)

	var top http.Handler = mux
	top = s.withHeaders(top)
	top = s.withHostCheck(top)
	if s.Config.LogHeaders {
		top = s.withHeaderLogging(top)
	}
	wrapped := http.NewServeMux()
	wrapped.Handle("/", top)
	return wrapped
}

// withHeaders stamps the Server/EXT/Connection headers the UPnP control
// point expects on every response, including error responses.
func (s *Server) withHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Server", serverHeaderValue)
		h.Set("EXT", "")
		h.Set("Connection", "close")
		next.ServeHTTP(w, r)
	})
}

// withHostCheck rejects requests whose Host header does not match the
// address the connection was actually accepted on, defending against
// DNS-rebinding attacks against the embedded HTTP server.
func (s *Server) withHostCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		local, _ := r.Context().Value(http.LocalAddrContextKey).(net.Addr)
		if local != nil && !hostMatchesLocal(r.Host, local) {
			http.Error(w, "bad host", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func hostMatchesLocal(host string, local net.Addr) bool {
	h, _, err := net.SplitHostPort(host)
	if err != nil {
		h = host
	}
	laddr, _, err := net.SplitHostPort(local.String())
	if err != nil {
		laddr = local.String()
	}
	if h == laddr {
		return true
	}
	ip := net.ParseIP(h)
	if ip == nil {
		return false
	}
	if ip.IsLoopback() {
		return true
	}
	lip := net.ParseIP(laddr)
	return lip != nil && lip.Equal(ip)
}

// withHeaderLogging mirrors the teacher's header dump used during
// interop debugging against picky control points.
func (s *Server) withHeaderLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString(r.Method + " " + r.URL.String() + "\n")
		for k, vs := range r.Header {
			for _, v := range vs {
				b.WriteString(k + ": " + v + "\n")
			}
		}
		s.Logger.Levelf(log.Debug, "%s", b.String())
		next.ServeHTTP(w, r)
	})
}
