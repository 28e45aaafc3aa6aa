// Package stream implements the media streamer: range validation, MIME
// resolution, DLNA response header composition, and the kernel-assisted
// byte transfer for a streaming GET/HEAD request.
package stream

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anacrolix/log"
	"golang.org/x/sys/unix"

	"github.com/anacrolix/microdlna/internal/mime"
	"github.com/anacrolix/microdlna/internal/pathutil"
)

// TransferMode is the advertised transferMode.dlna.org value.
type TransferMode string

const (
	Streaming   TransferMode = "Streaming"
	Interactive TransferMode = "Interactive"
	Background  TransferMode = "Background"
)

// StatusError carries the HTTP status the front-end should answer with
// when streaming setup fails before any bytes are written.
type StatusError struct {
	Status int
	Msg    string
}

func (e *StatusError) Error() string { return e.Msg }

func statusErr(status int, msg string) error { return &StatusError{Status: status, Msg: msg} }

// Request is everything the streamer needs to know about one GET/HEAD.
type Request struct {
	Path               string // already unescaped and sanitised, relative to MediaRoot
	Method             string // "GET" or "HEAD"
	HasRange           bool
	RangeStart         int64
	RangeEnd           int64 // inclusive; 0 means "to end" when HasRange and RangeEnd==0 was omitted
	RangeEndSpecified  bool
	RequestedTransfer  TransferMode // zero value means unspecified
	RealTimeInfo       bool
	CaptionRequest     bool
}

// Response is the fully-resolved set of headers/behaviour to apply
// before transferring bytes.
type Response struct {
	Status        int
	ContentLength int64
	TotalSize     int64
	Start, End    int64 // inclusive byte range actually served
	Ranged        bool
	Transfer      TransferMode
	MIME          mime.Type
	CaptionURL    string // sidecar subtitle path relative to the media root; empty if none
}

// dlnaFlags composes the DLNA.ORG_FLAGS bitfield: DLNA v1.5 + HTTP
// stalling + TM_B, plus TM_I for images or TM_S otherwise.
func dlnaFlags(isImage bool) uint32 {
	const (
		senderPaced        = 0
		timeBasedSeek      = 0
		byteBasedSeek      = 0
		playContainer      = 0
		s0Increasing       = 0
		sNIncreasing       = 0
		rtspPause          = 0
		streamingTransfer  = 0x01000000
		interactiveTransfer = 0x00800000
		backgroundTransfer = 0x00400000
		connectionStall    = 0x00200000
		dlnaV15            = 0x00100000
	)
	flags := uint32(dlnaV15 | connectionStall | backgroundTransfer)
	if isImage {
		flags |= interactiveTransfer
	} else {
		flags |= streamingTransfer
	}
	return flags
}

// Prepare sanitises reqPath, resolves it under root, validates req
// against that file, and returns the Response describing the headers
// and byte range to serve (resolving MIME type by name) together with
// the file's absolute path.
func Prepare(root, reqPath string, req Request) (Response, string, error) {
	clean, ok := pathutil.Sanitize(reqPath)
	if !ok {
		return Response{}, "", statusErr(406, "path escapes media root")
	}
	absPath := filepath.Join(root, clean)

	fi, err := os.Stat(absPath)
	if err != nil {
		return Response{}, "", statusErr(404, "not found")
	}
	if !fi.Mode().IsRegular() {
		return Response{}, "", statusErr(403, "not a regular file")
	}

	ty, ok := mime.Lookup(absPath)
	if !ok {
		return Response{}, "", statusErr(406, "no MIME match")
	}
	isImage := ty.Class == mime.Image

	switch req.RequestedTransfer {
	case Streaming:
		if isImage {
			return Response{}, "", statusErr(406, "Streaming transfer mode requested for an image")
		}
	case Interactive:
		if req.RealTimeInfo {
			return Response{}, "", statusErr(400, "Interactive transfer mode with realTimeInfo")
		}
		if !isImage {
			return Response{}, "", statusErr(406, "Interactive transfer mode requested for non-image")
		}
	}

	transfer := Streaming
	if isImage {
		transfer = Interactive
	}
	if req.RequestedTransfer == Background && trySetBackgroundPriority() {
		transfer = Background
	}

	size := fi.Size()
	start, end := int64(0), size-1
	ranged := false
	if req.HasRange {
		ranged = true
		start = req.RangeStart
		end = req.RangeEnd
		if !req.RangeEndSpecified || end == 0 {
			end = size - 1
		}
		if start >= size {
			return Response{}, "", statusErr(416, "range not satisfiable")
		}
		if start > end || start < 0 {
			return Response{}, "", statusErr(400, "invalid range")
		}
		if end >= size {
			return Response{}, "", statusErr(416, "range not satisfiable")
		}
	}

	resp := Response{
		Status:        200,
		ContentLength: end - start + 1,
		TotalSize:     size,
		Start:         start,
		End:           end,
		Ranged:        ranged,
		Transfer:      transfer,
		MIME:          ty,
	}
	if ranged {
		resp.Status = 206
	}
	if req.CaptionRequest {
		if srt, ok := findCaption(absPath); ok {
			resp.CaptionURL = filepath.ToSlash(filepath.Join(filepath.Dir(clean), srt))
		}
	}
	return resp, absPath, nil
}

func trySetBackgroundPriority() bool {
	return unix.Setpriority(unix.PRIO_PROCESS, 0, 19) == nil
}

// findCaption derives the sibling .srt file by replacing the last
// extension found within the last 7 characters of absPath's base name,
// verifies it can be opened, and returns its base name.
func findCaption(absPath string) (string, bool) {
	base := filepath.Base(absPath)
	limit := len(base) - 7
	if limit < 0 {
		limit = 0
	}
	dot := -1
	for i := len(base) - 1; i >= limit; i-- {
		if base[i] == '.' {
			dot = i
			break
		}
	}
	if dot < 0 {
		return "", false
	}
	srtBase := base[:dot] + ".srt"
	srtPath := filepath.Join(filepath.Dir(absPath), srtBase)
	f, err := os.Open(srtPath)
	if err != nil {
		return "", false
	}
	f.Close()
	return srtBase, true
}

// WriteHeaders writes the required DLNA/media response headers,
// including Content-Range when ranged, to w.
func WriteHeaders(w io.Writer, resp Response, mediaURLPrefix string) error {
	statusLine := "HTTP/1.1 200 OK\r\n"
	if resp.Status == 206 {
		statusLine = "HTTP/1.1 206 Partial Content\r\n"
	}
	var b strings.Builder
	b.WriteString(statusLine)
	fmt.Fprintf(&b, "Server: %s\r\n", "Linux/3.4 DLNADOC/1.50 UPnP/1.0 microdlna/1")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123) + "\r\n")
	b.WriteString("Connection: close\r\n")
	b.WriteString("EXT:\r\n")
	b.WriteString("Accept-Ranges: bytes\r\n")
	fmt.Fprintf(&b, "Content-Length: %d\r\n", resp.ContentLength)
	if resp.Ranged {
		fmt.Fprintf(&b, "Content-Range: bytes %d-%d/%d\r\n", resp.Start, resp.End, resp.TotalSize)
	}
	fmt.Fprintf(&b, "Content-Type: %s\r\n", resp.MIME.String())
	fmt.Fprintf(&b, "contentFeatures.dlna.org: DLNA.ORG_OP=01;DLNA.ORG_CI=0;DLNA.ORG_FLAGS=%08x000000000000000000000000\r\n", dlnaFlags(resp.MIME.Class == mime.Image))
	fmt.Fprintf(&b, "transferMode.dlna.org: %s\r\n", resp.Transfer)
	b.WriteString("realTimeInfo.dlna.org: DLNA.ORG_TLAG=*\r\n")
	if resp.CaptionURL != "" {
		fmt.Fprintf(&b, "CaptionInfo.sec: %s%s\r\n", mediaURLPrefix, pathutil.EscapeURL(resp.CaptionURL))
	}
	b.WriteString("\r\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// Transfer copies [start, end] inclusive of the file at absPath to
// conn, preferring the kernel-assisted sendfile(2) path and falling
// back to a buffered read/write loop if the kernel call is unavailable
// for this file/socket pair.
func Transfer(conn net.Conn, absPath string, start, end int64, logger log.Logger) error {
	f, err := os.Open(absPath)
	if err != nil {
		return err
	}
	defer f.Close()

	remaining := end - start + 1
	offset := start

	if err := sendfileLoop(conn, f, &offset, &remaining); err == nil {
		return nil
	} else if !errors.Is(err, errFallback) {
		return err
	}
	logger.Levelf(log.Debug, "falling back to read/write loop for %s", absPath)

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	buf := make([]byte, 64*1024)
	for remaining > 0 {
		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		read, err := f.Read(buf[:n])
		if read > 0 {
			if _, werr := conn.Write(buf[:read]); werr != nil {
				if errors.Is(werr, unix.EPIPE) {
					return nil
				}
				return werr
			}
			remaining -= int64(read)
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
	return nil
}

var errFallback = errors.New("stream: fall back to read/write loop")

const maxSendfileChunk = 1 << 31 // at most 2GiB per call

func sendfileLoop(conn net.Conn, f *os.File, offset, remaining *int64) error {
	fconn, ok := conn.(interface {
		File() (*os.File, error)
	})
	if !ok {
		return errFallback
	}
	connFile, err := fconn.File()
	if err != nil {
		return errFallback
	}
	defer connFile.Close()

	dst := int(connFile.Fd())
	src := int(f.Fd())

	for *remaining > 0 {
		chunk := *remaining
		if chunk > maxSendfileChunk {
			chunk = maxSendfileChunk
		}
		off := *offset
		n, err := unix.Sendfile(dst, src, &off, int(chunk))
		if n > 0 {
			*offset = off
			*remaining -= int64(n)
		}
		if err != nil {
			switch {
			case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
				continue
			case errors.Is(err, unix.EPIPE):
				return nil
			case errors.Is(err, unix.EOVERFLOW), errors.Is(err, unix.EINVAL):
				return errFallback
			default:
				return err
			}
		}
		if n == 0 && *remaining > 0 {
			return errFallback
		}
	}
	return nil
}

