package dms

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/anacrolix/microdlna/stream"
)

// parseRange parses a `bytes=<start>-[<end>]` Range header value. ok is
// false if the header is absent or malformed.
func parseRange(header string) (start, end int64, endSpecified, ok bool) {
	if header == "" {
		return 0, 0, false, false
	}
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return 0, 0, false, false
	}
	spec := header[len(prefix):]
	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return 0, 0, false, false
	}
	startStr, endStr := spec[:dash], spec[dash+1:]
	s, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || s < 0 {
		return 0, 0, false, false
	}
	if endStr == "" {
		return s, 0, false, true
	}
	e, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || e < s {
		return 0, 0, false, false
	}
	return s, e, true, true
}

func parseTransferMode(header string) stream.TransferMode {
	switch header {
	case "Streaming":
		return stream.Streaming
	case "Interactive":
		return stream.Interactive
	case "Background":
		return stream.Background
	default:
		return ""
	}
}

// buildStreamRequest translates an incoming media GET/HEAD into a
// stream.Request, applying the gate checks: TIMESEEK or PLAYSPEED
// without RANGE is rejected with 406.
func buildStreamRequest(r *http.Request) (stream.Request, error) {
	rangeHeader := r.Header.Get("Range")
	start, end, endSpecified, hasRange := parseRange(rangeHeader)

	timeSeek := r.Header.Get("TimeSeekRange.dlna.org")
	playSpeed := r.Header.Get("PlaySpeed.dlna.org")
	if (timeSeek != "" || playSpeed != "") && !hasRange {
		return stream.Request{}, &stream.StatusError{Status: 406, Msg: "TimeSeekRange/PlaySpeed without Range"}
	}

	req := stream.Request{
		Method:            r.Method,
		HasRange:          hasRange,
		RangeStart:        start,
		RangeEnd:          end,
		RangeEndSpecified: endSpecified,
		RequestedTransfer: parseTransferMode(r.Header.Get("transferMode.dlna.org")),
		RealTimeInfo:      r.Header.Get("realTimeInfo.dlna.org") != "",
		CaptionRequest:    r.Header.Get("getCaptionInfo.sec") != "",
	}
	return req, nil
}
