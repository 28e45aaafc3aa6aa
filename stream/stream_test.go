package stream

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/anacrolix/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anacrolix/microdlna/internal/mime"
)

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestPrepareFullFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "clip.mp4", 1024)

	resp, abs, err := Prepare(root, "clip.mp4", Request{Method: "GET"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.EqualValues(t, 1024, resp.ContentLength)
	assert.Equal(t, filepath.Join(root, "clip.mp4"), abs)
	assert.Equal(t, Streaming, resp.Transfer)
}

func TestPrepareRange(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "clip.mp4", 1048576)

	resp, _, err := Prepare(root, "clip.mp4", Request{
		Method: "GET", HasRange: true, RangeStart: 1024, RangeEnd: 2047, RangeEndSpecified: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 206, resp.Status)
	assert.EqualValues(t, 1024, resp.ContentLength)
	assert.EqualValues(t, 1048576, resp.TotalSize)
}

func TestPrepareRangeNotSatisfiable(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "clip.mp4", 1048576)

	_, _, err := Prepare(root, "clip.mp4", Request{
		Method: "GET", HasRange: true, RangeStart: 2000000, RangeEndSpecified: false,
	})
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 416, se.Status)
}

func TestPreparePathEscape(t *testing.T) {
	root := t.TempDir()
	_, _, err := Prepare(root, "../etc/passwd", Request{Method: "GET"})
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 406, se.Status)
}

func TestPrepareUnknownMIME(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes.xyz", 10)
	_, _, err := Prepare(root, "notes.xyz", Request{Method: "GET"})
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 406, se.Status)
}

func TestPrepareStreamingModeRejectsImage(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "photo.jpg", 10)
	_, _, err := Prepare(root, "photo.jpg", Request{Method: "GET", RequestedTransfer: Streaming})
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 406, se.Status)
}

func TestPrepareInteractiveWithRealTimeInfo(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "photo.jpg", 10)
	_, _, err := Prepare(root, "photo.jpg", Request{Method: "GET", RequestedTransfer: Interactive, RealTimeInfo: true})
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 400, se.Status)
}

func TestWriteHeadersContainsRequiredFields(t *testing.T) {
	var buf bytes.Buffer
	resp := Response{Status: 200, ContentLength: 10, TotalSize: 10, MIME: mime.Type{Class: mime.Video, Subtype: "mp4"}}
	require.NoError(t, WriteHeaders(&buf, resp, "http://host:2800/MediaItems/"))
	out := buf.String()
	assert.Contains(t, out, "HTTP/1.1 200 OK\r\n")
	assert.Contains(t, out, "Content-Length: 10\r\n")
	assert.Contains(t, out, "Accept-Ranges: bytes\r\n")
	assert.Contains(t, out, "realTimeInfo.dlna.org: DLNA.ORG_TLAG=*\r\n")
}

func TestWriteHeadersRangedIncludesContentRange(t *testing.T) {
	var buf bytes.Buffer
	resp := Response{Status: 206, ContentLength: 100, TotalSize: 1000, Start: 0, End: 99, Ranged: true, MIME: mime.Type{Class: mime.Video, Subtype: "mp4"}}
	require.NoError(t, WriteHeaders(&buf, resp, "http://host:2800/MediaItems/"))
	assert.Contains(t, buf.String(), "Content-Range: bytes 0-99/1000\r\n")
}

func TestTransferFallbackOverPipe(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "clip.mp4", 4096)

	srv, cli := net.Pipe()
	defer cli.Close()

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 4096)
		n, _ := readFull(cli, buf)
		done <- buf[:n]
	}()

	err := Transfer(srv, path, 0, 4095, log.Default)
	srv.Close()
	require.NoError(t, err)

	got := <-done
	want, _ := os.ReadFile(path)
	assert.Equal(t, want, got)
}

func readFull(r net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
