package chunked

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// decodeChunks undoes HTTP chunked-transfer framing, returning the
// concatenation of all chunk payloads and asserting there is exactly
// one terminating zero-length chunk.
func decodeChunks(t *testing.T, raw []byte) []byte {
	t.Helper()
	var out bytes.Buffer
	s := string(raw)
	terminators := 0
	for len(s) > 0 {
		i := strings.Index(s, "\r\n")
		require.GreaterOrEqual(t, i, 0, "missing chunk size line in %q", s)
		sizeHex := s[:i]
		s = s[i+2:]
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		require.NoError(t, err)
		if size == 0 {
			terminators++
			require.Equal(t, "\r\n", s)
			break
		}
		out.WriteString(s[:size])
		s = s[size:]
		require.True(t, strings.HasPrefix(s, "\r\n"))
		s = s[2:]
	}
	require.Equal(t, 1, terminators, "exactly one terminating chunk")
	return out.Bytes()
}

func TestWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, MinBufferSize)
	w.WriteString("hello ")
	w.Appendf("world %d", 42)
	w.Flush()
	w.Write([]byte("!raw!"))
	w.EndStream()
	require.NoError(t, w.Err())

	decoded := decodeChunks(t, buf.Bytes())
	require.Equal(t, "hello world 42!raw!", string(decoded))
}

func TestWriterAutoFlushOnFullBuffer(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, MinBufferSize)
	payload := bytes.Repeat([]byte("x"), MinBufferSize+10)
	w.Write(payload)
	w.EndStream()
	require.NoError(t, w.Err())
	require.Equal(t, payload, decodeChunks(t, buf.Bytes()))
}

func TestWriterEmptyFlushIsNoop(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, MinBufferSize)
	w.Flush()
	require.Equal(t, 0, buf.Len())
	w.EndStream()
	require.Equal(t, "0\r\n\r\n", buf.String())
}
