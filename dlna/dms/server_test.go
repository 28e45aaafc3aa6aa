package dms

import (
	"testing"

	"github.com/anacrolix/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	root := t.TempDir()
	srv, err := New(Config{
		MediaRoot:    root,
		UUID:         "12345678-1234-1234-1234-123456789abc",
		FriendlyName: "test server",
	}, log.Default)
	require.NoError(t, err)
	return srv
}

func TestNewAppliesDefaults(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, 2800, srv.Config.Port)
	assert.Equal(t, 10, srv.Config.MaxConnections)
	assert.NotEmpty(t, srv.rootDescXML)
	assert.Len(t, srv.icons, 4)
}

func TestNewRequiresMediaRoot(t *testing.T) {
	_, err := New(Config{}, log.Default)
	require.Error(t, err)
}

func TestNewRejectsBadUUIDOverride(t *testing.T) {
	_, err := New(Config{MediaRoot: t.TempDir(), UUID: "not-a-uuid"}, log.Default)
	require.Error(t, err)
}

func TestDefaultFriendlyNameNonEmpty(t *testing.T) {
	assert.NotEmpty(t, defaultFriendlyName())
}
