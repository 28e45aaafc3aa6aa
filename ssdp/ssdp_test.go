package ssdp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSearchValid(t *testing.T) {
	pkt := []byte("M-SEARCH * HTTP/1.1\r\n" +
		"HOST: 239.255.255.250:1900\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		"MX: 2\r\n" +
		"ST: upnp:rootdevice\r\n" +
		"\r\n")
	req, ok := parseSearch(pkt)
	require.True(t, ok)
	assert.Equal(t, `"ssdp:discover"`, req.man)
	assert.Equal(t, 2, req.mx)
	assert.Equal(t, "upnp:rootdevice", req.st)
}

func TestParseSearchRejectsWrongPrefix(t *testing.T) {
	_, ok := parseSearch([]byte("NOTIFY * HTTP/1.1\r\n\r\n"))
	assert.False(t, ok)
}

func TestMatchServiceTypeUUID(t *testing.T) {
	uuid := "uuid:12345678-1234-1234-1234-123456789abc"
	types := ServiceTypes(uuid)
	assert.True(t, matchServiceType(uuid, 0, types[0]))
	assert.False(t, matchServiceType(uuid+"x", 0, types[0]))
}

func TestMatchServiceTypeVersioned(t *testing.T) {
	entry := "urn:schemas-upnp-org:service:ContentDirectory:"
	assert.True(t, matchServiceType(entry+"1", 3, entry))
	assert.True(t, matchServiceType(entry, 3, entry))
	assert.True(t, matchServiceType(entry+"1  ", 3, entry))
	assert.False(t, matchServiceType(entry+"2", 3, entry))
	assert.False(t, matchServiceType(entry+"1x", 3, entry))
}

func TestMatchesAll(t *testing.T) {
	uuid := "uuid:12345678-1234-1234-1234-123456789abc"
	types := ServiceTypes(uuid)
	idxs := matches("ssdp:all", types)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, idxs)
}

func TestMatchesSingle(t *testing.T) {
	uuid := "uuid:12345678-1234-1234-1234-123456789abc"
	types := ServiceTypes(uuid)
	idxs := matches("upnp:rootdevice", types)
	assert.Equal(t, []int{1}, idxs)
}

func TestUSNComposition(t *testing.T) {
	uuid := "uuid:12345678-1234-1234-1234-123456789abc"
	types := ServiceTypes(uuid)
	assert.Equal(t, uuid, usn(uuid, 0, types))
	assert.Equal(t, uuid+"::upnp:rootdevice", usn(uuid, 1, types))
	assert.Equal(t, uuid+"::urn:schemas-upnp-org:service:ContentDirectory:1", usn(uuid, 3, types))
}

func TestSTValueSuffix(t *testing.T) {
	uuid := "uuid:x"
	types := ServiceTypes(uuid)
	assert.Equal(t, "upnp:rootdevice", stValue(1, types))
	assert.Equal(t, "urn:schemas-upnp-org:service:ContentDirectory:1", stValue(3, types))
}
