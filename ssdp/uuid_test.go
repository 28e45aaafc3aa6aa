package ssdp

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceUUIDOverrideValid(t *testing.T) {
	got, err := DeviceUUID("12345678-1234-1234-1234-123456789abc")
	require.NoError(t, err)
	assert.Equal(t, "uuid:12345678-1234-1234-1234-123456789abc", got)
}

func TestDeviceUUIDOverrideWithPrefix(t *testing.T) {
	got, err := DeviceUUID("uuid:12345678-1234-1234-1234-123456789abc")
	require.NoError(t, err)
	assert.Equal(t, "uuid:12345678-1234-1234-1234-123456789abc", got)
}

func TestDeviceUUIDOverrideInvalid(t *testing.T) {
	_, err := DeviceUUID("not-a-uuid")
	assert.Error(t, err)
}

func TestDeviceUUIDDerivedMatchesPattern(t *testing.T) {
	got, err := DeviceUUID("")
	require.NoError(t, err)
	assert.Regexp(t, uuidPattern, got)
	assert.Contains(t, got, uuidPrefix)
}

func TestSameSubnet(t *testing.T) {
	a := net.ParseIP("192.168.1.42").To4()
	b := net.ParseIP("192.168.1.1").To4()
	mask := net.IPMask{255, 255, 255, 0}
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.True(t, sameSubnet(a, b, mask))

	c := net.ParseIP("192.168.2.1").To4()
	require.NotNil(t, c)
	assert.False(t, sameSubnet(a, c, mask))
}
