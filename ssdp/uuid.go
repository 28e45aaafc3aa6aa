package ssdp

import (
	"fmt"
	"net"
	"regexp"
)

// uuidPrefix is the fixed, product-specific half of the device UUID; only
// the trailing 12 hex digits vary, derived from a MAC address.
const uuidPrefix = "4d696e69-444c-164e-9d41-"

// fallbackSuffix is used when no usable hardware address can be found.
// It spells "UNKNOW" in hex.
const fallbackSuffix = "554e4b4e4f57"

var uuidPattern = regexp.MustCompile(`^uuid:[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// DeviceUUID derives the process-wide device UUID. If override is
// non-empty it is validated and returned as-is (prefixed with "uuid:" if
// missing). Otherwise the first non-loopback interface carrying a
// hardware address determines the trailing 12 hex digits; if none is
// found, fallbackSuffix is used.
func DeviceUUID(override string) (string, error) {
	if override != "" {
		u := override
		if len(u) < 5 || u[:5] != "uuid:" {
			u = "uuid:" + u
		}
		if !uuidPattern.MatchString(u) {
			return "", fmt.Errorf("ssdp: invalid UUID override %q", override)
		}
		return u, nil
	}
	suffix := fallbackSuffix
	if mac, ok := firstHardwareAddr(); ok {
		suffix = fmt.Sprintf("%02x%02x%02x%02x%02x%02x", mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
	}
	u := "uuid:" + uuidPrefix + suffix
	if !uuidPattern.MatchString(u) {
		return "", fmt.Errorf("ssdp: derived UUID %q failed validation", u)
	}
	return u, nil
}

func firstHardwareAddr() (net.HardwareAddr, bool) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, false
	}
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(ifi.HardwareAddr) != 6 {
			continue
		}
		zero := true
		for _, b := range ifi.HardwareAddr {
			if b != 0 {
				zero = false
				break
			}
		}
		if zero {
			continue
		}
		return ifi.HardwareAddr, true
	}
	return nil, false
}
