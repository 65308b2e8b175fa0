package util

import (
	"regexp"
)

var pairingCodeRegex = regexp.MustCompile(`^[0-9]{6}$`)

// IsValidPairingCode reports whether s has the shape of a pairing code.
// Used by handlers to reject junk before it reaches the database.
func IsValidPairingCode(s string) bool {
	return pairingCodeRegex.MatchString(s)
}

const maxDeviceIDLength = 128

// IsValidDeviceID accepts any non-empty opaque identifier of sane
// length. Devices self-assign their ids, so there is no format to
// enforce beyond that.
func IsValidDeviceID(s string) bool {
	return s != "" && len(s) <= maxDeviceIDLength
}

// MaskCode hides most of a pairing code for log output.
func MaskCode(code string) string {
	if len(code) <= 2 {
		return "******"
	}
	return code[:2] + "****"
}
