// SPDX-License-Identifier: MIT

package session

import "strings"

// addrTolerant reports whether current is close enough to original to
// count as the same client: for dotted-quad IPv4 addresses, the first
// three octets must match (tolerating a carrier's mobile network
// reassigning the last octet mid-session); anything else, including IPv6,
// must match exactly.
func addrTolerant(original, current string) bool {
	if original == current {
		return true
	}

	origParts := strings.Split(original, ".")
	curParts := strings.Split(current, ".")
	if len(origParts) != 4 || len(curParts) != 4 {
		return false
	}

	return origParts[0] == curParts[0] &&
		origParts[1] == curParts[1] &&
		origParts[2] == curParts[2]
}
