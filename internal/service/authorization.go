package service

import "regexp"

// Authorize reports whether callerID may mutate a resource owned by ownerID.
func Authorize(callerID, ownerID string) bool {
	return callerID != "" && ownerID != "" && callerID == ownerID
}

var injectionPattern = regexp.MustCompile(`(?i)<script|javascript:|onerror=|onclick=`)

// ContainsInjection reports whether any value carries a denylisted markup or script fragment.
func ContainsInjection(values ...string) bool {
	for _, v := range values {
		if injectionPattern.MatchString(v) {
			return true
		}
	}
	return false
}
