package device

import (
	"time"

	"thread-go-home/internal/codes"
)

// StaleAfter is how long a device may stay silent before it is reported offline.
const StaleAfter = 5 * time.Hour

// EffectiveStatus returns StatusOffline when lastActive is older than
// StaleAfter at now, and stored otherwise. Call it on every read.
func EffectiveStatus(stored codes.DevStatus, lastActive, now time.Time) codes.DevStatus {
	if now.Sub(lastActive) > StaleAfter {
		return codes.StatusOffline
	}
	return stored
}
