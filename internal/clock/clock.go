// Package clock provides ports.Clock implementations: Real for production
// wiring and Fake for tests that need to control reconnect timers and the
// reconciliation priority window.
package clock

import "github.com/bnema/pttsync/internal/ports"

func Real() ports.Clock {
	return ports.SystemClock{}
}
