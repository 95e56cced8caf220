// Package fault defines the error kinds reported by the bridge. Callers wrap
// one of the sentinels with fmt.Errorf("%w: ...") and classify with errors.Is.
package fault

import "errors"

var (
	// ErrConfiguration covers missing or invalid parameters and unresolved
	// joint or sensor references. Fatal to bridge activation.
	ErrConfiguration = errors.New("configuration error")

	// ErrTransportSetup covers bind and connect failures. Fatal to bridge
	// activation.
	ErrTransportSetup = errors.New("transport setup error")

	// ErrTransportRuntime covers send and receive failures after setup. It is
	// recovered locally every tick.
	ErrTransportRuntime = errors.New("transport runtime error")

	// ErrProtocol covers undersized or malformed datagrams. Counted toward the
	// offline timeout exactly like a missing packet.
	ErrProtocol = errors.New("protocol error")
)

// Kind returns a short label for the fault kind wrapped by err, or "unknown".
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrTransportSetup):
		return "transport-setup"
	case errors.Is(err, ErrTransportRuntime):
		return "transport-runtime"
	case errors.Is(err, ErrProtocol):
		return "protocol"
	default:
		return "unknown"
	}
}

// Fatal reports whether err should abort bridge activation.
func Fatal(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrTransportSetup)
}
