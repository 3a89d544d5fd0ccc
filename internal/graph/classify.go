package graph

import "strings"

// Category buckets a fault reason for telemetry and caller-visible
// notifications.
type Category int

const (
	// CategoryNetwork covers connectivity failures: refused connections,
	// timeouts, DNS, transport resets.
	CategoryNetwork Category = iota
	// CategoryCodec covers stream-format failures: decode errors, caps
	// negotiation, missing decoder plugins.
	CategoryCodec
	// CategoryAuth covers credential and authorization failures.
	CategoryAuth
	// CategoryUnknown is everything the tables below do not recognize.
	CategoryUnknown
)

// String returns a human-readable string representation of the category.
func (c Category) String() string {
	switch c {
	case CategoryNetwork:
		return "network"
	case CategoryCodec:
		return "codec"
	case CategoryAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// The media framework reports errors as free-form message text; the
// binding exposes no structured error domain. Classification is a
// substring scan over the lowercased message plus its debug detail,
// against per-category fragment tables drawn from the messages rtspsrc
// and the decoders actually emit. "not-negotiated" is the hyphenated
// form GStreamer puts in debug strings ("streaming stopped, reason
// not-negotiated").
var (
	authFragments = []string{
		"unauthorized",
		"401",
		"403",
		"forbidden",
		"authentication",
		"credentials",
		"password",
		"username",
	}

	codecFragments = []string{
		"codec",
		"decode",
		"encode",
		"format",
		"negotiation",
		"not negotiated",
		"not-negotiated",
		"caps",
		"h264",
		"h265",
		"no decoder",
		"plugin",
	}

	networkFragments = []string{
		"connection",
		"timeout",
		"unreachable",
		"network",
		"dns",
		"resolve",
		"socket",
		"tcp",
		"udp",
		"rtsp",
		"not found",
		"could not connect",
		"failed to connect",
	}
)

// ClassifyReason buckets a fault reason so callers can tell a flaky
// camera (network, a restart may help) from a broken stream (codec),
// missing credentials (auth), or something that needs a human (unknown).
//
// Matching is ordered most-specific first: auth, then codec, then
// network. A message that mentions both a 403 and a closed connection is
// an auth problem, not a network one.
func ClassifyReason(message, debug string) Category {
	text := strings.ToLower(message) + " " + strings.ToLower(debug)

	switch {
	case matchesAny(text, authFragments):
		return CategoryAuth
	case matchesAny(text, codecFragments):
		return CategoryCodec
	case matchesAny(text, networkFragments):
		return CategoryNetwork
	default:
		return CategoryUnknown
	}
}

func matchesAny(text string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(text, f) {
			return true
		}
	}
	return false
}
