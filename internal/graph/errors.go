package graph

import "errors"

// Error taxonomy for graph construction and selection. Construction-time
// failures (the first three) are recoverable by falling back to the next
// topology; ErrNoViableTopology is what the caller sees once every
// fallback is exhausted.
var (
	// ErrUnavailableCapability means a required processing capability could
	// not be instantiated on this host (missing plugin, absent hardware).
	ErrUnavailableCapability = errors.New("required capability unavailable")

	// ErrElementCreation means a processing unit existed but could not be
	// created or added to the graph container.
	ErrElementCreation = errors.New("element creation failed")

	// ErrLinkIncompatible means two ports could not be connected because
	// their media types do not match.
	ErrLinkIncompatible = errors.New("incompatible link")

	// ErrNoViableTopology means every candidate topology failed to build.
	ErrNoViableTopology = errors.New("no viable topology")
)
