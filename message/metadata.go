package message

import (
	"os"
	"strings"
)

var (
	metadataNamespace = func() string {
		ns := strings.TrimSpace(os.Getenv("DISPATCH_METADATA_NAMESPACE"))
		if ns == "" {
			ns = "dispatch"
		}
		return strings.ToLower(ns)
	}()

	// HeaderCommitID carries an explicit commit identifier supplied by the caller.
	HeaderCommitID = metadataKey("commit_id")
	// HeaderTypeName carries the canonical event type name.
	HeaderTypeName = metadataKey("type_name")
	// HeaderTypeVersion carries the event schema version.
	HeaderTypeVersion = metadataKey("type_version")

	// CarryPrefix namespaces carry-over headers copied from incoming messages,
	// so propagated metadata is distinguishable from fresh application headers.
	CarryPrefix = metadataKey("carry") + "."
)

// MissingValue marks a recognized carry-over header that was absent on the
// incoming message.
const MissingValue = "<missing>"

// reservedMarker prefixes transport-internal header names.
const reservedMarker = "_"

// DefaultCarryOver is the set of recognized carry-over header names.
var DefaultCarryOver = []string{
	"correlation_id",
	"causation_id",
	"aggregate_id",
}

func metadataKey(suffix string) string {
	return metadataNamespace + "." + suffix
}

// copyDenylist blocks verbatim copy of system and transport-internal headers.
var copyDenylist = map[string]struct{}{
	"correlation_id": {},
	"causation_id":   {},
	"message_id":     {},
	"received_topic": {},
}

// CopyDenied reports whether a header must not be copied verbatim from an
// incoming message into the accumulated header set.
func CopyDenied(name string) bool {
	if name == HeaderCommitID {
		return true
	}
	if strings.HasPrefix(name, reservedMarker) {
		return true
	}

	_, denied := copyDenylist[name]
	return denied
}
