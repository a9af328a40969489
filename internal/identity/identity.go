// Package identity derives stable record and party identities from
// transport-native addressing.
package identity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Sender is a participant's canonical identity, derived from a compound
// transport address of the form "@localpart:domain:extension".
type Sender struct {
	CanonicalID string // local part with the sigil stripped
	Address     string // mail-style address, localpart@domain
	Extension   string // secondary identity hint
}

// ParseSender splits a compound sender address into its canonical parts.
// The address must have exactly three colon-separated segments; anything
// else is a malformed-input error the caller treats as fatal for that
// event.
func ParseSender(addr string) (Sender, error) {
	parts := strings.Split(addr, ":")
	if len(parts) != 3 {
		return Sender{}, fmt.Errorf("identity: malformed sender address %q: want local:domain:extension", addr)
	}

	local := strings.TrimPrefix(parts[0], "@")
	if local == "" || parts[1] == "" {
		return Sender{}, fmt.Errorf("identity: malformed sender address %q: empty local part or domain", addr)
	}

	return Sender{
		CanonicalID: local,
		Address:     local + "@" + parts[1],
		Extension:   parts[2],
	}, nil
}

// RecordUUID derives a stable record identifier for a conversation. The
// configured domain forms a name-based namespace and the transport room
// id is the name within it, so the uuid is deterministic across restarts
// and distinct per room.
func RecordUUID(domain, roomID string) string {
	ns := uuid.NewSHA1(uuid.NameSpaceDNS, []byte(domain))
	return uuid.NewSHA1(ns, []byte(roomID)).String()
}
