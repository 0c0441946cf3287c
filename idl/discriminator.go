package idl

import (
	"crypto/sha256"
	"encoding/hex"
)

// Namespace prefixes the preimage of an Anchor discriminator.
type Namespace string

const (
	NamespaceGlobal  Namespace = "global"
	NamespaceEvent   Namespace = "event"
	NamespaceAccount Namespace = "account"
	namespaceAnchor  Namespace = "anchor"
)

// DiscriminatorSize is the length of a computed discriminator.
const DiscriminatorSize = 8

// EventCPITag prefixes instruction data of an event emitted through a
// self-CPI; the event's own discriminator follows it. Anchor stores the tag
// as the little-endian u64 of sha256("anchor:event")[:8], so the bytes on
// the wire are that hash prefix reversed.
var EventCPITag = eventCPITag()

func eventCPITag() []byte {
	h := ComputeDiscriminator(namespaceAnchor, "event")
	out := make([]byte, len(h))
	for i := range h {
		out[i] = h[len(h)-1-i]
	}
	return out
}

// ComputeDiscriminator returns sha256("<ns>:<name>")[:8].
func ComputeDiscriminator(ns Namespace, name string) []byte {
	h := sha256.Sum256([]byte(string(ns) + ":" + name))
	out := make([]byte, DiscriminatorSize)
	copy(out, h[:DiscriminatorSize])
	return out
}

// InstructionDiscriminator computes the discriminator Anchor assigns to an
// instruction, converting the name to snake_case first.
func InstructionDiscriminator(name string) []byte {
	return ComputeDiscriminator(NamespaceGlobal, SnakeCase(name))
}

// HexDiscriminator renders a discriminator for display.
func HexDiscriminator(d []byte) string {
	return hex.EncodeToString(d)
}
