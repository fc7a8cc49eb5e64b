package util

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/google/uuid"
)

// UUID64 returns a random 64-bit identifier, used where a compact
// binary-friendly id is preferable to a full UUID (e.g. request
// correlation ids logged at high volume).
func UUID64() uint64 {
	randomBytes := make([]byte, 8)
	rand.Read(randomBytes)

	return binary.BigEndian.Uint64(randomBytes[:8])
}

// NewNodeID returns a fresh random node/session identifier suitable as
// a Store's self id or a peer-stream session id, used whenever an
// embedder doesn't supply one of its own (e.g. cmd/openr auto-assigning
// a node id for an unconfigured store).
func NewNodeID() string {
	return uuid.NewString()
}