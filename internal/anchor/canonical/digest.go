package canonical

import (
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// Hash computes the keccak256 content hash of canonical bytes. The same
// function the registry contract side uses, so hashes compare directly.
func Hash(canonical []byte) [32]byte {
	var out [32]byte
	copy(out[:], crypto.Keccak256(canonical))
	return out
}

// PassportKey derives the bytes32 registry key for a passport id by hashing
// its textual UUID form. Keys and content hashes share the keccak domain but
// never collide in practice; the registry keeps them in separate indexes.
func PassportKey(id uuid.UUID) [32]byte {
	var out [32]byte
	copy(out[:], crypto.Keccak256([]byte(id.String())))
	return out
}
