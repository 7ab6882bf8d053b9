// Package chain is the transaction side of anchoring: building, signing, and
// broadcasting registry calls, and polling for their receipts. The anchor
// worker only sees the small interfaces below; the eth client here and the
// in-process ledger backend both satisfy them.
package chain

import "context"

// Record is the registry's view of a passport as the worker needs it. TxID is
// the transaction that installed the current hash, recovered from the
// registration/amendment event logs; it may be empty if no log is reachable.
type Record struct {
	Hash [32]byte
	TxID string
}

// Registry submits registry mutations and reads back ledger state. Submissions
// return as soon as the transaction is broadcast; confirmation is the
// Confirmer's job.
type Registry interface {
	// Passport returns the ledger record for id, or nil if unregistered.
	Passport(ctx context.Context, id [32]byte) (*Record, error)

	// Register broadcasts registerPassport and returns the transaction id.
	Register(ctx context.Context, id, hash [32]byte, metadataURI string) (string, error)

	// RegisterBatch broadcasts registerPassportBatch for all triples at once.
	RegisterBatch(ctx context.Context, ids, hashes [][32]byte, metadataURIs []string) (string, error)

	// AmendHash broadcasts updatePassportHash for an already registered id.
	AmendHash(ctx context.Context, id, newHash [32]byte) (string, error)

	// Verify runs the contract's verifyPassport read.
	Verify(ctx context.Context, id, hash [32]byte) (bool, error)
}

// Confirmer waits for a broadcast transaction to land. A nil return means
// confirmed success; reverts and timeouts surface as *ConfirmationError.
type Confirmer interface {
	Wait(ctx context.Context, txID string) error
}
