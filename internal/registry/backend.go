package registry

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"tracehub/internal/chain"
)

// Backend adapts the in-process Contract to the chain.Registry and
// chain.Confirmer ports, so the full anchoring pipeline runs against the real
// state machine without a node. Used in local deployments and tests.
type Backend struct {
	mu       sync.Mutex
	contract *Contract
	sender   common.Address
	nonce    uint64
	txIDs    map[[32]byte]string
}

var (
	_ chain.Registry  = (*Backend)(nil)
	_ chain.Confirmer = (*Backend)(nil)
)

// NewBackend wraps contract with sender as the submitting principal.
func NewBackend(contract *Contract, sender common.Address) *Backend {
	return &Backend{
		contract: contract,
		sender:   sender,
		txIDs:    make(map[[32]byte]string),
	}
}

func (b *Backend) Passport(_ context.Context, id [32]byte) (*chain.Record, error) {
	rec, ok := b.contract.GetPassport(id)
	if !ok {
		return nil, nil
	}
	b.mu.Lock()
	txID := b.txIDs[id]
	b.mu.Unlock()
	return &chain.Record{Hash: rec.Hash, TxID: txID}, nil
}

func (b *Backend) Register(_ context.Context, id, hash [32]byte, metadataURI string) (string, error) {
	if err := b.contract.RegisterPassport(b.sender, id, hash, metadataURI); err != nil {
		return "", &chain.SubmissionError{Op: "registerPassport", Err: err}
	}
	return b.recordTx(id), nil
}

func (b *Backend) RegisterBatch(_ context.Context, ids, hashes [][32]byte, metadataURIs []string) (string, error) {
	if err := b.contract.RegisterPassportBatch(b.sender, ids, hashes, metadataURIs); err != nil {
		return "", &chain.SubmissionError{Op: "registerPassportBatch", Err: err}
	}
	txID := ""
	for _, id := range ids {
		txID = b.recordTx(id)
	}
	return txID, nil
}

func (b *Backend) AmendHash(_ context.Context, id, newHash [32]byte) (string, error) {
	if err := b.contract.UpdatePassportHash(b.sender, id, newHash); err != nil {
		return "", &chain.SubmissionError{Op: "updatePassportHash", Err: err}
	}
	return b.recordTx(id), nil
}

func (b *Backend) Verify(_ context.Context, id, hash [32]byte) (bool, error) {
	return b.contract.VerifyPassport(id, hash), nil
}

// Wait confirms immediately: the ledger applied the mutation synchronously,
// so any tx id this backend issued is final.
func (b *Backend) Wait(_ context.Context, txID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, known := range b.txIDs {
		if known == txID {
			return nil
		}
	}
	return &chain.ConfirmationError{TxID: txID}
}

// recordTx mints a deterministic-looking tx id for the latest mutation of id.
func (b *Backend) recordTx(id [32]byte) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nonce++
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], b.nonce)
	txID := common.BytesToHash(crypto.Keccak256(id[:], nonce[:])).Hex()
	b.txIDs[id] = txID
	return txID
}
