package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// NodeClient is the subset of ethclient.Client the registry client needs.
// Narrowing it keeps the client testable against a fake node.
type NodeClient interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// Client talks to a deployed MaterialRegistry. The signing key and node
// handle are shared read-only across concurrent anchor jobs.
type Client struct {
	node     NodeClient
	contract common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	abi      abi.ABI
}

// NewClient builds a registry client for the contract at address, signing
// with the hex-encoded private key.
func NewClient(node NodeClient, address string, privateKeyHex string, chainID int64) (*Client, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid registry address %q", address)
	}
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	parsed, err := parseRegistryABI()
	if err != nil {
		return nil, fmt.Errorf("parse registry abi: %w", err)
	}
	return &Client{
		node:     node,
		contract: common.HexToAddress(address),
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:  big.NewInt(chainID),
		abi:      parsed,
	}, nil
}

// From returns the signer address, the on-chain owner of anything this client
// registers.
func (c *Client) From() common.Address { return c.from }

func (c *Client) Register(ctx context.Context, id, hash [32]byte, metadataURI string) (string, error) {
	return c.submit(ctx, "registerPassport", id, hash, metadataURI)
}

func (c *Client) RegisterBatch(ctx context.Context, ids, hashes [][32]byte, metadataURIs []string) (string, error) {
	return c.submit(ctx, "registerPassportBatch", ids, hashes, metadataURIs)
}

func (c *Client) AmendHash(ctx context.Context, id, newHash [32]byte) (string, error) {
	return c.submit(ctx, "updatePassportHash", id, newHash)
}

func (c *Client) Verify(ctx context.Context, id, hash [32]byte) (bool, error) {
	out, err := c.call(ctx, "verifyPassport", id, hash)
	if err != nil {
		return false, err
	}
	var valid bool
	if err := c.abi.UnpackIntoInterface(&valid, "verifyPassport", out); err != nil {
		return false, fmt.Errorf("unpack verifyPassport: %w", err)
	}
	return valid, nil
}

// Passport reads the ledger record for id. An unregistered id comes back as
// (nil, nil): the contract returns a zeroed record rather than reverting.
func (c *Client) Passport(ctx context.Context, id [32]byte) (*Record, error) {
	out, err := c.call(ctx, "getPassport", id)
	if err != nil {
		return nil, err
	}
	var result struct {
		DataHash [32]byte
		Owner    common.Address
		Status   uint8
	}
	if err := c.abi.UnpackIntoInterface(&result, "getPassport", out); err != nil {
		return nil, fmt.Errorf("unpack getPassport: %w", err)
	}
	if result.Owner == (common.Address{}) {
		return nil, nil
	}
	rec := &Record{Hash: result.DataHash}
	rec.TxID = c.lookupAnchorTx(ctx, id)
	return rec, nil
}

// lookupAnchorTx finds the transaction that installed the current hash by
// scanning the registration and amendment events indexed by passport id.
// Best-effort: an empty result only means the caller has no tx id to report.
func (c *Client) lookupAnchorTx(ctx context.Context, id [32]byte) string {
	topics := [][]common.Hash{
		{c.abi.Events["PassportRegistered"].ID, c.abi.Events["PassportHashUpdated"].ID},
		{common.Hash(id)},
	}
	logs, err := c.node.FilterLogs(ctx, ethereum.FilterQuery{
		Addresses: []common.Address{c.contract},
		Topics:    topics,
	})
	if err != nil || len(logs) == 0 {
		return ""
	}
	return logs[len(logs)-1].TxHash.Hex()
}

// submit packs, signs, and broadcasts one registry call, returning the tx
// hash without waiting for inclusion.
func (c *Client) submit(ctx context.Context, method string, args ...any) (string, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return "", &SubmissionError{Op: method, Err: err}
	}

	nonce, err := c.node.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", &SubmissionError{Op: method, Err: err}
	}
	gasPrice, err := c.node.SuggestGasPrice(ctx)
	if err != nil {
		return "", &SubmissionError{Op: method, Err: err}
	}
	gas, err := c.node.EstimateGas(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &c.contract,
		Data: data,
	})
	if err != nil {
		return "", &SubmissionError{Op: method, Err: err}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.contract,
		Value:    big.NewInt(0),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return "", &SubmissionError{Op: method, Err: err}
	}
	if err := c.node.SendTransaction(ctx, signed); err != nil {
		return "", &SubmissionError{Op: method, Err: err}
	}
	return signed.Hash().Hex(), nil
}

func (c *Client) call(ctx context.Context, method string, args ...any) ([]byte, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := c.node.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return out, nil
}
