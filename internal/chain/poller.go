package chain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ReceiptClient fetches transaction receipts; ethclient.Client satisfies it.
type ReceiptClient interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

const (
	DefaultPollInterval = 5 * time.Second
	DefaultPollTimeout  = 60 * time.Second
)

// Poller waits for receipts with fixed-delay polling up to a wall-clock
// timeout. Individual receipt queries failing is normal while a transaction
// is in flight and is treated as "not yet available".
type Poller struct {
	client   ReceiptClient
	interval time.Duration
	timeout  time.Duration
}

func NewPoller(client ReceiptClient, interval, timeout time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return &Poller{client: client, interval: interval, timeout: timeout}
}

// Wait blocks until the transaction is confirmed, reverted, or the timeout
// elapses. The sleep between checks is ticker-based so concurrent jobs are
// not stalled by one another.
func (p *Poller) Wait(ctx context.Context, txID string) error {
	hash := common.HexToHash(txID)
	deadline := time.NewTimer(p.timeout)
	defer deadline.Stop()
	tick := time.NewTicker(p.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return &ConfirmationError{TxID: txID}
		case <-tick.C:
			receipt, err := p.client.TransactionReceipt(ctx, hash)
			if err != nil || receipt == nil {
				continue
			}
			if receipt.Status == types.ReceiptStatusFailed {
				return &ConfirmationError{TxID: txID, Reverted: true}
			}
			return nil
		}
	}
}
