package chain

import "fmt"

// SubmissionError marks a transaction the node rejected at broadcast time.
// Retryable through the queue's backoff; never retried internally.
type SubmissionError struct {
	Op  string
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %s: %v", e.Op, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// ConfirmationError marks a transaction that reverted on-chain or was not
// confirmed within the polling window. Retrying the same content hash is safe:
// the registry's uniqueness checks reject a double-apply cheaply.
type ConfirmationError struct {
	TxID     string
	Reverted bool
}

func (e *ConfirmationError) Error() string {
	if e.Reverted {
		return fmt.Sprintf("transaction %s reverted", e.TxID)
	}
	return fmt.Sprintf("transaction %s not confirmed before timeout", e.TxID)
}
