package batch

import "fmt"

// Transaction stages reported by TxError
const (
	OpBegin         = "begin"
	OpInsertRaw     = "insert_raw"
	OpInsertMetrics = "insert_metrics"
	OpCommit        = "commit"
)

// TxError reports a batch whose transaction was rolled back
type TxError struct {
	Op        string
	BatchID   string
	BatchSize int
	Err       error
	// RollbackErr is set when the rollback itself failed
	RollbackErr error
}

func (e *TxError) Error() string {
	msg := fmt.Sprintf("batch %s (%d records): %s failed: %v", e.BatchID, e.BatchSize, e.Op, e.Err)
	if e.RollbackErr != nil {
		msg += fmt.Sprintf(" (rollback failed: %v)", e.RollbackErr)
	}
	return msg
}

func (e *TxError) Unwrap() error { return e.Err }
