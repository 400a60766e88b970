package chaintxmgr

import "errors"

var (
	ErrSuggestGasPrice  = errors.New("failed to suggest gas price")
	ErrEstimateGas      = errors.New("failed to estimate gas")
	ErrPackCall         = errors.New("failed to pack call")
	ErrSendCall         = errors.New("failed to send call")
	ErrWaitConfirmed    = errors.New("failed to wait for confirmations")
	ErrTxReverted       = errors.New("tx reverted")
	ErrTransactionInput = errors.New("failed to read back tx input")
	ErrTxSubstituted    = errors.New("mined tx input differs from the submitted call")
)
