package chaintxmgr

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/TEENet-io/bridge-validator/agreement"
	"github.com/TEENet-io/bridge-validator/chaintxmgrdb"
	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"
)

// SubmissionRecorder is told about the outcome of every submission.
type SubmissionRecorder interface {
	Submission(ledger, method string, err error)
}

// ChainTxMgr drives one contract call from fee discovery to a confirmed,
// verified transaction. It never retries: a failed submission is reported
// to the caller and dropped.
type ChainTxMgr struct {
	cfg      *ChainTxMgrConfig
	mgrdb    chaintxmgrdb.ChainTxMgrDB // optional
	recorder SubmissionRecorder        // optional
}

// New copies cfg; a zero Confirmations becomes DefaultConfirmations.
func New(cfg *ChainTxMgrConfig, mgrdb chaintxmgrdb.ChainTxMgrDB, recorder SubmissionRecorder) *ChainTxMgr {
	c := *cfg
	if c.Confirmations == 0 {
		c.Confirmations = DefaultConfirmations
	}
	logger.WithFields(logger.Fields{
		"direction":     c.Direction,
		"confirmations": c.Confirmations,
	}).Info("chain tx manager ready")

	return &ChainTxMgr{
		cfg:      &c,
		mgrdb:    mgrdb,
		recorder: recorder,
	}
}

// Submit sends call to ledger and blocks until it has the configured number
// of confirmations. The returned hash is only valid when err is nil.
//
// Procedure:
// 1. Suggest gas price and estimate gas for the call
// 2. Send the call, journal it as pending
// 3. Wait for confirmations, fail on revert
// 4. Check the mined call data is the data that was sent
func (ctm *ChainTxMgr) Submit(
	ctx context.Context,
	ledger agreement.TxSender,
	call *agreement.ContractCall,
) (txHash ethcommon.Hash, err error) {
	newLogger := logger.WithFields(logger.Fields{
		"ledger":    ledger.Name(),
		"direction": ctm.cfg.Direction,
		"method":    call.Method,
		"tokenId":   call.TokenId(),
	})

	if ctm.recorder != nil {
		defer func() {
			ctm.recorder.Submission(ledger.Name(), call.Method, err)
		}()
	}

	gasPrice, err := ledger.SuggestGasPrice(ctx)
	if err != nil {
		newLogger.Errorf("failed to suggest gas price: err=%v", err)
		return ethcommon.Hash{}, fmt.Errorf("%w: %v", ErrSuggestGasPrice, err)
	}

	gasLimit, err := ledger.EstimateGas(ctx, call)
	if err != nil {
		newLogger.Errorf("failed to estimate gas: err=%v", err)
		return ethcommon.Hash{}, fmt.Errorf("%w: %v", ErrEstimateGas, err)
	}

	expected, err := ledger.PackCall(call)
	if err != nil {
		return ethcommon.Hash{}, fmt.Errorf("%w: %v", ErrPackCall, err)
	}

	txHash, err = ledger.SendCall(ctx, call, gasPrice, gasLimit)
	if err != nil {
		newLogger.Errorf("failed to send call: err=%v", err)
		return ethcommon.Hash{}, fmt.Errorf("%w: %v", ErrSendCall, err)
	}

	newLogger = newLogger.WithField("txHash", txHash.String())
	newLogger.WithFields(logger.Fields{
		"gasPrice": gasPrice,
		"gasLimit": gasLimit,
	}).Info("tx sent")
	ctm.journalInsert(ledger.Name(), call, txHash)

	receipt, err := ledger.WaitConfirmed(ctx, txHash, ctm.cfg.Confirmations)
	if err != nil {
		newLogger.Errorf("failed to wait for confirmations: err=%v", err)
		ctm.journalStatus(txHash, chaintxmgrdb.Limbo)
		return txHash, fmt.Errorf("%w: %v", ErrWaitConfirmed, err)
	}
	ctm.journalFound(txHash, receipt.BlockNumber)

	if receipt.Reverted {
		newLogger.WithField("block", receipt.BlockNumber).Error("tx reverted")
		ctm.journalStatus(txHash, chaintxmgrdb.Reverted)
		return txHash, ErrTxReverted
	}

	input, err := ledger.TransactionInput(ctx, txHash)
	if err != nil {
		newLogger.Errorf("failed to read back tx input: err=%v", err)
		ctm.journalStatus(txHash, chaintxmgrdb.Limbo)
		return txHash, fmt.Errorf("%w: %v", ErrTransactionInput, err)
	}
	if !bytes.Equal(input, expected) {
		newLogger.Error("mined tx input differs from the submitted call")
		ctm.journalStatus(txHash, chaintxmgrdb.Mismatch)
		return txHash, ErrTxSubstituted
	}

	ctm.journalStatus(txHash, chaintxmgrdb.Success)
	newLogger.WithFields(logger.Fields{
		"block":         receipt.BlockNumber,
		"confirmations": receipt.Confirmations,
	}).Info("tx confirmed")

	return txHash, nil
}

// Journal failures are logged only; the journal never decides anything.
func (ctm *ChainTxMgr) journalInsert(ledger string, call *agreement.ContractCall, txHash ethcommon.Hash) {
	if ctm.mgrdb == nil {
		return
	}
	err := ctm.mgrdb.InsertSubmittedTx(&chaintxmgrdb.SubmittedTx{
		TxHash:    txHash.Bytes(),
		Ledger:    ledger,
		Direction: ctm.cfg.Direction,
		Method:    call.Method,
		TokenId:   call.TokenId(),
		SentAt:    time.Now().Unix(),
		TxStatus:  chaintxmgrdb.Pending,
	})
	if err != nil {
		logger.WithField("txHash", txHash.String()).Warnf("failed to journal tx: err=%v", err)
	}
}

func (ctm *ChainTxMgr) journalFound(txHash ethcommon.Hash, block uint64) {
	if ctm.mgrdb == nil {
		return
	}
	if err := ctm.mgrdb.UpdateFound(txHash.Bytes(), new(big.Int).SetUint64(block)); err != nil {
		logger.WithField("txHash", txHash.String()).Warnf("failed to journal mining block: err=%v", err)
	}
}

func (ctm *ChainTxMgr) journalStatus(txHash ethcommon.Hash, status chaintxmgrdb.MonitoredTxStatus) {
	if ctm.mgrdb == nil {
		return
	}
	if err := ctm.mgrdb.UpdateTxStatus(txHash.Bytes(), status); err != nil {
		logger.WithField("txHash", txHash.String()).Warnf("failed to journal tx status: err=%v", err)
	}
}
