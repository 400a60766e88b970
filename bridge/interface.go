package bridge

import (
	"context"
	"math/big"

	"github.com/TEENet-io/bridge-validator/agreement"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

type Submitter interface {
	Submit(ctx context.Context, ledger agreement.TxSender, call *agreement.ContractCall) (ethcommon.Hash, error)
}

type AssetFetcher interface {
	FetchEncodedAsset(ctx context.Context, tokenId *big.Int) (string, error)
}

// Recorder is told what happens to every event.
type Recorder interface {
	EventReceived(direction, kind string)
	Decision(direction, kind, outcome string)
	HandlerStarted()
	HandlerDone()
}

type nopRecorder struct{}

func (nopRecorder) EventReceived(string, string)    {}
func (nopRecorder) Decision(string, string, string) {}
func (nopRecorder) HandlerStarted()                 {}
func (nopRecorder) HandlerDone()                    {}
