package ethsync

import (
	"errors"
	"fmt"
)

var ErrNilSource = errors.New("event source is nil")

func ErrStartBlockAheadOfHead(start int64, head uint64) error {
	msg := fmt.Sprintf("start block is ahead of ledger head: start=%v, head=%v", start, head)
	return errors.New(msg)
}
