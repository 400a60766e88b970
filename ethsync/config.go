package ethsync

import (
	"time"
)

const (
	DefaultBlockRange = 1000

	// StartFromHead makes the synchronizer ignore history and only report
	// events mined after it started.
	StartFromHead = int64(-1)
)

type Config struct {
	// FrequencyToCheckHead is how often the ledger head is polled
	FrequencyToCheckHead time.Duration

	// StartBlock is the first block scanned for events; StartFromHead means
	// the head at startup
	StartBlock int64

	// BlockRange caps the number of blocks covered by one log query
	BlockRange uint64
}
