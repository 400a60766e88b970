package chaintxmgr

const DefaultConfirmations = 1

type ChainTxMgrConfig struct {
	// Bridging direction the submitted txs belong to, e.g. ETH2BASE
	Direction string

	// Number of blocks, mining block included, a submitted tx needs before
	// it is considered final
	Confirmations uint64
}
