package bridge

import "errors"

var (
	ErrNilLedger           = errors.New("direction needs a source and a destination ledger")
	ErrNilRole             = errors.New("role is nil")
	ErrNilGuard            = errors.New("guard is nil")
	ErrNilSubmitter        = errors.New("submitter is nil")
	ErrNilFetcher          = errors.New("direction attaches metadata but fetcher is nil")
	ErrTriggerNotConfirmed = errors.New("triggering tx not confirmed")
	ErrReadAuthorities     = errors.New("failed to read authorities")
	ErrReadLockedFlag      = errors.New("failed to read locked flag")
	ErrFetchAsset          = errors.New("failed to fetch asset")
)
