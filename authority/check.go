package authority

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"
)

var (
	ErrReadAuthorities   = errors.New("failed to read authorities")
	ErrPositionUnmatched = errors.New("validator position differs between ledgers")
	ErrListsUnmatched    = errors.New("authority lists differ")
)

func ErrAuthoritiesUnmatched(native, receiver []common.Address) error {
	return fmt.Errorf("%w: native=%v, receiver=%v", ErrListsUnmatched, native, receiver)
}

// Registry is a ledger exposing its authority list and the identity this
// process signs with there.
type Registry interface {
	Name() string
	Identity() common.Address
	Authorities(ctx context.Context) ([]common.Address, error)
}

// Role is the position this validator holds on both ledgers. It is fixed at
// startup and never changes for the lifetime of the process.
type Role struct {
	Index int
	Size  int

	identities map[string]common.Address
}

// IdentityOn returns the signing identity used on the named ledger.
func (r *Role) IdentityOn(ledger string) common.Address {
	return r.identities[ledger]
}

// Identities returns the signing identity per ledger name.
func (r *Role) Identities() map[string]common.Address {
	out := make(map[string]common.Address, len(r.identities))
	for k, v := range r.identities {
		out[k] = v
	}
	return out
}

func (r *Role) IsFirst() bool {
	return r.Index == 0
}

func (r *Role) IsLast() bool {
	return r.Index == r.Size-1
}

func (r *Role) String() string {
	switch {
	case r.IsFirst():
		return fmt.Sprintf("initiator (%d/%d)", r.Index, r.Size)
	case r.IsLast():
		return fmt.Sprintf("finalizer (%d/%d)", r.Index, r.Size)
	default:
		return fmt.Sprintf("relay (%d/%d)", r.Index, r.Size)
	}
}

// Check reads the authority list of both ledgers and makes sure they are
// identical and that this validator holds the same position on each.
func Check(ctx context.Context, native, receiver Registry) (*Role, error) {
	nativeList, err := native.Authorities(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrReadAuthorities, native.Name(), err)
	}
	receiverList, err := receiver.Authorities(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrReadAuthorities, receiver.Name(), err)
	}

	if len(nativeList) == 0 {
		return nil, ErrEmptyList
	}
	if !Equal(nativeList, receiverList) {
		return nil, ErrAuthoritiesUnmatched(nativeList, receiverList)
	}

	nativeIdx, err := PositionOf(nativeList, native.Identity())
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s", err, native.Name(), native.Identity().String())
	}
	receiverIdx, err := PositionOf(receiverList, receiver.Identity())
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s", err, receiver.Name(), receiver.Identity().String())
	}
	if nativeIdx != receiverIdx {
		return nil, fmt.Errorf("%w: %s=%d, %s=%d", ErrPositionUnmatched,
			native.Name(), nativeIdx, receiver.Name(), receiverIdx)
	}

	role := &Role{
		Index: nativeIdx,
		Size:  len(nativeList),
		identities: map[string]common.Address{
			native.Name():   native.Identity(),
			receiver.Name(): receiver.Identity(),
		},
	}

	logger.WithFields(logger.Fields{
		"index":    role.Index,
		"size":     role.Size,
		"role":     role.String(),
		"native":   native.Identity().String(),
		"receiver": receiver.Identity().String(),
	}).Info("validator checks passed")

	return role, nil
}
