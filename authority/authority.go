// Package authority answers questions about the ordered validator list
// published by the bridge contracts: where an identity sits, who comes
// next, and whether both ledgers agree on the list.
package authority

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotAuthority = errors.New("identity is not in the authority list")
	ErrNoSuccessor  = errors.New("identity is the last authority")
	ErrEmptyList    = errors.New("authority list is empty")
)

// PositionOf returns the index of id in list.
func PositionOf(list []common.Address, id common.Address) (int, error) {
	for i, a := range list {
		if a == id {
			return i, nil
		}
	}
	return -1, ErrNotAuthority
}

// Successor returns the authority right after prev.
func Successor(list []common.Address, prev common.Address) (common.Address, error) {
	i, err := PositionOf(list, prev)
	if err != nil {
		return common.Address{}, err
	}
	if i == len(list)-1 {
		return common.Address{}, ErrNoSuccessor
	}
	return list[i+1], nil
}

// TerminalPosition is the index of the authority allowed to perform the
// terminal release.
func TerminalPosition(list []common.Address) (int, error) {
	if len(list) == 0 {
		return -1, ErrEmptyList
	}
	return len(list) - 1, nil
}

// Equal compares two lists element-wise, order included.
func Equal(a, b []common.Address) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
