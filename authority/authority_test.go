package authority

import (
	"context"
	"errors"
	"testing"

	"github.com/TEENet-io/bridge-validator/agreement"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	v0 = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	v1 = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	v2 = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	v3 = common.HexToAddress("0x00000000000000000000000000000000000000a3")

	list = []common.Address{v0, v1, v2}
)

func TestPositionOf(t *testing.T) {
	for i, id := range list {
		pos, err := PositionOf(list, id)
		require.NoError(t, err)
		assert.Equal(t, i, pos)
	}

	_, err := PositionOf(list, v3)
	assert.ErrorIs(t, err, ErrNotAuthority)
	_, err = PositionOf(nil, v0)
	assert.ErrorIs(t, err, ErrNotAuthority)
}

func TestSuccessor(t *testing.T) {
	next, err := Successor(list, v0)
	require.NoError(t, err)
	assert.Equal(t, v1, next)

	next, err = Successor(list, v1)
	require.NoError(t, err)
	assert.Equal(t, v2, next)

	_, err = Successor(list, v2)
	assert.ErrorIs(t, err, ErrNoSuccessor)

	_, err = Successor(list, v3)
	assert.ErrorIs(t, err, ErrNotAuthority)
}

func TestTerminalPosition(t *testing.T) {
	pos, err := TerminalPosition(list)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	pos, err = TerminalPosition([]common.Address{v0, v1, v2, v3})
	require.NoError(t, err)
	assert.Equal(t, 3, pos)

	_, err = TerminalPosition(nil)
	assert.ErrorIs(t, err, ErrEmptyList)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(list, []common.Address{v0, v1, v2}))
	assert.True(t, Equal(nil, []common.Address{}))
	assert.False(t, Equal(list, []common.Address{v0, v2, v1}))
	assert.False(t, Equal(list, []common.Address{v0, v1}))
	assert.False(t, Equal(list, []common.Address{v0, v1, v3}))
}

func TestCheck(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		nativeList    []common.Address
		receiverList  []common.Address
		nativeID      common.Address
		receiverID    common.Address
		expectedIndex int
		expectedErr   error
	}{
		{"first", list, list, v0, v0, 0, nil},
		{"middle", list, list, v1, v1, 1, nil},
		{"last", list, list, v2, v2, 2, nil},
		{"order differs", list, []common.Address{v1, v0, v2}, v0, v0, 0, ErrListsUnmatched},
		{"length differs", list, []common.Address{v0, v1}, v0, v0, 0, ErrListsUnmatched},
		{"member differs", list, []common.Address{v0, v1, v3}, v0, v0, 0, ErrListsUnmatched},
		{"not an authority", list, list, v3, v3, 0, ErrNotAuthority},
		{"position differs", list, list, v0, v1, 0, ErrPositionUnmatched},
		{"empty", nil, nil, v0, v0, 0, ErrEmptyList},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			native := agreement.NewMockLedger("eth", tt.nativeID, tt.nativeList)
			receiver := agreement.NewMockLedger("base", tt.receiverID, tt.receiverList)

			role, err := Check(ctx, native, receiver)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, role)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedIndex, role.Index)
			assert.Equal(t, len(list), role.Size)
			assert.Equal(t, tt.nativeID, role.IdentityOn("eth"))
			assert.Equal(t, tt.receiverID, role.IdentityOn("base"))
			assert.Len(t, role.Identities(), 2)
		})
	}
}

func TestCheckReadFailure(t *testing.T) {
	native := agreement.NewMockLedger("eth", v0, list)
	receiver := agreement.NewMockLedger("base", v0, list)
	receiver.AuthErr = errors.New("rpc down")

	_, err := Check(context.Background(), native, receiver)
	assert.ErrorIs(t, err, ErrReadAuthorities)
	assert.Contains(t, err.Error(), "base")
}

func TestRole(t *testing.T) {
	first := &Role{Index: 0, Size: 3}
	middle := &Role{Index: 1, Size: 3}
	last := &Role{Index: 2, Size: 3}

	assert.True(t, first.IsFirst())
	assert.False(t, first.IsLast())
	assert.False(t, middle.IsFirst())
	assert.False(t, middle.IsLast())
	assert.True(t, last.IsLast())
	assert.Contains(t, middle.String(), "relay")
}
