package common

import (
	"crypto/rand"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

func RandEthAddress() ethcommon.Address {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return ethcommon.Address{}
	}
	return ethcommon.BytesToAddress(b[:])
}

// RandEthAddresses returns n distinct random addresses.
func RandEthAddresses(n int) []ethcommon.Address {
	seen := make(map[ethcommon.Address]bool, n)
	out := make([]ethcommon.Address, 0, n)
	for len(out) < n {
		a := RandEthAddress()
		if seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}
