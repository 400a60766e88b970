package etherman

import (
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// StringToPrivateKey parses a hex encoded secp256k1 key, with or without
// the 0x prefix.
func StringToPrivateKey(str string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(str), "0x"))
}
