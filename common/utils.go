package common

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

var ErrInvalidTokenId = errors.New("invalid token id")

// Trim 0x or 0X prefix off the string.
func Trim0xPrefix(str string) string {
	s := strings.TrimPrefix(str, "0x")
	return strings.TrimPrefix(s, "0X")
}

func Prepend0xPrefix(str string) string {
	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		return str
	}
	return "0x" + str
}

func RandBytes(n int) []byte {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		return nil
	}
	return b
}

// RandHash generates a hash with random value
func RandHash() ethcommon.Hash {
	return ethcommon.BytesToHash(RandBytes(32))
}

// Shorten shortens a hex string so that both sides have n characters and
// the rest is replaced with "..."
func Shorten(hexStr string, n int) string {
	str := Trim0xPrefix(hexStr)

	if len(str) <= n*2 {
		return Prepend0xPrefix(str)
	}
	return Prepend0xPrefix(str[:n] + "..." + str[len(str)-n:])
}

func BigIntClone(bigInt *big.Int) *big.Int {
	if bigInt == nil {
		return nil
	}
	return new(big.Int).Set(bigInt)
}

// IsHexString reports whether str is made of exactly n hex characters,
// an optional 0x prefix aside.
func IsHexString(str string, n int) bool {
	str = Trim0xPrefix(str)
	if len(str) != n {
		return false
	}
	for _, c := range str {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

// ParseTokenId parses a non-negative decimal token id.
func ParseTokenId(str string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(str, 10)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTokenId, str)
	}
	return id, nil
}

// DirectionName names the bridging direction from src to dst, e.g. ETH2BASE.
func DirectionName(src, dst string) string {
	return strings.ToUpper(src) + "2" + strings.ToUpper(dst)
}
