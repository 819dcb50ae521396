package common

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseBlockNumber parses a block number written in decimal or as 0x-prefixed hex.
func ParseBlockNumber(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if hex, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		return strconv.ParseUint(hex, 16, 64)
	}

	return strconv.ParseUint(s, 10, 64)
}

// BytesToMB converts a byte count to whole mebibytes.
func BytesToMB(bytes int64) int64 {
	return bytes >> 20 //nolint:mnd
}

func ToLowerWithTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsHexAddress reports whether s is a 20 byte hex address, with or without the 0x prefix.
func IsHexAddress(s string) bool {
	return common.IsHexAddress(strings.TrimSpace(s))
}
