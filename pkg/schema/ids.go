package schema

import (
	"fmt"
	"math/big"
	"slices"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IDSeparator joins the parts of a composite entity id.
const IDSeparator = "-"

// CursorID is the id of the single IndexerCursor entity of an entity store.
const CursorID = "cursor"

// NativeTokenID is the Token id of the chain's native asset.
var NativeTokenID = AddressID(common.Address{})

// AddressID is the canonical id of an address keyed entity: 0x prefixed lowercase hex.
func AddressID(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// HashID is the canonical id of a hash keyed entity.
func HashID(h common.Hash) string {
	return h.Hex()
}

// JoinID builds a composite id from its parts.
func JoinID(parts ...string) string {
	return strings.Join(parts, IDSeparator)
}

// NormalizeID puts an id typed by hand into canonical form: every 0x prefixed part is lowercased,
// so checksummed addresses find the entities they key.
func NormalizeID(id string) string {
	parts := strings.Split(strings.TrimSpace(id), IDSeparator)
	for i, part := range parts {
		if len(part) > 1 && part[0] == '0' && (part[1] == 'x' || part[1] == 'X') {
			parts[i] = strings.ToLower(part)
		}
	}

	return JoinID(parts...)
}

// HolderID is the id of the Holder of account in collection.
func HolderID(collection, account common.Address) string {
	return JoinID(AddressID(collection), AddressID(account))
}

// RoleHolderID is the id of the RoleHolder of account in collection.
func RoleHolderID(collection, account common.Address) string {
	return JoinID(AddressID(collection), AddressID(account))
}

// NFTID is the id of token tokenID of collection.
func NFTID(tokenID *big.Int, collection common.Address) string {
	return JoinID(tokenID.String(), AddressID(collection))
}

// MintTransactionID is the id of the seq-th purchase.
func MintTransactionID(seq uint64) string {
	return strconv.FormatUint(seq, 10)
}

// FaultID identifies the log an IndexingFault was raised for.
func FaultID(txHash common.Hash, logIndex uint) string {
	return JoinID(HashID(txHash), strconv.FormatUint(uint64(logIndex), 10))
}

// TokenURI derives the metadata URI of tokenID under baseURI.
func TokenURI(baseURI string, tokenID *big.Int) string {
	return fmt.Sprintf("%s/%s.json", baseURI, tokenID.String())
}

// AppendUnique appends id to list unless it is already present.
func AppendUnique(list []string, id string) []string {
	if slices.Contains(list, id) {
		return list
	}
	return append(list, id)
}

// Remove returns list without id, preserving the order of the remaining ids.
func Remove(list []string, id string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
