package drop

import "github.com/ethereum/go-ethereum/common"

// Role names resolved from role hashes.
const (
	RoleNameDelegatedMinterAdmin = "DELEGATED_MINTER_ADMIN"
	RoleNameDelegatedMinter      = "DELEGATED_MINTER"
	RoleNameNone                 = "NONE"
)

// Well-known access control roles of a collection.
var (
	DelegatedMinterAdminRole = common.HexToHash("0x5ed6f179f99b86220df7cbd206c7334b24cb795a85808301007ee7b2ff91a820")
	DelegatedMinterRole      = common.HexToHash("0x637062c33901e7d06867eef333d6cabd2aa851e91f8ce674ab4dba45bdc99c70")
)

var roleNames = map[common.Hash]string{
	DelegatedMinterAdminRole: RoleNameDelegatedMinterAdmin,
	DelegatedMinterRole:      RoleNameDelegatedMinter,
}

// RoleName resolves role to its name, or NONE for roles that are not known.
func RoleName(role common.Hash) string {
	if name, ok := roleNames[role]; ok {
		return name
	}
	return RoleNameNone
}
