package schema

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/goran-ethernal/DropIndexor/pkg/store"
)

// Entity types persisted by the drop indexer.
const (
	TypeFactory         store.EntityType = "Factory"
	TypeCollection      store.EntityType = "Collection"
	TypeProgramConfig   store.EntityType = "ProgramConfig"
	TypeToken           store.EntityType = "Token"
	TypeHolder          store.EntityType = "Holder"
	TypeNFT             store.EntityType = "NFT"
	TypeMintTransaction store.EntityType = "MintTransaction"
	TypeWithdraw        store.EntityType = "Withdraw"
	TypeRole            store.EntityType = "Role"
	TypeRoleHolder      store.EntityType = "RoleHolder"
	TypeRoleGranted     store.EntityType = "RoleGranted"
	TypeRoleRevoked     store.EntityType = "RoleRevoked"
	TypeIndexingFault   store.EntityType = "IndexingFault"
	TypeIndexerCursor   store.EntityType = "IndexerCursor"
)

// AllTypes lists every entity type, in dependency order.
var AllTypes = []store.EntityType{
	TypeFactory,
	TypeCollection,
	TypeProgramConfig,
	TypeToken,
	TypeHolder,
	TypeNFT,
	TypeMintTransaction,
	TypeWithdraw,
	TypeRole,
	TypeRoleHolder,
	TypeRoleGranted,
	TypeRoleRevoked,
	TypeIndexingFault,
	TypeIndexerCursor,
}

// Factory is a collection factory contract.
type Factory struct {
	ID             string         `json:"id"`
	Address        common.Address `json:"address"`
	Kind           string         `json:"kind"`
	Implementation common.Address `json:"implementation"`
	Children       []string       `json:"children"`
	ChildrenCount  uint64         `json:"childrenCount"`
}

func (e *Factory) EntityType() store.EntityType { return TypeFactory }
func (e *Factory) EntityID() string             { return e.ID }

// Collection is one NFT drop deployed by a factory.
type Collection struct {
	ID                   string         `json:"id"`
	Kind                 string         `json:"kind"`
	Factory              string         `json:"factory"`
	Name                 string         `json:"name"`
	Symbol               string         `json:"symbol"`
	BaseURI              string         `json:"baseURI"`
	Owner                common.Address `json:"owner"`
	Recipient            common.Address `json:"recipient"`
	Admin                common.Address `json:"admin"`
	SupplyLimit          *big.Int       `json:"supplyLimit"`
	RoyaltyBPS           *big.Int       `json:"royaltyBPS"`
	Currency             string         `json:"currency,omitempty"`
	ProgramConfig        string         `json:"programConfig,omitempty"`
	ProgramBuilder       common.Address `json:"programBuilder"`
	Deployer             common.Address `json:"deployer"`
	DeployBlock          uint64         `json:"deployBlockNumber"`
	DeployTimestamp      uint64         `json:"deployTimestamp"`
	NFTs                 []string       `json:"nfts"`
	Withdrawals          []string       `json:"withdrawals"`
	MintTransactions     []string       `json:"mintTransactions"`
	AmountPayable        *big.Int       `json:"amountPayable"`
	AmountWithdrawn      *big.Int       `json:"amountWithdrawn"`
	MintTransactionCount uint64         `json:"mintTransactionCount"`
}

func (e *Collection) EntityType() store.EntityType { return TypeCollection }
func (e *Collection) EntityID() string             { return e.ID }

// ProgramConfig holds the pricing program a collection was initialized with.
type ProgramConfig struct {
	ID        string          `json:"id"`
	Sources   []hexutil.Bytes `json:"sources"`
	Constants []*big.Int      `json:"constants"`
}

func (e *ProgramConfig) EntityType() store.EntityType { return TypeProgramConfig }
func (e *ProgramConfig) EntityID() string             { return e.ID }

// Token is a payment currency. The zero address id denotes the native asset.
type Token struct {
	ID          string         `json:"id"`
	Address     common.Address `json:"address"`
	Name        string         `json:"name"`
	Symbol      string         `json:"symbol"`
	Decimals    uint8          `json:"decimals"`
	TotalSupply *big.Int       `json:"totalSupply"`
	Native      bool           `json:"native"`
}

func (e *Token) EntityType() store.EntityType { return TypeToken }
func (e *Token) EntityID() string             { return e.ID }

// Holder is an account holding NFTs of one collection.
type Holder struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	Address    common.Address `json:"address"`
	NFTs       []string       `json:"nfts"`
}

func (e *Holder) EntityType() store.EntityType { return TypeHolder }
func (e *Holder) EntityID() string             { return e.ID }

// NFT is a single minted token.
type NFT struct {
	ID         string         `json:"id"`
	TokenID    *big.Int       `json:"tokenId"`
	TokenURI   string         `json:"tokenURI"`
	Collection string         `json:"collection"`
	Owner      common.Address `json:"owner"`
}

func (e *NFT) EntityType() store.EntityType { return TypeNFT }
func (e *NFT) EntityID() string             { return e.ID }

// MintTransaction is one purchase and the tokens it minted.
type MintTransaction struct {
	ID          string         `json:"id"`
	Collection  string         `json:"collection"`
	BlockNumber uint64         `json:"mintBlockNumber"`
	Timestamp   uint64         `json:"mintTimestamp"`
	Hash        string         `json:"hash"`
	Cost        *big.Int       `json:"cost"`
	Receiver    common.Address `json:"receiver"`
	Units       *big.Int       `json:"units"`
	NFTs        []string       `json:"nfts"`
}

func (e *MintTransaction) EntityType() store.EntityType { return TypeMintTransaction }
func (e *MintTransaction) EntityID() string             { return e.ID }

// Withdraw records a withdrawal of sale proceeds.
type Withdraw struct {
	ID          string         `json:"id"`
	Collection  string         `json:"collection"`
	BlockNumber uint64         `json:"blockNumber"`
	Amount      *big.Int       `json:"amount"`
	Timestamp   uint64         `json:"timestamp"`
	Withdrawer  common.Address `json:"withdrawer"`
}

func (e *Withdraw) EntityType() store.EntityType { return TypeWithdraw }
func (e *Withdraw) EntityID() string             { return e.ID }

// Role is an access control role, keyed by its hash.
type Role struct {
	ID          string      `json:"id"`
	Collection  string      `json:"collection"`
	RoleHash    common.Hash `json:"roleHash"`
	RoleName    string      `json:"roleName"`
	RoleHolders []string    `json:"roleHolders"`
}

func (e *Role) EntityType() store.EntityType { return TypeRole }
func (e *Role) EntityID() string             { return e.ID }

// RoleHolder is an account that was granted a role on a collection.
type RoleHolder struct {
	ID          string         `json:"id"`
	Collection  string         `json:"collection"`
	Account     common.Address `json:"account"`
	Role        string         `json:"role"`
	HasRole     bool           `json:"hasRole"`
	RoleGrants  []string       `json:"roleGrants"`
	RoleRevoked []string       `json:"roleRevoked"`
}

func (e *RoleHolder) EntityType() store.EntityType { return TypeRoleHolder }
func (e *RoleHolder) EntityID() string             { return e.ID }

// RoleChange is the payload shared by the grant and revoke audit records.
type RoleChange struct {
	ID          string         `json:"id"`
	Collection  string         `json:"collection"`
	Role        string         `json:"role"`
	RoleHolder  string         `json:"roleHolder"`
	Account     common.Address `json:"account"`
	Sender      common.Address `json:"sender"`
	Emitter     common.Address `json:"emitter"`
	Transaction string         `json:"transaction"`
	Timestamp   uint64         `json:"timestamp"`
	BlockNumber uint64         `json:"blockNumber"`
}

// RoleGranted is the audit record of a role grant.
type RoleGranted struct {
	RoleChange
}

func (e *RoleGranted) EntityType() store.EntityType { return TypeRoleGranted }
func (e *RoleGranted) EntityID() string             { return e.ID }

// RoleRevoked is the audit record of a role revocation.
type RoleRevoked struct {
	RoleChange
}

func (e *RoleRevoked) EntityType() store.EntityType { return TypeRoleRevoked }
func (e *RoleRevoked) EntityID() string             { return e.ID }

// IndexingFault records an event that could not be applied.
type IndexingFault struct {
	ID          string `json:"id"`
	Collection  string `json:"collection"`
	Event       string `json:"event"`
	Reason      string `json:"reason"`
	BlockNumber uint64 `json:"blockNumber"`
	TxHash      string `json:"txHash"`
	LogIndex    uint   `json:"logIndex"`
}

func (e *IndexingFault) EntityType() store.EntityType { return TypeIndexingFault }
func (e *IndexingFault) EntityID() string             { return e.ID }

// IndexerCursor is the position of the last log an indexer applied.
type IndexerCursor struct {
	ID          string `json:"id"`
	BlockNumber uint64 `json:"blockNumber"`
	LogIndex    uint   `json:"logIndex"`
}

func (e *IndexerCursor) EntityType() store.EntityType { return TypeIndexerCursor }
func (e *IndexerCursor) EntityID() string             { return e.ID }

// After reports whether the log at (block, logIndex) comes after the cursor.
func (e *IndexerCursor) After(block uint64, logIndex uint) bool {
	if block != e.BlockNumber {
		return block > e.BlockNumber
	}
	return logIndex > e.LogIndex
}
