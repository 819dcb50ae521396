package rpc

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EthClient is the chain access needed to index drops: log queries, headers
// selected by number or tag, contract reads and transaction senders.
type EthClient interface {
	Close()

	GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
	// BatchGetLogs runs the queries in one batch request, results in query order.
	BatchGetLogs(ctx context.Context, queries []ethereum.FilterQuery) ([][]types.Log, error)

	GetBlockHeader(ctx context.Context, blockNum uint64) (*types.Header, error)
	GetLatestBlockHeader(ctx context.Context) (*types.Header, error)
	GetFinalizedBlockHeader(ctx context.Context) (*types.Header, error)
	GetSafeBlockHeader(ctx context.Context) (*types.Header, error)
	// BatchGetBlockHeaders returns the headers of blockNums in the same order.
	BatchGetBlockHeaders(ctx context.Context, blockNums []uint64) ([]*types.Header, error)

	ContractCaller

	// TransactionSender returns the sender of a mined transaction.
	TransactionSender(ctx context.Context, txHash, blockHash common.Hash, txIndex uint) (common.Address, error)
}

// ContractCaller executes read-only contract calls.
type ContractCaller interface {
	// CallContract executes a message call against the state at blockNumber (nil for latest).
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}
