package rpc

import (
	"context"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goran-ethernal/DropIndexor/pkg/config"
	pkgrpc "github.com/goran-ethernal/DropIndexor/pkg/rpc"
)

var _ pkgrpc.EthClient = (*Client)(nil)

// maxHeadersPerBatch keeps header batches under the request limits of public endpoints.
const maxHeadersPerBatch = 100

// Client is the JSON-RPC client shared by the downloader and the indexers.
// Every call is retried according to the retry configuration and instrumented.
type Client struct {
	eth   *ethclient.Client
	rpc   *rpc.Client
	retry *config.RetryConfig
}

// NewClient dials endpoint. A nil retry configuration executes every call exactly once.
func NewClient(ctx context.Context, endpoint string, retry *config.RetryConfig) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	return &Client{
		eth:   ethclient.NewClient(rpcClient),
		rpc:   rpcClient,
		retry: retry,
	}, nil
}

func (c *Client) Close() {
	c.eth.Close()
}

// call runs fn with retries and records request metrics under method.
func (c *Client) call(ctx context.Context, method string, fn func() error) error {
	start := time.Now()
	err := retryWithBackoff(ctx, c.retry, method, fn)
	observeCall(method, time.Since(start), err)

	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	return nil
}

func errorType(err error) string {
	if retryableError(err) {
		return "transient"
	}
	return "permanent"
}

func (c *Client) GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.call(ctx, "eth_getLogs", func() error {
		var err error
		logs, err = c.eth.FilterLogs(ctx, query)
		return err
	})

	return logs, err
}

func (c *Client) GetBlockHeader(ctx context.Context, blockNum uint64) (*types.Header, error) {
	return c.headerByNumber(ctx, new(big.Int).SetUint64(blockNum))
}

func (c *Client) GetLatestBlockHeader(ctx context.Context) (*types.Header, error) {
	return c.headerByNumber(ctx, nil)
}

func (c *Client) GetFinalizedBlockHeader(ctx context.Context) (*types.Header, error) {
	return c.headerByNumber(ctx, big.NewInt(int64(rpc.FinalizedBlockNumber)))
}

func (c *Client) GetSafeBlockHeader(ctx context.Context) (*types.Header, error) {
	return c.headerByNumber(ctx, big.NewInt(int64(rpc.SafeBlockNumber)))
}

func (c *Client) headerByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	var header *types.Header
	err := c.call(ctx, "eth_getBlockByNumber", func() error {
		var err error
		header, err = c.eth.HeaderByNumber(ctx, number)
		return err
	})

	return header, err
}

// CallContract executes a read-only message call against the state at blockNumber.
// A nil blockNumber reads the latest state.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := c.call(ctx, "eth_call", func() error {
		var err error
		out, err = c.eth.CallContract(ctx, msg, blockNumber)
		return err
	})

	return out, err
}

// TransactionSender returns the sender of the transaction txHash, mined at txIndex of blockHash.
func (c *Client) TransactionSender(
	ctx context.Context,
	txHash common.Hash,
	blockHash common.Hash,
	txIndex uint,
) (common.Address, error) {
	var sender common.Address
	err := c.call(ctx, "eth_getTransactionByHash", func() error {
		tx, _, err := c.eth.TransactionByHash(ctx, txHash)
		if err != nil {
			return err
		}

		sender, err = c.eth.TransactionSender(ctx, tx, blockHash, txIndex)
		return err
	})

	return sender, err
}

// BatchGetLogs retrieves logs for multiple filter queries in a single batch call.
func (c *Client) BatchGetLogs(ctx context.Context, queries []ethereum.FilterQuery) ([][]types.Log, error) {
	batch := make([]rpc.BatchElem, len(queries))
	results := make([][]types.Log, len(queries))

	for i, query := range queries {
		batch[i] = rpc.BatchElem{
			Method: "eth_getLogs",
			Args:   []any{toFilterArg(query)},
			Result: &results[i],
		}
	}

	if err := c.batchCall(ctx, "batch_eth_getLogs", batch); err != nil {
		return nil, err
	}

	return results, nil
}

// BatchGetBlockHeaders fetches the headers of blockNums, in order, sending at most
// maxHeadersPerBatch requests per batch. A missing block fails the whole call.
func (c *Client) BatchGetBlockHeaders(ctx context.Context, blockNums []uint64) ([]*types.Header, error) {
	headers := make([]*types.Header, 0, len(blockNums))

	for chunk := range slices.Chunk(blockNums, maxHeadersPerBatch) {
		batch := make([]rpc.BatchElem, len(chunk))
		results := make([]*types.Header, len(chunk))

		for i, n := range chunk {
			batch[i] = rpc.BatchElem{
				Method: "eth_getBlockByNumber",
				Args:   []any{hexutil.EncodeUint64(n), false},
				Result: &results[i],
			}
		}

		if err := c.batchCall(ctx, "batch_eth_getBlockByNumber", batch); err != nil {
			return nil, err
		}

		if i := slices.Index(results, nil); i >= 0 {
			return nil, fmt.Errorf("block %d not found", chunk[i])
		}

		headers = append(headers, results...)
	}

	return headers, nil
}

func (c *Client) batchCall(ctx context.Context, method string, batch []rpc.BatchElem) error {
	return c.call(ctx, method, func() error {
		if err := c.rpc.BatchCallContext(ctx, batch); err != nil {
			return err
		}

		for _, elem := range batch {
			if elem.Error != nil {
				return elem.Error
			}
		}
		return nil
	})
}

// toFilterArg encodes q the way eth_getLogs expects it inside a batch.
func toFilterArg(q ethereum.FilterQuery) map[string]any {
	arg := map[string]any{"topics": q.Topics}

	switch {
	case q.BlockHash != nil:
		arg["blockHash"] = *q.BlockHash
	default:
		if q.FromBlock != nil {
			arg["fromBlock"] = hexutil.EncodeBig(q.FromBlock)
		}
		if q.ToBlock != nil {
			arg["toBlock"] = hexutil.EncodeBig(q.ToBlock)
		}
	}

	switch len(q.Addresses) {
	case 0:
	case 1:
		arg["address"] = q.Addresses[0]
	default:
		arg["address"] = q.Addresses
	}

	return arg
}
