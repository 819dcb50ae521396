package rpc

import (
	"context"
	"errors"
	"math/big"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"
)

// fakeEth serves the eth_ namespace methods the client relies on.
type fakeEth struct {
	calls       atomic.Int32
	callErrors  []error
	returnData  hexutil.Bytes
	knownBlocks uint64
}

func (f *fakeEth) Call(args map[string]any, block string) (hexutil.Bytes, error) {
	n := int(f.calls.Add(1))
	if n <= len(f.callErrors) {
		return nil, f.callErrors[n-1]
	}
	return f.returnData, nil
}

func (f *fakeEth) GetBlockByNumber(number string, fullTx bool) (*types.Header, error) {
	num, err := hexutil.DecodeUint64(number)
	if err != nil {
		return nil, err
	}
	if num > f.knownBlocks {
		return nil, nil
	}
	return &types.Header{
		Number:     new(big.Int).SetUint64(num),
		Difficulty: big.NewInt(0),
		Time:       1_700_000_000 + num*2,
	}, nil
}

func newFakeNode(t *testing.T, eth *fakeEth) *Client {
	t.Helper()

	server := gethrpc.NewServer()
	require.NoError(t, server.RegisterName("eth", eth))

	httpServer := httptest.NewServer(server)
	t.Cleanup(func() {
		httpServer.Close()
		server.Stop()
	})

	client, err := NewClient(context.Background(), httpServer.URL, fastRetry(3))
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client
}

func TestClient_CallContractRetriesTransientErrors(t *testing.T) {
	eth := &fakeEth{
		callErrors: []error{errors.New("503 service unavailable")},
		returnData: hexutil.Bytes{0x12},
	}
	client := newFakeNode(t, eth)

	token := common.HexToAddress("0x00000000000000000000000000000000000000e2")
	out, err := client.CallContract(context.Background(), ethereum.CallMsg{To: &token, Data: []byte{0x31, 0x3c, 0xe5, 0x67}}, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{0x12}, out)
	require.EqualValues(t, 2, eth.calls.Load())
}

func TestClient_CallContractRevertIsPermanent(t *testing.T) {
	eth := &fakeEth{callErrors: []error{errors.New("execution reverted")}}
	client := newFakeNode(t, eth)

	token := common.HexToAddress("0x00000000000000000000000000000000000000e2")
	_, err := client.CallContract(context.Background(), ethereum.CallMsg{To: &token}, big.NewInt(10))
	require.ErrorContains(t, err, "eth_call")
	require.ErrorContains(t, err, "execution reverted")
	require.EqualValues(t, 1, eth.calls.Load())
}

func TestClient_BatchGetBlockHeaders(t *testing.T) {
	client := newFakeNode(t, &fakeEth{knownBlocks: 250})

	blocks := make([]uint64, 0, 150)
	for b := uint64(100); b < 250; b++ {
		blocks = append(blocks, b)
	}

	headers, err := client.BatchGetBlockHeaders(context.Background(), blocks)
	require.NoError(t, err)
	require.Len(t, headers, len(blocks))
	for i, header := range headers {
		require.Equal(t, blocks[i], header.Number.Uint64())
		require.Equal(t, 1_700_000_000+blocks[i]*2, header.Time)
	}

	_, err = client.BatchGetBlockHeaders(context.Background(), []uint64{250, 251})
	require.ErrorContains(t, err, "block 251 not found")
}

func TestToFilterArg(t *testing.T) {
	collection := common.HexToAddress("0x00000000000000000000000000000000000000c1")
	factory := common.HexToAddress("0x00000000000000000000000000000000000000fa")
	blockHash := common.HexToHash("0xbeef")
	transfer := common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

	tests := []struct {
		name  string
		query ethereum.FilterQuery
		want  map[string]any
	}{
		{
			name: "block range with one address",
			query: ethereum.FilterQuery{
				FromBlock: big.NewInt(100),
				ToBlock:   big.NewInt(200),
				Addresses: []common.Address{collection},
				Topics:    [][]common.Hash{{transfer}},
			},
			want: map[string]any{
				"fromBlock": "0x64",
				"toBlock":   "0xc8",
				"address":   collection,
				"topics":    [][]common.Hash{{transfer}},
			},
		},
		{
			name: "several addresses are sent as a list",
			query: ethereum.FilterQuery{
				FromBlock: big.NewInt(0),
				ToBlock:   big.NewInt(1),
				Addresses: []common.Address{collection, factory},
			},
			want: map[string]any{
				"fromBlock": "0x0",
				"toBlock":   "0x1",
				"address":   []common.Address{collection, factory},
				"topics":    [][]common.Hash(nil),
			},
		},
		{
			name: "block hash replaces the range",
			query: ethereum.FilterQuery{
				BlockHash: &blockHash,
				FromBlock: big.NewInt(100),
				ToBlock:   big.NewInt(200),
			},
			want: map[string]any{
				"blockHash": blockHash,
				"topics":    [][]common.Hash(nil),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, toFilterArg(tt.query))
		})
	}
}

func TestErrorType(t *testing.T) {
	require.Equal(t, "transient", errorType(errors.New("429 Too Many Requests")))
	require.Equal(t, "permanent", errorType(errors.New("execution reverted")))
}
