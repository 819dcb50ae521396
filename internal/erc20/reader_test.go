package erc20

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/DropIndexor/internal/logger"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCaller struct {
	mock.Mock
}

func (m *mockCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	args := m.Called(msg.Data, block)
	out, _ := args.Get(0).([]byte)
	return out, args.Error(1)
}

func packOutput(t *testing.T, method string, value any) []byte {
	t.Helper()

	out, err := readerABI.Methods[method].Outputs.Pack(value)
	require.NoError(t, err)

	return out
}

func selector(method string) []byte {
	return readerABI.Methods[method].ID
}

func TestReader_Reads(t *testing.T) {
	token := common.HexToAddress("0x1000000000000000000000000000000000000001")
	impl := common.HexToAddress("0x2000000000000000000000000000000000000002")
	block := big.NewInt(100)

	caller := &mockCaller{}
	caller.On("CallContract", selector("name"), block).Return(packOutput(t, "name", "Wrapped Ether"), nil)
	caller.On("CallContract", selector("symbol"), block).Return(packOutput(t, "symbol", "WETH"), nil)
	caller.On("CallContract", selector("decimals"), block).Return(packOutput(t, "decimals", uint8(18)), nil)
	caller.On("CallContract", selector("totalSupply"), block).
		Return(packOutput(t, "totalSupply", big.NewInt(1_000_000)), nil)
	caller.On("CallContract", selector("implementation"), block).Return(packOutput(t, "implementation", impl), nil)

	r := NewReader(caller, logger.NewNopLogger())
	ctx := context.Background()

	name := r.Name(ctx, token, block)
	require.True(t, name.OK())
	require.Equal(t, "Wrapped Ether", name.Value)

	require.Equal(t, "WETH", r.Symbol(ctx, token, block).Or("ERROR"))
	require.Equal(t, uint8(18), r.Decimals(ctx, token, block).Or(0))
	require.Equal(t, 0, big.NewInt(1_000_000).Cmp(r.TotalSupply(ctx, token, block).Or(big.NewInt(0))))
	require.Equal(t, impl, r.Implementation(ctx, token, block).Or(common.Address{}))

	caller.AssertExpectations(t)
}

func TestReader_Failures(t *testing.T) {
	token := common.HexToAddress("0x1000000000000000000000000000000000000001")

	tests := []struct {
		name string
		out  []byte
		err  error
	}{
		{name: "reverted", err: errors.New("execution reverted")},
		{name: "empty output", out: []byte{}},
		{name: "malformed output", out: []byte{0x01, 0x02}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &mockCaller{}
			caller.On("CallContract", mock.Anything, mock.Anything).Return(tt.out, tt.err)

			r := NewReader(caller, logger.NewNopLogger())
			ctx := context.Background()

			name := r.Name(ctx, token, nil)
			require.False(t, name.OK())
			require.Error(t, name.Err)
			require.Equal(t, "ERROR", name.Or("ERROR"))

			require.Equal(t, "ERROR", r.Symbol(ctx, token, nil).Or("ERROR"))
			require.Equal(t, uint8(0), r.Decimals(ctx, token, nil).Or(0))

			supply := r.TotalSupply(ctx, token, nil).Or(big.NewInt(0))
			require.Equal(t, 0, supply.Sign())
		})
	}
}
