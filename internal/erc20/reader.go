package erc20

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/DropIndexor/internal/logger"
	pkgrpc "github.com/goran-ethernal/DropIndexor/pkg/rpc"
)

const readerABIJSON = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"implementation","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

var readerABI = mustParseABI(readerABIJSON)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid reader ABI: %v", err))
	}
	return parsed
}

// Result is the outcome of a single contract read. A failed read carries Err and the zero Value.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the read succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Or returns the read value, or fallback if the read failed.
func (r Result[T]) Or(fallback T) T {
	if r.Err != nil {
		return fallback
	}
	return r.Value
}

// Reader performs point reads of ERC-20 metadata and factory state.
// Reads never fail the caller: every method returns a Result.
type Reader struct {
	caller pkgrpc.ContractCaller
	log    *logger.Logger
}

// NewReader creates a Reader on top of caller.
func NewReader(caller pkgrpc.ContractCaller, log *logger.Logger) *Reader {
	return &Reader{caller: caller, log: log}
}

// Name reads name() of token at block.
func (r *Reader) Name(ctx context.Context, token common.Address, block *big.Int) Result[string] {
	return read[string](ctx, r, token, block, "name")
}

// Symbol reads symbol() of token at block.
func (r *Reader) Symbol(ctx context.Context, token common.Address, block *big.Int) Result[string] {
	return read[string](ctx, r, token, block, "symbol")
}

// Decimals reads decimals() of token at block.
func (r *Reader) Decimals(ctx context.Context, token common.Address, block *big.Int) Result[uint8] {
	return read[uint8](ctx, r, token, block, "decimals")
}

// TotalSupply reads totalSupply() of token at block.
func (r *Reader) TotalSupply(ctx context.Context, token common.Address, block *big.Int) Result[*big.Int] {
	return read[*big.Int](ctx, r, token, block, "totalSupply")
}

// Implementation reads implementation() of a collection factory at block.
func (r *Reader) Implementation(ctx context.Context, factory common.Address, block *big.Int) Result[common.Address] {
	return read[common.Address](ctx, r, factory, block, "implementation")
}

func read[T any](ctx context.Context, r *Reader, contract common.Address, block *big.Int, method string) Result[T] {
	var out T

	err := func() error {
		data, err := readerABI.Pack(method)
		if err != nil {
			return fmt.Errorf("failed to pack %s: %w", method, err)
		}

		raw, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, block)
		if err != nil {
			return fmt.Errorf("call %s: %w", method, err)
		}

		if err := readerABI.UnpackIntoInterface(&out, method, raw); err != nil {
			return fmt.Errorf("failed to decode %s: %w", method, err)
		}

		return nil
	}()
	if err != nil {
		ExternalCallFailureInc(method)
		r.log.Warnw("contract read failed",
			"contract", contract.Hex(),
			"method", method,
			"block", block,
			"error", err,
		)

		var zero T
		return Result[T]{Value: zero, Err: err}
	}

	return Result[T]{Value: out}
}
