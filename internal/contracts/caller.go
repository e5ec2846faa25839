package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/mselser95/basket-slippage/pkg/fixedpoint"
)

// Caller reads and writes contracts. *chain.Client implements it.
type Caller interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	Transact(ctx context.Context, to common.Address, data []byte) (*ethtypes.Receipt, error)
	From() common.Address
}

// call packs method, calls the contract and unpacks the outputs.
func call(ctx context.Context, c Caller, contract abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	result, err := c.Call(ctx, to, data)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	out, err := contract.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

// transact packs method and sends it as a transaction.
func transact(ctx context.Context, c Caller, contract abi.ABI, to common.Address, method string, args ...interface{}) (*ethtypes.Receipt, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	receipt, err := c.Transact(ctx, to, data)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}
	return receipt, nil
}

// callUint256 calls a view method returning a single uint256.
func callUint256(ctx context.Context, c Caller, contract abi.ABI, to common.Address, method string, args ...interface{}) (*big.Int, error) {
	out, err := call(ctx, c, contract, to, method, args...)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s returned %d values", method, len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T", method, out[0])
	}
	return v, nil
}

// scaleTo18 converts a raw integer with the given decimals into a fixed-point value.
func scaleTo18(raw *big.Int, decimals uint8) (fixedpoint.Value, error) {
	switch {
	case decimals == fixedpoint.Decimals:
		return fixedpoint.FromRaw(raw)
	case decimals < fixedpoint.Decimals:
		factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(fixedpoint.Decimals-decimals)), nil)
		return fixedpoint.FromRaw(new(big.Int).Mul(raw, factor))
	default:
		factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-fixedpoint.Decimals)), nil)
		return fixedpoint.FromRaw(new(big.Int).Quo(raw, factor))
	}
}
