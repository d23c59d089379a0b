package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// publicLockABI is the subset of the Unlock PublicLock interface livegate reads.
const publicLockABI = `[
  {"type":"function","name":"getHasValidKey","stateMutability":"view",
   "inputs":[{"name":"_keyOwner","type":"address"}],
   "outputs":[{"name":"isValid","type":"bool"}]},
  {"type":"function","name":"isLockManager","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[{"name":"","type":"bool"}]}
]`

const (
	methodHasValidKey   = "getHasValidKey"
	methodIsLockManager = "isLockManager"
)

var lockABI = mustParseABI(publicLockABI)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(fmt.Sprintf("parse lock abi: %v", err))
	}
	return parsed
}

// LockReader performs read-only calls against lock contracts.
type LockReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	HasValidKey(ctx context.Context, lock, owner common.Address) (bool, error)
	IsLockManager(ctx context.Context, lock, account common.Address) (bool, error)
	Close()
}

// Dialer opens a LockReader for one RPC endpoint.
type Dialer func(ctx context.Context, rpcURL string) (LockReader, error)

// DialEthereum opens a JSON-RPC client with go-ethereum's ethclient.
func DialEthereum(ctx context.Context, rpcURL string) (LockReader, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return &ethLockReader{caller: client, closer: client.Close}, nil
}

// contractCaller is the slice of ethclient.Client the reader needs.
type contractCaller interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type ethLockReader struct {
	caller contractCaller
	closer func()
}

func (r *ethLockReader) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := r.caller.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("eth_chainId: %w", err)
	}
	return id, nil
}

func (r *ethLockReader) HasValidKey(ctx context.Context, lock, owner common.Address) (bool, error) {
	return r.callBool(ctx, lock, methodHasValidKey, owner)
}

func (r *ethLockReader) IsLockManager(ctx context.Context, lock, account common.Address) (bool, error) {
	return r.callBool(ctx, lock, methodIsLockManager, account)
}

func (r *ethLockReader) Close() {
	if r.closer != nil {
		r.closer()
	}
}

func (r *ethLockReader) callBool(ctx context.Context, lock common.Address, method string, arg common.Address) (bool, error) {
	input, err := lockABI.Pack(method, arg)
	if err != nil {
		return false, fmt.Errorf("pack %s: %w", method, err)
	}
	output, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &lock, Data: input}, nil)
	if err != nil {
		return false, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := lockABI.Unpack(method, output)
	if err != nil {
		return false, fmt.Errorf("decode %s: %w", method, err)
	}
	if len(values) != 1 {
		return false, fmt.Errorf("decode %s: expected 1 value, got %d", method, len(values))
	}
	result, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("decode %s: unexpected %T", method, values[0])
	}
	return result, nil
}
