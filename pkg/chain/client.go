package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/mselser95/basket-slippage/pkg/types"
	"go.uber.org/zap"
)

const (
	defaultGasLimit       = uint64(3_000_000)
	defaultReceiptPoll    = 500 * time.Millisecond
	defaultReceiptTimeout = 2 * time.Minute
)

// ErrReverted is returned when a mined transaction has a failed status.
var ErrReverted = errors.New("transaction reverted")

// Backend is the subset of ethclient.Client the chain client uses.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	Close()
}

// RPC issues raw JSON-RPC calls, used for node-specific methods like evm_mine.
type RPC interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// Client reads contracts, sends signed transactions and controls block
// production on a development node.
type Client struct {
	backend        Backend
	rpc            RPC
	key            *ecdsa.PrivateKey
	from           common.Address
	chainID        *big.Int
	gasLimit       uint64
	receiptPoll    time.Duration
	receiptTimeout time.Duration
	logger         *zap.Logger
}

// Config holds chain client configuration.
type Config struct {
	RPCURL         string
	PrivateKey     string // hex, with or without 0x
	GasLimit       uint64 // used when the node estimates zero gas
	ReceiptPoll    time.Duration
	ReceiptTimeout time.Duration
	Logger         *zap.Logger
}

// Dial connects to the node at cfg.RPCURL.
func Dial(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.RPCURL == "" {
		return nil, errors.New("rpcURL cannot be empty")
	}

	rpcClient, err := rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}

	c, err := NewClient(ethclient.NewClient(rpcClient), rpcClient, cfg)
	if err != nil {
		rpcClient.Close()
		return nil, err
	}
	return c, nil
}

// NewClient wraps an existing backend.
func NewClient(backend Backend, raw RPC, cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if backend == nil {
		return nil, errors.New("backend cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.PrivateKey == "" {
		return nil, errors.New("private key cannot be empty")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	publicKeyECDSA, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("error casting public key to ECDSA")
	}

	c := &Client{
		backend:        backend,
		rpc:            raw,
		key:            key,
		from:           crypto.PubkeyToAddress(*publicKeyECDSA),
		gasLimit:       cfg.GasLimit,
		receiptPoll:    cfg.ReceiptPoll,
		receiptTimeout: cfg.ReceiptTimeout,
		logger:         cfg.Logger,
	}
	if c.gasLimit == 0 {
		c.gasLimit = defaultGasLimit
	}
	if c.receiptPoll <= 0 {
		c.receiptPoll = defaultReceiptPoll
	}
	if c.receiptTimeout <= 0 {
		c.receiptTimeout = defaultReceiptTimeout
	}

	return c, nil
}

// From returns the signing address.
func (c *Client) From() common.Address {
	return c.from
}

// Call executes a read-only contract call at the latest block.
func (c *Client) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	RPCCallsTotal.WithLabelValues("eth_call").Inc()

	msg := ethereum.CallMsg{
		From: c.from,
		To:   &to,
		Data: data,
	}

	result, err := c.backend.CallContract(ctx, msg, nil)
	if err != nil {
		RPCErrorsTotal.WithLabelValues("eth_call").Inc()
		return nil, fmt.Errorf("call contract %s: %w", to.Hex(), err)
	}
	return result, nil
}

// Transact signs and sends a transaction, then waits for its receipt.
// A reverted transaction returns the receipt together with ErrReverted.
func (c *Client) Transact(ctx context.Context, to common.Address, data []byte) (*ethtypes.Receipt, error) {
	start := time.Now()
	defer func() {
		TransactionDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get gas price: %w", err)
	}

	gasLimit := c.gasLimit
	estimate, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: &to, Data: data})
	if err != nil {
		// estimation runs the call, so a revert shows up here first
		TransactionsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	if estimate > 0 {
		gasLimit = estimate + estimate/5
	}

	chainID, err := c.chainIDOf(ctx)
	if err != nil {
		return nil, err
	}

	tx := ethtypes.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)

	signedTx, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	err = c.backend.SendTransaction(ctx, signedTx)
	if err != nil {
		TransactionsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("send transaction: %w", err)
	}

	c.logger.Debug("transaction-sent",
		zap.String("tx-hash", signedTx.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas-limit", gasLimit))

	receipt, err := c.waitForReceipt(ctx, signedTx.Hash())
	if err != nil {
		return nil, err
	}

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		TransactionsTotal.WithLabelValues("reverted").Inc()
		return receipt, fmt.Errorf("tx %s: %w", signedTx.Hash().Hex(), ErrReverted)
	}

	TransactionsTotal.WithLabelValues("success").Inc()
	GasUsed.Observe(float64(receipt.GasUsed))

	return receipt, nil
}

func (c *Client) chainIDOf(ctx context.Context) (*big.Int, error) {
	if c.chainID != nil {
		return c.chainID, nil
	}

	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain ID: %w", err)
	}
	c.chainID = chainID
	return chainID, nil
}

func (c *Client) waitForReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(c.receiptPoll)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			c.logger.Debug("receipt-poll-failed",
				zap.String("tx-hash", txHash.Hex()),
				zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for receipt %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// CurrentMarker returns the latest block number and timestamp.
func (c *Client) CurrentMarker(ctx context.Context) (types.Marker, error) {
	RPCCallsTotal.WithLabelValues("eth_getBlockByNumber").Inc()

	header, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		RPCErrorsTotal.WithLabelValues("eth_getBlockByNumber").Inc()
		return types.Marker{}, fmt.Errorf("get latest header: %w", err)
	}

	return types.Marker{
		Block:     header.Number.Uint64(),
		Timestamp: time.Unix(int64(header.Time), 0).UTC(),
	}, nil
}

// Advance mines n empty blocks on a development node and returns the new head.
// hardhat_mine is tried first; nodes without it get n evm_mine calls.
func (c *Client) Advance(ctx context.Context, n uint64) (types.Marker, error) {
	if c.rpc == nil {
		return types.Marker{}, errors.New("block production needs a raw RPC connection")
	}

	if n > 0 {
		RPCCallsTotal.WithLabelValues("hardhat_mine").Inc()
		err := c.rpc.CallContext(ctx, nil, "hardhat_mine", hexutil.EncodeUint64(n))
		if err != nil {
			c.logger.Debug("hardhat-mine-unavailable", zap.Error(err))

			for i := uint64(0); i < n; i++ {
				RPCCallsTotal.WithLabelValues("evm_mine").Inc()
				err = c.rpc.CallContext(ctx, nil, "evm_mine")
				if err != nil {
					RPCErrorsTotal.WithLabelValues("evm_mine").Inc()
					return types.Marker{}, fmt.Errorf("mine block %d of %d: %w", i+1, n, err)
				}
			}
		}
	}

	return c.CurrentMarker(ctx)
}

// Close closes the backend connection.
func (c *Client) Close() {
	c.backend.Close()
}
