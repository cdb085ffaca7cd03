// Package exchange is the thin on-chain collaborator for the stablecoin
// order-book contract: authoritative order lookups, flip order placement,
// cancels, internal balances, and pair administration.
package exchange

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const exchangeABIJSON = `[
 {"inputs":[{"internalType":"uint256","name":"orderId","type":"uint256"}],"name":"getOrder","outputs":[
   {"internalType":"address","name":"maker","type":"address"},
   {"internalType":"uint256","name":"amount","type":"uint256"},
   {"internalType":"uint256","name":"remaining","type":"uint256"},
   {"internalType":"int32","name":"tick","type":"int32"},
   {"internalType":"int32","name":"flipTick","type":"int32"},
   {"internalType":"bool","name":"isBid","type":"bool"},
   {"internalType":"bool","name":"isFlip","type":"bool"}
 ],"stateMutability":"view","type":"function"},
 {"inputs":[
   {"internalType":"address","name":"base","type":"address"},
   {"internalType":"address","name":"quote","type":"address"},
   {"internalType":"uint256","name":"amount","type":"uint256"},
   {"internalType":"bool","name":"isBid","type":"bool"},
   {"internalType":"int32","name":"tick","type":"int32"},
   {"internalType":"int32","name":"flipTick","type":"int32"}
 ],"name":"placeFlip","outputs":[{"internalType":"uint256","name":"orderId","type":"uint256"}],"stateMutability":"nonpayable","type":"function"},
 {"inputs":[{"internalType":"uint256","name":"orderId","type":"uint256"}],"name":"cancel","outputs":[],"stateMutability":"nonpayable","type":"function"},
 {"inputs":[
   {"internalType":"address","name":"token","type":"address"},
   {"internalType":"address","name":"owner","type":"address"}
 ],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
 {"inputs":[
   {"internalType":"address","name":"base","type":"address"},
   {"internalType":"address","name":"quote","type":"address"}
 ],"name":"pairExists","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
 {"inputs":[
   {"internalType":"address","name":"base","type":"address"},
   {"internalType":"address","name":"quote","type":"address"}
 ],"name":"createPair","outputs":[],"stateMutability":"nonpayable","type":"function"},
 {"anonymous":false,"inputs":[
   {"indexed":true,"internalType":"uint256","name":"orderId","type":"uint256"},
   {"indexed":true,"internalType":"address","name":"maker","type":"address"},
   {"indexed":false,"internalType":"bool","name":"isBid","type":"bool"},
   {"indexed":false,"internalType":"int32","name":"tick","type":"int32"},
   {"indexed":false,"internalType":"int32","name":"flipTick","type":"int32"},
   {"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"}
 ],"name":"OrderPlaced","type":"event"}
]`

const defaultMineTimeout = 90 * time.Second

// OrderRecord is the authoritative on-chain view of one order.
type OrderRecord struct {
	Maker     common.Address
	Amount    *big.Int
	Remaining *big.Int
	Tick      int64
	FlipTick  int64
	IsBid     bool
	IsFlip    bool
}

// Client wraps an RPC connection, the exchange contract, and the maker key.
type Client struct {
	eth         *ethclient.Client
	contract    *bind.BoundContract
	abi         abi.ABI
	addr        common.Address
	chainID     *big.Int
	pk          *ecdsa.PrivateKey
	maker       common.Address
	mineTimeout time.Duration
}

// Dial connects to rpcURL and binds the exchange contract. pk may be nil for
// read-only (dry-run) use; mutating calls then fail with a clear error.
func Dial(ctx context.Context, rpcURL string, exchangeAddr common.Address, pk *ecdsa.PrivateKey) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(exchangeABIJSON))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("exchange abi parse: %w", err)
	}

	c := &Client{
		eth:         eth,
		contract:    bind.NewBoundContract(exchangeAddr, parsed, eth, eth, eth),
		abi:         parsed,
		addr:        exchangeAddr,
		chainID:     chainID,
		pk:          pk,
		mineTimeout: defaultMineTimeout,
	}
	if pk != nil {
		c.maker = crypto.PubkeyToAddress(pk.PublicKey)
	}
	return c, nil
}

// Close releases the RPC connection.
func (c *Client) Close() { c.eth.Close() }

// Address returns the exchange contract address (the approval spender).
func (c *Client) Address() common.Address { return c.addr }

// Maker returns the address derived from the signing key.
func (c *Client) Maker() common.Address { return c.maker }

// ChainID returns the connected chain id.
func (c *Client) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

func (c *Client) callABI(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call: %w", method, err)
	}
	return c.abi.Unpack(method, out)
}

// ReadOrder looks up an order by id. A zero maker in the returned record
// means the order does not exist (filled or cancelled) and is reported as
// found=false; transport/RPC failures are returned as errors and must never
// be conflated with not-found.
func (c *Client) ReadOrder(ctx context.Context, orderID *big.Int) (OrderRecord, bool, error) {
	if orderID == nil {
		return OrderRecord{}, false, fmt.Errorf("order id required")
	}
	vals, err := c.callABI(ctx, "getOrder", orderID)
	if err != nil {
		return OrderRecord{}, false, err
	}
	if len(vals) != 7 {
		return OrderRecord{}, false, fmt.Errorf("getOrder: unexpected result len %d", len(vals))
	}
	rec := OrderRecord{
		Maker:     vals[0].(common.Address),
		Amount:    vals[1].(*big.Int),
		Remaining: vals[2].(*big.Int),
		Tick:      int64(vals[3].(int32)),
		FlipTick:  int64(vals[4].(int32)),
		IsBid:     vals[5].(bool),
		IsFlip:    vals[6].(bool),
	}
	if rec.Maker == (common.Address{}) {
		return OrderRecord{}, false, nil
	}
	return rec, true, nil
}

// InternalBalance reads the maker's funds held inside the exchange contract,
// the pool that funds flip re-posts.
func (c *Client) InternalBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	vals, err := c.callABI(ctx, "balanceOf", token, owner)
	if err != nil {
		return nil, err
	}
	if len(vals) != 1 {
		return nil, fmt.Errorf("balanceOf: unexpected result len %d", len(vals))
	}
	return vals[0].(*big.Int), nil
}

// PairExists reports whether the trading pair is registered on the exchange.
func (c *Client) PairExists(ctx context.Context, base, quoteToken common.Address) (bool, error) {
	vals, err := c.callABI(ctx, "pairExists", base, quoteToken)
	if err != nil {
		return false, err
	}
	if len(vals) != 1 {
		return false, fmt.Errorf("pairExists: unexpected result len %d", len(vals))
	}
	return vals[0].(bool), nil
}

func (c *Client) transactor(ctx context.Context) (*bind.TransactOpts, error) {
	if c.pk == nil {
		return nil, fmt.Errorf("no signing key configured (read-only client)")
	}
	opts, err := bind.NewKeyedTransactorWithChainID(c.pk, c.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}

func (c *Client) transactAndWait(ctx context.Context, method string, args ...interface{}) (*types.Receipt, error) {
	opts, err := c.transactor(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := c.contract.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, c.mineTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, c.eth, tx)
	if err != nil {
		return nil, fmt.Errorf("%s wait mined tx=%s: %w", method, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s reverted tx=%s", method, tx.Hash().Hex())
	}
	return receipt, nil
}

// CreatePair registers the trading pair.
func (c *Client) CreatePair(ctx context.Context, base, quoteToken common.Address) (common.Hash, error) {
	receipt, err := c.transactAndWait(ctx, "createPair", base, quoteToken)
	if err != nil {
		return common.Hash{}, err
	}
	return receipt.TxHash, nil
}

// PlaceFlip submits a flip order and returns the order id assigned by the
// contract, decoded from the OrderPlaced event in the receipt.
func (c *Client) PlaceFlip(ctx context.Context, base, quoteToken common.Address, amount *big.Int, isBid bool, tickLevel, flipTick int64) (*big.Int, common.Hash, error) {
	receipt, err := c.transactAndWait(ctx, "placeFlip", base, quoteToken, amount, isBid, int32(tickLevel), int32(flipTick))
	if err != nil {
		return nil, common.Hash{}, err
	}
	orderID, err := c.orderIDFromReceipt(receipt)
	if err != nil {
		return nil, receipt.TxHash, err
	}
	return orderID, receipt.TxHash, nil
}

func (c *Client) orderIDFromReceipt(receipt *types.Receipt) (*big.Int, error) {
	placedTopic := c.abi.Events["OrderPlaced"].ID
	for _, l := range receipt.Logs {
		if l.Address != c.addr || len(l.Topics) < 2 || l.Topics[0] != placedTopic {
			continue
		}
		return new(big.Int).SetBytes(l.Topics[1].Bytes()), nil
	}
	return nil, fmt.Errorf("OrderPlaced event missing in receipt tx=%s", receipt.TxHash.Hex())
}

// Cancel cancels an open order.
func (c *Client) Cancel(ctx context.Context, orderID *big.Int) (common.Hash, error) {
	if orderID == nil {
		return common.Hash{}, fmt.Errorf("order id required")
	}
	receipt, err := c.transactAndWait(ctx, "cancel", orderID)
	if err != nil {
		return common.Hash{}, err
	}
	return receipt.TxHash, nil
}
