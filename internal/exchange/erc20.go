package exchange

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	erc20BalanceOfSelector = crypto.Keccak256([]byte("balanceOf(address)"))[:4]
	erc20AllowanceSelector = crypto.Keccak256([]byte("allowance(address,address)"))[:4]
	erc20DecimalsSelector  = crypto.Keccak256([]byte("decimals()"))[:4]
)

const erc20ApproveABIJSON = `[
 {"inputs":[
   {"internalType":"address","name":"spender","type":"address"},
   {"internalType":"uint256","name":"amount","type":"uint256"}
 ],"name":"approve","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

// MaxApproval is the conventional unlimited ERC-20 allowance.
var MaxApproval = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

func (c *Client) callUint256(ctx context.Context, to common.Address, data []byte) (*big.Int, error) {
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty result")
	}
	return new(big.Int).SetBytes(out), nil
}

// WalletBalance reads an ERC-20 balance held directly in the owner's wallet,
// as opposed to the exchange-internal balance.
func (c *Client) WalletBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	data := make([]byte, 0, 4+32)
	data = append(data, erc20BalanceOfSelector...)
	data = append(data, common.LeftPadBytes(owner.Bytes(), 32)...)
	bal, err := c.callUint256(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("balanceOf(%s) on %s: %w", owner.Hex(), token.Hex(), err)
	}
	return bal, nil
}

// Allowance reads the owner's ERC-20 allowance toward spender.
func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	data := make([]byte, 0, 4+32+32)
	data = append(data, erc20AllowanceSelector...)
	data = append(data, common.LeftPadBytes(owner.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(spender.Bytes(), 32)...)
	a, err := c.callUint256(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("allowance(%s,%s) on %s: %w", owner.Hex(), spender.Hex(), token.Hex(), err)
	}
	return a, nil
}

// TokenDecimals reads the token's decimals. Exchange amounts are fixed-point
// integers scaled by this value.
func (c *Client) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	d, err := c.callUint256(ctx, token, append([]byte{}, erc20DecimalsSelector...))
	if err != nil {
		return 0, fmt.Errorf("decimals() on %s: %w", token.Hex(), err)
	}
	if !d.IsUint64() || d.Uint64() > 77 {
		return 0, fmt.Errorf("decimals() on %s returned implausible value %s", token.Hex(), d)
	}
	return uint8(d.Uint64()), nil
}

// Approve grants the exchange contract an ERC-20 allowance and waits for the
// transaction to mine.
func (c *Client) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	opts, err := c.transactor(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	parsed, err := abi.JSON(strings.NewReader(erc20ApproveABIJSON))
	if err != nil {
		return common.Hash{}, fmt.Errorf("erc20 abi parse: %w", err)
	}
	contract := bind.NewBoundContract(token, parsed, c.eth, c.eth, c.eth)
	tx, err := contract.Transact(opts, "approve", spender, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("approve on %s: %w", token.Hex(), err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, c.mineTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, c.eth, tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("approve wait mined tx=%s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return common.Hash{}, fmt.Errorf("approve reverted tx=%s", tx.Hash().Hex())
	}
	return receipt.TxHash, nil
}
