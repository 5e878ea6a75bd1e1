package trade

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/collector"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/config"
)

const swapDeadline = 5 * time.Minute

// SwapParams is one concrete swap against the Aerodrome router.
type SwapParams struct {
	TokenIn  string
	TokenOut string
	AmountIn float64
	MinOut   float64
	Stable   bool
}

// SwapResult reports what actually happened: an on-chain transaction or
// a dry run.
type SwapResult struct {
	TxHash string
	DryRun bool
}

// Executor sends swaps through the Aerodrome router. With dryRun set it
// validates and logs the intended trade without touching the chain.
type Executor struct {
	eth     *ethclient.Client
	key     *ecdsa.PrivateKey
	wallet  common.Address
	chainID *big.Int
	router  common.Address
	factory common.Address
	dryRun  bool
	log     *zap.SugaredLogger
}

func NewExecutor(eth *ethclient.Client, privKeyHex string, chainID int64, dryRun bool, log *zap.SugaredLogger) (*Executor, error) {
	e := &Executor{
		eth:     eth,
		chainID: big.NewInt(chainID),
		router:  common.HexToAddress(config.AddrRouter),
		factory: common.HexToAddress(config.AddrFactory),
		dryRun:  dryRun,
		log:     log,
	}
	if privKeyHex != "" {
		key, err := crypto.HexToECDSA(privKeyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid trading key: %w", err)
		}
		e.key = key
		e.wallet = crypto.PubkeyToAddress(key.PublicKey)
	} else if !dryRun {
		return nil, fmt.Errorf("live trading requires a private key")
	}
	return e, nil
}

// Swap executes the trade, approving the router first when the current
// allowance does not cover the input amount.
func (e *Executor) Swap(ctx context.Context, p SwapParams) (SwapResult, error) {
	amountIn := collector.ToWei(p.AmountIn, p.TokenIn)
	minOut := collector.ToWei(p.MinOut, p.TokenOut)

	if e.dryRun {
		e.log.Infow("dry run, swap not sent",
			"token_in", p.TokenIn, "token_out", p.TokenOut,
			"amount_in", p.AmountIn, "min_out", p.MinOut)
		return SwapResult{DryRun: true}, nil
	}

	tokenIn := common.HexToAddress(config.TokenAddresses[p.TokenIn])
	if err := e.ensureAllowance(ctx, tokenIn, amountIn); err != nil {
		return SwapResult{}, err
	}

	routes := []collector.Route{{
		From:    tokenIn,
		To:      common.HexToAddress(config.TokenAddresses[p.TokenOut]),
		Stable:  p.Stable,
		Factory: e.factory,
	}}
	deadline := big.NewInt(time.Now().Add(swapDeadline).Unix())
	data, err := collector.RouterABI.Pack("swapExactTokensForTokens",
		amountIn, minOut, routes, e.wallet, deadline)
	if err != nil {
		return SwapResult{}, err
	}

	tx, err := e.sendTx(ctx, e.router, data)
	if err != nil {
		return SwapResult{}, fmt.Errorf("swap transaction failed: %w", err)
	}

	e.log.Infow("swap submitted",
		"tx", tx.Hash().Hex(),
		"token_in", p.TokenIn, "token_out", p.TokenOut,
		"amount_in", p.AmountIn, "min_out", p.MinOut)
	return SwapResult{TxHash: tx.Hash().Hex()}, nil
}

func (e *Executor) ensureAllowance(ctx context.Context, token common.Address, amount *big.Int) error {
	data, err := collector.ERC20ABI.Pack("allowance", e.wallet, e.router)
	if err != nil {
		return err
	}
	raw, err := e.eth.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return fmt.Errorf("allowance check failed: %w", err)
	}
	out, err := collector.ERC20ABI.Unpack("allowance", raw)
	if err != nil {
		return err
	}
	if out[0].(*big.Int).Cmp(amount) >= 0 {
		return nil
	}

	approveData, err := collector.ERC20ABI.Pack("approve", e.router, amount)
	if err != nil {
		return err
	}
	tx, err := e.sendTx(ctx, token, approveData)
	if err != nil {
		return fmt.Errorf("approve transaction failed: %w", err)
	}
	e.log.Infow("approval submitted", "tx", tx.Hash().Hex())

	// The swap reverts if it lands before the approval; wait it out.
	receipt, err := waitMined(ctx, e.eth, tx.Hash())
	if err != nil {
		return fmt.Errorf("approve not mined: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("approve reverted: %s", tx.Hash().Hex())
	}
	return nil
}

func (e *Executor) sendTx(ctx context.Context, to common.Address, data []byte) (*types.Transaction, error) {
	nonce, err := e.eth.PendingNonceAt(ctx, e.wallet)
	if err != nil {
		return nil, err
	}
	tip, err := e.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, err
	}
	head, err := e.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	gas, err := e.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: e.wallet, To: &to, Data: data,
	})
	if err != nil {
		return nil, err
	}

	tx, err := types.SignNewTx(e.key, types.LatestSignerForChainID(e.chainID), &types.DynamicFeeTx{
		ChainID:   e.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas + gas/5,
		To:        &to,
		Data:      data,
	})
	if err != nil {
		return nil, err
	}
	if err := e.eth.SendTransaction(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func waitMined(ctx context.Context, eth *ethclient.Client, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
