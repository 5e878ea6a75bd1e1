package collector

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/config"
	"github.com/mzkrasner/base-aerodrome-agent-sub000/entity"
)

// ChainClient reads wallet balances, Aerodrome pool state and router
// quotes from a Base RPC endpoint.
type ChainClient struct {
	eth     *ethclient.Client
	wallet  common.Address
	router  common.Address
	factory common.Address
}

func NewChainClient(rpcURL string, wallet common.Address) (*ChainClient, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC: %w", err)
	}
	return &ChainClient{
		eth:     eth,
		wallet:  wallet,
		router:  common.HexToAddress(config.AddrRouter),
		factory: common.HexToAddress(config.AddrFactory),
	}, nil
}

// Eth exposes the underlying client for transaction senders.
func (c *ChainClient) Eth() *ethclient.Client { return c.eth }

// Balances reads ERC-20 balances for every configured token in parallel.
func (c *ChainClient) Balances(ctx context.Context) ([]entity.Balance, error) {
	var (
		mu       sync.Mutex
		balances []entity.Balance
	)
	g, gctx := errgroup.WithContext(ctx)

	for symbol, addr := range config.TokenAddresses {
		g.Go(func() error {
			amount, err := c.tokenBalance(gctx, common.HexToAddress(addr), symbol)
			if err != nil {
				return fmt.Errorf("failed to read %s balance: %w", symbol, err)
			}
			mu.Lock()
			balances = append(balances, entity.Balance{Token: symbol, Amount: amount})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(balances, func(i, j int) bool { return balances[i].Token < balances[j].Token })
	return balances, nil
}

func (c *ChainClient) tokenBalance(ctx context.Context, token common.Address, symbol string) (float64, error) {
	data, err := ERC20ABI.Pack("balanceOf", c.wallet)
	if err != nil {
		return 0, err
	}
	raw, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return 0, err
	}
	out, err := ERC20ABI.Unpack("balanceOf", raw)
	if err != nil {
		return 0, err
	}
	return FromWei(out[0].(*big.Int), symbol), nil
}

// PoolMetrics reads the reserve state of the pool for tokenA/tokenB.
func (c *ChainClient) PoolMetrics(ctx context.Context, tokenA, tokenB string, stable bool) (entity.PoolMetrics, error) {
	addrA := common.HexToAddress(config.TokenAddresses[tokenA])
	addrB := common.HexToAddress(config.TokenAddresses[tokenB])

	data, err := FactoryABI.Pack("getPool", addrA, addrB, stable)
	if err != nil {
		return entity.PoolMetrics{}, err
	}
	raw, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.factory, Data: data}, nil)
	if err != nil {
		return entity.PoolMetrics{}, fmt.Errorf("failed to resolve pool for %s/%s: %w", tokenA, tokenB, err)
	}
	out, err := FactoryABI.Unpack("getPool", raw)
	if err != nil {
		return entity.PoolMetrics{}, err
	}
	pool := out[0].(common.Address)
	if pool == (common.Address{}) {
		return entity.PoolMetrics{}, fmt.Errorf("no %s/%s pool (stable=%t)", tokenA, tokenB, stable)
	}

	data, err = PoolABI.Pack("getReserves")
	if err != nil {
		return entity.PoolMetrics{}, err
	}
	raw, err = c.eth.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: data}, nil)
	if err != nil {
		return entity.PoolMetrics{}, fmt.Errorf("failed to read reserves of %s: %w", pool.Hex(), err)
	}
	reserves, err := PoolABI.Unpack("getReserves", raw)
	if err != nil {
		return entity.PoolMetrics{}, err
	}

	// token0 sorts below token1 by address, matching pool ordering.
	token0, token1 := tokenA, tokenB
	if addrB.Cmp(addrA) < 0 {
		token0, token1 = tokenB, tokenA
	}

	return entity.PoolMetrics{
		Pool:     pool.Hex(),
		Token0:   token0,
		Token1:   token1,
		Reserve0: FromWei(reserves[0].(*big.Int), token0),
		Reserve1: FromWei(reserves[1].(*big.Int), token1),
		Stable:   stable,
	}, nil
}

// Quote samples the router's amounts-out for a concrete input size.
func (c *ChainClient) Quote(ctx context.Context, tokenIn, tokenOut string, amountIn float64) (entity.Quote, error) {
	routes := []Route{{
		From:    common.HexToAddress(config.TokenAddresses[tokenIn]),
		To:      common.HexToAddress(config.TokenAddresses[tokenOut]),
		Stable:  false,
		Factory: c.factory,
	}}

	data, err := RouterABI.Pack("getAmountsOut", ToWei(amountIn, tokenIn), routes)
	if err != nil {
		return entity.Quote{}, err
	}
	raw, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.router, Data: data}, nil)
	if err != nil {
		return entity.Quote{}, fmt.Errorf("failed to quote %s->%s: %w", tokenIn, tokenOut, err)
	}
	out, err := RouterABI.Unpack("getAmountsOut", raw)
	if err != nil {
		return entity.Quote{}, err
	}
	amounts := out[0].([]*big.Int)
	if len(amounts) < 2 {
		return entity.Quote{}, fmt.Errorf("router returned %d amounts for %s->%s", len(amounts), tokenIn, tokenOut)
	}

	return entity.Quote{
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		AmountIn:  amountIn,
		AmountOut: FromWei(amounts[len(amounts)-1], tokenOut),
	}, nil
}

// ToWei converts a human token amount to base units using the token's
// configured decimals.
func ToWei(amount float64, symbol string) *big.Int {
	return decimal.NewFromFloat(amount).Shift(config.TokenDecimals[symbol]).BigInt()
}

// FromWei converts base units back to a human amount.
func FromWei(amount *big.Int, symbol string) float64 {
	f, _ := decimal.NewFromBigInt(amount, -config.TokenDecimals[symbol]).Float64()
	return f
}
