package collector

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Route is one hop of an Aerodrome swap path.
type Route struct {
	From    common.Address `abi:"from"`
	To      common.Address `abi:"to"`
	Stable  bool           `abi:"stable"`
	Factory common.Address `abi:"factory"`
}

const erc20ABIJSON = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

const routerABIJSON = `[
	{"name":"getAmountsOut","type":"function","stateMutability":"view",
	 "inputs":[{"name":"amountIn","type":"uint256"},
	           {"name":"routes","type":"tuple[]","components":[
	             {"name":"from","type":"address"},{"name":"to","type":"address"},
	             {"name":"stable","type":"bool"},{"name":"factory","type":"address"}]}],
	 "outputs":[{"name":"amounts","type":"uint256[]"}]},
	{"name":"swapExactTokensForTokens","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},
	           {"name":"routes","type":"tuple[]","components":[
	             {"name":"from","type":"address"},{"name":"to","type":"address"},
	             {"name":"stable","type":"bool"},{"name":"factory","type":"address"}]},
	           {"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],
	 "outputs":[{"name":"amounts","type":"uint256[]"}]}
]`

const factoryABIJSON = `[
	{"name":"getPool","type":"function","stateMutability":"view",
	 "inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"},{"name":"stable","type":"bool"}],
	 "outputs":[{"name":"","type":"address"}]}
]`

const poolABIJSON = `[
	{"name":"getReserves","type":"function","stateMutability":"view","inputs":[],
	 "outputs":[{"name":"_reserve0","type":"uint256"},{"name":"_reserve1","type":"uint256"},{"name":"_blockTimestampLast","type":"uint256"}]},
	{"name":"token0","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"name":"token1","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

var (
	ERC20ABI   = mustParseABI(erc20ABIJSON)
	RouterABI  = mustParseABI(routerABIJSON)
	FactoryABI = mustParseABI(factoryABIJSON)
	PoolABI    = mustParseABI(poolABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
