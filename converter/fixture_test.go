// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package converter

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/log/level"
	"github.com/luxfi/treasury/amm"
	"github.com/luxfi/treasury/basket"
	"github.com/luxfi/treasury/keeper"
	"github.com/luxfi/treasury/registry"
	"github.com/luxfi/treasury/state"
	"github.com/luxfi/treasury/token"
	"github.com/stretchr/testify/require"
)

var (
	converterAddr = ContractAddress
	uniswapAddr   = common.HexToAddress(registry.TreasuryVenue)
	sushiAddr     = common.HexToAddress(registry.TreasuryVenueAlt)
	poolsAddr     = common.HexToAddress(registry.TreasuryBasket)
	keeperAddr    = common.HexToAddress(registry.KeeperRegistry)
	weth          = common.HexToAddress(registry.WrappedNative)

	cvp   = common.HexToAddress("0x38e4adb44ef08f22f5b5b76a8f0c2d0dcbe7dca1")
	dai   = common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f")
	uni   = common.HexToAddress("0x1f9840a85d5af5bf1d1762f925bdaddc4201f984")
	usdc  = common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	sushi = common.HexToAddress("0x6b3595068778dd592e39a122f4f5a5cf09c90fe2")
	comp  = common.HexToAddress("0xc00e94cb662c3520282e6f5717214004a7f26888")
	aave  = common.HexToAddress("0x7fc66500c84a76ad7e9c93437bfc5ac33e2ddae9")
	snx   = common.HexToAddress("0xc011a73ee8576fb46f5e1c5751ca3b9fe0af2a6f")

	xcvp       = common.HexToAddress("0x0000000000000000000000000000000000000c9f")
	owner      = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	deployer   = common.HexToAddress("0xde00000000000000000000000000000000000001")
	provider   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	controller = common.HexToAddress("0xc0000000000000000000000000000000000000c1")
	feeSink    = common.HexToAddress("0xfee0000000000000000000000000000000000001")
	alice      = common.HexToAddress("0xa11ce00000000000000000000000000000000001")
	reporter   = common.HexToAddress("0x4e90000000000000000000000000000000000001")
	slasher    = common.HexToAddress("0x5a50000000000000000000000000000000000002")

	strategy1Pool = common.HexToAddress("0xb9a7000000000000000000000000000000000001")
	strategy2Pool = common.HexToAddress("0xb9a7000000000000000000000000000000000002")
)

func ether(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1e18))
}

func dec(s string) *uint256.Int {
	return uint256.MustFromDecimal(s)
}

type fixture struct {
	t       *testing.T
	env     *state.Env
	db      *state.StateDB
	ledger  token.Ledger
	uniswap *amm.Router
	sushi   *amm.Router
	pools   *basket.Pools
	keepers *keeper.Registry
	conv    *Converter
}

// newFixture mirrors a mainnet-like setup: DAI-WETH and CVP-WETH pairs on
// the canonical venue, a 2000 CVP target and a permissionless converter.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := state.New(memdb.New())
	f := &fixture{
		t:       t,
		env:     state.NewEnv(db, 1, 1_700_000_000),
		db:      db,
		uniswap: amm.NewRouter(uniswapAddr, nil),
		sushi:   amm.NewRouter(sushiAddr, nil),
		pools:   basket.NewPools(poolsAddr, nil),
		keepers: keeper.NewRegistry(keeperAddr, cvp, nil),
	}
	f.conv = f.newConverter(f.uniswap, f.sushi)
	require.NoError(t, f.conv.Initialize(db, owner, ether(2000)))
	require.NoError(t, f.conv.SetPermissionless(db, owner, true))

	f.seedPair(f.uniswap, dai, weth, ether(2_000_000_000), ether(1_000_000))
	f.seedPair(f.uniswap, cvp, weth, ether(600_000_000), ether(1_000_000))
	return f
}

func (f *fixture) newConverter(venues ...Venue) *Converter {
	f.t.Helper()
	c, err := New(
		Params{
			Address:        converterAddr,
			TargetToken:    cvp,
			BaseToken:      weth,
			Beneficiary:    xcvp,
			CanonicalVenue: uniswapAddr,
		},
		Dependencies{
			Tokens:       f.ledger,
			Wrapped:      token.NewWrapped(weth),
			Venues:       venues,
			Baskets:      f.pools,
			Roles:        f.keepers,
			Compensation: f.keepers,
		},
		log.NewTestLogger(level.Info),
	)
	require.NoError(f.t, err)
	return c
}

func (f *fixture) seedPair(r *amm.Router, a, b common.Address, amountA, amountB *uint256.Int) {
	f.t.Helper()
	require.NoError(f.t, f.ledger.Mint(f.db, a, provider, amountA))
	require.NoError(f.t, f.ledger.Mint(f.db, b, provider, amountB))
	require.NoError(f.t, f.ledger.Approve(f.db, a, provider, r.Address(), amountA))
	require.NoError(f.t, f.ledger.Approve(f.db, b, provider, r.Address(), amountB))
	require.NoError(f.t, r.AddLiquidity(f.db, provider, a, b, amountA, amountB))
}

// give mints [amount] of [tok] straight to [to].
func (f *fixture) give(tok, to common.Address, amount *uint256.Int) {
	f.t.Helper()
	require.NoError(f.t, f.ledger.Mint(f.db, tok, to, amount))
}

func (f *fixture) balance(tok, holder common.Address) *uint256.Int {
	return f.ledger.BalanceOf(f.db, tok, holder)
}

type member struct {
	tok     common.Address
	balance uint64
	weight  uint64
}

// buildPool creates a finalized basket with a 1% swap fee and a 7%
// community exit fee. The controller holds all 100 initial shares.
func (f *fixture) buildPool(pool common.Address, members ...member) {
	f.t.Helper()
	require.NoError(f.t, f.pools.Create(f.db, pool, basket.Params{
		Controller:           controller,
		SwapFee:              uint256.NewInt(1e16),
		CommunityExitFee:     uint256.NewInt(7e16),
		CommunityFeeReceiver: feeSink,
	}))
	for _, m := range members {
		f.give(m.tok, controller, ether(m.balance))
		require.NoError(f.t, f.ledger.Approve(f.db, m.tok, controller, pool, ether(m.balance)))
		require.NoError(f.t, f.pools.Bind(f.db, pool, controller, m.tok, ether(m.balance), ether(m.weight)))
	}
	require.NoError(f.t, f.pools.Finalize(f.db, pool, controller))
}

// shares moves basket shares from the controller to the converter.
func (f *fixture) shares(pool common.Address, amount *uint256.Int) {
	f.t.Helper()
	require.NoError(f.t, f.ledger.Transfer(f.db, pool, controller, converterAddr, amount))
}

func (f *fixture) strategy1() {
	f.t.Helper()
	f.buildPool(strategy1Pool,
		member{uni, 25_000_000, 25},
		member{comp, 15_000_000, 15},
		member{cvp, 10_000_000, 10},
	)
	require.NoError(f.t, f.conv.SetBasketStrategy(f.db, owner, strategy1Pool, uint256.NewInt(1)))
}

func (f *fixture) strategy2() {
	f.t.Helper()
	f.seedPair(f.uniswap, aave, weth, ether(5_000_000), ether(1_000_000))
	f.seedPair(f.sushi, sushi, weth, ether(150_000_000), ether(1_000_000))
	f.seedPair(f.uniswap, snx, weth, ether(100_000_000), ether(1_000_000))
	require.NoError(f.t, f.conv.SetRouteOverride(f.db, owner, sushi, sushiAddr, []common.Address{sushi, weth}))

	f.buildPool(strategy2Pool,
		member{aave, 12_500, 25},
		member{sushi, 200_000, 15},
		member{snx, 100_000, 10},
	)
	require.NoError(f.t, f.conv.SetBasketStrategy(f.db, owner, strategy2Pool, uint256.NewInt(2)))
}
