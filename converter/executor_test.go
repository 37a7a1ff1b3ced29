// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package converter

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/luxfi/treasury/amm"
	"github.com/luxfi/treasury/basket"
	"github.com/luxfi/treasury/contract"
	"github.com/luxfi/treasury/registry"
	"github.com/luxfi/treasury/token"
	"github.com/stretchr/testify/require"
)

func TestSwapDirect(t *testing.T) {
	f := newFixture(t)
	f.give(cvp, xcvp, ether(725))
	f.give(cvp, converterAddr, ether(5000))

	rec, err := f.conv.Swap(f.db, deployer, cvp)
	require.NoError(t, err)
	require.Equal(t, SwapRecord{
		Kind:          KindDirect,
		Caller:        deployer,
		Token:         cvp,
		AmountIn:      ether(2000),
		AmountOut:     ether(2000),
		BalanceBefore: ether(725),
		BalanceAfter:  ether(2725),
	}, rec)
	require.Equal(t, ether(3000), f.balance(cvp, converterAddr))
	require.Equal(t, ether(2725), f.balance(cvp, xcvp))
}

func TestSwapEmitsEvent(t *testing.T) {
	f := newFixture(t)
	f.give(cvp, xcvp, ether(725))
	f.give(cvp, converterAddr, ether(5000))

	_, err := f.conv.Swap(f.db, deployer, cvp)
	require.NoError(t, err)

	logs := f.db.Logs()
	require.Len(t, logs, 1)
	event := converterABI.Events["Swap"]
	require.Equal(t, converterAddr, logs[0].Address)
	require.Equal(t, []common.Hash{
		event.ID,
		common.BigToHash(big.NewInt(1)),
		common.BytesToHash(deployer.Bytes()),
		common.BytesToHash(cvp.Bytes()),
	}, logs[0].Topics)

	values, err := event.Inputs.NonIndexed().Unpack(logs[0].Data)
	require.NoError(t, err)
	require.Len(t, values, 4)
	require.Equal(t, ether(2000), uint256.MustFromBig(values[0].(*big.Int)))
	require.Equal(t, ether(2000), uint256.MustFromBig(values[1].(*big.Int)))
	require.Equal(t, ether(725), uint256.MustFromBig(values[2].(*big.Int)))
	require.Equal(t, ether(2725), uint256.MustFromBig(values[3].(*big.Int)))
}

func TestSwapStrategies(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		tok   common.Address
		kind  Kind
		in    string
		check func(t *testing.T, f *fixture)
	}{
		{
			name:  "route through base",
			setup: func(f *fixture) { f.give(dai, converterAddr, ether(8000)) },
			tok:   dai,
			kind:  KindRoute,
			in:    "6706892169261616443894",
			check: func(t *testing.T, f *fixture) {
				require.Equal(t, "1293107830738383556106", f.balance(dai, converterAddr).Dec())
			},
		},
		{
			name:  "base",
			setup: func(f *fixture) { f.give(weth, converterAddr, ether(4)) },
			tok:   weth,
			kind:  KindBaseAsset,
			in:    "3343374568186039725",
			check: func(t *testing.T, f *fixture) {
				require.Equal(t, "656625431813960275", f.balance(weth, converterAddr).Dec())
			},
		},
		{
			name: "native is wrapped first",
			setup: func(f *fixture) {
				f.db.AddBalance(converterAddr, ether(4), tracing.BalanceChangeTransfer)
			},
			tok:  registry.NativeMarker,
			kind: KindBaseAsset,
			in:   "3343374568186039725",
			check: func(t *testing.T, f *fixture) {
				require.True(t, f.db.GetBalance(converterAddr).IsZero())
				require.Equal(t, ether(4), f.db.GetBalance(weth))
				require.Equal(t, "656625431813960275", f.balance(weth, converterAddr).Dec())
			},
		},
		{
			name: "custom path on the canonical venue",
			setup: func(f *fixture) {
				f.seedPair(f.uniswap, uni, usdc, ether(4_000_000), ether(100_000_000))
				f.seedPair(f.uniswap, usdc, dai, ether(2_000_000_000), ether(2_000_000_000))
				path := []common.Address{uni, usdc, dai, weth, cvp}
				require.NoError(f.t, f.conv.SetRouteOverride(f.db, owner, uni, uniswapAddr, path))
				f.give(uni, converterAddr, ether(500))
			},
			tok:  uni,
			kind: KindRoute,
			in:   "269911675708212223606",
			check: func(t *testing.T, f *fixture) {
				require.Equal(t, "230088324291787776394", f.balance(uni, converterAddr).Dec())
			},
		},
		{
			name: "secondary venue then base",
			setup: func(f *fixture) {
				f.seedPair(f.sushi, sushi, weth, ether(150_000_000), ether(1_000_000))
				require.NoError(f.t, f.conv.SetRouteOverride(f.db, owner, sushi, sushiAddr, []common.Address{sushi, weth}))
				f.give(sushi, converterAddr, ether(600))
			},
			tok:  sushi,
			kind: KindRoute,
			in:   "503016912694621233293",
			check: func(t *testing.T, f *fixture) {
				require.Equal(t, "96983087305378766707", f.balance(sushi, converterAddr).Dec())
				require.True(t, f.balance(weth, converterAddr).IsZero())
			},
		},
		{
			name: "basket direct exit",
			setup: func(f *fixture) {
				f.strategy1()
				f.shares(strategy1Pool, ether(5))
			},
			tok:  strategy1Pool,
			kind: KindRoute,
			in:   "4336137385130500",
			check: func(t *testing.T, f *fixture) {
				require.Equal(t, "4995663862614869500", f.balance(strategy1Pool, converterAddr).Dec())
				require.True(t, f.balance(cvp, converterAddr).IsZero())
				require.Equal(t, "150537634408602150538", f.balance(cvp, feeSink).Dec())
			},
		},
		{
			name: "basket rotating exit",
			setup: func(f *fixture) {
				f.strategy2()
				_, err := f.conv.SyncRotation(f.db, strategy2Pool)
				require.NoError(f.t, err)
				f.shares(strategy2Pool, ether(10))
			},
			tok:  strategy2Pool,
			kind: KindRoute,
			in:   "72505803145458800",
			check: func(t *testing.T, f *fixture) {
				require.Equal(t, "9927494196854541200", f.balance(strategy2Pool, converterAddr).Dec())
				require.Equal(t, uint64(1), f.conv.Rotation(f.db, strategy2Pool).NextIndex)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.give(cvp, xcvp, ether(725))
			tt.setup(f)

			rec, err := f.conv.Swap(f.db, deployer, tt.tok)
			require.NoError(t, err)
			require.Equal(t, tt.kind, rec.Kind)
			require.Equal(t, tt.tok, rec.Token)
			require.Equal(t, tt.in, rec.AmountIn.Dec())
			require.Equal(t, ether(2000), rec.AmountOut)
			require.Equal(t, ether(725), rec.BalanceBefore)
			require.Equal(t, ether(2725), rec.BalanceAfter)
			require.Equal(t, ether(2725), f.balance(cvp, xcvp))
			tt.check(t, f)
		})
	}
}

func TestSwapInsufficientBalance(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(f *fixture)
		tok    common.Address
		cause  error
		reason string
	}{
		{
			name:   "target below amount",
			setup:  func(f *fixture) { f.give(cvp, converterAddr, dec("1999999000000000000000")) },
			tok:    cvp,
			cause:  token.ErrTransferExceedsBalance,
			reason: "ERC20: transfer amount exceeds balance",
		},
		{
			name:   "target empty",
			setup:  func(*fixture) {},
			tok:    cvp,
			cause:  token.ErrTransferExceedsBalance,
			reason: "ERC20: transfer amount exceeds balance",
		},
		{
			name:   "route one unit short",
			setup:  func(f *fixture) { f.give(dai, converterAddr, dec("6706892169261616443893")) },
			tok:    dai,
			cause:  amm.ErrTransferFromFailed,
			reason: "TransferHelper: TRANSFER_FROM_FAILED",
		},
		{
			name:   "route empty",
			setup:  func(*fixture) {},
			tok:    dai,
			cause:  amm.ErrTransferFromFailed,
			reason: "TransferHelper: TRANSFER_FROM_FAILED",
		},
		{
			name:   "base short",
			setup:  func(f *fixture) { f.give(weth, converterAddr, dec("3300000000000000000")) },
			tok:    weth,
			cause:  amm.ErrTransferFromFailed,
			reason: "TransferHelper: TRANSFER_FROM_FAILED",
		},
		{
			name: "native short",
			setup: func(f *fixture) {
				f.db.AddBalance(converterAddr, dec("3300000000000000000"), tracing.BalanceChangeTransfer)
			},
			tok:    registry.NativeMarker,
			cause:  amm.ErrTransferFromFailed,
			reason: "TransferHelper: TRANSFER_FROM_FAILED",
		},
		{
			name:   "native empty",
			setup:  func(*fixture) {},
			tok:    registry.NativeMarker,
			cause:  ErrNativeBalanceZero,
			reason: "ETH_BALANCE_IS_0",
		},
		{
			name:   "native empty with wrapped balance",
			setup:  func(f *fixture) { f.give(weth, converterAddr, ether(4)) },
			tok:    registry.NativeMarker,
			cause:  ErrNativeBalanceZero,
			reason: "ETH_BALANCE_IS_0",
		},
		{
			name: "direct exit short",
			setup: func(f *fixture) {
				f.strategy1()
				f.shares(strategy1Pool, uint256.NewInt(403e13))
			},
			tok:    strategy1Pool,
			cause:  basket.ErrInsufficientBal,
			reason: "ERR_INSUFFICIENT_BAL",
		},
		{
			name: "direct exit one share unit short",
			setup: func(f *fixture) {
				f.strategy1()
				f.shares(strategy1Pool, uint256.NewInt(4336137385130499))
			},
			tok:    strategy1Pool,
			cause:  basket.ErrInsufficientBal,
			reason: "ERR_INSUFFICIENT_BAL",
		},
		{
			name: "rotating exit short",
			setup: func(f *fixture) {
				f.strategy2()
				_, err := f.conv.SyncRotation(f.db, strategy2Pool)
				require.NoError(f.t, err)
				f.shares(strategy2Pool, dec("72000000000000000"))
			},
			tok:    strategy2Pool,
			cause:  basket.ErrInsufficientBal,
			reason: "ERR_INSUFFICIENT_BAL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			_, err := f.conv.Swap(f.db, deployer, tt.tok)
			require.ErrorIs(t, err, ErrInsufficientBalance)
			require.ErrorIs(t, err, tt.cause)
			require.Equal(t, tt.reason, ReasonOf(err))
			require.True(t, f.balance(cvp, xcvp).IsZero())
			require.Empty(t, f.db.Logs())
		})
	}
}

func TestSwapExactBalance(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		tok   common.Address
	}{
		{"target", func(f *fixture) { f.give(cvp, converterAddr, ether(2000)) }, cvp},
		{"route", func(f *fixture) { f.give(dai, converterAddr, dec("6706892169261616443894")) }, dai},
		{"base", func(f *fixture) { f.give(weth, converterAddr, dec("3343374568186039725")) }, weth},
		{"native", func(f *fixture) {
			f.db.AddBalance(converterAddr, dec("3343374568186039725"), tracing.BalanceChangeTransfer)
		}, registry.NativeMarker},
		{"direct exit", func(f *fixture) {
			f.strategy1()
			f.shares(strategy1Pool, uint256.NewInt(4336137385130500))
		}, strategy1Pool},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			_, err := f.conv.Swap(f.db, deployer, tt.tok)
			require.NoError(t, err)
			require.Equal(t, ether(2000), f.balance(cvp, xcvp))
			require.True(t, f.conv.sourceBalance(f.db, tt.tok).IsZero())
		})
	}
}

func TestSwapRequiresPermissionless(t *testing.T) {
	f := newFixture(t)
	f.give(cvp, converterAddr, ether(5000))
	require.NoError(t, f.conv.SetPermissionless(f.db, owner, false))

	_, err := f.conv.Swap(f.db, deployer, cvp)
	require.ErrorIs(t, err, ErrPermissionlessDisabled)
	require.Equal(t, "PERMISSIONLESS_DISABLED", ReasonOf(err))

	// the core stays reachable for authorized entry points
	_, err = f.conv.ExecuteConversion(f.db, deployer, cvp)
	require.NoError(t, err)
}

func TestSwapNotInitialized(t *testing.T) {
	f := newFixture(t)
	fresh := f.newConverter(f.uniswap)
	fresh.Address = common.HexToAddress("0x0000000000000000000000000000000000009099")

	_, err := fresh.ExecuteConversion(f.db, deployer, cvp)
	require.ErrorIs(t, err, ErrNotConfigured)
}

// haltingVenue quotes like its router but refuses to swap.
type haltingVenue struct {
	*amm.Router
}

var errVenueHalted = errors.New("venue halted")

func (haltingVenue) SwapTokensForExactTokens(
	contract.StateDB,
	common.Address,
	*uint256.Int,
	*uint256.Int,
	[]common.Address,
	common.Address,
) ([]*uint256.Int, error) {
	return nil, errVenueHalted
}

func TestSwapRevertsAtomically(t *testing.T) {
	f := newFixture(t)
	f.conv = f.newConverter(haltingVenue{f.uniswap}, f.sushi)
	f.seedPair(f.sushi, sushi, weth, ether(150_000_000), ether(1_000_000))
	require.NoError(t, f.conv.SetRouteOverride(f.db, owner, sushi, sushiAddr, []common.Address{sushi, weth}))
	f.give(sushi, converterAddr, ether(600))

	reserveSushi, reserveWeth, err := f.sushi.GetReserves(f.db, sushi, weth)
	require.NoError(t, err)

	// the secondary swap succeeds, the canonical leg fails
	_, err = f.conv.Swap(f.db, deployer, sushi)
	require.ErrorIs(t, err, ErrTransferFailed)
	require.ErrorIs(t, err, errVenueHalted)
	require.Equal(t, "venue halted", ReasonOf(err))

	require.Equal(t, ether(600), f.balance(sushi, converterAddr))
	require.True(t, f.balance(weth, converterAddr).IsZero())
	require.True(t, f.ledger.Allowance(f.db, sushi, converterAddr, sushiAddr).IsZero())
	afterSushi, afterWeth, err := f.sushi.GetReserves(f.db, sushi, weth)
	require.NoError(t, err)
	require.Equal(t, reserveSushi, afterSushi)
	require.Equal(t, reserveWeth, afterWeth)
	require.Empty(t, f.db.Logs())
}

func TestSwapRouteSpendsOnlyConvertedToken(t *testing.T) {
	f := newFixture(t)
	f.seedPair(f.uniswap, uni, weth, ether(5_000_000), ether(1_000_000))
	// accepted at write time: only the endpoint is checked
	require.NoError(t, f.conv.SetRouteOverride(f.db, owner, dai, uniswapAddr, []common.Address{uni, weth, cvp}))
	f.give(dai, converterAddr, ether(100_000))
	f.give(uni, converterAddr, ether(100_000))
	require.NoError(t, f.ledger.Approve(f.db, uni, converterAddr, uniswapAddr, ether(100_000)))

	_, err := f.conv.Swap(f.db, deployer, dai)
	require.ErrorIs(t, err, ErrTransferFailed)
	require.ErrorIs(t, err, amm.ErrTransferFromFailed)
	require.Equal(t, "TransferHelper: TRANSFER_FROM_FAILED", ReasonOf(err))

	require.Equal(t, ether(100_000), f.balance(dai, converterAddr))
	require.Equal(t, ether(100_000), f.balance(uni, converterAddr))
	require.True(t, f.balance(cvp, xcvp).IsZero())
	require.Empty(t, f.db.Logs())
}
