// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package basket

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/treasury/state"
	"github.com/luxfi/treasury/token"
	"github.com/stretchr/testify/require"
)

var (
	poolsAddr  = common.HexToAddress("0x0000000000000000000000000000000000009092")
	pool       = common.HexToAddress("0xb9a7000000000000000000000000000000000001")
	controller = common.HexToAddress("0xc0000000000000000000000000000000000000c1")
	receiver   = common.HexToAddress("0xfee0000000000000000000000000000000000001")
	stranger   = common.HexToAddress("0x5000000000000000000000000000000000000005")

	uni  = common.HexToAddress("0x1f9840a85d5af5bf1d1762f925bdaddc4201f984")
	comp = common.HexToAddress("0xc00e94cb662c3520282e6f5717214004a7f26888")
	cvp  = common.HexToAddress("0x38e4adb44ef08f22f5b5b76a8f0c2d0dcbe7dca1")
)

func newPoolFixture(t *testing.T) (*state.StateDB, *Pools) {
	t.Helper()
	db := state.New(memdb.New())
	p := NewPools(poolsAddr, nil)
	var l token.Ledger

	require.NoError(t, p.Create(db, pool, Params{
		Controller:           controller,
		SwapFee:              uint256.NewInt(1e16),
		CommunityExitFee:     uint256.NewInt(7e16),
		CommunityFeeReceiver: receiver,
	}))
	members := []struct {
		tok     common.Address
		balance uint64
		weight  uint64
	}{
		{uni, 25_000_000, 25},
		{comp, 15_000_000, 15},
		{cvp, 10_000_000, 10},
	}
	for _, m := range members {
		require.NoError(t, l.Mint(db, m.tok, controller, ether(m.balance)))
		require.NoError(t, l.Approve(db, m.tok, controller, pool, ether(m.balance)))
		require.NoError(t, p.Bind(db, pool, controller, m.tok, ether(m.balance), ether(m.weight)))
	}
	require.NoError(t, p.Finalize(db, pool, controller))
	return db, p
}

func TestPoolSetup(t *testing.T) {
	db, p := newPoolFixture(t)

	tokens, err := p.CurrentTokens(db, pool)
	require.NoError(t, err)
	require.Equal(t, []common.Address{uni, comp, cvp}, tokens)
	require.Equal(t, ether(50), p.TotalDenormalizedWeight(db, pool))
	require.Equal(t, ether(100), p.TotalSupply(db, pool))
	require.True(t, p.IsBound(db, pool, cvp))
	require.Equal(t, uint256.NewInt(7e16), p.CommunityExitFee(db, pool))

	require.ErrorIs(t, p.Create(db, pool, Params{CommunityExitFee: new(uint256.Int)}), ErrPoolExists)
	require.ErrorIs(t, p.Finalize(db, pool, controller), ErrIsFinalized)
	require.ErrorIs(t, p.Bind(db, pool, stranger, cvp, ether(1), ether(1)), ErrNotController)
	require.ErrorIs(t, p.Bind(db, pool, controller, cvp, ether(1), ether(1)), ErrIsBound)

	_, err = p.CurrentTokens(db, stranger)
	require.ErrorIs(t, err, ErrPoolNotFound)
}

func TestUnbindMovesLastMember(t *testing.T) {
	db, p := newPoolFixture(t)
	var l token.Ledger

	require.NoError(t, p.Unbind(db, pool, controller, uni))
	tokens, err := p.CurrentTokens(db, pool)
	require.NoError(t, err)
	require.Equal(t, []common.Address{cvp, comp}, tokens)
	require.False(t, p.IsBound(db, pool, uni))
	require.Equal(t, ether(25), p.TotalDenormalizedWeight(db, pool))
	require.Equal(t, ether(25_000_000), l.BalanceOf(db, uni, controller))
	require.ErrorIs(t, p.Unbind(db, pool, controller, uni), ErrNotBound)
}

func TestExitswapExternAmountOut(t *testing.T) {
	db, p := newPoolFixture(t)
	var l token.Ledger
	gross := uint256.MustFromDecimal("2150537634408602150538")

	poolIn, err := p.PoolInGivenSingleOut(db, pool, cvp, gross)
	require.NoError(t, err)
	require.Equal(t, "4336137385130500", poolIn.Dec())

	_, err = p.ExitswapExternAmountOut(db, pool, controller, cvp, gross, new(uint256.Int).SubUint64(poolIn, 1))
	require.ErrorIs(t, err, ErrLimitIn)

	got, err := p.ExitswapExternAmountOut(db, pool, controller, cvp, gross, ether(1))
	require.NoError(t, err)
	require.Equal(t, poolIn, got)

	require.Equal(t, ether(2000), l.BalanceOf(db, cvp, controller))
	require.Equal(t, "150537634408602150538", l.BalanceOf(db, cvp, receiver).Dec())
	require.Equal(t, "99995663862614869500", p.TotalSupply(db, pool).Dec())
	require.Equal(t, new(uint256.Int).Sub(ether(10_000_000), gross), p.Balance(db, pool, cvp))
}

func TestExitswapErrors(t *testing.T) {
	db, p := newPoolFixture(t)
	other := common.HexToAddress("0xdead00000000000000000000000000000000beef")

	tests := []struct {
		name    string
		caller  common.Address
		tok     common.Address
		amount  *uint256.Int
		wantErr error
	}{
		{"unbound token", controller, other, ether(1), ErrNotBound},
		{"above a third of the balance", controller, cvp, ether(3_400_000), ErrMaxOutRatio},
		{"caller without shares", stranger, cvp, ether(1), ErrInsufficientBal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ExitswapExternAmountOut(db, pool, tt.caller, tt.tok, tt.amount, ether(100))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestExitswapPoolAmountIn(t *testing.T) {
	db, p := newPoolFixture(t)
	var l token.Ledger
	shares := uint256.NewInt(403e13)

	_, err := p.ExitswapPoolAmountIn(db, pool, controller, cvp, shares, ether(2000))
	require.ErrorIs(t, err, ErrLimitOut)

	out, err := p.ExitswapPoolAmountIn(db, pool, controller, cvp, shares, ether(1998))
	require.NoError(t, err)
	require.Equal(t, "1998718896764590400000", out.Dec())

	net, _, err := ExitFeeSplit(out, uint256.NewInt(7e16))
	require.NoError(t, err)
	require.Equal(t, net, l.BalanceOf(db, cvp, controller))
	require.Equal(t, new(uint256.Int).Sub(ether(100), shares), p.TotalSupply(db, pool))
}
