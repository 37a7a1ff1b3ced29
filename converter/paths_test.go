// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package converter

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func TestDefaultRoute(t *testing.T) {
	f := newFixture(t)

	venue, path := f.conv.Route(f.db, dai)
	require.Equal(t, uniswapAddr, venue)
	require.Equal(t, []common.Address{dai, weth, cvp}, path)
	require.Equal(t, uniswapAddr, f.conv.Venue(f.db, dai))
}

func TestSetRouteOverride(t *testing.T) {
	other := common.HexToAddress("0x0000000000000000000000000000000000009fff")
	tests := []struct {
		name   string
		caller common.Address
		venue  common.Address
		path   []common.Address
		err    error
		reason string
	}{
		{
			name:   "canonical venue to target",
			caller: owner,
			venue:  uniswapAddr,
			path:   []common.Address{uni, usdc, weth, cvp},
		},
		{
			name:   "secondary venue to base",
			caller: owner,
			venue:  sushiAddr,
			path:   []common.Address{uni, weth},
		},
		{
			name:   "not owner",
			caller: alice,
			venue:  uniswapAddr,
			path:   []common.Address{uni, weth, cvp},
			err:    ErrNotAuthorized,
			reason: "Ownable: caller is not the owner",
		},
		{
			name:   "canonical venue ending at base",
			caller: owner,
			venue:  uniswapAddr,
			path:   []common.Address{uni, weth},
			err:    ErrNonTargetEnd,
			reason: "NON_CVP_END_ON_UNISWAP_PATH",
		},
		{
			name:   "secondary venue ending at target",
			caller: owner,
			venue:  sushiAddr,
			path:   []common.Address{uni, weth, cvp},
			err:    ErrNonBaseEnd,
			reason: "NON_WETH_END_ON_NON_UNISWAP_PATH",
		},
		{
			name:   "single token path",
			caller: owner,
			venue:  uniswapAddr,
			path:   []common.Address{cvp},
			err:    ErrInvalidPath,
			reason: "INVALID_PATH",
		},
		{
			name:   "unknown venue",
			caller: owner,
			venue:  other,
			path:   []common.Address{uni, weth},
			err:    ErrUnknownVenue,
			reason: "UNKNOWN_ROUTER",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			err := f.conv.SetRouteOverride(f.db, tt.caller, uni, tt.venue, tt.path)
			venue, path := f.conv.Route(f.db, uni)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				require.Equal(t, tt.reason, ReasonOf(err))
				require.Equal(t, uniswapAddr, venue)
				require.Equal(t, []common.Address{uni, weth, cvp}, path)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.venue, venue)
			require.Equal(t, tt.path, path)
		})
	}
}

func TestEndpointMismatchIsOneClass(t *testing.T) {
	require.ErrorIs(t, ErrNonTargetEnd, ErrRouteEndpointMismatch)
	require.ErrorIs(t, ErrNonBaseEnd, ErrRouteEndpointMismatch)
}

func TestRouteOverrideShrinks(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.conv.SetRouteOverride(f.db, owner, uni, uniswapAddr, []common.Address{uni, usdc, dai, weth, cvp}))
	require.NoError(t, f.conv.SetRouteOverride(f.db, owner, uni, sushiAddr, []common.Address{uni, weth}))

	venue, path := f.conv.Route(f.db, uni)
	require.Equal(t, sushiAddr, venue)
	require.Equal(t, []common.Address{uni, weth}, path)
}

func TestSetBasketStrategy(t *testing.T) {
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	tests := []struct {
		value *uint256.Int
		tag   Tag
	}{
		{uint256.NewInt(0), TagNone},
		{uint256.NewInt(1), TagDirectExit},
		{uint256.NewInt(2), TagRotatingExit},
		{uint256.NewInt(12), TagNone},
		{huge, TagNone},
	}
	for _, tt := range tests {
		t.Run(tt.value.Dec(), func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.conv.SetBasketStrategy(f.db, owner, strategy1Pool, tt.value))
			require.Equal(t, tt.value, f.conv.BasketStrategy(f.db, strategy1Pool))
			require.Equal(t, tt.tag, f.conv.tag(f.db, strategy1Pool))
		})
	}
}

func TestSetBasketStrategyNilClears(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.conv.SetBasketStrategy(f.db, owner, strategy1Pool, uint256.NewInt(2)))

	require.NoError(t, f.conv.SetBasketStrategy(f.db, owner, strategy1Pool, nil))
	require.True(t, f.conv.BasketStrategy(f.db, strategy1Pool).IsZero())
	require.Equal(t, TagNone, f.conv.tag(f.db, strategy1Pool))
}

func TestSetBasketStrategyOwnerOnly(t *testing.T) {
	f := newFixture(t)

	err := f.conv.SetBasketStrategy(f.db, alice, strategy1Pool, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrNotAuthorized)
	require.True(t, f.conv.BasketStrategy(f.db, strategy1Pool).IsZero())
}
