// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package converter

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/treasury/amm"
	"github.com/luxfi/treasury/basket"
	"github.com/luxfi/treasury/contract"
	"github.com/luxfi/treasury/keeper"
	"github.com/luxfi/treasury/token"
)

var (
	_ TokenLedger      = token.Ledger{}
	_ NativeWrapper    = (*token.Wrapped)(nil)
	_ Venue            = (*amm.Router)(nil)
	_ Basket           = (*basket.Pools)(nil)
	_ RoleAuthority    = (*keeper.Registry)(nil)
	_ CompensationSink = (*keeper.Registry)(nil)
)

// TokenLedger holds the balances the converter accumulates.
type TokenLedger interface {
	BalanceOf(stateDB contract.StateDB, tok, holder common.Address) *uint256.Int
	Transfer(stateDB contract.StateDB, tok, from, to common.Address, amount *uint256.Int) error
	Approve(stateDB contract.StateDB, tok, owner, spender common.Address, amount *uint256.Int) error
}

// NativeWrapper turns native value into the ledger-tracked base token.
type NativeWrapper interface {
	Token() common.Address
	Deposit(stateDB contract.StateDB, from common.Address, amount *uint256.Int) error
}

// Venue is a constant-product router.
type Venue interface {
	Address() common.Address
	GetAmountsIn(stateDB contract.StateDB, amountOut *uint256.Int, path []common.Address) ([]*uint256.Int, error)
	GetAmountsOut(stateDB contract.StateDB, amountIn *uint256.Int, path []common.Address) ([]*uint256.Int, error)
	SwapTokensForExactTokens(
		stateDB contract.StateDB,
		sender common.Address,
		amountOut, amountInMax *uint256.Int,
		path []common.Address,
		to common.Address,
	) ([]*uint256.Int, error)
}

// Basket prices and executes single-token exits from weighted pools.
type Basket interface {
	CurrentTokens(stateDB contract.StateDB, pool common.Address) ([]common.Address, error)
	IsBound(stateDB contract.StateDB, pool, tok common.Address) bool
	CommunityExitFee(stateDB contract.StateDB, pool common.Address) *uint256.Int
	PoolInGivenSingleOut(stateDB contract.StateDB, pool, tok common.Address, amountOut *uint256.Int) (*uint256.Int, error)
	SingleOutGivenPoolIn(stateDB contract.StateDB, pool, tok common.Address, poolIn *uint256.Int) (*uint256.Int, error)
	ExitswapExternAmountOut(
		stateDB contract.StateDB,
		pool, caller, tokenOut common.Address,
		tokenAmountOut, maxPoolAmountIn *uint256.Int,
	) (*uint256.Int, error)
}

// RoleAuthority answers who may trigger conversions. It is read only.
type RoleAuthority interface {
	PokerKey(stateDB contract.StateDB, id uint64) (common.Address, error)
	HighestDepositHolder(stateDB contract.StateDB, client common.Address) (uint64, error)
	HasMinimalDeposit(stateDB contract.StateDB, client common.Address, id uint64) (bool, error)
}

// CompensationSink pays keepers after a conversion.
type CompensationSink interface {
	Reward(stateDB contract.StateDB, req keeper.RewardRequest) (*uint256.Int, error)
}
