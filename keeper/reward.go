// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package keeper

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/luxfi/treasury/contract"
	"github.com/luxfi/treasury/registry"
	"github.com/luxfi/treasury/storage"
)

// RewardRequest describes one compensation for a completed poke.
type RewardRequest struct {
	Client   common.Address
	UserID   uint64
	GasUsed  uint64
	GasPrice *uint256.Int
	To       common.Address
	InNative bool
	// Trigger identifies the poke; each trigger settles at most once.
	Trigger common.Hash
}

// Reward pays user [req.UserID] for gas spent poking [req.Client]. The cost
// is gasUsed times the capped gas price, converted into staking token
// through oracle prices and debited from the client's credit. In native
// mode the native cost is paid from the registry reserve instead of
// transferring staking token. Returns the amount paid in the chosen asset.
func (r *Registry) Reward(stateDB contract.StateDB, req RewardRequest) (*uint256.Int, error) {
	s := r.slot(stateDB)
	settledKey := storage.Key(settledPrefix, req.Client.Bytes(), req.Trigger.Bytes())
	if s.Bool(settledKey) {
		return nil, ErrAlreadySettled
	}
	c, err := r.Client(stateDB, req.Client)
	if err != nil {
		return nil, err
	}
	if _, err := r.User(stateDB, req.UserID); err != nil {
		return nil, err
	}
	if req.To == (common.Address{}) {
		return nil, ErrZeroAddress
	}

	gasPrice := new(uint256.Int).Set(req.GasPrice)
	if !c.MaxGasPrice.IsZero() && gasPrice.Gt(c.MaxGasPrice) {
		gasPrice.Set(c.MaxGasPrice)
	}
	nativeCost := new(uint256.Int).Mul(uint256.NewInt(req.GasUsed), gasPrice)

	tokenCost, err := r.NativeToToken(stateDB, nativeCost)
	if err != nil {
		return nil, err
	}
	if c.Credit.Lt(tokenCost) {
		return nil, ErrInsufficientCredit
	}
	if req.InNative && stateDB.GetBalance(r.addr).Lt(nativeCost) {
		return nil, ErrInsufficientNative
	}
	s.SetUint256(clientKey(req.Client, "credit"), new(uint256.Int).Sub(c.Credit, tokenCost))
	s.SetBool(settledKey, true)

	if req.InNative {
		stateDB.SubBalance(r.addr, nativeCost, tracing.BalanceChangeTransfer)
		stateDB.AddBalance(req.To, nativeCost, tracing.BalanceChangeTransfer)
		return nativeCost, nil
	}
	if err := r.tokens.Transfer(stateDB, r.stakingToken, r.addr, req.To, tokenCost); err != nil {
		return nil, err
	}
	return tokenCost, nil
}

// NativeToToken converts a native amount into staking token at oracle prices.
func (r *Registry) NativeToToken(stateDB contract.StateDB, amount *uint256.Int) (*uint256.Int, error) {
	nativePrice, err := r.Price(stateDB, registry.NativeMarker)
	if err != nil {
		return nil, err
	}
	tokenPrice, err := r.Price(stateDB, r.stakingToken)
	if err != nil {
		return nil, err
	}
	out := new(uint256.Int).Mul(amount, nativePrice)
	return out.Div(out, tokenPrice), nil
}

// Settled reports whether [trigger] was already compensated for [client].
func (r *Registry) Settled(stateDB contract.StateDB, client common.Address, trigger common.Hash) bool {
	return r.slot(stateDB).Bool(storage.Key(settledPrefix, client.Bytes(), trigger.Bytes()))
}
