// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"errors"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/luxfi/treasury/contract"
)

var ErrInsufficientNative = errors.New("insufficient native balance")

// Wrapped is a token whose supply is backed one to one by native value held
// at its own address.
type Wrapped struct {
	Ledger
	Address common.Address
}

// NewWrapped returns the wrapped native token at [addr].
func NewWrapped(addr common.Address) *Wrapped {
	return &Wrapped{Address: addr}
}

// Deposit converts [amount] of [from]'s native balance into wrapped tokens.
func (w *Wrapped) Deposit(stateDB contract.StateDB, from common.Address, amount *uint256.Int) error {
	if stateDB.GetBalance(from).Lt(amount) {
		return ErrInsufficientNative
	}
	stateDB.SubBalance(from, amount, tracing.BalanceChangeTransfer)
	stateDB.AddBalance(w.Address, amount, tracing.BalanceChangeTransfer)
	return w.Mint(stateDB, w.Address, from, amount)
}

// Withdraw burns [amount] of [from]'s wrapped tokens and returns the native value.
func (w *Wrapped) Withdraw(stateDB contract.StateDB, from common.Address, amount *uint256.Int) error {
	if err := w.Burn(stateDB, w.Address, from, amount); err != nil {
		return err
	}
	stateDB.SubBalance(w.Address, amount, tracing.BalanceChangeTransfer)
	stateDB.AddBalance(from, amount, tracing.BalanceChangeTransfer)
	return nil
}

// Token returns the ledger address of the wrapped token.
func (w *Wrapped) Token() common.Address {
	return w.Address
}
