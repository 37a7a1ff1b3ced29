// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token implements a fungible-token ledger kept in StateDB storage
// at each token's address, plus a wrapped representation of the native
// asset.
package token

import (
	"errors"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/treasury/contract"
	"github.com/luxfi/treasury/storage"
)

// Revert reasons, verbatim
var (
	ErrTransferExceedsBalance   = errors.New("ERC20: transfer amount exceeds balance")
	ErrTransferExceedsAllowance = errors.New("ERC20: transfer amount exceeds allowance")
	ErrBurnExceedsBalance       = errors.New("ERC20: burn amount exceeds balance")
	ErrTransferToZero           = errors.New("ERC20: transfer to the zero address")
	ErrMintOverflow             = errors.New("ERC20: total supply overflow")
)

var (
	balancePrefix   = []byte("token.balance")
	allowancePrefix = []byte("token.allowance")
	supplyKey       = storage.Key([]byte("token.supply"))
)

// Ledger reads and writes token balances. It holds no state of its own.
type Ledger struct{}

func slot(stateDB contract.StateDB, tok common.Address) storage.Slot {
	return storage.Slot{StateDB: stateDB, Account: tok}
}

func balanceKey(holder common.Address) common.Hash {
	return storage.Key(balancePrefix, holder.Bytes())
}

func allowanceKey(owner, spender common.Address) common.Hash {
	return storage.Key(allowancePrefix, owner.Bytes(), spender.Bytes())
}

// BalanceOf returns the balance of [holder] in [tok].
func (Ledger) BalanceOf(stateDB contract.StateDB, tok, holder common.Address) *uint256.Int {
	return slot(stateDB, tok).Uint256(balanceKey(holder))
}

// TotalSupply returns the minted supply of [tok].
func (Ledger) TotalSupply(stateDB contract.StateDB, tok common.Address) *uint256.Int {
	return slot(stateDB, tok).Uint256(supplyKey)
}

// Allowance returns how much [spender] may move on behalf of [owner].
func (Ledger) Allowance(stateDB contract.StateDB, tok, owner, spender common.Address) *uint256.Int {
	return slot(stateDB, tok).Uint256(allowanceKey(owner, spender))
}

// Transfer moves [amount] of [tok] from [from] to [to].
func (Ledger) Transfer(stateDB contract.StateDB, tok, from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrTransferToZero
	}
	s := slot(stateDB, tok)
	fromBal := s.Uint256(balanceKey(from))
	if fromBal.Lt(amount) {
		return ErrTransferExceedsBalance
	}
	s.SetUint256(balanceKey(from), new(uint256.Int).Sub(fromBal, amount))
	toBal := s.Uint256(balanceKey(to))
	s.SetUint256(balanceKey(to), new(uint256.Int).Add(toBal, amount))
	return nil
}

// Approve sets the allowance of [spender] over [owner]'s balance.
func (Ledger) Approve(stateDB contract.StateDB, tok, owner, spender common.Address, amount *uint256.Int) error {
	slot(stateDB, tok).SetUint256(allowanceKey(owner, spender), amount)
	return nil
}

// TransferFrom moves tokens on behalf of [owner] and consumes allowance.
// The maximum allowance is treated as unlimited.
func (l Ledger) TransferFrom(stateDB contract.StateDB, tok, spender, owner, to common.Address, amount *uint256.Int) error {
	s := slot(stateDB, tok)
	allowed := s.Uint256(allowanceKey(owner, spender))
	if allowed.Lt(amount) {
		return ErrTransferExceedsAllowance
	}
	if err := l.Transfer(stateDB, tok, owner, to, amount); err != nil {
		return err
	}
	if !allowed.Eq(maxUint256) {
		s.SetUint256(allowanceKey(owner, spender), new(uint256.Int).Sub(allowed, amount))
	}
	return nil
}

var maxUint256 = new(uint256.Int).SetAllOne()

// Mint creates [amount] of [tok] for [to].
func (Ledger) Mint(stateDB contract.StateDB, tok, to common.Address, amount *uint256.Int) error {
	s := slot(stateDB, tok)
	supply, overflow := new(uint256.Int).AddOverflow(s.Uint256(supplyKey), amount)
	if overflow {
		return ErrMintOverflow
	}
	s.SetUint256(supplyKey, supply)
	bal := s.Uint256(balanceKey(to))
	s.SetUint256(balanceKey(to), new(uint256.Int).Add(bal, amount))
	return nil
}

// Burn destroys [amount] of [tok] held by [from].
func (Ledger) Burn(stateDB contract.StateDB, tok, from common.Address, amount *uint256.Int) error {
	s := slot(stateDB, tok)
	bal := s.Uint256(balanceKey(from))
	if bal.Lt(amount) {
		return ErrBurnExceedsBalance
	}
	s.SetUint256(balanceKey(from), new(uint256.Int).Sub(bal, amount))
	s.SetUint256(supplyKey, new(uint256.Int).Sub(s.Uint256(supplyKey), amount))
	return nil
}
