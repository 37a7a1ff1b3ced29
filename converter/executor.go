// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package converter

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/treasury/amm"
	"github.com/luxfi/treasury/basket"
	"github.com/luxfi/treasury/contract"
	"github.com/luxfi/treasury/token"
)

// SwapRecord describes one completed conversion. It is emitted as the
// Swap event.
type SwapRecord struct {
	Kind          Kind
	Caller        common.Address
	Token         common.Address
	AmountIn      *uint256.Int
	AmountOut     *uint256.Int
	BalanceBefore *uint256.Int
	BalanceAfter  *uint256.Int
}

// Swap converts [tok] without keeper authorization or compensation. It is
// only available while the converter is permissionless.
func (c *Converter) Swap(stateDB contract.StateDB, caller, tok common.Address) (SwapRecord, error) {
	if !c.Permissionless(stateDB) {
		return SwapRecord{}, ErrPermissionlessDisabled
	}
	return c.ExecuteConversion(stateDB, caller, tok)
}

// ExecuteConversion converts enough of [tok] to deliver exactly the
// target amount to the beneficiary. It either completes or leaves no
// state change behind.
func (c *Converter) ExecuteConversion(stateDB contract.StateDB, caller, tok common.Address) (SwapRecord, error) {
	var rec SwapRecord
	err := withSnapshot(stateDB, func() error {
		var err error
		rec, err = c.convert(stateDB, caller, tok)
		return err
	})
	if err != nil {
		return SwapRecord{}, err
	}
	c.log.Info("converted treasury balance",
		"token", tok,
		"kind", rec.Kind,
		"caller", caller,
		"amountIn", rec.AmountIn,
		"amountOut", rec.AmountOut,
	)
	return rec, nil
}

func (c *Converter) convert(stateDB contract.StateDB, caller, tok common.Address) (SwapRecord, error) {
	if !c.Initialized(stateDB) {
		return SwapRecord{}, ErrNotConfigured
	}
	s, err := c.Resolve(stateDB, tok)
	if err != nil {
		return SwapRecord{}, err
	}
	target := c.TargetAmountOut(stateDB)
	in, err := c.amountIn(stateDB, s, target)
	if err != nil {
		return SwapRecord{}, err
	}
	before := c.tokens.BalanceOf(stateDB, c.TargetToken, c.Beneficiary)

	if err := c.fund(stateDB, s, in); err != nil {
		return SwapRecord{}, err
	}
	switch s.Variant {
	case BasketDirectExit:
		if err := c.exit(stateDB, s.Token, c.TargetToken, target, in); err != nil {
			return SwapRecord{}, err
		}
		err = c.deliver(stateDB, Strategy{Variant: Direct, Token: c.TargetToken}, target, target)
	case BasketRotatingExit:
		need, err := c.amountIn(stateDB, *s.Leaf, target)
		if err != nil {
			return SwapRecord{}, err
		}
		if err := c.exit(stateDB, s.Token, s.Member, need, in); err != nil {
			return SwapRecord{}, err
		}
		if err := c.deliver(stateDB, *s.Leaf, need, target); err != nil {
			return SwapRecord{}, err
		}
		c.advanceRotation(stateDB, s.Token)
	default:
		err = c.deliver(stateDB, s, in, target)
	}
	if err != nil {
		return SwapRecord{}, err
	}

	after := c.tokens.BalanceOf(stateDB, c.TargetToken, c.Beneficiary)
	if after.Lt(before) || !new(uint256.Int).Sub(after, before).Eq(target) {
		return SwapRecord{}, fmt.Errorf("%w: before %s after %s target %s", ErrConversionInvariant, before, after, target)
	}
	rec := SwapRecord{
		Kind:          s.Variant.Kind(),
		Caller:        caller,
		Token:         tok,
		AmountIn:      in,
		AmountOut:     new(uint256.Int).Set(target),
		BalanceBefore: before,
		BalanceAfter:  after,
	}
	if err := c.emitSwap(stateDB, rec); err != nil {
		return SwapRecord{}, err
	}
	return rec, nil
}

// fund checks the converter holds [in] of the strategy's source and wraps
// native value when converting the native marker.
func (c *Converter) fund(stateDB contract.StateDB, s Strategy, in *uint256.Int) error {
	if isNative(s.Token) {
		native := new(uint256.Int).Set(stateDB.GetBalance(c.Address))
		if native.IsZero() {
			return ErrNativeBalanceZero
		}
		if c.sourceBalance(stateDB, s.Token).Lt(in) {
			return shortfall("wrap", amm.ErrTransferFromFailed)
		}
		return transferFailed("wrap", c.wrapped.Deposit(stateDB, c.Address, native))
	}
	if !c.tokens.BalanceOf(stateDB, s.Token, c.Address).Lt(in) {
		return nil
	}
	switch s.Variant {
	case Direct:
		return shortfall("transfer", token.ErrTransferExceedsBalance)
	case BasketDirectExit, BasketRotatingExit:
		return shortfall("exit", basket.ErrInsufficientBal)
	default:
		return shortfall("swap", amm.ErrTransferFromFailed)
	}
}

// exit burns at most [maxShares] of [pool] to net [need] of [tok].
func (c *Converter) exit(stateDB contract.StateDB, pool, tok common.Address, need, maxShares *uint256.Int) error {
	gross, err := c.grossExit(stateDB, pool, need)
	if err != nil {
		return err
	}
	_, err = c.baskets.ExitswapExternAmountOut(stateDB, pool, c.Address, tok, gross, maxShares)
	return transferFailed("exitswapExternAmountOut", err)
}

// deliver turns [in] of a leaf strategy's token, already held by the
// converter, into [out] target token at the beneficiary.
func (c *Converter) deliver(stateDB contract.StateDB, s Strategy, in, out *uint256.Int) error {
	base := []common.Address{c.BaseToken, c.TargetToken}
	switch s.Variant {
	case Direct:
		return transferFailed("transfer", c.tokens.Transfer(stateDB, c.TargetToken, c.Address, c.Beneficiary, out))
	case BaseAsset:
		return c.swapExact(stateDB, c.CanonicalVenue, c.BaseToken, out, in, base, c.Beneficiary)
	case GenericRoute:
		if s.Venue == c.CanonicalVenue {
			return c.swapExact(stateDB, s.Venue, s.Token, out, in, s.Path, c.Beneficiary)
		}
		baseNeed, err := c.quoteIn(stateDB, c.CanonicalVenue, out, base)
		if err != nil {
			return err
		}
		if err := c.swapExact(stateDB, s.Venue, s.Token, baseNeed, in, s.Path, c.Address); err != nil {
			return err
		}
		return c.swapExact(stateDB, c.CanonicalVenue, c.BaseToken, out, baseNeed, base, c.Beneficiary)
	default:
		return ErrNotConfigured
	}
}

// swapExact approves [venue] for [maxIn] of [spend] and buys exactly [out]
// of the path's last token for [to]. Only [spend] is ever approved, so a
// stored path starting at another token cannot draw on that token's balance.
func (c *Converter) swapExact(stateDB contract.StateDB, venue, spend common.Address, out, maxIn *uint256.Int, path []common.Address, to common.Address) error {
	v, ok := c.venues[venue]
	if !ok {
		return ErrUnknownVenue
	}
	if path[0] != spend {
		return transferFailed("swapTokensForExactTokens", fmt.Errorf("%w: path starts at %s, not %s", amm.ErrTransferFromFailed, path[0], spend))
	}
	if err := c.tokens.Approve(stateDB, spend, c.Address, venue, maxIn); err != nil {
		return transferFailed("approve", err)
	}
	_, err := v.SwapTokensForExactTokens(stateDB, c.Address, out, maxIn, path, to)
	return transferFailed("swapTokensForExactTokens", err)
}

func (c *Converter) emitSwap(stateDB contract.StateDB, rec SwapRecord) error {
	topics, data, err := converterABI.PackEvent("Swap",
		uint8(rec.Kind),
		rec.Caller,
		rec.Token,
		rec.AmountIn.ToBig(),
		rec.AmountOut.ToBig(),
		rec.BalanceBefore.ToBig(),
		rec.BalanceAfter.ToBig(),
	)
	if err != nil {
		return err
	}
	stateDB.AddLog(&types.Log{
		Address: c.Address,
		Topics:  topics,
		Data:    data,
	})
	return nil
}
