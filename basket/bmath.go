// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package basket

import (
	"errors"

	"github.com/holiman/uint256"
)

// Fixed point with 18 decimals
var (
	BONE = uint256.NewInt(1e18)

	minBPowBase   = uint256.NewInt(1)
	maxBPowBase   = new(uint256.Int).SubUint64(new(uint256.Int).Mul(uint256.NewInt(2), BONE), 1)
	bpowPrecision = uint256.NewInt(1e8)

	halfBone = uint256.NewInt(5e17)
)

var (
	ErrAddOverflow     = errors.New("ERR_ADD_OVERFLOW")
	ErrSubUnderflow    = errors.New("ERR_SUB_UNDERFLOW")
	ErrMulOverflow     = errors.New("ERR_MUL_OVERFLOW")
	ErrDivZero         = errors.New("ERR_DIV_ZERO")
	ErrDivInternal     = errors.New("ERR_DIV_INTERNAL")
	ErrBPowBaseTooLow  = errors.New("ERR_BPOW_BASE_TOO_LOW")
	ErrBPowBaseTooHigh = errors.New("ERR_BPOW_BASE_TOO_HIGH")
)

func badd(a, b *uint256.Int) (*uint256.Int, error) {
	c, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrAddOverflow
	}
	return c, nil
}

func bsub(a, b *uint256.Int) (*uint256.Int, error) {
	if a.Lt(b) {
		return nil, ErrSubUnderflow
	}
	return new(uint256.Int).Sub(a, b), nil
}

// bsubSign returns |a - b| and whether the difference is negative.
func bsubSign(a, b *uint256.Int) (*uint256.Int, bool) {
	if !a.Lt(b) {
		return new(uint256.Int).Sub(a, b), false
	}
	return new(uint256.Int).Sub(b, a), true
}

// BMul multiplies two fixed point numbers rounding half up.
func BMul(a, b *uint256.Int) (*uint256.Int, error) {
	c0, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrMulOverflow
	}
	if _, overflow = c0.AddOverflow(c0, halfBone); overflow {
		return nil, ErrMulOverflow
	}
	return c0.Div(c0, BONE), nil
}

// BDiv divides two fixed point numbers rounding half up.
func BDiv(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, ErrDivZero
	}
	c0, overflow := new(uint256.Int).MulOverflow(a, BONE)
	if overflow {
		return nil, ErrDivInternal
	}
	half := new(uint256.Int).Rsh(b, 1)
	if _, overflow = c0.AddOverflow(c0, half); overflow {
		return nil, ErrDivInternal
	}
	return c0.Div(c0, b), nil
}

// bpowi raises a fixed point base to a whole power by repeated squaring.
func bpowi(a *uint256.Int, n uint64) (*uint256.Int, error) {
	z := new(uint256.Int).Set(BONE)
	if n%2 != 0 {
		z.Set(a)
	}
	var err error
	for n /= 2; n != 0; n /= 2 {
		if a, err = BMul(a, a); err != nil {
			return nil, err
		}
		if n%2 != 0 {
			if z, err = BMul(z, a); err != nil {
				return nil, err
			}
		}
	}
	return z, nil
}

// BPow computes base^exp for fixed point operands. The whole part of exp
// is exact, the fractional part uses a binomial series cut off at 1e-10.
func BPow(base, exp *uint256.Int) (*uint256.Int, error) {
	if base.Lt(minBPowBase) {
		return nil, ErrBPowBaseTooLow
	}
	if base.Gt(maxBPowBase) {
		return nil, ErrBPowBaseTooHigh
	}

	wholeUnits := new(uint256.Int).Div(exp, BONE)
	whole := new(uint256.Int).Mul(wholeUnits, BONE)
	remain := new(uint256.Int).Sub(exp, whole)

	if !wholeUnits.IsUint64() {
		return nil, ErrMulOverflow
	}
	wholePow, err := bpowi(base, wholeUnits.Uint64())
	if err != nil {
		return nil, err
	}
	if remain.IsZero() {
		return wholePow, nil
	}

	partial, err := bpowApprox(base, remain, bpowPrecision)
	if err != nil {
		return nil, err
	}
	return BMul(wholePow, partial)
}

func bpowApprox(base, exp, precision *uint256.Int) (*uint256.Int, error) {
	a := exp
	x, xneg := bsubSign(base, BONE)
	term := new(uint256.Int).Set(BONE)
	sum := new(uint256.Int).Set(term)
	negative := false

	for i := uint64(1); !term.Lt(precision); i++ {
		bigK := new(uint256.Int).Mul(uint256.NewInt(i), BONE)
		kMinusOne, _ := bsub(bigK, BONE)
		c, cneg := bsubSign(a, kMinusOne)

		cx, err := BMul(c, x)
		if err != nil {
			return nil, err
		}
		if term, err = BMul(term, cx); err != nil {
			return nil, err
		}
		if term, err = BDiv(term, bigK); err != nil {
			return nil, err
		}
		if term.IsZero() {
			break
		}

		if xneg {
			negative = !negative
		}
		if cneg {
			negative = !negative
		}
		if negative {
			sum, err = bsub(sum, term)
		} else {
			sum, err = badd(sum, term)
		}
		if err != nil {
			return nil, err
		}
	}
	return sum, nil
}

// CalcPoolInGivenSingleOut returns the pool shares to burn for exactly
// [tokenAmountOut] of one member, swap fee included.
func CalcPoolInGivenSingleOut(
	tokenBalanceOut, tokenWeightOut, poolSupply, totalWeight, tokenAmountOut, swapFee *uint256.Int,
) (*uint256.Int, error) {
	normalizedWeight, err := BDiv(tokenWeightOut, totalWeight)
	if err != nil {
		return nil, err
	}
	zoo, err := bsub(BONE, normalizedWeight)
	if err != nil {
		return nil, err
	}
	zar, err := BMul(zoo, swapFee)
	if err != nil {
		return nil, err
	}
	oneMinusZar, err := bsub(BONE, zar)
	if err != nil {
		return nil, err
	}
	amountOutBeforeSwapFee, err := BDiv(tokenAmountOut, oneMinusZar)
	if err != nil {
		return nil, err
	}
	newTokenBalanceOut, err := bsub(tokenBalanceOut, amountOutBeforeSwapFee)
	if err != nil {
		return nil, err
	}
	tokenOutRatio, err := BDiv(newTokenBalanceOut, tokenBalanceOut)
	if err != nil {
		return nil, err
	}
	poolRatio, err := BPow(tokenOutRatio, normalizedWeight)
	if err != nil {
		return nil, err
	}
	newPoolSupply, err := BMul(poolRatio, poolSupply)
	if err != nil {
		return nil, err
	}
	poolAmountIn, err := bsub(poolSupply, newPoolSupply)
	if err != nil {
		return nil, err
	}
	// exit fee is zero
	return BDiv(poolAmountIn, BONE)
}

// CalcSingleOutGivenPoolIn returns how much of one member burning
// [poolAmountIn] shares yields, swap fee included.
func CalcSingleOutGivenPoolIn(
	tokenBalanceOut, tokenWeightOut, poolSupply, totalWeight, poolAmountIn, swapFee *uint256.Int,
) (*uint256.Int, error) {
	normalizedWeight, err := BDiv(tokenWeightOut, totalWeight)
	if err != nil {
		return nil, err
	}
	newPoolSupply, err := bsub(poolSupply, poolAmountIn)
	if err != nil {
		return nil, err
	}
	poolRatio, err := BDiv(newPoolSupply, poolSupply)
	if err != nil {
		return nil, err
	}
	invWeight, err := BDiv(BONE, normalizedWeight)
	if err != nil {
		return nil, err
	}
	tokenOutRatio, err := BPow(poolRatio, invWeight)
	if err != nil {
		return nil, err
	}
	newTokenBalanceOut, err := BMul(tokenOutRatio, tokenBalanceOut)
	if err != nil {
		return nil, err
	}
	amountOutBeforeSwapFee, err := bsub(tokenBalanceOut, newTokenBalanceOut)
	if err != nil {
		return nil, err
	}
	zoo, err := bsub(BONE, normalizedWeight)
	if err != nil {
		return nil, err
	}
	zaz, err := BMul(zoo, swapFee)
	if err != nil {
		return nil, err
	}
	oneMinusZaz, err := bsub(BONE, zaz)
	if err != nil {
		return nil, err
	}
	return BMul(amountOutBeforeSwapFee, oneMinusZaz)
}
