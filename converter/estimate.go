// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package converter

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/treasury/basket"
	"github.com/luxfi/treasury/contract"
)

// Estimates never mutate state. They re-read venue reserves and basket
// records on every call.

// EstimateAmountIn returns how much of [tok] one conversion consumes.
// For basket exits the amount is in basket shares.
func (c *Converter) EstimateAmountIn(stateDB contract.StateDB, tok common.Address) (*uint256.Int, error) {
	s, err := c.Resolve(stateDB, tok)
	if err != nil {
		return nil, err
	}
	in, err := c.amountIn(stateDB, s, c.TargetAmountOut(stateDB))
	if err != nil {
		return nil, err
	}
	c.log.Debug("estimated conversion input", "token", tok, "strategy", s.Variant, "amountIn", in)
	return in, nil
}

// EstimateAmountOut returns how much target token the converter's whole
// balance of [tok] would yield.
func (c *Converter) EstimateAmountOut(stateDB contract.StateDB, tok common.Address) (*uint256.Int, error) {
	s, err := c.Resolve(stateDB, tok)
	if err != nil {
		return nil, err
	}
	return c.amountOut(stateDB, s, c.sourceBalance(stateDB, tok))
}

// BaseStrategyIn is the base token needed for one conversion.
func (c *Converter) BaseStrategyIn(stateDB contract.StateDB) (*uint256.Int, error) {
	return c.amountIn(stateDB, Strategy{Variant: BaseAsset, Token: c.BaseToken}, c.TargetAmountOut(stateDB))
}

// BaseStrategyOut is the target token [amount] of base token buys.
func (c *Converter) BaseStrategyOut(stateDB contract.StateDB, amount *uint256.Int) (*uint256.Int, error) {
	return c.amountOut(stateDB, Strategy{Variant: BaseAsset, Token: c.BaseToken}, amount)
}

func (c *Converter) routeStrategy(stateDB contract.StateDB, tok common.Address) Strategy {
	venue, path := c.Route(stateDB, tok)
	return Strategy{Variant: GenericRoute, Token: tok, Venue: venue, Path: path}
}

// RouteStrategyIn is the amount of [tok] its route needs for one
// conversion, ignoring any basket strategy.
func (c *Converter) RouteStrategyIn(stateDB contract.StateDB, tok common.Address) (*uint256.Int, error) {
	return c.amountIn(stateDB, c.routeStrategy(stateDB, tok), c.TargetAmountOut(stateDB))
}

// RouteStrategyOut is the target token [amount] of [tok] yields along its
// route.
func (c *Converter) RouteStrategyOut(stateDB contract.StateDB, tok common.Address, amount *uint256.Int) (*uint256.Int, error) {
	return c.amountOut(stateDB, c.routeStrategy(stateDB, tok), amount)
}

// DirectExitIn is the shares of [pool] burnt to net one conversion of the
// target member. The target is grossed up by the community exit fee first,
// so the result is above the pool's raw quote for the same amount.
// BasketExitAmountIn returns the raw quote.
func (c *Converter) DirectExitIn(stateDB contract.StateDB, pool common.Address) (*uint256.Int, error) {
	return c.amountIn(stateDB, Strategy{Variant: BasketDirectExit, Token: pool}, c.TargetAmountOut(stateDB))
}

// DirectExitOut is the target token netted by burning [shares] of [pool],
// after the community exit fee. BasketExitAmountOut returns the pre-fee
// amount.
func (c *Converter) DirectExitOut(stateDB contract.StateDB, pool common.Address, shares *uint256.Int) (*uint256.Int, error) {
	return c.amountOut(stateDB, Strategy{Variant: BasketDirectExit, Token: pool}, shares)
}

func (c *Converter) rotatingStrategy(stateDB contract.StateDB, pool common.Address) (Strategy, error) {
	member, err := c.currentExitMember(stateDB, pool)
	if err != nil {
		return Strategy{}, err
	}
	leaf := c.resolveLeaf(stateDB, member)
	return Strategy{Variant: BasketRotatingExit, Token: pool, Member: member, Leaf: &leaf}, nil
}

// RotatingExitIn is the shares of [pool] burnt to fund one conversion
// through the current exit member.
func (c *Converter) RotatingExitIn(stateDB contract.StateDB, pool common.Address) (*uint256.Int, error) {
	s, err := c.rotatingStrategy(stateDB, pool)
	if err != nil {
		return nil, err
	}
	return c.amountIn(stateDB, s, c.TargetAmountOut(stateDB))
}

// RotatingExitOut is the target token [shares] of [pool] yield through the
// current exit member.
func (c *Converter) RotatingExitOut(stateDB contract.StateDB, pool common.Address, shares *uint256.Int) (*uint256.Int, error) {
	s, err := c.rotatingStrategy(stateDB, pool)
	if err != nil {
		return nil, err
	}
	return c.amountOut(stateDB, s, shares)
}

// BasketExitAmountIn is the raw pool quote of shares for [amountOut] of
// [tok], before any community fee.
func (c *Converter) BasketExitAmountIn(stateDB contract.StateDB, pool, tok common.Address, amountOut *uint256.Int) (*uint256.Int, error) {
	return c.baskets.PoolInGivenSingleOut(stateDB, pool, tok, amountOut)
}

// BasketExitAmountOut is the raw pool quote of [tok] for burning [poolIn]
// shares, before any community fee.
func (c *Converter) BasketExitAmountOut(stateDB contract.StateDB, pool, tok common.Address, poolIn *uint256.Int) (*uint256.Int, error) {
	return c.baskets.SingleOutGivenPoolIn(stateDB, pool, tok, poolIn)
}

// amountIn is the amount of [s.Token] that delivers [out] target token.
func (c *Converter) amountIn(stateDB contract.StateDB, s Strategy, out *uint256.Int) (*uint256.Int, error) {
	switch s.Variant {
	case Direct:
		return new(uint256.Int).Set(out), nil
	case BaseAsset:
		return c.quoteIn(stateDB, c.CanonicalVenue, out, []common.Address{c.BaseToken, c.TargetToken})
	case GenericRoute:
		if s.Venue == c.CanonicalVenue {
			return c.quoteIn(stateDB, s.Venue, out, s.Path)
		}
		baseNeed, err := c.quoteIn(stateDB, c.CanonicalVenue, out, []common.Address{c.BaseToken, c.TargetToken})
		if err != nil {
			return nil, err
		}
		return c.quoteIn(stateDB, s.Venue, baseNeed, s.Path)
	case BasketDirectExit:
		gross, err := c.grossExit(stateDB, s.Token, out)
		if err != nil {
			return nil, err
		}
		return c.baskets.PoolInGivenSingleOut(stateDB, s.Token, c.TargetToken, gross)
	case BasketRotatingExit:
		need, err := c.amountIn(stateDB, *s.Leaf, out)
		if err != nil {
			return nil, err
		}
		gross, err := c.grossExit(stateDB, s.Token, need)
		if err != nil {
			return nil, err
		}
		return c.baskets.PoolInGivenSingleOut(stateDB, s.Token, s.Member, gross)
	default:
		return nil, ErrNotConfigured
	}
}

// amountOut is the target token [bal] of [s.Token] yields. A zero balance
// yields zero without consulting any venue.
func (c *Converter) amountOut(stateDB contract.StateDB, s Strategy, bal *uint256.Int) (*uint256.Int, error) {
	if bal.IsZero() {
		return new(uint256.Int), nil
	}
	switch s.Variant {
	case Direct:
		target := c.TargetAmountOut(stateDB)
		if bal.Lt(target) {
			return new(uint256.Int).Set(bal), nil
		}
		return target, nil
	case BaseAsset:
		return c.quoteOut(stateDB, c.CanonicalVenue, bal, []common.Address{c.BaseToken, c.TargetToken})
	case GenericRoute:
		out, err := c.quoteOut(stateDB, s.Venue, bal, s.Path)
		if err != nil || s.Venue == c.CanonicalVenue {
			return out, err
		}
		return c.quoteOut(stateDB, c.CanonicalVenue, out, []common.Address{c.BaseToken, c.TargetToken})
	case BasketDirectExit:
		return c.netExit(stateDB, s.Token, c.TargetToken, bal)
	case BasketRotatingExit:
		net, err := c.netExit(stateDB, s.Token, s.Member, bal)
		if err != nil {
			return nil, err
		}
		return c.amountOut(stateDB, *s.Leaf, net)
	default:
		return nil, ErrNotConfigured
	}
}

func (c *Converter) quoteIn(stateDB contract.StateDB, venue common.Address, out *uint256.Int, path []common.Address) (*uint256.Int, error) {
	v, ok := c.venues[venue]
	if !ok {
		return nil, ErrUnknownVenue
	}
	amounts, err := v.GetAmountsIn(stateDB, out, path)
	if err != nil {
		return nil, err
	}
	return amounts[0], nil
}

func (c *Converter) quoteOut(stateDB contract.StateDB, venue common.Address, in *uint256.Int, path []common.Address) (*uint256.Int, error) {
	v, ok := c.venues[venue]
	if !ok {
		return nil, ErrUnknownVenue
	}
	amounts, err := v.GetAmountsOut(stateDB, in, path)
	if err != nil {
		return nil, err
	}
	return amounts[len(amounts)-1], nil
}

// grossExit is the smallest exit of [pool] that nets [need] after the
// community exit fee.
func (c *Converter) grossExit(stateDB contract.StateDB, pool common.Address, need *uint256.Int) (*uint256.Int, error) {
	fee := c.baskets.CommunityExitFee(stateDB, pool)
	if fee.IsZero() {
		return new(uint256.Int).Set(need), nil
	}
	gross, err := basket.BDiv(need, new(uint256.Int).Sub(basket.BONE, fee))
	if err != nil {
		return nil, err
	}
	one := uint256.NewInt(1)
	for {
		net, _, err := basket.ExitFeeSplit(gross, fee)
		if err != nil {
			return nil, err
		}
		if !net.Lt(need) {
			return gross, nil
		}
		gross.Add(gross, one)
	}
}

// netExit is what burning [shares] of [pool] for [tok] nets after the
// community exit fee.
func (c *Converter) netExit(stateDB contract.StateDB, pool, tok common.Address, shares *uint256.Int) (*uint256.Int, error) {
	gross, err := c.baskets.SingleOutGivenPoolIn(stateDB, pool, tok, shares)
	if err != nil {
		return nil, err
	}
	net, _, err := basket.ExitFeeSplit(gross, c.baskets.CommunityExitFee(stateDB, pool))
	return net, err
}
