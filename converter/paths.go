// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package converter

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/treasury/contract"
	"github.com/luxfi/treasury/storage"
)

// Tag is the owner-assigned basket strategy of a token.
type Tag uint64

const (
	TagNone         Tag = 0
	TagDirectExit   Tag = 1
	TagRotatingExit Tag = 2
)

func (c *Converter) routePath(stateDB contract.StateDB, tok common.Address) storage.AddressList {
	return storage.AddressList{Slot: c.slot(stateDB), Prefix: routePathPrefix, ID: tok.Bytes()}
}

// SetRouteOverride replaces the default route of [tok]. On the canonical
// venue the path must end at the target token, on any other venue it must
// end at the base token, which the canonical venue then carries on.
func (c *Converter) SetRouteOverride(stateDB contract.StateDB, caller, tok, venue common.Address, path []common.Address) error {
	return withSnapshot(stateDB, func() error {
		if err := c.onlyOwner(stateDB, caller); err != nil {
			return err
		}
		if err := c.verifyRoute(venue, path); err != nil {
			return err
		}
		c.slot(stateDB).SetAddress(storage.Key(routeVenuePrefix, tok.Bytes()), venue)
		c.routePath(stateDB, tok).Set(path)
		return nil
	})
}

func (c *Converter) verifyRoute(venue common.Address, path []common.Address) error {
	if _, ok := c.venues[venue]; !ok {
		return ErrUnknownVenue
	}
	if len(path) < 2 {
		return ErrInvalidPath
	}
	end := path[len(path)-1]
	if venue == c.CanonicalVenue {
		if end != c.TargetToken {
			return ErrNonTargetEnd
		}
		return nil
	}
	if end != c.BaseToken {
		return ErrNonBaseEnd
	}
	return nil
}

// Route returns the venue and path [tok] converts through. Without an
// override this is the canonical venue over [tok, base, target].
func (c *Converter) Route(stateDB contract.StateDB, tok common.Address) (common.Address, []common.Address) {
	venue := c.slot(stateDB).Address(storage.Key(routeVenuePrefix, tok.Bytes()))
	if venue == (common.Address{}) {
		return c.CanonicalVenue, []common.Address{tok, c.BaseToken, c.TargetToken}
	}
	return venue, c.routePath(stateDB, tok).Get()
}

// Venue returns the override venue of [tok], or the canonical venue.
func (c *Converter) Venue(stateDB contract.StateDB, tok common.Address) common.Address {
	venue, _ := c.Route(stateDB, tok)
	return venue
}

// SetBasketStrategy stores the raw strategy value of [basket]. Values other
// than 1 and 2 are kept as written and behave as no strategy. A nil value
// clears the strategy.
func (c *Converter) SetBasketStrategy(stateDB contract.StateDB, caller, basket common.Address, value *uint256.Int) error {
	return withSnapshot(stateDB, func() error {
		if err := c.onlyOwner(stateDB, caller); err != nil {
			return err
		}
		if value == nil {
			value = new(uint256.Int)
		}
		c.slot(stateDB).SetUint256(storage.Key(strategyPrefix, basket.Bytes()), value)
		return nil
	})
}

// BasketStrategy returns the raw strategy value stored for [basket].
func (c *Converter) BasketStrategy(stateDB contract.StateDB, basket common.Address) *uint256.Int {
	return c.slot(stateDB).Uint256(storage.Key(strategyPrefix, basket.Bytes()))
}

func (c *Converter) tag(stateDB contract.StateDB, basket common.Address) Tag {
	v := c.BasketStrategy(stateDB, basket)
	if !v.IsUint64() {
		return TagNone
	}
	switch t := Tag(v.Uint64()); t {
	case TagDirectExit, TagRotatingExit:
		return t
	default:
		return TagNone
	}
}
