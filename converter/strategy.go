// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package converter

import (
	"github.com/luxfi/geth/common"
	"github.com/luxfi/treasury/contract"
)

// Kind is the strategy kind reported in the Swap event.
type Kind uint8

const (
	KindDirect    Kind = 1
	KindBaseAsset Kind = 2
	KindRoute     Kind = 4
)

// Variant selects how a token is converted.
type Variant uint8

const (
	Direct Variant = iota + 1
	BaseAsset
	GenericRoute
	BasketDirectExit
	BasketRotatingExit
)

// Kind returns the event kind of [v]. Both basket exits report as routes.
func (v Variant) Kind() Kind {
	switch v {
	case Direct:
		return KindDirect
	case BaseAsset:
		return KindBaseAsset
	default:
		return KindRoute
	}
}

func (v Variant) String() string {
	switch v {
	case Direct:
		return "direct"
	case BaseAsset:
		return "baseAsset"
	case GenericRoute:
		return "route"
	case BasketDirectExit:
		return "basketDirectExit"
	case BasketRotatingExit:
		return "basketRotatingExit"
	default:
		return "unknown"
	}
}

// Strategy is the resolved conversion plan of one token.
type Strategy struct {
	Variant Variant
	Token   common.Address

	// GenericRoute
	Venue common.Address
	Path  []common.Address

	// BasketRotatingExit: the member exited this time and how that member
	// reaches the target token.
	Member common.Address
	Leaf   *Strategy
}

// Resolve returns the strategy [tok] converts with right now.
func (c *Converter) Resolve(stateDB contract.StateDB, tok common.Address) (Strategy, error) {
	if tok == c.TargetToken || tok == c.BaseToken || isNative(tok) {
		return c.resolveLeaf(stateDB, tok), nil
	}
	switch c.tag(stateDB, tok) {
	case TagDirectExit:
		return Strategy{Variant: BasketDirectExit, Token: tok}, nil
	case TagRotatingExit:
		member, err := c.currentExitMember(stateDB, tok)
		if err != nil {
			return Strategy{}, err
		}
		leaf := c.resolveLeaf(stateDB, member)
		return Strategy{Variant: BasketRotatingExit, Token: tok, Member: member, Leaf: &leaf}, nil
	}
	return c.resolveLeaf(stateDB, tok), nil
}

// resolveLeaf resolves a token without consulting basket tags.
func (c *Converter) resolveLeaf(stateDB contract.StateDB, tok common.Address) Strategy {
	switch {
	case tok == c.TargetToken:
		return Strategy{Variant: Direct, Token: tok}
	case tok == c.BaseToken || isNative(tok):
		return Strategy{Variant: BaseAsset, Token: tok}
	}
	venue, path := c.Route(stateDB, tok)
	return Strategy{Variant: GenericRoute, Token: tok, Venue: venue, Path: path}
}
