// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package amm implements a constant-product venue with a 0.3% swap fee:
// pair reserves live in the router's storage and pair balances in the
// token ledger.
package amm

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/treasury/contract"
	"github.com/luxfi/treasury/storage"
	"github.com/luxfi/treasury/token"
)

// Revert reasons, verbatim
var (
	ErrIdenticalAddresses       = errors.New("UniswapV2: IDENTICAL_ADDRESSES")
	ErrZeroAddress              = errors.New("UniswapV2: ZERO_ADDRESS")
	ErrPairExists               = errors.New("UniswapV2: PAIR_EXISTS")
	ErrPairNotFound             = errors.New("UniswapV2: PAIR_NOT_FOUND")
	ErrInvalidPath              = errors.New("UniswapV2Library: INVALID_PATH")
	ErrInsufficientInputAmount  = errors.New("UniswapV2Library: INSUFFICIENT_INPUT_AMOUNT")
	ErrInsufficientOutputAmount = errors.New("UniswapV2Library: INSUFFICIENT_OUTPUT_AMOUNT")
	ErrInsufficientLiquidity    = errors.New("UniswapV2Library: INSUFFICIENT_LIQUIDITY")
	ErrExcessiveInputAmount     = errors.New("UniswapV2Router: EXCESSIVE_INPUT_AMOUNT")
	ErrRouterOutputTooLow       = errors.New("UniswapV2Router: INSUFFICIENT_OUTPUT_AMOUNT")
	ErrTransferFromFailed       = errors.New("TransferHelper: TRANSFER_FROM_FAILED")
	ErrTransferFailed           = errors.New("TransferHelper: TRANSFER_FAILED")
	ErrMathOverflow             = errors.New("ds-math-mul-overflow")
)

// Storage prefixes
var (
	pairPrefix    = []byte("amm.pair")
	reservePrefix = []byte("amm.reserve")
)

// Tokens is the ledger a venue settles against.
type Tokens interface {
	BalanceOf(stateDB contract.StateDB, tok, holder common.Address) *uint256.Int
	Transfer(stateDB contract.StateDB, tok, from, to common.Address, amount *uint256.Int) error
	TransferFrom(stateDB contract.StateDB, tok, spender, owner, to common.Address, amount *uint256.Int) error
}

// Router is a constant-product venue rooted at a fixed address.
type Router struct {
	addr   common.Address
	tokens Tokens
}

// NewRouter returns the venue at [addr] settling on [tokens].
func NewRouter(addr common.Address, tokens Tokens) *Router {
	if tokens == nil {
		tokens = token.Ledger{}
	}
	return &Router{addr: addr, tokens: tokens}
}

// Address returns the account that must be approved to spend swap input.
func (r *Router) Address() common.Address {
	return r.addr
}

// SortTokens orders two token addresses the way pairs store them.
func SortTokens(a, b common.Address) (common.Address, common.Address, error) {
	if a == b {
		return common.Address{}, common.Address{}, ErrIdenticalAddresses
	}
	token0, token1 := a, b
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		token0, token1 = b, a
	}
	if token0 == (common.Address{}) {
		return common.Address{}, common.Address{}, ErrZeroAddress
	}
	return token0, token1, nil
}

// PairFor derives the pair account for two tokens on this venue.
func (r *Router) PairFor(a, b common.Address) (common.Address, error) {
	token0, token1, err := SortTokens(a, b)
	if err != nil {
		return common.Address{}, err
	}
	key := storage.Key(pairPrefix, r.addr.Bytes(), token0.Bytes(), token1.Bytes())
	return common.BytesToAddress(key[12:]), nil
}

func (r *Router) slot(stateDB contract.StateDB) storage.Slot {
	return storage.Slot{StateDB: stateDB, Account: r.addr}
}

func reserveKey(pair common.Address, i uint64) common.Hash {
	return storage.Key(reservePrefix, pair.Bytes(), storage.Index(i))
}

func existsKey(pair common.Address) common.Hash {
	return storage.Key(pairPrefix, pair.Bytes())
}

// CreatePair registers an empty pair for two tokens.
func (r *Router) CreatePair(stateDB contract.StateDB, a, b common.Address) (common.Address, error) {
	pair, err := r.PairFor(a, b)
	if err != nil {
		return common.Address{}, err
	}
	s := r.slot(stateDB)
	if s.Bool(existsKey(pair)) {
		return common.Address{}, ErrPairExists
	}
	s.SetBool(existsKey(pair), true)
	stateDB.CreateAccount(pair)
	return pair, nil
}

// GetReserves returns the reserves of the pair ordered as (a, b).
func (r *Router) GetReserves(stateDB contract.StateDB, a, b common.Address) (*uint256.Int, *uint256.Int, error) {
	token0, _, err := SortTokens(a, b)
	if err != nil {
		return nil, nil, err
	}
	pair, _ := r.PairFor(a, b)
	s := r.slot(stateDB)
	if !s.Bool(existsKey(pair)) {
		return nil, nil, fmt.Errorf("%w: %s/%s", ErrPairNotFound, a, b)
	}
	reserve0, reserve1 := s.Uint256(reserveKey(pair, 0)), s.Uint256(reserveKey(pair, 1))
	if a == token0 {
		return reserve0, reserve1, nil
	}
	return reserve1, reserve0, nil
}

// sync records the pair's current token balances as its reserves.
func (r *Router) sync(stateDB contract.StateDB, a, b common.Address) error {
	token0, token1, err := SortTokens(a, b)
	if err != nil {
		return err
	}
	pair, _ := r.PairFor(a, b)
	s := r.slot(stateDB)
	s.SetUint256(reserveKey(pair, 0), r.tokens.BalanceOf(stateDB, token0, pair))
	s.SetUint256(reserveKey(pair, 1), r.tokens.BalanceOf(stateDB, token1, pair))
	return nil
}

// AddLiquidity pulls both amounts from [provider], creating the pair when
// missing. The router must be approved for both tokens.
func (r *Router) AddLiquidity(
	stateDB contract.StateDB,
	provider common.Address,
	a, b common.Address,
	amountA, amountB *uint256.Int,
) error {
	pair, err := r.PairFor(a, b)
	if err != nil {
		return err
	}
	if !r.slot(stateDB).Bool(existsKey(pair)) {
		if _, err := r.CreatePair(stateDB, a, b); err != nil {
			return err
		}
	}
	if err := r.tokens.TransferFrom(stateDB, a, r.addr, provider, pair, amountA); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFromFailed, err)
	}
	if err := r.tokens.TransferFrom(stateDB, b, r.addr, provider, pair, amountB); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFromFailed, err)
	}
	return r.sync(stateDB, a, b)
}

// GetAmountsOut performs chained GetAmountOut calculations on any number of pairs
func (r *Router) GetAmountsOut(stateDB contract.StateDB, amountIn *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	if len(path) < 2 {
		return nil, ErrInvalidPath
	}
	amounts := make([]*uint256.Int, len(path))
	amounts[0] = new(uint256.Int).Set(amountIn)
	for i := 0; i < len(path)-1; i++ {
		reserveIn, reserveOut, err := r.GetReserves(stateDB, path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		amounts[i+1], err = GetAmountOut(amounts[i], reserveIn, reserveOut)
		if err != nil {
			return nil, err
		}
	}
	return amounts, nil
}

// GetAmountsIn performs chained GetAmountIn calculations on any number of pairs
func (r *Router) GetAmountsIn(stateDB contract.StateDB, amountOut *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	if len(path) < 2 {
		return nil, ErrInvalidPath
	}
	amounts := make([]*uint256.Int, len(path))
	amounts[len(amounts)-1] = new(uint256.Int).Set(amountOut)
	for i := len(path) - 1; i > 0; i-- {
		reserveIn, reserveOut, err := r.GetReserves(stateDB, path[i-1], path[i])
		if err != nil {
			return nil, err
		}
		amounts[i-1], err = GetAmountIn(amounts[i], reserveIn, reserveOut)
		if err != nil {
			return nil, err
		}
	}
	return amounts, nil
}

// SwapTokensForExactTokens receives exactly [amountOut] of the last path
// token at [to], pulling at most [amountInMax] of the first from [sender].
func (r *Router) SwapTokensForExactTokens(
	stateDB contract.StateDB,
	sender common.Address,
	amountOut, amountInMax *uint256.Int,
	path []common.Address,
	to common.Address,
) ([]*uint256.Int, error) {
	amounts, err := r.GetAmountsIn(stateDB, amountOut, path)
	if err != nil {
		return nil, err
	}
	if amounts[0].Gt(amountInMax) {
		return nil, ErrExcessiveInputAmount
	}
	if err := r.swap(stateDB, sender, amounts, path, to); err != nil {
		return nil, err
	}
	return amounts, nil
}

// SwapExactTokensForTokens sells exactly [amountIn] of the first path token.
func (r *Router) SwapExactTokensForTokens(
	stateDB contract.StateDB,
	sender common.Address,
	amountIn, amountOutMin *uint256.Int,
	path []common.Address,
	to common.Address,
) ([]*uint256.Int, error) {
	amounts, err := r.GetAmountsOut(stateDB, amountIn, path)
	if err != nil {
		return nil, err
	}
	if amounts[len(amounts)-1].Lt(amountOutMin) {
		return nil, ErrRouterOutputTooLow
	}
	if err := r.swap(stateDB, sender, amounts, path, to); err != nil {
		return nil, err
	}
	return amounts, nil
}

func (r *Router) swap(stateDB contract.StateDB, sender common.Address, amounts []*uint256.Int, path []common.Address, to common.Address) error {
	firstPair, err := r.PairFor(path[0], path[1])
	if err != nil {
		return err
	}
	if err := r.tokens.TransferFrom(stateDB, path[0], r.addr, sender, firstPair, amounts[0]); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFromFailed, err)
	}
	for i := 0; i < len(path)-1; i++ {
		pair, _ := r.PairFor(path[i], path[i+1])
		recipient := to
		if i < len(path)-2 {
			recipient, err = r.PairFor(path[i+1], path[i+2])
			if err != nil {
				return err
			}
		}
		if err := r.tokens.Transfer(stateDB, path[i+1], pair, recipient, amounts[i+1]); err != nil {
			return fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
		if err := r.sync(stateDB, path[i], path[i+1]); err != nil {
			return err
		}
	}
	return nil
}
