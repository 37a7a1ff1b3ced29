// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package basket implements weighted multi-token pools with single-token
// exit and a community exit fee. Each pool's address doubles as the
// address of its share token in the token ledger.
package basket

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/treasury/contract"
	"github.com/luxfi/treasury/storage"
	"github.com/luxfi/treasury/token"
)

const MaxBoundTokens = 8

// Revert reasons, verbatim
var (
	ErrPoolExists          = errors.New("ERR_POOL_EXISTS")
	ErrPoolNotFound        = errors.New("ERR_POOL_NOT_FOUND")
	ErrNotController       = errors.New("ERR_NOT_CONTROLLER")
	ErrIsBound             = errors.New("ERR_IS_BOUND")
	ErrNotBound            = errors.New("ERR_NOT_BOUND")
	ErrMaxTokens           = errors.New("ERR_MAX_TOKENS")
	ErrIsFinalized         = errors.New("ERR_IS_FINALIZED")
	ErrNotFinalized        = errors.New("ERR_NOT_FINALIZED")
	ErrMaxOutRatio         = errors.New("ERR_MAX_OUT_RATIO")
	ErrMathApprox          = errors.New("ERR_MATH_APPROX")
	ErrLimitIn             = errors.New("ERR_LIMIT_IN")
	ErrLimitOut            = errors.New("ERR_LIMIT_OUT")
	ErrInsufficientBal     = errors.New("ERR_INSUFFICIENT_BAL")
	ErrPullUnderlying      = errors.New("ERR_ERC20_FALSE")
	ErrInvalidCommunityFee = errors.New("ERR_INVALID_COMMUNITY_FEE")
)

var (
	// InitPoolSupply is minted to the controller on Finalize.
	InitPoolSupply = new(uint256.Int).Mul(uint256.NewInt(100), BONE)

	// maxOutRatio caps a single exit at a third of the member balance.
	maxOutRatio = new(uint256.Int).AddUint64(new(uint256.Int).Div(BONE, uint256.NewInt(3)), 1)
)

// Storage prefixes
var (
	poolPrefix   = []byte("basket.pool")
	tokensPrefix = []byte("basket.tokens")
	recordPrefix = []byte("basket.record")
)

// Tokens is the ledger pools settle against.
type Tokens interface {
	BalanceOf(stateDB contract.StateDB, tok, holder common.Address) *uint256.Int
	Transfer(stateDB contract.StateDB, tok, from, to common.Address, amount *uint256.Int) error
	TransferFrom(stateDB contract.StateDB, tok, spender, owner, to common.Address, amount *uint256.Int) error
	Mint(stateDB contract.StateDB, tok, to common.Address, amount *uint256.Int) error
	Burn(stateDB contract.StateDB, tok, from common.Address, amount *uint256.Int) error
	TotalSupply(stateDB contract.StateDB, tok common.Address) *uint256.Int
}

// Params configures a new pool.
type Params struct {
	Controller           common.Address
	SwapFee              *uint256.Int
	CommunityExitFee     *uint256.Int
	CommunityFeeReceiver common.Address
}

// Pools manages every basket pool from one registry account.
type Pools struct {
	addr   common.Address
	tokens Tokens
}

// NewPools returns the pool registry at [addr].
func NewPools(addr common.Address, tokens Tokens) *Pools {
	if tokens == nil {
		tokens = token.Ledger{}
	}
	return &Pools{addr: addr, tokens: tokens}
}

// Address returns the registry account.
func (p *Pools) Address() common.Address {
	return p.addr
}

func (p *Pools) slot(stateDB contract.StateDB) storage.Slot {
	return storage.Slot{StateDB: stateDB, Account: p.addr}
}

func poolKey(pool common.Address, field string) common.Hash {
	return storage.Key(poolPrefix, pool.Bytes(), []byte(field))
}

func recordKey(pool, tok common.Address, field string) common.Hash {
	return storage.Key(recordPrefix, pool.Bytes(), tok.Bytes(), []byte(field))
}

func (p *Pools) tokenList(stateDB contract.StateDB, pool common.Address) storage.AddressList {
	return storage.AddressList{Slot: p.slot(stateDB), Prefix: tokensPrefix, ID: pool.Bytes()}
}

func (p *Pools) requirePool(stateDB contract.StateDB, pool common.Address) error {
	if !p.slot(stateDB).Bool(poolKey(pool, "exists")) {
		return fmt.Errorf("%w: %s", ErrPoolNotFound, pool)
	}
	return nil
}

func (p *Pools) requireController(stateDB contract.StateDB, pool, caller common.Address) error {
	if err := p.requirePool(stateDB, pool); err != nil {
		return err
	}
	if p.slot(stateDB).Address(poolKey(pool, "controller")) != caller {
		return ErrNotController
	}
	return nil
}

// Create registers an unfinalized pool at [pool].
func (p *Pools) Create(stateDB contract.StateDB, pool common.Address, params Params) error {
	s := p.slot(stateDB)
	if s.Bool(poolKey(pool, "exists")) {
		return ErrPoolExists
	}
	if params.CommunityExitFee == nil || !params.CommunityExitFee.Lt(BONE) {
		return ErrInvalidCommunityFee
	}
	swapFee := params.SwapFee
	if swapFee == nil {
		swapFee = new(uint256.Int)
	}
	s.SetBool(poolKey(pool, "exists"), true)
	s.SetAddress(poolKey(pool, "controller"), params.Controller)
	s.SetUint256(poolKey(pool, "swapFee"), swapFee)
	s.SetUint256(poolKey(pool, "communityExitFee"), params.CommunityExitFee)
	s.SetAddress(poolKey(pool, "communityFeeReceiver"), params.CommunityFeeReceiver)
	stateDB.CreateAccount(pool)
	return nil
}

// Finalize mints the initial share supply to the controller.
func (p *Pools) Finalize(stateDB contract.StateDB, pool, caller common.Address) error {
	if err := p.requireController(stateDB, pool, caller); err != nil {
		return err
	}
	s := p.slot(stateDB)
	if s.Bool(poolKey(pool, "finalized")) {
		return ErrIsFinalized
	}
	s.SetBool(poolKey(pool, "finalized"), true)
	return p.tokens.Mint(stateDB, pool, caller, InitPoolSupply)
}

// Bind adds [tok] to the pool pulling [balance] from the controller, who
// must have approved the pool.
func (p *Pools) Bind(stateDB contract.StateDB, pool, caller, tok common.Address, balance, denorm *uint256.Int) error {
	if err := p.requireController(stateDB, pool, caller); err != nil {
		return err
	}
	s := p.slot(stateDB)
	if s.Bool(recordKey(pool, tok, "bound")) {
		return ErrIsBound
	}
	list := p.tokenList(stateDB, pool)
	members := list.Get()
	if len(members) >= MaxBoundTokens {
		return ErrMaxTokens
	}
	if err := p.tokens.TransferFrom(stateDB, tok, pool, caller, pool, balance); err != nil {
		return fmt.Errorf("%w: %w", ErrPullUnderlying, err)
	}
	s.SetBool(recordKey(pool, tok, "bound"), true)
	s.SetUint256(recordKey(pool, tok, "balance"), balance)
	s.SetUint256(recordKey(pool, tok, "denorm"), denorm)
	total := s.Uint256(poolKey(pool, "totalWeight"))
	s.SetUint256(poolKey(pool, "totalWeight"), new(uint256.Int).Add(total, denorm))
	list.Set(append(members, tok))
	return nil
}

// Unbind removes [tok] and returns its balance to the controller. The last
// member takes the removed member's position.
func (p *Pools) Unbind(stateDB contract.StateDB, pool, caller, tok common.Address) error {
	if err := p.requireController(stateDB, pool, caller); err != nil {
		return err
	}
	s := p.slot(stateDB)
	if !s.Bool(recordKey(pool, tok, "bound")) {
		return ErrNotBound
	}
	balance := s.Uint256(recordKey(pool, tok, "balance"))
	denorm := s.Uint256(recordKey(pool, tok, "denorm"))

	list := p.tokenList(stateDB, pool)
	members := list.Get()
	for i, m := range members {
		if m == tok {
			last := len(members) - 1
			members[i] = members[last]
			members = members[:last]
			break
		}
	}
	list.Set(members)

	total := s.Uint256(poolKey(pool, "totalWeight"))
	s.SetUint256(poolKey(pool, "totalWeight"), new(uint256.Int).Sub(total, denorm))
	s.SetBool(recordKey(pool, tok, "bound"), false)
	s.SetUint256(recordKey(pool, tok, "balance"), new(uint256.Int))
	s.SetUint256(recordKey(pool, tok, "denorm"), new(uint256.Int))

	if err := p.tokens.Transfer(stateDB, tok, pool, caller, balance); err != nil {
		return fmt.Errorf("%w: %w", ErrPullUnderlying, err)
	}
	return nil
}

// CurrentTokens returns the bound members in pool order.
func (p *Pools) CurrentTokens(stateDB contract.StateDB, pool common.Address) ([]common.Address, error) {
	if err := p.requirePool(stateDB, pool); err != nil {
		return nil, err
	}
	return p.tokenList(stateDB, pool).Get(), nil
}

// IsBound reports whether [tok] is a member of [pool].
func (p *Pools) IsBound(stateDB contract.StateDB, pool, tok common.Address) bool {
	return p.slot(stateDB).Bool(recordKey(pool, tok, "bound"))
}

func (p *Pools) Balance(stateDB contract.StateDB, pool, tok common.Address) *uint256.Int {
	return p.slot(stateDB).Uint256(recordKey(pool, tok, "balance"))
}

func (p *Pools) DenormalizedWeight(stateDB contract.StateDB, pool, tok common.Address) *uint256.Int {
	return p.slot(stateDB).Uint256(recordKey(pool, tok, "denorm"))
}

func (p *Pools) TotalDenormalizedWeight(stateDB contract.StateDB, pool common.Address) *uint256.Int {
	return p.slot(stateDB).Uint256(poolKey(pool, "totalWeight"))
}

func (p *Pools) SwapFee(stateDB contract.StateDB, pool common.Address) *uint256.Int {
	return p.slot(stateDB).Uint256(poolKey(pool, "swapFee"))
}

// CommunityExitFee returns the fraction of every exit paid to the
// community fee receiver.
func (p *Pools) CommunityExitFee(stateDB contract.StateDB, pool common.Address) *uint256.Int {
	return p.slot(stateDB).Uint256(poolKey(pool, "communityExitFee"))
}

// TotalSupply returns the outstanding pool shares.
func (p *Pools) TotalSupply(stateDB contract.StateDB, pool common.Address) *uint256.Int {
	return p.tokens.TotalSupply(stateDB, pool)
}

type exitRecord struct {
	balance     *uint256.Int
	denorm      *uint256.Int
	totalWeight *uint256.Int
	supply      *uint256.Int
	swapFee     *uint256.Int
}

func (p *Pools) exitRecord(stateDB contract.StateDB, pool, tok common.Address) (exitRecord, error) {
	if err := p.requirePool(stateDB, pool); err != nil {
		return exitRecord{}, err
	}
	if !p.IsBound(stateDB, pool, tok) {
		return exitRecord{}, ErrNotBound
	}
	return exitRecord{
		balance:     p.Balance(stateDB, pool, tok),
		denorm:      p.DenormalizedWeight(stateDB, pool, tok),
		totalWeight: p.TotalDenormalizedWeight(stateDB, pool),
		supply:      p.TotalSupply(stateDB, pool),
		swapFee:     p.SwapFee(stateDB, pool),
	}, nil
}

// PoolInGivenSingleOut prices an exit of exactly [amountOut] of [tok]
// against live pool state.
func (p *Pools) PoolInGivenSingleOut(stateDB contract.StateDB, pool, tok common.Address, amountOut *uint256.Int) (*uint256.Int, error) {
	r, err := p.exitRecord(stateDB, pool, tok)
	if err != nil {
		return nil, err
	}
	return CalcPoolInGivenSingleOut(r.balance, r.denorm, r.supply, r.totalWeight, amountOut, r.swapFee)
}

// SingleOutGivenPoolIn prices burning [poolIn] shares for [tok] against
// live pool state.
func (p *Pools) SingleOutGivenPoolIn(stateDB contract.StateDB, pool, tok common.Address, poolIn *uint256.Int) (*uint256.Int, error) {
	r, err := p.exitRecord(stateDB, pool, tok)
	if err != nil {
		return nil, err
	}
	return CalcSingleOutGivenPoolIn(r.balance, r.denorm, r.supply, r.totalWeight, poolIn, r.swapFee)
}

// ExitswapExternAmountOut burns the caller's shares for exactly
// [tokenAmountOut] of [tokenOut]. The community fee is taken from the
// output, so the caller receives the amount net of it.
func (p *Pools) ExitswapExternAmountOut(
	stateDB contract.StateDB,
	pool, caller, tokenOut common.Address,
	tokenAmountOut, maxPoolAmountIn *uint256.Int,
) (*uint256.Int, error) {
	r, err := p.exitRecord(stateDB, pool, tokenOut)
	if err != nil {
		return nil, err
	}
	limit, err := BMul(r.balance, maxOutRatio)
	if err != nil {
		return nil, err
	}
	if tokenAmountOut.Gt(limit) {
		return nil, ErrMaxOutRatio
	}
	poolAmountIn, err := CalcPoolInGivenSingleOut(r.balance, r.denorm, r.supply, r.totalWeight, tokenAmountOut, r.swapFee)
	if err != nil {
		return nil, err
	}
	if poolAmountIn.IsZero() {
		return nil, ErrMathApprox
	}
	if poolAmountIn.Gt(maxPoolAmountIn) {
		return nil, ErrLimitIn
	}
	if err := p.settleExit(stateDB, pool, caller, tokenOut, r.balance, tokenAmountOut, poolAmountIn); err != nil {
		return nil, err
	}
	return poolAmountIn, nil
}

// ExitswapPoolAmountIn burns exactly [poolAmountIn] of the caller's shares
// for as much [tokenOut] as they price to.
func (p *Pools) ExitswapPoolAmountIn(
	stateDB contract.StateDB,
	pool, caller, tokenOut common.Address,
	poolAmountIn, minAmountOut *uint256.Int,
) (*uint256.Int, error) {
	r, err := p.exitRecord(stateDB, pool, tokenOut)
	if err != nil {
		return nil, err
	}
	tokenAmountOut, err := CalcSingleOutGivenPoolIn(r.balance, r.denorm, r.supply, r.totalWeight, poolAmountIn, r.swapFee)
	if err != nil {
		return nil, err
	}
	if tokenAmountOut.Lt(minAmountOut) {
		return nil, ErrLimitOut
	}
	limit, err := BMul(r.balance, maxOutRatio)
	if err != nil {
		return nil, err
	}
	if tokenAmountOut.Gt(limit) {
		return nil, ErrMaxOutRatio
	}
	if err := p.settleExit(stateDB, pool, caller, tokenOut, r.balance, tokenAmountOut, poolAmountIn); err != nil {
		return nil, err
	}
	return tokenAmountOut, nil
}

func (p *Pools) settleExit(
	stateDB contract.StateDB,
	pool, caller, tokenOut common.Address,
	balance, tokenAmountOut, poolAmountIn *uint256.Int,
) error {
	if p.tokens.BalanceOf(stateDB, pool, caller).Lt(poolAmountIn) {
		return ErrInsufficientBal
	}
	net, fee, err := ExitFeeSplit(tokenAmountOut, p.CommunityExitFee(stateDB, pool))
	if err != nil {
		return err
	}

	s := p.slot(stateDB)
	s.SetUint256(recordKey(pool, tokenOut, "balance"), new(uint256.Int).Sub(balance, tokenAmountOut))
	if err := p.tokens.Burn(stateDB, pool, caller, poolAmountIn); err != nil {
		return err
	}
	if err := p.tokens.Transfer(stateDB, tokenOut, pool, caller, net); err != nil {
		return fmt.Errorf("%w: %w", ErrPullUnderlying, err)
	}
	if fee.IsZero() {
		return nil
	}
	receiver := s.Address(poolKey(pool, "communityFeeReceiver"))
	if err := p.tokens.Transfer(stateDB, tokenOut, pool, receiver, fee); err != nil {
		return fmt.Errorf("%w: %w", ErrPullUnderlying, err)
	}
	return nil
}

// ExitFeeSplit returns what a caller nets from a gross exit of [gross] and
// the community fee withheld.
func ExitFeeSplit(gross, communityExitFee *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	fee, err := BMul(gross, communityExitFee)
	if err != nil {
		return nil, nil, err
	}
	return new(uint256.Int).Sub(gross, fee), fee, nil
}
