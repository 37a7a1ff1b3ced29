// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package keeper implements the keeper registry: staked users with poker
// keys, client slots with minimal deposits and gas price caps, oracle
// prices and gas compensation paid from client credit.
package keeper

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/luxfi/treasury/contract"
	"github.com/luxfi/treasury/storage"
	"github.com/luxfi/treasury/token"
)

var (
	ErrNotOwner            = errors.New("Ownable: caller is not the owner")
	ErrAlreadyInitialized  = errors.New("Contract instance has already been initialized")
	ErrNotUserAdmin        = errors.New("ONLY_USER_ADMIN")
	ErrUnknownUser         = errors.New("INVALID_USER")
	ErrUnknownClient       = errors.New("CLIENT_NOT_ACTIVE")
	ErrInsufficientDeposit = errors.New("INSUFFICIENT_DEPOSIT")
	ErrInsufficientCredit  = errors.New("INSUFFICIENT_CREDIT")
	ErrInsufficientNative  = errors.New("INSUFFICIENT_NATIVE_RESERVE")
	ErrMissingPrice        = errors.New("MISSING_PRICE")
	ErrAlreadySettled      = errors.New("ALREADY_REWARDED")
	ErrZeroAddress         = errors.New("ZERO_ADDRESS")
)

// Storage prefixes
var (
	ownerKey       = storage.Key([]byte("keeper.owner"))
	initializedKey = storage.Key([]byte("keeper.initialized"))
	userCountKey   = storage.Key([]byte("keeper.userCount"))

	userPrefix    = []byte("keeper.user")
	clientPrefix  = []byte("keeper.client")
	pricePrefix   = []byte("keeper.price")
	settledPrefix = []byte("keeper.settled")
)

// Tokens is the ledger deposits and credit are held in.
type Tokens interface {
	BalanceOf(stateDB contract.StateDB, tok, holder common.Address) *uint256.Int
	Transfer(stateDB contract.StateDB, tok, from, to common.Address, amount *uint256.Int) error
	TransferFrom(stateDB contract.StateDB, tok, spender, owner, to common.Address, amount *uint256.Int) error
}

// User is a staked keeper.
type User struct {
	ID       uint64
	Admin    common.Address
	PokerKey common.Address
	Deposit  *uint256.Int
}

// Client is a protocol paying keepers to poke it.
type Client struct {
	Active         bool
	MinimalDeposit *uint256.Int
	MaxGasPrice    *uint256.Int
	Credit         *uint256.Int
}

// Registry is the keeper registry rooted at a fixed address. Deposits and
// credit are denominated in the staking token.
type Registry struct {
	addr         common.Address
	stakingToken common.Address
	tokens       Tokens
}

// NewRegistry returns the registry at [addr] staking [stakingToken].
func NewRegistry(addr, stakingToken common.Address, tokens Tokens) *Registry {
	if tokens == nil {
		tokens = token.Ledger{}
	}
	return &Registry{addr: addr, stakingToken: stakingToken, tokens: tokens}
}

func (r *Registry) Address() common.Address { return r.addr }

func (r *Registry) StakingToken() common.Address { return r.stakingToken }

func (r *Registry) slot(stateDB contract.StateDB) storage.Slot {
	return storage.Slot{StateDB: stateDB, Account: r.addr}
}

func userKey(id uint64, field string) common.Hash {
	return storage.Key(userPrefix, storage.Index(id), []byte(field))
}

func clientKey(client common.Address, field string) common.Hash {
	return storage.Key(clientPrefix, client.Bytes(), []byte(field))
}

// Initialize sets the registry owner once.
func (r *Registry) Initialize(stateDB contract.StateDB, owner common.Address) error {
	s := r.slot(stateDB)
	if s.Bool(initializedKey) {
		return ErrAlreadyInitialized
	}
	if owner == (common.Address{}) {
		return ErrZeroAddress
	}
	s.SetBool(initializedKey, true)
	s.SetAddress(ownerKey, owner)
	stateDB.CreateAccount(r.addr)
	return nil
}

func (r *Registry) Owner(stateDB contract.StateDB) common.Address {
	return r.slot(stateDB).Address(ownerKey)
}

func (r *Registry) onlyOwner(stateDB contract.StateDB, caller common.Address) error {
	if r.Owner(stateDB) != caller {
		return ErrNotOwner
	}
	return nil
}

// CreateUser registers a keeper and pulls [deposit] from [caller], who must
// have approved the registry. IDs start at 1.
func (r *Registry) CreateUser(stateDB contract.StateDB, caller, admin, pokerKey common.Address, deposit *uint256.Int) (uint64, error) {
	if admin == (common.Address{}) || pokerKey == (common.Address{}) {
		return 0, ErrZeroAddress
	}
	s := r.slot(stateDB)
	id := s.Uint64(userCountKey) + 1
	s.SetUint64(userCountKey, id)
	s.SetAddress(userKey(id, "admin"), admin)
	s.SetAddress(userKey(id, "pokerKey"), pokerKey)
	if !deposit.IsZero() {
		if err := r.Deposit(stateDB, caller, id, deposit); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// Deposit adds stake to user [id].
func (r *Registry) Deposit(stateDB contract.StateDB, caller common.Address, id uint64, amount *uint256.Int) error {
	if _, err := r.User(stateDB, id); err != nil {
		return err
	}
	if err := r.tokens.TransferFrom(stateDB, r.stakingToken, r.addr, caller, r.addr, amount); err != nil {
		return err
	}
	s := r.slot(stateDB)
	s.SetUint256(userKey(id, "deposit"), new(uint256.Int).Add(s.Uint256(userKey(id, "deposit")), amount))
	return nil
}

// Withdraw returns stake to the user admin.
func (r *Registry) Withdraw(stateDB contract.StateDB, caller common.Address, id uint64, amount *uint256.Int) error {
	user, err := r.User(stateDB, id)
	if err != nil {
		return err
	}
	if user.Admin != caller {
		return ErrNotUserAdmin
	}
	if user.Deposit.Lt(amount) {
		return ErrInsufficientDeposit
	}
	r.slot(stateDB).SetUint256(userKey(id, "deposit"), new(uint256.Int).Sub(user.Deposit, amount))
	return r.tokens.Transfer(stateDB, r.stakingToken, r.addr, caller, amount)
}

// SetPokerKey rotates the key allowed to act for user [id].
func (r *Registry) SetPokerKey(stateDB contract.StateDB, caller common.Address, id uint64, pokerKey common.Address) error {
	user, err := r.User(stateDB, id)
	if err != nil {
		return err
	}
	if user.Admin != caller {
		return ErrNotUserAdmin
	}
	if pokerKey == (common.Address{}) {
		return ErrZeroAddress
	}
	r.slot(stateDB).SetAddress(userKey(id, "pokerKey"), pokerKey)
	return nil
}

// User returns user [id].
func (r *Registry) User(stateDB contract.StateDB, id uint64) (User, error) {
	s := r.slot(stateDB)
	if id == 0 || id > s.Uint64(userCountKey) {
		return User{}, fmt.Errorf("%w: %d", ErrUnknownUser, id)
	}
	return User{
		ID:       id,
		Admin:    s.Address(userKey(id, "admin")),
		PokerKey: s.Address(userKey(id, "pokerKey")),
		Deposit:  s.Uint256(userKey(id, "deposit")),
	}, nil
}

// AddClient activates [client] with its deposit floor and gas price cap.
// A zero cap leaves the gas price uncapped.
func (r *Registry) AddClient(stateDB contract.StateDB, caller, client common.Address, minimalDeposit, maxGasPrice *uint256.Int) error {
	if err := r.onlyOwner(stateDB, caller); err != nil {
		return err
	}
	s := r.slot(stateDB)
	s.SetBool(clientKey(client, "active"), true)
	s.SetUint256(clientKey(client, "minimalDeposit"), minimalDeposit)
	s.SetUint256(clientKey(client, "maxGasPrice"), maxGasPrice)
	return nil
}

// AddCredit funds [client]'s compensation budget from [caller].
func (r *Registry) AddCredit(stateDB contract.StateDB, caller, client common.Address, amount *uint256.Int) error {
	c, err := r.Client(stateDB, client)
	if err != nil {
		return err
	}
	if err := r.tokens.TransferFrom(stateDB, r.stakingToken, r.addr, caller, r.addr, amount); err != nil {
		return err
	}
	r.slot(stateDB).SetUint256(clientKey(client, "credit"), new(uint256.Int).Add(c.Credit, amount))
	return nil
}

// FundNative moves native value from [caller] into the reserve used for
// native-denominated rewards.
func (r *Registry) FundNative(stateDB contract.StateDB, caller common.Address, amount *uint256.Int) error {
	if stateDB.GetBalance(caller).Lt(amount) {
		return ErrInsufficientNative
	}
	stateDB.SubBalance(caller, amount, tracing.BalanceChangeTransfer)
	stateDB.AddBalance(r.addr, amount, tracing.BalanceChangeTransfer)
	return nil
}

// Client returns the record of an active client.
func (r *Registry) Client(stateDB contract.StateDB, client common.Address) (Client, error) {
	s := r.slot(stateDB)
	if !s.Bool(clientKey(client, "active")) {
		return Client{}, fmt.Errorf("%w: %s", ErrUnknownClient, client)
	}
	return Client{
		Active:         true,
		MinimalDeposit: s.Uint256(clientKey(client, "minimalDeposit")),
		MaxGasPrice:    s.Uint256(clientKey(client, "maxGasPrice")),
		Credit:         s.Uint256(clientKey(client, "credit")),
	}, nil
}

// SetPrice records the oracle price of [tok]. Use registry.NativeMarker for
// the native asset.
func (r *Registry) SetPrice(stateDB contract.StateDB, caller, tok common.Address, price *uint256.Int) error {
	if err := r.onlyOwner(stateDB, caller); err != nil {
		return err
	}
	r.slot(stateDB).SetUint256(storage.Key(pricePrefix, tok.Bytes()), price)
	return nil
}

// Price returns the oracle price of [tok].
func (r *Registry) Price(stateDB contract.StateDB, tok common.Address) (*uint256.Int, error) {
	price := r.slot(stateDB).Uint256(storage.Key(pricePrefix, tok.Bytes()))
	if price.IsZero() {
		return nil, fmt.Errorf("%w: %s", ErrMissingPrice, tok)
	}
	return price, nil
}

// PokerKey returns the key registered for user [id].
func (r *Registry) PokerKey(stateDB contract.StateDB, id uint64) (common.Address, error) {
	user, err := r.User(stateDB, id)
	if err != nil {
		return common.Address{}, err
	}
	return user.PokerKey, nil
}

// HasMinimalDeposit reports whether user [id] stakes at least the client's floor.
func (r *Registry) HasMinimalDeposit(stateDB contract.StateDB, client common.Address, id uint64) (bool, error) {
	c, err := r.Client(stateDB, client)
	if err != nil {
		return false, err
	}
	user, err := r.User(stateDB, id)
	if err != nil {
		return false, err
	}
	return !user.Deposit.Lt(c.MinimalDeposit), nil
}

// HighestDepositHolder returns the user with the largest stake meeting the
// client's floor, the lowest id on ties. It is the client's reporter.
func (r *Registry) HighestDepositHolder(stateDB contract.StateDB, client common.Address) (uint64, error) {
	c, err := r.Client(stateDB, client)
	if err != nil {
		return 0, err
	}
	s := r.slot(stateDB)
	var (
		best    uint64
		highest = new(uint256.Int)
	)
	for id := uint64(1); id <= s.Uint64(userCountKey); id++ {
		deposit := s.Uint256(userKey(id, "deposit"))
		if deposit.Lt(c.MinimalDeposit) || deposit.IsZero() {
			continue
		}
		if best == 0 || deposit.Gt(highest) {
			best, highest = id, deposit
		}
	}
	if best == 0 {
		return 0, ErrInsufficientDeposit
	}
	return best, nil
}
