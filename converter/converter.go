// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package converter implements the treasury auto-conversion engine. The
// converter accumulates arbitrary token balances and, when poked by a
// keeper, converts them into a fixed amount of the target token delivered
// to the beneficiary. Routes are resolved per token among direct transfer,
// base-asset swaps, generic venue routes and basket exits.
package converter

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/treasury/contract"
	"github.com/luxfi/treasury/registry"
	"github.com/luxfi/treasury/storage"
)

// Storage keys
var (
	ownerKey          = storage.Key([]byte("converter.owner"))
	initializedKey    = storage.Key([]byte("converter.initialized"))
	targetAmountKey   = storage.Key([]byte("converter.targetAmountOut"))
	permissionlessKey = storage.Key([]byte("converter.permissionless"))

	routeVenuePrefix   = []byte("converter.route.venue")
	routePathPrefix    = []byte("converter.route.path")
	strategyPrefix     = []byte("converter.strategy")
	rotationPrefix     = []byte("converter.rotation")
	rotationNextPrefix = []byte("converter.rotation.next")
	rotationSyncPrefix = []byte("converter.rotation.synced")
)

// Params are the immutable addresses a converter is bound to.
type Params struct {
	// Address is the converter's own account, holding the balances to
	// convert and its configuration.
	Address        common.Address
	TargetToken    common.Address
	BaseToken      common.Address
	Beneficiary    common.Address
	CanonicalVenue common.Address
}

// Dependencies are the collaborators a converter calls into.
type Dependencies struct {
	Tokens       TokenLedger
	Wrapped      NativeWrapper
	Venues       []Venue
	Baskets      Basket
	Roles        RoleAuthority
	Compensation CompensationSink
}

// Converter is the conversion engine. It holds no per-call state; all
// configuration and rotation state lives in the StateDB under Address.
type Converter struct {
	Params

	tokens       TokenLedger
	wrapped      NativeWrapper
	venues       map[common.Address]Venue
	baskets      Basket
	roles        RoleAuthority
	compensation CompensationSink

	log log.Logger
}

// New returns a converter. The canonical venue must be among [deps.Venues]
// and the wrapped token must be the base token.
func New(params Params, deps Dependencies, logger log.Logger) (*Converter, error) {
	for _, addr := range []common.Address{
		params.Address, params.TargetToken, params.BaseToken, params.Beneficiary, params.CanonicalVenue,
	} {
		if addr == (common.Address{}) {
			return nil, ErrZeroAddress
		}
	}
	if params.Beneficiary == params.Address {
		return nil, ErrInvalidBeneficiary
	}
	if deps.Tokens == nil || deps.Wrapped == nil || deps.Baskets == nil || deps.Roles == nil || deps.Compensation == nil {
		return nil, ErrNotConfigured
	}
	if deps.Wrapped.Token() != params.BaseToken {
		return nil, ErrNotConfigured
	}
	venues := make(map[common.Address]Venue, len(deps.Venues))
	for _, v := range deps.Venues {
		venues[v.Address()] = v
	}
	if _, ok := venues[params.CanonicalVenue]; !ok {
		return nil, ErrUnknownVenue
	}
	if logger == nil {
		logger = log.Root()
	}
	return &Converter{
		Params:       params,
		tokens:       deps.Tokens,
		wrapped:      deps.Wrapped,
		venues:       venues,
		baskets:      deps.Baskets,
		roles:        deps.Roles,
		compensation: deps.Compensation,
		log:          logger,
	}, nil
}

func (c *Converter) slot(stateDB contract.StateDB) storage.Slot {
	return storage.Slot{StateDB: stateDB, Account: c.Address}
}

// withSnapshot runs fn as one all-or-nothing unit: any error reverts every
// state change fn made.
func withSnapshot(stateDB contract.StateDB, fn func() error) error {
	snapshot := stateDB.Snapshot()
	if err := fn(); err != nil {
		stateDB.RevertToSnapshot(snapshot)
		return err
	}
	return nil
}

// Initialize sets the owner and target amount. It may only run once.
func (c *Converter) Initialize(stateDB contract.StateDB, owner common.Address, targetAmountOut *uint256.Int) error {
	return withSnapshot(stateDB, func() error {
		s := c.slot(stateDB)
		if s.Bool(initializedKey) {
			return ErrAlreadyInitialized
		}
		if owner == (common.Address{}) {
			return ErrZeroAddress
		}
		if targetAmountOut == nil || targetAmountOut.IsZero() {
			return ErrTargetAmountZero
		}
		stateDB.CreateAccount(c.Address)
		s.SetBool(initializedKey, true)
		s.SetAddress(ownerKey, owner)
		s.SetUint256(targetAmountKey, targetAmountOut)
		return nil
	})
}

// Initialized reports whether Initialize has run.
func (c *Converter) Initialized(stateDB contract.StateDB) bool {
	return c.slot(stateDB).Bool(initializedKey)
}

// Owner returns the configuration owner.
func (c *Converter) Owner(stateDB contract.StateDB) common.Address {
	return c.slot(stateDB).Address(ownerKey)
}

func (c *Converter) onlyOwner(stateDB contract.StateDB, caller common.Address) error {
	if !c.Initialized(stateDB) {
		return ErrNotConfigured
	}
	if caller != c.Owner(stateDB) {
		return ErrNotAuthorized
	}
	return nil
}

// TransferOwnership hands configuration rights to [newOwner].
func (c *Converter) TransferOwnership(stateDB contract.StateDB, caller, newOwner common.Address) error {
	return withSnapshot(stateDB, func() error {
		if err := c.onlyOwner(stateDB, caller); err != nil {
			return err
		}
		if newOwner == (common.Address{}) {
			return ErrZeroAddress
		}
		c.slot(stateDB).SetAddress(ownerKey, newOwner)
		return nil
	})
}

// TargetAmountOut is the amount of target token every conversion delivers.
func (c *Converter) TargetAmountOut(stateDB contract.StateDB) *uint256.Int {
	return c.slot(stateDB).Uint256(targetAmountKey)
}

// SetTargetAmountOut updates the per-conversion target amount.
func (c *Converter) SetTargetAmountOut(stateDB contract.StateDB, caller common.Address, amount *uint256.Int) error {
	return withSnapshot(stateDB, func() error {
		if err := c.onlyOwner(stateDB, caller); err != nil {
			return err
		}
		if amount == nil || amount.IsZero() {
			return ErrTargetAmountZero
		}
		c.slot(stateDB).SetUint256(targetAmountKey, amount)
		return nil
	})
}

// Permissionless reports whether anyone may trigger a conversion without
// keeper authorization or compensation.
func (c *Converter) Permissionless(stateDB contract.StateDB) bool {
	return c.slot(stateDB).Bool(permissionlessKey)
}

// SetPermissionless toggles permissionless conversion.
func (c *Converter) SetPermissionless(stateDB contract.StateDB, caller common.Address, enabled bool) error {
	return withSnapshot(stateDB, func() error {
		if err := c.onlyOwner(stateDB, caller); err != nil {
			return err
		}
		c.slot(stateDB).SetBool(permissionlessKey, enabled)
		return nil
	})
}

// isNative reports whether [tok] denotes the chain's native value.
func isNative(tok common.Address) bool {
	return tok == registry.NativeMarker
}

// sourceBalance is what the converter holds of [tok]. Native value counts
// together with the already wrapped base token.
func (c *Converter) sourceBalance(stateDB contract.StateDB, tok common.Address) *uint256.Int {
	if isNative(tok) {
		bal := new(uint256.Int).Set(stateDB.GetBalance(c.Address))
		return bal.Add(bal, c.tokens.BalanceOf(stateDB, c.BaseToken, c.Address))
	}
	return c.tokens.BalanceOf(stateDB, tok, c.Address)
}
