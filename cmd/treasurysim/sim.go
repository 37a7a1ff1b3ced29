// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/luxfi/log"
	"github.com/luxfi/treasury/amm"
	"github.com/luxfi/treasury/basket"
	"github.com/luxfi/treasury/converter"
	"github.com/luxfi/treasury/registry"
	"github.com/luxfi/treasury/state"
	"github.com/luxfi/treasury/token"
)

// Accounts the simulation acts as when seeding.
var (
	liquidityProvider = common.HexToAddress("0x1000000000000000000000000000000000000001")
	basketController  = common.HexToAddress("0xc0000000000000000000000000000000000000c1")
)

// simulation is a converter installed over an in-memory ledger seeded
// from a scenario.
type simulation struct {
	db     *state.StateDB
	env    *state.Env
	conv   *converter.Converter
	ledger token.Ledger
	owner  common.Address

	canonical common.Address
	secondary common.Address
	pools     *basket.Pools

	// held lists what the converter was seeded with, in scenario order.
	held []common.Address
	txs  uint64
}

func newSimulation(s Scenario, logger log.Logger) (*simulation, error) {
	owner, err := parseAddress(s.Owner)
	if err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	target, err := parseAddress(s.TargetToken)
	if err != nil {
		return nil, fmt.Errorf("target token: %w", err)
	}
	beneficiary, err := parseAddress(s.Beneficiary)
	if err != nil {
		return nil, fmt.Errorf("beneficiary: %w", err)
	}
	amountOut, err := parseAmount(s.TargetAmountOut)
	if err != nil {
		return nil, err
	}

	cfg := &converter.Config{
		Owner:           owner,
		TargetToken:     target,
		Beneficiary:     beneficiary,
		TargetAmountOut: amountOut.ToBig(),
		Permissionless:  true,
	}
	if err := cfg.Verify(nil); err != nil {
		return nil, err
	}
	conv, err := cfg.Build(logger)
	if err != nil {
		return nil, err
	}

	db := state.New(memdb.New())
	sim := &simulation{
		db:        db,
		env:       state.NewEnv(db, 1, 0),
		conv:      conv,
		owner:     owner,
		canonical: conv.CanonicalVenue,
		secondary: common.HexToAddress(registry.TreasuryVenueAlt),
		pools:     basket.NewPools(common.HexToAddress(registry.TreasuryBasket), token.Ledger{}),
	}
	if err := conv.Initialize(db, owner, amountOut); err != nil {
		return nil, err
	}
	if err := conv.SetPermissionless(db, owner, true); err != nil {
		return nil, err
	}
	if err := sim.seed(s); err != nil {
		return nil, err
	}
	if err := db.Error(); err != nil {
		return nil, err
	}
	logger.Info("seeded scenario",
		"pairs", len(s.Pairs),
		"balances", len(s.Balances),
		"routes", len(s.Routes),
		"baskets", len(s.Baskets),
	)
	return sim, nil
}

func (sim *simulation) venue(name string) (common.Address, error) {
	switch strings.ToLower(name) {
	case "", "canonical":
		return sim.canonical, nil
	case "secondary":
		return sim.secondary, nil
	default:
		return parseAddress(name)
	}
}

func (sim *simulation) hold(tok common.Address) {
	for _, h := range sim.held {
		if h == tok {
			return
		}
	}
	sim.held = append(sim.held, tok)
}

func (sim *simulation) seed(s Scenario) error {
	for i, p := range s.Pairs {
		if err := sim.seedPair(p); err != nil {
			return fmt.Errorf("pair %d: %w", i, err)
		}
	}
	for i, r := range s.Routes {
		if err := sim.seedRoute(r); err != nil {
			return fmt.Errorf("route %d: %w", i, err)
		}
	}
	for i, b := range s.Balances {
		if err := sim.seedBalance(b); err != nil {
			return fmt.Errorf("balance %d: %w", i, err)
		}
	}
	for i, b := range s.Baskets {
		if err := sim.seedBasket(b); err != nil {
			return fmt.Errorf("basket %d: %w", i, err)
		}
	}
	native, err := parseAmount(s.NativeBalance)
	if err != nil {
		return err
	}
	if !native.IsZero() {
		sim.db.AddBalance(converter.ContractAddress, native, tracing.BalanceChangeTransfer)
		sim.hold(registry.NativeMarker)
	}
	return nil
}

func (sim *simulation) seedPair(p PairSpec) error {
	venue, err := sim.venue(p.Venue)
	if err != nil {
		return err
	}
	a, err := parseAddress(p.TokenA)
	if err != nil {
		return err
	}
	b, err := parseAddress(p.TokenB)
	if err != nil {
		return err
	}
	amountA, err := parseAmount(p.ReserveA)
	if err != nil {
		return err
	}
	amountB, err := parseAmount(p.ReserveB)
	if err != nil {
		return err
	}
	for _, mint := range []struct {
		tok    common.Address
		amount *uint256.Int
	}{{a, amountA}, {b, amountB}} {
		if err := sim.ledger.Mint(sim.db, mint.tok, liquidityProvider, mint.amount); err != nil {
			return err
		}
		if err := sim.ledger.Approve(sim.db, mint.tok, liquidityProvider, venue, mint.amount); err != nil {
			return err
		}
	}
	return amm.NewRouter(venue, sim.ledger).AddLiquidity(sim.db, liquidityProvider, a, b, amountA, amountB)
}

func (sim *simulation) seedRoute(r RouteSpec) error {
	tok, err := parseAddress(r.Token)
	if err != nil {
		return err
	}
	venue, err := sim.venue(r.Venue)
	if err != nil {
		return err
	}
	path := make([]common.Address, 0, len(r.Path))
	for _, hop := range r.Path {
		addr, err := parseAddress(hop)
		if err != nil {
			return err
		}
		path = append(path, addr)
	}
	return sim.conv.SetRouteOverride(sim.db, sim.owner, tok, venue, path)
}

func (sim *simulation) seedBalance(b BalanceSpec) error {
	tok, err := parseAddress(b.Token)
	if err != nil {
		return err
	}
	holder := converter.ContractAddress
	if b.Holder != "" {
		if holder, err = parseAddress(b.Holder); err != nil {
			return err
		}
	}
	amount, err := parseAmount(b.Amount)
	if err != nil {
		return err
	}
	if holder == converter.ContractAddress {
		sim.hold(tok)
	}
	return sim.ledger.Mint(sim.db, tok, holder, amount)
}

func (sim *simulation) seedBasket(b BasketSpec) error {
	pool, err := parseAddress(b.Address)
	if err != nil {
		return err
	}
	swapFee, err := parseAmount(b.SwapFee)
	if err != nil {
		return err
	}
	exitFee, err := parseAmount(b.ExitFee)
	if err != nil {
		return err
	}
	receiver := basketController
	if b.Receiver != "" {
		if receiver, err = parseAddress(b.Receiver); err != nil {
			return err
		}
	}
	if err := sim.pools.Create(sim.db, pool, basket.Params{
		Controller:           basketController,
		SwapFee:              swapFee,
		CommunityExitFee:     exitFee,
		CommunityFeeReceiver: receiver,
	}); err != nil {
		return err
	}
	for _, m := range b.Members {
		tok, err := parseAddress(m.Token)
		if err != nil {
			return err
		}
		balance, err := parseAmount(m.Balance)
		if err != nil {
			return err
		}
		weight, err := parseAmount(m.Weight)
		if err != nil {
			return err
		}
		if err := sim.ledger.Mint(sim.db, tok, basketController, balance); err != nil {
			return err
		}
		if err := sim.ledger.Approve(sim.db, tok, basketController, pool, balance); err != nil {
			return err
		}
		if err := sim.pools.Bind(sim.db, pool, basketController, tok, balance, weight); err != nil {
			return err
		}
	}
	if err := sim.pools.Finalize(sim.db, pool, basketController); err != nil {
		return err
	}

	shares, err := parseAmount(b.Shares)
	if err != nil {
		return err
	}
	if !shares.IsZero() {
		if err := sim.ledger.Transfer(sim.db, pool, basketController, converter.ContractAddress, shares); err != nil {
			return err
		}
		sim.hold(pool)
	}
	if b.Strategy == 0 {
		return nil
	}
	if err := sim.conv.SetBasketStrategy(sim.db, sim.owner, pool, uint256.NewInt(b.Strategy)); err != nil {
		return err
	}
	if b.Strategy == uint64(converter.TagRotatingExit) {
		_, err = sim.conv.SyncRotation(sim.db, pool)
	}
	return err
}

// estimate is one row of the estimate report.
type estimate struct {
	Token     common.Address
	Strategy  string
	Balance   *uint256.Int
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
	Reason    string
}

func (sim *simulation) balance(tok common.Address) *uint256.Int {
	if tok == registry.NativeMarker {
		bal := new(uint256.Int).Set(sim.db.GetBalance(converter.ContractAddress))
		return bal.Add(bal, sim.ledger.BalanceOf(sim.db, sim.conv.BaseToken, converter.ContractAddress))
	}
	return sim.ledger.BalanceOf(sim.db, tok, converter.ContractAddress)
}

func (sim *simulation) estimate(tok common.Address) estimate {
	e := estimate{Token: tok, Balance: sim.balance(tok)}
	s, err := sim.conv.Resolve(sim.db, tok)
	if err != nil {
		e.Reason = converter.ReasonOf(err)
		return e
	}
	e.Strategy = s.Variant.String()
	if e.AmountIn, err = sim.conv.EstimateAmountIn(sim.db, tok); err != nil {
		e.Reason = converter.ReasonOf(err)
		return e
	}
	if e.AmountOut, err = sim.conv.EstimateAmountOut(sim.db, tok); err != nil {
		e.Reason = converter.ReasonOf(err)
	}
	return e
}

// convert runs one permissionless conversion in its own transaction.
func (sim *simulation) convert(caller, tok common.Address) (converter.SwapRecord, error) {
	sim.txs++
	sim.env.BeginTx(common.BigToHash(new(big.Int).SetUint64(sim.txs)), caller, new(uint256.Int))
	rec, err := sim.conv.Swap(sim.db, caller, tok)
	if err != nil {
		return converter.SwapRecord{}, err
	}
	return rec, sim.db.Error()
}

// tokens resolves command arguments, defaulting to every seeded holding.
func (sim *simulation) tokens(args []string) ([]common.Address, error) {
	if len(args) == 0 {
		return sim.held, nil
	}
	out := make([]common.Address, 0, len(args))
	for _, arg := range args {
		tok, err := parseAddress(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
	return out, nil
}
