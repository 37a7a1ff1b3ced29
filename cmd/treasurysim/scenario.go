// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/treasury/registry"
	"github.com/spf13/viper"
)

// Scenario is a ledger snapshot to simulate conversions against. Amounts
// are decimal base units.
type Scenario struct {
	Owner           string `mapstructure:"owner"`
	TargetToken     string `mapstructure:"target_token"`
	Beneficiary     string `mapstructure:"beneficiary"`
	TargetAmountOut string `mapstructure:"target_amount_out"`
	NativeBalance   string `mapstructure:"native_balance"`

	Pairs    []PairSpec    `mapstructure:"pairs"`
	Balances []BalanceSpec `mapstructure:"balances"`
	Routes   []RouteSpec   `mapstructure:"routes"`
	Baskets  []BasketSpec  `mapstructure:"baskets"`
}

// PairSpec seeds a constant-product pair. Venue is "canonical" or
// "secondary".
type PairSpec struct {
	Venue    string `mapstructure:"venue"`
	TokenA   string `mapstructure:"token_a"`
	TokenB   string `mapstructure:"token_b"`
	ReserveA string `mapstructure:"reserve_a"`
	ReserveB string `mapstructure:"reserve_b"`
}

// BalanceSpec mints to a holder, the converter when Holder is empty.
type BalanceSpec struct {
	Token  string `mapstructure:"token"`
	Holder string `mapstructure:"holder"`
	Amount string `mapstructure:"amount"`
}

type RouteSpec struct {
	Token string   `mapstructure:"token"`
	Venue string   `mapstructure:"venue"`
	Path  []string `mapstructure:"path"`
}

type BasketSpec struct {
	Address  string       `mapstructure:"address"`
	Strategy uint64       `mapstructure:"strategy"`
	SwapFee  string       `mapstructure:"swap_fee"`
	ExitFee  string       `mapstructure:"exit_fee"`
	Receiver string       `mapstructure:"fee_receiver"`
	Shares   string       `mapstructure:"converter_shares"`
	Members  []MemberSpec `mapstructure:"members"`
}

type MemberSpec struct {
	Token   string `mapstructure:"token"`
	Balance string `mapstructure:"balance"`
	Weight  string `mapstructure:"weight"`
}

var errInvalidAddress = errors.New("invalid address")

// LoadScenario reads the scenario at [path]. Scalar settings can be
// overridden with TREASURY_ environment variables, for example
// TREASURY_TARGET_AMOUNT_OUT.
func LoadScenario(path string) (Scenario, error) {
	v := viper.New()

	v.SetDefault("owner", "0x0000000000000000000000000000000000000a11")
	v.SetDefault("beneficiary", "")
	v.SetDefault("target_token", "")
	v.SetDefault("target_amount_out", "2000000000000000000000")
	v.SetDefault("native_balance", "0")

	v.SetConfigFile(path)
	v.SetEnvPrefix("TREASURY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := v.Unmarshal(&s); err != nil {
		return Scenario{}, fmt.Errorf("unmarshal scenario: %w", err)
	}
	return s, nil
}

// parseAddress accepts a hex address or the name of a treasury family
// member ("native", "wrapped", "venue", ...).
func parseAddress(s string) (common.Address, error) {
	if addr, ok := registry.Lookup(s); ok {
		return addr, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", errInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}
