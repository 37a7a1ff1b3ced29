// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package modules

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/luxfi/geth/common"
)

var (
	ErrUnreservedAddress = errors.New("not in a reserved range")
	ErrDuplicateKey      = errors.New("config key already registered")
	ErrDuplicateAddress  = errors.New("address already registered")
)

// AddressRange is an inclusive range of addresses.
type AddressRange struct {
	Start common.Address
	End   common.Address
}

func (a AddressRange) Contains(addr common.Address) bool {
	return bytes.Compare(addr[:], a.Start[:]) >= 0 && bytes.Compare(addr[:], a.End[:]) <= 0
}

// ReservedRanges are the address ranges modules may occupy: the DEX/Markets
// page (LP-9xxx), which holds the treasury family, and 0xF000-0xFFFF for
// local deployments.
var ReservedRanges = []AddressRange{
	{common.HexToAddress("0x9000"), common.HexToAddress("0x9fff")},
	{common.HexToAddress("0xf000"), common.HexToAddress("0xffff")},
}

var (
	mu         sync.RWMutex
	registered []Module
)

func ReservedAddress(addr common.Address) bool {
	return slices.ContainsFunc(ReservedRanges, func(r AddressRange) bool {
		return r.Contains(addr)
	})
}

// RegisterModule adds [m] to the table. Config keys and addresses must be
// unique and the address must be reserved.
func RegisterModule(m Module) error {
	if !ReservedAddress(m.Address) {
		return fmt.Errorf("module %s at %s: %w", m.ConfigKey, m.Address, ErrUnreservedAddress)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, other := range registered {
		switch {
		case other.ConfigKey == m.ConfigKey:
			return fmt.Errorf("module %s: %w", m.ConfigKey, ErrDuplicateKey)
		case other.Address == m.Address:
			return fmt.Errorf("module %s at %s: %w", m.ConfigKey, m.Address, ErrDuplicateAddress)
		}
	}
	i, _ := slices.BinarySearchFunc(registered, m.Address, func(e Module, addr common.Address) int {
		return bytes.Compare(e.Address[:], addr[:])
	})
	registered = slices.Insert(registered, i, m)
	return nil
}

func GetPrecompileModuleByAddress(addr common.Address) (Module, bool) {
	return find(func(m Module) bool { return m.Address == addr })
}

func GetPrecompileModule(key string) (Module, bool) {
	return find(func(m Module) bool { return m.ConfigKey == key })
}

// RegisteredModules returns a copy of the table in address order.
func RegisteredModules() []Module {
	mu.RLock()
	defer mu.RUnlock()
	return slices.Clone(registered)
}

func find(match func(Module) bool) (Module, bool) {
	mu.RLock()
	defer mu.RUnlock()
	if i := slices.IndexFunc(registered, match); i >= 0 {
		return registered[i], true
	}
	return Module{}, false
}
