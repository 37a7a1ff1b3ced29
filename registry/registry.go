// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry is the address book of the treasury precompile family.
//
// Addresses are trailing-significant and end with their LP number: the
// family sits on the DEX/Markets page at items 0x90-0x9F, so LP-9090 is
// 0x...9090.
package registry

import (
	"strings"

	"github.com/luxfi/geth/common"
)

const (
	TreasuryConverter = "0x0000000000000000000000000000000000009090" // LP-9090 auto-conversion engine
	TreasuryVenue     = "0x0000000000000000000000000000000000009091" // LP-9091 canonical constant-product venue
	TreasuryBasket    = "0x0000000000000000000000000000000000009092" // LP-9092 weighted basket pools
	KeeperRegistry    = "0x0000000000000000000000000000000000009093" // LP-9093 keeper roles, deposits, compensation
	WrappedNative     = "0x0000000000000000000000000000000000009094" // LP-9094 wrapped native token
	TreasuryVenueAlt  = "0x0000000000000000000000000000000000009095" // LP-9095 secondary constant-product venue
)

// NativeMarker stands for the chain's native asset wherever a token address
// is expected.
var NativeMarker = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// Member is one entry of the family.
type Member struct {
	Name    string
	LP      uint16
	Address common.Address
}

// Family lists the treasury precompiles in address order.
var Family = []Member{
	{"converter", 9090, common.HexToAddress(TreasuryConverter)},
	{"venue", 9091, common.HexToAddress(TreasuryVenue)},
	{"basket", 9092, common.HexToAddress(TreasuryBasket)},
	{"keeper", 9093, common.HexToAddress(KeeperRegistry)},
	{"wrapped", 9094, common.HexToAddress(WrappedNative)},
	{"venue-alt", 9095, common.HexToAddress(TreasuryVenueAlt)},
}

// Lookup resolves a family member by name, case-insensitively. "native"
// resolves to NativeMarker.
func Lookup(name string) (common.Address, bool) {
	if strings.EqualFold(name, "native") {
		return NativeMarker, true
	}
	for _, m := range Family {
		if strings.EqualFold(m.Name, name) {
			return m.Address, true
		}
	}
	return common.Address{}, false
}

// NameOf returns the family name of [addr], or "" when it is not a member.
func NameOf(addr common.Address) string {
	if addr == NativeMarker {
		return "native"
	}
	for _, m := range Family {
		if m.Address == addr {
			return m.Name
		}
	}
	return ""
}
