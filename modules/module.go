// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package modules keeps the process-wide table of stateful precompile
// modules, ordered by address.
package modules

import (
	"github.com/luxfi/geth/common"
	"github.com/luxfi/treasury/contract"
)

// Module binds a precompile contract to its address and configuration key.
type Module struct {
	// ConfigKey names the module's entry in the chain's upgrade file.
	ConfigKey string
	Address   common.Address
	// Contract is the singleton served at Address once the module is active.
	Contract contract.StatefulPrecompiledContract
	contract.Configurator
}
