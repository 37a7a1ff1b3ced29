// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package contract defines the runtime surface stateful precompiles execute
// against: state access, block and transaction context, and the module
// configuration hooks.
package contract

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/treasury/precompileconfig"
)

// StateDB is the state a precompile may read and mutate. Every mutation is
// journaled so that RevertToSnapshot restores the state exactly as it was
// when Snapshot was taken.
type StateDB interface {
	GetState(addr common.Address, key common.Hash) common.Hash
	SetState(addr common.Address, key common.Hash, value common.Hash) common.Hash

	GetBalance(addr common.Address) *uint256.Int
	AddBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) uint256.Int
	SubBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) uint256.Int

	CreateAccount(addr common.Address)
	Exist(addr common.Address) bool

	AddLog(log *types.Log)
	Logs() []*types.Log
	TxHash() common.Hash

	Snapshot() int
	RevertToSnapshot(id int)
}

// BlockContext exposes the block the current transaction executes in.
type BlockContext interface {
	Number() *big.Int
	Timestamp() uint64
}

// TxContext exposes the transaction-level values that stay constant across
// nested calls.
type TxContext interface {
	// Origin is the externally owned account that signed the transaction.
	Origin() common.Address
	GasPrice() *uint256.Int
}

// AccessibleState is handed to Run on every precompile invocation.
type AccessibleState interface {
	GetStateDB() StateDB
	GetBlockContext() BlockContext
	GetTxContext() TxContext
}

// ConfigurationBlockContext is the block context available while a module
// is being configured at activation time.
type ConfigurationBlockContext interface {
	Number() *big.Int
	Timestamp() uint64
}

// StatefulPrecompiledContract is the entry point of a stateful precompile.
type StatefulPrecompiledContract interface {
	Run(
		accessibleState AccessibleState,
		caller common.Address,
		addr common.Address,
		input []byte,
		suppliedGas uint64,
		readOnly bool,
	) (ret []byte, remainingGas uint64, err error)
}

// Configurator builds and applies a module's chain configuration.
type Configurator interface {
	MakeConfig() precompileconfig.Config
	Configure(
		chainConfig precompileconfig.ChainConfig,
		cfg precompileconfig.Config,
		state StateDB,
		blockContext ConfigurationBlockContext,
	) error
}
