// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/treasury/contract"
)

var (
	_ contract.AccessibleState = (*Env)(nil)
	_ contract.BlockContext    = (*Env)(nil)
	_ contract.TxContext       = (*Env)(nil)
)

// Env is a minimal execution environment: a StateDB plus the block and
// transaction values a precompile may inspect.
type Env struct {
	db *StateDB

	number    *big.Int
	timestamp uint64

	origin   common.Address
	gasPrice *uint256.Int
}

// NewEnv returns an environment positioned at block [number].
func NewEnv(db *StateDB, number uint64, timestamp uint64) *Env {
	return &Env{
		db:        db,
		number:    new(big.Int).SetUint64(number),
		timestamp: timestamp,
		gasPrice:  new(uint256.Int),
	}
}

// BeginTx starts a transaction signed by [origin].
func (e *Env) BeginTx(hash common.Hash, origin common.Address, gasPrice *uint256.Int) {
	e.db.SetTxContext(hash)
	e.origin = origin
	e.gasPrice = new(uint256.Int).Set(gasPrice)
}

// NextBlock moves the environment forward by one block.
func (e *Env) NextBlock(dt uint64) {
	e.number = new(big.Int).Add(e.number, big.NewInt(1))
	e.timestamp += dt
}

func (e *Env) StateDB() *StateDB { return e.db }

func (e *Env) GetStateDB() contract.StateDB { return e.db }

func (e *Env) GetBlockContext() contract.BlockContext { return e }

func (e *Env) GetTxContext() contract.TxContext { return e }

func (e *Env) Number() *big.Int { return new(big.Int).Set(e.number) }

func (e *Env) Timestamp() uint64 { return e.timestamp }

func (e *Env) Origin() common.Address { return e.origin }

func (e *Env) GasPrice() *uint256.Int { return new(uint256.Int).Set(e.gasPrice) }
