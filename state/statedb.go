// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state provides a journaled StateDB backed by a luxfi database.
// Mutations are buffered in memory, undone through a journal on
// RevertToSnapshot and persisted in a single batch on Commit.
package state

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/treasury/contract"
)

var _ contract.StateDB = (*StateDB)(nil)

// Key prefixes in the backing database
var (
	storagePrefix = []byte("s")
	balancePrefix = []byte("b")
	accountPrefix = []byte("a")
)

var errUnknownRevision = errors.New("unknown revision id")

type revision struct {
	id           int
	journalIndex int
}

type slotKey struct {
	addr common.Address
	key  common.Hash
}

// StateDB is a journaled view over a database.Database.
type StateDB struct {
	db database.Database

	storage  map[slotKey]common.Hash
	balances map[common.Address]*uint256.Int
	accounts map[common.Address]bool

	txHash common.Hash
	logs   []*types.Log

	journal        []func()
	revisions      []revision
	nextRevisionID int

	// dbErr holds the first database failure seen by a read. StateDB
	// methods cannot return errors so it is surfaced on Commit.
	dbErr error
}

// New returns a StateDB reading through to [db].
func New(db database.Database) *StateDB {
	return &StateDB{
		db:       db,
		storage:  make(map[slotKey]common.Hash),
		balances: make(map[common.Address]*uint256.Int),
		accounts: make(map[common.Address]bool),
	}
}

func (s *StateDB) setError(err error) {
	if s.dbErr == nil {
		s.dbErr = err
	}
}

// Error returns the first database error encountered.
func (s *StateDB) Error() error {
	return s.dbErr
}

func (s *StateDB) read(key []byte) []byte {
	val, err := s.db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		s.setError(err)
		return nil
	}
	return val
}

func storageKey(addr common.Address, key common.Hash) []byte {
	out := make([]byte, 0, len(storagePrefix)+common.AddressLength+common.HashLength)
	out = append(out, storagePrefix...)
	out = append(out, addr.Bytes()...)
	return append(out, key.Bytes()...)
}

func addressKey(prefix []byte, addr common.Address) []byte {
	out := make([]byte, 0, len(prefix)+common.AddressLength)
	out = append(out, prefix...)
	return append(out, addr.Bytes()...)
}

// GetState returns the value of [key] in the storage of [addr].
func (s *StateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	if v, ok := s.storage[slotKey{addr, key}]; ok {
		return v
	}
	return common.BytesToHash(s.read(storageKey(addr, key)))
}

// SetState stores [value] and returns the previous value.
func (s *StateDB) SetState(addr common.Address, key common.Hash, value common.Hash) common.Hash {
	sk := slotKey{addr, key}
	prev := s.GetState(addr, key)
	_, wasDirty := s.storage[sk]
	s.journal = append(s.journal, func() {
		if wasDirty {
			s.storage[sk] = prev
		} else {
			delete(s.storage, sk)
		}
	})
	s.storage[sk] = value
	return prev
}

// GetBalance returns a copy of the native balance of [addr].
func (s *StateDB) GetBalance(addr common.Address) *uint256.Int {
	if v, ok := s.balances[addr]; ok {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int).SetBytes(s.read(addressKey(balancePrefix, addr)))
}

func (s *StateDB) setBalance(addr common.Address, amount *uint256.Int) {
	prev, wasDirty := s.balances[addr]
	s.journal = append(s.journal, func() {
		if wasDirty {
			s.balances[addr] = prev
		} else {
			delete(s.balances, addr)
		}
	})
	s.balances[addr] = amount
}

// AddBalance credits [amount] to [addr] and returns the prior balance.
func (s *StateDB) AddBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	prev := s.GetBalance(addr)
	s.touch(addr)
	s.setBalance(addr, new(uint256.Int).Add(prev, amount))
	return *prev
}

// SubBalance debits [amount] from [addr] and returns the prior balance.
// Callers check sufficiency; the balance saturates at zero.
func (s *StateDB) SubBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	prev := s.GetBalance(addr)
	next := new(uint256.Int)
	if prev.Cmp(amount) > 0 {
		next.Sub(prev, amount)
	}
	s.setBalance(addr, next)
	return *prev
}

func (s *StateDB) touch(addr common.Address) {
	if s.Exist(addr) {
		return
	}
	s.CreateAccount(addr)
}

// CreateAccount marks [addr] as existing.
func (s *StateDB) CreateAccount(addr common.Address) {
	prev, wasDirty := s.accounts[addr]
	s.journal = append(s.journal, func() {
		if wasDirty {
			s.accounts[addr] = prev
		} else {
			delete(s.accounts, addr)
		}
	})
	s.accounts[addr] = true
}

// Exist reports whether [addr] was created or ever received value.
func (s *StateDB) Exist(addr common.Address) bool {
	if v, ok := s.accounts[addr]; ok {
		return v
	}
	return len(s.read(addressKey(accountPrefix, addr))) > 0
}

// SetTxContext starts a new transaction scope and drops its logs.
func (s *StateDB) SetTxContext(hash common.Hash) {
	s.txHash = hash
	s.logs = nil
}

// TxHash returns the hash of the running transaction.
func (s *StateDB) TxHash() common.Hash {
	return s.txHash
}

// AddLog appends a log to the running transaction.
func (s *StateDB) AddLog(log *types.Log) {
	n := len(s.logs)
	s.journal = append(s.journal, func() {
		s.logs = s.logs[:n]
	})
	log.TxHash = s.txHash
	log.Index = uint(n)
	s.logs = append(s.logs, log)
}

// Logs returns the logs of the running transaction.
func (s *StateDB) Logs() []*types.Log {
	return s.logs
}

// Snapshot returns an identifier for the current revision of the state.
func (s *StateDB) Snapshot() int {
	id := s.nextRevisionID
	s.nextRevisionID++
	s.revisions = append(s.revisions, revision{id: id, journalIndex: len(s.journal)})
	return id
}

// RevertToSnapshot reverts all state changes made since the given revision.
func (s *StateDB) RevertToSnapshot(revid int) {
	idx := -1
	for i := len(s.revisions) - 1; i >= 0; i-- {
		if s.revisions[i].id == revid {
			idx = i
			break
		}
	}
	if idx < 0 {
		panic(fmt.Errorf("%w: %d", errUnknownRevision, revid))
	}
	snapshot := s.revisions[idx].journalIndex
	for i := len(s.journal) - 1; i >= snapshot; i-- {
		s.journal[i]()
	}
	s.journal = s.journal[:snapshot]
	s.revisions = s.revisions[:idx]
}

// Commit writes all buffered changes to the database in one batch and
// clears the journal. Snapshots taken before Commit become invalid.
func (s *StateDB) Commit() error {
	if s.dbErr != nil {
		return s.dbErr
	}
	batch := s.db.NewBatch()
	for sk, v := range s.storage {
		if err := batch.Put(storageKey(sk.addr, sk.key), v.Bytes()); err != nil {
			return err
		}
	}
	for addr, bal := range s.balances {
		b := bal.Bytes32()
		if err := batch.Put(addressKey(balancePrefix, addr), b[:]); err != nil {
			return err
		}
	}
	for addr, ok := range s.accounts {
		if !ok {
			continue
		}
		if err := batch.Put(addressKey(accountPrefix, addr), []byte{1}); err != nil {
			return err
		}
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.storage = make(map[slotKey]common.Hash)
	s.balances = make(map[common.Address]*uint256.Int)
	s.accounts = make(map[common.Address]bool)
	s.journal = nil
	s.revisions = nil
	return nil
}
