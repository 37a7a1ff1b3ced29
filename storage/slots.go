// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage derives storage slots and encodes typed values into the
// 32-byte words of a contract.StateDB.
package storage

import (
	"encoding/binary"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/treasury/contract"
	"github.com/zeebo/blake3"
)

// Key creates a storage key from a prefix and identifiers
func Key(prefix []byte, ids ...[]byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	for _, id := range ids {
		h.Write(id)
	}
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// Index encodes a list position for use as a key identifier.
func Index(i uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], i)
	return b[:]
}

// Slot reads and writes typed values under one account.
type Slot struct {
	StateDB contract.StateDB
	Account common.Address
}

func (s Slot) Uint256(key common.Hash) *uint256.Int {
	v := s.StateDB.GetState(s.Account, key)
	return new(uint256.Int).SetBytes32(v[:])
}

func (s Slot) SetUint256(key common.Hash, v *uint256.Int) {
	s.StateDB.SetState(s.Account, key, v.Bytes32())
}

func (s Slot) Uint64(key common.Hash) uint64 {
	v := s.StateDB.GetState(s.Account, key)
	return binary.BigEndian.Uint64(v[24:])
}

func (s Slot) SetUint64(key common.Hash, v uint64) {
	var h common.Hash
	binary.BigEndian.PutUint64(h[24:], v)
	s.StateDB.SetState(s.Account, key, h)
}

func (s Slot) Address(key common.Hash) common.Address {
	return common.BytesToAddress(s.StateDB.GetState(s.Account, key).Bytes())
}

func (s Slot) SetAddress(key common.Hash, addr common.Address) {
	s.StateDB.SetState(s.Account, key, common.BytesToHash(addr.Bytes()))
}

func (s Slot) Bool(key common.Hash) bool {
	return s.StateDB.GetState(s.Account, key)[31] != 0
}

func (s Slot) SetBool(key common.Hash, v bool) {
	var h common.Hash
	if v {
		h[31] = 1
	}
	s.StateDB.SetState(s.Account, key, h)
}

// AddressList is a length-prefixed list of addresses stored under a prefix.
type AddressList struct {
	Slot
	Prefix []byte
	ID     []byte
}

func (l AddressList) lengthKey() common.Hash {
	return Key(l.Prefix, l.ID, []byte("len"))
}

func (l AddressList) elemKey(i uint64) common.Hash {
	return Key(l.Prefix, l.ID, Index(i))
}

func (l AddressList) Len() uint64 {
	return l.Uint64(l.lengthKey())
}

func (l AddressList) Get() []common.Address {
	n := l.Len()
	out := make([]common.Address, n)
	for i := uint64(0); i < n; i++ {
		out[i] = l.Address(l.elemKey(i))
	}
	return out
}

// Set replaces the list, clearing elements beyond the new length.
func (l AddressList) Set(addrs []common.Address) {
	old := l.Len()
	for i, addr := range addrs {
		l.SetAddress(l.elemKey(uint64(i)), addr)
	}
	for i := uint64(len(addrs)); i < old; i++ {
		l.StateDB.SetState(l.Account, l.elemKey(i), common.Hash{})
	}
	l.SetUint64(l.lengthKey(), uint64(len(addrs)))
}
