// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package converter

import (
	"github.com/luxfi/geth/common"
	"github.com/luxfi/treasury/contract"
	"github.com/luxfi/treasury/storage"
)

// Rotation is the persisted exit order of a rotating basket: a snapshot of
// its members and the index of the member exited next.
type Rotation struct {
	Members   []common.Address
	NextIndex uint64
	Synced    bool
}

func (c *Converter) rotationMembers(stateDB contract.StateDB, pool common.Address) storage.AddressList {
	return storage.AddressList{Slot: c.slot(stateDB), Prefix: rotationPrefix, ID: pool.Bytes()}
}

// Rotation returns the rotation snapshot of [pool].
func (c *Converter) Rotation(stateDB contract.StateDB, pool common.Address) Rotation {
	s := c.slot(stateDB)
	return Rotation{
		Members:   c.rotationMembers(stateDB, pool).Get(),
		NextIndex: s.Uint64(storage.Key(rotationNextPrefix, pool.Bytes())),
		Synced:    s.Bool(storage.Key(rotationSyncPrefix, pool.Bytes())),
	}
}

// SyncRotation replaces the member snapshot of [pool] with its live
// members. The next index follows the indexed member to its new position,
// or resets to zero when that member is gone. Anyone may call it.
func (c *Converter) SyncRotation(stateDB contract.StateDB, pool common.Address) (Rotation, error) {
	var r Rotation
	err := withSnapshot(stateDB, func() error {
		live, err := c.baskets.CurrentTokens(stateDB, pool)
		if err != nil {
			return transferFailed("currentTokens", err)
		}
		prev := c.Rotation(stateDB, pool)
		next := uint64(0)
		if prev.Synced && prev.NextIndex < uint64(len(prev.Members)) {
			current := prev.Members[prev.NextIndex]
			for i, m := range live {
				if m == current {
					next = uint64(i)
					break
				}
			}
		}
		s := c.slot(stateDB)
		c.rotationMembers(stateDB, pool).Set(live)
		s.SetUint64(storage.Key(rotationNextPrefix, pool.Bytes()), next)
		s.SetBool(storage.Key(rotationSyncPrefix, pool.Bytes()), true)
		r = Rotation{Members: live, NextIndex: next, Synced: true}
		return nil
	})
	if err != nil {
		return Rotation{}, err
	}
	c.log.Info("synced basket rotation", "basket", pool, "members", len(r.Members), "nextIndex", r.NextIndex)
	return r, nil
}

// currentExitMember is the member the next rotating exit of [pool] burns
// shares for. A member unbound since the last sync fails fast.
func (c *Converter) currentExitMember(stateDB contract.StateDB, pool common.Address) (common.Address, error) {
	r := c.Rotation(stateDB, pool)
	if !r.Synced || len(r.Members) == 0 {
		return common.Address{}, ErrRotationNotSynced
	}
	member := r.Members[r.NextIndex]
	if !c.baskets.IsBound(stateDB, pool, member) {
		return common.Address{}, ErrRotationStale
	}
	return member, nil
}

// NextExitMember is the member the next rotating exit of [pool] uses.
func (c *Converter) NextExitMember(stateDB contract.StateDB, pool common.Address) (common.Address, error) {
	return c.currentExitMember(stateDB, pool)
}

// advanceRotation moves [pool] to its next member. It only runs after a
// successful rotating exit.
func (c *Converter) advanceRotation(stateDB contract.StateDB, pool common.Address) {
	n := c.rotationMembers(stateDB, pool).Len()
	if n == 0 {
		return
	}
	key := storage.Key(rotationNextPrefix, pool.Bytes())
	s := c.slot(stateDB)
	s.SetUint64(key, (s.Uint64(key)+1)%n)
}
