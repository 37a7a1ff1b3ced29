// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package converter

import (
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func TestSyncRotation(t *testing.T) {
	f := newFixture(t)
	f.strategy2()

	require.False(t, f.conv.Rotation(f.db, strategy2Pool).Synced)
	_, err := f.conv.NextExitMember(f.db, strategy2Pool)
	require.ErrorIs(t, err, ErrRotationNotSynced)

	want := Rotation{Members: []common.Address{aave, sushi, snx}, NextIndex: 0, Synced: true}
	// anyone may sync, and syncing twice changes nothing
	for i := 0; i < 2; i++ {
		r, err := f.conv.SyncRotation(f.db, strategy2Pool)
		require.NoError(t, err)
		require.Equal(t, want, r)
		require.Equal(t, want, f.conv.Rotation(f.db, strategy2Pool))
	}
	member, err := f.conv.NextExitMember(f.db, strategy2Pool)
	require.NoError(t, err)
	require.Equal(t, aave, member)
}

func TestSyncRotationUnknownBasket(t *testing.T) {
	f := newFixture(t)

	_, err := f.conv.SyncRotation(f.db, strategy2Pool)
	require.ErrorIs(t, err, ErrTransferFailed)
	require.Equal(t, "ERR_POOL_NOT_FOUND", ReasonOf(err))
	require.False(t, f.conv.Rotation(f.db, strategy2Pool).Synced)
}

func TestRotationCycles(t *testing.T) {
	f := newFixture(t)
	f.strategy2()
	f.shares(strategy2Pool, ether(50))
	_, err := f.conv.SyncRotation(f.db, strategy2Pool)
	require.NoError(t, err)

	members := []common.Address{aave, sushi, snx}
	for i := 0; i < 2*len(members); i++ {
		want := members[i%len(members)]
		member, err := f.conv.NextExitMember(f.db, strategy2Pool)
		require.NoError(t, err)
		require.Equal(t, want, member)

		held := f.pools.Balance(f.db, strategy2Pool, want)
		_, err = f.conv.Swap(f.db, deployer, strategy2Pool)
		require.NoError(t, err)
		require.True(t, f.pools.Balance(f.db, strategy2Pool, want).Lt(held))
		require.Equal(t, uint64((i+1)%len(members)), f.conv.Rotation(f.db, strategy2Pool).NextIndex)
	}
	require.Equal(t, ether(12_000), f.balance(cvp, xcvp))
}

func TestRotationEstimatesPerStep(t *testing.T) {
	f := newFixture(t)
	f.strategy2()
	f.shares(strategy2Pool, ether(100))
	_, err := f.conv.SyncRotation(f.db, strategy2Pool)
	require.NoError(t, err)

	// each exit moves the basket balances and the venue reserves the next
	// estimate prices against
	steps := []struct {
		in     string
		index  uint64
		member common.Address
	}{
		{"72505803145458800", 0, aave},
		{"81722936763776726", 1, sushi},
		{"72693329380864298", 2, snx},
		{"72447738033226438", 0, aave},
		{"81760909948550247", 1, sushi},
	}
	for _, step := range steps {
		requireRotationStep(t, f, step.in, step.index, step.member)
		_, err := f.conv.Swap(f.db, deployer, strategy2Pool)
		require.NoError(t, err)
	}
	requireRotationStep(t, f, "72792940476284364", 2, snx)

	require.NoError(t, f.pools.Unbind(f.db, strategy2Pool, controller, snx))
	_, err = f.conv.SyncRotation(f.db, strategy2Pool)
	require.NoError(t, err)
	requireRotationStep(t, f, "90430495162160678", 0, aave)

	_, err = f.conv.Swap(f.db, deployer, strategy2Pool)
	require.NoError(t, err)
	requireRotationStep(t, f, "102216584492803626", 1, sushi)
}

func requireRotationStep(t *testing.T, f *fixture, in string, index uint64, member common.Address) {
	t.Helper()
	got, err := f.conv.RotatingExitIn(f.db, strategy2Pool)
	require.NoError(t, err)
	require.Equal(t, in, got.Dec())
	require.Equal(t, index, f.conv.Rotation(f.db, strategy2Pool).NextIndex)
	next, err := f.conv.NextExitMember(f.db, strategy2Pool)
	require.NoError(t, err)
	require.Equal(t, member, next)
}

func TestRotationFailedSwapDoesNotAdvance(t *testing.T) {
	f := newFixture(t)
	f.strategy2()
	_, err := f.conv.SyncRotation(f.db, strategy2Pool)
	require.NoError(t, err)

	_, err = f.conv.Swap(f.db, deployer, strategy2Pool)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Zero(t, f.conv.Rotation(f.db, strategy2Pool).NextIndex)
}

func TestRotationStaleMember(t *testing.T) {
	f := newFixture(t)
	f.strategy2()
	f.shares(strategy2Pool, ether(10))
	_, err := f.conv.SyncRotation(f.db, strategy2Pool)
	require.NoError(t, err)

	require.NoError(t, f.pools.Unbind(f.db, strategy2Pool, controller, aave))

	_, err = f.conv.RotatingExitIn(f.db, strategy2Pool)
	require.ErrorIs(t, err, ErrRotationStale)
	_, err = f.conv.EstimateAmountIn(f.db, strategy2Pool)
	require.ErrorIs(t, err, ErrRotationStale)
	_, err = f.conv.Swap(f.db, deployer, strategy2Pool)
	require.ErrorIs(t, err, ErrRotationStale)
	require.Equal(t, "STALE_ROTATION_MEMBER", ReasonOf(err))
	require.Equal(t, ether(10), f.balance(strategy2Pool, converterAddr))

	// the removed member was indexed, so the cursor resets
	r, err := f.conv.SyncRotation(f.db, strategy2Pool)
	require.NoError(t, err)
	require.Equal(t, []common.Address{snx, sushi}, r.Members)
	require.Zero(t, r.NextIndex)

	_, err = f.conv.Swap(f.db, deployer, strategy2Pool)
	require.NoError(t, err)
	require.Equal(t, uint64(1), f.conv.Rotation(f.db, strategy2Pool).NextIndex)
}

func TestRotationSyncKeepsIndexedMember(t *testing.T) {
	f := newFixture(t)
	f.strategy2()
	f.shares(strategy2Pool, ether(10))
	_, err := f.conv.SyncRotation(f.db, strategy2Pool)
	require.NoError(t, err)
	_, err = f.conv.Swap(f.db, deployer, strategy2Pool)
	require.NoError(t, err)

	// sushi is next; unbinding aave moves snx into its slot
	require.NoError(t, f.pools.Unbind(f.db, strategy2Pool, controller, aave))
	r, err := f.conv.SyncRotation(f.db, strategy2Pool)
	require.NoError(t, err)
	require.Equal(t, []common.Address{snx, sushi}, r.Members)
	require.Equal(t, uint64(1), r.NextIndex)

	member, err := f.conv.NextExitMember(f.db, strategy2Pool)
	require.NoError(t, err)
	require.Equal(t, sushi, member)
}
