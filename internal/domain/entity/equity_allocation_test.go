package entity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewpay/payments-api/internal/domain"
	"github.com/crewpay/payments-api/internal/domain/entity"
)

func TestAllocationLock(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	a := entity.NewEquityAllocation("co-1", "ct-1", 2026, now)

	assert.False(t, a.Locked)
	assert.Equal(t, entity.AllocationPendingConfirmation, a.Status)

	require.NoError(t, a.Lock(30, now))
	assert.True(t, a.Locked)
	assert.Equal(t, 30, a.EquityPercentage)
	assert.Equal(t, entity.AllocationPendingGrantCreation, a.Status)
}

func TestAllocationRelockSamePercentage(t *testing.T) {
	now := time.Now()
	a := entity.NewEquityAllocation("co-1", "ct-1", 2026, now)
	require.NoError(t, a.Lock(30, now))

	// The same percentage again is a no-op, not a conflict.
	require.NoError(t, a.Lock(30, now))
	assert.Equal(t, 30, a.EquityPercentage)
}

func TestAllocationConcurrentLock(t *testing.T) {
	now := time.Now()
	a := entity.NewEquityAllocation("co-1", "ct-1", 2026, now)
	require.NoError(t, a.Lock(30, now))

	err := a.Lock(50, now)
	var lockErr *domain.ConcurrentLockError
	require.ErrorAs(t, err, &lockErr)
	assert.Equal(t, 2026, lockErr.Year)
	assert.Equal(t, 30, lockErr.LockedPercentage, "error must carry the winning percentage")

	// The loser never mutates the allocation.
	assert.Equal(t, 30, a.EquityPercentage)
}

func TestAllocationLockRange(t *testing.T) {
	now := time.Now()
	a := entity.NewEquityAllocation("co-1", "ct-1", 2026, now)
	assert.ErrorIs(t, a.Lock(-1, now), domain.ErrInvalidInput)
	assert.ErrorIs(t, a.Lock(101, now), domain.ErrInvalidInput)
	assert.False(t, a.Locked)

	require.NoError(t, a.Lock(0, now))
	assert.True(t, a.Locked, "locking at 0% is a real lock")
}
