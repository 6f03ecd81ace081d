package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateSplitsAllocatable(t *testing.T) {
	b := Calculate(8000, 2200, Allocations{KnowledgePct: 30, RecentActionsPct: 10, RoomsPct: 60})
	assert.Equal(t, 5800, b.Allocatable)
	assert.Equal(t, 1740, b.Budgets.Knowledge)
	assert.Equal(t, 580, b.Budgets.RecentActions)
	assert.Equal(t, 3480, b.Budgets.Rooms)
}

func TestCalculateClampsNegativeAllocatable(t *testing.T) {
	b := Calculate(1000, 2200, Allocations{KnowledgePct: 30, RecentActionsPct: 10, RoomsPct: 60})
	assert.Equal(t, 0, b.Allocatable)
	assert.Equal(t, 0, b.Budgets.Knowledge)
}

func TestValidateAllocationChangeAllowsIncrease(t *testing.T) {
	ok, msg := ValidateAllocationChange(Allocations{KnowledgePct: 30}, "knowledge", 40, 8000, 2200, 1000)
	assert.True(t, ok)
	assert.Empty(t, msg)
}

func TestValidateAllocationChangeRejectsUnsafeShrink(t *testing.T) {
	ok, msg := ValidateAllocationChange(Allocations{KnowledgePct: 30}, "knowledge", 5, 8000, 2200, 1000)
	assert.False(t, ok)
	assert.Contains(t, msg, "cannot reduce knowledge allocation")
}

func TestValidateAllocationChangeAllowsSafeShrink(t *testing.T) {
	ok, _ := ValidateAllocationChange(Allocations{KnowledgePct: 30}, "knowledge", 25, 8000, 2200, 50)
	assert.True(t, ok)
}

func TestValidateAllocationChangeIgnoresNonKnowledgeShrink(t *testing.T) {
	ok, msg := ValidateAllocationChange(Allocations{RoomsPct: 60}, "rooms", 10, 8000, 2200, 999999)
	assert.True(t, ok)
	assert.Empty(t, msg)
}

func TestAutoShrinkNoOpUnderBudget(t *testing.T) {
	r := AutoShrink(5000, 8000, Allocations{KnowledgePct: 30, RecentActionsPct: 10, RoomsPct: 60})
	assert.False(t, r.Shrunk)
	assert.False(t, r.StillOverBudget)
}

func TestAutoShrinkReducesRoomsAndRecentActions(t *testing.T) {
	r := AutoShrink(9000, 8000, Allocations{KnowledgePct: 30, RecentActionsPct: 10, RoomsPct: 60})
	assert.True(t, r.Shrunk)
	assert.Equal(t, MinAllocationPct, r.NewAllocations.RoomsPct)
	assert.Equal(t, MinAllocationPct, r.NewAllocations.RecentActionsPct)
	assert.Equal(t, 30, r.NewAllocations.KnowledgePct)
}

func TestAutoShrinkBlocksWhenAlreadyAtMinimum(t *testing.T) {
	r := AutoShrink(9000, 8000, Allocations{KnowledgePct: 90, RecentActionsPct: 5, RoomsPct: 5})
	assert.False(t, r.Shrunk)
	assert.True(t, r.StillOverBudget)
	assert.Contains(t, r.Message, "BLOCKED")
}
