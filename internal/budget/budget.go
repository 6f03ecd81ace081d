// Package budget implements the memory budgeter: splits an agent's token
// budget across the knowledge, recent_actions, and rooms monitors, and
// shrinks the non-knowledge monitors when a built HUD runs over budget.
// Grounded on hud_service.py's _calculate_memory_budget,
// validate_allocation_change, and auto_shrink_for_budget.
package budget

import "fmt"

// MinAllocationPct is the floor a shrinkable monitor is never pushed below.
const MinAllocationPct = 5

// Allocations is the percentage split across the three allocatable
// monitors. Room-level sub-allocation is handled by the HUD builder.
type Allocations struct {
	KnowledgePct     int
	RecentActionsPct int
	RoomsPct         int
}

// Breakdown is the computed token budget for one agent's HUD build.
type Breakdown struct {
	Total       int
	BaseHUD     int
	Allocatable int
	Allocations Allocations
	Budgets     MonitorBudgets
}

// MonitorBudgets holds the token ceiling computed for each monitor.
type MonitorBudgets struct {
	Knowledge     int
	RecentActions int
	Rooms         int
}

// Calculate splits (totalBudget - baseHUDTokens) across the three
// monitors by percentage. Allocatable never goes negative.
func Calculate(totalBudget, baseHUDTokens int, alloc Allocations) Breakdown {
	allocatable := totalBudget - baseHUDTokens
	if allocatable < 0 {
		allocatable = 0
	}
	return Breakdown{
		Total:       totalBudget,
		BaseHUD:     baseHUDTokens,
		Allocatable: allocatable,
		Allocations: alloc,
		Budgets: MonitorBudgets{
			Knowledge:     int(float64(allocatable) * float64(alloc.KnowledgePct) / 100.0),
			RecentActions: int(float64(allocatable) * float64(alloc.RecentActionsPct) / 100.0),
			Rooms:         int(float64(allocatable) * float64(alloc.RoomsPct) / 100.0),
		},
	}
}

// ValidateAllocationChange checks whether shrinking a monitor's allocation
// would cause data loss. Increases (or no-ops) are always valid. Shrinking
// "knowledge" is rejected if the agent's current knowledge no longer fits
// the new budget.
func ValidateAllocationChange(current Allocations, monitor string, newPct int, totalBudget, baseHUDTokens, knowledgeTokens int) (bool, string) {
	currentPct := monitorPct(current, monitor)
	if newPct >= currentPct {
		return true, ""
	}
	if monitor != "knowledge" {
		return true, ""
	}

	allocatable := totalBudget - baseHUDTokens
	if allocatable < 0 {
		allocatable = 0
	}
	newBudget := int(float64(allocatable) * float64(newPct) / 100.0)
	if knowledgeTokens > newBudget {
		deficit := knowledgeTokens - newBudget
		return false, fmt.Sprintf(
			"error: cannot reduce knowledge allocation to %d%%. Current knowledge uses %d tokens but new budget would be %d. Delete %d+ tokens of knowledge first, then try again.",
			newPct, knowledgeTokens, newBudget, deficit)
	}
	return true, ""
}

func monitorPct(a Allocations, monitor string) int {
	switch monitor {
	case "knowledge":
		return a.KnowledgePct
	case "recent_actions":
		return a.RecentActionsPct
	case "rooms":
		return a.RoomsPct
	default:
		return 0
	}
}

// ActualUsage is the measured token cost of each monitor in a built HUD.
type ActualUsage struct {
	Knowledge     int
	RecentActions int
	Rooms         int
}

// ShrinkResult reports what AutoShrink did.
type ShrinkResult struct {
	Shrunk         bool
	Message        string
	StillOverBudget bool
	NewAllocations Allocations
}

// AutoShrink shrinks the rooms and recent_actions allocations to
// MinAllocationPct when a built HUD exceeds its budget. Knowledge is
// never touched: it is the agent's sacred, durable memory.
func AutoShrink(totalTokensUsed, budget int, current Allocations) ShrinkResult {
	if totalTokensUsed <= budget {
		return ShrinkResult{NewAllocations: current}
	}
	overage := totalTokensUsed - budget
	next := current
	var changes []string

	if next.RoomsPct > MinAllocationPct {
		changes = append(changes, fmt.Sprintf("rooms: %d%%->%d%%", next.RoomsPct, MinAllocationPct))
		next.RoomsPct = MinAllocationPct
	}
	if next.RecentActionsPct > MinAllocationPct {
		changes = append(changes, fmt.Sprintf("recent_actions: %d%%->%d%%", next.RecentActionsPct, MinAllocationPct))
		next.RecentActionsPct = MinAllocationPct
	}

	stillOver := totalTokensUsed > budget

	if len(changes) > 0 {
		msg := "Auto-shrunk allocations to minimum: " + joinComma(changes)
		if stillOver {
			msg += fmt.Sprintf(" WARNING: Still over budget by ~%d tokens. Delete knowledge to continue.", overage)
		}
		return ShrinkResult{Shrunk: true, Message: msg, StillOverBudget: stillOver, NewAllocations: next}
	}

	if stillOver {
		msg := fmt.Sprintf("BLOCKED: Over budget by %d tokens. All non-knowledge allocations already at minimum. Delete knowledge entries to continue.", overage)
		return ShrinkResult{StillOverBudget: true, Message: msg, NewAllocations: current}
	}

	return ShrinkResult{NewAllocations: current}
}

func joinComma(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
