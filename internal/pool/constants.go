// Package pool holds the data model shared across the whole module: the
// circuit-fixed constants, and the Note/Account/Transaction record types
// with their canonical binary codecs (SPEC_FULL.md §3, §9 "serialization
// boundary").
package pool

// Constants fixed by the chosen circuit family (SPEC_FULL.md §3).
const (
	// Height is the full tree height.
	Height = 48
	// Out is the number of output notes per transaction.
	Out = 127
	// OutPlusOneLog = ceil(log2(Out+1)).
	OutPlusOneLog = 7
	// In is the maximum number of input notes per transaction.
	In = 4
	// DiversifierSizeBits is the width of the diversifier field.
	DiversifierSizeBits = 80
	// BalanceSizeBits is the width of a balance/energy field.
	BalanceSizeBits = 64
	// DelegatedDepositsNum is the maximum deposits in one delegated batch.
	DelegatedDepositsNum = 16
)

// OutSlotSize is the number of leaves occupied by one transaction slot.
const OutSlotSize = Out + 1
