package engine

import "github.com/scrypster/mnemex/pkg/types"

// transitionTable lists every valid non-pin target for each source state,
// grounded on the teacher's own switch-per-source-state idiom
// (pkg/types/state.go's IsValidStateTransition).
var transitionTable = map[types.LifecycleState][]types.LifecycleState{
	types.StateActive:   {types.StateDecaying, types.StateArchived, types.StatePinned},
	types.StateDecaying: {types.StateActive, types.StateArchived, types.StatePinned},
	types.StateArchived: {types.StateExpired, types.StateActive, types.StatePinned},
	types.StateExpired:  {types.StatePinned},
	types.StatePinned:   {types.StateActive, types.StateDecaying, types.StateArchived, types.StateExpired},
}

// IsValidTransition applies the guard order spec §3.2 requires:
//  1. same-state is always a no-op (valid, causes no event).
//  2. transitioning to pinned is always valid from any state.
//  3. a pinned memory leaving the pinned state via a system trigger is
//     locked — only a user-triggered transition can move it.
//  4. otherwise consult transitionTable.
func IsValidTransition(from, to types.LifecycleState, triggeredBy types.TriggeredBy) bool {
	if from == to {
		return true
	}
	if to == types.StatePinned {
		return true
	}
	if from == types.StatePinned {
		return triggeredBy == types.TriggeredByUser
	}
	for _, allowed := range transitionTable[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
