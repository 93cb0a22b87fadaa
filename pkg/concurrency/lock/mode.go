package lock

import "coredb/pkg/primitives"

// compatible reports whether a request for want is compatible with an
// already-granted hold. Indexed [held][want], per the spec's
// compatibility matrix.
var compatible = [5][5]bool{
	primitives.IntentionShared:        {true, true, true, true, false},
	primitives.IntentionExclusive:     {true, true, false, false, false},
	primitives.Shared:                 {true, false, true, false, false},
	primitives.SharedIntentionExclusive: {true, false, false, false, false},
	primitives.Exclusive:              {false, false, false, false, false},
}

func compatibleWith(held, want primitives.LockMode) bool {
	return compatible[held][want]
}

// upgradePaths enumerates, for each mode a transaction might already hold,
// every mode it may upgrade to in one step. A request outside this list for
// a transaction that already holds a different mode aborts as an
// incompatible upgrade.
var upgradePaths = map[primitives.LockMode][]primitives.LockMode{
	primitives.IntentionShared: {
		primitives.Shared, primitives.Exclusive,
		primitives.IntentionExclusive, primitives.SharedIntentionExclusive,
	},
	primitives.Shared:             {primitives.Exclusive, primitives.SharedIntentionExclusive},
	primitives.IntentionExclusive: {primitives.Exclusive, primitives.SharedIntentionExclusive},
	primitives.SharedIntentionExclusive: {primitives.Exclusive},
}

func isValidUpgrade(held, want primitives.LockMode) bool {
	for _, m := range upgradePaths[held] {
		if m == want {
			return true
		}
	}
	return false
}

// subsumes reports whether already holding held grants at least as much
// access as want, so re-requesting want is a no-op rather than an upgrade
// or a conflict. This is what lets a plan node (e.g. delete) take a table
// IX lock and then run a scan underneath it that only asks for IS on the
// same transaction.
var subsumes = [5][5]bool{
	primitives.IntentionShared:          {true, false, false, false, false},
	primitives.IntentionExclusive:       {true, true, false, false, false},
	primitives.Shared:                   {true, false, true, false, false},
	primitives.SharedIntentionExclusive: {true, true, true, true, false},
	primitives.Exclusive:                {true, true, true, true, true},
}

func subsumesMode(held, want primitives.LockMode) bool {
	return subsumes[held][want]
}

// coversRow reports whether holding tableMode on a table satisfies the
// table-lock precondition for taking rowMode on one of its rows.
func coversRow(tableMode, rowMode primitives.LockMode) bool {
	if rowMode == primitives.Shared {
		return true // any table mode suffices for a row S lock
	}
	// rowMode == Exclusive
	switch tableMode {
	case primitives.Exclusive, primitives.IntentionExclusive, primitives.SharedIntentionExclusive:
		return true
	default:
		return false
	}
}
