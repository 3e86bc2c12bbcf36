// Package conflict validates prediction sets against the category block
// table.
//
// The table is data, not control flow: each rule names two category kinds
// whose values may not coincide for one participant within one division.
// Rules are evaluated symmetrically, so picking A then B hits the same rule
// as picking B then A. A kind paired with itself blocks the same value
// across different slots of that kind (one wrestler cannot hold two numbered
// entry slots, or two final-four picks).
package conflict

import (
	"fmt"

	"github.com/okian/rumble/internal/domain/model"
)

// rule pairs two kinds whose picks are mutually exclusive per value.
type rule struct {
	a, b model.Kind
}

// blockTable encodes the fixed conflict rules: a wrestler eliminated first
// cannot also rack up the most eliminations, last the longest, or reach the
// final four; and no wrestler occupies two slots of the same numbered
// category. Adding a conflicting pair is a one-line change here.
var blockTable = []rule{
	{model.KindFirstEliminated, model.KindMostEliminations},
	{model.KindFirstEliminated, model.KindLongestDuration},
	{model.KindFirstEliminated, model.KindFinalFour},
	{model.KindEntrant, model.KindEntrant},
	{model.KindFinalFour, model.KindFinalFour},
}

// kindsConflict reports whether the table links the two kinds, in either
// direction.
func kindsConflict(a, b model.Kind) bool {
	for _, r := range blockTable {
		if (r.a == a && r.b == b) || (r.a == b && r.b == a) {
			return true
		}
	}
	return false
}

// Violation is a typed rejection naming the prediction that blocks a value.
type Violation struct {
	Value     string
	Category  model.Category
	BlockedBy model.Category
}

func (v *Violation) Error() string {
	return fmt.Sprintf("value %q for %s conflicts with existing pick for %s", v.Value, v.Category, v.BlockedBy)
}

// BlockedValues returns, for a candidate category, the values a participant
// may no longer pick, mapped to the category that blocks each. existing is
// that participant's current prediction set. Used to filter the option list
// offered to a participant; Check re-enforces the same table on write.
func BlockedValues(category model.Category, existing []model.Prediction) map[string]model.Category {
	blocked := make(map[string]model.Category)
	for _, p := range existing {
		if !applies(category, p.Category) {
			continue
		}
		blocked[p.Value] = p.Category
	}
	return blocked
}

// Check rejects value for category if any existing prediction blocks it.
// The returned error is a *Violation naming the blocking category.
func Check(category model.Category, value string, existing []model.Prediction) error {
	for _, p := range existing {
		if !applies(category, p.Category) {
			continue
		}
		if p.Value == value {
			return &Violation{Value: value, Category: category, BlockedBy: p.Category}
		}
	}
	return nil
}

// applies reports whether a prediction in have constrains picks in want.
// Conflicts are scoped to a single division and never apply to a category
// against itself (editing an unresolved pick is allowed).
func applies(want, have model.Category) bool {
	if want == have {
		return false
	}
	if want.Division != have.Division {
		return false
	}
	return kindsConflict(want.Kind, have.Kind)
}
