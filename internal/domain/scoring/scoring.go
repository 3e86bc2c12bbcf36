// Package scoring turns predictions plus declared or derived results into
// point totals.
//
// A Board holds one party's predictions, resolved results and the read-only
// weight table. Resolution is idempotent and reversible: resolving a
// category twice with the same result is a no-op, and Unresolve returns the
// category to the unresolved state so a corrected result can be applied from
// scratch. The Board is single-writer; the orchestrator serializes access
// under the per-party lock.
package scoring

import (
	"fmt"
	"slices"
	"time"

	"github.com/okian/rumble/internal/domain/conflict"
	"github.com/okian/rumble/internal/domain/model"
)

// Weights maps category kinds to integer point values. Totals are exact
// integer sums; the only negative weight allowed is the no-show penalty,
// applied when a predicted wrestler never entered the match.
type Weights struct {
	Points        map[model.Kind]int
	NoShowPenalty int
}

// DefaultWeights returns the standard point table used when an event does
// not configure its own.
func DefaultWeights() Weights {
	return Weights{
		Points: map[model.Kind]int{
			model.KindMatchWinner:      20,
			model.KindRumbleWinner:     50,
			model.KindEntrant:          5,
			model.KindFirstEliminated:  15,
			model.KindMostEliminations: 25,
			model.KindLongestDuration:  25,
			model.KindFinalFour:        20,
			model.KindChaos:            10,
		},
		NoShowPenalty: -10,
	}
}

// For returns the point value for a kind.
func (w Weights) For(kind model.Kind) int {
	return w.Points[kind]
}

// Validate refuses incomplete or malformed tables. This runs at party setup,
// never mid-match.
func (w Weights) Validate() error {
	for _, kind := range model.Kinds() {
		v, ok := w.Points[kind]
		if !ok {
			return fmt.Errorf("kind %s: %w", kind, ErrMissingWeight)
		}
		if v < 0 {
			return fmt.Errorf("kind %s has negative weight %d: %w", kind, v, ErrBadWeight)
		}
	}
	if w.NoShowPenalty > 0 {
		return fmt.Errorf("no-show penalty %d must not be positive: %w", w.NoShowPenalty, ErrBadWeight)
	}
	return nil
}

type predKey struct {
	participant string
	category    model.Category
}

// Board scores one party.
type Board struct {
	weights     Weights
	predictions map[predKey]*model.Prediction
	results     map[model.Category]model.Result
}

// NewBoard creates an empty board with a validated weight table.
func NewBoard(weights Weights) (*Board, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Board{
		weights:     weights,
		predictions: make(map[predKey]*model.Prediction),
		results:     make(map[model.Category]model.Result),
	}, nil
}

// Submit records or updates a participant's prediction. Predictions are
// editable while their category is unresolved; once resolved, the category
// is locked and new or changed picks are rejected. The conflict table is
// re-checked here regardless of any filtering the caller did.
func (b *Board) Submit(p model.Prediction) error {
	if p.ParticipantID == "" || p.Value == "" {
		return fmt.Errorf("missing participant or value: %w", ErrBadPrediction)
	}
	if err := p.Category.Validate(); err != nil {
		return fmt.Errorf("%v: %w", err, ErrBadPrediction)
	}
	if _, resolved := b.results[p.Category]; resolved {
		return fmt.Errorf("%s: %w", p.Category, ErrCategoryLocked)
	}
	if err := conflict.Check(p.Category, p.Value, b.Predictions(p.ParticipantID)); err != nil {
		return err
	}
	p.Resolved = false
	p.Points = 0
	b.predictions[predKey{p.ParticipantID, p.Category}] = &p
	return nil
}

// Predictions returns copies of one participant's predictions.
func (b *Board) Predictions(participant string) []model.Prediction {
	var out []model.Prediction
	for k, p := range b.predictions {
		if k.participant == participant {
			out = append(out, *p)
		}
	}
	return out
}

// Result returns the resolved result for a category, if any.
func (b *Board) Result(category model.Category) (model.Result, bool) {
	res, ok := b.results[category]
	return res, ok
}

// Results returns all resolved results.
func (b *Board) Results() []model.Result {
	out := make([]model.Result, 0, len(b.results))
	for _, res := range b.results {
		out = append(out, res)
	}
	return out
}

// Resolve scores every prediction in the result's category: matching values
// earn the kind's weight, no-shows earn the penalty, everything else earns
// zero. Re-resolving with an identical result is a no-op; a different result
// is rejected with ErrAlreadyResolved until the host resets the category.
// noShows names wrestlers that never entered; nil disables the penalty.
func (b *Board) Resolve(res model.Result, noShows map[string]bool) ([]model.ScoreDelta, error) {
	if err := res.Category.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrBadResult)
	}
	if res.Category.Kind == model.KindFinalFour {
		if len(res.Members) != 4 {
			return nil, fmt.Errorf("final four needs exactly 4 members, got %d: %w", len(res.Members), ErrBadResult)
		}
	} else if res.Value == "" {
		return nil, fmt.Errorf("%s: empty value: %w", res.Category, ErrBadResult)
	}
	if existing, ok := b.results[res.Category]; ok {
		if sameOutcome(existing, res) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", res.Category, ErrAlreadyResolved)
	}
	if res.ResolvedAt.IsZero() {
		res.ResolvedAt = time.Now()
	}

	var deltas []model.ScoreDelta
	for k, p := range b.predictions {
		if k.category != res.Category || p.Resolved {
			continue
		}
		p.Points = b.score(*p, res, noShows)
		p.Resolved = true
		deltas = append(deltas, model.ScoreDelta{
			ParticipantID: p.ParticipantID,
			Category:      p.Category,
			Points:        p.Points,
		})
	}
	b.results[res.Category] = res
	return deltas, nil
}

// Unresolve clears a category's result and zeroes every prediction scored
// against it, returning the affected participants.
func (b *Board) Unresolve(category model.Category) ([]string, error) {
	if _, ok := b.results[category]; !ok {
		return nil, fmt.Errorf("%s: %w", category, ErrNotResolved)
	}
	delete(b.results, category)
	var affected []string
	for k, p := range b.predictions {
		if k.category == category && p.Resolved {
			p.Resolved = false
			p.Points = 0
			affected = append(affected, p.ParticipantID)
		}
	}
	return affected, nil
}

// TotalFor sums a participant's awarded points. Unresolved predictions
// contribute zero.
func (b *Board) TotalFor(participant string) int {
	total := 0
	for k, p := range b.predictions {
		if k.participant == participant && p.Resolved {
			total += p.Points
		}
	}
	return total
}

// Totals returns every participant's current point total, including
// participants whose predictions are all unresolved.
func (b *Board) Totals() map[string]int {
	totals := make(map[string]int)
	for k, p := range b.predictions {
		if _, ok := totals[k.participant]; !ok {
			totals[k.participant] = 0
		}
		if p.Resolved {
			totals[k.participant] += p.Points
		}
	}
	return totals
}

// score awards points for one prediction against its category's result.
func (b *Board) score(p model.Prediction, res model.Result, noShows map[string]bool) int {
	correct := false
	if res.Category.Kind == model.KindFinalFour {
		correct = slices.Contains(res.Members, p.Value)
	} else {
		correct = p.Value == res.Value
	}
	switch {
	case correct:
		return b.weights.For(res.Category.Kind)
	case noShows[p.Value]:
		return b.weights.NoShowPenalty
	default:
		return 0
	}
}

// sameOutcome reports whether two results award identically.
func sameOutcome(a, b model.Result) bool {
	if a.Value != b.Value || len(a.Members) != len(b.Members) {
		return false
	}
	as := slices.Clone(a.Members)
	bs := slices.Clone(b.Members)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}
