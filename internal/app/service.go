// Package service provides the match orchestrator that implements the
// dependencies required by the HTTP API.
//
// Each party is an independent aggregate: two rumble lifecycles, one scoring
// board and one standings store behind a single mutex. The orchestrator
// sequences host-confirmed facts, reconciles the derivable prop results
// after every mutation, and publishes updates on the outbound bus. It owns
// all writes; every other component only reads.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/rumble/internal/adapters/mq/queue"
	"github.com/okian/rumble/internal/adapters/mq/worker"
	"github.com/okian/rumble/internal/adapters/standings"
	"github.com/okian/rumble/internal/domain/conflict"
	"github.com/okian/rumble/internal/domain/dedupe"
	"github.com/okian/rumble/internal/domain/derive"
	"github.com/okian/rumble/internal/domain/lifecycle"
	"github.com/okian/rumble/internal/domain/model"
	"github.com/okian/rumble/internal/domain/scoring"
	"github.com/okian/rumble/pkg/logger"
	"github.com/okian/rumble/pkg/metrics"
)

// party bundles one match instance's state. All fields are guarded by mu;
// the orchestrator is the single writer.
type party struct {
	mu        sync.Mutex
	id        string
	rumbles   map[model.Division]*lifecycle.Rumble
	board     *scoring.Board
	standings *standings.TreapStore
	roster    map[model.Division]map[string]bool
	matches   map[string]bool
	props     map[string]bool
	endedAt   map[model.Division]time.Time
}

// PartySetup carries per-event configuration supplied at party creation.
// Nil weights or roster fall back to the service defaults.
type PartySetup struct {
	Weights    *scoring.Weights
	Roster     map[model.Division][]string
	Matches    []string
	ChaosProps []string
}

// Service orchestrates every party hosted by this process.
type Service struct {
	mu      sync.RWMutex
	parties map[string]*party

	// Configuration
	busSize          int
	broadcasterCount int
	dedupeSize       int
	subscriberBuffer int
	defaultWeights   scoring.Weights
	defaultRoster    map[model.Division][]string

	// Components
	bus      *queue.InMemoryQueue
	registry *worker.Registry
	pool     *worker.Pool
	deduper  dedupe.Deduper

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithBusSize bounds the outbound update bus.
func WithBusSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.busSize = size
		}
	}
}

// WithBroadcasterCount sets the number of broadcaster goroutines.
func WithBroadcasterCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.broadcasterCount = count
		}
	}
}

// WithDedupeSize sets the size of the command idempotency cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithSubscriberBuffer sets the per-subscriber update buffer.
func WithSubscriberBuffer(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.subscriberBuffer = size
		}
	}
}

// WithDefaultWeights sets the scoring weights used when a party setup does
// not override them.
func WithDefaultWeights(w scoring.Weights) Option {
	return func(s *Service) {
		s.defaultWeights = w
	}
}

// WithDefaultRoster sets the wrestler roster used when a party setup does
// not override it.
func WithDefaultRoster(roster map[model.Division][]string) Option {
	return func(s *Service) {
		s.defaultRoster = roster
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		parties:          make(map[string]*party),
		busSize:          10000,
		broadcasterCount: 2,
		dedupeSize:       50000,
		subscriberBuffer: 64,
		defaultWeights:   scoring.DefaultWeights(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if err := s.defaultWeights.Validate(); err != nil {
		return fmt.Errorf("default weights: %w", err)
	}
	// A missing default roster is fine; each party setup can bring its own.
	if len(s.defaultRoster) > 0 {
		if err := validateRoster(s.defaultRoster); err != nil {
			return fmt.Errorf("default roster: %w", err)
		}
	}

	s.bus = queue.NewInMemoryQueue(queue.WithCapacity(s.busSize))
	s.registry = worker.NewRegistry(worker.WithSubscriberBuffer(s.subscriberBuffer))
	s.pool = worker.NewPool(s.broadcasterCount, s.bus, s.registry)
	s.pool.Start(ctx)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	s.started = true
	s.logger.Info(ctx, "rumble service started",
		logger.Int("busSize", s.busSize),
		logger.Int("broadcasters", s.broadcasterCount),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(context.Background(), "stopping rumble service...")
	if s.bus != nil {
		_ = s.bus.Close()
	}
	if s.pool != nil {
		s.pool.Stop()
	}
	s.started = false
	s.logger.Info(context.Background(), "rumble service stopped")
}

// CreateParty validates the setup and registers a new party. Configuration
// errors are fatal here, before any match can start.
func (s *Service) CreateParty(ctx context.Context, setup PartySetup) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return "", ErrNotStarted
	}

	weights := s.defaultWeights
	if setup.Weights != nil {
		weights = *setup.Weights
	}
	roster := s.defaultRoster
	if setup.Roster != nil {
		roster = setup.Roster
	}
	if err := validateRoster(roster); err != nil {
		return "", err
	}
	board, err := scoring.NewBoard(weights)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, ErrBadSetup)
	}

	p := &party{
		id:        uuid.NewString(),
		rumbles:   make(map[model.Division]*lifecycle.Rumble),
		board:     board,
		standings: standings.NewTreapStore(ctx),
		roster:    make(map[model.Division]map[string]bool),
		matches:   make(map[string]bool),
		props:     make(map[string]bool),
		endedAt:   make(map[model.Division]time.Time),
	}
	for div, names := range roster {
		p.rumbles[div] = lifecycle.New(div)
		p.roster[div] = make(map[string]bool, len(names))
		for _, name := range names {
			p.roster[div][name] = true
		}
	}
	for _, m := range setup.Matches {
		if m == "" {
			return "", fmt.Errorf("empty match id: %w", ErrBadSetup)
		}
		p.matches[m] = true
	}
	for _, prop := range setup.ChaosProps {
		if prop == "" {
			return "", fmt.Errorf("empty chaos prop: %w", ErrBadSetup)
		}
		p.props[prop] = true
	}

	s.parties[p.id] = p
	metrics.UpdatePartyCount(len(s.parties))
	s.logger.Info(ctx, "party created", logger.Party(p.id))
	return p.id, nil
}

func validateRoster(roster map[model.Division][]string) error {
	if len(roster) == 0 {
		return fmt.Errorf("empty roster: %w", ErrBadSetup)
	}
	for div, names := range roster {
		if !model.ValidDivision(div) {
			return fmt.Errorf("division %q: %w", div, ErrUnknownDivision)
		}
		seen := make(map[string]bool, len(names))
		for _, name := range names {
			if name == "" {
				return fmt.Errorf("division %s: empty wrestler name: %w", div, ErrBadSetup)
			}
			if seen[name] {
				return fmt.Errorf("division %s: duplicate wrestler %q: %w", div, name, ErrBadSetup)
			}
			seen[name] = true
		}
	}
	return nil
}

func (s *Service) party(id string) (*party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return nil, ErrNotStarted
	}
	p, ok := s.parties[id]
	if !ok {
		return nil, fmt.Errorf("party %q: %w", id, ErrPartyNotFound)
	}
	return p, nil
}

func (p *party) rumble(div model.Division) (*lifecycle.Rumble, error) {
	r, ok := p.rumbles[div]
	if !ok {
		return nil, fmt.Errorf("division %q: %w", div, ErrUnknownDivision)
	}
	return r, nil
}

// seen acknowledges retried commands. Returns true when the command was
// already applied and the caller should ack without re-applying.
func (s *Service) seen(ctx context.Context, commandID string) bool {
	if commandID == "" {
		return false
	}
	return s.deduper.SeenAndRecord(ctx, commandID)
}

// unsee rolls a failed command's id back so it can be retried.
func (s *Service) unsee(ctx context.Context, commandID string) {
	if commandID != "" {
		s.deduper.Unrecord(ctx, commandID)
	}
}

// ConfirmEntry records wrestler entering through slot number.
func (s *Service) ConfirmEntry(ctx context.Context, partyID, commandID string, div model.Division, slot int, wrestler string, ts time.Time) error {
	p, err := s.party(partyID)
	if err != nil {
		return err
	}
	if s.seen(ctx, commandID) {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = func() error {
		r, err := p.rumble(div)
		if err != nil {
			return err
		}
		if !p.roster[div][wrestler] {
			return fmt.Errorf("%q (%s): %w", wrestler, div, ErrUnknownWrestler)
		}
		return r.ConfirmEntry(slot, wrestler, ts)
	}()
	if err != nil {
		s.unsee(ctx, commandID)
		metrics.RecordFactRejected("entry")
		return err
	}

	metrics.RecordFactConfirmed("entry")
	s.publish(ctx, model.Update{
		Type: model.UpdateFactConfirmed, PartyID: partyID,
		Division: div, Slot: slot, At: ts,
	})
	s.publish(ctx, s.syncDerived(ctx, p, div)...)
	return nil
}

// ConfirmElimination records slot being eliminated, credited to eliminator
// (lifecycle.EliminatorOutside for unassisted).
func (s *Service) ConfirmElimination(ctx context.Context, partyID, commandID string, div model.Division, slot, eliminator int, ts time.Time) error {
	p, err := s.party(partyID)
	if err != nil {
		return err
	}
	if s.seen(ctx, commandID) {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = func() error {
		r, err := p.rumble(div)
		if err != nil {
			return err
		}
		return r.ConfirmElimination(slot, eliminator, ts)
	}()
	if err != nil {
		s.unsee(ctx, commandID)
		metrics.RecordFactRejected("elimination")
		return err
	}

	metrics.RecordFactConfirmed("elimination")
	s.publish(ctx, model.Update{
		Type: model.UpdateFactConfirmed, PartyID: partyID,
		Division: div, Slot: slot, At: ts,
	})
	s.publish(ctx, s.syncDerived(ctx, p, div)...)
	return nil
}

// ConfirmRumbleWinner records the host-declared winner and match end, which
// finalizes every end-of-match category for the division.
func (s *Service) ConfirmRumbleWinner(ctx context.Context, partyID, commandID string, div model.Division, wrestler string, endedAt time.Time) error {
	p, err := s.party(partyID)
	if err != nil {
		return err
	}
	if s.seen(ctx, commandID) {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var updates []model.Update
	err = func() error {
		if _, err := p.rumble(div); err != nil {
			return err
		}
		if !p.roster[div][wrestler] {
			return fmt.Errorf("%q (%s): %w", wrestler, div, ErrUnknownWrestler)
		}
		if endedAt.IsZero() {
			return fmt.Errorf("missing end timestamp: %w", ErrBadFact)
		}
		cat := model.Category{Kind: model.KindRumbleWinner, Division: div}
		// Ending the match first so the no-show penalty applies to this
		// resolution too.
		p.endedAt[div] = endedAt
		deltas, err := p.board.Resolve(model.Result{
			Category:   cat,
			Value:      wrestler,
			Source:     model.SourceDeclared,
			ResolvedAt: endedAt,
		}, p.noShows(div))
		if err != nil {
			delete(p.endedAt, div)
			return err
		}
		metrics.RecordResolution(string(cat.Kind))
		updates = append(updates, s.applyDeltas(ctx, p, cat, deltas)...)
		return nil
	}()
	if err != nil {
		s.unsee(ctx, commandID)
		metrics.RecordFactRejected("rumble_winner")
		return err
	}

	metrics.RecordFactConfirmed("rumble_winner")
	s.publish(ctx, model.Update{
		Type: model.UpdateFactConfirmed, PartyID: partyID,
		Division: div, At: endedAt,
	})
	s.publish(ctx, updates...)
	s.publish(ctx, s.syncDerived(ctx, p, div)...)
	return nil
}

// FreezeFinalFour lets the host lock the final four explicitly, overriding
// derivation (e.g. a double elimination dispute).
func (s *Service) FreezeFinalFour(ctx context.Context, partyID, commandID string, div model.Division, members []string, at time.Time) error {
	p, err := s.party(partyID)
	if err != nil {
		return err
	}
	if s.seen(ctx, commandID) {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var updates []model.Update
	err = func() error {
		if _, err := p.rumble(div); err != nil {
			return err
		}
		if len(members) != 4 {
			return fmt.Errorf("final four needs exactly 4 members, got %d: %w", len(members), ErrBadFact)
		}
		seen := make(map[string]bool, 4)
		for _, m := range members {
			if !p.roster[div][m] {
				return fmt.Errorf("%q (%s): %w", m, div, ErrUnknownWrestler)
			}
			if seen[m] {
				return fmt.Errorf("duplicate member %q: %w", m, ErrBadFact)
			}
			seen[m] = true
		}
		ffUpdates, err := s.resolveFinalFour(ctx, p, div, members, model.SourceDeclared, at)
		if err != nil {
			return err
		}
		updates = append(updates, ffUpdates...)
		return nil
	}()
	if err != nil {
		s.unsee(ctx, commandID)
		metrics.RecordFactRejected("final_four")
		return err
	}

	metrics.RecordFactConfirmed("final_four")
	s.publish(ctx, model.Update{
		Type: model.UpdateFactConfirmed, PartyID: partyID,
		Division: div, At: at,
	})
	s.publish(ctx, updates...)
	return nil
}

// DeclareResult records a host-declared answer for a non-derivable category
// (match winner, chaos prop) or a host override of a derived one.
func (s *Service) DeclareResult(ctx context.Context, partyID, commandID string, cat model.Category, value string, at time.Time) error {
	p, err := s.party(partyID)
	if err != nil {
		return err
	}
	if s.seen(ctx, commandID) {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var updates []model.Update
	err = func() error {
		if err := cat.Validate(); err != nil {
			return fmt.Errorf("%v: %w", err, ErrBadFact)
		}
		switch cat.Kind {
		case model.KindMatchWinner:
			if !p.matches[cat.Prop] {
				return fmt.Errorf("%q: %w", cat.Prop, ErrUnknownMatch)
			}
		case model.KindChaos:
			if !p.props[cat.Prop] {
				return fmt.Errorf("%q: %w", cat.Prop, ErrUnknownProp)
			}
			if value != "yes" && value != "no" {
				return fmt.Errorf("chaos value %q must be yes or no: %w", value, ErrBadFact)
			}
		case model.KindFinalFour:
			return fmt.Errorf("use the final-four freeze command: %w", ErrBadFact)
		default:
			if !p.roster[cat.Division][value] {
				return fmt.Errorf("%q (%s): %w", value, cat.Division, ErrUnknownWrestler)
			}
		}
		deltas, err := p.board.Resolve(model.Result{
			Category:   cat,
			Value:      value,
			Source:     model.SourceDeclared,
			ResolvedAt: at,
		}, p.noShows(cat.Division))
		if err != nil {
			return err
		}
		metrics.RecordResolution(string(cat.Kind))
		updates = s.applyDeltas(ctx, p, cat, deltas)
		return nil
	}()
	if err != nil {
		s.unsee(ctx, commandID)
		metrics.RecordFactRejected("declare_result")
		return err
	}

	metrics.RecordFactConfirmed("declare_result")
	s.publish(ctx, updates...)
	return nil
}

// ResetEntry undoes a confirmed entry.
func (s *Service) ResetEntry(ctx context.Context, partyID, commandID string, div model.Division, slot int) error {
	return s.resetFact(ctx, partyID, commandID, div, slot, "reset_entry", func(r *lifecycle.Rumble) error {
		return r.ResetEntry(slot)
	})
}

// ResetElimination undoes a confirmed elimination.
func (s *Service) ResetElimination(ctx context.Context, partyID, commandID string, div model.Division, slot int) error {
	return s.resetFact(ctx, partyID, commandID, div, slot, "reset_elimination", func(r *lifecycle.Rumble) error {
		return r.ResetElimination(slot)
	})
}

func (s *Service) resetFact(ctx context.Context, partyID, commandID string, div model.Division, slot int, kind string, op func(*lifecycle.Rumble) error) error {
	p, err := s.party(partyID)
	if err != nil {
		return err
	}
	if s.seen(ctx, commandID) {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = func() error {
		r, err := p.rumble(div)
		if err != nil {
			return err
		}
		return op(r)
	}()
	if err != nil {
		s.unsee(ctx, commandID)
		metrics.RecordFactRejected(kind)
		return err
	}

	metrics.RecordFactConfirmed(kind)
	s.publish(ctx, model.Update{
		Type: model.UpdateFactReset, PartyID: partyID,
		Division: div, Slot: slot, At: time.Now(),
	})
	s.publish(ctx, s.syncDerived(ctx, p, div)...)
	return nil
}

// ResetResult clears a category's result, un-resolving every prediction
// scored against it. Derived categories re-resolve on the next confirmed
// fact; declared ones wait for a fresh declaration.
func (s *Service) ResetResult(ctx context.Context, partyID, commandID string, cat model.Category) error {
	p, err := s.party(partyID)
	if err != nil {
		return err
	}
	if s.seen(ctx, commandID) {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var updates []model.Update
	err = func() error {
		if cat.Kind == model.KindRumbleWinner {
			// Clearing the winner also reopens the end-of-match clock.
			delete(p.endedAt, cat.Division)
		}
		affected, err := p.board.Unresolve(cat)
		if err != nil {
			return err
		}
		metrics.RecordUnresolution(string(cat.Kind))
		updates = append(updates, s.refreshTotals(ctx, p, affected)...)
		c := cat
		updates = append(updates, model.Update{
			Type: model.UpdateUnresolved, PartyID: p.id,
			Division: cat.Division, Category: &c, At: time.Now(),
		})
		return nil
	}()
	if err != nil {
		s.unsee(ctx, commandID)
		metrics.RecordFactRejected("reset_result")
		return err
	}

	metrics.RecordFactConfirmed("reset_result")
	s.publish(ctx, updates...)
	return nil
}

// SubmitPrediction validates and records a participant's pick. The conflict
// table and the category lock are enforced here no matter what the caller's
// UI filtered.
func (s *Service) SubmitPrediction(ctx context.Context, partyID string, pred model.Prediction) error {
	p, err := s.party(partyID)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = func() error {
		if err := pred.Category.Validate(); err != nil {
			return fmt.Errorf("%v: %w", err, scoring.ErrBadPrediction)
		}
		switch pred.Category.Kind {
		case model.KindMatchWinner:
			if !p.matches[pred.Category.Prop] {
				return fmt.Errorf("%q: %w", pred.Category.Prop, ErrUnknownMatch)
			}
		case model.KindChaos:
			if !p.props[pred.Category.Prop] {
				return fmt.Errorf("%q: %w", pred.Category.Prop, ErrUnknownProp)
			}
			if pred.Value != "yes" && pred.Value != "no" {
				return fmt.Errorf("chaos value %q must be yes or no: %w", pred.Value, scoring.ErrBadPrediction)
			}
		default:
			if !p.roster[pred.Category.Division][pred.Value] {
				return fmt.Errorf("%q (%s): %w", pred.Value, pred.Category.Division, ErrUnknownWrestler)
			}
		}
		return p.board.Submit(pred)
	}()
	if err != nil {
		metrics.RecordPredictionRejected()
		return err
	}
	metrics.RecordPredictionAccepted()
	return nil
}

// BlockedValues returns the values a participant may no longer pick for a
// category, mapped to the blocking category. Callers use it to filter the
// option list before submission.
func (s *Service) BlockedValues(ctx context.Context, partyID, participantID string, cat model.Category) (map[string]model.Category, error) {
	p, err := s.party(partyID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return conflict.BlockedValues(cat, p.board.Predictions(participantID)), nil
}

// Standings returns the top-N point totals for a party.
func (s *Service) Standings(ctx context.Context, partyID string, n int) ([]standings.Entry, error) {
	p, err := s.party(partyID)
	if err != nil {
		return nil, err
	}
	return p.standings.TopN(ctx, n)
}

// ParticipantRank returns one participant's rank and total.
func (s *Service) ParticipantRank(ctx context.Context, partyID, participantID string) (standings.Entry, error) {
	p, err := s.party(partyID)
	if err != nil {
		return standings.Entry{}, err
	}
	return p.standings.Rank(ctx, participantID)
}

// Snapshot returns a consistent copy of one division's slots.
func (s *Service) Snapshot(ctx context.Context, partyID string, div model.Division) (lifecycle.Snapshot, error) {
	p, err := s.party(partyID)
	if err != nil {
		return lifecycle.Snapshot{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	r, err := p.rumble(div)
	if err != nil {
		return lifecycle.Snapshot{}, err
	}
	return r.Snapshot(), nil
}

// Results returns every resolved result for a party.
func (s *Service) Results(ctx context.Context, partyID string) ([]model.Result, error) {
	p, err := s.party(partyID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.board.Results(), nil
}

// Subscribe registers an update consumer for one party.
func (s *Service) Subscribe(ctx context.Context, partyID string) (<-chan model.Update, func(), error) {
	if _, err := s.party(partyID); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.registry.Subscribe(partyID)
	return ch, cancel, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started": s.started,
		"parties": len(s.parties),
	}
	if s.started {
		stats["busDepth"] = s.bus.Len(context.Background())
		stats["subscribers"] = s.registry.Count()
		stats["commandsSeen"] = s.deduper.Size()
	}
	return stats
}

// publish pushes updates onto the bus; a full bus drops rather than stalls.
func (s *Service) publish(ctx context.Context, updates ...model.Update) {
	for _, u := range updates {
		if !s.bus.Enqueue(ctx, u) {
			s.logger.Warn(ctx, "update dropped",
				logger.Party(u.PartyID),
				logger.String("type", string(u.Type)),
			)
		}
	}
}

// noShows names rostered wrestlers that never entered, once the division's
// match has ended. Nil beforehand, which disables the penalty.
func (p *party) noShows(div model.Division) map[string]bool {
	if p.endedAt[div].IsZero() {
		return nil
	}
	r, ok := p.rumbles[div]
	if !ok {
		return nil
	}
	entered := r.Snapshot().Entered()
	out := make(map[string]bool)
	for name := range p.roster[div] {
		if !entered[name] {
			out[name] = true
		}
	}
	return out
}

// applyDeltas pushes fresh totals into the standings store and shapes the
// outbound updates for one resolved category.
func (s *Service) applyDeltas(ctx context.Context, p *party, cat model.Category, deltas []model.ScoreDelta) []model.Update {
	if len(deltas) == 0 {
		return nil
	}
	participants := make([]string, 0, len(deltas))
	for _, d := range deltas {
		participants = append(participants, d.ParticipantID)
	}
	c := cat
	updates := []model.Update{{
		Type: model.UpdateResolved, PartyID: p.id,
		Division: cat.Division, Category: &c,
		Deltas: deltas, At: time.Now(),
	}}
	return append(updates, s.refreshTotals(ctx, p, participants)...)
}

// refreshTotals re-applies the affected participants' totals to the
// standings store.
func (s *Service) refreshTotals(ctx context.Context, p *party, participants []string) []model.Update {
	if len(participants) == 0 {
		return nil
	}
	for _, id := range participants {
		if err := p.standings.Apply(ctx, id, p.board.TotalFor(id)); err != nil {
			s.logger.Error(ctx, "standings update failed",
				logger.Party(p.id),
				logger.Participant(id),
				logger.Error(err),
			)
		}
	}
	return []model.Update{{
		Type: model.UpdateTotals, PartyID: p.id, At: time.Now(),
	}}
}

// syncDerived reconciles every derivable category for a division against
// the current lifecycle snapshot: categories whose answer is now mechanical
// get resolved, categories whose basis was reset get un-resolved, changed
// answers get re-resolved. Host-declared results are never touched here.
// Must hold p.mu.
func (s *Service) syncDerived(ctx context.Context, p *party, div model.Division) []model.Update {
	r, ok := p.rumbles[div]
	if !ok {
		return nil
	}
	snap := r.Snapshot()
	endedAt := p.endedAt[div]
	noShows := p.noShows(div)

	var updates []model.Update

	// first_eliminated resolves as soon as anyone is out.
	{
		cat := model.Category{Kind: model.KindFirstEliminated, Division: div}
		ans, err := derive.FirstEliminated(snap)
		updates = append(updates, s.reconcile(ctx, p, cat, ans.Occupant, err == nil, noShows)...)
	}

	// final_four follows derivation unless the host froze it.
	if !p.declaredFinalFour(div) {
		members, err := derive.FinalFour(snap)
		if err == nil {
			ffUpdates, rerr := s.resolveFinalFour(ctx, p, div, members, model.SourceDerived, time.Now())
			updates = append(updates, ffUpdates...)
			if rerr != nil {
				s.logger.Error(ctx, "derived final-four resolution failed",
					logger.Party(p.id),
					logger.String("division", string(div)),
					logger.Error(rerr),
				)
			}
		} else {
			updates = append(updates, s.unresolveFinalFour(ctx, p, div)...)
		}
	}

	// End-of-match categories only settle once the winner is declared.
	if !endedAt.IsZero() {
		{
			cat := model.Category{Kind: model.KindMostEliminations, Division: div}
			ans, _, err := derive.MostEliminations(snap)
			updates = append(updates, s.reconcile(ctx, p, cat, ans.Occupant, err == nil, noShows)...)
		}
		{
			cat := model.Category{Kind: model.KindLongestDuration, Division: div}
			ans, _, err := derive.LongestDuration(snap, endedAt)
			updates = append(updates, s.reconcile(ctx, p, cat, ans.Occupant, err == nil, noShows)...)
		}
		for slot := 1; slot <= lifecycle.SlotCount; slot++ {
			cat := model.Category{Kind: model.KindEntrant, Division: div, Slot: slot}
			occupant, err := derive.OccupantOf(snap, slot)
			updates = append(updates, s.reconcile(ctx, p, cat, occupant, err == nil, noShows)...)
		}
	}
	return updates
}

// reconcile settles one single-valued derived category against its desired
// answer. Must hold p.mu.
func (s *Service) reconcile(ctx context.Context, p *party, cat model.Category, value string, ok bool, noShows map[string]bool) []model.Update {
	existing, resolved := p.board.Result(cat)
	if resolved && existing.Source == model.SourceDeclared {
		return nil // host override wins until explicitly reset
	}

	var updates []model.Update
	if !ok {
		if resolved {
			updates = append(updates, s.unresolveOne(ctx, p, cat)...)
		}
		return updates
	}
	if resolved && existing.Value == value {
		return nil
	}
	if resolved {
		updates = append(updates, s.unresolveOne(ctx, p, cat)...)
	}
	deltas, err := p.board.Resolve(model.Result{
		Category:   cat,
		Value:      value,
		Source:     model.SourceDerived,
		ResolvedAt: time.Now(),
	}, noShows)
	if err != nil {
		s.logger.Error(ctx, "derived resolution failed",
			logger.Party(p.id),
			logger.String("category", cat.String()),
			logger.Error(err),
		)
		return updates
	}
	metrics.RecordResolution(string(cat.Kind))
	return append(updates, s.applyDeltas(ctx, p, cat, deltas)...)
}

func (s *Service) unresolveOne(ctx context.Context, p *party, cat model.Category) []model.Update {
	affected, err := p.board.Unresolve(cat)
	if err != nil {
		return nil
	}
	metrics.RecordUnresolution(string(cat.Kind))
	c := cat
	updates := []model.Update{{
		Type: model.UpdateUnresolved, PartyID: p.id,
		Division: cat.Division, Category: &c, At: time.Now(),
	}}
	return append(updates, s.refreshTotals(ctx, p, affected)...)
}

// resolveFinalFour resolves all four pick slots against one 4-member set.
// A host freeze (SourceDeclared) first clears any derived resolutions so the
// frozen set is recorded as declared even when it matches the derived answer;
// otherwise syncDerived would treat the freeze as derivable and undo it on
// the next basis change. Already-resolved identical derived slots no-op.
func (s *Service) resolveFinalFour(ctx context.Context, p *party, div model.Division, members []string, source model.Source, at time.Time) ([]model.Update, error) {
	var updates []model.Update
	if source == model.SourceDeclared {
		updates = append(updates, s.unresolveFinalFour(ctx, p, div)...)
	}
	for slot := 1; slot <= 4; slot++ {
		cat := model.Category{Kind: model.KindFinalFour, Division: div, Slot: slot}
		deltas, err := p.board.Resolve(model.Result{
			Category:   cat,
			Members:    members,
			Source:     source,
			ResolvedAt: at,
		}, p.noShows(div))
		if err != nil {
			return updates, err
		}
		if len(deltas) > 0 {
			metrics.RecordResolution(string(cat.Kind))
			updates = append(updates, s.applyDeltas(ctx, p, cat, deltas)...)
		}
	}
	return updates, nil
}

// unresolveFinalFour clears derived final-four resolutions when the basis
// no longer holds (e.g. an elimination was reset back above four).
func (s *Service) unresolveFinalFour(ctx context.Context, p *party, div model.Division) []model.Update {
	var updates []model.Update
	for slot := 1; slot <= 4; slot++ {
		cat := model.Category{Kind: model.KindFinalFour, Division: div, Slot: slot}
		if res, ok := p.board.Result(cat); ok && res.Source == model.SourceDerived {
			updates = append(updates, s.unresolveOne(ctx, p, cat)...)
		}
	}
	return updates
}

// declaredFinalFour reports whether the host froze the division's final four.
func (p *party) declaredFinalFour(div model.Division) bool {
	for slot := 1; slot <= 4; slot++ {
		cat := model.Category{Kind: model.KindFinalFour, Division: div, Slot: slot}
		if res, ok := p.board.Result(cat); ok && res.Source == model.SourceDeclared {
			return true
		}
	}
	return false
}
