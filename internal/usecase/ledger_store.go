package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/goexpense/internal/domain"
)

// EditSession is the draft of the single record currently being edited.
// Value holds the raw text as typed.
type EditSession struct {
	RecordID    string
	Description string
	Value       string
}

// LedgerState is a snapshot of the store for presentation.
type LedgerState struct {
	Identity *domain.Identity
	Records  []*domain.Record
	View     domain.GroupedView
	Edit     *EditSession
}

// LedgerStore holds one identity's expense records, the open edit session
// and the grouped view derived from them. Records held by the store are never
// modified in place; every change swaps in a new list.
type LedgerStore struct {
	repo      RecordRepository
	clock     Clock
	policy    RefreshPolicy
	publisher EventPublisher
	recorder  LedgerRecorder
	logger    zerolog.Logger

	// opMu serializes Add, CommitEdit and Delete including their refresh.
	opMu sync.Mutex

	mu       sync.RWMutex
	identity *domain.Identity
	epoch    uint64
	records  []*domain.Record
	view     domain.GroupedView
	edit     *EditSession
}

// NewLedgerStore creates a LedgerStore with no identity. A nil policy means
// ReloadPolicy; publisher and recorder may be nil.
func NewLedgerStore(
	repo RecordRepository,
	clock Clock,
	policy RefreshPolicy,
	publisher EventPublisher,
	recorder LedgerRecorder,
	logger zerolog.Logger,
) *LedgerStore {
	if policy == nil {
		policy = ReloadPolicy{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &LedgerStore{
		repo:      repo,
		clock:     clock,
		policy:    policy,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger.With().Str("component", "ledger_store").Logger(),
		view:      domain.GroupByDate(nil),
	}
}

// Identity returns the identity the store is scoped to, or nil.
func (s *LedgerStore) Identity() *domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Reset discards all records and the edit session and scopes the store to
// identity. Loads still in flight for the previous identity are dropped.
func (s *LedgerStore) Reset(identity *domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.identity = identity
	s.epoch++
	s.edit = nil
	s.setRecordsLocked(nil)
}

// HandleIdentity applies an identity change: state is always discarded and a
// non-nil identity is loaded.
func (s *LedgerStore) HandleIdentity(ctx context.Context, identity *domain.Identity) error {
	s.Reset(identity)
	if identity == nil {
		return nil
	}
	return s.Load(ctx)
}

// Watch applies every identity emitted by provider until ctx is done or the
// subscription ends. Load failures are logged and do not stop the watch.
func (s *LedgerStore) Watch(ctx context.Context, provider IdentityProvider) error {
	updates := provider.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case identity, ok := <-updates:
			if !ok {
				return ctx.Err()
			}
			if identity == nil {
				s.logger.Info().Msg("identity signed out, ledger cleared")
			}
			if err := s.HandleIdentity(ctx, identity); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn().Err(err).Msg("reload after identity change failed")
			}
		}
	}
}

// Load replaces the record list with the identity's records from persistence,
// sorted newest date first. On failure the previous list is kept.
func (s *LedgerStore) Load(ctx context.Context) error {
	s.mu.RLock()
	identity, epoch := s.identity, s.epoch
	s.mu.RUnlock()

	if identity == nil {
		return domain.ErrNoIdentity
	}

	start := time.Now()
	records, err := s.repo.Query(ctx, RecordFilter{Owner: identity.ID})
	if err != nil {
		s.recorder.ObserveLoad(time.Since(start), 0, err)
		s.logger.Error().Err(err).Str("owner", identity.ID).Msg("failed to load records")
		return persistenceError("load records", err)
	}

	owned := make([]*domain.Record, 0, len(records))
	for _, r := range records {
		if r.Owner != identity.ID {
			continue
		}
		owned = append(owned, r)
	}
	if dropped := len(records) - len(owned); dropped > 0 {
		s.logger.Warn().Int("dropped", dropped).Str("owner", identity.ID).Msg("query returned records of another owner")
	}
	domain.SortByDateDesc(owned)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		s.logger.Debug().Str("owner", identity.ID).Msg("discarding load for previous identity")
		return nil
	}

	s.setRecordsLocked(owned)
	s.recorder.ObserveLoad(time.Since(start), len(owned), nil)
	s.logger.Debug().Int("records", len(owned)).Str("owner", identity.ID).Msg("records loaded")

	return nil
}

// Add validates the input, stores a new record dated today and refreshes.
// Invalid input is rejected before any persistence call.
func (s *LedgerStore) Add(ctx context.Context, description, value string) (*domain.Record, error) {
	desc, amount, err := domain.ValidateRecordInput(description, value)
	if err != nil {
		return nil, err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	identity, epoch := s.identity, s.epoch
	s.mu.RUnlock()

	if identity == nil {
		return nil, domain.ErrNoIdentity
	}

	record := &domain.Record{
		Description: desc,
		Value:       amount,
		Date:        s.clock.Today(),
		Owner:       identity.ID,
		CreatedAt:   s.clock.Now().UTC(),
	}

	id, err := s.repo.Insert(ctx, record)
	s.recorder.ObserveMutation(OpAdd, err)
	if err != nil {
		s.logger.Error().Err(err).Str("owner", identity.ID).Msg("failed to add record")
		return nil, persistenceError("insert record", err)
	}
	record.ID = id

	s.logger.Info().Str("record_id", id).Str("date", record.Date).Msg("record added")
	s.publish(ctx, domain.EventTypeRecordCreated, record)
	s.refresh(ctx, Mutation{Kind: MutationAdd, Record: record.Clone(), epoch: epoch})

	return record, nil
}

// BeginEdit opens an edit session for a record in the current list, seeding
// the draft from it. Any open draft is discarded.
func (s *LedgerStore) BeginEdit(id string) (*EditSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity == nil {
		return nil, domain.ErrNoIdentity
	}

	r := s.findLocked(id)
	if r == nil {
		return nil, domain.ErrRecordNotFound
	}

	s.edit = &EditSession{
		RecordID:    r.ID,
		Description: r.Description,
		Value:       r.Value.String(),
	}

	edit := *s.edit
	return &edit, nil
}

// UpdateDraft replaces the draft fields of the open edit session.
func (s *LedgerStore) UpdateDraft(description, value string) (*EditSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.edit == nil {
		return nil, domain.ErrNoEditSession
	}

	s.edit = &EditSession{
		RecordID:    s.edit.RecordID,
		Description: description,
		Value:       value,
	}

	edit := *s.edit
	return &edit, nil
}

// CommitEdit writes the draft in a single update call, closes the session
// and refreshes. On validation or persistence failure the session stays open.
func (s *LedgerStore) CommitEdit(ctx context.Context) (*domain.Record, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	identity, epoch, edit := s.identity, s.epoch, s.edit
	var current *domain.Record
	if edit != nil {
		current = s.findLocked(edit.RecordID)
	}
	s.mu.RUnlock()

	if identity == nil {
		return nil, domain.ErrNoIdentity
	}
	if edit == nil {
		return nil, domain.ErrNoEditSession
	}

	desc, amount, err := domain.ValidateRecordInput(edit.Description, edit.Value)
	if err != nil {
		return nil, err
	}

	if current == nil {
		return nil, domain.ErrRecordNotFound
	}

	patch := domain.RecordPatch{Description: desc, Value: amount}
	err = s.repo.Update(ctx, edit.RecordID, identity.ID, patch)
	s.recorder.ObserveMutation(OpUpdate, err)
	if err != nil {
		s.logger.Error().Err(err).Str("record_id", edit.RecordID).Msg("failed to update record")
		return nil, persistenceError("update record", err)
	}

	updated := current.Clone()
	updated.Apply(patch)

	s.mu.Lock()
	if s.epoch == epoch && s.edit == edit {
		s.edit = nil
	}
	s.mu.Unlock()

	s.logger.Info().Str("record_id", updated.ID).Msg("record updated")
	s.publish(ctx, domain.EventTypeRecordUpdated, updated)
	s.refresh(ctx, Mutation{Kind: MutationUpdate, Record: updated.Clone(), epoch: epoch})

	return updated, nil
}

// CancelEdit discards the open draft, if any. Nothing is persisted.
func (s *LedgerStore) CancelEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edit = nil
}

// Delete removes a record in the current list and refreshes. An edit session
// on the deleted record is closed.
func (s *LedgerStore) Delete(ctx context.Context, id string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	identity, epoch := s.identity, s.epoch
	var current *domain.Record
	if identity != nil {
		current = s.findLocked(id)
	}
	s.mu.RUnlock()

	if identity == nil {
		return domain.ErrNoIdentity
	}
	if current == nil {
		return domain.ErrRecordNotFound
	}

	err := s.repo.Delete(ctx, id, identity.ID)
	s.recorder.ObserveMutation(OpDelete, err)
	if err != nil {
		s.logger.Error().Err(err).Str("record_id", id).Msg("failed to delete record")
		return persistenceError("delete record", err)
	}

	s.mu.Lock()
	if s.epoch == epoch && s.edit != nil && s.edit.RecordID == id {
		s.edit = nil
	}
	s.mu.Unlock()

	s.logger.Info().Str("record_id", id).Msg("record deleted")
	s.publish(ctx, domain.EventTypeRecordDeleted, current)
	s.refresh(ctx, Mutation{Kind: MutationDelete, Record: current, epoch: epoch})

	return nil
}

// Records returns the current list, newest date first. Callers must not
// modify the returned records.
func (s *LedgerStore) Records() []*domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*domain.Record(nil), s.records...)
}

// GroupedView returns the date-grouped projection of the current list.
func (s *LedgerStore) GroupedView() domain.GroupedView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// Editing returns a copy of the open edit session, or nil.
func (s *LedgerStore) Editing() *EditSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.edit == nil {
		return nil
	}
	edit := *s.edit
	return &edit
}

// State returns a consistent snapshot of the store.
func (s *LedgerStore) State() LedgerState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := LedgerState{
		Identity: s.identity,
		Records:  append([]*domain.Record(nil), s.records...),
		View:     s.view,
	}
	if s.edit != nil {
		edit := *s.edit
		state.Edit = &edit
	}
	return state
}

// applyPatch folds a committed mutation into the local list without a query.
func (s *LedgerStore) applyPatch(m Mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != m.epoch || m.Record == nil {
		return
	}

	next := make([]*domain.Record, 0, len(s.records)+1)
	for _, r := range s.records {
		if r.ID == m.Record.ID {
			if m.Kind == MutationUpdate {
				next = append(next, m.Record)
			}
			continue
		}
		next = append(next, r)
	}
	if m.Kind == MutationAdd {
		next = append(next, m.Record)
	}

	domain.SortByDateDesc(next)
	s.setRecordsLocked(next)
}

func (s *LedgerStore) refresh(ctx context.Context, m Mutation) {
	if err := s.policy.Refresh(ctx, s, m); err != nil {
		s.logger.Warn().Err(err).Msg("refresh after mutation failed, list may be stale")
	}
}

func (s *LedgerStore) publish(ctx context.Context, eventType string, r *domain.Record) {
	if s.publisher == nil {
		return
	}

	event := domain.RecordEvent{
		Type:        eventType,
		RecordID:    r.ID,
		Owner:       r.Owner,
		Description: r.Description,
		Value:       r.ValueDisplay(),
		Date:        r.Date,
		OccurredAt:  s.clock.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Str("record_id", r.ID).Msg("failed to publish record event")
	}
}

// setRecordsLocked swaps in a new list, rebuilds the view and closes an edit
// session whose record is gone. Caller holds s.mu.
func (s *LedgerStore) setRecordsLocked(records []*domain.Record) {
	s.records = records
	s.view = domain.GroupByDate(records)

	if s.edit != nil && s.findLocked(s.edit.RecordID) == nil {
		s.edit = nil
	}
}

func (s *LedgerStore) findLocked(id string) *domain.Record {
	for _, r := range s.records {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func persistenceError(op string, err error) error {
	if errors.Is(err, domain.ErrPersistence) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrPersistence, op, err)
}

type nopRecorder struct{}

func (nopRecorder) ObserveLoad(time.Duration, int, error) {}
func (nopRecorder) ObserveMutation(string, error)         {}
