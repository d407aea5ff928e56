package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/goexpense/internal/domain"
	"github.com/iho/goexpense/internal/usecase"
	"github.com/iho/goexpense/internal/usecase/mocks"
)

func record(id, owner, date, value string) *domain.Record {
	return &domain.Record{
		ID:          id,
		Owner:       owner,
		Date:        date,
		Description: "expense " + id,
		Value:       decimal.RequireFromString(value),
	}
}

func loadedStore(t *testing.T, repo usecase.RecordRepository, policy usecase.RefreshPolicy) *usecase.LedgerStore {
	t.Helper()
	store := newStore(repo, policy, nil)
	require.NoError(t, store.HandleIdentity(context.Background(), alice))
	return store
}

func ids(records []*domain.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestLedgerStore_LoadScenarioOrderAndTotal(t *testing.T) {
	t.Parallel()

	repo := newFakeRecordRepo(
		record("older", "alice", "2024-01-01", "5"),
		record("newer", "alice", "2024-01-02", "10"),
	)

	store := loadedStore(t, repo, nil)

	assert.Equal(t, []string{"newer", "older"}, ids(store.Records()))

	view := store.GroupedView()
	assert.Equal(t, "15.00", view.TotalDisplay())
	assert.Equal(t, []string{"2024-01-02", "2024-01-01"}, view.Dates())
	assert.Equal(t, 2, view.Count)
}

func TestLedgerStore_LoadOnlyOwnerRecords(t *testing.T) {
	t.Parallel()

	repo := newFakeRecordRepo(
		record("a1", "alice", "2024-01-01", "1"),
		record("b1", "bob", "2024-01-03", "100"),
		record("a2", "alice", "2024-01-02", "2"),
	)
	repo.leak = true

	store := loadedStore(t, repo, nil)

	for _, r := range store.Records() {
		assert.Equal(t, "alice", r.Owner)
	}
	assert.Equal(t, []string{"a2", "a1"}, ids(store.Records()))
	assert.Equal(t, "3.00", store.GroupedView().TotalDisplay())
}

func TestLedgerStore_LoadWithoutIdentity(t *testing.T) {
	t.Parallel()

	store := newStore(newFakeRecordRepo(), nil, nil)

	err := store.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoIdentity)
}

func TestLedgerStore_LoadFailureKeepsPreviousState(t *testing.T) {
	t.Parallel()

	repo := newFakeRecordRepo(record("a1", "alice", "2024-01-01", "7"))
	store := loadedStore(t, repo, nil)

	repo.mu.Lock()
	repo.queryErr = errors.New("connection reset")
	repo.mu.Unlock()

	err := store.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)

	assert.Equal(t, []string{"a1"}, ids(store.Records()))
	assert.Equal(t, "7.00", store.GroupedView().TotalDisplay())
}

func TestLedgerStore_AddInvalidInputMakesNoPersistenceCalls(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRecordRepository(ctrl)
	repo.EXPECT().Query(gomock.Any(), usecase.RecordFilter{Owner: "alice"}).
		Return([]*domain.Record{record("a1", "alice", "2024-01-01", "3")}, nil).Times(1)

	store := loadedStore(t, repo, nil)

	tests := []struct {
		name        string
		description string
		value       string
		wantErr     error
	}{
		{name: "empty description", description: "  ", value: "10", wantErr: domain.ErrEmptyDescription},
		{name: "non-numeric value", description: "Lunch", value: "ten", wantErr: domain.ErrInvalidValue},
		{name: "missing value", description: "Lunch", value: "", wantErr: domain.ErrMissingValue},
		{name: "negative value", description: "Lunch", value: "-1", wantErr: domain.ErrNegativeValue},
	}

	for _, tt := range tests {
		_, err := store.Add(context.Background(), tt.description, tt.value)
		assert.ErrorIs(t, err, tt.wantErr, tt.name)
		assert.ErrorIs(t, err, domain.ErrValidation, tt.name)
	}

	assert.Equal(t, []string{"a1"}, ids(store.Records()))
}

func TestLedgerStore_AddStoresTodayAndReloads(t *testing.T) {
	t.Parallel()

	repo := newFakeRecordRepo(record("a1", "alice", "2024-01-01", "5"))
	publisher := &recordingPublisher{}
	store := newStore(repo, nil, publisher)
	require.NoError(t, store.HandleIdentity(context.Background(), alice))

	created, err := store.Add(context.Background(), "  Coffee ", "3,50")
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Coffee", created.Description)
	assert.Equal(t, "2024-01-02", created.Date)
	assert.Equal(t, "alice", created.Owner)
	assert.Equal(t, "3.50", created.ValueDisplay())

	queries, inserts, _, _ := repo.counts()
	assert.Equal(t, 2, queries, "add must trigger a reload")
	assert.Equal(t, 1, inserts)

	assert.Equal(t, []string{created.ID, "a1"}, ids(store.Records()))
	assert.Equal(t, "8.50", store.GroupedView().TotalDisplay())
	assert.Equal(t, []string{domain.EventTypeRecordCreated}, publisher.types())
}

func TestLedgerStore_AddPersistenceFailure(t *testing.T) {
	t.Parallel()

	repo := newFakeRecordRepo(record("a1", "alice", "2024-01-01", "5"))
	store := loadedStore(t, repo, nil)

	repo.mu.Lock()
	repo.insertErr = errors.New("permission denied")
	repo.mu.Unlock()

	_, err := store.Add(context.Background(), "Taxi", "12")
	assert.ErrorIs(t, err, domain.ErrPersistence)

	require.NoError(t, store.Load(context.Background()))
	assert.Equal(t, []string{"a1"}, ids(store.Records()))
}

func TestLedgerStore_AddWithoutIdentity(t *testing.T) {
	t.Parallel()

	repo := newFakeRecordRepo()
	store := newStore(repo, nil, nil)

	_, err := store.Add(context.Background(), "Taxi", "12")
	assert.ErrorIs(t, err, domain.ErrNoIdentity)
	assert.Zero(t, repo.writes())
}

func TestLedgerStore_RefreshFailureDoesNotFailMutation(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRecordRepository(ctrl)

	gomock.InOrder(
		repo.EXPECT().Query(gomock.Any(), gomock.Any()).Return(nil, nil),
		repo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return("new-id", nil),
		repo.EXPECT().Query(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout")),
	)

	store := loadedStore(t, repo, nil)

	created, err := store.Add(context.Background(), "Taxi", "12")
	require.NoError(t, err)
	assert.Equal(t, "new-id", created.ID)
}

func TestLedgerStore_BeginThenCancelLeavesRecordUnchanged(t *testing.T) {
	t.Parallel()

	original := record("a1", "alice", "2024-01-01", "12.34")
	repo := newFakeRecordRepo(original)
	store := loadedStore(t, repo, nil)

	edit, err := store.BeginEdit("a1")
	require.NoError(t, err)
	assert.Equal(t, &usecase.EditSession{RecordID: "a1", Description: "expense a1", Value: "12.34"}, edit)

	_, err = store.UpdateDraft("Something else", "99")
	require.NoError(t, err)

	store.CancelEdit()

	assert.Nil(t, store.Editing())
	assert.Zero(t, repo.writes())

	persisted, ok := repo.get("a1")
	require.True(t, ok)
	assert.Equal(t, original, persisted)
}

func TestLedgerStore_CommitEditUpdatesWithoutDuplicate(t *testing.T) {
	t.Parallel()

	repo := newFakeRecordRepo(
		record("a1", "alice", "2024-01-01", "12"),
		record("a2", "alice", "2024-01-01", "8"),
	)
	publisher := &recordingPublisher{}
	store := newStore(repo, nil, publisher)
	require.NoError(t, store.HandleIdentity(context.Background(), alice))

	_, err := store.BeginEdit("a1")
	require.NoError(t, err)
	_, err = store.UpdateDraft("Groceries", "45.50")
	require.NoError(t, err)

	updated, err := store.CommitEdit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Groceries", updated.Description)
	assert.True(t, updated.Value.Equal(decimal.RequireFromString("45.50")))
	assert.Nil(t, store.Editing())

	_, _, updates, _ := repo.counts()
	assert.Equal(t, 1, updates)

	require.NoError(t, store.Load(context.Background()))
	records := store.Records()
	require.Len(t, records, 2)

	var matches int
	for _, r := range records {
		if r.ID == "a1" {
			matches++
			assert.Equal(t, "Groceries", r.Description)
			assert.Equal(t, "45.50", r.ValueDisplay())
			assert.Equal(t, "2024-01-01", r.Date)
		}
	}
	assert.Equal(t, 1, matches)
	assert.Equal(t, []string{"a1", "a2"}, ids(records), "order within a date is kept")
	assert.Equal(t, []string{domain.EventTypeRecordUpdated}, publisher.types())
}

func TestLedgerStore_UnchangedEditKeepsFullPrecision(t *testing.T) {
	t.Parallel()

	repo := newFakeRecordRepo()
	store := loadedStore(t, repo, nil)

	created, err := store.Add(context.Background(), "coffee", "0.125")
	require.NoError(t, err)

	edit, err := store.BeginEdit(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.125", edit.Value)

	updated, err := store.CommitEdit(context.Background())
	require.NoError(t, err)
	assert.True(t, updated.Value.Equal(decimal.RequireFromString("0.125")), "got %s", updated.Value)

	require.NoError(t, store.Load(context.Background()))
	records := store.Records()
	require.Len(t, records, 1)
	assert.True(t, records[0].Value.Equal(decimal.RequireFromString("0.125")), "got %s", records[0].Value)
}

func TestLedgerStore_CommitEditInvalidDraftKeepsSession(t *testing.T) {
	t.Parallel()

	repo := newFakeRecordRepo(record("a1", "alice", "2024-01-01", "12"))
	store := loadedStore(t, repo, nil)

	_, err := store.BeginEdit("a1")
	require.NoError(t, err)
	_, err = store.UpdateDraft("Groceries", "forty")
	require.NoError(t, err)

	_, err = store.CommitEdit(context.Background())
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorIs(t, err, domain.ErrInvalidValue)

	assert.NotNil(t, store.Editing())
	assert.Zero(t, repo.writes())
}

func TestLedgerStore_CommitEditPersistenceFailureKeepsSession(t *testing.T) {
	t.Parallel()

	repo := newFakeRecordRepo(record("a1", "alice", "2024-01-01", "12"))
	store := loadedStore(t, repo, nil)

	_, err := store.BeginEdit("a1")
	require.NoError(t, err)

	repo.mu.Lock()
	repo.updateErr = errors.New("unavailable")
	repo.mu.Unlock()

	_, err = store.CommitEdit(context.Background())
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.NotNil(t, store.Editing())
}

func TestLedgerStore_CommitEditWithoutSession(t *testing.T) {
	t.Parallel()

	store := loadedStore(t, newFakeRecordRepo(), nil)

	_, err := store.CommitEdit(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoEditSession)

	_, err = store.UpdateDraft("x", "1")
	assert.ErrorIs(t, err, domain.ErrNoEditSession)
}

func TestLedgerStore_BeginEditReplacesDraft(t *testing.T) {
	t.Parallel()

	repo := newFakeRecordRepo(
		record("a1", "alice", "2024-01-01", "1"),
		record("a2", "alice", "2024-01-02", "2"),
	)
	store := loadedStore(t, repo, nil)

	_, err := store.BeginEdit("a1")
	require.NoError(t, err)
	_, err = store.UpdateDraft("unsaved", "100")
	require.NoError(t, err)

	edit, err := store.BeginEdit("a2")
	require.NoError(t, err)
	assert.Equal(t, "a2", edit.RecordID)
	assert.Equal(t, "expense a2", edit.Description)
	assert.Equal(t, "2.00", edit.Value)
}

func TestLedgerStore_BeginEditUnknownRecord(t *testing.T) {
	t.Parallel()

	repo := newFakeRecordRepo(record("b1", "bob", "2024-01-01", "1"))
	store := loadedStore(t, repo, nil)

	_, err := store.BeginEdit("b1")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	assert.Nil(t, store.Editing())
}

func TestLedgerStore_DeleteRemovesRecord(t *testing.T) {
	t.Parallel()

	repo := newFakeRecordRepo(
		record("a1", "alice", "2024-01-01", "1"),
		record("a2", "alice", "2024-01-02", "2"),
	)
	publisher := &recordingPublisher{}
	store := newStore(repo, nil, publisher)
	require.NoError(t, store.HandleIdentity(context.Background(), alice))

	_, err := store.BeginEdit("a1")
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), "a1"))
	assert.Nil(t, store.Editing(), "edit session on the deleted record is closed")

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Load(context.Background()))
		assert.NotContains(t, ids(store.Records()), "a1")
	}
	assert.Equal(t, "2.00", store.GroupedView().TotalDisplay())
	assert.Equal(t, []string{domain.EventTypeRecordDeleted}, publisher.types())
}

func TestLedgerStore_DeleteKeepsUnrelatedEditSession(t *testing.T) {
	t.Parallel()

	repo := newFakeRecordRepo(
		record("a1", "alice", "2024-01-01", "1"),
		record("a2", "alice", "2024-01-02", "2"),
	)
	store := loadedStore(t, repo, nil)

	_, err := store.BeginEdit("a2")
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), "a1"))

	edit := store.Editing()
	require.NotNil(t, edit)
	assert.Equal(t, "a2", edit.RecordID)
}

func TestLedgerStore_DeleteUnknownRecord(t *testing.T) {
	t.Parallel()

	repo := newFakeRecordRepo(record("b1", "bob", "2024-01-01", "1"))
	store := loadedStore(t, repo, nil)

	err := store.Delete(context.Background(), "b1")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	assert.Zero(t, repo.writes())
}

func TestLedgerStore_DeletePersistenceFailure(t *testing.T) {
	t.Parallel()

	repo := newFakeRecordRepo(record("a1", "alice", "2024-01-01", "1"))
	store := loadedStore(t, repo, nil)

	repo.mu.Lock()
	repo.deleteErr = errors.New("network unreachable")
	repo.mu.Unlock()

	err := store.Delete(context.Background(), "a1")
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, []string{"a1"}, ids(store.Records()))
}

func TestLedgerStore_EditSessionClearedWhenRecordDisappears(t *testing.T) {
	t.Parallel()

	repo := newFakeRecordRepo(record("a1", "alice", "2024-01-01", "1"))
	store := loadedStore(t, repo, nil)

	_, err := store.BeginEdit("a1")
	require.NoError(t, err)

	require.NoError(t, repo.Delete(context.Background(), "a1", "alice"))
	require.NoError(t, store.Load(context.Background()))

	assert.Nil(t, store.Editing())
}

func TestLedgerStore_PatchPolicySkipsReload(t *testing.T) {
	t.Parallel()

	repo := newFakeRecordRepo(
		record("a1", "alice", "2024-01-01", "5"),
		record("a2", "alice", "2024-01-02", "1"),
	)
	store := loadedStore(t, repo, usecase.PatchPolicy{})

	created, err := store.Add(context.Background(), "Bus", "2")
	require.NoError(t, err)

	_, err = store.BeginEdit("a1")
	require.NoError(t, err)
	_, err = store.UpdateDraft("Rent", "6")
	require.NoError(t, err)
	_, err = store.CommitEdit(context.Background())
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), "a2"))

	queries, _, _, _ := repo.counts()
	assert.Equal(t, 1, queries, "patch policy must not re-query")

	assert.Equal(t, []string{created.ID, "a1"}, ids(store.Records()))
	assert.Equal(t, "8.00", store.GroupedView().TotalDisplay())

	patched := store.Records()
	require.NoError(t, store.Load(context.Background()))
	assert.Equal(t, ids(patched), ids(store.Records()), "patched list matches a full reload")
	assert.Equal(t, "8.00", store.GroupedView().TotalDisplay())
}

func TestLedgerStore_ResetDiscardsStaleLoad(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRecordRepository(ctrl)

	started := make(chan struct{})
	release := make(chan struct{})
	repo.EXPECT().Query(gomock.Any(), usecase.RecordFilter{Owner: "alice"}).
		DoAndReturn(func(context.Context, usecase.RecordFilter) ([]*domain.Record, error) {
			close(started)
			<-release
			return []*domain.Record{record("a1", "alice", "2024-01-01", "1")}, nil
		})

	store := newStore(repo, nil, nil)
	store.Reset(alice)

	done := make(chan error, 1)
	go func() { done <- store.Load(context.Background()) }()

	<-started
	store.Reset(bob)
	close(release)

	require.NoError(t, <-done)
	assert.Empty(t, store.Records())
	assert.Equal(t, bob, store.Identity())
}

func TestLedgerStore_WatchFollowsIdentity(t *testing.T) {
	t.Parallel()

	repo := newFakeRecordRepo(
		record("a1", "alice", "2024-01-01", "1"),
		record("b1", "bob", "2024-01-01", "2"),
	)
	store := newStore(repo, nil, nil)
	provider := &fakeProvider{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx, provider) }()

	require.Eventually(t, func() bool { return provider.subscribers() == 1 }, time.Second, 5*time.Millisecond)

	provider.emit(alice)
	require.Eventually(t, func() bool {
		return len(store.Records()) == 1 && store.Records()[0].ID == "a1"
	}, time.Second, 5*time.Millisecond)

	_, err := store.BeginEdit("a1")
	require.NoError(t, err)

	provider.emit(nil)
	require.Eventually(t, func() bool { return store.Identity() == nil }, time.Second, 5*time.Millisecond)
	assert.Empty(t, store.Records())
	assert.Nil(t, store.Editing())

	provider.emit(bob)
	require.Eventually(t, func() bool {
		return len(store.Records()) == 1 && store.Records()[0].ID == "b1"
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestLedgerStore_ConcurrentAddsAreSerialized(t *testing.T) {
	t.Parallel()

	repo := newFakeRecordRepo()
	store := loadedStore(t, repo, nil)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Add(context.Background(), fmt.Sprintf("item %d", i), "1")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	records := store.Records()
	assert.Len(t, records, n)
	assert.Equal(t, "20.00", store.GroupedView().TotalDisplay())
}

func TestLedgerStore_RecorderObservesActivity(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	recorder := mocks.NewMockLedgerRecorder(ctrl)
	recorder.EXPECT().ObserveLoad(gomock.Any(), 1, nil).Times(1)
	recorder.EXPECT().ObserveLoad(gomock.Any(), 0, nil).Times(1)
	recorder.EXPECT().ObserveMutation(usecase.OpDelete, nil).Times(1)

	repo := newFakeRecordRepo(record("a1", "alice", "2024-01-01", "1"))
	store := usecase.NewLedgerStore(repo, newFixedClock(), nil, nil, recorder, zerolog.Nop())

	require.NoError(t, store.HandleIdentity(context.Background(), alice))
	require.NoError(t, store.Delete(context.Background(), "a1"))
}

func TestLedgerStore_StateSnapshot(t *testing.T) {
	t.Parallel()

	repo := newFakeRecordRepo(record("a1", "alice", "2024-01-01", "4"))
	store := loadedStore(t, repo, nil)

	_, err := store.BeginEdit("a1")
	require.NoError(t, err)

	state := store.State()
	assert.Equal(t, alice, state.Identity)
	assert.Equal(t, []string{"a1"}, ids(state.Records))
	assert.Equal(t, "4.00", state.View.TotalDisplay())
	require.NotNil(t, state.Edit)

	state.Edit.Description = "mutated"
	assert.Equal(t, "expense a1", store.Editing().Description)
}

func TestParseRefreshPolicy(t *testing.T) {
	t.Parallel()

	p, err := usecase.ParseRefreshPolicy("")
	require.NoError(t, err)
	assert.IsType(t, usecase.ReloadPolicy{}, p)

	p, err = usecase.ParseRefreshPolicy("patch")
	require.NoError(t, err)
	assert.IsType(t, usecase.PatchPolicy{}, p)

	_, err = usecase.ParseRefreshPolicy("optimistic")
	assert.Error(t, err)
}
