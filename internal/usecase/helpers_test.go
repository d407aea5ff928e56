package usecase_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/goexpense/internal/domain"
	"github.com/iho/goexpense/internal/usecase"
)

type fixedClock struct {
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time { return c.now }
func (c *fixedClock) Today() string  { return c.now.Format(domain.DateLayout) }

type seqIDGen struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func (g *seqIDGen) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// fakeRecordRepo is an in-memory RecordRepository that counts calls.
type fakeRecordRepo struct {
	mu      sync.Mutex
	ids     seqIDGen
	records map[string]*domain.Record
	seq     map[string]int

	queries, inserts, updates, deletes int

	queryErr  error
	insertErr error
	updateErr error
	deleteErr error

	// leak returns every record from Query regardless of owner.
	leak bool
}

func newFakeRecordRepo(seed ...*domain.Record) *fakeRecordRepo {
	repo := &fakeRecordRepo{
		ids:     seqIDGen{prefix: "rec"},
		records: make(map[string]*domain.Record),
		seq:     make(map[string]int),
	}
	for _, r := range seed {
		repo.put(r.Clone())
	}
	return repo
}

func (f *fakeRecordRepo) put(r *domain.Record) {
	if _, ok := f.seq[r.ID]; !ok {
		f.seq[r.ID] = len(f.seq)
	}
	f.records[r.ID] = r
}

func (f *fakeRecordRepo) Query(_ context.Context, filter usecase.RecordFilter) ([]*domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++

	if f.queryErr != nil {
		return nil, f.queryErr
	}

	var out []*domain.Record
	for _, r := range f.records {
		if f.leak || r.Owner == filter.Owner {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return f.seq[out[i].ID] < f.seq[out[j].ID]
	})
	return out, nil
}

func (f *fakeRecordRepo) Insert(_ context.Context, record *domain.Record) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++

	if f.insertErr != nil {
		return "", f.insertErr
	}

	stored := record.Clone()
	if stored.ID == "" {
		stored.ID = f.ids.Generate()
	}
	f.put(stored)
	return stored.ID, nil
}

func (f *fakeRecordRepo) Update(_ context.Context, id, owner string, patch domain.RecordPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++

	if f.updateErr != nil {
		return f.updateErr
	}

	r, ok := f.records[id]
	if !ok || r.Owner != owner {
		return domain.ErrRecordNotFound
	}
	updated := r.Clone()
	updated.Apply(patch)
	f.records[id] = updated
	return nil
}

func (f *fakeRecordRepo) Delete(_ context.Context, id, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++

	if f.deleteErr != nil {
		return f.deleteErr
	}

	r, ok := f.records[id]
	if !ok || r.Owner != owner {
		return domain.ErrRecordNotFound
	}
	delete(f.records, id)
	return nil
}

func (f *fakeRecordRepo) get(id string) (*domain.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	return r.Clone(), ok
}

func (f *fakeRecordRepo) counts() (queries, inserts, updates, deletes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries, f.inserts, f.updates, f.deletes
}

func (f *fakeRecordRepo) writes() int {
	_, i, u, d := f.counts()
	return i + u + d
}

// fakeProvider is a channel-backed IdentityProvider.
type fakeProvider struct {
	mu   sync.Mutex
	subs []chan *domain.Identity
}

func (p *fakeProvider) Subscribe(ctx context.Context) <-chan *domain.Identity {
	ch := make(chan *domain.Identity, 4)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, s := range p.subs {
			if s == ch {
				p.subs = append(p.subs[:i], p.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}()
	return ch
}

func (p *fakeProvider) emit(identity *domain.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.subs {
		s <- identity
	}
}

func (p *fakeProvider) subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.emit(nil)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.RecordEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.RecordEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

var (
	alice = &domain.Identity{ID: "alice", Email: "alice@example.com", Name: "Alice"}
	bob   = &domain.Identity{ID: "bob", Email: "bob@example.com", Name: "Bob"}
)

func newStore(repo usecase.RecordRepository, policy usecase.RefreshPolicy, publisher usecase.EventPublisher) *usecase.LedgerStore {
	return usecase.NewLedgerStore(repo, newFixedClock(), policy, publisher, nil, zerolog.Nop())
}
