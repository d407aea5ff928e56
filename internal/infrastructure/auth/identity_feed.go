package auth

import (
	"context"
	"sync"

	"github.com/iho/goexpense/internal/domain"
)

// IdentityFeed is an in-process identity provider for one session. Each
// subscriber receives identity changes published after it subscribed; a
// subscriber that falls behind only sees the latest change.
type IdentityFeed struct {
	mu   sync.Mutex
	subs map[chan *domain.Identity]struct{}
}

// NewIdentityFeed creates an IdentityFeed with no subscribers.
func NewIdentityFeed() *IdentityFeed {
	return &IdentityFeed{subs: make(map[chan *domain.Identity]struct{})}
}

// Subscribe returns a channel of identity changes. The channel is closed
// once ctx is done.
func (f *IdentityFeed) Subscribe(ctx context.Context) <-chan *domain.Identity {
	ch := make(chan *domain.Identity, 1)

	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, ch)
		close(ch)
		f.mu.Unlock()
	}()

	return ch
}

// Publish delivers identity to every subscriber. A nil identity means signed
// out.
func (f *IdentityFeed) Publish(identity *domain.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for ch := range f.subs {
		select {
		case ch <- identity:
		default:
			// Replace the undelivered change with the newer one.
			select {
			case <-ch:
			default:
			}
			ch <- identity
		}
	}
}

// SignOut publishes a nil identity.
func (f *IdentityFeed) SignOut(context.Context) error {
	f.Publish(nil)
	return nil
}

// Subscribers returns the number of active subscriptions.
func (f *IdentityFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
