package watcher

import (
	"sync"

	"github.com/jonasehrlich/debug-tree/internal/git"
)

// Broadcaster fans repository status snapshots out to subscribers. Each
// subscriber holds at most one pending snapshot; a newer one replaces it.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan *git.RepositoryStatus
	next   int
	latest *git.RepositoryStatus
	closed bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: map[int]chan *git.RepositoryStatus{}}
}

// Subscribe registers a subscriber. The last published snapshot, if any, is
// delivered right away. cancel closes the channel and must be called once the
// subscriber is done. After Close the channel comes back closed.
func (b *Broadcaster) Subscribe() (<-chan *git.RepositoryStatus, func()) {
	ch := make(chan *git.RepositoryStatus, 1)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch
	if b.latest != nil {
		ch <- b.latest
	}

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
}

// Close closes every subscriber channel and turns later calls to Publish
// into no-ops.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish hands st to every subscriber without blocking.
func (b *Broadcaster) Publish(st *git.RepositoryStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.latest = st
	for _, ch := range b.subs {
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}

// Latest returns the last published snapshot, or nil.
func (b *Broadcaster) Latest() *git.RepositoryStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest
}

// Subscribers returns the number of active subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
