package sdb

import "sync"

// CommitNotifier fans out "a write was committed" signals from the data
// layer to interested components. Callbacks carry no payload; the event
// means only "a commit happened now". Safe for concurrent use.
type CommitNotifier struct {
	mu   sync.Mutex
	next int
	subs map[int]func()
}

func NewCommitNotifier() *CommitNotifier {
	return &CommitNotifier{subs: make(map[int]func())}
}

// Subscribe registers fn to run on every commit and returns a handle that
// cancels exactly this registration. Subscribing the same function twice
// yields two independent subscriptions.
func (n *CommitNotifier) Subscribe(fn func()) Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next++
	id := n.next
	n.subs[id] = fn
	return Subscription{n: n, id: id}
}

// Commit invokes all subscribed callbacks synchronously, in no particular
// order. Called by the data layer after each successful write.
func (n *CommitNotifier) Commit() {
	n.mu.Lock()
	fns := make([]func(), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Subscription identifies one registration on a CommitNotifier.
// The zero value is inert: Cancel on it is a no-op.
type Subscription struct {
	n  *CommitNotifier
	id int
}

// Cancel removes the registration. Idempotent.
func (s Subscription) Cancel() {
	if s.n == nil {
		return
	}
	s.n.mu.Lock()
	defer s.n.mu.Unlock()
	delete(s.n.subs, s.id)
}
