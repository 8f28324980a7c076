package sdb_test

import (
	"testing"

	"sdb-go/internal/sdb"
)

func TestCommitNotifier(t *testing.T) {
	t.Run("delivers commits to every subscriber", func(t *testing.T) {
		n := sdb.NewCommitNotifier()
		var a, b int
		n.Subscribe(func() { a++ })
		n.Subscribe(func() { b++ })

		n.Commit()
		n.Commit()

		if a != 2 || b != 2 {
			t.Errorf("deliveries = (%d, %d), want (2, 2)", a, b)
		}
	})

	t.Run("cancel stops delivery", func(t *testing.T) {
		n := sdb.NewCommitNotifier()
		var calls int
		sub := n.Subscribe(func() { calls++ })

		n.Commit()
		sub.Cancel()
		n.Commit()

		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("cancel is idempotent and does not affect other subscribers", func(t *testing.T) {
		n := sdb.NewCommitNotifier()
		var kept int
		sub := n.Subscribe(func() {})
		n.Subscribe(func() { kept++ })

		sub.Cancel()
		sub.Cancel()
		n.Commit()

		if kept != 1 {
			t.Errorf("kept subscriber calls = %d, want 1", kept)
		}
	})

	t.Run("zero subscription cancels safely", func(t *testing.T) {
		var sub sdb.Subscription
		sub.Cancel() // must not panic
	})

	t.Run("commit with no subscribers is a no-op", func(t *testing.T) {
		n := sdb.NewCommitNotifier()
		n.Commit()
	})
}
