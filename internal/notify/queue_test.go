package notify

import (
	"fmt"
	"testing"
	"time"
)

func TestRecentNewestFirst(t *testing.T) {
	q := NewQueue()
	q.Push(LevelInfo, "first", "")
	q.Push(LevelWarning, "second", "")
	q.Push(LevelError, "third", "")

	got := q.Recent()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Title != "third" || got[2].Title != "first" {
		t.Errorf("order = [%s %s %s], want newest first", got[0].Title, got[1].Title, got[2].Title)
	}
}

func TestQueueBoundedAtCapacity(t *testing.T) {
	q := NewQueue()
	for i := 0; i < defaultCapacity+20; i++ {
		q.Push(LevelInfo, fmt.Sprintf("n-%d", i), "")
	}

	got := q.Recent()
	if len(got) != defaultCapacity {
		t.Fatalf("len = %d, want %d", len(got), defaultCapacity)
	}
	if got[0].Title != fmt.Sprintf("n-%d", defaultCapacity+19) {
		t.Errorf("newest = %s, oldest entries should have been evicted", got[0].Title)
	}
	if got[len(got)-1].Title != "n-20" {
		t.Errorf("oldest surviving = %s, want n-20", got[len(got)-1].Title)
	}
}

func TestExpiredNotificationsPruned(t *testing.T) {
	q := NewQueue()
	base := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	q.now = func() time.Time { return base }

	q.Push(LevelInfo, "stale", "")

	q.now = func() time.Time { return base.Add(3 * time.Minute) }
	q.Push(LevelInfo, "fresh", "")

	q.now = func() time.Time { return base.Add(6 * time.Minute) }
	got := q.Recent()
	if len(got) != 1 || got[0].Title != "fresh" {
		t.Errorf("got %d notifications, want only the fresh one", len(got))
	}
}

func TestSubscribeReceivesPushes(t *testing.T) {
	q := NewQueue()
	id, ch := q.Subscribe()
	defer q.Unsubscribe(id)

	pushed := q.Push(LevelSuccess, "entry", "NIFTY x10")

	select {
	case n := <-ch:
		if n.ID != pushed.ID || n.Level != LevelSuccess {
			t.Errorf("received %+v, want the pushed notification", n)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the notification")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	q := NewQueue()
	id, ch := q.Subscribe()
	q.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Unsubscribe")
	}

	// Pushing after unsubscribe must not panic on the closed channel.
	q.Push(LevelInfo, "after", "")
}

func TestSlowSubscriberDoesNotBlockPush(t *testing.T) {
	q := NewQueue()
	id, _ := q.Subscribe()
	defer q.Unsubscribe(id)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			q.Push(LevelInfo, "burst", "")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Push blocked on a subscriber that never drains")
	}
}
