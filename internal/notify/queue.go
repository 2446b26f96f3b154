package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Queue is a bounded, time-expiring queue of operator-facing notifications.
// Subscribers receive every pushed notification; slow subscribers are skipped
// rather than blocking the pusher.
type Queue struct {
	mu       sync.Mutex
	items    []Notification
	capacity int
	ttl      time.Duration
	subs     map[int]chan Notification
	nextSub  int
	now      func() time.Time
}

const (
	defaultCapacity = 50
	defaultTTL      = 5 * time.Minute
)

func NewQueue() *Queue {
	return &Queue{
		capacity: defaultCapacity,
		ttl:      defaultTTL,
		subs:     make(map[int]chan Notification),
		now:      time.Now,
	}
}

func (q *Queue) Push(level Level, title, message string) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Title:     title,
		Message:   message,
		CreatedAt: q.now(),
	}

	q.mu.Lock()
	q.prune()
	q.items = append(q.items, n)
	if len(q.items) > q.capacity {
		q.items = q.items[len(q.items)-q.capacity:]
	}
	subs := make([]chan Notification, 0, len(q.subs))
	for _, ch := range q.subs {
		subs = append(subs, ch)
	}
	q.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- n:
		default:
		}
	}
	return n
}

// Recent returns a copy of the unexpired notifications, newest first.
func (q *Queue) Recent() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.prune()

	out := make([]Notification, len(q.items))
	for i, n := range q.items {
		out[len(q.items)-1-i] = n
	}
	return out
}

func (q *Queue) Subscribe() (int, <-chan Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := q.nextSub
	q.nextSub++
	ch := make(chan Notification, 16)
	q.subs[id] = ch
	return id, ch
}

func (q *Queue) Unsubscribe(id int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if ch, ok := q.subs[id]; ok {
		delete(q.subs, id)
		close(ch)
	}
}

// prune drops expired entries. Caller holds q.mu.
func (q *Queue) prune() {
	cutoff := q.now().Add(-q.ttl)
	i := 0
	for i < len(q.items) && q.items[i].CreatedAt.Before(cutoff) {
		i++
	}
	if i > 0 {
		q.items = append([]Notification(nil), q.items[i:]...)
	}
}
