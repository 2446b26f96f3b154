package safety

import "sync"

// Interlock is the operator kill switch. Once engaged it stays engaged until
// an explicit Reset; engage hooks run synchronously so automation (scheduler,
// auto-trade) is disarmed before Engage returns.
type Interlock struct {
	mu       sync.Mutex
	engaged  bool
	onEngage []func()
}

func NewInterlock() *Interlock {
	return &Interlock{}
}

// OnEngage registers a hook invoked synchronously when the interlock is
// engaged. Hooks must not call back into the interlock.
func (i *Interlock) OnEngage(fn func()) {
	i.mu.Lock()
	i.onEngage = append(i.onEngage, fn)
	i.mu.Unlock()
}

// Engage sets the interlock. Returns false if it was already engaged, in
// which case hooks do not run again.
func (i *Interlock) Engage() bool {
	i.mu.Lock()
	if i.engaged {
		i.mu.Unlock()
		return false
	}
	i.engaged = true
	hooks := make([]func(), len(i.onEngage))
	copy(hooks, i.onEngage)
	i.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return true
}

// Reset clears the interlock. Automation is not re-armed; the operator
// re-enables what they want explicitly.
func (i *Interlock) Reset() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.engaged {
		return false
	}
	i.engaged = false
	return true
}

func (i *Interlock) Engaged() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.engaged
}
