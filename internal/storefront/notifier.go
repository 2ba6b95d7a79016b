package storefront

import (
	"slices"
	"sync"
	"time"
)

// Kind classifies a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// DefaultNotifyTTL is how long a notification stays up unless dismissed.
const DefaultNotifyTTL = 3 * time.Second

// Notice is a snapshot of one visible notification.
type Notice struct {
	ID      uint64
	Kind    Kind
	Message string
}

// Toast is a shown notification. It disappears after the notifier TTL or
// when dismissed, whichever comes first.
type Toast struct {
	Notice

	n     *Notifier
	timer *time.Timer
}

// Dismiss hides the toast before its TTL and reports whether it was still
// visible.
func (t *Toast) Dismiss() bool {
	return t.n.remove(t.ID, true)
}

// Notifier keeps the visible notifications. Every toast owns a timer; Close
// stops all of them.
type Notifier struct {
	ttl time.Duration

	mu        sync.Mutex
	next      uint64
	active    []*Toast
	listeners map[uint64]func(Notice)
	nextSub   uint64
	closed    bool
}

// NewNotifier returns a Notifier whose toasts expire after ttl.
func NewNotifier(ttl time.Duration) *Notifier {
	if ttl <= 0 {
		ttl = DefaultNotifyTTL
	}
	return &Notifier{ttl: ttl, listeners: map[uint64]func(Notice){}}
}

// Show displays a notification. After Close it returns a toast that is never
// displayed.
func (n *Notifier) Show(kind Kind, message string) *Toast {
	n.mu.Lock()
	n.next++
	t := &Toast{Notice: Notice{ID: n.next, Kind: kind, Message: message}, n: n}
	if n.closed {
		n.mu.Unlock()
		return t
	}
	id := t.ID
	t.timer = time.AfterFunc(n.ttl, func() { n.remove(id, false) })
	n.active = append(n.active, t)
	listeners := n.snapshotListeners()
	n.mu.Unlock()

	for _, fn := range listeners {
		fn(t.Notice)
	}
	return t
}

// Subscribe calls fn for every notification shown from now on. The returned
// function unsubscribes.
func (n *Notifier) Subscribe(fn func(Notice)) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextSub++
	id := n.nextSub
	n.listeners[id] = fn
	return func() {
		n.mu.Lock()
		delete(n.listeners, id)
		n.mu.Unlock()
	}
}

// Active returns the visible notifications, oldest first.
func (n *Notifier) Active() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notice, len(n.active))
	for i, t := range n.active {
		out[i] = t.Notice
	}
	return out
}

// Close dismisses every notification and stops their timers. Later Show
// calls display nothing.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, t := range n.active {
		t.timer.Stop()
	}
	n.active = nil
	n.listeners = map[uint64]func(Notice){}
	n.closed = true
}

func (n *Notifier) remove(id uint64, stop bool) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	i := slices.IndexFunc(n.active, func(t *Toast) bool { return t.ID == id })
	if i < 0 {
		return false
	}
	if stop {
		n.active[i].timer.Stop()
	}
	n.active = slices.Delete(n.active, i, i+1)
	return true
}

func (n *Notifier) snapshotListeners() []func(Notice) {
	out := make([]func(Notice), 0, len(n.listeners))
	for _, fn := range n.listeners {
		out = append(out, fn)
	}
	return out
}
