package storefront

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_ExpiresAfterTTL(t *testing.T) {
	n := NewNotifier(20 * time.Millisecond)
	t.Cleanup(n.Close)

	n.Show(KindSuccess, "Item added to cart")
	require.Len(t, n.Active(), 1)

	assert.Eventually(t, func() bool { return len(n.Active()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestNotifier_Dismiss(t *testing.T) {
	n := NewNotifier(time.Minute)
	t.Cleanup(n.Close)

	first := n.Show(KindInfo, "first")
	second := n.Show(KindError, "second")

	assert.True(t, first.Dismiss())
	assert.False(t, first.Dismiss(), "already dismissed")

	active := n.Active()
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
	assert.Equal(t, KindError, active[0].Kind)
}

func TestNotifier_Subscribe(t *testing.T) {
	n := NewNotifier(time.Minute)
	t.Cleanup(n.Close)

	var (
		mu  sync.Mutex
		got []string
	)
	unsubscribe := n.Subscribe(func(notice Notice) {
		mu.Lock()
		got = append(got, notice.Message)
		mu.Unlock()
	})

	n.Show(KindSuccess, "one")
	unsubscribe()
	n.Show(KindSuccess, "two")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"one"}, got)
}

func TestNotifier_Close(t *testing.T) {
	n := NewNotifier(10 * time.Millisecond)
	n.Show(KindInfo, "pending")
	n.Close()
	assert.Empty(t, n.Active())

	toast := n.Show(KindInfo, "after close")
	assert.Empty(t, n.Active())
	assert.False(t, toast.Dismiss())

	// Stopped timers never fire into a closed notifier.
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, n.Active())
}

func TestNotifier_DefaultTTL(t *testing.T) {
	n := NewNotifier(0)
	t.Cleanup(n.Close)
	assert.Equal(t, DefaultNotifyTTL, n.ttl)
}
