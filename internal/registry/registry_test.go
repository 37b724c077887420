package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu   sync.Mutex
	sent []any
}

func (f *fakeChannel) SendJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, v)
	return nil
}

func newTestRegistry() *Registry {
	return New(nil, nil, 24*time.Hour, 5*time.Minute)
}

func TestRegisterLookup(t *testing.T) {
	r := newTestRegistry()
	ch := &fakeChannel{}

	r.Register(context.Background(), "1", "2", ch)

	got, ok := r.Lookup("1", "2")
	require.True(t, ok)
	assert.Same(t, ch, got.(*fakeChannel))

	_, ok = r.Lookup("2", "1")
	assert.False(t, ok, "reverse direction is a distinct registration")
}

func TestRegisterOverwritesSamePair(t *testing.T) {
	r := newTestRegistry()
	first := &fakeChannel{}
	second := &fakeChannel{}

	r.Register(context.Background(), "1", "2", first)
	r.Register(context.Background(), "1", "2", second)

	got, ok := r.Lookup("1", "2")
	require.True(t, ok)
	assert.Same(t, second, got.(*fakeChannel))
}

func TestUnregisterIdempotent(t *testing.T) {
	r := newTestRegistry()
	r.Register(context.Background(), "1", "2", &fakeChannel{})

	r.Unregister(context.Background(), "1", "2")
	_, ok := r.Lookup("1", "2")
	assert.False(t, ok)

	// Second call is a no-op, not a panic or error.
	r.Unregister(context.Background(), "1", "2")
	r.Unregister(context.Background(), "never", "registered")
}

func TestGroupPairsAreIndependent(t *testing.T) {
	r := newTestRegistry()
	a := &fakeChannel{}
	b := &fakeChannel{}

	r.Register(context.Background(), "1", "group_aaaa", a)
	r.Register(context.Background(), "2", "group_aaaa", b)

	got, ok := r.Lookup("1", "group_aaaa")
	require.True(t, ok)
	assert.Same(t, a, got.(*fakeChannel))

	r.Unregister(context.Background(), "1", "group_aaaa")
	_, ok = r.Lookup("1", "group_aaaa")
	assert.False(t, ok)
	_, ok = r.Lookup("2", "group_aaaa")
	assert.True(t, ok)
}

func TestIsOnlineWithoutMirror(t *testing.T) {
	r := newTestRegistry()
	assert.False(t, r.IsOnline(context.Background(), "1"))
}

func TestConcurrentAccess(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			owner := fmt.Sprintf("%d", n)
			r.Register(ctx, owner, "peer", &fakeChannel{})
			r.Lookup(owner, "peer")
			r.Unregister(ctx, owner, "peer")
		}(i)
	}
	wg.Wait()

	for i := 0; i < 50; i++ {
		_, ok := r.Lookup(fmt.Sprintf("%d", i), "peer")
		assert.False(t, ok)
	}
}
