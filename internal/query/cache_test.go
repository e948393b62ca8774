package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/Billy-Davies-2/pokemon-teams-ui/internal/errors"
)

func TestKeyHasPrefix(t *testing.T) {
	tests := []struct {
		key    Key
		prefix Key
		want   bool
	}{
		{NewKey("Teams", 1, "a"), NewKey("Teams", 1), true},
		{NewKey("Teams", 1), NewKey("Teams", 1), true},
		{NewKey("Teams", 1), NewKey("Teams", 1, "a"), false},
		{NewKey("Teams", 10), NewKey("Teams", 1), false},
		{NewKey("teamCoach", 1), Key{}, true},
	}

	for _, tt := range tests {
		if got := tt.key.HasPrefix(tt.prefix); got != tt.want {
			t.Errorf("%v.HasPrefix(%v) = %v, want %v", tt.key, tt.prefix, got, tt.want)
		}
	}
}

func TestKeyStringSeparatesParts(t *testing.T) {
	a := Key{"ab", "c"}
	b := Key{"a", "bc"}
	if a.String() == b.String() {
		t.Errorf("distinct keys share representation %q", a.String())
	}
}

func TestFetchCachesValue(t *testing.T) {
	c := NewCache()
	var calls int32

	fn := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "team", nil
	}

	for i := 0; i < 3; i++ {
		v, err := Fetch(context.Background(), c, NewKey("pok-team", "t1"), fn)
		if err != nil {
			t.Fatalf("Fetch() failed: %v", err)
		}
		if v != "team" {
			t.Errorf("expected 'team', got %q", v)
		}
	}

	if calls != 1 {
		t.Errorf("expected 1 fetch, got %d", calls)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 cached entry, got %d", c.Len())
	}
}

func TestInvalidateKeepsValueAndRefetches(t *testing.T) {
	c := NewCache()
	var calls int32
	key := NewKey("teamCoach", 1)

	fn := func(ctx context.Context) (int32, error) {
		return atomic.AddInt32(&calls, 1), nil
	}

	if _, err := Fetch(context.Background(), c, key, fn); err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}

	if n := c.Invalidate(key); n != 1 {
		t.Errorf("expected 1 invalidated entry, got %d", n)
	}

	v, fresh, ok := c.Peek(key)
	if !ok {
		t.Fatal("invalidated entry should keep its value")
	}
	if fresh {
		t.Error("invalidated entry should not be fresh")
	}
	if v.(int32) != 1 {
		t.Errorf("expected stored value 1, got %v", v)
	}

	got, err := Fetch(context.Background(), c, key, fn)
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if got != 2 {
		t.Errorf("expected refetched value 2, got %d", got)
	}
}

func TestInvalidateMatchesPrefixOnly(t *testing.T) {
	c := NewCache()
	ctx := context.Background()
	fn := func(ctx context.Context) (int, error) { return 1, nil }

	Fetch(ctx, c, NewKey("Teams", 1, "a", "b"), fn)
	Fetch(ctx, c, NewKey("Teams", 2, "c"), fn)
	Fetch(ctx, c, NewKey("teamCoach", 1), fn)

	c.Invalidate(NewKey("Teams", 1))

	if _, fresh, _ := c.Peek(NewKey("Teams", 1, "a", "b")); fresh {
		t.Error("Teams/1 entry should be stale")
	}
	if _, fresh, _ := c.Peek(NewKey("Teams", 2, "c")); !fresh {
		t.Error("Teams/2 entry should stay fresh")
	}
	if _, fresh, _ := c.Peek(NewKey("teamCoach", 1)); !fresh {
		t.Error("teamCoach entry should stay fresh")
	}
}

func TestFetchErrorIsNotCached(t *testing.T) {
	c := NewCache()
	var calls int32
	fail := errors.New("service unavailable")

	fn := func(ctx context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", fail
		}
		return "ok", nil
	}

	if _, err := Fetch(context.Background(), c, NewKey("pokemons"), fn); !errors.Is(err, fail) {
		t.Fatalf("expected service error, got %v", err)
	}
	if _, _, ok := c.Peek(NewKey("pokemons")); ok {
		t.Error("failed fetch should not store a value")
	}

	v, err := Fetch(context.Background(), c, NewKey("pokemons"), fn)
	if err != nil || v != "ok" {
		t.Errorf("expected ok after failure, got %q, %v", v, err)
	}
}

func TestConcurrentFetchSharesCall(t *testing.T) {
	c := NewCache()
	var calls int32
	release := make(chan struct{})

	fn := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "shared", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Fetch(context.Background(), c, NewKey("pok-team", "t1"), fn)
			if err != nil || v != "shared" {
				t.Errorf("unexpected result %q, %v", v, err)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Errorf("expected 1 shared fetch, got %d", calls)
	}
}

func TestSharedFetchSurvivesCallerCancel(t *testing.T) {
	c := NewCache()
	key := NewKey("teamCoach", "1")
	started := make(chan struct{})
	release := make(chan struct{})
	var flightErr error

	fn := func(ctx context.Context) (string, error) {
		close(started)
		<-release
		flightErr = ctx.Err()
		return "link", nil
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderDone := make(chan error, 1)
	go func() {
		_, err := Fetch(leaderCtx, c, key, fn)
		leaderDone <- err
	}()
	<-started

	followerDone := make(chan string, 1)
	go func() {
		v, err := Fetch(context.Background(), c, key, fn)
		if err != nil {
			t.Errorf("follower: %v", err)
		}
		followerDone <- v
	}()
	time.Sleep(10 * time.Millisecond)

	cancelLeader()
	err := <-leaderDone
	if !apperrors.IsTransport(err) || !errors.Is(err, context.Canceled) {
		t.Errorf("expected canceled transport error for the leaving caller, got %v", err)
	}

	close(release)
	if v := <-followerDone; v != "link" {
		t.Errorf("expected follower to get the shared value, got %q", v)
	}
	if flightErr != nil {
		t.Errorf("shared fetch should not see the leader's cancel, got %v", flightErr)
	}
}

func TestInvalidateDuringFetchLeavesEntryStale(t *testing.T) {
	c := NewCache()
	key := NewKey("pok-team", "t1")
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		Fetch(context.Background(), c, key, func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "old", nil
		})
	}()

	<-started
	c.Invalidate(key)
	close(release)
	<-done

	v, fresh, ok := c.Peek(key)
	if !ok || v != "old" {
		t.Fatalf("expected stored value 'old', got %v (ok=%v)", v, ok)
	}
	if fresh {
		t.Error("value fetched across an invalidation should be stale")
	}
}

func TestFetchTypeMismatch(t *testing.T) {
	c := NewCache()
	key := NewKey("pokemons")

	Fetch(context.Background(), c, key, func(ctx context.Context) (int, error) { return 1, nil })

	_, err := Fetch(context.Background(), c, key, func(ctx context.Context) (string, error) { return "x", nil })
	if err == nil {
		t.Error("expected type mismatch error")
	}
}

func TestSubscribeReceivesInvalidation(t *testing.T) {
	c := NewCache()
	ch := c.Subscribe()
	defer c.Unsubscribe(ch)

	c.Invalidate(NewKey("teamCoach", 7))

	select {
	case got := <-ch:
		if got.String() != NewKey("teamCoach", 7).String() {
			t.Errorf("expected teamCoach/7, got %v", got)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for invalidation")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	c := NewCache()
	ch := c.Subscribe()
	c.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}
}
