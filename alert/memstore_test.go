package alert

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

func TestMemStoreCompareAndSetSemantics(t *testing.T) {
	store := NewMemStore(nil)
	ctx := context.Background()
	key := FlagKey{AccountID: "a", Metric: MetricDaily, Threshold: 50}

	set, err := store.Get(ctx, key)
	if err != nil || set {
		t.Fatalf("fresh key must read unset without error, got %v/%v", set, err)
	}

	won, err := store.CompareAndSet(ctx, key, false, true)
	if err != nil || !won {
		t.Fatalf("first transition must win, got %v/%v", won, err)
	}

	won, err = store.CompareAndSet(ctx, key, false, true)
	if err != nil || won {
		t.Fatalf("second identical transition must lose, got %v/%v", won, err)
	}

	set, _ = store.Get(ctx, key)
	if !set {
		t.Fatal("flag must read set after the winning transition")
	}

	won, err = store.CompareAndSet(ctx, key, true, false)
	if err != nil || !won {
		t.Fatalf("re-arm from set must win, got %v/%v", won, err)
	}

	won, err = store.CompareAndSet(ctx, key, true, false)
	if err != nil || won {
		t.Fatalf("re-arm of an unset flag must lose, got %v/%v", won, err)
	}
}

func TestMemStoreDegenerateTransitionNeverWins(t *testing.T) {
	store := NewMemStore(nil)
	key := FlagKey{AccountID: "a", Metric: MetricTotal, Threshold: 75}

	won, err := store.CompareAndSet(context.Background(), key, false, false)
	if err != nil || won {
		t.Fatalf("no-op transition must not count as a win, got %v/%v", won, err)
	}
}

func TestMemStoreKeysAreIndependent(t *testing.T) {
	store := NewMemStore(nil)
	ctx := context.Background()

	a := FlagKey{AccountID: "a", Metric: MetricDaily, Threshold: 50}
	b := FlagKey{AccountID: "a", Metric: MetricDaily, Threshold: 75}
	c := FlagKey{AccountID: "b", Metric: MetricDaily, Threshold: 50}

	if won, _ := store.CompareAndSet(ctx, a, false, true); !won {
		t.Fatal("expected win on key a")
	}
	for _, other := range []FlagKey{b, c} {
		if set, _ := store.Get(ctx, other); set {
			t.Fatalf("key %v must be unaffected by key a", other)
		}
	}
}

func TestMemStoreSingleWinnerUnderContention(t *testing.T) {
	store := NewMemStore(nil)
	key := FlagKey{AccountID: "a", Metric: MetricDaily, Threshold: 90}

	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := store.CompareAndSet(context.Background(), key, false, true)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if won {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
}
