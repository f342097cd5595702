package position

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	loaded, err := store.Load(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded != nil {
		t.Fatal("empty store should load nil state")
	}

	state := NewState("BTCUSDT")
	state.LastAction = ActionBuy
	state.LastBuyPrice = 40000
	state.TrailingHigh = 41000
	state.LastCandle = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	state.BuyCount = 3

	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Mutating the original must not leak into the stored copy.
	state.LastBuyPrice = 1

	loaded, err = store.Load(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected stored state")
	}
	if loaded.LastBuyPrice != 40000 || loaded.BuyCount != 3 {
		t.Errorf("stored state corrupted: %+v", loaded)
	}
	if !loaded.LastCandle.Equal(state.LastCandle) {
		t.Errorf("candle pointer not preserved: %v", loaded.LastCandle)
	}

	if err := store.Delete(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	loaded, _ = store.Load(ctx, "BTCUSDT")
	if loaded != nil {
		t.Fatal("state should be gone after delete")
	}
}

func TestMemoryStoreNotAvailable(t *testing.T) {
	store := NewMemoryStore(nil)
	if store.Available() {
		t.Fatal("memory store must not report Redis availability")
	}
}
