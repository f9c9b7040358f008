package batch

import (
	"testing"
	"time"

	"github.com/1auti/dynamic-querys-sub000/internal/analyzer"
	"github.com/1auti/dynamic-querys-sub000/internal/shard"
)

func TestPoolRunsOnCallerWhenQueueFull(t *testing.T) {
	pool := NewPool(1, 0)
	defer pool.Close()

	blocking := make(chan struct{})
	started := make(chan struct{})
	pool.Submit(func() {
		close(started)
		<-blocking
	})
	<-started

	ranOnCaller := false
	done := make(chan struct{})
	go func() {
		pool.Submit(func() { ranOnCaller = true })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("submit blocked unexpectedly; run-on-caller should never block")
	}
	if !ranOnCaller {
		t.Fatal("expected the second task to run on the caller's own goroutine since the single worker was busy")
	}
	close(blocking)
}

func TestCursorTableSetAndGet(t *testing.T) {
	tbl := NewCursorTable()
	if _, ok := tbl.Get("cordoba"); ok {
		t.Fatal("expected no cursor before Set")
	}
	id := int64(42)
	tbl.Set("cordoba", Cursor{LastID: &id})
	cur, ok := tbl.Get("cordoba")
	if !ok || cur.LastID == nil || *cur.LastID != 42 {
		t.Fatalf("expected cursor with LastID=42, got %+v ok=%v", cur, ok)
	}
}

func TestCaptureCursorKeysetWithID(t *testing.T) {
	row := shard.Row{"id": int64(7), "serial_equipment": "SR-1", "location": "Ruta 9"}
	keyCols := []analyzer.KeyColumn{
		{Name: "id", ParamName: "lastId", SQLType: "BIGINT"},
		{Name: "serial_equipment", ParamName: "lastSerial", SQLType: "TEXT"},
		{Name: "location", ParamName: "lastLocation", SQLType: "TEXT"},
	}

	cur := captureCursor(row, keyCols)
	if cur.LastID == nil || *cur.LastID != 7 {
		t.Fatalf("expected LastID=7, got %v", cur.LastID)
	}
	if cur.LastSerial == nil || *cur.LastSerial != "SR-1" {
		t.Fatalf("expected LastSerial=SR-1, got %v", cur.LastSerial)
	}
	if cur.LastLocation == nil || *cur.LastLocation != "Ruta 9" {
		t.Fatalf("expected LastLocation=Ruta 9, got %v", cur.LastLocation)
	}
}

func TestCaptureCursorCompositeKeyset(t *testing.T) {
	row := shard.Row{"placa": "ABC123", "fecha_infraccion": "2024-01-01"}
	keyCols := []analyzer.KeyColumn{
		{Name: "placa", ParamName: "lastSerial", SQLType: "TEXT"},
		{Name: "fecha_infraccion", ParamName: "keyset_col_0", SQLType: "TEXT"},
	}

	cur := captureCursor(row, keyCols)
	if cur.LastID != nil {
		t.Fatalf("expected no LastID for a composite keyset, got %v", cur.LastID)
	}
	if cur.Composite["placa"] != "ABC123" || cur.Composite["fecha_infraccion"] != "2024-01-01" {
		t.Fatalf("expected both composite values captured, got %v", cur.Composite)
	}
}

func TestSelectStrategyPrioritizesSequentialOverParallelEligibleAverage(t *testing.T) {
	cfg := DefaultConfig()
	// A lopsided shard (250k rows on one shard) can still leave the
	// average below the PARALLEL cutoff when there are many other small
	// shards; SEQUENTIAL must still win.
	est := Estimate{Total: 260_000, AvgPerShard: 10_000, MaxPerShard: 250_000}
	if got := selectStrategy(cfg, est); got != StrategySequential {
		t.Fatalf("got %s, want SEQUENTIAL", got)
	}
}

func TestSelectStrategyParallelForSmallEstimate(t *testing.T) {
	cfg := DefaultConfig()
	est := Estimate{Total: 10_000, AvgPerShard: 1_000, MaxPerShard: 2_000}
	if got := selectStrategy(cfg, est); got != StrategyParallel {
		t.Fatalf("got %s, want PARALLEL", got)
	}
}

func TestSelectStrategyHybridOtherwise(t *testing.T) {
	cfg := DefaultConfig()
	est := Estimate{Total: 400_000, AvgPerShard: 60_000, MaxPerShard: 80_000}
	if got := selectStrategy(cfg, est); got != StrategyHybrid {
		t.Fatalf("got %s, want HYBRID", got)
	}
}

func TestAdaptiveBatchSize(t *testing.T) {
	cases := []struct {
		name string
		used float64
		cfg  func() Config
		want int
	}{
		{"ample memory keeps the default", 0.10, DefaultConfig, 1000},
		{"mid-range memory keeps the default", 0.50, DefaultConfig, 1000},
		{"free memory in the 20-30% band caps at half", 0.75, DefaultConfig, 500},
		{"severe pressure halves then the floor wins over the quarter cap", 0.95, DefaultConfig, 500},
		{"severe pressure with a low floor shows the bare quarter cap", 0.95, func() Config {
			c := DefaultConfig()
			c.BatchSizeFloor = 100
			return c
		}, 250},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			proc := New(NewPool(1, 1), &fakeClock{}, fakeMemProbe{used: tc.used}, tc.cfg())
			defer proc.Pool.Close()
			got := proc.adaptiveBatchSize("q")
			if got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}
