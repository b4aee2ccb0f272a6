package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"wg-console/internal/database"
	"wg-console/internal/settings"
	"wg-console/internal/vpn"
)

type fakeLister struct {
	views []*vpn.InterfaceView
	err   error
}

func (f *fakeLister) List(context.Context) ([]*vpn.InterfaceView, error) {
	return f.views, f.err
}

func newTestSampler(t *testing.T, lister InterfaceLister, now func() time.Time) *Sampler {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store := settings.NewStore(db, settings.Defaults{})
	return NewSamplerWithClock(db, lister, store, time.Minute, now)
}

func TestSampleRecordsActiveInterfaces(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lister := &fakeLister{views: []*vpn.InterfaceView{
		{Name: "wg0", Active: true, OnlinePeerCount: 2, TransferRx: 1000, TransferTx: 2000},
		{Name: "wg1", Active: false},
	}}
	sampler := newTestSampler(t, lister, func() time.Time { return now })

	sampler.sample(context.Background())

	history, err := sampler.History("wg0", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("len = %d, want 1", len(history))
	}
	if history[0].RxBytes != 1000 || history[0].TxBytes != 2000 {
		t.Errorf("sample = %+v", history[0])
	}
	if !history[0].Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", history[0].Timestamp, now)
	}

	// Inactive interfaces publish gauges only, never rows.
	idle, err := sampler.History("wg1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("History wg1: %v", err)
	}
	if len(idle) != 0 {
		t.Errorf("rows for inactive interface: %+v", idle)
	}
}

func TestHistoryFiltersBySince(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base.Add(-3 * time.Hour)
	lister := &fakeLister{views: []*vpn.InterfaceView{
		{Name: "wg0", Active: true, TransferRx: 1, TransferTx: 1},
	}}
	sampler := newTestSampler(t, lister, func() time.Time { return current })

	for _, offset := range []time.Duration{-3 * time.Hour, -time.Hour, -10 * time.Minute} {
		current = base.Add(offset)
		sampler.sample(context.Background())
	}

	history, err := sampler.History("wg0", base.Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(history), history)
	}
	if !history[0].Timestamp.Before(history[1].Timestamp) {
		t.Error("samples not oldest-first")
	}
}

func TestHistoryEmptyNotNil(t *testing.T) {
	sampler := newTestSampler(t, &fakeLister{}, time.Now)
	history, err := sampler.History("wg0", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if history == nil || len(history) != 0 {
		t.Errorf("history = %#v, want empty non-nil", history)
	}
}

func TestSampleSkipsOnListError(t *testing.T) {
	lister := &fakeLister{err: errors.New("config dir unreadable")}
	sampler := newTestSampler(t, lister, time.Now)

	sampler.sample(context.Background())

	history, err := sampler.History("wg0", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("rows recorded despite list failure: %+v", history)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store := settings.NewStore(db, settings.Defaults{})
	sampler := NewSamplerWithClock(db, &fakeLister{}, store, 10*time.Millisecond, time.Now)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sampler.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
