package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "racebot/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("driver %q: %v", driver, err)
		}
		if st != nil {
			t.Fatalf("driver %q: expected nil store", driver)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "sqlite"}, logx.Nop()); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestSQLiteRoundtrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "deliveries.db")
	st, err := Open(Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	target := time.Date(2026, 9, 5, 14, 0, 0, 0, time.UTC)
	records := []DeliveryRecord{
		{At: base, Key: "monza-q", TargetAt: target, OK: true, Message: "Quali starts soon"},
		{At: base.Add(time.Minute), Key: "monza-r", TargetAt: target.Add(24 * time.Hour), OK: false, Error: "telegram: retry after 30", Message: "Lights out shortly"},
		{At: base.Add(2 * time.Minute), OK: true, Message: "Race underway"},
	}
	for _, rec := range records {
		if err := st.AppendDelivery(ctx, rec); err != nil {
			t.Fatalf("AppendDelivery: %v", err)
		}
	}

	got, err := st.RecentDeliveries(ctx, 10)
	if err != nil {
		t.Fatalf("RecentDeliveries: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	// Newest first.
	if got[0].Message != "Race underway" || got[2].Message != "Quali starts soon" {
		t.Fatalf("unexpected order: %v, %v", got[0].Message, got[2].Message)
	}
	if got[1].OK || got[1].Error != "telegram: retry after 30" {
		t.Fatalf("failed record not preserved: %+v", got[1])
	}
	if !got[2].At.Equal(base) {
		t.Fatalf("timestamp roundtrip: got %v, want %v", got[2].At, base)
	}
	// Each attempt stays attributable to its announcement.
	if got[2].Key != "monza-q" || !got[2].TargetAt.Equal(target) {
		t.Fatalf("key/target roundtrip: %+v", got[2])
	}
	if got[0].Key != "" || !got[0].TargetAt.IsZero() {
		t.Fatalf("ad-hoc record must keep empty key and zero target: %+v", got[0])
	}
}

func TestRecentDeliveriesLimit(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "deliveries.db")
	st, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if err := st.AppendDelivery(ctx, DeliveryRecord{OK: true, Message: "m"}); err != nil {
			t.Fatalf("AppendDelivery: %v", err)
		}
	}
	got, err := st.RecentDeliveries(ctx, 4)
	if err != nil {
		t.Fatalf("RecentDeliveries: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("limit ignored: got %d records", len(got))
	}
}
