package medication_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sanacare/go-care/internal/domain/medication"
	"github.com/sanacare/go-care/internal/i18n"
)

func TestLowStockSignalOnThresholdCross(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := dailyInput("08:00")
	in.CurrentStock = 6
	in.LowStockThreshold = 5
	in.NotifyLowStock = true
	m := f.create(t, in)

	// 6 -> 5 crosses the threshold.
	if _, err := f.svc.Take(ctx, m.ID, "user-1", medication.TakeInput{}); err != nil {
		t.Fatalf("take: %v", err)
	}
	if f.notifier.count() != 1 {
		t.Fatalf("%d notifications, want 1", f.notifier.count())
	}
	if !strings.Contains(f.notifier.sent[0].Title, "Stock faible") {
		t.Fatalf("unexpected notification: %+v", f.notifier.sent[0])
	}
}

func TestNoSignalAboveThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := dailyInput("08:00")
	in.CurrentStock = 8
	in.LowStockThreshold = 5
	in.NotifyLowStock = true
	m := f.create(t, in)

	// 8 -> 7 stays above the threshold.
	if _, err := f.svc.Take(ctx, m.ID, "user-1", medication.TakeInput{}); err != nil {
		t.Fatalf("take: %v", err)
	}
	if f.notifier.count() != 0 {
		t.Fatalf("%d notifications, want none", f.notifier.count())
	}
}

func TestNoSignalWhenDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := dailyInput("08:00")
	in.CurrentStock = 3
	in.LowStockThreshold = 5
	m := f.create(t, in)

	if _, err := f.svc.Take(ctx, m.ID, "user-1", medication.TakeInput{}); err != nil {
		t.Fatalf("take: %v", err)
	}
	if f.notifier.count() != 0 {
		t.Fatalf("signal raised with notifications disabled")
	}
}

func TestUpdateStockLedgerTypes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := dailyInput("08:00")
	in.CurrentStock = 10
	m := f.create(t, in)

	// Absolute set upward records an add.
	if _, err := f.svc.UpdateStock(ctx, m.ID, "user-1", medication.UpdateStockInput{Quantity: 15}); err != nil {
		t.Fatalf("update stock: %v", err)
	}
	// Absolute set downward records an adjustment.
	if _, err := f.svc.UpdateStock(ctx, m.ID, "user-1", medication.UpdateStockInput{Quantity: 12}); err != nil {
		t.Fatalf("update stock: %v", err)
	}

	ledger, err := f.svc.StockHistory(ctx, m.ID, "user-1")
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if len(ledger) != 2 {
		t.Fatalf("%d ledger entries, want 2", len(ledger))
	}
	byType := map[medication.StockChangeType]*medication.StockHistory{}
	for _, e := range ledger {
		byType[e.Type] = e
	}
	add, adj := byType[medication.StockAdd], byType[medication.StockAdjustment]
	if add == nil || add.ChangeAmount != 5 || add.PreviousStock != 10 || add.NewStock != 15 {
		t.Fatalf("bad add entry: %+v", add)
	}
	if adj == nil || adj.ChangeAmount != -3 || adj.PreviousStock != 15 || adj.NewStock != 12 {
		t.Fatalf("bad adjustment entry: %+v", adj)
	}
}

func TestAddStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := dailyInput("08:00")
	in.CurrentStock = 2
	m := f.create(t, in)

	got, err := f.svc.AddStock(ctx, m.ID, "user-1", 28, "pharmacy refill")
	if err != nil {
		t.Fatalf("add stock: %v", err)
	}
	if got.CurrentStock != 30 {
		t.Fatalf("stock %d, want 30", got.CurrentStock)
	}

	if _, err := f.svc.AddStock(ctx, m.ID, "user-1", 0, ""); !errors.Is(err, medication.ErrInvalidInput) {
		t.Fatalf("zero refill: got %v", err)
	}
	if _, err := f.svc.AddStock(ctx, m.ID, "user-1", -3, ""); !errors.Is(err, medication.ErrInvalidInput) {
		t.Fatalf("negative refill: got %v", err)
	}
}

func TestScanLowStockSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	low := dailyInput("08:00")
	low.Name = i18n.LocalizedText{FR: "Doliprane", EN: "Doliprane"}
	low.CurrentStock = 2
	low.LowStockThreshold = 5
	low.NotifyLowStock = true
	f.create(t, low)

	fine := dailyInput("09:00")
	fine.Name = i18n.LocalizedText{FR: "Sirop", EN: "Syrup"}
	fine.CurrentStock = 50
	fine.LowStockThreshold = 5
	fine.NotifyLowStock = true
	f.create(t, fine)

	if err := f.svc.ScanLowStock(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if f.notifier.count() != 1 {
		t.Fatalf("%d notifications, want 1", f.notifier.count())
	}
	if !strings.Contains(f.notifier.sent[0].Body, "Doliprane") {
		t.Fatalf("wrong medication flagged: %+v", f.notifier.sent[0])
	}
}
