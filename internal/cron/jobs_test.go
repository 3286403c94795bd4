package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
)

type fakeOverdue struct {
	asOf  time.Time
	moved int
	err   error
}

func (f *fakeOverdue) MarkOverdue(_ context.Context, now time.Time) (int, error) {
	f.asOf = now
	return f.moved, f.err
}

type fakeSweeper struct {
	calls int
	err   error
}

func (f *fakeSweeper) SweepLowStock(context.Context) (int, error) {
	f.calls++
	return 3, f.err
}

func TestOverdueInvoicesJobUsesClock(t *testing.T) {
	now := time.Date(2026, 7, 2, 3, 0, 0, 0, time.UTC)
	invoices := &fakeOverdue{moved: 2}
	jobIface, err := NewOverdueInvoicesJob(OverdueInvoicesJobParams{Logger: logger.Nop(), Invoices: invoices})
	if err != nil {
		t.Fatalf("NewOverdueInvoicesJob: %v", err)
	}
	job := jobIface.(*overdueInvoicesJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !invoices.asOf.Equal(now) {
		t.Fatalf("expected as-of %s, got %s", now, invoices.asOf)
	}

	invoices.err = errors.New("db down")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error to propagate")
	}
}

func TestLowStockJob(t *testing.T) {
	sweeper := &fakeSweeper{}
	job, err := NewLowStockJob(LowStockJobParams{Logger: logger.Nop(), Inventory: sweeper})
	if err != nil {
		t.Fatalf("NewLowStockJob: %v", err)
	}
	if job.Name() != "low-stock-sweep" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	sweeper.err = errors.New("boom")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error to propagate")
	}
	if sweeper.calls != 2 {
		t.Fatalf("expected 2 sweeps, got %d", sweeper.calls)
	}
}

func TestJobConstructorsRequireDependencies(t *testing.T) {
	if _, err := NewOverdueInvoicesJob(OverdueInvoicesJobParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected missing invoices error")
	}
	if _, err := NewLowStockJob(LowStockJobParams{Inventory: &fakeSweeper{}}); err == nil {
		t.Fatal("expected missing logger error")
	}
}
