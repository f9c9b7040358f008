package catalog

import (
	"context"
	"testing"

	"github.com/1auti/dynamic-querys-sub000/internal/errorsx"
)

func TestSaveFindUpdateSoftDelete(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory()

	tmpl := &Template{Code: "INF_BY_DATE", Name: "Infractions by date", SQLText: "SELECT 1"}
	if err := c.Save(ctx, tmpl); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := c.FindByCode(ctx, "INF_BY_DATE")
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if got.Version != 1 {
		t.Fatalf("expected version 1, got %d", got.Version)
	}

	got.SQLText = "SELECT 2"
	if err := c.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got2, err := c.FindByCode(ctx, "INF_BY_DATE")
	if err != nil {
		t.Fatalf("FindByCode after update: %v", err)
	}
	if got2.Version != 2 {
		t.Fatalf("expected version 2 after update, got %d", got2.Version)
	}
	if got2.SQLText != "SELECT 2" {
		t.Fatalf("update did not persist: %+v", got2)
	}

	if err := c.SoftDelete(ctx, "INF_BY_DATE"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	_, err = c.FindByCode(ctx, "INF_BY_DATE")
	var notFound *errorsx.QueryNotFoundError
	if err == nil {
		t.Fatalf("expected not-found error after soft delete")
	}
	if !asQueryNotFound(err, &notFound) {
		t.Fatalf("expected QueryNotFoundError, got %T: %v", err, err)
	}
}

func asQueryNotFound(err error, target **errorsx.QueryNotFoundError) bool {
	e, ok := err.(*errorsx.QueryNotFoundError)
	if ok {
		*target = e
	}
	return ok
}

func TestMostUsedOrdering(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory()

	for _, code := range []string{"A", "B", "C"} {
		if err := c.Save(ctx, &Template{Code: code, SQLText: "SELECT 1"}); err != nil {
			t.Fatalf("Save %s: %v", code, err)
		}
	}

	// B used 3 times, A used 1 time, C unused.
	for i := 0; i < 3; i++ {
		if _, err := c.FindByCode(ctx, "B"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := c.FindByCode(ctx, "A"); err != nil {
		t.Fatal(err)
	}

	top, err := c.MostUsed(ctx, 2)
	if err != nil {
		t.Fatalf("MostUsed: %v", err)
	}
	if len(top) != 2 || top[0].Code != "B" || top[1].Code != "A" {
		t.Fatalf("unexpected order: %+v", top)
	}
}

func TestPendingAnalysis(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory()

	if err := c.Save(ctx, &Template{Code: "X", SQLText: "SELECT 1"}); err != nil {
		t.Fatal(err)
	}
	analyzed := &Template{Code: "Y", SQLText: "SELECT 1"}
	if err := c.Save(ctx, analyzed); err != nil {
		t.Fatal(err)
	}
	got, _ := c.FindByCode(ctx, "Y")
	got.ConsolidationType = ConsolidationRaw
	if err := c.Update(ctx, got); err != nil {
		t.Fatal(err)
	}

	pending, err := c.PendingAnalysis(ctx)
	if err != nil {
		t.Fatalf("PendingAnalysis: %v", err)
	}
	if len(pending) != 1 || pending[0].Code != "X" {
		t.Fatalf("unexpected pending set: %+v", pending)
	}
}
