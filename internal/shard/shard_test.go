package shard

import (
	"reflect"
	"testing"
)

func TestBindNamedRewritesInOrderOfAppearance(t *testing.T) {
	sqlText := "SELECT * FROM infracciones WHERE provincia = :provincia AND fecha >= :startDate"
	args := map[string]any{"provincia": "Cordoba", "startDate": "2024-01-01"}

	rewritten, values := BindNamed(sqlText, args, func(n int) string { return "$" + itoa(n) })

	wantSQL := "SELECT * FROM infracciones WHERE provincia = $1 AND fecha >= $2"
	if rewritten != wantSQL {
		t.Fatalf("rewritten = %q, want %q", rewritten, wantSQL)
	}
	if !reflect.DeepEqual(values, []any{"Cordoba", "2024-01-01"}) {
		t.Fatalf("values = %v", values)
	}
}

func TestBindNamedDuplicatesValueForRepeatedName(t *testing.T) {
	sqlText := "(:lastId IS NULL OR id > :lastId)"
	args := map[string]any{"lastId": int64(42)}

	rewritten, values := BindNamed(sqlText, args, func(n int) string { return "?" })

	if rewritten != "(? IS NULL OR id > ?)" {
		t.Fatalf("rewritten = %q", rewritten)
	}
	if !reflect.DeepEqual(values, []any{int64(42), int64(42)}) {
		t.Fatalf("values = %v, want duplicated lastId", values)
	}
}

func TestBindNamedMissingArgBindsNil(t *testing.T) {
	rewritten, values := BindNamed("WHERE x = :unknown", map[string]any{}, func(n int) string { return "$1" })

	if rewritten != "WHERE x = $1" {
		t.Fatalf("rewritten = %q", rewritten)
	}
	if len(values) != 1 || values[0] != nil {
		t.Fatalf("values = %v, want [nil]", values)
	}
}

func TestSetNamesReturnsAllShardKeys(t *testing.T) {
	s := Set{"cordoba": nil, "mendoza": nil}
	names := s.Names()
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %v", names)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}
