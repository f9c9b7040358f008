package rewriter

import (
	"strings"
	"testing"

	"github.com/1auti/dynamic-querys-sub000/internal/analyzer"
)

func analyze(sql string) (analyzer.Verdict, analyzer.PaginationVerdict) {
	a := analyzer.New()
	v := a.Analyze(sql)
	p := analyzer.AnalyzePagination(v)
	return v, p
}

func TestRewriteKeysetWithIDInjectsIDAndOrdering(t *testing.T) {
	sql := `SELECT placa, fecha_infraccion FROM infracciones WHERE provincia = 'Buenos Aires'`
	v, p := analyze(sql)

	result := Rewrite(sql, v, p)

	if !strings.Contains(result.SQL, " id,") {
		t.Fatalf("expected id column injected into select list, got: %s", result.SQL)
	}
	if !strings.Contains(result.SQL, "ORDER BY id ASC") {
		t.Fatalf("expected ORDER BY id ASC, got: %s", result.SQL)
	}
	if !strings.Contains(result.SQL, "LIMIT :limit") {
		t.Fatalf("expected LIMIT :limit, got: %s", result.SQL)
	}
	if strings.Contains(result.SQL, "provincia = 'Buenos Aires'") {
		t.Fatalf("expected hardcoded location filter stripped, got: %s", result.SQL)
	}
	if !strings.Contains(result.SQL, ":provincia") {
		t.Fatalf("expected reinjected parameterized location filter, got: %s", result.SQL)
	}
}

func TestRewriteIdempotentLimitNeverDoubled(t *testing.T) {
	sql := `SELECT id, placa FROM infracciones LIMIT 100`
	v, p := analyze(sql)

	result := Rewrite(sql, v, p)

	if strings.Count(strings.ToUpper(result.SQL), "LIMIT") != 1 {
		t.Fatalf("expected exactly one LIMIT clause, got: %s", result.SQL)
	}
}

func TestRewriteStripsDateRangeAndReinjectsThreeDateParams(t *testing.T) {
	sql := `SELECT id, placa FROM infracciones WHERE fecha_infraccion BETWEEN '2024-01-01' AND '2024-02-01'`
	v, p := analyze(sql)

	result := Rewrite(sql, v, p)

	if strings.Contains(result.SQL, "2024-01-01") {
		t.Fatalf("expected hardcoded date literals stripped, got: %s", result.SQL)
	}
	for _, want := range []string{":specificDate", ":startDate", ":endDate"} {
		if !strings.Contains(result.SQL, want) {
			t.Fatalf("expected %s in rewritten SQL, got: %s", want, result.SQL)
		}
	}
}

func TestRewriteConsolidationKeysetForGroupBy(t *testing.T) {
	sql := `SELECT provincia, COUNT(*) AS total FROM infracciones GROUP BY provincia`
	v, p := analyze(sql)

	result := Rewrite(sql, v, p)

	if !strings.Contains(result.SQL, "GROUP BY") {
		t.Fatalf("expected GROUP BY preserved, got: %s", result.SQL)
	}
	if !strings.Contains(result.SQL, "LIMIT :limit") {
		t.Fatalf("expected a LIMIT clause appended, got: %s", result.SQL)
	}
}

func TestRewritePreservesExistsClauseVerbatim(t *testing.T) {
	sql := `SELECT id, placa FROM infracciones i WHERE EXISTS (SELECT 1 FROM pagos p WHERE p.infraccion_id = i.id)`
	v, p := analyze(sql)

	result := Rewrite(sql, v, p)

	if !strings.Contains(result.SQL, "EXISTS (SELECT 1 FROM pagos p WHERE p.infraccion_id = i.id)") {
		t.Fatalf("expected EXISTS subquery preserved verbatim, got: %s", result.SQL)
	}
}

func TestRewriteInfractionStateAndTypeFilters(t *testing.T) {
	sql := `SELECT id, placa FROM infracciones WHERE id_estado IN (1,2,3) AND id_tipo_infra IN (5)`
	v, p := analyze(sql)

	result := Rewrite(sql, v, p)

	if strings.Contains(result.SQL, "IN (1,2,3)") {
		t.Fatalf("expected hardcoded id_estado list stripped, got: %s", result.SQL)
	}
	if !strings.Contains(result.SQL, ":infractionStates") || !strings.Contains(result.SQL, ":infractionTypes") {
		t.Fatalf("expected both infraction filters reinjected, got: %s", result.SQL)
	}
}
