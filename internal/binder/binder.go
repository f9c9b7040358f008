// Package binder implements the Parameter Binder (C6): it maps a
// validated Filter onto the exact named-parameter bag the Rewriter's
// SQL expects, using the bit-exact parameter names from spec.md §6.
package binder

import (
	"fmt"
	"strconv"
	"time"

	"github.com/1auti/dynamic-querys-sub000/internal/filter"
)

// Bindings is the named-parameter bag handed to a shard driver
// alongside rewritten SQL. Only keys actually referenced by a given
// query's rewritten text need to be present; drivers look values up by
// name and ignore the rest.
type Bindings map[string]any

// Bind builds the full parameter bag for f, covering every parameter
// name the Rewriter (C5) may have introduced: temporal, scope,
// infraction, pagination, and keyset-cursor values. A nil
// field is bound as nil, relying on the rewriter's null-passthrough
// template ("(:param IS NULL OR ...)") to make the predicate a no-op.
// keyColumnNames are the additional keyset_col_N/lastSerial-style names
// a particular query's Pagination Verdict introduced, so callers never
// need to guess which generic column slots a template actually uses.
func Bind(f *filter.Filter, keyColumnNames []string) Bindings {
	b := Bindings{
		"specificDate":       optionalTime(f.SpecificDate),
		"startDate":          optionalTime(f.StartDate),
		"endDate":            optionalTime(f.EndDate),
		"infractionStates":   int64SliceOrNil(f.InfractionStateIDs),
		"infractionTypes":    int64SliceOrNil(f.InfractionTypeIDs),
		"exportedToExternal": triStateToBindable(f.ExportedToExternal),
		"limit":              f.EffectiveLimit(),
		"offset":             f.Offset,
		"lastId":             f.LastID,
		"lastSerial":         f.LastSerial,
		"lastLocation":       f.LastLocation,
	}

	bindLocationScope(b, f)

	for i := 0; i < 3; i++ {
		b[keysetColParamName(i)] = compositeKeyValue(f.LastCompositeKey, i)
	}
	for _, name := range keyColumnNames {
		if _, ok := b[name]; !ok {
			b[name] = nil
		}
	}

	return b
}

// bindLocationScope binds the single-value location filter parameters
// (:provincia, :municipio, :localidad, :lugar) the rewriter's hardcoded-
// location re-injection uses, taking the first value of each scope
// slice — multi-value location scope is handled upstream by sharding on
// province, not by this predicate.
func bindLocationScope(b Bindings, f *filter.Filter) {
	b["provincia"] = firstOrNil(f.Provinces)
	b["municipio"] = firstOrNil(f.Municipalities)
	b["localidad"] = firstOrNil(f.Places)
	b["lugar"] = firstOrNil(f.Places)
}

func firstOrNil(values []string) any {
	if len(values) == 0 {
		return nil
	}
	return values[0]
}

func optionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func int64SliceOrNil(ids []int64) any {
	if len(ids) == 0 {
		return nil
	}
	return ids
}

func triStateToBindable(t filter.TriState) any {
	switch t {
	case filter.TriStateTrue:
		return true
	case filter.TriStateFalse:
		return false
	default:
		return nil
	}
}

func keysetColParamName(i int) string {
	return "keyset_col_" + strconv.Itoa(i)
}

// compositeKeyValue returns the i-th value from the cursor's composite
// key map in a stable order (sorted by key), since map iteration order
// is not itself stable and the rewriter's keyset_col_N names are
// positional.
func compositeKeyValue(m map[string]any, i int) any {
	if len(m) == 0 {
		return nil
	}
	keys := sortedKeys(m)
	if i >= len(keys) {
		return nil
	}
	return m[keys[i]]
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// String renders a Bindings map deterministically for logging, never
// for query execution.
func (b Bindings) String() string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	out := "{"
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s=%v", k, b[k])
	}
	return out + "}"
}
