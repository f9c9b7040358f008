// Package filter defines the Filter Model (C1): an immutable value
// describing one logical query's parameters — temporal scope, location
// scope, equipment and infraction predicates, pagination/consolidation
// controls, and the keyset cursor carried between pages.
//
// A Filter is built once per request and never mutated afterward; the
// batch processor derives per-shard cursors that live alongside it in a
// Run (see internal/batch), never inside the Filter itself.
package filter

import (
	"time"

	"github.com/1auti/dynamic-querys-sub000/internal/errorsx"
)

// TriState models an optional boolean filter (exportedToExternal) that
// can be true, false, or "not specified".
type TriState int

const (
	TriStateUnset TriState = iota
	TriStateTrue
	TriStateFalse
)

// MaxLimit is the upper bound on Filter.Limit, per spec.md §3.
const MaxLimit = 50_000

// Filter is the immutable, validated request shape consumed by the rest
// of the engine. Construct as a struct literal and Validate before use; the zero
// value is not guaranteed valid.
type Filter struct {
	// Temporal.
	StartDate    *time.Time
	EndDate      *time.Time
	SpecificDate *time.Time

	// Scope.
	Provinces     []string
	Municipalities []string
	Places        []string
	Districts     []string

	// Equipment.
	DeviceTypeIDs        []int64
	EquipmentPatterns    []string
	ExactEquipmentSerials []string
	IncludeRedLight      bool
	IncludeSpeedRadar    bool
	FilterByEquipmentType bool

	// Infractions.
	InfractionTypeIDs  []int64
	InfractionStateIDs []int64
	ExportedToExternal TriState

	// Output control.
	Limit        int
	PageSize     int
	Page         int
	Offset       int
	UseAllShards bool

	// Consolidation.
	Consolidate   bool
	GroupByFields []string

	// Cursor (keyset), captured from the previous page's last row.
	LastID          *int64
	LastSerial      *string
	LastLocation    *string
	LastCompositeKey map[string]any
}

// Validate checks every invariant from spec.md §3 and returns a
// *errorsx.ValidationError listing every violation found, rather than
// failing fast on the first one, matching the teacher's Preflight
// aggregate-validation convention.
func (f *Filter) Validate() error {
	var violations []string

	if f.SpecificDate != nil && (f.StartDate != nil || f.EndDate != nil) {
		violations = append(violations, "specificDate is mutually exclusive with a date range")
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		violations = append(violations, "endDate must be >= startDate")
	}
	if f.Limit != 0 && (f.Limit < 1 || f.Limit > MaxLimit) {
		violations = append(violations, "limit must be in [1, 50000] when set")
	}
	if f.Page != 0 && f.Page < 1 {
		violations = append(violations, "page must be >= 1 when set")
	}
	if f.PageSize != 0 && (f.PageSize < 1 || f.PageSize > MaxLimit) {
		violations = append(violations, "pageSize must be in [1, 50000] when set")
	}
	if f.Consolidate && len(f.GroupByFields) == 0 {
		violations = append(violations, "consolidate requires at least one groupByFields entry")
	}
	if len(f.LastCompositeKey) > 3 {
		violations = append(violations, "lastCompositeKey may carry at most 3 values")
	}

	if len(violations) > 0 {
		return errorsx.NewValidationError(violations...)
	}
	return nil
}

// EffectiveLimit returns the Limit to use for a single shard fetch,
// falling back to PageSize, then to a conservative default.
func (f *Filter) EffectiveLimit() int {
	switch {
	case f.Limit > 0:
		return f.Limit
	case f.PageSize > 0:
		return f.PageSize
	default:
		return 1000
	}
}

// HasCursor reports whether any keyset cursor field has been populated,
// i.e. this is a continuation request rather than the first page.
func (f *Filter) HasCursor() bool {
	return f.LastID != nil || f.LastSerial != nil || f.LastLocation != nil || len(f.LastCompositeKey) > 0
}

// Clone returns a deep-enough copy of f suitable for deriving a per-shard
// cursor snapshot without sharing backing slices/maps with the original,
// matching the Batch Context's ownership rule that per-request state
// never leaks back into the shared Filter.
func (f *Filter) Clone() *Filter {
	clone := *f
	clone.Provinces = append([]string(nil), f.Provinces...)
	clone.Municipalities = append([]string(nil), f.Municipalities...)
	clone.Places = append([]string(nil), f.Places...)
	clone.Districts = append([]string(nil), f.Districts...)
	clone.DeviceTypeIDs = append([]int64(nil), f.DeviceTypeIDs...)
	clone.EquipmentPatterns = append([]string(nil), f.EquipmentPatterns...)
	clone.ExactEquipmentSerials = append([]string(nil), f.ExactEquipmentSerials...)
	clone.InfractionTypeIDs = append([]int64(nil), f.InfractionTypeIDs...)
	clone.InfractionStateIDs = append([]int64(nil), f.InfractionStateIDs...)
	clone.GroupByFields = append([]string(nil), f.GroupByFields...)
	if f.LastCompositeKey != nil {
		clone.LastCompositeKey = make(map[string]any, len(f.LastCompositeKey))
		for k, v := range f.LastCompositeKey {
			clone.LastCompositeKey[k] = v
		}
	}
	return &clone
}

// WithCursor returns a shallow clone of f with its keyset cursor fields
// replaced, used by the batch processor to advance a per-shard cursor
// between pages without mutating the shared Filter.
func (f *Filter) WithCursor(lastID *int64, lastSerial, lastLocation *string, composite map[string]any) *Filter {
	clone := f.Clone()
	clone.LastID = lastID
	clone.LastSerial = lastSerial
	clone.LastLocation = lastLocation
	clone.LastCompositeKey = composite
	return clone
}
