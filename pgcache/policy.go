package pgcache

import (
	"fmt"
	"reflect"
)

// HostFlags selects which replica role(s) a query may be routed to.
type HostFlags uint8

const (
	// HostMaster routes to the primary/writer host.
	HostMaster HostFlags = 1 << iota
	// HostSlave routes to a read replica. This is the default for caches,
	// since a read-through cache never writes.
	HostSlave
	// HostRoundRobin routes across all available replicas, including the
	// primary if no replica is available.
	HostRoundRobin
)

// clusterHostRolesMask is the set of valid role bits; a Policy whose
// ClusterHostType is outside this mask fails validation.
const clusterHostRolesMask = HostMaster | HostSlave | HostRoundRobin

// Row is the minimal surface pgcache needs from a decoded database row. A
// *sql.Rows value (as returned by bun's raw-SQL query methods) satisfies it.
type Row interface {
	Scan(dest ...any) error
}

// Policy describes a cached entity: what to select, how to key it, and how
// to decode rows into values. It is a compile-time-shaped value in spirit
// (a Policy should be assembled once, at package init or in a constructor,
// and never mutated after being passed to New).
//
// RawValueType
// ScanRaw decodes the wire row into whatever shape is convenient to Scan
// into, and Convert (if non-nil) turns that into T. When Convert is nil,
// ScanRaw's result must already be a T.
type Policy[T any, K comparable] struct {
	// Name is the cache's identifier; also used as the stats/log tag and as
	// the scheduler's registration key.
	Name string

	// QueryText is the literal SELECT statement. Exactly one of QueryText
	// and GetQuery must be set.
	QueryText string

	// GetQuery is a function returning the literal SELECT statement,
	// for cases where the text can't be a package-level constant (e.g. it
	// depends on build configuration). Exactly one of QueryText and
	// GetQuery must be set.
	GetQuery func() string

	// Where is an optional additional predicate fragment, combined with the
	// base query.
	Where string

	// UpdatedField is the name of a comparable column used for incremental
	// updates. Empty disables incremental updates for this policy.
	UpdatedField string

	// ScanRaw decodes one result row. Required.
	ScanRaw func(row Row) (any, error)

	// Convert turns the value ScanRaw produced into T. If nil, ScanRaw's
	// result is asserted directly to T.
	Convert func(raw any) (T, error)

	// KeyMember extracts the cache key from a decoded value. Required.
	KeyMember func(value T) K

	// ClusterHostType selects which replica role(s) queries are routed to.
	// Zero value defaults to HostSlave.
	ClusterHostType HostFlags

	// NewContainer, if set, constructs the CacheContainer used to hold
	// published and working snapshots. Defaults to a plain Go map.
	NewContainer func() Container[K, T]

	// GetLastKnownUpdated, if set, computes the incremental-update
	// high-water mark from the current container instead of from
	// wall-clock time. Its return value is passed as the bound parameter
	// of the delta query.
	GetLastKnownUpdated func(Container[K, T]) any
}

// validate checks the static contract a Policy must satisfy, returning a
// *PolicyError naming the first violation found.
func (p *Policy[T, K]) validate() error {
	if p.Name == "" {
		return &PolicyError{Field: "Name", Message: "must not be empty"}
	}
	if p.KeyMember == nil {
		return &PolicyError{Field: "KeyMember", Message: "must be set"}
	}
	if p.ScanRaw == nil {
		return &PolicyError{Field: "ScanRaw", Message: "must be set"}
	}
	hasQuery := p.QueryText != ""
	hasGetQuery := p.GetQuery != nil
	if hasQuery == hasGetQuery {
		return &PolicyError{Field: "QueryText/GetQuery", Message: "exactly one of QueryText or GetQuery must be set"}
	}
	if p.ClusterHostType&^clusterHostRolesMask != 0 {
		return &PolicyError{Field: "ClusterHostType", Message: "must be a valid host role"}
	}
	return nil
}

// wantsIncrementalUpdates reports whether the policy has an update field,
// i.e. whether incremental updates are structurally possible.
func (p *Policy[T, K]) wantsIncrementalUpdates() bool {
	return p.UpdatedField != ""
}

func (p *Policy[T, K]) queryText() string {
	if p.GetQuery != nil {
		return p.GetQuery()
	}
	return p.QueryText
}

func (p *Policy[T, K]) whereTextOrEmpty() string {
	return p.Where
}

func (p *Policy[T, K]) updatedFieldNameOrEmpty() string {
	return p.UpdatedField
}

func (p *Policy[T, K]) clusterHostFlags() HostFlags {
	if p.ClusterHostType == 0 {
		return HostSlave
	}
	return p.ClusterHostType
}

func (p *Policy[T, K]) containerFactory() func() Container[K, T] {
	if p.NewContainer != nil {
		return p.NewContainer
	}
	return newMapContainer[K, T]
}

// decode runs ScanRaw and the optional Convert step, producing a T from a
// database row.
func (p *Policy[T, K]) decode(row Row) (T, error) {
	var zero T
	raw, err := p.ScanRaw(row)
	if err != nil {
		return zero, err
	}
	if p.Convert != nil {
		return p.Convert(raw)
	}
	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("ScanRaw returned %T, want %s (set Policy.Convert to bridge raw and value types)", raw, reflect.TypeOf(zero))
	}
	return v, nil
}

// lastKnownUpdated computes the high-water mark bound for the delta query:
// the policy's own override if present, otherwise fallback as given (the
// caller has already subtracted the configured update correction).
func (p *Policy[T, K]) lastKnownUpdated(container Container[K, T], fallback any) any {
	if p.GetLastKnownUpdated != nil {
		return p.GetLastKnownUpdated(container)
	}
	return fallback
}

// targetTypeName is used in RowDecodeError and log output. It is
// snake_cased so a generic or pointer type's reflected name (e.g.
// "*mypkg.Product") survives as a single structured-log field value.
func (p *Policy[T, K]) targetTypeName() string {
	var zero T
	return toSnake(reflect.TypeOf(zero).String())
}
