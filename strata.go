// Package strata provides read access to an entity/relationship store where
// every domain object is an entity, entities are typed by other entities, and
// typed edges between them are declared in an allowable-relationship catalog.
//
// # Storage Model
//
// Three fixed tables hold the graph:
//
//   - entity: id, name, type, unique_name, state, plus bookkeeping columns
//   - relationship: id, entity_a, entity_b, type (an allowable_relationship id)
//   - allowable_relationship: id, name, relationship_a, relationship_b
//
// A type's remaining fields live in auxiliary tables keyed by entity id. The
// set of tables for a type is itself stored in the graph: the type is linked
// by a type_to_table edge to content_table entities whose name is the table.
//
// # Packages
//
// The root package holds shared types, sentinel errors and the process cache.
// The resolvers live under pkg/:
//
//	r := reader.New(db)
//	id, err := r.Catalog.TypeID(ctx, "image")
//	e, err := r.Entities.GetByID(ctx, 42)
//	ok, err := r.Privileges.HasPrivilege(ctx, userID, privilege.Publish)
//
// # Caching
//
// Every resolver memoizes lookups for the lifetime of its Cache. Pass Fresh()
// to bypass and repopulate the entry for a single call:
//
//	id, err := r.Catalog.IDOf(ctx, "logo", strata.Fresh())
//
// # Transaction Support
//
// Resolvers accept any Querier, so *sql.DB, *sql.Tx and *sql.Conn all work.
package strata

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/spf13/cast"
)

// Fixed table names.
const (
	TableEntity                = "entity"
	TableRelationship          = "relationship"
	TableAllowableRelationship = "allowable_relationship"
)

// ID identifies an entity, relationship or allowable relationship.
type ID int64

// String returns the decimal form of the id.
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// IsZero reports whether id is the zero id, which never names a row.
func (id ID) IsZero() bool {
	return id == 0
}

// ParseID parses a decimal id.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ID(n), nil
}

// State is the lifecycle state of an entity.
type State string

const (
	StateLive    State = "Live"
	StatePending State = "Pending"
	StateDeleted State = "Deleted"
)

// String returns the state as stored.
func (s State) String() string {
	return string(s)
}

// Row is one result row, keyed by column name or alias.
type Row map[string]any

// IDField returns field as an ID, with the same conversions as Entity.IDField.
func (r Row) IDField(field string) ID {
	return Entity(r).IDField(field)
}

// String returns field as a string. NULL and missing fields are "".
func (r Row) String(field string) string {
	return Entity(r).String(field)
}

// Entity is a materialized entity: the entity table row merged with the rows
// of every auxiliary table for its type.
type Entity map[string]any

// ID returns the entity id, or zero if the id field is absent.
func (e Entity) ID() ID {
	return e.IDField("id")
}

// Type returns the id of the entity's type.
func (e Entity) Type() ID {
	return e.IDField("type")
}

// Name returns the entity name.
func (e Entity) Name() string {
	return e.String("name")
}

// UniqueName returns the entity unique name, or "" if unset.
func (e Entity) UniqueName() string {
	return e.String("unique_name")
}

// State returns the entity state.
func (e Entity) State() State {
	return State(e.String("state"))
}

// String returns field as a string. NULL and missing fields are "".
func (e Entity) String(field string) string {
	v, ok := e[field]
	if !ok || v == nil {
		return ""
	}
	return cast.ToString(v)
}

// IDField returns field as an ID. NULL, missing and non-numeric fields are zero.
func (e Entity) IDField(field string) ID {
	v, ok := e[field]
	if !ok || v == nil {
		return 0
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return 0
	}
	return ID(n)
}

// Has reports whether field is present, even if NULL.
func (e Entity) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// Clone returns a shallow copy of e.
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Querier is the minimal database interface the resolvers need.
// It is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Execer extends Querier with ExecContext. Only fixture loading needs it;
// resolvers never write.
type Execer interface {
	Querier
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Lookup holds per-call lookup options.
type Lookup struct {
	// Fresh bypasses the cache and repopulates it from the store.
	Fresh bool
	// Quiet suppresses the not-found diagnostic for speculative lookups.
	Quiet bool
}

// LookupOption configures a single lookup.
type LookupOption func(*Lookup)

// Fresh bypasses the cache for one call. The reloaded value replaces the
// cached one, so later cached calls see it too.
func Fresh() LookupOption {
	return func(l *Lookup) { l.Fresh = true }
}

// Quiet suppresses the warning logged when a lookup finds nothing.
func Quiet() LookupOption {
	return func(l *Lookup) { l.Quiet = true }
}

// NewLookup applies opts to a zero Lookup.
func NewLookup(opts ...LookupOption) Lookup {
	var l Lookup
	for _, opt := range opts {
		if opt != nil {
			opt(&l)
		}
	}
	return l
}
