package catalog

import (
	"context"
	"fmt"

	"github.com/pthm/strata"
	"github.com/pthm/strata/pkg/query"
	"github.com/pthm/strata/pkg/sqldsl"
)

// TablesForType returns the tables holding fields of entities of typeID.
// The entity table always comes first, followed by every table linked to
// the type by a type_to_table edge, in edge order without duplicates.
//
// A type with no linked tables yields just the entity table. A zero typeID
// is a programming error and panics.
func (c *Catalog) TablesForType(ctx context.Context, typeID strata.ID, opts ...strata.LookupOption) ([]string, error) {
	strata.MustID("TablesForType", typeID)
	l := strata.NewLookup(opts...)

	tables, err := strata.Remember(ctx, c.memo, strata.Key("catalog", "tables_for_type", typeID), l.Fresh,
		func(ctx context.Context) ([]string, error) {
			rows, err := query.New().
				AddTable("t", strata.TableEntity).
				AddTable("ct", strata.TableEntity).
				AddTable("r", strata.TableRelationship).
				AddTable("ar", strata.TableAllowableRelationship).
				AddField("t", "name").
				Where(
					sqldsl.Eq{Left: col("t", "type"), Right: col("ct", "id")},
					sqldsl.Eq{Left: col("ct", "unique_name"), Right: sqldsl.Lit(ContentTableName)},
					sqldsl.Eq{Left: col("r", "entity_a"), Right: idLit(typeID)},
					sqldsl.Eq{Left: col("r", "entity_b"), Right: col("t", "id")},
					sqldsl.Eq{Left: col("r", "type"), Right: col("ar", "id")},
					sqldsl.Eq{Left: col("ar", "name"), Right: sqldsl.Lit(RelTypeToTable)},
				).
				OrderBy(col("r", "id")).
				Run(ctx, c.q)
			if err != nil {
				return nil, fmt.Errorf("tables for type %d: %w", typeID, err)
			}

			out := []string{strata.TableEntity}
			seen := map[string]bool{strata.TableEntity: true}
			for _, row := range rows {
				name := row.String("name")
				if name == "" || seen[name] {
					continue
				}
				seen[name] = true
				out = append(out, name)
			}
			return out, nil
		})
	if err != nil {
		return nil, err
	}
	return append([]string(nil), tables...), nil
}

// TablesForEntity returns TablesForType for the entity's own type. An id
// with no entity row yields just the entity table; loading it will then
// report strata.ErrNotFound. A zero entityID panics.
func (c *Catalog) TablesForEntity(ctx context.Context, entityID strata.ID, opts ...strata.LookupOption) ([]string, error) {
	strata.MustID("TablesForEntity", entityID)
	l := strata.NewLookup(opts...)

	tables, err := strata.Remember(ctx, c.memo, strata.Key("catalog", "tables_for_entity", entityID), l.Fresh,
		func(ctx context.Context) ([]string, error) {
			typeID, err := c.typeOf(ctx, entityID, l.Fresh)
			if strata.IsNotFoundErr(err) {
				return []string{strata.TableEntity}, nil
			}
			if err != nil {
				return nil, err
			}
			if typeID.IsZero() {
				return []string{strata.TableEntity}, nil
			}
			return c.TablesForType(ctx, typeID, opts...)
		})
	if err != nil {
		return nil, err
	}
	return append([]string(nil), tables...), nil
}

// TableExists reports whether a content_table entity names table.
// It says nothing about whether the table physically exists; FieldsOfTable
// does.
func (c *Catalog) TableExists(ctx context.Context, table string, opts ...strata.LookupOption) (bool, error) {
	l := strata.NewLookup(opts...)
	return strata.Remember(ctx, c.memo, strata.Key("catalog", "table_exists", table), l.Fresh,
		func(ctx context.Context) (bool, error) {
			row, err := query.New().
				AddTable("t", strata.TableEntity).
				AddTable("ct", strata.TableEntity).
				AddField("t", "id").
				Where(
					sqldsl.Eq{Left: col("t", "type"), Right: col("ct", "id")},
					sqldsl.Eq{Left: col("ct", "unique_name"), Right: sqldsl.Lit(ContentTableName)},
					sqldsl.Eq{Left: col("t", "name"), Right: sqldsl.Lit(table)},
				).
				SetNum(1, 0).
				First(ctx, c.q)
			if err != nil {
				return false, fmt.Errorf("table exists %q: %w", table, err)
			}
			return row != nil, nil
		})
}

// FieldsOfTable returns the column names of a physical table, in table
// order. A table that does not exist returns strata.ErrMissingTable.
func (c *Catalog) FieldsOfTable(ctx context.Context, table string, opts ...strata.LookupOption) ([]string, error) {
	if !ValidUniqueName(table) {
		return nil, fmt.Errorf("catalog: invalid table name %q", table)
	}
	l := strata.NewLookup(opts...)

	fields, err := strata.Remember(ctx, c.memo, strata.Key("catalog", "fields_of_table", table), l.Fresh,
		func(ctx context.Context) ([]string, error) {
			cols, err := query.New().
				AddTable(table).
				AddRelation("1 = 0").
				Columns(ctx, c.q)
			if err != nil {
				return nil, fmt.Errorf("fields of table %q: %w", table, err)
			}
			return cols, nil
		})
	if err != nil {
		return nil, err
	}
	return append([]string(nil), fields...), nil
}

// FieldsOfType returns the columns of every table of typeID, keyed by table.
func (c *Catalog) FieldsOfType(ctx context.Context, typeID strata.ID, opts ...strata.LookupOption) (map[string][]string, error) {
	tables, err := c.TablesForType(ctx, typeID, opts...)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(tables))
	for _, t := range tables {
		fields, err := c.FieldsOfTable(ctx, t, opts...)
		if err != nil {
			return nil, err
		}
		out[t] = fields
	}
	return out, nil
}

// typeOf returns the type column of an entity row, in any state.
func (c *Catalog) typeOf(ctx context.Context, id strata.ID, fresh bool) (strata.ID, error) {
	return strata.Remember(ctx, c.memo, strata.Key("catalog", "type_of", id), fresh,
		func(ctx context.Context) (strata.ID, error) {
			row, err := query.New().
				AddTable(strata.TableEntity).
				AddField(strata.TableEntity, "type").
				Where(sqldsl.Eq{Left: col(strata.TableEntity, "id"), Right: idLit(id)}).
				First(ctx, c.q)
			if err != nil {
				return 0, fmt.Errorf("type of %d: %w", id, err)
			}
			if row == nil {
				return 0, strata.NotFound("entity", id)
			}
			return row.IDField("type"), nil
		})
}

// Types returns every type entity, ordered by id. The root is included once.
func (c *Catalog) Types(ctx context.Context, opts ...strata.LookupOption) ([]strata.Entity, error) {
	l := strata.NewLookup(opts...)
	root, err := c.Root(ctx, opts...)
	if err != nil {
		return nil, err
	}

	types, err := strata.Remember(ctx, c.memo, strata.Key("catalog", "types"), l.Fresh,
		func(ctx context.Context) ([]strata.Entity, error) {
			rows, err := query.New().
				AddTable(strata.TableEntity).
				AddField(strata.TableEntity, "*").
				Where(sqldsl.Eq{Left: col(strata.TableEntity, "type"), Right: idLit(root)}).
				OrderBy(col(strata.TableEntity, "id")).
				Run(ctx, c.q)
			if err != nil {
				return nil, fmt.Errorf("load types: %w", err)
			}
			out := make([]strata.Entity, len(rows))
			for i, row := range rows {
				out[i] = strata.Entity(row)
			}
			return out, nil
		})
	if err != nil {
		return nil, err
	}

	out := make([]strata.Entity, len(types))
	for i, t := range types {
		out[i] = t.Clone()
	}
	return out, nil
}

// TypeLineage walks type pointers from entityID up to the root and returns
// every id visited, starting with entityID and ending with the root. A walk
// that revisits an id without reaching the root returns
// strata.ErrIntegrityGap.
func (c *Catalog) TypeLineage(ctx context.Context, entityID strata.ID, opts ...strata.LookupOption) ([]strata.ID, error) {
	strata.MustID("TypeLineage", entityID)
	l := strata.NewLookup(opts...)

	root, err := c.Root(ctx, opts...)
	if err != nil {
		return nil, err
	}

	lineage := []strata.ID{entityID}
	seen := map[strata.ID]bool{entityID: true}
	for cur := entityID; cur != root; {
		next, err := c.typeOf(ctx, cur, l.Fresh)
		if err != nil {
			return lineage, err
		}
		if seen[next] {
			return lineage, fmt.Errorf("%w: type cycle at %d never reaches root %d",
				strata.ErrIntegrityGap, next, root)
		}
		seen[next] = true
		lineage = append(lineage, next)
		cur = next
	}
	return lineage, nil
}
