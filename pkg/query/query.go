// Package query provides the Selector, a fluent builder that accumulates
// tables, fields, predicates and a row limit and renders them to one SELECT.
//
// Tables are comma-joined and related through predicates, which is how the
// entity store stitches an entity back together from its type's tables:
//
//	s := query.New().
//	    AddTable("entity").
//	    AddTable("image").
//	    AddField("entity", "*").
//	    AddField("image", "*").
//	    Where(sqldsl.Eq{Left: sqldsl.Col{Table: "entity", Column: "id"}, Right: sqldsl.Col{Table: "image", Column: "id"}})
//	rows, err := s.Run(ctx, db)
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/pthm/strata"
	"github.com/pthm/strata/pkg/sqldsl"
)

var (
	// ErrNoTables is returned when rendering a Selector with no tables.
	ErrNoTables = errors.New("query: no tables added")

	// ErrAliasConflict is returned when one alias was registered for two
	// different tables.
	ErrAliasConflict = errors.New("query: alias already bound to a different table")
)

// Selector accumulates the parts of a SELECT statement.
// A Selector is not safe for concurrent mutation; build it in one goroutine.
type Selector struct {
	tables   []sqldsl.TableRef
	aliases  map[string]string // alias -> real table name
	fields   []sqldsl.Expr
	conds    []sqldsl.Expr
	order    []sqldsl.Expr
	distinct bool
	limit    int
	offset   int
	err      error
}

// New returns an empty Selector.
func New() *Selector {
	return &Selector{aliases: make(map[string]string)}
}

// AddTable registers a table for the FROM list. With one argument the table
// is referenced by its own name; with two, alias is the reference and real
// is the table. Adding the same alias for the same table again is a no-op.
// Adding it for a different table is recorded and reported by Query.
func (s *Selector) AddTable(alias string, real ...string) *Selector {
	name := alias
	if len(real) > 0 && real[0] != "" {
		name = real[0]
	}
	if bound, ok := s.aliases[alias]; ok {
		if bound != name && s.err == nil {
			s.err = fmt.Errorf("%w: %q is %q, not %q", ErrAliasConflict, alias, bound, name)
		}
		return s
	}
	s.aliases[alias] = name
	s.tables = append(s.tables, sqldsl.TableAs(name, alias))
	return s
}

// HasTable reports whether alias has been registered.
func (s *Selector) HasTable(alias string) bool {
	_, ok := s.aliases[alias]
	return ok
}

// Tables returns the registered aliases in insertion order.
func (s *Selector) Tables() []string {
	out := make([]string, len(s.tables))
	for i, t := range s.tables {
		out[i] = t.TableAlias()
	}
	return out
}

// AddField projects table.field, optionally under a result alias.
// Field "*" selects every column of the table.
func (s *Selector) AddField(table, field string, alias ...string) *Selector {
	var expr sqldsl.Expr
	if field == "*" {
		expr = sqldsl.Star{Table: table}
	} else {
		expr = sqldsl.Col{Table: table, Column: field}
	}
	if len(alias) > 0 && alias[0] != "" && field != "*" {
		expr = sqldsl.Alias{Expr: expr, Name: alias[0]}
	}
	s.fields = append(s.fields, expr)
	return s
}

// Select projects typed expressions.
func (s *Selector) Select(exprs ...sqldsl.Expr) *Selector {
	s.fields = append(s.fields, exprs...)
	return s
}

// Where adds predicates. All predicates are ANDed.
func (s *Selector) Where(exprs ...sqldsl.Expr) *Selector {
	for _, e := range exprs {
		if e != nil {
			s.conds = append(s.conds, e)
		}
	}
	return s
}

// AddRelation adds a raw predicate. The caller is responsible for escaping
// any literal embedded in it; prefer Where with typed expressions.
func (s *Selector) AddRelation(predicate string) *Selector {
	if predicate == "" {
		return s
	}
	return s.Where(sqldsl.Raw(predicate))
}

// SetNum limits the result to count rows starting at offset.
// A count of zero or less removes the limit but still skips offset rows.
func (s *Selector) SetNum(count, offset int) *Selector {
	s.limit = count
	s.offset = offset
	return s
}

// OrderBy appends ORDER BY expressions.
func (s *Selector) OrderBy(exprs ...sqldsl.Expr) *Selector {
	s.order = append(s.order, exprs...)
	return s
}

// Distinct enables SELECT DISTINCT.
func (s *Selector) Distinct() *Selector {
	s.distinct = true
	return s
}

// Clone returns an independent copy, so a base selector can be extended in
// several directions.
func (s *Selector) Clone() *Selector {
	c := &Selector{
		tables:   append([]sqldsl.TableRef(nil), s.tables...),
		aliases:  make(map[string]string, len(s.aliases)),
		fields:   append([]sqldsl.Expr(nil), s.fields...),
		conds:    append([]sqldsl.Expr(nil), s.conds...),
		order:    append([]sqldsl.Expr(nil), s.order...),
		distinct: s.distinct,
		limit:    s.limit,
		offset:   s.offset,
		err:      s.err,
	}
	for k, v := range s.aliases {
		c.aliases[k] = v
	}
	return c
}

// Statement returns the accumulated statement.
func (s *Selector) Statement() (sqldsl.SelectStmt, error) {
	if s.err != nil {
		return sqldsl.SelectStmt{}, s.err
	}
	if len(s.tables) == 0 {
		return sqldsl.SelectStmt{}, ErrNoTables
	}

	from := make([]sqldsl.TableExpr, len(s.tables))
	for i, t := range s.tables {
		from[i] = t
	}
	cols := s.fields
	if len(cols) == 0 {
		cols = []sqldsl.Expr{sqldsl.Star{}}
	}

	return sqldsl.SelectStmt{
		Distinct:    s.distinct,
		ColumnExprs: cols,
		From:        from,
		Where:       sqldsl.And(s.conds...),
		OrderBy:     s.order,
		Limit:       s.limit,
		Offset:      s.offset,
	}, nil
}

// Query renders the statement without executing it. The same sequence of
// builder calls always renders the same string.
func (s *Selector) Query() (string, error) {
	stmt, err := s.Statement()
	if err != nil {
		return "", err
	}
	return stmt.SQL(), nil
}

// Run executes the statement and returns the rows in database order.
// Text returned as []byte by the driver is converted to string.
func (s *Selector) Run(ctx context.Context, q strata.Querier) ([]strata.Row, error) {
	sql, err := s.Query()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, sql)
	if err != nil {
		return nil, strata.MapError("query", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, strata.MapError("query columns", err)
	}

	var out []strata.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, strata.MapError("query scan", err)
		}

		row := make(strata.Row, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, strata.MapError("query rows", err)
	}
	return out, nil
}

// Columns executes the statement and returns the result column names without
// reading any rows. Combined with a false predicate it discovers a table's
// columns portably.
func (s *Selector) Columns(ctx context.Context, q strata.Querier) ([]string, error) {
	sql, err := s.Query()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, sql)
	if err != nil {
		return nil, strata.MapError("query", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, strata.MapError("query columns", err)
	}
	return cols, nil
}

// First runs the statement and returns its first row, or nil if none.
func (s *Selector) First(ctx context.Context, q strata.Querier) (strata.Row, error) {
	rows, err := s.Run(ctx, q)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}
