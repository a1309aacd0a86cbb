// Package sqldsl provides typed building blocks for the SELECT statements the
// resolvers issue against the entity store.
//
// # Overview
//
// Predicates are a small expression tree rather than concatenated strings.
// Literals render escaped, identifiers come from code, and the only way to
// splice arbitrary SQL is Raw, which callers use for the rare dynamic join
// and own the escaping of.
//
// The rendered SQL is the portable subset shared by PostgreSQL, MySQL (with
// ANSI_QUOTES and NO_BACKSLASH_ESCAPES) and SQLite: comma joins, AS aliases,
// LIMIT/OFFSET and single-quoted literals with doubled quotes.
//
// # Expression Types
//
//	Col{Table: "r", Column: "entity_a"} // r.entity_a
//	Lit("owns")                         // 'owns'
//	Int(42)                             // 42
//	Raw("r.rel_sort_order")             // as written
//
// Operators:
//
//	Eq{Left: col, Right: Int(42)}       // col = 42
//	In{Expr: col, Values: []string}     // col IN ('a', 'b')
//	InInt{Expr: col, Values: []int64}   // col IN (1, 2)
//	And(expr1, expr2)                   // (expr1 AND expr2)
//	Or(expr1, expr2)                    // (expr1 OR expr2)
//
// # Statements
//
//	SelectStmt{
//	    ColumnExprs: []Expr{Col{Table: "e", Column: "name"}},
//	    From:        []TableExpr{TableAs("entity", "e")},
//	    Where:       Eq{Left: Col{Table: "e", Column: "id"}, Right: Int(42)},
//	    Limit:       1,
//	}
package sqldsl
