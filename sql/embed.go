// Package sql provides the embedded DDL for the three fixed tables.
package sql

import (
	_ "embed"
	"strings"
)

// SchemaSQL creates the entity, relationship and allowable_relationship
// tables. It sticks to the column types PostgreSQL, MySQL and SQLite share,
// and uses CREATE TABLE IF NOT EXISTS so it can be applied repeatedly.
//
// Auxiliary per-type tables are not part of it; they are described by the
// data itself through type_to_table edges.
//
//go:embed schema.sql
var SchemaSQL string

// Statements splits a script into individual statements on ";" line ends
// and drops comment-only lines. The embedded scripts contain no semicolons
// inside literals.
func Statements(script string) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSuffix(strings.TrimSpace(cur.String()), ";")
			out = append(out, stmt)
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}
