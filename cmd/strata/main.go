// Package main provides a CLI for reading a strata entity/relationship store.
//
// The CLI supports:
//   - id-of, types, tables, entity, entities: catalog and entity lookups
//   - assoc, owner, borrowers: relationship traversal
//   - roles, can: privilege resolution
//   - doctor: health checks on the store
//   - schema, config, version: utilities
//
// Usage:
//
//	strata [flags] <command>
//
// Commands that read the store need database settings from strata.yaml,
// STRATA_DATABASE_* environment variables or --db/--driver.
package main

func main() {
	Execute()
}
