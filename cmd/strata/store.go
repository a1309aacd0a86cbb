package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"sigs.k8s.io/yaml"

	"github.com/pthm/strata"
	"github.com/pthm/strata/internal/cli"
	"github.com/pthm/strata/internal/database"
	"github.com/pthm/strata/pkg/privilege"
	"github.com/pthm/strata/pkg/reader"
)

// openReader connects to the configured store. The returned close func
// releases the connection.
func openReader(ctx context.Context) (*reader.Reader, func(), error) {
	opts := cfg.DatabaseOptions()
	if _, err := opts.DSN(); err != nil {
		return nil, nil, cli.ConfigError("database configuration", err)
	}

	db, err := database.Open(ctx, opts)
	if err != nil {
		return nil, nil, cli.DBConnectError("connecting to database", err)
	}
	logger.DebugContext(ctx, "connected", "driver", opts.Driver)

	readerOpts := []reader.Option{
		reader.WithCache(strata.NewMemoryCache(strata.WithTTL(cfg.Cache.TTL))),
		reader.WithLogger(logger),
		reader.WithDefaultRole(cfg.Privileges.DefaultRole),
		reader.WithDefaultEditor(cfg.Editor.Default),
	}
	if cfg.Privileges.TableFile != "" {
		table, err := privilege.LoadTable(cfg.Privileges.TableFile)
		if err != nil {
			_ = db.Close()
			return nil, nil, cli.ConfigError("loading privilege table", err)
		}
		readerOpts = append(readerOpts, reader.WithPrivilegeTable(table))
	}

	return reader.New(db, readerOpts...), func() { _ = db.Close() }, nil
}

// withReader runs fn against the configured store.
func withReader(ctx context.Context, fn func(*reader.Reader) error) error {
	r, closeDB, err := openReader(ctx)
	if err != nil {
		return err
	}
	defer closeDB()
	return fn(r)
}

// resolveEntity accepts a numeric id or a unique name.
func resolveEntity(ctx context.Context, r *reader.Reader, arg string) (strata.ID, error) {
	if id, err := strata.ParseID(arg); err == nil {
		return id, nil
	}
	id, err := r.Catalog.IDOf(ctx, arg)
	if err != nil {
		return 0, cli.LookupError("resolving "+arg, err)
	}
	return id, nil
}

// resolveType accepts a numeric id or a type's unique name.
func resolveType(ctx context.Context, r *reader.Reader, arg string) (strata.ID, error) {
	if id, err := strata.ParseID(arg); err == nil {
		return id, nil
	}
	id, err := r.Catalog.TypeID(ctx, arg)
	if err != nil {
		return 0, cli.LookupError("resolving type "+arg, err)
	}
	return id, nil
}

// resolveUser accepts a numeric id or a username.
func resolveUser(ctx context.Context, r *reader.Reader, arg string) (strata.ID, error) {
	if id, err := strata.ParseID(arg); err == nil {
		return id, nil
	}
	id, err := r.Entities.UserID(ctx, arg)
	if err != nil {
		return 0, cli.LookupError("resolving user "+arg, err)
	}
	return id, nil
}

func printYAML(w io.Writer, v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func printTable(w io.Writer, headers []string, rows [][]string) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "no results")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

func entityRows(entities []strata.Entity) [][]string {
	rows := make([][]string, 0, len(entities))
	for _, e := range entities {
		rows = append(rows, []string{
			e.ID().String(),
			e.Type().String(),
			dash(e.UniqueName()),
			e.Name(),
			string(e.State()),
		})
	}
	return rows
}

var entityHeaders = []string{"ID", "TYPE", "UNIQUE_NAME", "NAME", "STATE"}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
