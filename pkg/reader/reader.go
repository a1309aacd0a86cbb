// Package reader wires every resolver over one store and one cache.
//
// A Reader is meant to be built once per process and shared:
//
//	r := reader.New(db, reader.WithCache(strata.NewMemoryCache(strata.WithTTL(time.Minute))))
//	img, err := r.Entities.GetByID(ctx, 42)
//	ok, err := r.Privileges.HasPrivilege(ctx, user, privilege.Publish)
//
// Resolvers memoize into the shared cache under their own key prefixes, so
// Reset drops every cached lookup at once.
package reader

import (
	"log/slog"

	"github.com/pthm/strata"
	"github.com/pthm/strata/pkg/catalog"
	"github.com/pthm/strata/pkg/editor"
	"github.com/pthm/strata/pkg/entity"
	"github.com/pthm/strata/pkg/graph"
	"github.com/pthm/strata/pkg/privilege"
)

// Reader groups the resolvers for one store.
type Reader struct {
	Catalog    *catalog.Catalog
	Entities   *entity.Store
	Graph      *graph.Graph
	Privileges *privilege.Resolver
	Editors    *editor.Resolver

	cache  strata.Cache
	logger *slog.Logger
}

type options struct {
	cache       strata.Cache
	logger      *slog.Logger
	table       privilege.Table
	defaultRole string
	registry    *editor.Registry
	editor      string
	privOpts    []privilege.Option
}

// Option configures New.
type Option func(*options)

// WithCache sets the shared cache. The default is an unbounded MemoryCache.
func WithCache(c strata.Cache) Option {
	return func(o *options) { o.cache = c }
}

// WithLogger sets the logger handed to every resolver.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithPrivilegeTable replaces the role to privilege table.
func WithPrivilegeTable(t privilege.Table) Option {
	return func(o *options) { o.table = t }
}

// WithDefaultRole sets the role substituted for users with none.
func WithDefaultRole(uniqueName string) Option {
	return func(o *options) { o.defaultRole = uniqueName }
}

// WithEditorRegistry sets the HTML editor registry.
func WithEditorRegistry(r *editor.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithDefaultEditor sets the editor key used for sites with none linked.
func WithDefaultEditor(key string) Option {
	return func(o *options) { o.editor = key }
}

// WithPrivilegeOptions passes extra options to the privilege resolver,
// such as privilege.WithDecision.
func WithPrivilegeOptions(opts ...privilege.Option) Option {
	return func(o *options) { o.privOpts = append(o.privOpts, opts...) }
}

// New builds a Reader over q.
func New(q strata.Querier, opts ...Option) *Reader {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cache == nil {
		o.cache = strata.NewMemoryCache()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	cat := catalog.New(q, catalog.WithCache(o.cache), catalog.WithLogger(o.logger))
	store := entity.New(q, cat, entity.WithCache(o.cache), entity.WithLogger(o.logger))
	g := graph.New(q, store, graph.WithCache(o.cache), graph.WithLogger(o.logger))

	privOpts := append([]privilege.Option{
		privilege.WithCache(o.cache),
		privilege.WithLogger(o.logger),
		privilege.WithTable(o.table),
		privilege.WithDefaultRole(o.defaultRole),
	}, o.privOpts...)

	return &Reader{
		Catalog:    cat,
		Entities:   store,
		Graph:      g,
		Privileges: privilege.New(cat, g, store, privOpts...),
		Editors: editor.NewResolver(g, store, o.registry,
			editor.WithCache(o.cache),
			editor.WithLogger(o.logger),
			editor.WithDefault(o.editor)),
		cache:  o.cache,
		logger: o.logger,
	}
}

// Cache returns the shared cache.
func (r *Reader) Cache() strata.Cache {
	return r.cache
}

// Reset clears every cached lookup.
func (r *Reader) Reset() {
	r.cache.Clear()
	r.logger.Debug("reader cache cleared")
}
